package workflow

import (
	"context"
	"strings"

	"wmclean/internal/logging"
	"wmclean/internal/queue"
	"wmclean/internal/services"
)

func (m *Manager) handleJobFailure(ctx context.Context, item *queue.Item, jobErr error) {
	logger := logging.WithContext(services.WithJobID(ctx, item.ID), m.logger)

	status := services.FailureStatus(jobErr)
	details := services.Details(jobErr)
	message := strings.TrimSpace(details.Message)
	if message == "" {
		message = "cleaning failed without error detail"
	}
	item.SetFailed(status, message)

	logger.Error("job failed",
		logging.String("resolved_status", string(status)),
		logging.String("error_kind", details.Kind),
		logging.String(logging.FieldErrorHint, details.Hint),
		logging.String(logging.FieldEventType, "job_failure"),
		logging.Error(jobErr),
	)

	if err := m.store.Update(ctx, item); err != nil {
		logger.Error("failed to persist job failure", logging.Error(err))
	}

	m.metrics.Job(string(status))
	m.setLastError(jobErr)
	m.setLastItem(item)
}
