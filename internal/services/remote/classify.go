package remote

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// classifyStatus maps an HTTP failure to an outcome. 413 and size-limit
// messages are too-large; 408, 429 and 5xx are transient; the rest are fatal.
func classifyStatus(status int, body string) Result {
	reason := summarize(body)
	switch {
	case status == http.StatusRequestEntityTooLarge || mentionsTooLarge(body):
		return Result{Outcome: OutcomeTooLarge, StatusCode: status, Reason: "http " + http.StatusText(status) + ": " + reason}
	case status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests,
		status >= http.StatusInternalServerError:
		return transient(status, "http %d: %s", status, reason)
	default:
		return fatal(status, "http %d: %s", status, reason)
	}
}

// classifyTransportError treats every network-level failure as transient.
// Cancellation of the caller's context is reported as transient as well; the
// orchestrator checks the context itself before retrying.
func classifyTransportError(err error) Result {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return transient(0, "request aborted: %v", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return transient(0, "timeout: %v", err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return transient(0, "network error: %v", err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return transient(0, "network error: %v", err)
	}
	return fatal(0, "request failed: %v", err)
}

func summarize(body string) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return "(empty body)"
	}
	const limit = 240
	if len(body) > limit {
		return body[:limit] + "..."
	}
	return body
}
