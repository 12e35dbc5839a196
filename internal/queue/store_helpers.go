package queue

import (
	"database/sql"
	"errors"
	"time"
)

const itemColumns = "id, correlation_id, source_path, output_path, kind, color_mode, tier, status, error_message, progress_percent, progress_message, units, remote_units, local_units, skipped_units, passthrough_units, attempts, report_json, created_at, updated_at, last_heartbeat"

var expectedColumns = []string{
	"id", "correlation_id", "source_path", "output_path", "kind", "color_mode", "tier",
	"status", "error_message", "progress_percent", "progress_message", "units",
	"remote_units", "local_units", "skipped_units", "passthrough_units", "attempts",
	"report_json", "created_at", "updated_at", "last_heartbeat",
}

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		item             Item
		statusStr        string
		outputPath       sql.NullString
		kind             sql.NullString
		colorMode        sql.NullString
		tier             sql.NullString
		errorMessage     sql.NullString
		progressMessage  sql.NullString
		reportJSON       sql.NullString
		createdRaw       string
		updatedRaw       string
		lastHeartbeatRaw sql.NullString
	)

	if err := scanner.Scan(
		&item.ID,
		&item.CorrelationID,
		&item.SourcePath,
		&outputPath,
		&kind,
		&colorMode,
		&tier,
		&statusStr,
		&errorMessage,
		&item.ProgressPercent,
		&progressMessage,
		&item.Units,
		&item.RemoteUnits,
		&item.LocalUnits,
		&item.SkippedUnits,
		&item.PassthroughUnits,
		&item.Attempts,
		&reportJSON,
		&createdRaw,
		&updatedRaw,
		&lastHeartbeatRaw,
	); err != nil {
		return nil, err
	}

	item.Status = Status(statusStr)
	item.OutputPath = outputPath.String
	item.Kind = kind.String
	item.ColorMode = colorMode.String
	item.Tier = tier.String
	item.ErrorMessage = errorMessage.String
	item.ProgressMessage = progressMessage.String
	item.ReportJSON = reportJSON.String

	if created, err := parseTimeString(createdRaw); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		item.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			item.LastHeartbeat = &heartbeat
		}
	}
	return &item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
