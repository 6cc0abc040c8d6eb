package history

import (
	"database/sql"
	"strings"
	"time"
)

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		run          Run
		errorMessage sql.NullString
		mode         sql.NullString
		reportPath   sql.NullString
		startedRaw   string
		finishedRaw  string
	)
	if err := scanner.Scan(
		&run.ID,
		&run.RunID,
		&run.VideoID,
		&run.VideoPath,
		&run.Outcome,
		&errorMessage,
		&mode,
		&run.Threshold,
		&run.ScenesDetected,
		&run.FramesExtracted,
		&run.FramesFinal,
		&reportPath,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return Run{}, err
	}
	run.ErrorMessage = errorMessage.String
	run.DetectionMode = mode.String
	run.ReportPath = reportPath.String
	run.StartedAt = parseTime(startedRaw)
	run.FinishedAt = parseTime(finishedRaw)
	return run, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

// Timestamps are stored as fixed-width UTC text so string order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	if t, err := time.Parse(timeLayout, raw); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t
	}
	return time.Time{}
}
