package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const runColumns = "id, run_id, video_id, video_path, outcome, error_message, detection_mode, threshold, scenes_detected, frames_extracted, frames_final, report_path, started_at, finished_at"

// RecordRun appends a finished run to the ledger.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	if strings.TrimSpace(run.RunID) == "" {
		return errors.New("record run: run id is required")
	}
	finished := run.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	started := run.StartedAt
	if started.IsZero() {
		started = finished
	}

	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO runs (
            run_id, video_id, video_path, outcome, error_message, detection_mode,
            threshold, scenes_detected, frames_extracted, frames_final, report_path,
            started_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID,
		run.VideoID,
		run.VideoPath,
		run.Outcome,
		nullableString(run.ErrorMessage),
		nullableString(run.DetectionMode),
		run.Threshold,
		run.ScenesDetected,
		run.FramesExtracted,
		run.FramesFinal,
		nullableString(run.ReportPath),
		formatTime(started),
		formatTime(finished),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// List returns runs newest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]Run, error) {
	ctx = ensureContext(ctx)
	query := "SELECT " + runColumns + " FROM runs"
	var (
		clauses []string
		args    []any
	)
	if id := strings.TrimSpace(filter.VideoID); id != "" {
		clauses = append(clauses, "video_id = ?")
		args = append(args, id)
	}
	if outcome := strings.TrimSpace(filter.Outcome); outcome != "" {
		clauses = append(clauses, "outcome = ?")
		args = append(args, outcome)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY started_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Latest returns the newest run for a video, or nil when none exists.
func (s *Store) Latest(ctx context.Context, videoID string) (*Run, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		"SELECT "+runColumns+" FROM runs WHERE video_id = ? ORDER BY started_at DESC, id DESC LIMIT 1",
		videoID,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return &run, nil
}

// Clear deletes every run and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, "DELETE FROM runs")
	if err != nil {
		return 0, fmt.Errorf("clear runs: %w", err)
	}
	return res.RowsAffected()
}

// PruneBefore deletes runs that started before cutoff.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx, "DELETE FROM runs WHERE started_at < ?", formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}
