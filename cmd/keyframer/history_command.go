package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"keyframer/internal/history"
)

type historyEntry struct {
	RunID           string  `json:"run_id"`
	VideoID         string  `json:"video_id"`
	VideoPath       string  `json:"video_path"`
	Outcome         string  `json:"outcome"`
	Error           string  `json:"error,omitempty"`
	DetectionMode   string  `json:"detection_mode,omitempty"`
	Threshold       float64 `json:"threshold"`
	ScenesDetected  int     `json:"scenes_detected"`
	FramesExtracted int     `json:"frames_extracted"`
	FramesFinal     int     `json:"frames_final"`
	ReportPath      string  `json:"report_path,omitempty"`
	StartedAt       string  `json:"started_at"`
	DurationSeconds float64 `json:"duration_seconds"`
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var filter history.Filter
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded extraction runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter.VideoID = strings.TrimSpace(filter.VideoID)
			filter.Outcome = strings.TrimSpace(filter.Outcome)
			return ctx.withHistory(func(store *history.Store) error {
				runs, err := store.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if asJSON {
					entries := make([]historyEntry, 0, len(runs))
					for _, run := range runs {
						entries = append(entries, newHistoryEntry(run))
					}
					return writeJSON(cmd, entries)
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				fmt.Fprintln(out, renderHistory(runs, shouldColorize(out)))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&filter.VideoID, "video", "", "Only show runs for this video id")
	cmd.Flags().StringVar(&filter.Outcome, "outcome", "", "Only show runs with this outcome (succeeded, no_scenes, ...)")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 20, "Maximum number of runs to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print runs as JSON")

	cmd.AddCommand(newHistoryClearCommand(ctx))
	cmd.AddCommand(newHistoryPruneCommand(ctx))
	return cmd
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every recorded run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			store, err := history.Open(cfg)
			if errors.Is(err, history.ErrSchemaMismatch) {
				if err := history.Remove(cfg.HistoryPath()); err != nil {
					return fmt.Errorf("remove outdated ledger: %w", err)
				}
				fmt.Fprintf(out, "Removed ledger with outdated schema at %s\n", cfg.HistoryPath())
				return nil
			}
			if err != nil {
				return err
			}
			defer store.Close()
			removed, err := store.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Cleared %d run(s)\n", removed)
			return nil
		},
	}
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs older than a given age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			return ctx.withHistory(func(store *history.Store) error {
				removed, err := store.PruneBefore(cmd.Context(), time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d run(s) older than %s\n", removed, olderThan)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Age cutoff, e.g. 720h")
	return cmd
}

func newHistoryEntry(run history.Run) historyEntry {
	return historyEntry{
		RunID:           run.RunID,
		VideoID:         run.VideoID,
		VideoPath:       run.VideoPath,
		Outcome:         run.Outcome,
		Error:           run.ErrorMessage,
		DetectionMode:   run.DetectionMode,
		Threshold:       run.Threshold,
		ScenesDetected:  run.ScenesDetected,
		FramesExtracted: run.FramesExtracted,
		FramesFinal:     run.FramesFinal,
		ReportPath:      run.ReportPath,
		StartedAt:       run.StartedAt.UTC().Format(time.RFC3339),
		DurationSeconds: run.Duration().Seconds(),
	}
}

func renderHistory(runs []history.Run, colorize bool) string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.VideoID,
			run.Outcome,
			run.DetectionMode,
			fmt.Sprintf("%.2f", run.Threshold),
			fmt.Sprintf("%d", run.ScenesDetected),
			fmt.Sprintf("%d/%d", run.FramesFinal, run.FramesExtracted),
			fmt.Sprintf("%.1fs", run.Duration().Seconds()),
		})
	}
	return renderTable(
		[]string{"Started", "Video", "Outcome", "Mode", "Threshold", "Scenes", "Final/Extracted", "Took"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
		tableOptions{colorize: colorize},
	)
}
