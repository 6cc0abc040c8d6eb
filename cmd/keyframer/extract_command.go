package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"keyframer/internal/config"
	"keyframer/internal/history"
	"keyframer/internal/logging"
	"keyframer/internal/media/ffmpeg"
	"keyframer/internal/pipeline"
	"keyframer/internal/scene"
	"keyframer/internal/visualize"
)

type extractOptions struct {
	mode      string
	threshold float64
	target    int
	json      bool
}

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var opts extractOptions

	cmd := &cobra.Command{
		Use:   "extract <video> [video-id]",
		Short: "Detect scenes and write quality-filtered keyframes for a video",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			videoPath, err := resolveVideoPath(args[0])
			if err != nil {
				return err
			}
			var videoID string
			if len(args) > 1 {
				videoID = args[1]
			}

			base, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cfg, err := applyExtractOverrides(cmd, base, opts)
			if err != nil {
				return err
			}

			logger, err := ctx.logger(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			source := ffmpeg.NewSource(cfg.FFmpegBinary(), cfg.FFprobeBinary())
			pipelineOpts := []pipeline.Option{pipeline.WithRenderers(renderersFor(cfg)...)}
			if cfg.History.Enabled {
				store, err := history.Open(cfg)
				if err != nil {
					logging.WarnWithContext(logger, "run history unavailable", "history_open_failed",
						logging.Error(err),
						logging.String(logging.FieldErrorHint, "run keyframer history clear if the ledger schema is outdated"),
						logging.String(logging.FieldImpact, "this run will not be recorded"),
					)
				} else {
					defer store.Close()
					pipelineOpts = append(pipelineOpts, pipeline.WithRecorder(store))
				}
			}

			p, err := pipeline.New(cfg, source, scene.NewFFmpegDetector(source, source), logger, pipelineOpts...)
			if err != nil {
				return err
			}
			result, err := p.Process(cmd.Context(), pipeline.Input{Path: videoPath, VideoID: videoID})
			if err != nil {
				return err
			}

			if opts.json {
				return writeJSON(cmd, newExtractSummary(result))
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderSummary(result, shouldColorize(out)))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.mode, "mode", "", "Detection mode override (adaptive or fixed)")
	cmd.Flags().Float64Var(&opts.threshold, "threshold", 0, "Fixed detection threshold override")
	cmd.Flags().IntVar(&opts.target, "target", 0, "Adaptive target scene count override")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the run summary as JSON")
	return cmd
}

// resolveVideoPath rejects missing paths and directories before any work starts.
func resolveVideoPath(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("video path is required")
	}
	expanded, err := config.ExpandPath(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve video path: %w", err)
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("resolve video path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("video file not found: %s", abs)
		}
		return "", fmt.Errorf("inspect video file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("video path is not a regular file: %s", abs)
	}
	return abs, nil
}

// applyExtractOverrides returns a copy of base with flag overrides applied and
// revalidated. The shared config is never mutated.
func applyExtractOverrides(cmd *cobra.Command, base *config.Config, opts extractOptions) (*config.Config, error) {
	cfg := *base
	flags := cmd.Flags()
	if flags.Changed("mode") {
		cfg.Detection.Mode = strings.ToLower(strings.TrimSpace(opts.mode))
	}
	if flags.Changed("threshold") {
		cfg.Detection.Threshold = opts.threshold
		if !flags.Changed("mode") {
			cfg.Detection.Mode = config.DetectionModeFixed
		}
	}
	if flags.Changed("target") {
		cfg.Detection.TargetScenes = opts.target
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func renderersFor(cfg *config.Config) []pipeline.Renderer {
	var renderers []pipeline.Renderer
	if cfg.Output.ContactSheet {
		renderers = append(renderers, visualize.ContactSheet{
			Dir:     cfg.Paths.OutputDir,
			Columns: cfg.Output.ContactSheetColumns,
			Quality: cfg.Output.JPEGQuality,
		})
	}
	if cfg.Output.HTMLReport {
		renderers = append(renderers, visualize.HTMLReport{Dir: cfg.Paths.OutputDir})
	}
	return renderers
}
