package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"keyframer/internal/config"
	"keyframer/internal/dedup"
	"keyframer/internal/history"
	"keyframer/internal/logging"
	"keyframer/internal/media"
	"keyframer/internal/quality"
	"keyframer/internal/scene"
	"keyframer/internal/services"
	"keyframer/internal/textutil"
)

// Stage names carried by errors and log lines.
const (
	StageProbe           = "probe"
	StageSceneDetection  = "scene detection"
	StageFrameExtraction = "frame extraction"
	StageQuality         = "quality gate"
	StageDeduplication   = "deduplication"
	StagePersistence     = "persistence"
	StageReport          = "report"
)

// Input names the video to process. VideoID defaults to the file stem.
type Input struct {
	Path    string
	VideoID string
}

// Result is returned for a successful run.
type Result struct {
	RunID      string
	VideoID    string
	Stats      Stats
	Report     Report
	ReportPath string
	// Artifacts maps renderer names to the files they produced.
	Artifacts map[string]string
}

// Pipeline runs keyframe extraction for one video at a time.
type Pipeline struct {
	cfg      *config.Config
	source   FrameSource
	detector scene.Detector
	strategy scene.Strategy

	gate      Evaluator
	dedup     Deduplicator
	store     KeyframeStore
	reports   ReportWriter
	locker    Locker
	recorder  RunRecorder
	renderers []Renderer

	logger   *slog.Logger
	now      func() time.Time
	newRunID func() string
}

// Option configures optional Pipeline behavior.
type Option func(*Pipeline)

// WithStrategy replaces the strategy derived from the detection config.
func WithStrategy(strategy scene.Strategy) Option {
	return func(p *Pipeline) { p.strategy = strategy }
}

// WithEvaluator replaces the quality gate.
func WithEvaluator(gate Evaluator) Option {
	return func(p *Pipeline) { p.gate = gate }
}

// WithDeduplicator replaces the pHash deduplicator.
func WithDeduplicator(d Deduplicator) Option {
	return func(p *Pipeline) { p.dedup = d }
}

// WithKeyframeStore replaces the JPEG file store.
func WithKeyframeStore(store KeyframeStore) Option {
	return func(p *Pipeline) { p.store = store }
}

// WithReportWriter replaces the JSON report writer.
func WithReportWriter(w ReportWriter) Option {
	return func(p *Pipeline) { p.reports = w }
}

// WithLocker replaces the per-video file lock.
func WithLocker(l Locker) Option {
	return func(p *Pipeline) { p.locker = l }
}

// WithRecorder records every finished run.
func WithRecorder(r RunRecorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithRenderers adds optional artifacts produced after the report.
func WithRenderers(renderers ...Renderer) Option {
	return func(p *Pipeline) { p.renderers = append(p.renderers, renderers...) }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithRunIDs overrides run id generation.
func WithRunIDs(next func() string) Option {
	return func(p *Pipeline) { p.newRunID = next }
}

// New constructs a pipeline from configuration. The frame source and scene
// detector are required; every other collaborator defaults to the file-backed
// implementation rooted at the configured output directory.
func New(cfg *config.Config, source FrameSource, detector scene.Detector, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("pipeline requires config")
	}
	if source == nil {
		return nil, errors.New("pipeline requires a frame source")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &Pipeline{
		cfg:      cfg,
		source:   source,
		detector: detector,
		gate: quality.Gate{
			BlurThreshold:      cfg.Quality.BlurThreshold,
			FadeBlackThreshold: cfg.Quality.FadeBlackThreshold,
			FadeWhiteThreshold: cfg.Quality.FadeWhiteThreshold,
			FadeStdThreshold:   cfg.Quality.FadeStdThreshold,
		},
		dedup:    dedup.New(cfg.Quality.DedupHashDistance),
		store:    FileStore{Root: cfg.KeyframeRoot(), Quality: cfg.Output.JPEGQuality},
		reports:  JSONReportWriter{Dir: cfg.ReportDir()},
		locker:   FileLocker{Dir: cfg.KeyframeRoot()},
		logger:   logging.NewComponentLogger(logger, "pipeline"),
		now:      time.Now,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.strategy == nil && p.detector == nil {
		return nil, errors.New("pipeline requires a scene detector or strategy")
	}
	return p, nil
}

// strategyFor builds the configured detection strategy. Adaptive probes are
// logged through the run's stage logger.
func (p *Pipeline) strategyFor(logger *slog.Logger) scene.Strategy {
	if p.strategy != nil {
		return p.strategy
	}
	d := p.cfg.Detection
	if d.Mode != config.DetectionModeAdaptive {
		return scene.Fixed{Detector: p.detector, Threshold: d.Threshold, MinSceneLength: d.MinSceneLength}
	}
	return scene.Adaptive{
		Detector:       p.detector,
		Target:         d.TargetScenes,
		Tolerance:      d.Tolerance,
		MaxIterations:  d.MaxIterations,
		Low:            d.SearchLow,
		High:           d.SearchHigh,
		MinSceneLength: d.MinSceneLength,
		OnProbe: func(probe scene.Probe) {
			logger.Info(
				"threshold probed",
				logging.Int("iteration", probe.Iteration),
				logging.Float64("threshold", probe.Threshold),
				logging.Int("scenes", probe.Scenes),
				logging.Int("target", d.TargetScenes),
				logging.Int("diff", probe.Diff),
			)
		},
	}
}

type candidate struct {
	scene scene.Scene
	img   image.Image
}

type runState struct {
	runID     string
	videoID   string
	path      string
	started   time.Time
	detection scene.Detection
	stats     Stats
	report    string
}

// Process runs every stage for one video. On failure no report is written and
// keyframes written by this run are removed.
func (p *Pipeline) Process(ctx context.Context, in Input) (Result, error) {
	state := &runState{
		runID:   p.newRunID(),
		videoID: textutil.VideoID(in.VideoID, in.Path),
		path:    in.Path,
		started: p.now(),
	}
	ctx = logging.WithRun(ctx, state.runID, state.videoID)
	logger := logging.WithContext(ctx, p.logger)
	logger.Info(
		"keyframe extraction started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("video_path", in.Path),
	)

	unlock, err := p.locker.Lock(state.videoID)
	if err != nil {
		p.finish(ctx, logger, state, err)
		return Result{}, err
	}
	defer unlock()

	result, err := p.run(ctx, state)
	p.finish(ctx, logger, state, err)
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, state *runState) (Result, error) {
	// probe
	stageCtx, logger := p.enterStage(ctx, StageProbe)
	info, err := p.source.Probe(stageCtx, state.path)
	if err != nil {
		return Result{}, stageError(services.ErrInvalidVideo, StageProbe, "probe video", err)
	}
	if info.FrameRate <= 0 {
		return Result{}, services.Wrap(services.ErrInvalidVideo, StageProbe, "probe video", "frame rate unavailable", nil)
	}
	logger.Debug(
		"video probed",
		logging.Float64("fps", info.FrameRate),
		logging.Int("frames", info.FrameCount),
		logging.Float64("duration_seconds", info.Duration),
	)

	// scene detection
	stageCtx, logger = p.enterStage(ctx, StageSceneDetection)
	detection, err := p.strategyFor(logger).Detect(stageCtx, state.path)
	if err != nil {
		return Result{}, stageError(services.ErrExternalTool, StageSceneDetection, "detect scenes", err)
	}
	state.detection = detection
	if len(detection.Scenes) == 0 {
		return Result{}, services.Wrap(
			services.ErrNoScenes,
			StageSceneDetection,
			detection.Mode,
			fmt.Sprintf("threshold %.2f", detection.Threshold),
			nil,
		)
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "scenes_detected"),
		logging.String("mode", detection.Mode),
		logging.Int("scenes", len(detection.Scenes)),
		logging.Float64("threshold", detection.Threshold),
		logging.Float64("avg_scene_seconds", scene.AverageDuration(detection.Scenes)),
	}
	if detection.Mode == scene.ModeAdaptive {
		attrs = append(attrs,
			logging.Bool("converged", detection.Converged),
			logging.Int("iterations", len(detection.Iterations)),
		)
	}
	logger.Info("scenes detected", logging.Args(attrs...)...)

	// frame extraction
	stageCtx, logger = p.enterStage(ctx, StageFrameExtraction)
	frames, err := p.extract(stageCtx, logger, state.path, info, detection.Scenes)
	if err != nil {
		return Result{}, err
	}

	// quality gate
	_, logger = p.enterStage(ctx, StageQuality)
	metrics, passed := p.evaluate(logger, frames)

	// deduplication
	_, logger = p.enterStage(ctx, StageDeduplication)
	final, duplicates, err := p.deduplicate(logger, passed)
	if err != nil {
		return Result{}, err
	}

	// persistence
	stageCtx, logger = p.enterStage(ctx, StagePersistence)
	keyframes, written, err := p.persist(stageCtx, state.videoID, final)
	if err != nil {
		p.discard(logger, written)
		return Result{}, stageError(services.ErrPersistence, StagePersistence, "write keyframe", err)
	}

	state.stats = buildStats(state.path, info, detection, metrics, len(duplicates), len(final), p.now().Sub(state.started).Seconds())
	report := Report{
		VideoID:        state.videoID,
		RunID:          state.runID,
		Stats:          state.stats,
		SceneMetadata:  sceneMetadata(detection, info),
		QualityMetrics: metrics,
		DuplicateInfo:  duplicates,
		FinalKeyframes: keyframes,
	}

	// report
	stageCtx, logger = p.enterStage(ctx, StageReport)
	reportPath, err := p.reports.Write(stageCtx, report)
	if err != nil {
		p.discard(logger, written)
		return Result{}, stageError(services.ErrPersistence, StageReport, "write report", err)
	}
	state.report = reportPath
	if err := p.store.Prune(state.videoID, written); err != nil {
		logging.WarnWithContext(logger, "stale keyframes not removed", "keyframe_prune_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete old scene_*.jpg files manually"),
			logging.String(logging.FieldImpact, "keyframe directory contains files from an earlier run"),
		)
	}

	return Result{
		RunID:      state.runID,
		VideoID:    state.videoID,
		Stats:      state.stats,
		Report:     report,
		ReportPath: reportPath,
		Artifacts:  p.render(stageCtx, logger, report),
	}, nil
}

func (p *Pipeline) enterStage(ctx context.Context, stage string) (context.Context, *slog.Logger) {
	ctx = logging.WithStage(ctx, stage)
	return ctx, logging.WithContext(ctx, p.logger)
}

func (p *Pipeline) extract(ctx context.Context, logger *slog.Logger, path string, info media.VideoInfo, scenes []scene.Scene) ([]candidate, error) {
	frames := make([]candidate, 0, len(scenes))
	for _, sc := range scenes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame := sc.MidFrame()
		img, err := p.source.ReadFrame(ctx, path, frame, info)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			logging.WarnWithContext(logger, "scene dropped; frame unreadable", "frame_dropped",
				logging.Int("scene_id", sc.ID),
				logging.Int("frame", frame),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that the video decodes cleanly with ffmpeg"),
				logging.String(logging.FieldImpact, "scene has no keyframe candidate"),
			)
			continue
		}
		frames = append(frames, candidate{scene: sc, img: img})
	}
	logger.Info(
		"frames extracted",
		logging.Int("extracted", len(frames)),
		logging.Int("scenes", len(scenes)),
	)
	return frames, nil
}

func (p *Pipeline) evaluate(logger *slog.Logger, frames []candidate) ([]quality.Metrics, []candidate) {
	metrics := make([]quality.Metrics, 0, len(frames))
	passed := make([]candidate, 0, len(frames))
	for _, c := range frames {
		m := p.gate.Evaluate(c.img, c.scene.ID)
		metrics = append(metrics, m)
		if m.PassesQuality {
			passed = append(passed, c)
			continue
		}
		attrs := append(logging.DecisionAttrs("quality_gate", "rejected", m.RejectionReason),
			logging.Int("scene_id", c.scene.ID),
			logging.Float64("blur_score", m.LaplacianVariance),
		)
		logger.Debug("frame rejected", logging.Args(attrs...)...)
	}
	logger.Info(
		"quality gate applied",
		logging.Int("passed", len(passed)),
		logging.Int("rejected", len(frames)-len(passed)),
	)
	return metrics, passed
}

func (p *Pipeline) deduplicate(logger *slog.Logger, passed []candidate) ([]candidate, []dedup.Record, error) {
	if len(passed) <= 1 {
		return passed, []dedup.Record{}, nil
	}
	imgs := make([]image.Image, len(passed))
	ids := make([]int, len(passed))
	for i, c := range passed {
		imgs[i] = c.img
		ids[i] = c.scene.ID
	}
	res, err := p.dedup.Frames(imgs, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", StageDeduplication, err)
	}
	final := make([]candidate, 0, len(res.Kept))
	for _, idx := range res.Kept {
		final = append(final, passed[idx])
	}
	for _, rec := range res.Duplicates {
		attrs := append(logging.DecisionAttrs("deduplication", "removed", fmt.Sprintf("matches scene %d", rec.MatchedKeptFrameID)),
			logging.Int("scene_id", rec.DuplicateFrameID),
			logging.Int("hamming_distance", rec.HammingDistance),
		)
		logger.Debug("duplicate removed", logging.Args(attrs...)...)
	}
	duplicates := res.Duplicates
	if duplicates == nil {
		duplicates = []dedup.Record{}
	}
	logger.Info(
		"duplicates removed",
		logging.Int("removed", len(duplicates)),
		logging.Int("kept", len(final)),
	)
	return final, duplicates, nil
}

// persist writes survivors in scene order. The returned paths cover every
// file written so far, including on error.
func (p *Pipeline) persist(ctx context.Context, videoID string, final []candidate) ([]Keyframe, []string, error) {
	keyframes := make([]Keyframe, 0, len(final))
	written := make([]string, 0, len(final))
	for _, c := range final {
		path, err := p.store.Save(ctx, videoID, c.scene, c.img)
		if err != nil {
			return nil, written, err
		}
		written = append(written, path)
		keyframes = append(keyframes, Keyframe{
			SceneID:   c.scene.ID,
			Timestamp: c.scene.StartTime,
			Duration:  c.scene.Duration(),
			Path:      path,
		})
	}
	return keyframes, written, nil
}

func (p *Pipeline) discard(logger *slog.Logger, written []string) {
	if len(written) == 0 {
		return
	}
	if err := p.store.Remove(written); err != nil {
		logging.WarnWithContext(logger, "failed to remove keyframes of failed run", "keyframe_cleanup_failed",
			logging.Error(err),
			logging.Int("files", len(written)),
			logging.String(logging.FieldErrorHint, "delete the video's keyframe directory manually"),
			logging.String(logging.FieldImpact, "partial keyframes remain on disk"),
		)
		return
	}
	logger.Debug("removed keyframes of failed run", logging.Int("files", len(written)))
}

func (p *Pipeline) render(ctx context.Context, logger *slog.Logger, report Report) map[string]string {
	if len(p.renderers) == 0 {
		return nil
	}
	artifacts := make(map[string]string, len(p.renderers))
	for _, r := range p.renderers {
		path, err := r.Render(ctx, report)
		if err != nil {
			logging.WarnWithContext(logger, "artifact not rendered", "artifact_failed",
				logging.String("artifact", r.Name()),
				logging.Error(err),
				logging.String(logging.FieldImpact, "keyframes and report are unaffected"),
			)
			continue
		}
		if path == "" {
			continue
		}
		artifacts[r.Name()] = path
		logger.Info("artifact rendered", logging.String("artifact", r.Name()), logging.String("artifact_path", path))
	}
	return artifacts
}

func (p *Pipeline) finish(ctx context.Context, logger *slog.Logger, state *runState, runErr error) {
	finished := p.now()
	outcome := services.FailureOutcome(runErr)
	if runErr != nil {
		logging.ErrorWithContext(logger, "keyframe extraction failed", "run_failure",
			logging.String("outcome", outcome),
			logging.Error(runErr),
			logging.String(logging.FieldErrorHint, failureHint(runErr)),
		)
	} else {
		logger.Info(
			"keyframe extraction completed",
			logging.String(logging.FieldEventType, "run_complete"),
			logging.Int("scenes", state.stats.ScenesDetected),
			logging.Int("keyframes", state.stats.FramesFinal),
			logging.Duration("elapsed", finished.Sub(state.started)),
			logging.String("report_path", state.report),
		)
	}

	if p.recorder == nil {
		return
	}
	run := history.Run{
		RunID:           state.runID,
		VideoID:         state.videoID,
		VideoPath:       state.path,
		Outcome:         outcome,
		DetectionMode:   state.detection.Mode,
		Threshold:       state.detection.Threshold,
		ScenesDetected:  len(state.detection.Scenes),
		FramesExtracted: state.stats.FramesExtracted,
		FramesFinal:     state.stats.FramesFinal,
		ReportPath:      state.report,
		StartedAt:       state.started,
		FinishedAt:      finished,
	}
	if runErr != nil {
		run.ErrorMessage = runErr.Error()
	}
	// The ledger write should survive a canceled run context.
	if err := p.recorder.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		logging.WarnWithContext(logger, "run not recorded in history", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the state directory and history database"),
			logging.String(logging.FieldImpact, "run is missing from keyframer history"),
		)
	}
}

func failureHint(err error) string {
	switch {
	case errors.Is(err, services.ErrInvalidVideo):
		return "verify the path points to a readable video file"
	case errors.Is(err, services.ErrNoScenes):
		return "lower the detection threshold or use adaptive mode"
	case errors.Is(err, services.ErrBusy):
		return "wait for the other run on this video to finish"
	case errors.Is(err, services.ErrPersistence):
		return "check free space and permissions of the output directory"
	case errors.Is(err, services.ErrExternalTool):
		return "run keyframer doctor to verify ffmpeg"
	default:
		return "check logs for details"
	}
}

// stageError tags err with marker unless it is a context error or already
// carries one of the pipeline sentinels.
func stageError(marker error, stage, operation string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", stage, err)
	}
	if tagged(err) {
		return err
	}
	return services.Wrap(marker, stage, operation, "", err)
}

func tagged(err error) bool {
	for _, marker := range []error{
		services.ErrInvalidVideo,
		services.ErrNoScenes,
		services.ErrFrameNotFound,
		services.ErrExternalTool,
		services.ErrPersistence,
		services.ErrConfiguration,
		services.ErrBusy,
	} {
		if errors.Is(err, marker) {
			return true
		}
	}
	return false
}
