package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"keyframer/internal/config"
	"keyframer/internal/dedup"
	"keyframer/internal/history"
	"keyframer/internal/media"
	"keyframer/internal/pipeline"
	"keyframer/internal/quality"
	"keyframer/internal/scene"
	"keyframer/internal/services"
	"keyframer/internal/testsupport"
)

const fps = 25

type fakeSource struct {
	info     media.VideoInfo
	probeErr error
	frames   map[int]image.Image
	readErr  map[int]error
	reads    []int
}

func (f *fakeSource) Probe(context.Context, string) (media.VideoInfo, error) {
	return f.info, f.probeErr
}

func (f *fakeSource) ReadFrame(_ context.Context, _ string, index int, _ media.VideoInfo) (image.Image, error) {
	f.reads = append(f.reads, index)
	if err, ok := f.readErr[index]; ok {
		return nil, err
	}
	img, ok := f.frames[index]
	if !ok {
		return nil, services.ErrFrameNotFound
	}
	return img, nil
}

// sceneDetector yields count(threshold) one-second scenes.
type sceneDetector struct {
	count func(threshold float64) int
}

func (d sceneDetector) Detect(_ context.Context, _ string, threshold float64, _ int) ([]scene.Boundary, error) {
	n := d.count(threshold)
	out := make([]scene.Boundary, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, scene.Boundary{
			StartTime:  float64(i),
			EndTime:    float64(i + 1),
			StartFrame: i * fps,
			EndFrame:   (i + 1) * fps,
		})
	}
	return out, nil
}

// scriptedGate judges frames by a per-scene blur score.
type scriptedGate struct {
	blur map[int]float64
}

func (g scriptedGate) Evaluate(_ image.Image, frameID int) quality.Metrics {
	return quality.DefaultGate().Classify(frameID, g.blur[frameID], 128, 40)
}

type tableFingerprinter map[image.Image]uint64

func (f tableFingerprinter) Fingerprint(img image.Image) uint64 { return f[img] }

type recorder struct {
	runs []history.Run
}

func (r *recorder) RecordRun(_ context.Context, run history.Run) error {
	r.runs = append(r.runs, run)
	return nil
}

type harness struct {
	cfg      *config.Config
	source   *fakeSource
	recorder *recorder
	frames   []image.Image
	hashes   tableFingerprinter
}

func midFrame(sceneID int) int {
	return (sceneID*fps + (sceneID+1)*fps) / 2
}

// newHarness builds five scenes. Scene 1 is blurry and scene 4 is a
// near-duplicate (distance 3) of scene 2.
func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		cfg:      testsupport.NewConfig(t, testsupport.WithFixedDetection(27)),
		recorder: &recorder{},
		hashes:   tableFingerprinter{},
	}
	h.source = &fakeSource{
		info:   media.VideoInfo{Path: "clip.mp4", FrameRate: fps, FrameCount: 5 * fps, Duration: 5},
		frames: map[int]image.Image{},
	}
	hashes := []uint64{0x0, ^uint64(0), 0xFFFFFFFF, 0xFFFFFFFF00000000, 0xFFFFFFFF ^ 0b111}
	for i, hash := range hashes {
		img := testsupport.Solid(8, 8, uint8(40*i))
		h.frames = append(h.frames, img)
		h.source.frames[midFrame(i)] = img
		h.hashes[img] = hash
	}
	return h
}

func (h *harness) pipeline(t *testing.T, opts ...pipeline.Option) *pipeline.Pipeline {
	t.Helper()
	clock := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	base := []pipeline.Option{
		pipeline.WithEvaluator(scriptedGate{blur: map[int]float64{0: 150, 1: 40, 2: 200, 3: 180, 4: 190}}),
		pipeline.WithDeduplicator(dedup.Deduplicator{Fingerprinter: h.hashes, MaxDistance: 5}),
		pipeline.WithRecorder(h.recorder),
		pipeline.WithRunIDs(func() string { return "run-1" }),
		pipeline.WithClock(func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}),
	}
	p, err := pipeline.New(h.cfg, h.source, sceneDetector{count: func(float64) int { return 5 }}, nil, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return p
}

func (h *harness) keyframeFiles(t *testing.T, videoID string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(h.cfg.KeyframeRoot(), videoID, "*.jpg"))
	if err != nil {
		t.Fatalf("glob keyframes: %v", err)
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, filepath.Base(m))
	}
	return names
}

func finalSceneIDs(report pipeline.Report) []int {
	ids := make([]int, 0, len(report.FinalKeyframes))
	for _, kf := range report.FinalKeyframes {
		ids = append(ids, kf.SceneID)
	}
	return ids
}

func TestProcessFiveSceneExample(t *testing.T) {
	h := newHarness(t)
	p := h.pipeline(t)

	res, err := p.Process(context.Background(), pipeline.Input{Path: "/videos/clip.mp4"})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if res.VideoID != "clip" || res.RunID != "run-1" {
		t.Fatalf("unexpected identifiers %q/%q", res.VideoID, res.RunID)
	}

	stats := res.Stats
	if stats.ScenesDetected != 5 || stats.FramesExtracted != 5 {
		t.Fatalf("unexpected scene/extract counts %+v", stats)
	}
	if stats.FramesBlurRejected != 1 || stats.FramesTransitionRejected != 0 {
		t.Fatalf("expected one blur rejection, got %+v", stats)
	}
	if stats.FramesDedupRemoved != 1 || stats.FramesFinal != 3 {
		t.Fatalf("expected one duplicate and three finals, got %+v", stats)
	}
	if stats.MinBlurScore != 150 || stats.MaxBlurScore != 200 || stats.AvgBlurScore != 180 {
		t.Fatalf("unexpected blur stats %v/%v/%v", stats.MinBlurScore, stats.AvgBlurScore, stats.MaxBlurScore)
	}
	if stats.BlurRejectedPercent != 20 || stats.DedupRemovedPercent != 20 || stats.FinalPercent != 60 {
		t.Fatalf("unexpected percentages %+v", stats)
	}
	if stats.VideoDuration != 5 || stats.DetectionThreshold != 27 || stats.AvgSceneDuration != 1 {
		t.Fatalf("unexpected video stats %+v", stats)
	}

	if got := finalSceneIDs(res.Report); !reflect.DeepEqual(got, []int{0, 2, 3}) {
		t.Fatalf("unexpected final scenes %v", got)
	}
	wantDup := []dedup.Record{{DuplicateFrameID: 4, MatchedKeptFrameID: 2, HammingDistance: 3}}
	if !reflect.DeepEqual(res.Report.DuplicateInfo, wantDup) {
		t.Fatalf("unexpected duplicates %+v", res.Report.DuplicateInfo)
	}
	if len(res.Report.QualityMetrics) != 5 {
		t.Fatalf("expected metrics for every extracted frame, got %d", len(res.Report.QualityMetrics))
	}
	if reason := res.Report.QualityMetrics[1].RejectionReason; reason != "blur (score=40.0 < 100)" {
		t.Fatalf("unexpected rejection reason %q", reason)
	}

	wantFiles := []string{"scene_0000_t0.00s.jpg", "scene_0002_t2.00s.jpg", "scene_0003_t3.00s.jpg"}
	if got := h.keyframeFiles(t, "clip"); !reflect.DeepEqual(got, wantFiles) {
		t.Fatalf("unexpected keyframe files %v", got)
	}
	kf := res.Report.FinalKeyframes[1]
	if kf.Timestamp != 2 || kf.Duration != 1 || filepath.Base(kf.Path) != "scene_0002_t2.00s.jpg" {
		t.Fatalf("unexpected keyframe entry %+v", kf)
	}

	if res.ReportPath != filepath.Join(h.cfg.ReportDir(), "clip_report.json") {
		t.Fatalf("unexpected report path %s", res.ReportPath)
	}
	raw, err := os.ReadFile(res.ReportPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	for _, key := range []string{"video_id", "run_id", "stats", "scene_metadata", "quality_metrics", "duplicate_info", "final_keyframes"} {
		if _, ok := doc[key]; !ok {
			t.Fatalf("report missing %q", key)
		}
	}
	meta := doc["scene_metadata"].(map[string]any)
	if meta["mode"] != "fixed" || meta["total_scenes"] != float64(5) || meta["fps"] != float64(fps) {
		t.Fatalf("unexpected scene metadata %v", meta)
	}
	if _, ok := meta["iterations"]; ok {
		t.Fatalf("fixed run should not carry a search trace: %v", meta)
	}

	if len(h.recorder.runs) != 1 {
		t.Fatalf("expected one recorded run, got %d", len(h.recorder.runs))
	}
	run := h.recorder.runs[0]
	if run.Outcome != services.OutcomeSucceeded || run.FramesFinal != 3 || run.ReportPath != res.ReportPath {
		t.Fatalf("unexpected recorded run %+v", run)
	}
}

func TestProcessCardinalityChain(t *testing.T) {
	h := newHarness(t)
	h.source.readErr = map[int]error{midFrame(3): services.ErrFrameNotFound}
	res, err := h.pipeline(t).Process(context.Background(), pipeline.Input{Path: "clip.mp4"})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	s := res.Stats
	passed := s.FramesExtracted - s.FramesBlurRejected - s.FramesTransitionRejected
	if !(s.FramesFinal <= passed && passed <= s.FramesExtracted && s.FramesExtracted <= s.ScenesDetected) {
		t.Fatalf("cardinality chain violated: %+v", s)
	}
	if s.FramesExtracted != 4 {
		t.Fatalf("expected dropped scene to reduce extracted count, got %d", s.FramesExtracted)
	}
	if got := finalSceneIDs(res.Report); !reflect.DeepEqual(got, []int{0, 2}) {
		t.Fatalf("unexpected final scenes %v", got)
	}
}

func TestProcessReadsMiddleFrameOfEachScene(t *testing.T) {
	h := newHarness(t)
	if _, err := h.pipeline(t).Process(context.Background(), pipeline.Input{Path: "clip.mp4"}); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	want := []int{12, 37, 62, 87, 112}
	if !reflect.DeepEqual(h.source.reads, want) {
		t.Fatalf("unexpected frame reads %v", h.source.reads)
	}
}

func TestProcessInvalidVideo(t *testing.T) {
	h := newHarness(t)
	h.source.probeErr = errors.New("moov atom not found")
	_, err := h.pipeline(t).Process(context.Background(), pipeline.Input{Path: "broken.mp4"})
	if !errors.Is(err, services.ErrInvalidVideo) {
		t.Fatalf("expected ErrInvalidVideo, got %v", err)
	}
	if !strings.Contains(err.Error(), "probe") {
		t.Fatalf("expected stage name in error, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(h.cfg.ReportDir(), "broken_report.json")); !os.IsNotExist(statErr) {
		t.Fatalf("expected no report, stat err %v", statErr)
	}
	if len(h.recorder.runs) != 1 || h.recorder.runs[0].Outcome != services.OutcomeInvalidVideo {
		t.Fatalf("expected invalid_video run record, got %+v", h.recorder.runs)
	}
}

func TestProcessZeroFrameRateIsInvalid(t *testing.T) {
	h := newHarness(t)
	h.source.info.FrameRate = 0
	if _, err := h.pipeline(t).Process(context.Background(), pipeline.Input{Path: "clip.mp4"}); !errors.Is(err, services.ErrInvalidVideo) {
		t.Fatalf("expected ErrInvalidVideo, got %v", err)
	}
}

func TestProcessNoScenes(t *testing.T) {
	h := newHarness(t)
	p := h.pipeline(t, pipeline.WithStrategy(scene.Fixed{Detector: sceneDetector{count: func(float64) int { return 0 }}, Threshold: 27}))
	_, err := p.Process(context.Background(), pipeline.Input{Path: "clip.mp4"})
	if !errors.Is(err, services.ErrNoScenes) {
		t.Fatalf("expected ErrNoScenes, got %v", err)
	}
	if !strings.Contains(err.Error(), "scene detection") {
		t.Fatalf("expected stage name in error, got %v", err)
	}
	if len(h.source.reads) != 0 {
		t.Fatalf("no frames should be read, got %v", h.source.reads)
	}
	if files := h.keyframeFiles(t, "clip"); len(files) != 0 {
		t.Fatalf("expected no keyframes, got %v", files)
	}
}

type failingReports struct{}

func (failingReports) Write(context.Context, pipeline.Report) (string, error) {
	return "", errors.New("disk full")
}

func TestProcessReportFailureRemovesKeyframes(t *testing.T) {
	h := newHarness(t)
	_, err := h.pipeline(t, pipeline.WithReportWriter(failingReports{})).Process(context.Background(), pipeline.Input{Path: "clip.mp4"})
	if !errors.Is(err, services.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if !strings.Contains(err.Error(), "report") {
		t.Fatalf("expected report stage in error, got %v", err)
	}
	if files := h.keyframeFiles(t, "clip"); len(files) != 0 {
		t.Fatalf("expected keyframes to be removed, got %v", files)
	}
	if h.recorder.runs[0].Outcome != services.OutcomeWriteFailure {
		t.Fatalf("unexpected outcome %q", h.recorder.runs[0].Outcome)
	}
}

// flakyStore fails the second save.
type flakyStore struct {
	pipeline.FileStore
	saves int
}

func (s *flakyStore) Save(ctx context.Context, videoID string, sc scene.Scene, img image.Image) (string, error) {
	s.saves++
	if s.saves == 2 {
		return "", errors.New("permission denied")
	}
	return s.FileStore.Save(ctx, videoID, sc, img)
}

func TestProcessKeyframeFailureRemovesWrittenFiles(t *testing.T) {
	h := newHarness(t)
	store := &flakyStore{FileStore: pipeline.FileStore{Root: h.cfg.KeyframeRoot()}}
	_, err := h.pipeline(t, pipeline.WithKeyframeStore(store)).Process(context.Background(), pipeline.Input{Path: "clip.mp4"})
	if !errors.Is(err, services.ErrPersistence) || !strings.Contains(err.Error(), "persistence") {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if files := h.keyframeFiles(t, "clip"); len(files) != 0 {
		t.Fatalf("expected first keyframe to be removed, got %v", files)
	}
}

func TestProcessFailsFastWhenVideoLocked(t *testing.T) {
	h := newHarness(t)
	unlock, err := pipeline.FileLocker{Dir: h.cfg.KeyframeRoot()}.Lock("clip")
	if err != nil {
		t.Fatalf("Lock returned error: %v", err)
	}
	defer unlock()

	_, err = h.pipeline(t).Process(context.Background(), pipeline.Input{Path: "clip.mp4"})
	if !errors.Is(err, services.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if len(h.source.reads) != 0 {
		t.Fatal("locked run should not read frames")
	}
}

func TestProcessIsDeterministic(t *testing.T) {
	h := newHarness(t)
	p := h.pipeline(t)
	first, err := p.Process(context.Background(), pipeline.Input{Path: "clip.mp4"})
	if err != nil {
		t.Fatalf("first Process returned error: %v", err)
	}
	second, err := p.Process(context.Background(), pipeline.Input{Path: "clip.mp4"})
	if err != nil {
		t.Fatalf("second Process returned error: %v", err)
	}
	first.Report.Stats.ProcessingTime = 0
	second.Report.Stats.ProcessingTime = 0
	if !reflect.DeepEqual(first.Report, second.Report) {
		t.Fatalf("reports differ:\n%+v\n%+v", first.Report, second.Report)
	}
}

func TestProcessPrunesStaleKeyframes(t *testing.T) {
	h := newHarness(t)
	stale := filepath.Join(h.cfg.KeyframeRoot(), "clip", "scene_0009_t9.00s.jpg")
	testsupport.WriteJPEG(t, stale, testsupport.Solid(4, 4, 10))

	if _, err := h.pipeline(t).Process(context.Background(), pipeline.Input{Path: "clip.mp4"}); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("expected stale keyframe to be pruned, stat err %v", err)
	}
	if files := h.keyframeFiles(t, "clip"); len(files) != 3 {
		t.Fatalf("expected current keyframes to remain, got %v", files)
	}
}

func TestProcessAdaptiveCarriesSearchTrace(t *testing.T) {
	h := newHarness(t)
	h.cfg.Detection.Mode = config.DetectionModeAdaptive
	h.cfg.Detection.TargetScenes = 5
	h.cfg.Detection.Tolerance = 0
	h.cfg.Detection.MaxIterations = 7
	h.cfg.Detection.SearchLow = 15
	h.cfg.Detection.SearchHigh = 50

	// 9 scenes below threshold 30, otherwise 5.
	detector := sceneDetector{count: func(th float64) int {
		if th < 30 {
			return 9
		}
		return 5
	}}
	p, err := pipeline.New(h.cfg, h.source, detector, nil,
		pipeline.WithEvaluator(scriptedGate{blur: map[int]float64{0: 150, 1: 40, 2: 200, 3: 180, 4: 190}}),
		pipeline.WithDeduplicator(dedup.Deduplicator{Fingerprinter: h.hashes, MaxDistance: 5}),
	)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	res, err := p.Process(context.Background(), pipeline.Input{Path: "clip.mp4", VideoID: "Clip Ünïcode"})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	meta := res.Report.SceneMetadata
	if meta.Mode != scene.ModeAdaptive || meta.SearchMetadata == nil {
		t.Fatalf("expected adaptive metadata, got %+v", meta)
	}
	if !meta.Converged || len(meta.Iterations) != 1 || meta.FinalThreshold != 32.5 {
		t.Fatalf("unexpected search trace %+v", meta.SearchMetadata)
	}
	if res.VideoID != "clip_unicode" {
		t.Fatalf("expected sanitized video id, got %q", res.VideoID)
	}
}

type fakeRenderer struct {
	name string
	err  error
}

func (r fakeRenderer) Name() string { return r.name }

func (r fakeRenderer) Render(_ context.Context, report pipeline.Report) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "/out/" + report.VideoID + "_" + r.name, nil
}

func TestProcessRenderFailuresAreNotFatal(t *testing.T) {
	h := newHarness(t)
	p := h.pipeline(t, pipeline.WithRenderers(
		fakeRenderer{name: "contact_sheet"},
		fakeRenderer{name: "html_report", err: errors.New("template exploded")},
	))
	res, err := p.Process(context.Background(), pipeline.Input{Path: "clip.mp4"})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	want := map[string]string{"contact_sheet": "/out/clip_contact_sheet"}
	if !reflect.DeepEqual(res.Artifacts, want) {
		t.Fatalf("unexpected artifacts %v", res.Artifacts)
	}
}

func TestProcessHonorsCancellation(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.pipeline(t).Process(ctx, pipeline.Input{Path: "clip.mp4"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if h.recorder.runs[0].Outcome != services.OutcomeCanceled {
		t.Fatalf("unexpected outcome %q", h.recorder.runs[0].Outcome)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := pipeline.New(nil, &fakeSource{}, sceneDetector{}, nil); err == nil {
		t.Fatal("expected error without config")
	}
	if _, err := pipeline.New(cfg, nil, sceneDetector{}, nil); err == nil {
		t.Fatal("expected error without frame source")
	}
	if _, err := pipeline.New(cfg, &fakeSource{}, nil, nil); err == nil {
		t.Fatal("expected error without detector")
	}
}
