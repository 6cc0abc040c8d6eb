package ffprobe

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "audio"},
			{CodecType: "video", AvgFrameRate: "30000/1001", RFrameRate: "30/1", NBFrames: "3597"},
		},
		Format: Format{Duration: "120.02"},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.DurationSeconds() != 120.02 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if fps := result.FrameRate(); math.Abs(fps-29.97002997) > 1e-6 {
		t.Fatalf("unexpected frame rate: %v", fps)
	}
	if result.FrameCount() != 3597 {
		t.Fatalf("unexpected frame count: %d", result.FrameCount())
	}
}

func TestFrameCountEstimatedFromDuration(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "video", AvgFrameRate: "0/0", RFrameRate: "25/1"}},
		Format:  Format{Duration: "10.0"},
	}
	if result.FrameRate() != 25 {
		t.Fatalf("expected r_frame_rate fallback, got %v", result.FrameRate())
	}
	if result.FrameCount() != 250 {
		t.Fatalf("expected estimated frame count 250, got %d", result.FrameCount())
	}
}

func TestResultHelpersWithoutVideo(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "audio", Duration: "3.0"}},
		Format:  Format{Duration: "bad"},
	}
	if _, ok := result.VideoStream(); ok {
		t.Fatal("expected no video stream")
	}
	if result.FrameRate() != 0 || result.FrameCount() != 0 {
		t.Fatalf("expected zero rate/count, got %v/%d", result.FrameRate(), result.FrameCount())
	}
	if result.DurationSeconds() != 0 {
		t.Fatalf("expected zero duration, got %v", result.DurationSeconds())
	}
}

func TestParseRational(t *testing.T) {
	tests := map[string]float64{
		"24/1":       24,
		"24000/1001": 24000.0 / 1001.0,
		"25":         25,
		"0/0":        0,
		"":           0,
		"x/1":        0,
	}
	for input, want := range tests {
		if got := parseRational(input); math.Abs(got-want) > 1e-9 {
			t.Fatalf("parseRational(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestInspectRunsBinary(t *testing.T) {
	dir := t.TempDir()
	stub := filepath.Join(dir, "ffprobe")
	script := `#!/bin/sh
cat <<'JSON'
{"streams":[{"index":0,"codec_type":"video","avg_frame_rate":"24/1","nb_frames":"48"}],"format":{"duration":"2.0"}}
JSON
`
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	result, err := Inspect(context.Background(), stub, "/videos/clip.mp4")
	if err != nil {
		t.Fatalf("Inspect returned error: %v", err)
	}
	if result.FrameCount() != 48 || result.FrameRate() != 24 {
		t.Fatalf("unexpected probe result: %+v", result)
	}
	if len(result.RawJSON()) == 0 {
		t.Fatal("expected raw json to be retained")
	}
}

func TestInspectRejectsEmptyPath(t *testing.T) {
	if _, err := Inspect(context.Background(), "ffprobe", "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
