package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"keyframer/internal/media"
	"keyframer/internal/services"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 200, G: 10, B: 10, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write png: %v", err)
	}
}

func TestReadFrameDecodesPNGAndSeeks(t *testing.T) {
	dir := t.TempDir()
	frame := filepath.Join(dir, "frame.png")
	writePNG(t, frame)
	argsLog := filepath.Join(dir, "args.txt")
	bin := writeScript(t, dir, "ffmpeg", `echo "$@" > `+argsLog+"\ncat "+frame+"\n")

	src := NewSource(bin, "")
	info := media.VideoInfo{FrameRate: 25, FrameCount: 100}
	img, err := src.ReadFrame(context.Background(), "/videos/clip.mp4", 50, info)
	if err != nil {
		t.Fatalf("ReadFrame returned error: %v", err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 3 {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}
	args, err := os.ReadFile(argsLog)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	if !strings.Contains(string(args), "-ss 2.000000 -i /videos/clip.mp4") {
		t.Fatalf("expected seek to 2s, got %q", args)
	}
}

func TestReadFrameOutOfRange(t *testing.T) {
	src := NewSource("/nonexistent/ffmpeg", "")
	info := media.VideoInfo{FrameRate: 25, FrameCount: 10}
	for _, index := range []int{-1, 10, 11} {
		if _, err := src.ReadFrame(context.Background(), "clip.mp4", index, info); !errors.Is(err, services.ErrFrameNotFound) {
			t.Fatalf("index %d: expected ErrFrameNotFound, got %v", index, err)
		}
	}
}

func TestReadFrameEmptyOutputIsNotFound(t *testing.T) {
	bin := writeScript(t, t.TempDir(), "ffmpeg", "exit 0\n")
	src := NewSource(bin, "")
	_, err := src.ReadFrame(context.Background(), "clip.mp4", 3, media.VideoInfo{FrameRate: 24})
	if !errors.Is(err, services.ErrFrameNotFound) {
		t.Fatalf("expected ErrFrameNotFound, got %v", err)
	}
}

func TestReadFrameToolFailure(t *testing.T) {
	bin := writeScript(t, t.TempDir(), "ffmpeg", "echo 'clip.mp4: Invalid data found' >&2\nexit 1\n")
	src := NewSource(bin, "")
	_, err := src.ReadFrame(context.Background(), "clip.mp4", 0, media.VideoInfo{FrameRate: 24})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	if !strings.Contains(err.Error(), "Invalid data found") {
		t.Fatalf("expected stderr detail in error, got %v", err)
	}
}

func TestSceneCutsParsesShowinfo(t *testing.T) {
	dir := t.TempDir()
	argsLog := filepath.Join(dir, "args.txt")
	bin := writeScript(t, dir, "ffmpeg", `echo "$@" > `+argsLog+`
cat >&2 <<'LOG'
Input #0, mov,mp4, from 'clip.mp4':
[Parsed_showinfo_1 @ 0x55] n:   1 pts: 5120 pts_time:4.2 duration: 512
[Parsed_showinfo_1 @ 0x55] n:   0 pts: 2048 pts_time:2 duration: 512
[Parsed_showinfo_1 @ 0x55] n:   2 pts: 5120 pts_time:4.2 duration: 512
LOG
`)
	src := NewSource(bin, "")
	cuts, err := src.SceneCuts(context.Background(), "clip.mp4", 0.27)
	if err != nil {
		t.Fatalf("SceneCuts returned error: %v", err)
	}
	if len(cuts) != 2 || cuts[0] != 2 || cuts[1] != 4.2 {
		t.Fatalf("unexpected cuts %v", cuts)
	}
	args, _ := os.ReadFile(argsLog)
	if !strings.Contains(string(args), "select='gt(scene,0.27)',showinfo") {
		t.Fatalf("expected scene filter in args, got %q", args)
	}
}

func TestSceneCutsFailure(t *testing.T) {
	bin := writeScript(t, t.TempDir(), "ffmpeg", "echo 'clip.mp4: No such file or directory' >&2\nexit 1\n")
	src := NewSource(bin, "")
	_, err := src.SceneCuts(context.Background(), "clip.mp4", 0.3)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	if !strings.Contains(err.Error(), "No such file") {
		t.Fatalf("expected stderr tail in error, got %v", err)
	}
}

func TestProbeRejectsMissingAndNonVideo(t *testing.T) {
	dir := t.TempDir()
	src := NewSource("ffmpeg", writeScript(t, dir, "ffprobe", `cat <<'JSON'
{"streams":[{"codec_type":"audio"}],"format":{"duration":"3.0"}}
JSON
`))

	if _, err := src.Probe(context.Background(), filepath.Join(dir, "missing.mp4")); !errors.Is(err, services.ErrInvalidVideo) {
		t.Fatalf("expected ErrInvalidVideo for missing file, got %v", err)
	}
	if _, err := src.Probe(context.Background(), dir); !errors.Is(err, services.ErrInvalidVideo) {
		t.Fatalf("expected ErrInvalidVideo for directory, got %v", err)
	}

	audio := filepath.Join(dir, "song.m4a")
	if err := os.WriteFile(audio, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := src.Probe(context.Background(), audio); !errors.Is(err, services.ErrInvalidVideo) {
		t.Fatalf("expected ErrInvalidVideo for audio-only file, got %v", err)
	}
}

func TestProbeReturnsVideoInfo(t *testing.T) {
	dir := t.TempDir()
	src := NewSource("ffmpeg", writeScript(t, dir, "ffprobe", `cat <<'JSON'
{"streams":[{"codec_type":"video","width":1920,"height":1080,"avg_frame_rate":"24/1","nb_frames":"240"}],"format":{"duration":"10.0"}}
JSON
`))
	video := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(video, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := src.Probe(context.Background(), video)
	if err != nil {
		t.Fatalf("Probe returned error: %v", err)
	}
	want := media.VideoInfo{Path: video, FrameRate: 24, FrameCount: 240, Duration: 10, Width: 1920, Height: 1080}
	if info != want {
		t.Fatalf("unexpected info %+v, want %+v", info, want)
	}
}
