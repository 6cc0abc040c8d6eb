package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"keyframer/internal/media"
	"keyframer/internal/media/ffprobe"
	"keyframer/internal/services"
)

// Source reads video metadata and individual frames through ffmpeg/ffprobe.
type Source struct {
	FFmpegBinary  string
	FFprobeBinary string
}

// NewSource returns a Source using the provided binaries.
func NewSource(ffmpegBinary, ffprobeBinary string) *Source {
	return &Source{FFmpegBinary: ffmpegBinary, FFprobeBinary: ffprobeBinary}
}

// Probe inspects path and returns its video metadata. Anything that is not a
// readable file with at least one video stream is an ErrInvalidVideo.
func (s *Source) Probe(ctx context.Context, path string) (media.VideoInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return media.VideoInfo{}, services.Wrap(services.ErrInvalidVideo, "probe", "stat", path, err)
	}
	if info.IsDir() {
		return media.VideoInfo{}, services.Wrap(services.ErrInvalidVideo, "probe", "stat", path+" is a directory", nil)
	}

	result, err := ffprobe.Inspect(ctx, s.ffprobe(), path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return media.VideoInfo{}, ctxErr
		}
		return media.VideoInfo{}, services.Wrap(services.ErrInvalidVideo, "probe", "ffprobe", path, err)
	}
	stream, ok := result.VideoStream()
	if !ok {
		return media.VideoInfo{}, services.Wrap(services.ErrInvalidVideo, "probe", "ffprobe", "no video stream in "+path, nil)
	}
	fps := result.FrameRate()
	if fps <= 0 {
		return media.VideoInfo{}, services.Wrap(services.ErrInvalidVideo, "probe", "ffprobe", "unknown frame rate for "+path, nil)
	}

	count := result.FrameCount()
	duration := result.DurationSeconds()
	if duration <= 0 && count > 0 {
		duration = float64(count) / fps
	}
	return media.VideoInfo{
		Path:       path,
		FrameRate:  fps,
		FrameCount: count,
		Duration:   duration,
		Width:      stream.Width,
		Height:     stream.Height,
	}, nil
}

// ReadFrame decodes the frame at index. It returns ErrFrameNotFound when the
// index lies outside the video or ffmpeg produced no image.
func (s *Source) ReadFrame(ctx context.Context, path string, index int, info media.VideoInfo) (image.Image, error) {
	if index < 0 || (info.FrameCount > 0 && index >= info.FrameCount) {
		return nil, services.Wrap(services.ErrFrameNotFound, "frame extraction", "seek", fmt.Sprintf("frame %d out of range", index), nil)
	}

	seek := strconv.FormatFloat(info.Timestamp(index), 'f', 6, 64)
	args := []string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-ss", seek,
		"-i", path,
		"-frames:v", "1",
		"-an", "-sn",
		"-f", "image2pipe",
		"-c:v", "png",
		"-",
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.ffmpeg(), args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, services.Wrap(services.ErrExternalTool, "frame extraction", "ffmpeg", fmt.Sprintf("read frame %d: %s", index, lastLine(stderr.String())), err)
	}
	if stdout.Len() == 0 {
		return nil, services.Wrap(services.ErrFrameNotFound, "frame extraction", "ffmpeg", fmt.Sprintf("no frame at index %d (t=%ss)", index, seek), nil)
	}

	img, err := png.Decode(&stdout)
	if err != nil {
		return nil, services.Wrap(services.ErrFrameNotFound, "frame extraction", "decode", fmt.Sprintf("frame %d", index), err)
	}
	return img, nil
}

func (s *Source) ffmpeg() string {
	if bin := strings.TrimSpace(s.FFmpegBinary); bin != "" {
		return bin
	}
	return "ffmpeg"
}

func (s *Source) ffprobe() string {
	if bin := strings.TrimSpace(s.FFprobeBinary); bin != "" {
		return bin
	}
	return "ffprobe"
}

func lastLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return "no diagnostic output"
}
