package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"keyframer/internal/services"
)

// showinfo lines look like:
// [Parsed_showinfo_1 @ 0x...] n:   0 pts: 135052 pts_time:135.052 ...
var ptsTimePattern = regexp.MustCompile(`pts_time:(\d+\.?\d*)`)

const stderrTailLines = 5

// SceneCuts runs ffmpeg's scene filter over path and returns the sorted,
// de-duplicated timestamps (seconds) of frames whose scene score exceeds
// score. score is on ffmpeg's 0..1 scale.
func (s *Source) SceneCuts(ctx context.Context, path string, score float64) ([]float64, error) {
	args := []string{
		"-hide_banner", "-nostdin",
		"-i", path,
		"-vf", fmt.Sprintf("select='gt(scene,%g)',showinfo", score),
		"-an", "-sn",
		"-f", "null",
		"-",
	}
	cmd := exec.CommandContext(ctx, s.ffmpeg(), args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "scene detection", "ffmpeg", "create stderr pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "scene detection", "ffmpeg", "start", err)
	}

	cuts, tail, scanErr := parseShowinfo(stderr)
	waitErr := cmd.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if scanErr != nil {
		return nil, services.Wrap(services.ErrExternalTool, "scene detection", "ffmpeg", "read output", scanErr)
	}
	if waitErr != nil {
		return nil, services.Wrap(services.ErrExternalTool, "scene detection", "ffmpeg", strings.Join(tail, " | "), waitErr)
	}
	return cuts, nil
}

func parseShowinfo(r io.Reader) ([]float64, []string, error) {
	var cuts []float64
	var tail []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		matches := ptsTimePattern.FindStringSubmatch(line)
		if len(matches) < 2 {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				tail = append(tail, trimmed)
				if len(tail) > stderrTailLines {
					tail = tail[1:]
				}
			}
			continue
		}
		pts, err := strconv.ParseFloat(matches[1], 64)
		if err != nil {
			continue
		}
		cuts = append(cuts, pts)
	}
	if err := scanner.Err(); err != nil {
		return nil, tail, err
	}
	sort.Float64s(cuts)
	return dedupeSorted(cuts), tail, nil
}

func dedupeSorted(values []float64) []float64 {
	if len(values) < 2 {
		return values
	}
	out := values[:1]
	for _, v := range values[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
