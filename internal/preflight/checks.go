package preflight

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"keyframer/internal/config"
	"keyframer/internal/deps"
)

// requiredFilters are the ffmpeg filters scene detection depends on.
var requiredFilters = []string{"select", "showinfo"}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFFmpegFilters verifies that ffmpeg was built with the filters used by
// scene detection. It uses a 10-second timeout and a single attempt.
func CheckFFmpegFilters(ctx context.Context, ffmpegBinary string) Result {
	const name = "FFmpeg filters"

	binary := strings.TrimSpace(ffmpegBinary)
	if binary == "" {
		binary = "ffmpeg"
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(checkCtx, binary, "-hide_banner", "-filters")
	output, err := cmd.Output()
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("list filters failed (%v)", err)}
	}

	missing := missingFilters(output, requiredFilters)
	if len(missing) > 0 {
		return Result{Name: name, Detail: "missing filters: " + strings.Join(missing, ", ")}
	}
	return Result{Name: name, Passed: true, Detail: strings.Join(requiredFilters, ", ") + " available"}
}

// missingFilters scans `ffmpeg -filters` output. Each filter row looks like
// " T.. select            V->N       Select video frames to pass in output."
func missingFilters(listing []byte, want []string) []string {
	found := make(map[string]bool, len(want))
	scanner := bufio.NewScanner(bytes.NewReader(listing))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		found[fields[1]] = true
	}
	var missing []string
	for _, filter := range want {
		if !found[filter] {
			missing = append(missing, filter)
		}
	}
	return missing
}

// CheckSystemDeps evaluates all system-level dependencies for the given config.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Required for scene detection and frame extraction",
		},
		{
			Name:        "FFprobe",
			Command:     deps.ResolveFFprobe(cfg.FFmpegBinary(), cfg.FFprobeBinary()),
			Description: "Required for media inspection",
		},
	}
	return deps.CheckBinaries(requirements)
}
