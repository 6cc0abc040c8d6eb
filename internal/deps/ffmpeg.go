package deps

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ResolveFFprobe returns the ffprobe binary to execute.
//
// An explicitly configured ffprobe wins. Otherwise, when ffmpeg points at a
// concrete path (a static build unpacked somewhere outside PATH), an ffprobe
// sitting next to it is preferred so both tools come from the same build.
func ResolveFFprobe(ffmpegBinary, ffprobeBinary string) string {
	ffprobe := strings.TrimSpace(ffprobeBinary)
	if ffprobe != "" && ffprobe != "ffprobe" {
		return ffprobe
	}
	if candidate, ok := siblingBinary(ffmpegBinary, "ffprobe"); ok {
		return candidate
	}
	return "ffprobe"
}

func siblingBinary(reference, name string) (string, bool) {
	reference = strings.TrimSpace(reference)
	if reference == "" || !strings.ContainsRune(reference, filepath.Separator) {
		return "", false
	}
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	candidate := filepath.Join(filepath.Dir(reference), name)
	info, err := os.Stat(candidate)
	if err != nil || !isExecutable(info) {
		return "", false
	}
	return candidate, true
}

func isExecutable(info os.FileInfo) bool {
	if info == nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
