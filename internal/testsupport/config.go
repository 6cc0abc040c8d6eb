package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"keyframer/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Logging.Format = "json"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithFixedDetection switches detection to a single pass at threshold.
func WithFixedDetection(threshold float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Detection.Mode = config.DetectionModeFixed
		b.cfg.Detection.Threshold = threshold
	}
}

// WithoutArtifacts disables the contact sheet and HTML report.
func WithoutArtifacts() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Output.ContactSheet = false
		b.cfg.Output.HTMLReport = false
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		for _, name := range names {
			writeStub(b, name, "exit 0\n")
		}
		prependPath(b)
	}
}

// WithScript installs an executable named name whose body is the given shell
// script, prepends it to PATH, and points the matching ffmpeg setting at it.
func WithScript(name, body string) ConfigOption {
	return func(b *configBuilder) {
		target := writeStub(b, name, body)
		switch name {
		case "ffmpeg":
			b.cfg.FFmpeg.FFmpegBinary = target
		case "ffprobe":
			b.cfg.FFmpeg.FFprobeBinary = target
		}
		prependPath(b)
	}
}

func writeStub(b *configBuilder, name, body string) string {
	binDir := filepath.Join(b.baseDir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		b.t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(binDir, name)
	if err := os.WriteFile(target, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		b.t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}

func prependPath(b *configBuilder) {
	binDir := filepath.Join(b.baseDir, "bin")
	oldPath := os.Getenv("PATH")
	if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
		b.t.Fatalf("set PATH: %v", err)
	}
	b.t.Cleanup(func() {
		_ = os.Setenv("PATH", oldPath)
	})
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.OutputDir)
}
