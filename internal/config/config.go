package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains output and state directory configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
	StateDir  string `toml:"state_dir"`
}

// Detection controls how scene boundaries are requested from the detector.
type Detection struct {
	// Mode is "adaptive" (binary search toward TargetScenes) or "fixed".
	Mode           string  `toml:"mode"`
	Threshold      float64 `toml:"threshold"`
	MinSceneLength int     `toml:"min_scene_length"`
	TargetScenes   int     `toml:"target_scenes"`
	Tolerance      int     `toml:"tolerance"`
	MaxIterations  int     `toml:"max_iterations"`
	SearchLow      float64 `toml:"search_low"`
	SearchHigh     float64 `toml:"search_high"`
}

// Quality contains the per-frame gate and deduplication thresholds.
type Quality struct {
	BlurThreshold      float64 `toml:"blur_threshold"`
	FadeBlackThreshold float64 `toml:"fade_black_threshold"`
	FadeWhiteThreshold float64 `toml:"fade_white_threshold"`
	FadeStdThreshold   float64 `toml:"fade_std_threshold"`
	DedupHashDistance  int     `toml:"dedup_hash_distance"`
}

// Output contains keyframe encoding and visualization settings.
type Output struct {
	JPEGQuality         int  `toml:"jpeg_quality"`
	ContactSheet        bool `toml:"contact_sheet"`
	ContactSheetColumns int  `toml:"contact_sheet_columns"`
	HTMLReport          bool `toml:"html_report"`
}

// FFmpeg contains external binary overrides.
type FFmpeg struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
}

// History controls the SQLite run ledger.
type History struct {
	Enabled bool `toml:"enabled"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for keyframer.
//
// Configuration sections by subsystem:
//   - Paths: output, log, and state directories
//   - Detection: fixed or adaptive scene detection parameters
//   - Quality: blur, fade, and duplicate thresholds
//   - Output: JPEG quality, contact sheet, and HTML report
//   - FFmpeg: ffmpeg/ffprobe binary overrides
//   - History: run ledger toggle
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Detection Detection `toml:"detection"`
	Quality   Quality   `toml:"quality"`
	Output    Output    `toml:"output"`
	FFmpeg    FFmpeg    `toml:"ffmpeg"`
	History   History   `toml:"history"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/keyframer/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("keyframer.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the output, report, log, and state directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.OutputDir, c.KeyframeRoot(), c.ReportDir(), c.Paths.LogDir}
	if c.History.Enabled {
		dirs = append(dirs, c.Paths.StateDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// KeyframeRoot returns the directory holding one keyframe folder per video.
func (c *Config) KeyframeRoot() string {
	return filepath.Join(c.Paths.OutputDir, "keyframes")
}

// ReportDir returns the directory holding JSON reports.
func (c *Config) ReportDir() string {
	return filepath.Join(c.Paths.OutputDir, "reports")
}

// HistoryPath returns the SQLite ledger location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// FFmpegBinary returns the configured ffmpeg executable.
func (c *Config) FFmpegBinary() string {
	if value := strings.TrimSpace(c.FFmpeg.FFmpegBinary); value != "" {
		return value
	}
	return "ffmpeg"
}

// FFprobeBinary returns the configured ffprobe executable.
func (c *Config) FFprobeBinary() string {
	if value := strings.TrimSpace(c.FFmpeg.FFprobeBinary); value != "" {
		return value
	}
	return "ffprobe"
}

// Adaptive reports whether scene detection searches for a threshold.
func (c *Config) Adaptive() bool {
	return c.Detection.Mode == DetectionModeAdaptive
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
