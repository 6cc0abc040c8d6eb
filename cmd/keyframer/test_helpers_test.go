package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"keyframer/internal/config"
	"keyframer/internal/testsupport"
)

const ffprobeStub = `cat <<'JSON'
{"streams":[{"codec_type":"video","width":64,"height":48,"avg_frame_rate":"25/1","nb_frames":"250"}],"format":{"duration":"10.0"}}
JSON
`

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	videoPath  string
}

// setupCLITestEnv writes a config pointing at stub ffmpeg/ffprobe binaries.
// The ffmpeg stub lists the scene filters, reports cuts at 2s and 6s, and
// answers every frame read with the same checkerboard PNG.
func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	assets := t.TempDir()
	frame := filepath.Join(assets, "frame.png")
	testsupport.WritePNG(t, frame, testsupport.Checkerboard(64, 48))

	ffmpegStub := `case "$*" in
*-filters*)
  echo " T.. select            V->N       Select video frames to pass in output."
  echo " ... showinfo          V->V       Show textual information for each video frame."
  ;;
*showinfo*)
  echo "[Parsed_showinfo_1 @ 0x1] n:   0 pts:   2000 pts_time:2.0 duration:1" >&2
  echo "[Parsed_showinfo_1 @ 0x1] n:   1 pts:   6000 pts_time:6.0 duration:1" >&2
  ;;
*)
  cat ` + frame + `
  ;;
esac
`
	base := []testsupport.ConfigOption{
		testsupport.WithFixedDetection(27),
		testsupport.WithScript("ffmpeg", ffmpegStub),
		testsupport.WithScript("ffprobe", ffprobeStub),
	}
	cfg := testsupport.NewConfig(t, append(base, opts...)...)

	configPath := filepath.Join(testsupport.BaseDir(cfg), "keyframer.toml")
	writeTestConfig(t, configPath, cfg)

	video := filepath.Join(assets, "clip.mp4")
	testsupport.WriteFile(t, video, 128)

	return &cliTestEnv{cfg: cfg, configPath: configPath, videoPath: video}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected output to contain %q, got:\n%s", substr, output)
	}
}
