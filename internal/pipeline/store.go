package pipeline

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"

	"keyframer/internal/fileutil"
	"keyframer/internal/scene"
)

const defaultJPEGQuality = 95

// KeyframeName returns the file name used for a scene's keyframe.
func KeyframeName(sc scene.Scene) string {
	return fmt.Sprintf("scene_%04d_t%.2fs.jpg", sc.ID, sc.StartTime)
}

// FileStore writes keyframes as JPEG files under <Root>/<video_id>/.
type FileStore struct {
	Root    string
	Quality int
}

// Dir returns the keyframe directory for a video id.
func (s FileStore) Dir(videoID string) string {
	return filepath.Join(s.Root, videoID)
}

// Save encodes img and writes it atomically.
func (s FileStore) Save(ctx context.Context, videoID string, sc scene.Scene, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	quality := s.Quality
	if quality <= 0 || quality > 100 {
		quality = defaultJPEGQuality
	}
	path := filepath.Join(s.Dir(videoID), KeyframeName(sc))
	err := fileutil.WriteAtomicFunc(path, 0o644, func(w io.Writer) error {
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	})
	if err != nil {
		return "", fmt.Errorf("write keyframe %s: %w", path, err)
	}
	return path, nil
}

// Remove deletes keyframes written by a failed run.
func (s FileStore) Remove(paths []string) error {
	return fileutil.RemoveFiles(paths)
}

// Prune removes scene_*.jpg files left in the video's directory by earlier
// runs.
func (s FileStore) Prune(videoID string, keep []string) error {
	matches, err := filepath.Glob(filepath.Join(s.Dir(videoID), "scene_*.jpg"))
	if err != nil {
		return err
	}
	kept := make(map[string]struct{}, len(keep))
	for _, path := range keep {
		kept[filepath.Clean(path)] = struct{}{}
	}
	var stale []string
	for _, match := range matches {
		if _, ok := kept[filepath.Clean(match)]; !ok {
			stale = append(stale, match)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	return fileutil.RemoveFiles(stale)
}

// ensureDir exists so the lock file can be created before any keyframe.
func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}
