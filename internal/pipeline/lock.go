package pipeline

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"keyframer/internal/services"
)

// FileLocker guards each video id with <Dir>/<video_id>.lock.
type FileLocker struct {
	Dir string
}

// Lock takes the video's lock without waiting. A held lock yields ErrBusy.
func (l FileLocker) Lock(videoID string) (func(), error) {
	if err := ensureDir(l.Dir); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "lock", "create lock directory", "", err)
	}
	path := filepath.Join(l.Dir, videoID+".lock")
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "lock", "acquire lock", path, err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrBusy, "lock", "acquire lock", fmt.Sprintf("another run holds %s", path), nil)
	}
	return func() { _ = lock.Unlock() }, nil
}
