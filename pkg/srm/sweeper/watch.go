package sweeper

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// fingerprint identifies one version of the metadata file.
type fingerprint struct {
	size    int64
	modTime time.Time
	exists  bool
}

func fingerprintOf(path string) fingerprint {
	info, err := os.Stat(path)
	if err != nil {
		return fingerprint{}
	}
	return fingerprint{size: info.Size(), modTime: info.ModTime(), exists: true}
}

// watchFile signals wake, at most once per debounce window, when path is
// created, written or renamed into place. The parent directory is watched
// because atomic saves replace the file rather than write to it.
func (s *Sweeper) watchFile(ctx context.Context, path string, wake chan<- struct{}) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return err
	}

	go func() {
		defer w.Close()

		var debounce <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != path {
					continue
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				if debounce == nil {
					debounce = time.After(s.debounce)
				}

			case <-debounce:
				debounce = nil
				select {
				case wake <- struct{}{}:
				default:
				}

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Warn("metadata watch error", "error", err)
			}
		}
	}()
	return nil
}
