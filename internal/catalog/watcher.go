package catalog

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a catalog file whenever it changes on disk.
type Watcher struct {
	path     string
	onReload func(*Seed)
	debounce time.Duration
}

// NewWatcher creates a watcher for path. onReload receives every seed that
// parses successfully; invalid edits are logged and ignored.
func NewWatcher(path string, onReload func(*Seed)) *Watcher {
	return &Watcher{
		path:     path,
		onReload: onReload,
		debounce: 500 * time.Millisecond,
	}
}

// Watch blocks until ctx is cancelled or the underlying watcher fails.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	// Editors often replace the file, so watch the directory instead.
	filename := filepath.Base(w.path)
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	log.Printf("watching catalog %s", w.path)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Printf("catalog watcher error: %v", err)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *Watcher) reload() {
	seed, err := Load(w.path)
	if err != nil {
		log.Printf("catalog reload skipped: %v", err)
		return
	}
	log.Printf("catalog reloaded from %s (%d domains)", w.path, seed.Size())
	w.onReload(seed)
}
