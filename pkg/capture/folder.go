package capture

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long a new file must stay unchanged before it is
// handed out. Scanners and phone sync tools write files in several chunks.
const DefaultSettle = 300 * time.Millisecond

// Folder turns images dropped into a directory into picker selections.
// Next is not safe for concurrent use.
type Folder struct {
	// Settle overrides DefaultSettle when non-zero.
	Settle time.Duration

	dir     string
	watcher *fsnotify.Watcher
	pending map[string]time.Time
	logger  *slog.Logger
}

// WatchFolder starts watching dir for new image files. Files already
// present are ignored.
func WatchFolder(dir string, logger *slog.Logger) (*Folder, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Folder{
		dir:     dir,
		watcher: w,
		pending: make(map[string]time.Time),
		logger:  logger.With("component", "capture.folder"),
	}, nil
}

// Next blocks until a new image has settled and returns a picker for it.
func (f *Folder) Next(ctx context.Context) (*Picker, error) {
	settle := f.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}
	tick := settle / 3
	if tick < time.Millisecond {
		tick = time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case ev, ok := <-f.watcher.Events:
			if !ok {
				return nil, ErrNotStreaming
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || !isImageFile(ev.Name) {
				continue
			}
			f.pending[ev.Name] = time.Now()

		case err, ok := <-f.watcher.Errors:
			if !ok {
				return nil, ErrNotStreaming
			}
			f.logger.Warn("watch error", "dir", f.dir, "error", err)

		case now := <-ticker.C:
			for path, seen := range f.pending {
				if now.Sub(seen) < settle {
					continue
				}
				delete(f.pending, path)
				f.logger.Debug("file settled", "path", path)
				return PathPicker(path), nil
			}
		}
	}
}

// Close stops watching.
func (f *Folder) Close() error {
	return f.watcher.Close()
}

func isImageFile(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".tif", ".tiff":
		return true
	}
	return false
}
