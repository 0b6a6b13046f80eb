// Package takes watches a directory for finished recordings and uploads
// them. Anything that drops a WAV file into the takes directory (another
// recorder, a DAW export) gets published without going through the
// interactive record flow.
package takes

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"spitbox/core/capture"
	"spitbox/logger"
)

// Watcher monitors one directory for new .wav takes.
type Watcher struct {
	dir      string
	uploader capture.Uploader
	settle   time.Duration

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewWatcher starts watching dir, creating it if needed. settle is how
// long a file must stay quiet before it is considered fully written.
func NewWatcher(dir string, uploader capture.Uploader, settle time.Duration) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		dir:      dir,
		uploader: uploader,
		settle:   settle,
		watcher:  fsw,
		done:     make(chan struct{}),
		pending:  make(map[string]*time.Timer),
	}

	w.wg.Add(1)
	go w.run()

	logger.Info("watching takes directory", logger.String("dir", dir))
	return w, nil
}

// Close stops the watcher and any pending uploads not yet started.
func (w *Watcher) Close() error {
	close(w.done)

	w.mu.Lock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("takes watcher error", logger.ErrorField(err))
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || !strings.HasSuffix(strings.ToLower(name), ".wav") {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	w.schedule(event.Name)
}

// schedule (re)arms the settle timer for a file; each write pushes the
// upload back until the writer goes quiet.
func (w *Watcher) schedule(path string) {
	select {
	case <-w.done:
		return
	default:
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.upload(path)
	})
}

func (w *Watcher) upload(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("failed to read take", logger.String("path", path), logger.ErrorField(err))
		return
	}
	if len(data) == 0 {
		logger.Warn("skipping empty take", logger.String("path", path))
		return
	}

	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	beat, err := w.uploader.UploadBeat(context.Background(), title, "", filepath.Base(path), data)
	if err != nil {
		logger.Error("take upload failed", logger.String("path", path), logger.ErrorField(err))
		return
	}

	logger.Info("take uploaded", logger.String("path", path), logger.Int64("beatId", beat.ID))
	if err := os.Remove(path); err != nil {
		logger.Warn("uploaded take left on disk", logger.String("path", path), logger.ErrorField(err))
	}
}
