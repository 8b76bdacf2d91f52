package config

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-quilt/common"
	"github.com/Carmen-Shannon/oxy-quilt/engine/event"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// DefaultDebounce is how long the watcher waits for a burst of writes to settle before reloading.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reloads a config file whenever it changes and pushes the result into an event queue.
type Watcher struct {
	mu       *sync.Mutex
	fs       *fsnotify.Watcher
	path     string
	queue    *event.Queue
	debounce time.Duration
	reloads  int
	done     chan struct{}
	wg       sync.WaitGroup
	log      *slog.Logger
}

type WatcherOption func(*Watcher)

// WithDebounce sets how long writes must be quiet before a reload.
//
// Parameters:
//   - d: the settle time; zero reloads on every write
//
// Returns:
//   - WatcherOption: functional option to set the debounce
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// Watch starts watching path. The parent directory is watched so editors that replace the file are
// seen too. Each reload pushes an event.ConfigReload carrying the new *Config, or Err when the file
// no longer loads.
//
// Parameters:
//   - path: the config file
//   - queue: receives the reload events
//   - options: functional options to configure the watcher
//
// Returns:
//   - *Watcher: the running watcher; Close stops it
//   - error: an error if the directory cannot be watched
func Watch(path string, queue *event.Queue, options ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", path)
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create file watcher")
	}
	if err := fs.Add(filepath.Dir(abs)); err != nil {
		fs.Close()
		return nil, errors.Wrapf(err, "watch %s", filepath.Dir(abs))
	}

	w := &Watcher{
		mu:       &sync.Mutex{},
		fs:       fs,
		path:     abs,
		queue:    queue,
		debounce: DefaultDebounce,
		done:     make(chan struct{}),
		log:      common.ComponentLogger("config"),
	}
	for _, option := range options {
		option(w)
	}

	w.wg.Add(1)
	go w.run()
	w.log.Info("watching config", "path", abs)
	return w, nil
}

func (w *Watcher) run() {
	defer w.wg.Done()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	pending := false

	for {
		select {
		case <-w.done:
			timer.Stop()
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if w.debounce == 0 {
				w.reload()
				continue
			}
			if pending && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
			pending = true
		case <-timer.C:
			pending = false
			w.reload()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	ev := event.ConfigReload{Path: w.path, Err: err}
	if err != nil {
		w.log.Warn("config reload rejected", "path", w.path, "error", err)
	} else {
		ev.Config = cfg
		w.log.Info("config reloaded", "path", w.path)
	}

	w.mu.Lock()
	w.reloads++
	w.mu.Unlock()

	if _, err := w.queue.Push(ev); err != nil {
		w.log.Warn("config reload dropped", "error", err)
	}
}

// Reloads returns how many times the file has been reloaded.
func (w *Watcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	w.mu.Lock()
	select {
	case <-w.done:
		w.mu.Unlock()
		return nil
	default:
		close(w.done)
	}
	w.mu.Unlock()

	err := w.fs.Close()
	w.wg.Wait()
	return errors.Wrap(err, "close file watcher")
}
