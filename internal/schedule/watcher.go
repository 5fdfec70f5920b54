package schedule

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/neon/internal/config"
	"git.home.luguber.info/inful/neon/internal/foundation/errors"
	"git.home.luguber.info/inful/neon/internal/logfields"
)

// DefaultDebounce coalesces the burst of events an editor save produces.
const DefaultDebounce = 2 * time.Second

// ConfigWatcher reloads the configuration file when it changes and hands the
// result to OnReload. Invalid edits are logged and ignored.
type ConfigWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	clock    clockwork.Clock
	debounce time.Duration
	load     func(string) (*config.Config, error)
	onReload func(*config.Config)

	mu    sync.Mutex
	timer clockwork.Timer
}

// NewConfigWatcher watches path. onReload runs on the watcher goroutine.
func NewConfigWatcher(path string, clock clockwork.Clock, onReload func(*config.Config)) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.EnvironmentError("failed to resolve config path").WithCause(err).WithContext("path", path).Build()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.EnvironmentError("failed to create file watcher").WithCause(err).Build()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ConfigWatcher{
		path:     abs,
		watcher:  w,
		clock:    clock,
		debounce: DefaultDebounce,
		load:     config.Load,
		onReload: onReload,
	}, nil
}

// Start watches the file's directory, which survives editors replacing the
// file, until ctx is done.
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	dir := filepath.Dir(cw.path)
	if err := cw.watcher.Add(dir); err != nil {
		return errors.EnvironmentError("failed to watch config directory").WithCause(err).WithContext("path", dir).Build()
	}
	slog.Info("Watching configuration", logfields.Path(cw.path))
	go cw.loop(ctx)
	return nil
}

// Close stops watching.
func (cw *ConfigWatcher) Close() error {
	cw.mu.Lock()
	if cw.timer != nil {
		cw.timer.Stop()
	}
	cw.mu.Unlock()
	return cw.watcher.Close()
}

func (cw *ConfigWatcher) loop(ctx context.Context) {
	name := filepath.Base(cw.path)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			switch {
			case ev.Has(fsnotify.Write), ev.Has(fsnotify.Create), ev.Has(fsnotify.Rename):
				cw.trigger()
			case ev.Has(fsnotify.Remove):
				slog.Warn("Configuration file removed", logfields.Path(ev.Name))
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Config watcher error", logfields.Error(err))
		}
	}
}

// trigger (re)starts the debounce timer.
func (cw *ConfigWatcher) trigger() {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.timer != nil {
		cw.timer.Stop()
	}
	cw.timer = cw.clock.AfterFunc(cw.debounce, cw.reload)
}

func (cw *ConfigWatcher) reload() {
	cfg, err := cw.load(cw.path)
	if err != nil {
		slog.Error("Failed to reload configuration", logfields.Path(cw.path), logfields.Error(err))
		return
	}
	slog.Info("Configuration reloaded", logfields.Path(cw.path))
	if cw.onReload != nil {
		cw.onReload(cfg)
	}
}
