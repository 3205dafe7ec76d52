package am

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/duli1982/aitalentsonardemo-sub003/errors"
	"github.com/duli1982/aitalentsonardemo-sub003/logger"
)

const reloadDebounce = 500 * time.Millisecond

// ReloadCallback receives a freshly loaded, validated config.
type ReloadCallback func(*Config) error

// ConfigWatcher reloads sonar.toml when it changes on disk. The daemon uses
// it to flip agent modes and enabled flags without a restart.
//
// The parent directory is watched rather than the file itself: editors that
// save through a temp file and rename would otherwise orphan the watch.
type ConfigWatcher struct {
	path string
	fsw  *fsnotify.Watcher

	mu        sync.Mutex
	callbacks []ReloadCallback
	pending   *time.Timer
	stopped   bool

	debounce time.Duration
	load     func() (*Config, error)
	logger   *zap.SugaredLogger
}

// NewConfigWatcher watches path, which must exist.
func NewConfigWatcher(path string, log *zap.SugaredLogger) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve config path %s", path)
	}
	if !fileExists(abs) {
		return nil, errors.NewNotFoundError("config file %s", abs)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, errors.Wrapf(err, "failed to watch %s", filepath.Dir(abs))
	}

	return &ConfigWatcher{
		path:     abs,
		fsw:      fsw,
		debounce: reloadDebounce,
		load: func() (*Config, error) {
			Reset()
			return Load()
		},
		logger: logger.OrNop(log).Named("am"),
	}, nil
}

// OnReload registers fn. Callbacks run in registration order.
func (cw *ConfigWatcher) OnReload(fn ReloadCallback) {
	cw.mu.Lock()
	cw.callbacks = append(cw.callbacks, fn)
	cw.mu.Unlock()
}

// Start consumes filesystem events until Stop.
func (cw *ConfigWatcher) Start() {
	go cw.run()
}

func (cw *ConfigWatcher) run() {
	for {
		select {
		case ev, ok := <-cw.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != cw.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				cw.logger.Debugw("Config file changed", "file", ev.Name, "op", ev.Op.String())
				cw.trigger()
			}

		case err, ok := <-cw.fsw.Errors:
			if !ok {
				return
			}
			cw.logger.Warnw("Config watcher error", logger.FieldError, err)
		}
	}
}

// trigger coalesces a burst of events into one reload.
func (cw *ConfigWatcher) trigger() {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.stopped {
		return
	}
	if cw.pending != nil {
		cw.pending.Stop()
	}
	cw.pending = time.AfterFunc(cw.debounce, cw.reload)
}

func (cw *ConfigWatcher) reload() {
	if !fileExists(cw.path) {
		// Mid-rename; the Create that follows triggers again
		return
	}
	cfg, err := cw.load()
	if err != nil {
		cw.logger.Errorw("Config reload rejected, keeping previous config",
			logger.FieldError, err,
			"path", cw.path)
		return
	}
	cw.logger.Infow("Config reloaded", "path", cw.path)

	cw.mu.Lock()
	callbacks := append([]ReloadCallback(nil), cw.callbacks...)
	cw.mu.Unlock()

	for _, fn := range callbacks {
		if err := fn(cfg); err != nil {
			cw.logger.Warnw("Config reload callback failed", logger.FieldError, err)
		}
	}
}

// Stop cancels any pending reload and releases the watch.
func (cw *ConfigWatcher) Stop() error {
	cw.mu.Lock()
	cw.stopped = true
	if cw.pending != nil {
		cw.pending.Stop()
	}
	cw.mu.Unlock()
	return cw.fsw.Close()
}
