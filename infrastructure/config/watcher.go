package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	domaincfg "engram-backend/domain/config"
)

// TuningWatcher hot-reloads the tuning file and republishes the merged domain
// configuration. Services read through Snapshot on each request, so a reload
// takes effect without a restart.
type TuningWatcher struct {
	path     string
	base     *domaincfg.DomainConfig
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
	stopOnce sync.Once
	stopCh   chan struct{}

	mu       sync.RWMutex
	current  *domaincfg.DomainConfig
	tuning   *Tuning
	onChange []func(*domaincfg.DomainConfig)
}

// NewTuningWatcher loads the initial tuning and sets up the file watch
func NewTuningWatcher(path string, base *domaincfg.DomainConfig, logger *zap.Logger) (*TuningWatcher, error) {
	if base == nil {
		base = domaincfg.DefaultDomainConfig()
	}

	tuning, err := LoadTuning(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial tuning: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch tuning file: %w", err)
	}
	// Watch the directory too; editors and config maps replace files by rename
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		logger.Warn("failed to watch tuning directory", zap.Error(err))
	}

	return &TuningWatcher{
		path:    path,
		base:    base,
		watcher: watcher,
		logger:  logger,
		stopCh:  make(chan struct{}),
		current: tuning.Apply(base),
		tuning:  tuning,
	}, nil
}

// Start begins watching for tuning changes
func (w *TuningWatcher) Start() {
	go w.watchLoop()
	w.logger.Info("tuning watcher started", zap.String("path", w.path))
}

// Stop stops watching
func (w *TuningWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
	})
}

// Snapshot returns the current merged domain configuration
func (w *TuningWatcher) Snapshot() *domaincfg.DomainConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange registers a callback invoked after each successful reload
func (w *TuningWatcher) OnChange(handler func(*domaincfg.DomainConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, handler)
}

func (w *TuningWatcher) watchLoop() {
	// Debounce so one save does not trigger multiple reloads
	var debounce *time.Timer
	const debounceDelay = 100 * time.Millisecond

	for {
		select {
		case <-w.stopCh:
			if debounce != nil {
				debounce.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceDelay, w.reload)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("tuning watcher error", zap.Error(err))
		}
	}
}

// reload re-reads the tuning file; an invalid file keeps the current tuning
func (w *TuningWatcher) reload() {
	tuning, err := LoadTuning(w.path)
	if err != nil {
		w.logger.Error("failed to reload tuning, keeping current", zap.Error(err))
		return
	}

	merged := tuning.Apply(w.base)

	w.mu.Lock()
	w.tuning = tuning
	w.current = merged
	handlers := append([]func(*domaincfg.DomainConfig){}, w.onChange...)
	w.mu.Unlock()

	for _, handler := range handlers {
		go handler(merged)
	}

	w.logger.Info("tuning reloaded",
		zap.String("path", w.path),
		zap.String("version", tuning.Metadata.Version))
}
