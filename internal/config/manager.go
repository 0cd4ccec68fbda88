package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ChangeHandler is invoked with the freshly loaded Features after a reload.
type ChangeHandler func(f Features)

// Manager watches features.yaml and hot-reloads funnel tuning for the worker
// side. Running workflow instances are unaffected: they snapshot their config
// once through the GetFunnelConfig activity.
type Manager struct {
	path     string
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
	handlers []ChangeHandler

	mu      sync.RWMutex
	current Features
	stopCh  chan struct{}
	started bool
}

// NewManager loads the initial configuration and prepares the watcher.
func NewManager(path string, logger *zap.Logger) (*Manager, error) {
	f, err := Load()
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Manager{
		path:    path,
		logger:  logger,
		watcher: w,
		current: f,
		stopCh:  make(chan struct{}),
	}, nil
}

// Current returns the most recently loaded configuration.
func (m *Manager) Current() Features {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// OnChange registers a handler called after each successful reload.
// Must be called before Start.
func (m *Manager) OnChange(h ChangeHandler) {
	m.handlers = append(m.handlers, h)
}

// Start begins watching the config file's directory. Editors typically
// replace the file on save, so the directory is watched rather than the file.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	dir := filepath.Dir(m.path)
	if err := m.watcher.Add(dir); err != nil {
		return err
	}

	go m.watchLoop(ctx)
	m.logger.Info("Config manager watching", zap.String("dir", dir))
	return nil
}

func (m *Manager) watchLoop(ctx context.Context) {
	// Debounce rapid write sequences from editors and config mounts.
	var timer *time.Timer
	reload := func() {
		f, err := Load()
		if err != nil {
			m.logger.Warn("Config reload failed, keeping previous", zap.Error(err))
			return
		}
		m.mu.Lock()
		m.current = f
		m.mu.Unlock()
		m.logger.Info("Config reloaded",
			zap.Float64("coverage_threshold", f.Funnel.CoverageThreshold),
			zap.Int64("cost_ceiling_micros", f.Funnel.CostCeilingMicros),
		)
		for _, h := range m.handlers {
			h(f)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case ev, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(m.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(250*time.Millisecond, reload)
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("Config watcher error", zap.Error(err))
		}
	}
}

// Stop halts watching. Safe to call once.
func (m *Manager) Stop() {
	close(m.stopCh)
	_ = m.watcher.Close()
}
