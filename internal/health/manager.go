package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Manager runs registered checks on an interval and serves the latest
// aggregated snapshot.
type Manager struct {
	logger   *zap.Logger
	interval time.Duration

	mu       sync.RWMutex
	checkers []Checker
	results  map[string]CheckResult
	started  bool
	stopCh   chan struct{}
}

// NewManager builds a manager. interval <= 0 defaults to 30s.
func NewManager(logger *zap.Logger, interval time.Duration) *Manager {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Manager{
		logger:   logger,
		interval: interval,
		results:  make(map[string]CheckResult),
		stopCh:   make(chan struct{}),
	}
}

// Register adds a checker. Not safe to call after Start.
func (m *Manager) Register(c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, c)
	m.logger.Info("Health checker registered",
		zap.String("checker", c.Name()),
		zap.Bool("critical", c.Critical()),
	)
}

// Start runs an initial round of checks and begins the background loop.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	m.runChecks(ctx)
	go m.loop()
}

// Stop halts the background loop.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return
	}
	close(m.stopCh)
	m.started = false
}

func (m *Manager) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			m.runChecks(ctx)
			cancel()
		}
	}
}

func (m *Manager) runChecks(ctx context.Context) {
	m.mu.RLock()
	checkers := make([]Checker, len(m.checkers))
	copy(checkers, m.checkers)
	m.mu.RUnlock()

	results := make(map[string]CheckResult, len(checkers))
	for _, c := range checkers {
		results[c.Name()] = m.runOne(ctx, c)
	}

	m.mu.Lock()
	for name, r := range results {
		m.results[name] = r
	}
	m.mu.Unlock()
}

func (m *Manager) runOne(ctx context.Context, c Checker) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, c.Timeout())
	defer cancel()

	start := time.Now()
	err := c.Check(checkCtx)

	result := CheckResult{
		Component: c.Name(),
		Status:    StatusHealthy,
		Critical:  c.Critical(),
		Duration:  time.Since(start),
		Timestamp: start.UTC(),
	}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		m.logger.Warn("Health check failed",
			zap.String("checker", c.Name()),
			zap.Bool("critical", c.Critical()),
			zap.Error(err),
		)
	}
	return result
}

// Snapshot aggregates the latest results. A failing critical check makes
// the service unhealthy and not ready; failing non-critical checks only
// mark it degraded.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		Status:     StatusHealthy,
		Ready:      true,
		Components: make(map[string]CheckResult, len(m.results)),
		Timestamp:  time.Now().UTC(),
	}

	criticalFailures := 0
	degraded := 0
	for name, r := range m.results {
		snap.Components[name] = r
		if r.Status != StatusUnhealthy {
			continue
		}
		if r.Critical {
			criticalFailures++
		} else {
			degraded++
		}
	}

	switch {
	case len(m.results) == 0:
		snap.Message = "no checks recorded yet"
	case criticalFailures > 0:
		snap.Status = StatusUnhealthy
		snap.Ready = false
		snap.Message = fmt.Sprintf("%d critical component(s) failing", criticalFailures)
	case degraded > 0:
		snap.Status = StatusDegraded
		snap.Message = fmt.Sprintf("%d non-critical component(s) failing", degraded)
	default:
		snap.Message = fmt.Sprintf("all %d components healthy", len(m.results))
	}
	return snap
}

// Ready reports whether all critical checks pass.
func (m *Manager) Ready() bool {
	return m.Snapshot().Ready
}
