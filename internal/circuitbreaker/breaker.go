// Package circuitbreaker guards the shared pool's external dependencies
// (Redis, the relational store, provider HTTP endpoints) so an outage trips
// fast instead of stacking timeouts under concurrent workflow load.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the breaker state.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

var (
	ErrOpen            = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Config tunes one breaker.
type Config struct {
	FailureThreshold uint32        // consecutive failures that open the breaker
	SuccessThreshold uint32        // consecutive half-open successes that close it
	MaxHalfOpen      uint32        // probe requests allowed while half-open
	Cooldown         time.Duration // open duration before probing
	Window           time.Duration // closed-state counter reset interval
}

// DefaultConfig returns the tuning used by all pool dependencies unless a
// wrapper overrides it.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		MaxHalfOpen:      3,
		Cooldown:         10 * time.Second,
		Window:           60 * time.Second,
	}
}

// Breaker is a minimal three-state circuit breaker. An epoch counter keeps
// results from a previous window from mutating the current one.
type Breaker struct {
	name   string
	config Config
	logger *zap.Logger

	mu         sync.Mutex
	state      State
	epoch      uint64
	requests   uint32
	consecFail uint32
	consecOK   uint32
	deadline   time.Time
}

// New creates a breaker and registers its state gauge.
func New(name string, config Config, logger *zap.Logger) *Breaker {
	b := &Breaker{
		name:     name,
		config:   config,
		logger:   logger,
		state:    StateClosed,
		deadline: time.Now().Add(config.Window),
	}
	setStateGauge(name, StateClosed)
	return b
}

// Execute runs fn when the breaker admits the request and records the outcome.
func (b *Breaker) Execute(ctx context.Context, fn func() error) error {
	epoch, err := b.admit()
	if err != nil {
		recordRequest(b.name, b.StateNow(), false)
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			b.settle(epoch, false)
			panic(r)
		}
	}()

	err = fn()
	b.settle(epoch, err == nil)
	recordRequest(b.name, b.StateNow(), err == nil)
	return err
}

// StateNow returns the current state, advancing open→half-open when the
// cooldown has elapsed.
func (b *Breaker) StateNow() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, _ := b.tick(time.Now())
	return s
}

// IsOpen reports whether calls are currently being rejected outright.
func (b *Breaker) IsOpen() bool {
	return b.StateNow() == StateOpen
}

func (b *Breaker) admit() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, epoch := b.tick(time.Now())
	switch {
	case state == StateOpen:
		return epoch, ErrOpen
	case state == StateHalfOpen && b.requests >= b.config.MaxHalfOpen:
		return epoch, ErrTooManyRequests
	}
	b.requests++
	return epoch, nil
}

func (b *Breaker) settle(epoch uint64, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	state, current := b.tick(now)
	if current != epoch {
		return
	}

	if success {
		b.consecFail = 0
		if state == StateHalfOpen {
			b.consecOK++
			if b.consecOK >= b.config.SuccessThreshold {
				b.transition(StateClosed, now)
			}
		}
		return
	}

	b.consecOK = 0
	switch state {
	case StateClosed:
		b.consecFail++
		if b.consecFail >= b.config.FailureThreshold {
			b.transition(StateOpen, now)
		}
	case StateHalfOpen:
		b.transition(StateOpen, now)
	}
}

// tick advances time-driven transitions. Caller holds b.mu.
func (b *Breaker) tick(now time.Time) (State, uint64) {
	switch b.state {
	case StateClosed:
		if !b.deadline.IsZero() && now.After(b.deadline) {
			b.newEpoch(now)
		}
	case StateOpen:
		if now.After(b.deadline) {
			b.transition(StateHalfOpen, now)
		}
	}
	return b.state, b.epoch
}

// transition switches state. Caller holds b.mu.
func (b *Breaker) transition(to State, now time.Time) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.newEpoch(now)

	setStateGauge(b.name, to)
	recordStateChange(b.name, from, to)
	b.logger.Info("Circuit breaker state changed",
		zap.String("name", b.name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
}

// newEpoch resets counters and deadlines. Caller holds b.mu.
func (b *Breaker) newEpoch(now time.Time) {
	b.epoch++
	b.requests = 0
	b.consecFail = 0
	b.consecOK = 0
	switch b.state {
	case StateClosed:
		if b.config.Window > 0 {
			b.deadline = now.Add(b.config.Window)
		} else {
			b.deadline = time.Time{}
		}
	case StateOpen:
		b.deadline = now.Add(b.config.Cooldown)
	default:
		b.deadline = time.Time{}
	}
}
