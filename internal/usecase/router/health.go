package router

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Probe checks one backend's availability.
type Probe func(ctx context.Context) error

// Tracker keeps per-backend health as read-mostly shared state. Query paths
// only read it; writes come from the periodic probe loop and from circuit
// breaker state changes, so routing never contends on the hot path.
type Tracker struct {
	mu       sync.RWMutex
	healthy  map[string]bool
	probes   map[string]Probe
	breakers map[string]*gobreaker.CircuitBreaker
	logger   *zap.Logger
}

// NewTracker creates a health tracker. Backends start healthy; the first
// probe cycle corrects that if needed.
func NewTracker(logger *zap.Logger) *Tracker {
	return &Tracker{
		healthy:  make(map[string]bool),
		probes:   make(map[string]Probe),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		logger:   logger,
	}
}

// Register adds a backend with its probe and a circuit breaker guarding its
// query-path calls. Must be called before Run.
func (t *Tracker) Register(backend string, probe Probe) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.healthy[backend] = true
	t.probes[backend] = probe
	t.breakers[backend] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        backend,
		MaxRequests: 1,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			t.logger.Warn("Backend circuit state change",
				zap.String("backend", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			t.setHealthy(name, to != gobreaker.StateOpen)
		},
	})
}

// Healthy reports whether a backend is usable. Unregistered backends are
// considered healthy so routing never blocks on missing wiring.
func (t *Tracker) Healthy(backend string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	h, ok := t.healthy[backend]
	return !ok || h
}

// Do runs a query-path call through the backend's circuit breaker.
// Repeated failures open the circuit and mark the backend unhealthy
// without waiting for the next probe cycle.
func (t *Tracker) Do(backend string, fn func() error) error {
	t.mu.RLock()
	cb := t.breakers[backend]
	t.mu.RUnlock()

	if cb == nil {
		return fn()
	}
	_, err := cb.Execute(func() (any, error) {
		return nil, fn()
	})
	return err
}

// Run probes all registered backends on the given interval until the
// context is cancelled. Intended to run in its own goroutine from main.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) {
	t.probeAll(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.probeAll(ctx)
		}
	}
}

func (t *Tracker) probeAll(ctx context.Context) {
	t.mu.RLock()
	probes := make(map[string]Probe, len(t.probes))
	for name, p := range t.probes {
		probes[name] = p
	}
	t.mu.RUnlock()

	for name, probe := range probes {
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := probe(probeCtx)
		cancel()

		if err != nil {
			t.logger.Warn("Backend probe failed", zap.String("backend", name), zap.Error(err))
		}
		t.setHealthy(name, err == nil)
	}
}

func (t *Tracker) setHealthy(backend string, healthy bool) {
	t.mu.Lock()
	t.healthy[backend] = healthy
	t.mu.Unlock()
}
