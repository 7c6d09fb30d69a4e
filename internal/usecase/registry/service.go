package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/materia-cloud/matdex/internal/domain"
	"github.com/materia-cloud/matdex/internal/domain/searchcfg"
	"github.com/materia-cloud/matdex/internal/metrics"
)

// Service is the versioned config registry plus per-stage latency aggregates.
//
// Queries read the active config as a snapshot at entry; a config change
// mid-flight never affects an in-progress query. Updates always construct a
// complete new version before the active pointer swap, so concurrent updates
// are last-writer-wins at the version level with no partial-field merges.
type Service struct {
	store ConfigStore
	now   func() time.Time

	mu     sync.RWMutex
	active map[string]searchcfg.Config

	statsMu sync.Mutex
	stats   map[string]*StageStats
}

// StageStats aggregates latency observations for one pipeline stage.
type StageStats struct {
	Count    int64
	Errors   int64
	Total    time.Duration
	Max      time.Duration
	lastSeen time.Time
}

// New creates a config registry.
func New(store ConfigStore) *Service {
	return &Service{
		store:  store,
		now:    time.Now,
		active: make(map[string]searchcfg.Config),
		stats:  make(map[string]*StageStats),
	}
}

// GetActiveConfig returns the active version for a name. The first call for
// an unknown name creates version 1 from defaults; after that, misses are a
// cache-refresh from the store.
func (s *Service) GetActiveConfig(ctx context.Context, name string) (searchcfg.Config, error) {
	s.mu.RLock()
	cfg, ok := s.active[name]
	s.mu.RUnlock()
	if ok {
		return cfg, nil
	}

	cfg, err := s.store.LoadActive(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		return s.bootstrap(ctx, name)
	}
	if err != nil {
		return searchcfg.Config{}, err
	}

	s.cache(cfg)
	return cfg, nil
}

// UpdateConfig creates a new version with the given field changes and
// atomically swaps the active pointer to it.
func (s *Service) UpdateConfig(
	ctx context.Context, name string, f searchcfg.Fields,
) (searchcfg.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.loadLocked(ctx, name)

	var next searchcfg.Config
	switch {
	case err == nil:
		next, err = current.NextVersion(uuid.NewString(), f, s.now())
	case errors.Is(err, domain.ErrNotFound):
		next, err = searchcfg.New(name, uuid.NewString(), f, s.now())
	default:
		return searchcfg.Config{}, err
	}
	if err != nil {
		return searchcfg.Config{}, fmt.Errorf("%w: %s", domain.ErrInvalidInput, err)
	}

	if err := s.swapActive(ctx, next); err != nil {
		return searchcfg.Config{}, err
	}
	return next, nil
}

// DeleteConfig soft-deletes a named config: the retired marker is persisted
// as a new version and the active pointer is cleared. In-flight queries
// holding a snapshot are unaffected. An absent name is domain.ErrNotFound.
func (s *Service) DeleteConfig(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.loadLocked(ctx, name)
	if err != nil {
		return err
	}

	retired := current.Retire()
	if err := s.store.SaveVersion(ctx, retired); err != nil {
		return err
	}
	if err := s.store.ClearActive(ctx, name); err != nil {
		return err
	}

	delete(s.active, name)
	return nil
}

// RecordLatency records one stage duration into the in-memory aggregates
// and the Prometheus histogram.
func (s *Service) RecordLatency(stage string, d time.Duration) {
	metrics.StageDuration.WithLabelValues(stage).Observe(d.Seconds())

	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	st := s.statsFor(stage)
	st.Count++
	st.Total += d
	if d > st.Max {
		st.Max = d
	}
	st.lastSeen = s.now()
}

// RecordError counts one stage failure.
func (s *Service) RecordError(stage string) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	s.statsFor(stage).Errors++
}

// GetStats returns a copy of the per-stage aggregates.
func (s *Service) GetStats() map[string]StageStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	out := make(map[string]StageStats, len(s.stats))
	for stage, st := range s.stats {
		out[stage] = *st
	}
	return out
}

// bootstrap creates and activates version 1 from defaults.
func (s *Service) bootstrap(ctx context.Context, name string) (searchcfg.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Another caller may have bootstrapped while we waited for the lock.
	if cfg, ok := s.active[name]; ok {
		return cfg, nil
	}

	cfg, err := searchcfg.New(name, uuid.NewString(), searchcfg.Fields{}, s.now())
	if err != nil {
		return searchcfg.Config{}, err
	}
	if err := s.swapActive(ctx, cfg); err != nil {
		return searchcfg.Config{}, err
	}
	return cfg, nil
}

// loadLocked returns the active config, preferring the cache. Caller holds mu.
func (s *Service) loadLocked(ctx context.Context, name string) (searchcfg.Config, error) {
	if cfg, ok := s.active[name]; ok {
		return cfg, nil
	}
	return s.store.LoadActive(ctx, name)
}

// swapActive persists the version, then swaps pointer and cache. Caller holds mu.
func (s *Service) swapActive(ctx context.Context, cfg searchcfg.Config) error {
	if err := s.store.SaveVersion(ctx, cfg); err != nil {
		return err
	}
	if err := s.store.SetActive(ctx, cfg.Name(), cfg.Version()); err != nil {
		return err
	}
	s.active[cfg.Name()] = cfg
	return nil
}

func (s *Service) cache(cfg searchcfg.Config) {
	s.mu.Lock()
	s.active[cfg.Name()] = cfg
	s.mu.Unlock()
}

// statsFor returns the stats bucket for a stage. Caller holds statsMu.
func (s *Service) statsFor(stage string) *StageStats {
	st, ok := s.stats[stage]
	if !ok {
		st = &StageStats{}
		s.stats[stage] = st
	}
	return st
}
