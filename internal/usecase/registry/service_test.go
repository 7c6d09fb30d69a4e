package registry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/materia-cloud/matdex/internal/domain"
	"github.com/materia-cloud/matdex/internal/domain/searchcfg"
)

// --- Mocks ---

type memStore struct {
	versions map[string]searchcfg.Config
	active   map[string]int
	saveErr  error
}

func newMemStore() *memStore {
	return &memStore{
		versions: make(map[string]searchcfg.Config),
		active:   make(map[string]int),
	}
}

func (m *memStore) SaveVersion(_ context.Context, cfg searchcfg.Config) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.versions[cfg.Name()+":"+strconv.Itoa(cfg.Version())] = cfg
	return nil
}

func (m *memStore) SetActive(_ context.Context, name string, version int) error {
	m.active[name] = version
	return nil
}

func (m *memStore) ClearActive(_ context.Context, name string) error {
	delete(m.active, name)
	return nil
}

func (m *memStore) LoadActive(ctx context.Context, name string) (searchcfg.Config, error) {
	version, ok := m.active[name]
	if !ok {
		return searchcfg.Config{}, fmt.Errorf("config %q: %w", name, domain.ErrNotFound)
	}
	return m.LoadVersion(ctx, name, version)
}

func (m *memStore) LoadVersion(_ context.Context, name string, version int) (searchcfg.Config, error) {
	cfg, ok := m.versions[name+":"+strconv.Itoa(version)]
	if !ok {
		return searchcfg.Config{}, fmt.Errorf("config %q v%d: %w", name, version, domain.ErrNotFound)
	}
	return cfg, nil
}

func f64(v float64) *float64 { return &v }

// --- Tests ---

func TestGetActiveConfig_BootstrapsDefaults(t *testing.T) {
	store := newMemStore()
	svc := New(store)

	cfg, err := svc.GetActiveConfig(context.Background(), "default")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Version() != 1 {
		t.Errorf("version = %d, want 1", cfg.Version())
	}
	if cfg.DenseWeight() != searchcfg.DefaultDenseWeight {
		t.Errorf("dense weight = %g, want default", cfg.DenseWeight())
	}
	if cfg.VersionID() == "" {
		t.Error("version id is empty")
	}
	if store.active["default"] != 1 {
		t.Error("bootstrap did not persist the active pointer")
	}
}

func TestUpdateConfig_CreatesNewVersionAndSwaps(t *testing.T) {
	store := newMemStore()
	svc := New(store)

	v1, _ := svc.GetActiveConfig(context.Background(), "default")
	v2, err := svc.UpdateConfig(context.Background(), "default", searchcfg.Fields{DenseWeight: f64(0.9)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if v2.Version() != 2 {
		t.Errorf("version = %d, want 2", v2.Version())
	}
	if v2.DenseWeight() != 0.9 {
		t.Errorf("dense weight = %g, want 0.9", v2.DenseWeight())
	}
	if v2.VersionID() == v1.VersionID() {
		t.Error("new version reused the previous version id")
	}
	if store.active["default"] != 2 {
		t.Error("active pointer was not swapped")
	}

	got, _ := svc.GetActiveConfig(context.Background(), "default")
	if got.Version() != 2 {
		t.Errorf("active version = %d, want 2", got.Version())
	}
}

func TestUpdateConfig_IdenticalFieldsNoDrift(t *testing.T) {
	svc := New(newMemStore())

	fields := searchcfg.Fields{DenseWeight: f64(0.6)}
	v1, err := svc.UpdateConfig(context.Background(), "default", fields)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v2, err := svc.UpdateConfig(context.Background(), "default", fields)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if v1.DenseWeight() != v2.DenseWeight() ||
		v1.RelationshipWeight() != v2.RelationshipWeight() ||
		v1.MinSimilarity() != v2.MinSimilarity() {
		t.Error("identical updates drifted field values")
	}
	if v2.Version() != v1.Version()+1 {
		t.Errorf("versions = %d then %d, want consecutive", v1.Version(), v2.Version())
	}
}

func TestUpdateConfig_InvalidFields(t *testing.T) {
	svc := New(newMemStore())

	_, err := svc.UpdateConfig(context.Background(), "default", searchcfg.Fields{DenseWeight: f64(1.5)})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestDeleteConfig(t *testing.T) {
	store := newMemStore()
	svc := New(store)

	if _, err := svc.GetActiveConfig(context.Background(), "default"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.DeleteConfig(context.Background(), "default"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.active["default"]; ok {
		t.Error("active pointer survived delete")
	}

	// Absent name is NotFound.
	if err := svc.DeleteConfig(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRecordLatencyAndStats(t *testing.T) {
	svc := New(newMemStore())

	svc.RecordLatency("vector", 10*time.Millisecond)
	svc.RecordLatency("vector", 30*time.Millisecond)
	svc.RecordError("vector")
	svc.RecordLatency("fusion", 1*time.Millisecond)

	stats := svc.GetStats()

	vec := stats["vector"]
	if vec.Count != 2 {
		t.Errorf("vector count = %d, want 2", vec.Count)
	}
	if vec.Errors != 1 {
		t.Errorf("vector errors = %d, want 1", vec.Errors)
	}
	if vec.Max != 30*time.Millisecond {
		t.Errorf("vector max = %v, want 30ms", vec.Max)
	}
	if vec.Total != 40*time.Millisecond {
		t.Errorf("vector total = %v, want 40ms", vec.Total)
	}
	if stats["fusion"].Count != 1 {
		t.Errorf("fusion count = %d, want 1", stats["fusion"].Count)
	}

	// GetStats returns a copy.
	stats["vector"] = StageStats{}
	if svc.GetStats()["vector"].Count != 2 {
		t.Error("mutating the returned map affected internal state")
	}
}
