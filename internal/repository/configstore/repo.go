package configstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/materia-cloud/matdex/internal/db"
	"github.com/materia-cloud/matdex/internal/domain"
	"github.com/materia-cloud/matdex/internal/domain/searchcfg"
)

const (
	configKeyPrefix = domain.KeyPrefix + "config:"
	activeSuffix    = ":active"
)

// store is the consumer interface for config persistence.
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
}

// Repo persists search config versions. Every version is written once and
// never overwritten; the active pointer is the only mutable key per name.
type Repo struct {
	store store
}

// New creates a config repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// SaveVersion writes one immutable config version.
func (r *Repo) SaveVersion(ctx context.Context, cfg searchcfg.Config) error {
	data, err := json.Marshal(toDTO(cfg))
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := r.store.Set(ctx, versionKey(cfg.Name(), cfg.Version()), data); err != nil {
		return fmt.Errorf("save config version: %w", err)
	}
	return nil
}

// SetActive points the name at the given version.
func (r *Repo) SetActive(ctx context.Context, name string, version int) error {
	if err := r.store.Set(ctx, activeKey(name), []byte(strconv.Itoa(version))); err != nil {
		return fmt.Errorf("set active config: %w", err)
	}
	return nil
}

// ClearActive removes the active pointer for a retired name.
func (r *Repo) ClearActive(ctx context.Context, name string) error {
	if err := r.store.Del(ctx, activeKey(name)); err != nil {
		return fmt.Errorf("clear active config: %w", err)
	}
	return nil
}

// LoadActive returns the currently active version for a name.
// A missing or retired name is domain.ErrNotFound.
func (r *Repo) LoadActive(ctx context.Context, name string) (searchcfg.Config, error) {
	data, err := r.store.Get(ctx, activeKey(name))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return searchcfg.Config{}, fmt.Errorf("config %q: %w", name, domain.ErrNotFound)
		}
		return searchcfg.Config{}, fmt.Errorf("load active pointer: %w", err)
	}

	version, err := strconv.Atoi(string(data))
	if err != nil {
		return searchcfg.Config{}, fmt.Errorf("parse active pointer for %q: %w", name, err)
	}
	return r.LoadVersion(ctx, name, version)
}

// LoadVersion returns one stored version of a named config.
func (r *Repo) LoadVersion(ctx context.Context, name string, version int) (searchcfg.Config, error) {
	data, err := r.store.Get(ctx, versionKey(name, version))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return searchcfg.Config{}, fmt.Errorf("config %q v%d: %w", name, version, domain.ErrNotFound)
		}
		return searchcfg.Config{}, fmt.Errorf("load config version: %w", err)
	}

	var dto configDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return searchcfg.Config{}, fmt.Errorf("unmarshal config %q v%d: %w", name, version, err)
	}
	return fromDTO(dto), nil
}

func versionKey(name string, version int) string {
	return configKeyPrefix + name + ":v" + strconv.Itoa(version)
}

func activeKey(name string) string {
	return configKeyPrefix + name + activeSuffix
}

// configDTO is the stored JSON form of a config version.
type configDTO struct {
	Name               string    `json:"name"`
	Version            int       `json:"version"`
	VersionID          string    `json:"version_id"`
	DenseWeight        float64   `json:"dense_weight"`
	RelationshipWeight float64   `json:"relationship_weight"`
	MinSimilarity      float64   `json:"min_similarity"`
	MaxCandidates      int       `json:"max_candidates"`
	HopLimit           int       `json:"hop_limit"`
	BundleBudgetBytes  int       `json:"bundle_budget_bytes"`
	Retired            bool      `json:"retired"`
	CreatedAt          time.Time `json:"created_at"`
}

func toDTO(c searchcfg.Config) configDTO {
	return configDTO{
		Name:               c.Name(),
		Version:            c.Version(),
		VersionID:          c.VersionID(),
		DenseWeight:        c.DenseWeight(),
		RelationshipWeight: c.RelationshipWeight(),
		MinSimilarity:      c.MinSimilarity(),
		MaxCandidates:      c.MaxCandidates(),
		HopLimit:           c.HopLimit(),
		BundleBudgetBytes:  c.BundleBudgetBytes(),
		Retired:            c.Retired(),
		CreatedAt:          c.CreatedAt(),
	}
}

func fromDTO(d configDTO) searchcfg.Config {
	return searchcfg.Reconstruct(
		d.Name, d.Version, d.VersionID,
		d.DenseWeight, d.RelationshipWeight, d.MinSimilarity,
		d.MaxCandidates, d.HopLimit, d.BundleBudgetBytes,
		d.Retired, d.CreatedAt,
	)
}
