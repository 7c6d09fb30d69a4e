package searchcfg

import (
	"fmt"
	"time"
)

// Defaults applied when a field is unset.
const (
	DefaultDenseWeight        = 0.7
	DefaultRelationshipWeight = 0.3
	DefaultMinSimilarity      = 0.5
	DefaultMaxCandidates      = 50
	DefaultHopLimit           = 1
	DefaultBundleBudgetBytes  = 4096
)

// Fields is a partial update to a search config. Nil pointers leave the
// current value untouched; a new full version is always constructed before
// the active pointer swap, so no partial-field merge races are possible.
type Fields struct {
	DenseWeight        *float64
	RelationshipWeight *float64
	MinSimilarity      *float64
	MaxCandidates      *int
	HopLimit           *int
	BundleBudgetBytes  *int
}

// Config is one immutable version of a named search configuration.
type Config struct {
	name               string
	version            int
	versionID          string
	denseWeight        float64
	relationshipWeight float64
	minSimilarity      float64
	maxCandidates      int
	hopLimit           int
	bundleBudgetBytes  int
	retired            bool
	createdAt          time.Time
}

// New creates version 1 of a named config, applying defaults and validating.
func New(name, versionID string, f Fields, now time.Time) (Config, error) {
	if name == "" {
		return Config{}, fmt.Errorf("config name is required")
	}
	c := Config{
		name:               name,
		version:            1,
		versionID:          versionID,
		denseWeight:        DefaultDenseWeight,
		relationshipWeight: DefaultRelationshipWeight,
		minSimilarity:      DefaultMinSimilarity,
		maxCandidates:      DefaultMaxCandidates,
		hopLimit:           DefaultHopLimit,
		bundleBudgetBytes:  DefaultBundleBudgetBytes,
		createdAt:          now,
	}
	c.apply(f)
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// NextVersion builds the successor version with the given field changes.
// The receiver is never mutated.
func (c Config) NextVersion(versionID string, f Fields, now time.Time) (Config, error) {
	next := c
	next.version++
	next.versionID = versionID
	next.createdAt = now
	next.retired = false
	next.apply(f)
	if err := next.validate(); err != nil {
		return Config{}, err
	}
	return next, nil
}

// Retire marks the config soft-deleted. Referenced in-flight snapshots
// remain valid; only the active pointer is removed.
func (c Config) Retire() Config {
	c.retired = true
	return c
}

// Reconstruct rebuilds a config version from persisted fields without validation.
func Reconstruct(
	name string, version int, versionID string,
	denseWeight, relationshipWeight, minSimilarity float64,
	maxCandidates, hopLimit, bundleBudgetBytes int,
	retired bool, createdAt time.Time,
) Config {
	return Config{
		name:               name,
		version:            version,
		versionID:          versionID,
		denseWeight:        denseWeight,
		relationshipWeight: relationshipWeight,
		minSimilarity:      minSimilarity,
		maxCandidates:      maxCandidates,
		hopLimit:           hopLimit,
		bundleBudgetBytes:  bundleBudgetBytes,
		retired:            retired,
		createdAt:          createdAt,
	}
}

func (c *Config) apply(f Fields) {
	if f.DenseWeight != nil {
		c.denseWeight = *f.DenseWeight
	}
	if f.RelationshipWeight != nil {
		c.relationshipWeight = *f.RelationshipWeight
	}
	if f.MinSimilarity != nil {
		c.minSimilarity = *f.MinSimilarity
	}
	if f.MaxCandidates != nil {
		c.maxCandidates = *f.MaxCandidates
	}
	if f.HopLimit != nil {
		c.hopLimit = *f.HopLimit
	}
	if f.BundleBudgetBytes != nil {
		c.bundleBudgetBytes = *f.BundleBudgetBytes
	}
}

func (c *Config) validate() error {
	if c.denseWeight < 0 || c.denseWeight > 1 {
		return fmt.Errorf("dense_weight must be in [0,1], got %g", c.denseWeight)
	}
	if c.relationshipWeight < 0 || c.relationshipWeight > 1 {
		return fmt.Errorf("relationship_weight must be in [0,1], got %g", c.relationshipWeight)
	}
	if c.minSimilarity < 0 || c.minSimilarity > 1 {
		return fmt.Errorf("min_similarity must be in [0,1], got %g", c.minSimilarity)
	}
	if c.maxCandidates <= 0 {
		return fmt.Errorf("max_candidates must be positive, got %d", c.maxCandidates)
	}
	if c.hopLimit < 0 {
		return fmt.Errorf("hop_limit must be non-negative, got %d", c.hopLimit)
	}
	if c.bundleBudgetBytes <= 0 {
		return fmt.Errorf("bundle_budget_bytes must be positive, got %d", c.bundleBudgetBytes)
	}
	return nil
}

// Name returns the config name.
func (c *Config) Name() string { return c.name }

// Version returns the monotonic version number.
func (c *Config) Version() int { return c.version }

// VersionID returns the unique version identifier.
func (c *Config) VersionID() string { return c.versionID }

// DenseWeight returns the dense similarity weight.
func (c *Config) DenseWeight() float64 { return c.denseWeight }

// RelationshipWeight returns the relationship signal weight.
func (c *Config) RelationshipWeight() float64 { return c.relationshipWeight }

// MinSimilarity returns the similarity threshold.
func (c *Config) MinSimilarity() float64 { return c.minSimilarity }

// MaxCandidates returns the per-branch candidate limit.
func (c *Config) MaxCandidates() int { return c.maxCandidates }

// HopLimit returns the relationship expansion hop limit.
func (c *Config) HopLimit() int { return c.hopLimit }

// BundleBudgetBytes returns the context bundle byte budget.
func (c *Config) BundleBudgetBytes() int { return c.bundleBudgetBytes }

// Retired reports whether the config was soft-deleted.
func (c *Config) Retired() bool { return c.retired }

// CreatedAt returns the version creation time.
func (c *Config) CreatedAt() time.Time { return c.createdAt }
