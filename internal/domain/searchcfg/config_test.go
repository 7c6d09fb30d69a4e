package searchcfg

import (
	"testing"
	"time"
)

func f64(v float64) *float64 { return &v }
func i(v int) *int           { return &v }

func TestNew_Defaults(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	c, err := New("default", "v-1", Fields{}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Version() != 1 {
		t.Errorf("version = %d, want 1", c.Version())
	}
	if c.DenseWeight() != DefaultDenseWeight {
		t.Errorf("dense weight = %g, want %g", c.DenseWeight(), DefaultDenseWeight)
	}
	if c.RelationshipWeight() != DefaultRelationshipWeight {
		t.Errorf("relationship weight = %g, want %g", c.RelationshipWeight(), DefaultRelationshipWeight)
	}
	if c.HopLimit() != DefaultHopLimit {
		t.Errorf("hop limit = %d, want %d", c.HopLimit(), DefaultHopLimit)
	}
}

func TestNew_Validation(t *testing.T) {
	now := time.Now()

	if _, err := New("", "v-1", Fields{}, now); err == nil {
		t.Error("expected error for empty name")
	}
	if _, err := New("x", "v-1", Fields{DenseWeight: f64(1.5)}, now); err == nil {
		t.Error("expected error for dense weight > 1")
	}
	if _, err := New("x", "v-1", Fields{MinSimilarity: f64(-0.1)}, now); err == nil {
		t.Error("expected error for negative min similarity")
	}
	if _, err := New("x", "v-1", Fields{MaxCandidates: i(0)}, now); err == nil {
		t.Error("expected error for zero max candidates")
	}
	if _, err := New("x", "v-1", Fields{BundleBudgetBytes: i(-1)}, now); err == nil {
		t.Error("expected error for negative bundle budget")
	}
}

func TestNextVersion(t *testing.T) {
	now := time.Now()
	v1, _ := New("default", "v-1", Fields{}, now)

	v2, err := v1.NextVersion("v-2", Fields{DenseWeight: f64(0.9), RelationshipWeight: f64(0.1)}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if v2.Version() != 2 {
		t.Errorf("version = %d, want 2", v2.Version())
	}
	if v2.DenseWeight() != 0.9 {
		t.Errorf("dense weight = %g, want 0.9", v2.DenseWeight())
	}
	// Unset fields carry over from the previous version.
	if v2.MinSimilarity() != DefaultMinSimilarity {
		t.Errorf("min similarity = %g, want %g", v2.MinSimilarity(), DefaultMinSimilarity)
	}
	// The receiver is never mutated.
	if v1.DenseWeight() != DefaultDenseWeight || v1.Version() != 1 {
		t.Error("NextVersion mutated the receiver")
	}
}

func TestNextVersion_IdenticalFieldsNoDrift(t *testing.T) {
	now := time.Now()
	v1, _ := New("default", "v-1", Fields{}, now)

	fields := Fields{DenseWeight: f64(0.6), MaxCandidates: i(25)}
	v2, _ := v1.NextVersion("v-2", fields, now)
	v3, _ := v2.NextVersion("v-3", fields, now)

	if v2.DenseWeight() != v3.DenseWeight() ||
		v2.RelationshipWeight() != v3.RelationshipWeight() ||
		v2.MinSimilarity() != v3.MinSimilarity() ||
		v2.MaxCandidates() != v3.MaxCandidates() ||
		v2.HopLimit() != v3.HopLimit() ||
		v2.BundleBudgetBytes() != v3.BundleBudgetBytes() {
		t.Error("identical updates produced different field values")
	}
	if v3.Version() != 3 {
		t.Errorf("version = %d, want 3", v3.Version())
	}
}

func TestRetire(t *testing.T) {
	now := time.Now()
	v1, _ := New("default", "v-1", Fields{}, now)

	retired := v1.Retire()
	if !retired.Retired() {
		t.Error("Retire did not mark the config retired")
	}
	if v1.Retired() {
		t.Error("Retire mutated the receiver")
	}

	// A new version after retirement clears the marker.
	v2, err := retired.NextVersion("v-2", Fields{}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v2.Retired() {
		t.Error("NextVersion kept the retired marker")
	}
}
