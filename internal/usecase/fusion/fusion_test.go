package fusion

import (
	"math"
	"reflect"
	"testing"

	"github.com/materia-cloud/matdex/internal/domain/knowledge"
	"github.com/materia-cloud/matdex/internal/domain/material"
)

func rec(id string, props map[string]string) material.Record {
	return material.Reconstruct(id, "alloy", "content of "+id, props)
}

func entry(id, materialID string, confidence float64) knowledge.Entry {
	return knowledge.Reconstruct(id, materialID, "entry "+id, confidence)
}

func edge(t *testing.T, fromName, fromValue, toName, toValue string, strength float64, d knowledge.Directionality) knowledge.Edge {
	t.Helper()
	e, err := knowledge.NewEdge(
		knowledge.Property{Name: fromName, Value: fromValue},
		knowledge.Property{Name: toName, Value: toValue},
		strength, d,
	)
	if err != nil {
		t.Fatalf("NewEdge: %v", err)
	}
	return e
}

var defaultWeights = Weights{DenseWeight: 0.7, RelationshipWeight: 0.3}

func TestFuse_WeightedRoundTrip(t *testing.T) {
	// vectorScore=0.8, relationshipScore=0.4 with weights 0.7/0.3 -> 0.68.
	in := Input{
		VectorMatches: []material.Match{
			{Record: rec("m1", map[string]string{"density": "high"}), Score: 0.8, Cosine: 0.8},
		},
		Edges: []knowledge.Edge{
			edge(t, "density", "high", "grade", "304", 0.4, knowledge.Symmetric),
		},
		QueryFilters: map[string]string{"grade": "304"},
	}

	results := Fuse(in, defaultWeights)
	if len(results) != 1 {
		t.Fatalf("results count = %d, want 1", len(results))
	}

	r := results[0]
	if r.RelationshipScore() != 0.4 {
		t.Errorf("relationship score = %g, want 0.4", r.RelationshipScore())
	}
	if math.Abs(r.FinalScore()-0.68) > 1e-9 {
		t.Errorf("final score = %g, want 0.68", r.FinalScore())
	}
	if r.MatchReason() != "dense similarity + 1 property relationship" {
		t.Errorf("match reason = %q", r.MatchReason())
	}
}

func TestFuse_MissingSignalIsZeroNotDisqualifying(t *testing.T) {
	in := Input{
		VectorMatches: []material.Match{
			{Record: rec("vec-only", nil), Score: 0.9, Cosine: 0.9},
		},
		Entries:   []knowledge.Entry{entry("e1", "know-only", 0.8)},
		Materials: map[string]material.Record{"know-only": rec("know-only", nil)},
	}

	results := Fuse(in, defaultWeights)
	if len(results) != 2 {
		t.Fatalf("results count = %d, want 2", len(results))
	}

	if results[0].ID() != "vec-only" {
		t.Errorf("results[0] = %q, want vec-only", results[0].ID())
	}
	if results[0].RelationshipScore() != 0 {
		t.Errorf("vector-only relationship score = %g, want 0", results[0].RelationshipScore())
	}
	if results[1].ID() != "know-only" {
		t.Errorf("results[1] = %q, want know-only", results[1].ID())
	}
	if results[1].VectorScore() != 0 {
		t.Errorf("knowledge-only vector score = %g, want 0", results[1].VectorScore())
	}
	if results[1].MatchReason() != "knowledge entry match" {
		t.Errorf("match reason = %q", results[1].MatchReason())
	}
}

func TestFuse_RelationshipScoreIsMaxEdgeStrength(t *testing.T) {
	in := Input{
		VectorMatches: []material.Match{
			{Record: rec("m1", map[string]string{"density": "high", "color": "grey"}), Score: 0.5, Cosine: 0.5},
		},
		Edges: []knowledge.Edge{
			edge(t, "density", "high", "grade", "304", 0.3, knowledge.Symmetric),
			edge(t, "color", "grey", "grade", "304", 0.9, knowledge.Symmetric),
		},
		QueryFilters: map[string]string{"grade": "304"},
	}

	results := Fuse(in, defaultWeights)
	if results[0].RelationshipScore() != 0.9 {
		t.Errorf("relationship score = %g, want max edge strength 0.9", results[0].RelationshipScore())
	}
	if results[0].MatchReason() != "dense similarity + 2 property relationships" {
		t.Errorf("match reason = %q", results[0].MatchReason())
	}
}

func TestFuse_AsymmetricEdgeNotFollowedBackward(t *testing.T) {
	// Edge goes grade->density; the candidate holds density and the query
	// asks for grade, so only a symmetric edge would link them.
	in := Input{
		VectorMatches: []material.Match{
			{Record: rec("m1", map[string]string{"density": "high"}), Score: 0.5, Cosine: 0.5},
		},
		Edges: []knowledge.Edge{
			edge(t, "grade", "304", "density", "high", 0.9, knowledge.Asymmetric),
		},
		QueryFilters: map[string]string{"grade": "304"},
	}

	results := Fuse(in, defaultWeights)
	if results[0].RelationshipScore() != 0 {
		t.Errorf("relationship score = %g, want 0 for backward asymmetric edge", results[0].RelationshipScore())
	}
}

func TestFuse_Deterministic(t *testing.T) {
	in := Input{
		VectorMatches: []material.Match{
			{Record: rec("m2", nil), Score: 0.8, Cosine: 0.8},
			{Record: rec("m1", nil), Score: 0.8, Cosine: 0.8},
			{Record: rec("m3", nil), Score: 0.6, Cosine: 0.6},
		},
		Entries: []knowledge.Entry{entry("e1", "m4", 0.5), entry("e2", "m5", 0.5)},
		Materials: map[string]material.Record{
			"m4": rec("m4", nil),
			"m5": rec("m5", nil),
		},
	}

	first := Fuse(in, defaultWeights)
	for run := 0; run < 10; run++ {
		if got := Fuse(in, defaultWeights); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d produced different order", run)
		}
	}

	// Equal scores fall back to id ascending.
	if first[0].ID() != "m1" || first[1].ID() != "m2" {
		t.Errorf("tie order = [%s %s], want [m1 m2]", first[0].ID(), first[1].ID())
	}
}

func TestFuse_Empty(t *testing.T) {
	results := Fuse(Input{}, defaultWeights)
	if len(results) != 0 {
		t.Errorf("results count = %d, want 0", len(results))
	}
}
