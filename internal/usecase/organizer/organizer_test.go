package organizer

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/materia-cloud/matdex/internal/domain"
	"github.com/materia-cloud/matdex/internal/domain/knowledge"
)

// --- Mocks ---

type mockEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{
		Vector: domain.NewEmbeddingVector(m.vectors[text], domain.MethodDense),
	}, nil
}

func entry(id, content string) knowledge.Entry {
	return knowledge.Reconstruct(id, "m-"+id, content, 0.9)
}

// --- Tests ---

func TestCluster_SimilarEntriesJoin(t *testing.T) {
	// a and b are near-identical (similarity ~0.95+); c points elsewhere.
	embed := &mockEmbedder{vectors: map[string][]float32{
		"rust resistant": {1, 0.05, 0},
		"rust proof":     {1, 0.1, 0},
		"melts at 1500c": {0, 0.1, 1},
	}}
	svc := New(embed)

	entries := []knowledge.Entry{
		entry("e1", "rust resistant"),
		entry("e2", "rust proof"),
		entry("e3", "melts at 1500c"),
	}

	clusters, err := svc.Cluster(context.Background(), entries, 0.8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(clusters) != 2 {
		t.Fatalf("cluster count = %d, want 2", len(clusters))
	}

	if !reflect.DeepEqual(clusters[0].EntryIDs, []string{"e1", "e2"}) {
		t.Errorf("clusters[0] = %v, want [e1 e2]", clusters[0].EntryIDs)
	}
	if !reflect.DeepEqual(clusters[1].EntryIDs, []string{"e3"}) {
		t.Errorf("clusters[1] = %v, want singleton [e3]", clusters[1].EntryIDs)
	}
	if clusters[1].Label != "melts at 1500c" {
		t.Errorf("singleton label = %q, want its own content", clusters[1].Label)
	}
}

func TestCluster_LowSimilarityStaysSingleton(t *testing.T) {
	embed := &mockEmbedder{vectors: map[string][]float32{
		"a": {1, 0, 0},
		"b": {0, 1, 0},
	}}
	svc := New(embed)

	clusters, err := svc.Cluster(context.Background(),
		[]knowledge.Entry{entry("e1", "a"), entry("e2", "b")}, 0.8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(clusters) != 2 {
		t.Fatalf("cluster count = %d, want 2 singletons", len(clusters))
	}
}

func TestCluster_DeterministicAcrossInputOrder(t *testing.T) {
	embed := &mockEmbedder{vectors: map[string][]float32{
		"a": {1, 0.05, 0},
		"b": {1, 0.1, 0},
		"c": {0, 0, 1},
	}}
	svc := New(embed)

	forward := []knowledge.Entry{entry("e1", "a"), entry("e2", "b"), entry("e3", "c")}
	backward := []knowledge.Entry{entry("e3", "c"), entry("e2", "b"), entry("e1", "a")}

	c1, err := svc.Cluster(context.Background(), forward, 0.8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c2, err := svc.Cluster(context.Background(), backward, 0.8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(c1, c2) {
		t.Errorf("input order changed clustering:\nforward:  %+v\nbackward: %+v", c1, c2)
	}
}

func TestCluster_EmbedErrorPropagates(t *testing.T) {
	svc := New(&mockEmbedder{err: errors.New("provider down")})

	_, err := svc.Cluster(context.Background(), []knowledge.Entry{entry("e1", "a")}, 0.8)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestCluster_Empty(t *testing.T) {
	svc := New(&mockEmbedder{})
	clusters, err := svc.Cluster(context.Background(), nil, 0.8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if clusters != nil {
		t.Errorf("clusters = %v, want nil", clusters)
	}
}
