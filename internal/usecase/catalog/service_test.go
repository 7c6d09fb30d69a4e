package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/materia-cloud/matdex/internal/domain"
	"github.com/materia-cloud/matdex/internal/domain/knowledge"
	"github.com/materia-cloud/matdex/internal/domain/material"
)

// --- Mocks ---

type mockEmbedder struct {
	calls int
	err   error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{
		Vector: domain.NewEmbeddingVector([]float32{0.1}, domain.MethodDense),
	}, nil
}

type mockMaterialWriter struct {
	recs []material.Record
	embs []domain.EmbeddingVector
}

func (m *mockMaterialWriter) Index(
	_ context.Context, recs []material.Record, embs []domain.EmbeddingVector,
) error {
	m.recs = recs
	m.embs = embs
	return nil
}

type mockKnowledgeWriter struct {
	entries []knowledge.Entry
	edges   []knowledge.Edge
}

func (m *mockKnowledgeWriter) PutEntries(_ context.Context, entries []knowledge.Entry) error {
	m.entries = entries
	return nil
}

func (m *mockKnowledgeWriter) PutEdges(_ context.Context, edges []knowledge.Edge) error {
	m.edges = edges
	return nil
}

// --- Tests ---

func TestIndexMaterials(t *testing.T) {
	embed := &mockEmbedder{}
	writer := &mockMaterialWriter{}
	svc := New(embed, writer, &mockKnowledgeWriter{})

	recs := []material.Record{
		material.Reconstruct("m1", "alloy", "steel", nil),
		material.Reconstruct("m2", "alloy", "bronze", nil),
	}
	if err := svc.IndexMaterials(context.Background(), recs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if embed.calls != 2 {
		t.Errorf("embed calls = %d, want one per record", embed.calls)
	}
	if len(writer.recs) != 2 || len(writer.embs) != 2 {
		t.Errorf("indexed %d records / %d embeddings, want 2/2", len(writer.recs), len(writer.embs))
	}
}

func TestIndexMaterials_EmbedFailureAborts(t *testing.T) {
	embed := &mockEmbedder{err: errors.New("provider down")}
	writer := &mockMaterialWriter{}
	svc := New(embed, writer, &mockKnowledgeWriter{})

	recs := []material.Record{material.Reconstruct("m1", "alloy", "steel", nil)}
	if err := svc.IndexMaterials(context.Background(), recs); err == nil {
		t.Fatal("expected error")
	}
	if writer.recs != nil {
		t.Error("records written despite embed failure")
	}
}

func TestIndexMaterials_Empty(t *testing.T) {
	embed := &mockEmbedder{}
	svc := New(embed, &mockMaterialWriter{}, &mockKnowledgeWriter{})

	if err := svc.IndexMaterials(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if embed.calls != 0 {
		t.Error("embedder called for an empty batch")
	}
}

func TestPutKnowledge(t *testing.T) {
	writer := &mockKnowledgeWriter{}
	svc := New(&mockEmbedder{}, &mockMaterialWriter{}, writer)

	entry, err := knowledge.NewEntry("e1", "m1", "fact", 0.8)
	if err != nil {
		t.Fatalf("NewEntry: %v", err)
	}
	edge, err := knowledge.NewEdge(
		knowledge.Property{Name: "base", Value: "iron"},
		knowledge.Property{Name: "corrosion", Value: "high"},
		0.9, knowledge.Symmetric,
	)
	if err != nil {
		t.Fatalf("NewEdge: %v", err)
	}

	if err := svc.PutKnowledge(context.Background(), []knowledge.Entry{entry}, []knowledge.Edge{edge}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(writer.entries) != 1 || len(writer.edges) != 1 {
		t.Errorf("stored %d entries / %d edges, want 1/1", len(writer.entries), len(writer.edges))
	}
}
