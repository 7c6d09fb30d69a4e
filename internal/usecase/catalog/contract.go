package catalog

import (
	"context"

	"github.com/materia-cloud/matdex/internal/domain"
	"github.com/materia-cloud/matdex/internal/domain/knowledge"
	"github.com/materia-cloud/matdex/internal/domain/material"
)

// Embedder vectorizes material content for indexing.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// MaterialWriter stores material records with their embeddings.
type MaterialWriter interface {
	Index(ctx context.Context, recs []material.Record, embs []domain.EmbeddingVector) error
}

// KnowledgeWriter stores knowledge entries and relationship edges.
type KnowledgeWriter interface {
	PutEntries(ctx context.Context, entries []knowledge.Entry) error
	PutEdges(ctx context.Context, edges []knowledge.Edge) error
}
