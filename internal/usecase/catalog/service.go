package catalog

import (
	"context"
	"fmt"

	"github.com/materia-cloud/matdex/internal/domain"
	"github.com/materia-cloud/matdex/internal/domain/knowledge"
	"github.com/materia-cloud/matdex/internal/domain/material"
)

// Service ingests materials and knowledge into the store.
type Service struct {
	embed     Embedder
	materials MaterialWriter
	know      KnowledgeWriter
}

// New creates a catalog service.
func New(embed Embedder, materials MaterialWriter, know KnowledgeWriter) *Service {
	return &Service{embed: embed, materials: materials, know: know}
}

// IndexMaterials embeds each record's content and stores the batch.
func (s *Service) IndexMaterials(ctx context.Context, recs []material.Record) error {
	if len(recs) == 0 {
		return nil
	}

	embs := make([]domain.EmbeddingVector, len(recs))
	for i := range recs {
		res, err := s.embed.Embed(ctx, recs[i].Content())
		if err != nil {
			return fmt.Errorf("embed material %s: %w", recs[i].ID(), err)
		}
		embs[i] = res.Vector
	}

	if err := s.materials.Index(ctx, recs, embs); err != nil {
		return fmt.Errorf("index materials: %w", err)
	}
	return nil
}

// PutKnowledge stores entries and edges in one call.
func (s *Service) PutKnowledge(
	ctx context.Context, entries []knowledge.Entry, edges []knowledge.Edge,
) error {
	if err := s.know.PutEntries(ctx, entries); err != nil {
		return fmt.Errorf("put entries: %w", err)
	}
	if err := s.know.PutEdges(ctx, edges); err != nil {
		return fmt.Errorf("put edges: %w", err)
	}
	return nil
}
