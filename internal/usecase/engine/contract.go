package engine

import (
	"context"
	"time"

	"github.com/materia-cloud/matdex/internal/domain"
	"github.com/materia-cloud/matdex/internal/domain/knowledge"
	"github.com/materia-cloud/matdex/internal/domain/material"
	"github.com/materia-cloud/matdex/internal/domain/search/bundle"
	"github.com/materia-cloud/matdex/internal/domain/search/query"
	"github.com/materia-cloud/matdex/internal/domain/searchcfg"
	"github.com/materia-cloud/matdex/internal/usecase/router"
)

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// VectorSearcher runs the dense similarity branch.
type VectorSearcher interface {
	Search(
		ctx context.Context, emb domain.EmbeddingVector,
		materialType string, properties map[string]string,
		limit int, threshold float64,
		queryText string, denseWeight float64,
	) ([]material.Match, error)
}

// KnowledgeFinder runs the knowledge/relationship branch.
type KnowledgeFinder interface {
	FindKnowledge(
		ctx context.Context, materialIDs []string, queryText string, limit int,
	) ([]knowledge.Entry, map[string]material.Record, error)

	FindRelationships(
		ctx context.Context, materialIDs []string, hopLimit int,
	) ([]knowledge.Edge, error)

	ExpandProperties(
		ctx context.Context, seeds []knowledge.Property, hopLimit int,
	) ([]knowledge.Edge, error)
}

// Decider routes a query to a strategy with per-branch deadlines.
type Decider interface {
	Decide(q *query.Query) router.Decision
}

// BranchGuard wraps branch calls in the backend's circuit breaker.
type BranchGuard interface {
	Do(backend string, fn func() error) error
}

// ConfigProvider supplies the active search config snapshot.
type ConfigProvider interface {
	GetActiveConfig(ctx context.Context, name string) (searchcfg.Config, error)
}

// StageRecorder collects per-stage latency and error aggregates.
type StageRecorder interface {
	RecordLatency(stage string, d time.Duration)
	RecordError(stage string)
}

// Clusterer groups knowledge entries by text similarity.
type Clusterer interface {
	Cluster(
		ctx context.Context, entries []knowledge.Entry, minSimilarity float64,
	) ([]bundle.SemanticCluster, error)
}
