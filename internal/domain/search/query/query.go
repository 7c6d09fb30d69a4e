package query

import (
	"fmt"
	"maps"

	"github.com/materia-cloud/matdex/internal/domain"
	"github.com/materia-cloud/matdex/internal/domain/search/strategy"
)

// Query parameter limits.
const (
	// MaxTextLength is the maximum allowed query text length.
	MaxTextLength = 4096
	DefaultLimit  = 10
	MaxLimit      = 100
)

// Query is a validated, immutable search query.
type Query struct {
	text         string
	embedding    domain.EmbeddingVector
	materialType string
	filters      map[string]string
	limit        int
	hint         strategy.Hint
	withBundle   bool
	withClusters bool
}

// New validates and normalizes search query parameters.
// Either text or a precomputed embedding must be present.
// Defaults: hint=auto, limit=10. Filters are copied; the query never
// observes later mutation of the caller's map.
func New(
	text string,
	embedding domain.EmbeddingVector,
	materialType string,
	filters map[string]string,
	limit int,
	hint strategy.Hint,
	withBundle, withClusters bool,
) (Query, error) {
	if text == "" && embedding.IsZero() {
		return Query{}, fmt.Errorf("%w: query text or embedding is required", domain.ErrInvalidQuery)
	}
	if len(text) > MaxTextLength {
		return Query{}, fmt.Errorf("%w: query text too long (max %d chars)", domain.ErrInvalidQuery, MaxTextLength)
	}
	if hint == "" {
		hint = strategy.HintAuto
	}
	if !hint.IsValid() {
		return Query{}, fmt.Errorf("%w: unknown strategy hint %q", domain.ErrInvalidQuery, hint)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	var copied map[string]string
	if len(filters) > 0 {
		copied = make(map[string]string, len(filters))
		maps.Copy(copied, filters)
	}

	return Query{
		text:         text,
		embedding:    embedding,
		materialType: materialType,
		filters:      copied,
		limit:        limit,
		hint:         hint,
		withBundle:   withBundle,
		withClusters: withClusters,
	}, nil
}

// Text returns the free-text query.
func (q *Query) Text() string { return q.text }

// Embedding returns the precomputed query embedding, zero when absent.
func (q *Query) Embedding() domain.EmbeddingVector { return q.embedding }

// MaterialType returns the material type filter, empty when unset.
func (q *Query) MaterialType() string { return q.materialType }

// Filters returns the structured property filters.
func (q *Query) Filters() map[string]string { return q.filters }

// Limit returns the maximum number of fused results.
func (q *Query) Limit() int { return q.limit }

// Hint returns the caller's strategy preference.
func (q *Query) Hint() strategy.Hint { return q.hint }

// WithBundle reports whether a context bundle was requested.
func (q *Query) WithBundle() bool { return q.withBundle }

// WithClusters reports whether semantic clustering was requested.
func (q *Query) WithClusters() bool { return q.withClusters }

// HasRelationshipSignal reports whether the query carries structured filters
// the relationship graph can expand from.
func (q *Query) HasRelationshipSignal() bool {
	return q.materialType != "" || len(q.filters) > 0
}
