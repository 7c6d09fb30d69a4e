package vector

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/materia-cloud/matdex/internal/db"
	"github.com/materia-cloud/matdex/internal/domain"
	"github.com/materia-cloud/matdex/internal/domain/material"
	"github.com/materia-cloud/matdex/internal/metrics"
)

// Key layout constants.
const (
	keyPrefix = domain.KeyPrefix + "material:"
	indexName = domain.KeyPrefix + "materials:idx"

	fieldContent = "__content"
	fieldType    = "__type"
	fieldProps   = "__props"
	fieldVector  = "vector"
)

// store is the consumer interface for vector search operations.
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	SupportsTextSearch(ctx context.Context) bool
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
}

// Repo runs material similarity search against the FT index.
type Repo struct {
	store  store
	logger *zap.Logger
}

// New creates a vector search repository.
func New(s store, logger *zap.Logger) *Repo {
	return &Repo{store: s, logger: logger}
}

// EnsureIndex creates the material FT index if it does not exist.
func (r *Repo) EnsureIndex(ctx context.Context, dim, hnswM, hnswEFConstruct int) error {
	def, err := db.NewIndex(indexName).
		Prefix(keyPrefix).
		Tag(fieldType).
		Tag(fieldProps).
		Text(fieldContent).
		VectorHNSW(fieldVector, dim, db.DistanceCosine, hnswM, hnswEFConstruct).
		Build()
	if err != nil {
		return fmt.Errorf("build material index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && err != db.ErrIndexExists {
		return fmt.Errorf("create material index: %w", err)
	}
	return nil
}

// Index stores material records with their embeddings in one pipelined write.
func (r *Repo) Index(ctx context.Context, recs []material.Record, embs []domain.EmbeddingVector) error {
	if len(recs) != len(embs) {
		return fmt.Errorf("records/embeddings length mismatch: %d vs %d", len(recs), len(embs))
	}

	items := make([]db.HashSetItem, len(recs))
	for i := range recs {
		rec := &recs[i]
		fields := map[string]string{
			fieldContent: rec.Content(),
			fieldType:    rec.MaterialType(),
			fieldVector:  vectorToBytes(embs[i].Values),
		}
		if props := encodeProps(rec.Properties()); props != "" {
			fields[fieldProps] = props
		}
		items[i] = db.HashSetItem{Key: keyPrefix + rec.ID(), Fields: fields}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("index materials: %w", err)
	}
	return nil
}

// Search runs KNN similarity search, optionally blended with a lexical BM25
// signal: score = denseWeight*cosine + (1-denseWeight)*lexical. Filters are
// applied inside the FT query, before any scoring. Candidates below threshold
// are excluded; zero matches is an empty slice, not an error.
func (r *Repo) Search(
	ctx context.Context,
	emb domain.EmbeddingVector,
	materialType string,
	properties map[string]string,
	limit int,
	threshold float64,
	queryText string,
	denseWeight float64,
) ([]material.Match, error) {
	if emb.IsZero() {
		return nil, fmt.Errorf("embedding is required")
	}

	tags := buildTags(materialType, properties)

	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    indexName,
		Vector:       emb.Values,
		K:            limit,
		Tags:         tags,
		ReturnFields: []string{fieldContent, fieldType, fieldProps, "__vector_score"},
	})
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}
	if sr == nil || len(sr.Entries) == 0 {
		return nil, nil
	}

	lexical := r.lexicalScores(ctx, queryText, tags, limit, denseWeight)

	matches := make([]material.Match, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		id := strings.TrimPrefix(entry.Key, keyPrefix)

		cosine, clamped := domain.ClampScore(entry.Score)
		if clamped {
			metrics.ScoreClampTotal.WithLabelValues("vector").Inc()
			r.logger.Warn("Clamped out-of-range vector score",
				zap.String("material_id", id), zap.Float64("raw", entry.Score))
		}

		score := cosine
		if lexical != nil {
			score = denseWeight*cosine + (1-denseWeight)*lexical[id]
		}

		if score < threshold {
			continue
		}

		rec := material.Reconstruct(
			id,
			entry.Fields[fieldType],
			entry.Fields[fieldContent],
			decodeProps(entry.Fields[fieldProps]),
		)
		matches = append(matches, material.Match{Record: rec, Score: score, Cosine: cosine})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].Cosine != matches[j].Cosine {
			return matches[i].Cosine > matches[j].Cosine
		}
		return matches[i].Record.ID() < matches[j].Record.ID()
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// lexicalScores returns per-material BM25 scores normalized to [0,1], or nil
// when blending is disabled or unsupported. A lexical failure degrades to
// pure cosine scoring rather than failing the branch.
func (r *Repo) lexicalScores(
	ctx context.Context, queryText string, tags []db.TagCondition, limit int, denseWeight float64,
) map[string]float64 {
	if queryText == "" || denseWeight >= 1 || !r.store.SupportsTextSearch(ctx) {
		return nil
	}

	sr, err := r.store.SearchText(ctx, &db.TextQuery{
		IndexName: indexName,
		TextField: fieldContent,
		Text:      queryText,
		Tags:      tags,
		TopK:      limit,
	})
	if err != nil {
		r.logger.Warn("Lexical blend unavailable, using cosine only", zap.Error(err))
		return nil
	}
	if sr == nil || len(sr.Entries) == 0 {
		return map[string]float64{}
	}

	var maxScore float64
	for _, e := range sr.Entries {
		if e.Score > maxScore {
			maxScore = e.Score
		}
	}
	if maxScore <= 0 {
		return map[string]float64{}
	}

	out := make(map[string]float64, len(sr.Entries))
	for _, e := range sr.Entries {
		out[strings.TrimPrefix(e.Key, keyPrefix)] = e.Score / maxScore
	}
	return out
}

func buildTags(materialType string, properties map[string]string) []db.TagCondition {
	var tags []db.TagCondition
	if materialType != "" {
		tags = append(tags, db.TagCondition{Field: fieldType, Value: materialType})
	}
	for _, k := range sortedKeys(properties) {
		tags = append(tags, db.TagCondition{Field: fieldProps, Value: k + "=" + properties[k]})
	}
	return tags
}

// encodeProps renders properties as a comma-joined TAG value list, sorted by
// key so identical inputs always produce identical stored fields.
func encodeProps(props map[string]string) string {
	if len(props) == 0 {
		return ""
	}
	parts := make([]string, 0, len(props))
	for _, k := range sortedKeys(props) {
		parts = append(parts, k+"="+props[k])
	}
	return strings.Join(parts, ",")
}

func decodeProps(s string) map[string]string {
	if s == "" {
		return nil
	}
	props := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		if k, v, ok := strings.Cut(part, "="); ok {
			props[k] = v
		}
	}
	return props
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
