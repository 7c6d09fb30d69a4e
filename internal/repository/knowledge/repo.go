package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/materia-cloud/matdex/internal/db"
	"github.com/materia-cloud/matdex/internal/domain"
	domkn "github.com/materia-cloud/matdex/internal/domain/knowledge"
	"github.com/materia-cloud/matdex/internal/domain/material"
	"github.com/materia-cloud/matdex/internal/metrics"
)

// Key layout constants.
const (
	entryKeyPrefix    = domain.KeyPrefix + "knowledge:"
	entryIndexName    = domain.KeyPrefix + "knowledge:idx"
	backIndexPrefix   = domain.KeyPrefix + "material_entries:"
	relKeyPrefix      = domain.KeyPrefix + "rel:"
	materialKeyPrefix = domain.KeyPrefix + "material:"

	fieldMaterialID = "material_id"
	fieldContent    = "__content"
	fieldConfidence = "confidence"
)

// store is the consumer interface for knowledge operations.
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	SAdd(ctx context.Context, key string, members ...string) error
	SMembersMulti(ctx context.Context, keys []string) ([][]string, error)
	SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
}

// Repo reads and writes knowledge entries and relationship edges.
//
// The material↔entry link is kept as an explicit back-index
// (material id → entry id set) rather than mutual pointers, so both
// directions traverse in O(1) without reference cycles.
type Repo struct {
	store  store
	logger *zap.Logger
}

// New creates a knowledge repository.
func New(s store, logger *zap.Logger) *Repo {
	return &Repo{store: s, logger: logger}
}

// EnsureIndex creates the knowledge FT index if it does not exist.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	def, err := db.NewIndex(entryIndexName).
		Prefix(entryKeyPrefix).
		Tag(fieldMaterialID).
		Text(fieldContent).
		Build()
	if err != nil {
		return fmt.Errorf("build knowledge index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && err != db.ErrIndexExists {
		return fmt.Errorf("create knowledge index: %w", err)
	}
	return nil
}

// PutEntries stores entries and maintains the material back-index.
func (r *Repo) PutEntries(ctx context.Context, entries []domkn.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, len(entries))
	for i := range entries {
		e := &entries[i]
		items[i] = db.HashSetItem{
			Key: entryKeyPrefix + e.ID(),
			Fields: map[string]string{
				fieldMaterialID: e.SubjectMaterialID(),
				fieldContent:    e.Content(),
				fieldConfidence: strconv.FormatFloat(e.Confidence(), 'g', -1, 64),
			},
		}
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("put entries: %w", err)
	}

	for i := range entries {
		e := &entries[i]
		if err := r.store.SAdd(ctx, backIndexPrefix+e.SubjectMaterialID(), e.ID()); err != nil {
			return fmt.Errorf("link entry %s: %w", e.ID(), err)
		}
	}
	return nil
}

// PutEdges stores relationship edges in the property adjacency sets.
// Symmetric edges are reachable from both endpoints; asymmetric edges
// only from their source property.
func (r *Repo) PutEdges(ctx context.Context, edges []domkn.Edge) error {
	for i := range edges {
		e := &edges[i]
		encoded, err := encodeEdge(e)
		if err != nil {
			return fmt.Errorf("encode edge: %w", err)
		}
		if err := r.store.SAdd(ctx, relKey(e.From()), encoded); err != nil {
			return fmt.Errorf("put edge: %w", err)
		}
		if e.Directionality() == domkn.Symmetric {
			if err := r.store.SAdd(ctx, relKey(e.To()), encoded); err != nil {
				return fmt.Errorf("put edge: %w", err)
			}
		}
	}
	return nil
}

// FindKnowledge returns entries for the given materials plus entries whose
// content matches the query text, ranked by confidence. Each returned
// entry's subject material is resolved and returned alongside; entries with
// dangling references are logged and dropped, never surfaced.
func (r *Repo) FindKnowledge(
	ctx context.Context, materialIDs []string, queryText string, limit int,
) ([]domkn.Entry, map[string]material.Record, error) {
	entryIDs, err := r.collectEntryIDs(ctx, materialIDs, queryText, limit)
	if err != nil {
		return nil, nil, err
	}
	if len(entryIDs) == 0 {
		return nil, nil, nil
	}

	keys := make([]string, len(entryIDs))
	for i, id := range entryIDs {
		keys[i] = entryKeyPrefix + id
	}
	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, nil, fmt.Errorf("load entries: %w", err)
	}

	entries := make([]domkn.Entry, 0, len(hashes))
	for i, fields := range hashes {
		if len(fields) == 0 {
			continue // entry deleted since indexed
		}
		entries = append(entries, r.parseEntry(entryIDs[i], fields))
	}

	entries, materials, err := r.resolveSubjects(ctx, entries)
	if err != nil {
		return nil, nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Confidence() != entries[j].Confidence() {
			return entries[i].Confidence() > entries[j].Confidence()
		}
		return entries[i].ID() < entries[j].ID()
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}

	return entries, materials, nil
}

// FindRelationships expands relationship edges around the given materials'
// properties, following at most hopLimit hops.
func (r *Repo) FindRelationships(
	ctx context.Context, materialIDs []string, hopLimit int,
) ([]domkn.Edge, error) {
	if len(materialIDs) == 0 {
		return nil, nil
	}

	keys := make([]string, len(materialIDs))
	for i, id := range materialIDs {
		keys[i] = materialKeyPrefix + id
	}
	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("load materials: %w", err)
	}

	var seeds []domkn.Property
	for _, fields := range hashes {
		for _, part := range strings.Split(fields["__props"], ",") {
			if k, v, ok := strings.Cut(part, "="); ok {
				seeds = append(seeds, domkn.Property{Name: k, Value: v})
			}
		}
	}

	return r.ExpandProperties(ctx, seeds, hopLimit)
}

// ExpandProperties walks the property adjacency sets breadth-first from the
// seed properties, never following edges past hopLimit.
func (r *Repo) ExpandProperties(
	ctx context.Context, seeds []domkn.Property, hopLimit int,
) ([]domkn.Edge, error) {
	if len(seeds) == 0 || hopLimit <= 0 {
		return nil, nil
	}

	visited := make(map[domkn.Property]bool, len(seeds))
	frontier := make([]domkn.Property, 0, len(seeds))
	for _, p := range seeds {
		if !visited[p] {
			visited[p] = true
			frontier = append(frontier, p)
		}
	}

	seen := make(map[string]bool)
	var edges []domkn.Edge

	for hop := 0; hop < hopLimit && len(frontier) > 0; hop++ {
		keys := make([]string, len(frontier))
		for i, p := range frontier {
			keys[i] = relKey(p)
		}
		memberSets, err := r.store.SMembersMulti(ctx, keys)
		if err != nil {
			return nil, fmt.Errorf("expand relationships: %w", err)
		}

		var next []domkn.Property
		for _, members := range memberSets {
			sort.Strings(members) // set order is unspecified; keep expansion deterministic
			for _, m := range members {
				if seen[m] {
					continue
				}
				seen[m] = true

				edge, err := decodeEdge(m)
				if err != nil {
					r.logger.Warn("Dropping malformed relationship edge", zap.Error(err))
					continue
				}
				edges = append(edges, edge)

				for _, p := range []domkn.Property{edge.From(), edge.To()} {
					if !visited[p] {
						visited[p] = true
						next = append(next, p)
					}
				}
			}
		}
		frontier = next
	}

	return edges, nil
}

// collectEntryIDs unions the back-index hits for the given materials with
// FT text search hits for the query, deduplicated and sorted.
func (r *Repo) collectEntryIDs(
	ctx context.Context, materialIDs []string, queryText string, limit int,
) ([]string, error) {
	idSet := make(map[string]bool)

	if len(materialIDs) > 0 {
		keys := make([]string, len(materialIDs))
		for i, id := range materialIDs {
			keys[i] = backIndexPrefix + id
		}
		sets, err := r.store.SMembersMulti(ctx, keys)
		if err != nil {
			return nil, fmt.Errorf("back-index lookup: %w", err)
		}
		for _, members := range sets {
			for _, id := range members {
				idSet[id] = true
			}
		}
	}

	if queryText != "" {
		sr, err := r.store.SearchText(ctx, &db.TextQuery{
			IndexName: entryIndexName,
			TextField: fieldContent,
			Text:      queryText,
			TopK:      limit,
		})
		if err != nil {
			return nil, fmt.Errorf("knowledge text search: %w", err)
		}
		if sr != nil {
			for _, e := range sr.Entries {
				idSet[strings.TrimPrefix(e.Key, entryKeyPrefix)] = true
			}
		}
	}

	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// resolveSubjects drops entries whose subject material no longer resolves
// and returns the surviving entries with their materials.
func (r *Repo) resolveSubjects(
	ctx context.Context, entries []domkn.Entry,
) ([]domkn.Entry, map[string]material.Record, error) {
	if len(entries) == 0 {
		return nil, nil, nil
	}

	subjectIDs := make([]string, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for i := range entries {
		id := entries[i].SubjectMaterialID()
		if !seen[id] {
			seen[id] = true
			subjectIDs = append(subjectIDs, id)
		}
	}

	keys := make([]string, len(subjectIDs))
	for i, id := range subjectIDs {
		keys[i] = materialKeyPrefix + id
	}
	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve subjects: %w", err)
	}

	materials := make(map[string]material.Record, len(subjectIDs))
	for i, fields := range hashes {
		if len(fields) == 0 {
			continue
		}
		id := subjectIDs[i]
		materials[id] = material.Reconstruct(
			id, fields["__type"], fields["__content"], decodeProps(fields["__props"]))
	}

	kept := entries[:0]
	for i := range entries {
		if _, ok := materials[entries[i].SubjectMaterialID()]; !ok {
			r.logger.Warn("Dropping knowledge entry with dangling material reference",
				zap.String("entry_id", entries[i].ID()),
				zap.String("material_id", entries[i].SubjectMaterialID()))
			continue
		}
		kept = append(kept, entries[i])
	}

	return kept, materials, nil
}

func (r *Repo) parseEntry(id string, fields map[string]string) domkn.Entry {
	confidence, err := strconv.ParseFloat(fields[fieldConfidence], 64)
	if err != nil {
		confidence = 0
	}
	clamped, wasOut := domain.ClampScore(confidence)
	if wasOut {
		metrics.ScoreClampTotal.WithLabelValues("knowledge").Inc()
		r.logger.Warn("Clamped out-of-range entry confidence",
			zap.String("entry_id", id), zap.Float64("raw", confidence))
	}
	return domkn.Reconstruct(id, fields[fieldMaterialID], fields[fieldContent], clamped)
}

func relKey(p domkn.Property) string {
	return relKeyPrefix + p.Name + "=" + p.Value
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

// edgeDTO is the stored JSON form of a relationship edge.
type edgeDTO struct {
	FromName  string  `json:"from_name"`
	FromValue string  `json:"from_value"`
	ToName    string  `json:"to_name"`
	ToValue   string  `json:"to_value"`
	Strength  float64 `json:"strength"`
	Direction string  `json:"direction"`
}

func encodeEdge(e *domkn.Edge) (string, error) {
	data, err := json.Marshal(edgeDTO{
		FromName:  e.From().Name,
		FromValue: e.From().Value,
		ToName:    e.To().Name,
		ToValue:   e.To().Value,
		Strength:  e.Strength(),
		Direction: string(e.Directionality()),
	})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeEdge(s string) (domkn.Edge, error) {
	var dto edgeDTO
	if err := json.Unmarshal([]byte(s), &dto); err != nil {
		return domkn.Edge{}, err
	}
	strength, wasOut := domain.ClampScore(dto.Strength)
	if wasOut {
		metrics.ScoreClampTotal.WithLabelValues("relationship").Inc()
	}
	return domkn.ReconstructEdge(
		domkn.Property{Name: dto.FromName, Value: dto.FromValue},
		domkn.Property{Name: dto.ToName, Value: dto.ToValue},
		strength,
		domkn.Directionality(dto.Direction),
	), nil
}
