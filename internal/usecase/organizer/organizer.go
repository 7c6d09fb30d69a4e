package organizer

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/materia-cloud/matdex/internal/domain"
	"github.com/materia-cloud/matdex/internal/domain/knowledge"
	"github.com/materia-cloud/matdex/internal/domain/search/bundle"
)

// Embedder vectorizes entry text for pairwise similarity.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Service clusters knowledge entries by text similarity.
type Service struct {
	embed Embedder
}

// New creates a semantic organizer.
func New(embed Embedder) *Service {
	return &Service{embed: embed}
}

// Cluster groups entries by single-link clustering: two entries share a
// cluster when their pairwise cosine similarity exceeds minSimilarity.
// Entries matching nothing form singleton clusters rather than being
// dropped. Each cluster's label is the content of the entry closest to the
// cluster centroid. Output is deterministic for identical input.
func (s *Service) Cluster(
	ctx context.Context, entries []knowledge.Entry, minSimilarity float64,
) ([]bundle.SemanticCluster, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	// Stable processing order regardless of caller ordering.
	sorted := make([]knowledge.Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID() < sorted[j].ID() })

	vectors := make([][]float32, len(sorted))
	for i := range sorted {
		res, err := s.embed.Embed(ctx, sorted[i].Content())
		if err != nil {
			return nil, fmt.Errorf("embed entry %s: %w", sorted[i].ID(), err)
		}
		vectors[i] = res.Vector.Values
	}

	parent := make([]int, len(sorted))
	for i := range parent {
		parent[i] = i
	}

	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if cosine(vectors[i], vectors[j]) > minSimilarity {
				union(parent, i, j)
			}
		}
	}

	groups := make(map[int][]int)
	for i := range sorted {
		root := find(parent, i)
		groups[root] = append(groups[root], i)
	}

	roots := make([]int, 0, len(groups))
	for root := range groups {
		roots = append(roots, root)
	}
	sort.Ints(roots)

	clusters := make([]bundle.SemanticCluster, 0, len(roots))
	for _, root := range roots {
		members := groups[root]

		ids := make([]string, len(members))
		for i, m := range members {
			ids[i] = sorted[m].ID()
		}

		clusters = append(clusters, bundle.SemanticCluster{
			Label:    sorted[centroidNearest(members, vectors)].Content(),
			EntryIDs: ids,
		})
	}
	return clusters, nil
}

// centroidNearest returns the member index closest to the cluster centroid.
// Ties resolve to the earliest member in sorted id order.
func centroidNearest(members []int, vectors [][]float32) int {
	if len(members) == 1 {
		return members[0]
	}

	dim := len(vectors[members[0]])
	centroid := make([]float32, dim)
	for _, m := range members {
		for d, v := range vectors[m] {
			centroid[d] += v
		}
	}
	for d := range centroid {
		centroid[d] /= float32(len(members))
	}

	best := members[0]
	bestSim := math.Inf(-1)
	for _, m := range members {
		if sim := cosine(vectors[m], centroid); sim > bestSim {
			bestSim = sim
			best = m
		}
	}
	return best
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func find(parent []int, i int) int {
	for parent[i] != i {
		parent[i] = parent[parent[i]]
		i = parent[i]
	}
	return i
}

// union attaches the larger root to the smaller so cluster identity stays
// stable across runs.
func union(parent []int, i, j int) {
	ri, rj := find(parent, i), find(parent, j)
	if ri == rj {
		return
	}
	if ri < rj {
		parent[rj] = ri
	} else {
		parent[ri] = rj
	}
}
