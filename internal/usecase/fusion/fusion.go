package fusion

import (
	"fmt"
	"sort"

	"github.com/materia-cloud/matdex/internal/domain/knowledge"
	"github.com/materia-cloud/matdex/internal/domain/material"
	"github.com/materia-cloud/matdex/internal/domain/search/result"
)

// Weights are the fusion coefficients from the active search config.
type Weights struct {
	DenseWeight        float64
	RelationshipWeight float64
}

// Input carries both branches' outputs into fusion. Materials resolves
// knowledge-branch subject ids to their records; entries whose subject is
// missing from it were already dropped upstream.
type Input struct {
	VectorMatches []material.Match
	Entries       []knowledge.Entry
	Materials     map[string]material.Record
	Edges         []knowledge.Edge
	QueryFilters  map[string]string
}

type candidate struct {
	rec         material.Record
	vectorScore float64
	hasVector   bool
	entryCount  int
}

// Fuse unions both branches' candidates by material id and reranks them.
//
// finalScore = denseWeight*vectorScore + relationshipWeight*relationshipScore.
// A candidate missing from one branch contributes zero for that signal, it
// is never disqualified. The relationship score is the strongest edge
// linking any candidate property to a query filter; no path means zero.
// Output order is deterministic for identical input.
func Fuse(in Input, w Weights) []result.FusionResult {
	candidates := make(map[string]*candidate)

	for i := range in.VectorMatches {
		m := &in.VectorMatches[i]
		candidates[m.Record.ID()] = &candidate{
			rec:         m.Record,
			vectorScore: m.Score,
			hasVector:   true,
		}
	}

	for i := range in.Entries {
		id := in.Entries[i].SubjectMaterialID()
		if c, ok := candidates[id]; ok {
			c.entryCount++
			continue
		}
		rec, ok := in.Materials[id]
		if !ok {
			continue
		}
		candidates[id] = &candidate{rec: rec, entryCount: 1}
	}

	ids := make([]string, 0, len(candidates))
	for id := range candidates {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	results := make([]result.FusionResult, 0, len(ids))
	for _, id := range ids {
		c := candidates[id]
		relScore, relCount := relationshipSignal(c.rec, in.Edges, in.QueryFilters)

		finalScore := w.DenseWeight*c.vectorScore + w.RelationshipWeight*relScore
		if finalScore > 1 {
			finalScore = 1
		}

		results = append(results, result.New(
			id,
			c.rec.MaterialType(),
			c.rec.Content(),
			c.vectorScore,
			relScore,
			finalScore,
			matchReason(c, relCount),
		))
	}

	sort.Slice(results, func(i, j int) bool {
		return result.Less(&results[i], &results[j])
	})
	return results
}

// relationshipSignal returns the strongest edge strength connecting any of
// the candidate's properties to the query's filters, and how many edges
// link at all.
func relationshipSignal(
	rec material.Record, edges []knowledge.Edge, filters map[string]string,
) (float64, int) {
	if len(edges) == 0 || len(filters) == 0 {
		return 0, 0
	}

	var best float64
	var count int
	for name, value := range filters {
		queryProp := knowledge.Property{Name: name, Value: value}
		for propName, propValue := range rec.Properties() {
			candProp := knowledge.Property{Name: propName, Value: propValue}
			for i := range edges {
				if !edges[i].Links(candProp, queryProp) {
					continue
				}
				count++
				if s := edges[i].Strength(); s > best {
					best = s
				}
			}
		}
	}
	return best, count
}

// matchReason explains, deterministically, which signals were non-zero.
func matchReason(c *candidate, relCount int) string {
	var reason string
	if c.hasVector {
		reason = "dense similarity"
	}
	if relCount > 0 {
		noun := "property relationships"
		if relCount == 1 {
			noun = "property relationship"
		}
		if reason != "" {
			return fmt.Sprintf("%s + %d %s", reason, relCount, noun)
		}
		return fmt.Sprintf("%d %s", relCount, noun)
	}
	if reason == "" && c.entryCount > 0 {
		return "knowledge entry match"
	}
	if reason != "" && c.entryCount > 0 {
		return reason + " + knowledge entry match"
	}
	return reason
}
