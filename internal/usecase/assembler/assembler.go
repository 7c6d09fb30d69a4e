package assembler

import (
	"github.com/materia-cloud/matdex/internal/domain/knowledge"
	"github.com/materia-cloud/matdex/internal/domain/search/bundle"
	"github.com/materia-cloud/matdex/internal/domain/search/result"
)

// Assemble packs fused results into a byte-bounded context bundle.
//
// Packing is greedy in ranking order: each result contributes its top-1
// knowledge snippet (highest confidence, id ascending on ties) or, lacking
// entries, its own content. The first item that would overflow the budget
// stops packing and sets Truncated; items are never reordered to fit,
// so the top of the bundle is always the most relevant result.
func Assemble(
	results []result.FusionResult, entries []knowledge.Entry, budgetBytes int,
) bundle.ContextBundle {
	snippets := topSnippets(entries)

	b := bundle.ContextBundle{}
	for i := range results {
		r := &results[i]

		snippet, ok := snippets[r.ID()]
		if !ok {
			snippet = r.Content()
		}

		size := len(r.ID()) + len(snippet)
		if b.SizeBytes+size > budgetBytes {
			b.Truncated = true
			break
		}

		b.Items = append(b.Items, bundle.Item{MaterialID: r.ID(), Snippet: snippet})
		b.SizeBytes += size
	}
	return b
}

// topSnippets picks each material's best entry content.
func topSnippets(entries []knowledge.Entry) map[string]string {
	best := make(map[string]*knowledge.Entry, len(entries))
	for i := range entries {
		e := &entries[i]
		cur, ok := best[e.SubjectMaterialID()]
		if !ok {
			best[e.SubjectMaterialID()] = e
			continue
		}
		if e.Confidence() > cur.Confidence() ||
			(e.Confidence() == cur.Confidence() && e.ID() < cur.ID()) {
			best[e.SubjectMaterialID()] = e
		}
	}

	out := make(map[string]string, len(best))
	for id, e := range best {
		out[id] = e.Content()
	}
	return out
}
