package result

// FusionResult is a single fused, reranked search hit.
type FusionResult struct {
	id                string
	materialType      string
	content           string
	vectorScore       float64
	relationshipScore float64
	finalScore        float64
	matchReason       string
}

// New creates a fusion result.
func New(
	id, materialType, content string,
	vectorScore, relationshipScore, finalScore float64,
	matchReason string,
) FusionResult {
	return FusionResult{
		id:                id,
		materialType:      materialType,
		content:           content,
		vectorScore:       vectorScore,
		relationshipScore: relationshipScore,
		finalScore:        finalScore,
		matchReason:       matchReason,
	}
}

// ID returns the material identifier.
func (r *FusionResult) ID() string { return r.id }

// MaterialType returns the material type tag.
func (r *FusionResult) MaterialType() string { return r.materialType }

// Content returns the material content snippet.
func (r *FusionResult) Content() string { return r.content }

// VectorScore returns the dense similarity contribution in [0,1].
func (r *FusionResult) VectorScore() float64 { return r.vectorScore }

// RelationshipScore returns the relationship contribution in [0,1].
func (r *FusionResult) RelationshipScore() float64 { return r.relationshipScore }

// FinalScore returns the weighted fused score in [0,1].
func (r *FusionResult) FinalScore() float64 { return r.finalScore }

// MatchReason explains which signals contributed to the final score.
func (r *FusionResult) MatchReason() string { return r.matchReason }

// Less orders results by final score descending, then vector score
// descending, then id ascending. The id tie-break keeps identical inputs
// producing identical output order.
func Less(a, b *FusionResult) bool {
	if a.finalScore != b.finalScore {
		return a.finalScore > b.finalScore
	}
	if a.vectorScore != b.vectorScore {
		return a.vectorScore > b.vectorScore
	}
	return a.id < b.id
}
