package bundle

// Item pairs a material with its best knowledge snippet.
type Item struct {
	MaterialID string
	Snippet    string
}

// ContextBundle is a size-bounded, rank-preserving packaging of results for
// downstream consumption. Items appear in fused ranking order; Truncated is
// set the moment an item was dropped for size reasons.
type ContextBundle struct {
	Items     []Item
	SizeBytes int
	Truncated bool
}

// SemanticCluster groups knowledge entries whose pairwise similarity exceeds
// the clustering threshold. Label is the content of the entry closest to the
// cluster centroid.
type SemanticCluster struct {
	Label    string
	EntryIDs []string
}
