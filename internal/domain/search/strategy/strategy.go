package strategy

// Strategy is a terminal routing choice for a query.
type Strategy string

// Routing strategies.
const (
	// DenseOnly queries the vector store only.
	DenseOnly Strategy = "dense_only"
	// KnowledgeOnly queries the knowledge/relationship store only.
	KnowledgeOnly Strategy = "knowledge_only"
	// Hybrid queries both and fuses the results.
	Hybrid Strategy = "hybrid"
)

// Hint is the caller's strategy preference on a query.
type Hint string

// Strategy hints.
const (
	HintAuto      Hint = "auto"
	HintDense     Hint = "dense"
	HintKnowledge Hint = "knowledge"
	HintHybrid    Hint = "hybrid"
)

// IsValid reports whether h is a known hint.
func (h Hint) IsValid() bool {
	switch h {
	case HintAuto, HintDense, HintKnowledge, HintHybrid:
		return true
	}
	return false
}

// Strategy maps an explicit hint to its strategy. HintAuto maps to "", since
// auto resolution needs query and config context.
func (h Hint) Strategy() Strategy {
	switch h {
	case HintDense:
		return DenseOnly
	case HintKnowledge:
		return KnowledgeOnly
	case HintHybrid:
		return Hybrid
	}
	return ""
}
