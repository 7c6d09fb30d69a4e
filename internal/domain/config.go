package domain

// KeyPrefix namespaces every key this service writes to the store.
const KeyPrefix = "matdex:"

// Backend names used by health tracking and routing degradation.
const (
	BackendVector    = "vector"
	BackendKnowledge = "knowledge"
	BackendEmbedding = "embedding"
)
