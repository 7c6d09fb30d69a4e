package http

import (
	"time"

	"github.com/materia-cloud/matdex/internal/domain/search/bundle"
	"github.com/materia-cloud/matdex/internal/domain/search/result"
	"github.com/materia-cloud/matdex/internal/domain/searchcfg"
	"github.com/materia-cloud/matdex/internal/usecase/engine"
)

// Error codes returned in error responses.
const (
	codeBadRequest          = "bad_request"
	codeInvalidQuery        = "invalid_query"
	codeNotFound            = "not_found"
	codeInsufficientCredits = "insufficient_credits"
	codeProviderUnavailable = "provider_unavailable"
	codeRoutingFailed       = "routing_failed"
	codeInternalError       = "internal_error"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type searchRequest struct {
	Query        string            `json:"query,omitempty"`
	Embedding    []float32         `json:"embedding,omitempty"`
	MaterialType string            `json:"material_type,omitempty"`
	Filters      map[string]string `json:"filters,omitempty"`
	Limit        int               `json:"limit,omitempty"`
	StrategyHint string            `json:"strategy_hint,omitempty"`
	WithBundle   bool              `json:"with_bundle,omitempty"`
	WithClusters bool              `json:"with_clusters,omitempty"`
}

type fusionResultDTO struct {
	ID                string  `json:"id"`
	MaterialType      string  `json:"material_type,omitempty"`
	Content           string  `json:"content,omitempty"`
	VectorScore       float64 `json:"vector_score"`
	RelationshipScore float64 `json:"relationship_score"`
	FinalScore        float64 `json:"final_score"`
	MatchReason       string  `json:"match_reason"`
}

type bundleItemDTO struct {
	MaterialID string `json:"material_id"`
	Snippet    string `json:"snippet"`
}

type bundleDTO struct {
	Items     []bundleItemDTO `json:"items"`
	SizeBytes int             `json:"size_bytes"`
	Truncated bool            `json:"truncated"`
}

type clusterDTO struct {
	Label    string   `json:"label"`
	EntryIDs []string `json:"entry_ids"`
}

type searchResponse struct {
	Results        []fusionResultDTO `json:"results"`
	Bundle         *bundleDTO        `json:"bundle,omitempty"`
	Clusters       []clusterDTO      `json:"clusters,omitempty"`
	Degraded       bool              `json:"degraded"`
	DroppedSignals []string          `json:"dropped_signals,omitempty"`
}

// routingFailedResponse carries partial results alongside the error payload.
type routingFailedResponse struct {
	Code           string            `json:"code"`
	Message        string            `json:"message"`
	Results        []fusionResultDTO `json:"results"`
	DroppedSignals []string          `json:"dropped_signals,omitempty"`
}

type materialDTO struct {
	ID           string            `json:"id"`
	MaterialType string            `json:"material_type,omitempty"`
	Content      string            `json:"content"`
	Properties   map[string]string `json:"properties,omitempty"`
}

type indexMaterialsRequest struct {
	Materials []materialDTO `json:"materials"`
}

type knowledgeEntryDTO struct {
	ID         string  `json:"id"`
	MaterialID string  `json:"material_id"`
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
}

type relationshipEdgeDTO struct {
	FromName       string  `json:"from_name"`
	FromValue      string  `json:"from_value"`
	ToName         string  `json:"to_name"`
	ToValue        string  `json:"to_value"`
	Strength       float64 `json:"strength"`
	Directionality string  `json:"directionality"`
}

type putKnowledgeRequest struct {
	Entries []knowledgeEntryDTO   `json:"entries"`
	Edges   []relationshipEdgeDTO `json:"edges"`
}

type configFieldsRequest struct {
	DenseWeight        *float64 `json:"dense_weight,omitempty"`
	RelationshipWeight *float64 `json:"relationship_weight,omitempty"`
	MinSimilarity      *float64 `json:"min_similarity,omitempty"`
	MaxCandidates      *int     `json:"max_candidates,omitempty"`
	HopLimit           *int     `json:"hop_limit,omitempty"`
	BundleBudgetBytes  *int     `json:"bundle_budget_bytes,omitempty"`
}

type configResponse struct {
	Name               string    `json:"name"`
	Version            int       `json:"version"`
	VersionID          string    `json:"version_id"`
	DenseWeight        float64   `json:"dense_weight"`
	RelationshipWeight float64   `json:"relationship_weight"`
	MinSimilarity      float64   `json:"min_similarity"`
	MaxCandidates      int       `json:"max_candidates"`
	HopLimit           int       `json:"hop_limit"`
	BundleBudgetBytes  int       `json:"bundle_budget_bytes"`
	CreatedAt          time.Time `json:"created_at"`
}

type stageStatsDTO struct {
	Count     int64   `json:"count"`
	Errors    int64   `json:"errors"`
	AvgMillis float64 `json:"avg_ms"`
	MaxMillis float64 `json:"max_ms"`
}

type statsResponse struct {
	Stages map[string]stageStatsDTO `json:"stages"`
}

func resultsToDTO(results []result.FusionResult) []fusionResultDTO {
	out := make([]fusionResultDTO, len(results))
	for i := range results {
		r := &results[i]
		out[i] = fusionResultDTO{
			ID:                r.ID(),
			MaterialType:      r.MaterialType(),
			Content:           r.Content(),
			VectorScore:       r.VectorScore(),
			RelationshipScore: r.RelationshipScore(),
			FinalScore:        r.FinalScore(),
			MatchReason:       r.MatchReason(),
		}
	}
	return out
}

func responseToDTO(resp engine.Response) searchResponse {
	out := searchResponse{
		Results:        resultsToDTO(resp.Results),
		Degraded:       resp.Degraded,
		DroppedSignals: resp.DroppedSignals,
	}
	if out.Results == nil {
		out.Results = []fusionResultDTO{}
	}

	if resp.Bundle != nil {
		out.Bundle = bundleToDTO(resp.Bundle)
	}
	for _, c := range resp.Clusters {
		out.Clusters = append(out.Clusters, clusterDTO{Label: c.Label, EntryIDs: c.EntryIDs})
	}
	return out
}

func bundleToDTO(b *bundle.ContextBundle) *bundleDTO {
	dto := &bundleDTO{SizeBytes: b.SizeBytes, Truncated: b.Truncated, Items: []bundleItemDTO{}}
	for _, item := range b.Items {
		dto.Items = append(dto.Items, bundleItemDTO{MaterialID: item.MaterialID, Snippet: item.Snippet})
	}
	return dto
}

func configToDTO(c searchcfg.Config) configResponse {
	return configResponse{
		Name:               c.Name(),
		Version:            c.Version(),
		VersionID:          c.VersionID(),
		DenseWeight:        c.DenseWeight(),
		RelationshipWeight: c.RelationshipWeight(),
		MinSimilarity:      c.MinSimilarity(),
		MaxCandidates:      c.MaxCandidates(),
		HopLimit:           c.HopLimit(),
		BundleBudgetBytes:  c.BundleBudgetBytes(),
		CreatedAt:          c.CreatedAt(),
	}
}
