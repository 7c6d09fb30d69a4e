package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/materia-cloud/matdex/internal/domain"
	"github.com/materia-cloud/matdex/internal/domain/knowledge"
	"github.com/materia-cloud/matdex/internal/domain/material"
	"github.com/materia-cloud/matdex/internal/domain/search/query"
	"github.com/materia-cloud/matdex/internal/domain/search/strategy"
	"github.com/materia-cloud/matdex/internal/domain/searchcfg"
	catalogumc "github.com/materia-cloud/matdex/internal/usecase/catalog"
	engineuc "github.com/materia-cloud/matdex/internal/usecase/engine"
	healthuc "github.com/materia-cloud/matdex/internal/usecase/health"
	registryuc "github.com/materia-cloud/matdex/internal/usecase/registry"
	"github.com/materia-cloud/matdex/internal/usecase/router"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server exposes the engine over HTTP.
type Server struct {
	engine        *engineuc.Service
	catalog       *catalogumc.Service
	registry      *registryuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	engine *engineuc.Service,
	catalog *catalogumc.Service,
	registry *registryuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		engine:   engine,
		catalog:  catalog,
		registry: registry,
		health:   health,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		routingFailedHandler,
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, codeInvalidQuery),
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, codeBadRequest),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, codeBadRequest),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrInsufficientCredits, http.StatusPaymentRequired, codeInsufficientCredits),
		sentinelHandler(domain.ErrProviderUnavailable, http.StatusBadGateway, codeProviderUnavailable),
	}
	return s
}

// Routes registers all API routes on the router.
func (s *Server) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Post("/materials", s.handleIndexMaterials)
		r.Post("/knowledge", s.handlePutKnowledge)

		r.Route("/configs/{name}", func(r chi.Router) {
			r.Get("/", s.handleGetConfig)
			r.Put("/", s.handleUpdateConfig)
			r.Delete("/", s.handleDeleteConfig)
		})

		r.Get("/stats", s.handleStats)
	})

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
}

// handleSearch handles POST /api/v1/search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	var emb domain.EmbeddingVector
	if len(req.Embedding) > 0 {
		emb = domain.NewEmbeddingVector(req.Embedding, domain.MethodDense)
	}

	q, err := query.New(
		req.Query, emb, req.MaterialType, req.Filters,
		req.Limit, strategy.Hint(req.StrategyHint),
		req.WithBundle, req.WithClusters,
	)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp, err := s.engine.Search(r.Context(), &q)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, responseToDTO(resp))
}

// handleIndexMaterials handles POST /api/v1/materials.
func (s *Server) handleIndexMaterials(w http.ResponseWriter, r *http.Request) {
	var req indexMaterialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Materials) == 0 {
		writeError(w, http.StatusBadRequest, codeBadRequest, "materials is required")
		return
	}

	recs := make([]material.Record, 0, len(req.Materials))
	for _, m := range req.Materials {
		rec, err := material.New(m.ID, m.MaterialType, m.Content, m.Properties)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
			return
		}
		recs = append(recs, rec)
	}

	if err := s.catalog.IndexMaterials(r.Context(), recs); err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int{"indexed": len(recs)})
}

// handlePutKnowledge handles POST /api/v1/knowledge.
func (s *Server) handlePutKnowledge(w http.ResponseWriter, r *http.Request) {
	var req putKnowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	entries := make([]knowledge.Entry, 0, len(req.Entries))
	for _, e := range req.Entries {
		entry, err := knowledge.NewEntry(e.ID, e.MaterialID, e.Content, e.Confidence)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
			return
		}
		entries = append(entries, entry)
	}

	edges := make([]knowledge.Edge, 0, len(req.Edges))
	for _, e := range req.Edges {
		edge, err := knowledge.NewEdge(
			knowledge.Property{Name: e.FromName, Value: e.FromValue},
			knowledge.Property{Name: e.ToName, Value: e.ToValue},
			e.Strength,
			knowledge.Directionality(e.Directionality),
		)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
			return
		}
		edges = append(edges, edge)
	}

	if err := s.catalog.PutKnowledge(r.Context(), entries, edges); err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int{
		"entries": len(entries),
		"edges":   len(edges),
	})
}

// handleGetConfig handles GET /api/v1/configs/{name}.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.registry.GetActiveConfig(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, configToDTO(cfg))
}

// handleUpdateConfig handles PUT /api/v1/configs/{name}.
func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req configFieldsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	cfg, err := s.registry.UpdateConfig(r.Context(), chi.URLParam(r, "name"), searchcfg.Fields{
		DenseWeight:        req.DenseWeight,
		RelationshipWeight: req.RelationshipWeight,
		MinSimilarity:      req.MinSimilarity,
		MaxCandidates:      req.MaxCandidates,
		HopLimit:           req.HopLimit,
		BundleBudgetBytes:  req.BundleBudgetBytes,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, configToDTO(cfg))
}

// handleDeleteConfig handles DELETE /api/v1/configs/{name}.
func (s *Server) handleDeleteConfig(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.DeleteConfig(r.Context(), chi.URLParam(r, "name")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStats handles GET /api/v1/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.registry.GetStats()

	resp := statsResponse{Stages: make(map[string]stageStatsDTO, len(stats))}
	for stage, st := range stats {
		dto := stageStatsDTO{
			Count:     st.Count,
			Errors:    st.Errors,
			MaxMillis: float64(st.Max.Microseconds()) / 1000,
		}
		if st.Count > 0 {
			dto.AvgMillis = float64(st.Total.Microseconds()) / 1000 / float64(st.Count)
		}
		resp.Stages[stage] = dto
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrInvalidQuery,
		domain.ErrInvalidInput,
		domain.ErrVectorDimMismatch,
		domain.ErrInsufficientCredits,
		domain.ErrProviderUnavailable,
		domain.ErrRoutingFailed,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, safeDomainMessage(err))
		return true
	}
}

// routingFailedHandler returns 502 with any partial results attached, so a
// caller is never handed a bare error when data exists.
func routingFailedHandler(w http.ResponseWriter, err error) bool {
	var rfe *router.RoutingFailedError
	if !errors.As(err, &rfe) {
		return false
	}
	writeJSON(w, http.StatusBadGateway, routingFailedResponse{
		Code:           codeRoutingFailed,
		Message:        safeDomainMessage(err),
		Results:        resultsToDTO(rfe.Partial),
		DroppedSignals: rfe.Dropped,
	})
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
