package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"go.uber.org/zap"

	"github.com/materia-cloud/matdex/internal/domain"
	"github.com/materia-cloud/matdex/internal/domain/knowledge"
	"github.com/materia-cloud/matdex/internal/domain/material"
	"github.com/materia-cloud/matdex/internal/domain/search/bundle"
	"github.com/materia-cloud/matdex/internal/domain/search/query"
	"github.com/materia-cloud/matdex/internal/domain/search/result"
	"github.com/materia-cloud/matdex/internal/domain/search/strategy"
	"github.com/materia-cloud/matdex/internal/domain/searchcfg"
	"github.com/materia-cloud/matdex/internal/metrics"
	"github.com/materia-cloud/matdex/internal/usecase/assembler"
	"github.com/materia-cloud/matdex/internal/usecase/fusion"
	"github.com/materia-cloud/matdex/internal/usecase/router"
)

// Stage names used for latency recording.
const (
	StageRoute     = "route"
	StageEmbed     = "embed"
	StageVector    = "vector"
	StageKnowledge = "knowledge"
	StageFusion    = "fusion"
	StageBundle    = "bundle"
	StageCluster   = "cluster"
)

// Response is the full answer to one search query. Degraded reports that at
// least one signal was skipped or failed; DroppedSignals names each one so
// partial results are never silently presented as complete.
type Response struct {
	Results        []result.FusionResult
	Bundle         *bundle.ContextBundle
	Clusters       []bundle.SemanticCluster
	Degraded       bool
	DroppedSignals []string
}

// Service orchestrates a search query end to end: routing, parallel branch
// fan-out, fusion, and the optional bundle and clustering extras.
type Service struct {
	embed      Embedder
	vectors    VectorSearcher
	know       KnowledgeFinder
	decider    Decider
	guard      BranchGuard
	configs    ConfigProvider
	stages     StageRecorder
	clusterer  Clusterer
	configName string
	logger     *zap.Logger
}

// New creates the search engine service.
func New(
	embed Embedder,
	vectors VectorSearcher,
	know KnowledgeFinder,
	decider Decider,
	guard BranchGuard,
	configs ConfigProvider,
	stages StageRecorder,
	clusterer Clusterer,
	configName string,
	logger *zap.Logger,
) *Service {
	return &Service{
		embed:      embed,
		vectors:    vectors,
		know:       know,
		decider:    decider,
		guard:      guard,
		configs:    configs,
		stages:     stages,
		clusterer:  clusterer,
		configName: configName,
		logger:     logger,
	}
}

// branchOut is one branch's contribution to fusion.
type branchOut struct {
	matches   []material.Match
	entries   []knowledge.Entry
	materials map[string]material.Record
	edges     []knowledge.Edge
	err       error
}

// Search answers one query. The config is snapshotted at entry; both
// launched branches always join before fusion, because the weighting needs
// to know which signals are genuinely absent versus merely slow.
func (s *Service) Search(ctx context.Context, q *query.Query) (Response, error) {
	cfg, err := s.configs.GetActiveConfig(ctx, s.configName)
	if err != nil {
		return Response{}, fmt.Errorf("load active config: %w", err)
	}

	routeStart := time.Now()
	decision := s.decider.Decide(q)
	s.stages.RecordLatency(StageRoute, time.Since(routeStart))

	emb, embErr := s.queryEmbedding(ctx, q, decision.Strategy)
	if embErr != nil {
		if errors.Is(embErr, domain.ErrInsufficientCredits) {
			return Response{}, embErr
		}
		// No embedding means no vector branch. Reroute through the
		// knowledge branch when the strategy still has one.
		if decision.Strategy == strategy.DenseOnly {
			return Response{}, &router.RoutingFailedError{
				Dropped: []string{domain.BackendVector},
				Err:     embErr,
			}
		}
		if decision.Strategy == strategy.Hybrid {
			decision.Strategy = strategy.KnowledgeOnly
			decision.KnowledgeDeadline += decision.VectorDeadline
			decision.VectorDeadline = 0
		}
	}

	vecOut, knowOut := s.fanOut(ctx, q, cfg, decision, emb)

	resp, err := s.converge(q, cfg, decision, vecOut, knowOut, embErr)
	if err != nil {
		metrics.SearchTotal.WithLabelValues(string(decision.Strategy), "true").Inc()
		return Response{}, err
	}

	s.attachExtras(ctx, q, cfg, knowOut, &resp)

	metrics.SearchTotal.WithLabelValues(
		string(decision.Strategy), strconv.FormatBool(resp.Degraded)).Inc()
	return resp, nil
}

// queryEmbedding returns the query embedding, computing it from text when
// the strategy needs the vector branch and none was supplied.
func (s *Service) queryEmbedding(
	ctx context.Context, q *query.Query, chosen strategy.Strategy,
) (domain.EmbeddingVector, error) {
	if chosen == strategy.KnowledgeOnly {
		return domain.EmbeddingVector{}, nil
	}
	if !q.Embedding().IsZero() {
		return q.Embedding(), nil
	}

	start := time.Now()
	res, err := s.embed.Embed(ctx, q.Text())
	s.stages.RecordLatency(StageEmbed, time.Since(start))
	if err != nil {
		s.stages.RecordError(StageEmbed)
		return domain.EmbeddingVector{}, fmt.Errorf("embed query: %w", err)
	}
	return res.Vector, nil
}

// fanOut launches the selected branches with their own deadlines and waits
// for both to complete or time out. Branch errors are captured, never
// propagated through the group, so the fan-in barrier always holds.
func (s *Service) fanOut(
	ctx context.Context,
	q *query.Query,
	cfg searchcfg.Config,
	decision router.Decision,
	emb domain.EmbeddingVector,
) (vecOut, knowOut branchOut) {
	g, gctx := errgroup.WithContext(ctx)

	runVector := decision.Strategy == strategy.DenseOnly || decision.Strategy == strategy.Hybrid
	runKnowledge := decision.Strategy == strategy.KnowledgeOnly || decision.Strategy == strategy.Hybrid

	if runVector {
		g.Go(func() error {
			branchCtx, cancel := context.WithTimeout(gctx, decision.VectorDeadline)
			defer cancel()

			start := time.Now()
			err := s.guard.Do(domain.BackendVector, func() error {
				matches, err := s.vectors.Search(
					branchCtx, emb, q.MaterialType(), q.Filters(),
					cfg.MaxCandidates(), cfg.MinSimilarity(),
					q.Text(), cfg.DenseWeight(),
				)
				vecOut.matches = matches
				return err
			})
			s.stages.RecordLatency(StageVector, time.Since(start))

			vecOut.err = s.finishBranch(domain.BackendVector, StageVector, err)
			return nil
		})
	} else {
		metrics.BranchTotal.WithLabelValues(domain.BackendVector, "skipped").Inc()
	}

	if runKnowledge {
		g.Go(func() error {
			branchCtx, cancel := context.WithTimeout(gctx, decision.KnowledgeDeadline)
			defer cancel()

			start := time.Now()
			err := s.guard.Do(domain.BackendKnowledge, func() error {
				return s.runKnowledgeBranch(branchCtx, q, cfg.MaxCandidates(), cfg.HopLimit(), &knowOut)
			})
			s.stages.RecordLatency(StageKnowledge, time.Since(start))

			knowOut.err = s.finishBranch(domain.BackendKnowledge, StageKnowledge, err)
			return nil
		})
	} else {
		metrics.BranchTotal.WithLabelValues(domain.BackendKnowledge, "skipped").Inc()
	}

	// Branches report via branchOut; Wait only synchronizes the barrier.
	_ = g.Wait()
	return vecOut, knowOut
}

// runKnowledgeBranch retrieves matching entries, resolves their subject
// materials, and expands relationship edges around both the subjects and
// the query's own filters.
func (s *Service) runKnowledgeBranch(
	ctx context.Context, q *query.Query, limit, hopLimit int, out *branchOut,
) error {
	entries, materials, err := s.know.FindKnowledge(ctx, nil, q.Text(), limit)
	if err != nil {
		return err
	}
	out.entries = entries
	out.materials = materials

	subjectIDs := make([]string, 0, len(materials))
	for id := range materials {
		subjectIDs = append(subjectIDs, id)
	}

	subjectEdges, err := s.know.FindRelationships(ctx, subjectIDs, hopLimit)
	if err != nil {
		return err
	}

	var filterEdges []knowledge.Edge
	if len(q.Filters()) > 0 {
		seeds := make([]knowledge.Property, 0, len(q.Filters()))
		for name, value := range q.Filters() {
			seeds = append(seeds, knowledge.Property{Name: name, Value: value})
		}
		filterEdges, err = s.know.ExpandProperties(ctx, seeds, hopLimit)
		if err != nil {
			return err
		}
	}

	out.edges = dedupeEdges(subjectEdges, filterEdges)
	return nil
}

// finishBranch translates a branch's raw failure into the engine error
// taxonomy and records its outcome. Transport and store errors never
// surface above this boundary untranslated.
func (s *Service) finishBranch(backend, stage string, err error) error {
	switch {
	case err == nil:
		metrics.BranchTotal.WithLabelValues(backend, "ok").Inc()
		return nil
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		metrics.BranchTotal.WithLabelValues(backend, "timeout").Inc()
		s.stages.RecordError(stage)
		s.logger.Warn("Branch timed out", zap.String("branch", backend))
		return fmt.Errorf("%s branch timed out: %w", backend, domain.ErrPartialBranchFailure)
	case errors.Is(err, domain.ErrProviderUnavailable) || errors.Is(err, domain.ErrInsufficientCredits):
		metrics.BranchTotal.WithLabelValues(backend, "error").Inc()
		s.stages.RecordError(stage)
		return err
	default:
		metrics.BranchTotal.WithLabelValues(backend, "error").Inc()
		s.stages.RecordError(stage)
		s.logger.Warn("Branch failed", zap.String("branch", backend), zap.Error(err))
		return fmt.Errorf("%s branch: %v: %w", backend, err, domain.ErrProviderUnavailable)
	}
}

// converge applies the degradation policy at the fan-in barrier and fuses
// whatever survived.
func (s *Service) converge(
	q *query.Query,
	cfg searchcfg.Config,
	decision router.Decision,
	vecOut, knowOut branchOut,
	embErr error,
) (Response, error) {
	var dropped []string
	if embErr != nil {
		dropped = append(dropped, domain.BackendVector)
	}
	if vecOut.err != nil {
		dropped = append(dropped, domain.BackendVector)
	}
	if knowOut.err != nil {
		dropped = append(dropped, domain.BackendKnowledge)
	}

	launched := 0
	failed := 0
	if decision.Strategy != strategy.KnowledgeOnly && embErr == nil {
		launched++
		if vecOut.err != nil {
			failed++
		}
	}
	if decision.Strategy != strategy.DenseOnly {
		launched++
		if knowOut.err != nil {
			failed++
		}
	}

	fuseStart := time.Now()
	results := fusion.Fuse(fusion.Input{
		VectorMatches: vecOut.matches,
		Entries:       knowOut.entries,
		Materials:     knowOut.materials,
		Edges:         knowOut.edges,
		QueryFilters:  q.Filters(),
	}, fusion.Weights{
		DenseWeight:        cfg.DenseWeight(),
		RelationshipWeight: cfg.RelationshipWeight(),
	})
	s.stages.RecordLatency(StageFusion, time.Since(fuseStart))

	if len(results) > q.Limit() {
		results = results[:q.Limit()]
	}

	if launched > 0 && failed == launched {
		branchErr := vecOut.err
		if branchErr == nil {
			branchErr = knowOut.err
		}
		if embErr != nil && branchErr == nil {
			branchErr = embErr
		}
		return Response{}, &router.RoutingFailedError{
			Partial: results,
			Dropped: dropped,
			Err:     branchErr,
		}
	}

	return Response{
		Results:        results,
		Degraded:       len(dropped) > 0,
		DroppedSignals: dropped,
	}, nil
}

// attachExtras adds the optional context bundle and clustering. A failed
// extra degrades the response instead of failing the query.
func (s *Service) attachExtras(
	ctx context.Context,
	q *query.Query,
	cfg searchcfg.Config,
	knowOut branchOut,
	resp *Response,
) {
	if q.WithBundle() {
		start := time.Now()
		b := assembler.Assemble(resp.Results, knowOut.entries, cfg.BundleBudgetBytes())
		s.stages.RecordLatency(StageBundle, time.Since(start))
		resp.Bundle = &b
	}

	if q.WithClusters() && len(knowOut.entries) > 0 {
		start := time.Now()
		clusters, err := s.clusterer.Cluster(ctx, knowOut.entries, cfg.MinSimilarity())
		s.stages.RecordLatency(StageCluster, time.Since(start))
		if err != nil {
			s.stages.RecordError(StageCluster)
			s.logger.Warn("Clustering failed, dropping clusters", zap.Error(err))
			resp.Degraded = true
			resp.DroppedSignals = append(resp.DroppedSignals, "clusters")
		} else {
			resp.Clusters = clusters
		}
	}
}

// dedupeEdges merges edge slices, dropping duplicates. Edge is a comparable
// value type, so identity is full field equality.
func dedupeEdges(groups ...[]knowledge.Edge) []knowledge.Edge {
	seen := make(map[knowledge.Edge]bool)
	var out []knowledge.Edge
	for _, group := range groups {
		for _, e := range group {
			if !seen[e] {
				seen[e] = true
				out = append(out, e)
			}
		}
	}
	return out
}
