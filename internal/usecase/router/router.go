package router

import (
	"time"

	"github.com/materia-cloud/matdex/internal/domain"
	"github.com/materia-cloud/matdex/internal/domain/search/query"
	"github.com/materia-cloud/matdex/internal/domain/search/strategy"
)

// Health reports per-backend availability for the degrade rule.
type Health interface {
	Healthy(backend string) bool
}

// Decision is the routing outcome for one query: the chosen strategy and the
// per-branch deadlines carved out of the global query timeout.
type Decision struct {
	Strategy          strategy.Strategy
	VectorDeadline    time.Duration
	KnowledgeDeadline time.Duration
	Reason            string
}

// Router picks a strategy for each query. It is pure decision logic; no
// network calls happen here, which keeps it unit-testable in isolation.
type Router struct {
	health         Health
	queryTimeout   time.Duration
	vectorSharePct int
}

// New creates a query router. vectorSharePct is the share of the query
// timeout granted to the vector branch when both branches run.
func New(health Health, queryTimeout time.Duration, vectorSharePct int) *Router {
	if vectorSharePct <= 0 || vectorSharePct >= 100 {
		vectorSharePct = 70
	}
	return &Router{
		health:         health,
		queryTimeout:   queryTimeout,
		vectorSharePct: vectorSharePct,
	}
}

// Decide resolves a query's hint into a terminal strategy.
//
// Explicit hints are honored unless the backend they need is unhealthy, in
// which case the choice degrades one level toward DenseOnly. Auto picks
// Hybrid when the query carries both embeddable text and a relationship
// signal, DenseOnly otherwise; KnowledgeOnly is never auto-selected because
// knowledge coverage is sparser than the vector index.
func (r *Router) Decide(q *query.Query) Decision {
	chosen, reason := r.resolve(q)
	return r.withDeadlines(chosen, reason)
}

func (r *Router) resolve(q *query.Query) (strategy.Strategy, string) {
	if hinted := q.Hint().Strategy(); hinted != "" {
		return r.degrade(hinted)
	}

	if !r.health.Healthy(domain.BackendVector) {
		if q.HasRelationshipSignal() && r.health.Healthy(domain.BackendKnowledge) {
			return strategy.KnowledgeOnly, "auto: vector backend unhealthy"
		}
		// Nothing healthy to reroute to; let the branch fail and report.
		return strategy.DenseOnly, "auto: all backends unhealthy"
	}

	if q.HasRelationshipSignal() && (q.Text() != "" || !q.Embedding().IsZero()) {
		if r.health.Healthy(domain.BackendKnowledge) {
			return strategy.Hybrid, "auto: embedding + relationship signal"
		}
		return strategy.DenseOnly, "auto: knowledge backend unhealthy"
	}

	return strategy.DenseOnly, "auto: no relationship signal"
}

// degrade enforces the one-level degrade rule for explicit hints.
func (r *Router) degrade(hinted strategy.Strategy) (strategy.Strategy, string) {
	switch hinted {
	case strategy.Hybrid:
		if !r.health.Healthy(domain.BackendKnowledge) {
			return strategy.DenseOnly, "hint hybrid: knowledge backend unhealthy"
		}
		if !r.health.Healthy(domain.BackendVector) {
			return strategy.KnowledgeOnly, "hint hybrid: vector backend unhealthy"
		}
		return strategy.Hybrid, "hint hybrid"
	case strategy.KnowledgeOnly:
		if !r.health.Healthy(domain.BackendKnowledge) {
			return strategy.DenseOnly, "hint knowledge: knowledge backend unhealthy"
		}
		return strategy.KnowledgeOnly, "hint knowledge"
	default:
		return strategy.DenseOnly, "hint dense"
	}
}

func (r *Router) withDeadlines(s strategy.Strategy, reason string) Decision {
	d := Decision{Strategy: s, Reason: reason}
	switch s {
	case strategy.Hybrid:
		d.VectorDeadline = r.queryTimeout * time.Duration(r.vectorSharePct) / 100
		d.KnowledgeDeadline = r.queryTimeout - d.VectorDeadline
	case strategy.KnowledgeOnly:
		d.KnowledgeDeadline = r.queryTimeout
	default:
		d.VectorDeadline = r.queryTimeout
	}
	return d
}
