package health

import (
	"context"

	"github.com/materia-cloud/matdex/internal/domain"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure; queries still run in degraded mode.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db       DBPinger
	embed    EmbeddingChecker
	backends BackendHealth
}

// New creates a Service. embed and backends can be nil.
func New(db DBPinger, embed EmbeddingChecker, backends BackendHealth) *Service {
	return &Service{db: db, embed: embed, backends: backends}
}

// Check runs health checks against all components. The store and embedding
// provider are probed live; the routing backends report the tracker's
// last-known state so the endpoint stays cheap.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = CheckError
	} else {
		checks["database"] = CheckOK
	}

	if s.embed != nil {
		if err := s.embed.HealthCheck(ctx); err != nil {
			checks["embedding"] = CheckError
		} else {
			checks["embedding"] = CheckOK
		}
	}

	if s.backends != nil {
		for _, backend := range []string{domain.BackendVector, domain.BackendKnowledge} {
			if s.backends.Healthy(backend) {
				checks[backend] = CheckOK
			} else {
				checks[backend] = CheckError
			}
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}
