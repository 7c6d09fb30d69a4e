package health

import "context"

// DBPinger checks store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// BackendHealth exposes the router's per-backend availability view.
type BackendHealth interface {
	Healthy(backend string) bool
}
