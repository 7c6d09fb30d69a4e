package router

import (
	"fmt"

	"github.com/materia-cloud/matdex/internal/domain"
	"github.com/materia-cloud/matdex/internal/domain/search/result"
)

// RoutingFailedError reports that every launched branch failed. Any results
// a branch produced before failing travel with the error so callers are
// never handed a bare failure when data exists.
type RoutingFailedError struct {
	Partial []result.FusionResult
	Dropped []string
	Err     error
}

func (e *RoutingFailedError) Error() string {
	return fmt.Sprintf("routing failed (%d partial results): %v", len(e.Partial), e.Err)
}

func (e *RoutingFailedError) Unwrap() error {
	return domain.ErrRoutingFailed
}
