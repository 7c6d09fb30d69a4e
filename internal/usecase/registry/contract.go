package registry

import (
	"context"

	"github.com/materia-cloud/matdex/internal/domain/searchcfg"
)

// ConfigStore persists immutable config versions and the per-name active pointer.
type ConfigStore interface {
	SaveVersion(ctx context.Context, cfg searchcfg.Config) error
	SetActive(ctx context.Context, name string, version int) error
	ClearActive(ctx context.Context, name string) error
	LoadActive(ctx context.Context, name string) (searchcfg.Config, error)
	LoadVersion(ctx context.Context, name string, version int) (searchcfg.Config, error)
}
