package cache

import (
	"context"

	"github.com/starford/vellum/internal/manager"
	"github.com/starford/vellum/internal/storage"
)

// Store is the cache surface used by the server. Consumers depend on this
// interface rather than the concrete *DB.
type Store interface {
	manager.Cache
	Invalidate(ctx context.Context, path string) ([]string, error)
	Refresh(ctx context.Context, doc storage.Document, data []byte) ([]string, error)
	Forget(ctx context.Context, path string) ([]string, error)
	Dependents(ctx context.Context, path string) ([]string, error)
	AllChecksums(ctx context.Context) (map[string]string, error)
	Stats(ctx context.Context) (Stats, error)
	Purge(ctx context.Context) error
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
