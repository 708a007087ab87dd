package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/starford/vellum/internal/builtin"
	"github.com/starford/vellum/internal/cache"
	"github.com/starford/vellum/internal/manager"
	"github.com/starford/vellum/internal/storage"
)

// Services bundles the components shared by the server and the CLI commands.
type Services struct {
	Vault   *storage.FS
	Cache   *cache.DB
	Manager *manager.Manager
}

// NewLogger returns the JSON logger used across the application.
func NewLogger(cfg *Config, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
}

// OpenServices opens the vault and, when enabled, the conversion cache, and
// builds a manager over the built-in converters.
func OpenServices(ctx context.Context, cfg *Config, logger *slog.Logger) (*Services, error) {
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	vault, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	s := &Services{Vault: vault}
	opts := []manager.Option{manager.WithLogger(logger)}

	if cfg.Cache.Enabled {
		db, err := cache.Open(cfg.Cache.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("init cache: %w", err)
		}
		if err := cache.Sync(ctx, db, vault, logger); err != nil {
			logger.Warn("initial sync failed", slog.String("error", err.Error()))
		}
		s.Cache = db
		opts = append(opts,
			manager.WithCache(db),
			manager.WithSizeLimit(cfg.Cache.SizeLimit),
		)
		if types := cfg.Cache.Types(); len(types) > 0 {
			opts = append(opts, manager.WithCacheContentTypes(types...))
		}
	}

	s.Manager = manager.New(builtin.Registry(logger), vault, opts...)
	return s, nil
}

// Close releases the cache database, if any.
func (s *Services) Close() error {
	if s.Cache == nil {
		return nil
	}
	return s.Cache.Close()
}
