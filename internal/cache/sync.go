package cache

import (
	"context"
	"log/slog"

	"github.com/starford/vellum/internal/storage"
)

// Sync walks the vault and brings the cache up to date:
//   - new/changed documents are recorded and their renderings dropped
//   - documents removed from disk are forgotten
func Sync(ctx context.Context, db Store, vault *storage.FS, logger *slog.Logger) error {
	metas, err := vault.List("/")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums(ctx)
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := vault.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if _, err := db.Refresh(ctx, vault.Document(m.Path), data); err != nil {
			logger.Warn("sync: refresh failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: recorded", slog.String("path", m.Path))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if _, err := db.Forget(ctx, p); err != nil {
				logger.Warn("sync: forget failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}
