// Package testutil provides shared test helpers for setting up vaults,
// cache databases and wired managers.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/vellum/internal/builtin"
	"github.com/starford/vellum/internal/cache"
	"github.com/starford/vellum/internal/manager"
	"github.com/starford/vellum/internal/storage"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestDB creates a temporary cache database that is automatically cleaned up.
func TestDB(t *testing.T) *cache.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "vellum-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := cache.Open(dbFile.Name(), Logger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault holding files, keyed by vault path.
func TestVault(t *testing.T, files map[string]string) *storage.FS {
	t.Helper()
	vault, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for p, content := range files {
		if err := vault.Write(p, []byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	return vault
}

// TestManager returns a manager over the builtin converters and vault.
// A nil db leaves the manager uncached.
func TestManager(t *testing.T, vault *storage.FS, db *cache.DB) *manager.Manager {
	t.Helper()
	logger := Logger()
	opts := []manager.Option{manager.WithLogger(logger)}
	if db != nil {
		opts = append(opts, manager.WithCache(db))
	}
	return manager.New(builtin.Registry(logger), vault, opts...)
}
