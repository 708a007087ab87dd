package internal

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/vellum/internal/contenttype"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.Vault.Path = filepath.Join(dir, "vault")
	cfg.Cache.Path = filepath.Join(dir, "cache.db")
	if err := os.MkdirAll(filepath.Join(cfg.Vault.Path, "docs"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfg.Vault.Path, "docs", "page.wiki"), []byte("h1. Title"), 0o644); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestOpenServices_WithCache(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	svc, err := OpenServices(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("OpenServices: %v", err)
	}
	defer svc.Close()

	if svc.Cache == nil {
		t.Fatal("cache should be open")
	}
	stats, err := svc.Cache.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Documents != 1 {
		t.Errorf("documents after initial sync = %d, want 1", stats.Documents)
	}

	out, err := svc.Manager.Convert(ctx, svc.Vault.Document("/docs/page.wiki"), contenttype.HTML, nil)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !strings.Contains(string(out), "<h1>Title</h1>") {
		t.Errorf("output = %q", out)
	}

	stats, err = svc.Cache.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Renderings != 1 {
		t.Errorf("renderings = %d, want 1", stats.Renderings)
	}
}

func TestOpenServices_CacheDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Enabled = false

	svc, err := OpenServices(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("OpenServices: %v", err)
	}
	defer svc.Close()

	if svc.Cache != nil {
		t.Error("cache should not be opened")
	}
	if _, err := os.Stat(cfg.Cache.Path); !os.IsNotExist(err) {
		t.Errorf("cache file should not exist, stat err = %v", err)
	}
	if !svc.Manager.CanConvert(contenttype.Wiki, contenttype.ODT) {
		t.Error("wiki to odt should be convertible")
	}
}
