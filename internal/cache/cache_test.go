package cache

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/vellum/internal/contenttype"
	"github.com/starford/vellum/internal/storage"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "vellum-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name(), quietLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testVault(t *testing.T, files map[string]string) *storage.FS {
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

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func refresh(t *testing.T, db *DB, vault *storage.FS, p string) []string {
	t.Helper()
	data, err := vault.Read(p)
	if err != nil {
		t.Fatal(err)
	}
	affected, err := db.Refresh(context.Background(), vault.Document(p), data)
	if err != nil {
		t.Fatalf("Refresh(%s): %v", p, err)
	}
	return affected
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"documents", "includes", "renderings"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestStoreAndLookup(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	vault := testVault(t, map[string]string{"/page.wiki": "h1. Title"})
	doc := vault.Document("/page.wiki")

	if _, ok, err := db.Lookup(ctx, doc, contenttype.HTML); err != nil || ok {
		t.Fatalf("Lookup on empty cache = %v, %v", ok, err)
	}

	html := strings.Repeat("<h1>Title</h1>", 100)
	if err := db.Store(ctx, doc, contenttype.HTML, []byte(html)); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, ok, err := db.Lookup(ctx, doc, contenttype.HTML)
	if err != nil || !ok {
		t.Fatalf("Lookup = %v, %v", ok, err)
	}
	if string(got) != html {
		t.Errorf("Lookup returned %d bytes, want %d", len(got), len(html))
	}

	stats, err := db.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Renderings != 1 || stats.Size != int64(len(html)) {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Stored >= stats.Size {
		t.Errorf("stored %d bytes, expected compression below %d", stats.Stored, stats.Size)
	}
}

func TestLookupMissesChangedSource(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	vault := testVault(t, map[string]string{"/page.wiki": "first"})
	doc := vault.Document("/page.wiki")

	if err := db.Store(ctx, doc, contenttype.HTML, []byte("<p>first</p>")); err != nil {
		t.Fatal(err)
	}
	if err := vault.Write("/page.wiki", []byte("second")); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := db.Lookup(ctx, vault.Document("/page.wiki"), contenttype.HTML); ok {
		t.Error("rendering of stale source should miss")
	}
}

func TestIncludeTargets(t *testing.T) {
	src := "[:part.wiki] [:/abs/x.wiki?raw#top] [:http://example.com/a.png] [:part.wiki] [name|other.wiki]"
	got := includeTargets("/docs/page.wiki", contenttype.Wiki, []byte(src))
	want := []string{"/docs/part.wiki", "/abs/x.wiki"}
	if len(got) != len(want) {
		t.Fatalf("includeTargets = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("target[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if got := includeTargets("/a.java", contenttype.ForName("a.java"), []byte(src)); got != nil {
		t.Errorf("code should include nothing, got %v", got)
	}
}

func TestRefreshInvalidatesIncluders(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	vault := testVault(t, map[string]string{
		"/top.wiki":       "[:mid.wiki]",
		"/mid.wiki":       "[:leaf.wiki]",
		"/leaf.wiki":      "leaf",
		"/unrelated.wiki": "alone",
	})
	for _, p := range []string{"/top.wiki", "/mid.wiki", "/leaf.wiki", "/unrelated.wiki"} {
		refresh(t, db, vault, p)
		if err := db.Store(ctx, vault.Document(p), contenttype.HTML, []byte("cached")); err != nil {
			t.Fatal(err)
		}
	}

	deps, err := db.Dependents(ctx, "/leaf.wiki")
	if err != nil {
		t.Fatalf("Dependents: %v", err)
	}
	if len(deps) != 1 || deps[0] != "/mid.wiki" {
		t.Errorf("Dependents = %v", deps)
	}

	// Unchanged content invalidates nothing.
	if affected := refresh(t, db, vault, "/leaf.wiki"); len(affected) != 0 {
		t.Errorf("unchanged refresh affected %v", affected)
	}

	if err := vault.Write("/leaf.wiki", []byte("leaf v2")); err != nil {
		t.Fatal(err)
	}
	affected := refresh(t, db, vault, "/leaf.wiki")
	if len(affected) != 3 || affected[0] != "/leaf.wiki" {
		t.Fatalf("affected = %v, want leaf, mid and top", affected)
	}

	for _, p := range []string{"/top.wiki", "/mid.wiki"} {
		if _, ok, _ := db.Lookup(ctx, vault.Document(p), contenttype.HTML); ok {
			t.Errorf("%s rendering should be dropped", p)
		}
	}
	if _, ok, _ := db.Lookup(ctx, vault.Document("/unrelated.wiki"), contenttype.HTML); !ok {
		t.Error("unrelated rendering should survive")
	}
}

func TestInvalidateHiddenAttachment(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	vault := testVault(t, map[string]string{
		"/page.wiki":          "[:.resources/img.png]",
		"/.resources/img.png": "png",
	})
	refresh(t, db, vault, "/page.wiki")
	if err := db.Store(ctx, vault.Document("/page.wiki"), contenttype.HTML, []byte("x")); err != nil {
		t.Fatal(err)
	}

	affected, err := db.Invalidate(ctx, "/.resources/img.png")
	if err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if len(affected) != 2 || affected[1] != "/page.wiki" {
		t.Errorf("affected = %v", affected)
	}
	if _, ok, _ := db.Lookup(ctx, vault.Document("/page.wiki"), contenttype.HTML); ok {
		t.Error("page rendering should be dropped")
	}
}

func TestForget(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	vault := testVault(t, map[string]string{"/gone.wiki": "[:other.wiki]"})
	refresh(t, db, vault, "/gone.wiki")
	_ = db.Store(ctx, vault.Document("/gone.wiki"), contenttype.HTML, []byte("x"))

	if _, err := db.Forget(ctx, "/gone.wiki"); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	cs, _ := db.checksum(ctx, "/gone.wiki")
	if cs != "" {
		t.Error("document still recorded")
	}
	stats, _ := db.Stats(ctx)
	if stats.Includes != 0 || stats.Renderings != 0 {
		t.Errorf("stats after forget = %+v", stats)
	}
}

func TestPurge(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	vault := testVault(t, map[string]string{"/a.wiki": "a"})
	_ = db.Store(ctx, vault.Document("/a.wiki"), contenttype.HTML, []byte("a"))
	if err := db.Purge(ctx); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if stats, _ := db.Stats(ctx); stats.Renderings != 0 {
		t.Errorf("renderings = %d after purge", stats.Renderings)
	}
}

func TestSync(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	vault := testVault(t, map[string]string{
		"/a.wiki":             "[:b.md]",
		"/b.md":               "# B",
		"/.resources/img.png": "png",
	})
	if err := Sync(ctx, db, vault, quietLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	checksums, err := db.AllChecksums(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(checksums) != 2 {
		t.Fatalf("recorded %v, want two documents", checksums)
	}
	if _, ok := checksums["/.resources/img.png"]; ok {
		t.Error("hidden attachment should not be recorded")
	}

	if err := os.Remove(filepath.Join(vault.Root(), "b.md")); err != nil {
		t.Fatal(err)
	}
	if err := Sync(ctx, db, vault, quietLogger()); err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	checksums, _ = db.AllChecksums(ctx)
	if _, ok := checksums["/b.md"]; ok || len(checksums) != 1 {
		t.Errorf("stale document not forgotten: %v", checksums)
	}
}

func TestCompressRoundTrip(t *testing.T) {
	in := []byte(strings.Repeat("vellum ", 50))
	blob, err := compress(in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := decompress(blob)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != string(in) {
		t.Errorf("decompress mismatch")
	}
	if _, err := decompress([]byte("not xz")); err == nil {
		t.Error("expected error for invalid blob")
	}
}
