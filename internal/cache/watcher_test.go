package cache

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/vellum/internal/contenttype"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) record(kind, path string) {
	r.mu.Lock()
	r.events = append(r.events, kind+":"+path)
	r.mu.Unlock()
}

func (r *recorder) has(event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == event {
			return true
		}
	}
	return false
}

func recorded(db *DB, p string) bool {
	cs, _ := db.checksum(context.Background(), p)
	return cs != ""
}

func TestWatcher_NewFileRecorded(t *testing.T) {
	db := testDB(t)
	vault := testVault(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	go Watch(ctx, db, vault, quietLogger(), rec.record)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(vault.Root(), "new.wiki"), []byte("h1. New"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return recorded(db, "/new.wiki")
	}, "new file not recorded by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("created:/new.wiki")
	}, "expected created:/new.wiki callback")
}

func TestWatcher_NewDirWatched(t *testing.T) {
	db := testDB(t)
	vault := testVault(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, vault, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	subDir := filepath.Join(vault.Root(), "subdir")
	_ = os.MkdirAll(subDir, 0o755)
	time.Sleep(200 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(subDir, "deep.md"), []byte("# Deep"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return recorded(db, "/subdir/deep.md")
	}, "file in new subdir not recorded by watcher")
}

func TestWatcher_DeleteForgets(t *testing.T) {
	db := testDB(t)
	vault := testVault(t, map[string]string{"/del.wiki": "Delete me"})
	if err := Sync(context.Background(), db, vault, quietLogger()); err != nil {
		t.Fatal(err)
	}
	if !recorded(db, "/del.wiki") {
		t.Fatal("precondition: file should be recorded")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	go Watch(ctx, db, vault, quietLogger(), rec.record)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(vault.Root(), "del.wiki"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return !recorded(db, "/del.wiki") && rec.has("deleted:/del.wiki")
	}, "deleted file still recorded")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	db := testDB(t)
	vault := testVault(t, map[string]string{"/old.wiki": "Rename"})
	if err := Sync(context.Background(), db, vault, quietLogger()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, vault, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(filepath.Join(vault.Root(), "old.wiki"), filepath.Join(vault.Root(), "renamed.wiki"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return !recorded(db, "/old.wiki") && recorded(db, "/renamed.wiki")
	}, "rename reconciliation failed: old path should be forgotten and new path recorded")
}

func TestWatcher_AttachmentInvalidatesIncluder(t *testing.T) {
	db := testDB(t)
	vault := testVault(t, map[string]string{
		"/page.wiki":          "[:.resources/img.png]",
		"/.resources/img.png": "v1",
	})
	bg := context.Background()
	if err := Sync(bg, db, vault, quietLogger()); err != nil {
		t.Fatal(err)
	}
	page := vault.Document("/page.wiki")
	if err := db.Store(bg, page, contenttype.HTML, []byte("<img/>")); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(bg)
	defer cancel()

	rec := &recorder{}
	go Watch(ctx, db, vault, quietLogger(), rec.record)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(vault.Root(), ".resources", "img.png"), []byte("v2"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, ok, _ := db.Lookup(bg, page, contenttype.HTML)
		return !ok && rec.has("invalidated:/page.wiki")
	}, "attachment change did not invalidate the including page")

	if recorded(db, "/.resources/img.png") {
		t.Error("attachment should not be recorded as a document")
	}
}
