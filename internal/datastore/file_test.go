package datastore

import (
	"io"
	"strings"
	"testing"

	"github.com/starford/vellum/internal/storage"
)

func tempStore(t *testing.T) (*storage.FS, *FileStore) {
	t.Helper()
	vault, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	if err := vault.Write("docs/page.wiki", []byte("h1. Page")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return vault, NewFileStore(vault, vault.Document("docs/page.wiki"))
}

func TestStoreAndRetrieve(t *testing.T) {
	vault, s := tempStore(t)

	uri, err := s.Store(strings.NewReader("PNGDATA"), "photo", "image/png")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if uri != ".resources/photo.png" {
		t.Errorf("uri = %q, want .resources/photo.png", uri)
	}
	if _, err := vault.Read("docs/.resources/photo.png"); err != nil {
		t.Errorf("resource not written under the document's parent: %v", err)
	}

	rc, err := s.Retrieve(uri)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "PNGDATA" {
		t.Errorf("data = %q", data)
	}

	props, err := s.Properties(uri)
	if err != nil {
		t.Fatalf("Properties: %v", err)
	}
	if props.Name != "photo.png" || props.Size != 7 || props.ContentType != "image/png" {
		t.Errorf("props = %+v", props)
	}
}

func TestStoreUniqueNames(t *testing.T) {
	_, s := tempStore(t)
	want := []string{".resources/photo.png", ".resources/photo0.png", ".resources/photo1.png"}
	for i, w := range want {
		uri, err := s.Store(strings.NewReader("x"), "photo.png", "image/png")
		if err != nil {
			t.Fatalf("Store #%d: %v", i, err)
		}
		if uri != w {
			t.Errorf("Store #%d = %q, want %q", i, uri, w)
		}
	}
}

func TestStoreUnnamed(t *testing.T) {
	_, s := tempStore(t)
	first, _ := s.Store(strings.NewReader("a"), "", "image/gif")
	second, _ := s.Store(strings.NewReader("b"), "  ", "image/gif")
	if first != ".resources/unnamed0.gif" || second != ".resources/unnamed1.gif" {
		t.Errorf("unnamed = %q, %q", first, second)
	}
}

func TestStoreStripsDirectories(t *testing.T) {
	vault, s := tempStore(t)
	uri, err := s.Store(strings.NewReader("x"), "../../evil.png", "image/png")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if uri != ".resources/evil.png" {
		t.Errorf("uri = %q", uri)
	}
	if _, err := vault.Read("evil.png"); err == nil {
		t.Error("resource escaped the namespace")
	}
}

func TestOutsideNamespaceIsAbsent(t *testing.T) {
	vault, s := tempStore(t)
	_ = vault.Write("docs/secret.txt", []byte("x"))

	for _, uri := range []string{"secret.txt", ".resources/", ".resources/../secret.txt", ".resources/missing.png"} {
		if _, err := s.Retrieve(uri); !IsNotFound(err) {
			t.Errorf("Retrieve(%q) err = %v, want not found", uri, err)
		}
		if _, err := s.Properties(uri); !IsNotFound(err) {
			t.Errorf("Properties(%q) err = %v, want not found", uri, err)
		}
	}
}

func TestRootDocumentStore(t *testing.T) {
	vault, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s := NewFileStore(vault, nil)
	if s.Dir() != "/.resources" {
		t.Errorf("Dir = %q", s.Dir())
	}
}

func TestSchemeURIs(t *testing.T) {
	_, s := tempStore(t)
	if _, err := s.Store(strings.NewReader("x"), "a b.txt", "text/plain"); err != nil {
		t.Fatalf("Store: %v", err)
	}
	for _, uri := range []string{".resources/a%20b.txt", "store:.resources/a%20b.txt", "stream:/.resources/a%20b.txt"} {
		res, err := s.Properties(uri)
		if err != nil {
			t.Errorf("Properties(%q): %v", uri, err)
			continue
		}
		if res.Name != "a b.txt" || res.Size != 1 {
			t.Errorf("Properties(%q) = %+v", uri, res)
		}
	}
}

func TestPropertiesReportsVaultPath(t *testing.T) {
	vault, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ds := NewFileStore(vault, vault.Document("/docs/page.wiki"))
	uri, err := ds.Store(strings.NewReader("x"), "logo.png", "image/png")
	if err != nil {
		t.Fatal(err)
	}
	res, err := ds.Properties(uri)
	if err != nil {
		t.Fatal(err)
	}
	if res.Path != "/docs/.resources/logo.png" {
		t.Errorf("path = %q, want %q", res.Path, "/docs/.resources/logo.png")
	}
}
