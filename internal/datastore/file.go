package datastore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/starford/vellum/internal/contenttype"
	"github.com/starford/vellum/internal/storage"
)

// FileStore keeps resources in the ".resources" directory next to a
// document in the vault.
type FileStore struct {
	fs  *storage.FS
	dir string // vault path of the namespace directory
}

// NewFileStore returns the datastore for doc: the namespace directory under
// doc's parent, or under the vault root when doc has no parent.
func NewFileStore(vault *storage.FS, doc storage.Document) *FileStore {
	parent := "/"
	if doc != nil && doc.Parent() != nil {
		parent = doc.Parent().Path()
	}
	return &FileStore{fs: vault, dir: path.Join(parent, strings.TrimSuffix(Namespace, "/"))}
}

// Dir returns the vault path of the namespace directory.
func (s *FileStore) Dir() string { return s.dir }

func notFound(uri string) error {
	return fmt.Errorf("datastore: %s: %w", uri, fs.ErrNotExist)
}

// resolve maps a namespace URI to a vault document. The scheme, if any, is
// ignored: "store:.resources/a.png" and ".resources/a.png" are the same.
func (s *FileStore) resolve(uri string) (storage.Document, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("datastore: parse %q: %w", uri, err)
	}
	p := u.Path
	if p == "" && u.Opaque != "" {
		if p, err = url.PathUnescape(u.Opaque); err != nil {
			return nil, fmt.Errorf("datastore: parse %q: %w", uri, err)
		}
	}
	rest, ok := strings.CutPrefix(strings.TrimPrefix(p, "/"), Namespace)
	if !ok || rest == "" || strings.Contains(rest, "..") {
		return nil, notFound(uri)
	}
	doc := s.fs.Document(path.Join(s.dir, rest))
	if !doc.Exists() {
		return nil, notFound(uri)
	}
	return doc, nil
}

func (s *FileStore) Retrieve(uri string) (io.ReadCloser, error) {
	doc, err := s.resolve(uri)
	if err != nil {
		return nil, err
	}
	return doc.Open()
}

func (s *FileStore) Properties(uri string) (*Resource, error) {
	doc, err := s.resolve(uri)
	if err != nil {
		return nil, err
	}
	return &Resource{
		URI:          uri,
		Path:         doc.Path(),
		Name:         doc.Name(),
		ContentType:  doc.ContentType(),
		Size:         doc.Size(),
		LastModified: doc.LastModified(),
	}, nil
}

var counterPrefix = regexp.MustCompile(`^([^.0-9]+)[0-9]*`)

// Store writes r under a unique name derived from name and returns its URI.
// The extension for contentType is appended when missing.
func (s *FileStore) Store(r io.Reader, name, contentType string) (string, error) {
	name = strings.TrimSpace(name)
	if name != "" {
		cleaned := path.Base(strings.ReplaceAll(name, "\\", "/"))
		if cleaned == "." || cleaned == "/" || cleaned == ".." {
			return "", fmt.Errorf("datastore: invalid name: %s", name)
		}
		name = cleaned
	}

	ext := contenttype.Extension(contentType)
	if name != "" && ext != "" && !strings.HasSuffix(name, "."+ext) {
		name += "." + ext
	}

	base := name
	for counter := 0; name == "" || s.fs.Document(path.Join(s.dir, name)).Exists(); counter++ {
		name = candidate(base, ext, counter)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("datastore: read input: %w", err)
	}
	if err := s.fs.Write(path.Join(s.dir, name), data); err != nil {
		return "", err
	}
	return Namespace + url.PathEscape(name), nil
}

// candidate numbers base: "photo.png" becomes "photo0.png", "photo1.png"...
func candidate(base, ext string, counter int) string {
	n := strconv.Itoa(counter)
	switch {
	case base == "" && ext == "":
		return "unnamed" + n
	case base == "":
		return "unnamed" + n + "." + ext
	case counterPrefix.MatchString(base):
		return counterPrefix.ReplaceAllString(base, "${1}"+n)
	default:
		return strings.TrimSuffix(base, path.Ext(base)) + "-" + n + path.Ext(base)
	}
}

// IsNotFound reports whether err means the resource is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
