package render

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"path"
	"strings"

	"github.com/starford/vellum/internal/contenttype"
	"github.com/starford/vellum/internal/convert"
	"github.com/starford/vellum/internal/datastore"
	"github.com/starford/vellum/internal/storage"
)

// Resource is the content behind a stream reference.
type Resource struct {
	Path        string
	ContentType string
	Data        []byte
}

// OpenResource loads the target of a stream reference made from doc: a
// datastore resource, a vault file, or an entry inside an ODT package
// ("/a/doc.odt/Pictures/x.png").
func OpenResource(m convert.Manager, doc storage.Document, ref string) (*Resource, error) {
	if p, err := url.PathUnescape(ref); err == nil {
		ref = p
	}
	if u, err := url.Parse(ref); err == nil && u.Scheme != "" || strings.HasPrefix(ref, datastore.Namespace) {
		return fromDatastore(m, doc, ref)
	}

	target := doc.Resolve(ref)
	if target != nil && target.Exists() && target.ContentType() != "" {
		data, err := storage.ReadAll(target)
		if err != nil {
			return nil, err
		}
		return &Resource{Path: target.Path(), ContentType: target.ContentType(), Data: data}, nil
	}
	if target != nil {
		if r, err := fromArchive(doc, target.Path()); err == nil {
			return r, nil
		}
	}
	return nil, fmt.Errorf("render: resource %s: %w", ref, fs.ErrNotExist)
}

func fromDatastore(m convert.Manager, doc storage.Document, ref string) (*Resource, error) {
	if m == nil {
		return nil, fmt.Errorf("render: resource %s: %w", ref, fs.ErrNotExist)
	}
	ds := m.Datastore(doc)
	if ds == nil {
		return nil, fmt.Errorf("render: resource %s: %w", ref, fs.ErrNotExist)
	}
	props, err := ds.Properties(ref)
	if err != nil {
		return nil, err
	}
	rc, err := ds.Retrieve(ref)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("render: read %s: %w", ref, err)
	}
	p := props.Path
	if p == "" {
		p = ref
	}
	return &Resource{Path: p, ContentType: props.ContentType, Data: data}, nil
}

// fromArchive looks for an ODT package among the ancestors of p and reads
// the rest of p from it.
func fromArchive(doc storage.Document, p string) (*Resource, error) {
	parts := strings.Split(strings.TrimPrefix(p, "/"), "/")
	for i := len(parts) - 1; i > 0; i-- {
		pkg := "/" + strings.Join(parts[:i], "/")
		if contenttype.ForName(pkg) != contenttype.ODT {
			continue
		}
		archive := doc.Resolve(pkg)
		if archive == nil || !archive.Exists() {
			return nil, fs.ErrNotExist
		}
		data, err := storage.ReadAll(archive)
		if err != nil {
			return nil, err
		}
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, fmt.Errorf("render: open %s: %w", pkg, err)
		}
		entry := strings.Join(parts[i:], "/")
		f, err := zr.Open(entry)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("render: read %s: %w", entry, err)
		}
		return &Resource{Path: p, ContentType: contenttype.ForName(entry), Data: content}, nil
	}
	return nil, fs.ErrNotExist
}

// Name returns the file name of the resource.
func (r *Resource) Name() string { return path.Base(r.Path) }
