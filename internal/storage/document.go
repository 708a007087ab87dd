// Package storage defines the vault file-system abstraction and the
// document handles converters read from.
package storage

import (
	"fmt"
	"io"
	"time"
)

// Document is a read-only handle on a file, a directory or an in-memory
// fragment. Paths are slash separated and rooted at the vault ("/a/b.wiki").
type Document interface {
	Name() string
	Path() string
	Size() int64
	// ContentType is empty for directories and unknown extensions.
	ContentType() string
	LastModified() time.Time
	Open() (io.ReadCloser, error)
	// Parent returns the containing directory, or nil at the root.
	Parent() Document
	// Resolve returns a handle for rel, relative to this document when it is a
	// directory and to its parent otherwise. A leading "/" resolves from the
	// vault root. The handle may not exist.
	Resolve(rel string) Document
	Exists() bool
}

// ReadAll reads the full content of doc.
func ReadAll(doc Document) ([]byte, error) {
	rc, err := doc.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", doc.Path(), err)
	}
	return data, nil
}
