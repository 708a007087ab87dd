package storage

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path"
	"time"
)

// Fragment is an ephemeral in-memory document: an intermediate conversion
// result, an extracted quote or a datastore resource. It resolves relative
// references through its parent.
type Fragment struct {
	parent      Document
	path        string
	contentType string
	data        []byte
	modified    time.Time
}

// NewFragment wraps data as a document at p with the given content type.
func NewFragment(parent Document, p, contentType string, data []byte) *Fragment {
	return &Fragment{
		parent:      parent,
		path:        p,
		contentType: contentType,
		data:        data,
		modified:    time.Now(),
	}
}

// WithModTime sets the reported modification time.
func (f *Fragment) WithModTime(t time.Time) *Fragment {
	f.modified = t
	return f
}

func (f *Fragment) Name() string            { return path.Base(f.path) }
func (f *Fragment) Path() string            { return f.path }
func (f *Fragment) Size() int64             { return int64(len(f.data)) }
func (f *Fragment) ContentType() string     { return f.contentType }
func (f *Fragment) LastModified() time.Time { return f.modified }
func (f *Fragment) Parent() Document        { return f.parent }
func (f *Fragment) Exists() bool            { return true }

// Bytes returns the fragment content without copying.
func (f *Fragment) Bytes() []byte { return f.data }

func (f *Fragment) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

func (f *Fragment) Resolve(rel string) Document {
	if f.parent == nil {
		return missing(rel)
	}
	return f.parent.Resolve(rel)
}

// missing is a handle for a reference that cannot be resolved at all.
type missing string

func (m missing) Name() string            { return path.Base(string(m)) }
func (m missing) Path() string            { return string(m) }
func (m missing) Size() int64             { return 0 }
func (m missing) ContentType() string     { return "" }
func (m missing) LastModified() time.Time { return time.Time{} }
func (m missing) Parent() Document        { return nil }
func (m missing) Resolve(rel string) Document {
	return missing(rel)
}
func (m missing) Exists() bool { return false }
func (m missing) Open() (io.ReadCloser, error) {
	return nil, fmt.Errorf("storage: open %s: %w", string(m), fs.ErrNotExist)
}
