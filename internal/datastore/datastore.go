// Package datastore stores attachment-style resources next to documents,
// outside the normal file hierarchy, under a reserved namespace.
package datastore

import (
	"io"
	"time"
)

// Namespace is the reserved prefix of every URI a Datastore hands out.
const Namespace = ".resources/"

// Resource describes a stored resource. Path is the vault path of the
// resource when the store keeps it in the vault.
type Resource struct {
	URI          string    `json:"uri"`
	Path         string    `json:"path,omitempty"`
	Name         string    `json:"name"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// Datastore retrieves and stores resources by URI. Retrieve and Properties
// return an error matching fs.ErrNotExist for URIs that are outside the
// namespace or do not exist.
type Datastore interface {
	Retrieve(uri string) (io.ReadCloser, error)
	Properties(uri string) (*Resource, error)
	Store(r io.Reader, name, contentType string) (string, error)
}
