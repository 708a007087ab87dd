// Package manager is the façade callers convert documents through. It picks
// converters from the registry and fronts them with an optional cache.
package manager

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/convert"
	"github.com/starford/vellum/internal/datastore"
	"github.com/starford/vellum/internal/storage"
)

// Cache stores renderings keyed by document and target content type.
// Implementations decide whether a stored rendering is still valid for the
// document's current content.
type Cache interface {
	Lookup(ctx context.Context, doc storage.Document, to string) ([]byte, bool, error)
	Store(ctx context.Context, doc storage.Document, to string, data []byte) error
}

// DatastoreFactory returns the attachment store of a document.
type DatastoreFactory func(doc storage.Document) datastore.Datastore

// Manager converts documents. It implements convert.Manager so converters
// can resolve nested conversions through it.
type Manager struct {
	registry   *convert.Registry
	cache      Cache
	sizeLimit  int64
	cacheTypes []string
	datastores DatastoreFactory
	logger     *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithCache fronts conversions with c.
func WithCache(c Cache) Option {
	return func(m *Manager) { m.cache = c }
}

// WithSizeLimit keeps renderings of n bytes or more out of the cache. Zero
// or less disables the limit.
func WithSizeLimit(n int64) Option {
	return func(m *Manager) { m.sizeLimit = n }
}

// WithCacheContentTypes restricts caching to the given target types.
func WithCacheContentTypes(types ...string) Option {
	return func(m *Manager) { m.cacheTypes = types }
}

// WithDatastoreFactory replaces the default file datastore.
func WithDatastoreFactory(f DatastoreFactory) Option {
	return func(m *Manager) { m.datastores = f }
}

// WithLogger sets the manager logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// New returns a manager over registry. Attachments live next to the
// documents of vault unless a datastore factory is given.
func New(registry *convert.Registry, vault *storage.FS, opts ...Option) *Manager {
	m := &Manager{
		registry: registry,
		logger:   slog.Default(),
	}
	if vault != nil {
		m.datastores = func(doc storage.Document) datastore.Datastore {
			return datastore.NewFileStore(vault, doc)
		}
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Registry returns the converter registry.
func (m *Manager) Registry() *convert.Registry { return m.registry }

// Converter returns the converter from one type to another, or nil.
func (m *Manager) Converter(from, to string) convert.Converter {
	return m.registry.Converter(from, to)
}

// CanConvert reports whether a conversion path exists.
func (m *Manager) CanConvert(from, to string) bool {
	return m.registry.Converter(from, to) != nil
}

// Datastore returns the attachment store of doc, or nil when none is
// configured.
func (m *Manager) Datastore(doc storage.Document) datastore.Datastore {
	if m.datastores == nil {
		return nil
	}
	return m.datastores(doc)
}

// Convert renders doc as content type to. The cache is consulted and
// populated only when props is nil; any property may change the output.
func (m *Manager) Convert(ctx context.Context, doc storage.Document, to string, props convert.Properties) ([]byte, error) {
	c, err := m.lookup(doc, to)
	if err != nil {
		return nil, err
	}
	cacheable := props == nil && m.cache != nil && m.cachesType(to)
	if cacheable {
		data, ok, err := m.cache.Lookup(ctx, doc, to)
		if err != nil {
			m.logger.Warn("cache lookup failed", slog.String("path", doc.Path()), slog.Any("error", err))
		} else if ok {
			m.logger.Debug("cache hit", slog.String("path", doc.Path()), slog.String("to", to))
			return data, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := c.Convert(m, doc, &buf, props); err != nil {
		return nil, err
	}
	out := buf.Bytes()

	if cacheable && (m.sizeLimit <= 0 || int64(len(out)) < m.sizeLimit) {
		if err := m.cache.Store(ctx, doc, to, out); err != nil {
			m.logger.Warn("cache store failed", slog.String("path", doc.Path()), slog.Any("error", err))
		}
	}
	return out, nil
}

// ConvertTo renders doc into w. Uncached conversions stream straight to w.
func (m *Manager) ConvertTo(ctx context.Context, doc storage.Document, to string, props convert.Properties, w io.Writer) error {
	if props == nil && m.cache != nil && m.cachesType(to) {
		data, err := m.Convert(ctx, doc, to, nil)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}
	c, err := m.lookup(doc, to)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.Convert(m, doc, w, props)
}

func (m *Manager) lookup(doc storage.Document, to string) (convert.Converter, error) {
	from := doc.ContentType()
	if from == "" {
		return nil, fmt.Errorf("manager: %s has no content type: %w", doc.Path(), apperr.ErrInvalidInput)
	}
	if to == "" {
		return nil, fmt.Errorf("manager: no target content type: %w", apperr.ErrInvalidInput)
	}
	c := m.registry.Converter(from, to)
	if c == nil {
		return nil, fmt.Errorf("manager: %s to %s: %w", from, to, apperr.ErrNoConverter)
	}
	return c, nil
}

func (m *Manager) cachesType(to string) bool {
	return len(m.cacheTypes) == 0 || slices.Contains(m.cacheTypes, to)
}
