// Package convert defines unit converters, converter chains and the
// registry that synthesizes multi-hop conversions between content types.
package convert

import (
	"fmt"
	"io"
	"strings"

	"github.com/starford/vellum/internal/datastore"
	"github.com/starford/vellum/internal/storage"
)

// Converter transforms documents of one of its input content types into its
// single output content type.
type Converter interface {
	// Convert reads doc, which matches one of ContentTypes, and writes the
	// converted bytes to w. Nested conversions (includes, quotes) go through m.
	// Content problems are reported as *apperr.FormatError; I/O errors are
	// returned as is.
	Convert(m Manager, doc storage.Document, w io.Writer, props Properties) error
	ContentTypes() []string
	OutputContentType() string
	Lossless() bool
}

// Manager is what a converter may call back into while converting.
type Manager interface {
	// Converter returns nil when no conversion path exists.
	Converter(from, to string) Converter
	Datastore(doc storage.Document) datastore.Datastore
}

// Name returns a short diagnostic name for c.
func Name(c Converter) string {
	if c == nil {
		return "<none>"
	}
	if s, ok := c.(fmt.Stringer); ok {
		return s.String()
	}
	n := fmt.Sprintf("%T", c)
	n = strings.TrimPrefix(n, "*")
	if i := strings.LastIndexByte(n, '.'); i >= 0 {
		n = n[i+1:]
	}
	return n
}

type passThrough struct {
	contentType string
}

// PassThrough returns a lossless identity converter for contentType.
func PassThrough(contentType string) Converter {
	return &passThrough{contentType: contentType}
}

func (p *passThrough) Convert(_ Manager, doc storage.Document, w io.Writer, _ Properties) error {
	rc, err := doc.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(w, rc)
	return err
}

func (p *passThrough) ContentTypes() []string    { return []string{p.contentType} }
func (p *passThrough) OutputContentType() string { return p.contentType }
func (p *passThrough) Lossless() bool            { return true }
func (p *passThrough) String() string            { return "PassThrough(" + p.contentType + ")" }
