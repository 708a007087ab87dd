package source

import (
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/starford/vellum/internal/contenttype"
	"github.com/starford/vellum/internal/convert"
	"github.com/starford/vellum/internal/exchange"
	"github.com/starford/vellum/internal/storage"
)

// Image properties.
const (
	PropTitle  = "title"
	PropAlt    = "alt"
	PropWidth  = "width"
	PropHeight = "height"
	PropClass  = "class"
	PropFloat  = "float"
)

var hasScheme = regexp.MustCompile(`^\w+:`)

// Image turns a raster image into an exchange document holding a single
// image element that streams the original bytes.
type Image struct{}

func (Image) Convert(_ convert.Manager, doc storage.Document, w io.Writer, props convert.Properties) error {
	_, err := io.WriteString(w, ImageElement(doc.Path(), props))
	return err
}

// ImageElement renders the image element for the resource at p.
func ImageElement(p string, props convert.Properties) string {
	title := props.Get(PropTitle, p)
	alt := props.Get(PropAlt, title)
	src := p
	if hasScheme.MatchString(p) {
		src = url.PathEscape(p)
	}

	var b strings.Builder
	b.WriteString(`<img src="` + exchange.SchemeStream + ":" + exchange.EscapeAttrText(src) + `" `)
	if f := props.Get(PropFloat, ""); f != "" {
		b.WriteString(`style="float:` + exchange.EscapeAttrText(f) + `" `)
	}
	b.WriteString(`reference="` + exchange.EscapeAttrText(p) + `"`)
	b.WriteString(` title="` + exchange.EscapeAttrText(title) + `"`)
	b.WriteString(` alt="` + exchange.EscapeAttrText(alt) + `"`)
	for _, k := range []string{PropWidth, PropHeight, PropClass} {
		if v := props.Get(k, ""); v != "" {
			b.WriteString(" " + k + `="` + exchange.EscapeAttrText(v) + `"`)
		}
	}
	b.WriteString("/>")
	return b.String()
}

func (Image) ContentTypes() []string    { return contenttype.Images }
func (Image) OutputContentType() string { return exchange.ContentType }
func (Image) Lossless() bool            { return true }
func (Image) String() string            { return "ImageToExchange" }
