package markup

import (
	"io"
	"log/slog"
	"strings"

	"github.com/starford/vellum/internal/contenttype"
	"github.com/starford/vellum/internal/convert"
	"github.com/starford/vellum/internal/exchange"
	"github.com/starford/vellum/internal/storage"
)

// PropAnnotationDelimiter overrides the annotation line marker.
const PropAnnotationDelimiter = "annotationDelimiter"

// Compiler turns documents of one dialect into the exchange format or into
// editable HTML.
type Compiler struct {
	dialect *Dialect
	logger  *slog.Logger
}

// NewCompiler returns a compiler for d.
func NewCompiler(d *Dialect, logger *slog.Logger) *Compiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compiler{dialect: d, logger: logger}
}

// compilation is the state of a single Compile call.
type compilation struct {
	dialect *Dialect
	doc     storage.Document
	quotes  *exchange.Placeholders[quote]
	metas   *exchange.Placeholders[string]
	err     error
}

func (c *compilation) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

func (c *Compiler) begin(doc storage.Document) *compilation {
	return &compilation{
		dialect: c.dialect,
		doc:     doc,
		quotes:  exchange.NewPlaceholders[quote]("quote"),
		metas:   exchange.NewPlaceholders[string]("meta"),
	}
}

// prepare runs the passes shared by both outputs up to paragraph wrapping.
func (c *compilation) prepare(src string, props convert.Properties) string {
	s := strings.ReplaceAll(src, "\r", "")
	if c.dialect.fences {
		s = extractFences(s, c.quotes)
	}
	s = extractQuotes(s, c.quotes)
	s = exchange.EscapeXML(s)
	s = c.annotations(s, props.Get(PropAnnotationDelimiter, DefaultAnnotationDelimiter))

	s = c.dialect.headers(s)
	s = c.dialect.lists(s)
	s = tables(s)
	s = c.dialect.styling(s)
	return paragraphs(s)
}

func (c *compilation) annotations(s, delim string) string {
	var metas []exchange.Meta
	if c.dialect.frontMatter {
		metas, s = splitFrontMatter(s)
	}
	if metas == nil {
		metas, s = annotations(s, delim)
	}
	if len(metas) == 0 {
		return s
	}
	return c.metas.Protect(metaElements(metas)) + "\n\n" + s
}

// Compile converts src, the content of doc, into the exchange format.
func (c *Compiler) Compile(doc storage.Document, src string, props convert.Properties) (string, error) {
	cc := c.begin(doc)
	s := cc.prepare(src, props)

	s = cc.externalLinks(s)
	s = cc.anchorLinks(s)
	s = cc.localLinks(s)
	s = cc.anchors(s)
	if cc.err != nil {
		return "", cc.err
	}
	s = cc.metas.Restore(s, identity)
	s = linebreaks(s)
	s = includes(s)
	s = strings.ReplaceAll(s, `\[`, "[")
	return cc.quotes.Restore(s, renderQuote), nil
}

// CompileEditable converts src into HTML meant for a rich text editor:
// links stay in source form, includes are wrapped in paragraphs and quotes
// are shown escaped.
func (c *Compiler) CompileEditable(doc storage.Document, src string, props convert.Properties) string {
	cc := c.begin(doc)
	s := cc.prepare(src, props)
	s = cc.metas.Restore(s, identity)
	s = linebreaks(s)
	s = replaceUnescaped(includeMarker, s, func(m []string) string { return "<p>" + m[0] + "</p>" })
	s = cc.quotes.Restore(s, renderQuote)
	s = strings.ReplaceAll(s, "\n", "<br/>")
	return strings.ReplaceAll(s, "\t", exchange.TabSpaces)
}

func identity(s string) string { return s }

// Converter adapts a Compiler to the converter registry.
type Converter struct {
	compiler *Compiler
	editable bool
}

// ToExchange returns the lossless converter from d to the exchange format.
func ToExchange(d *Dialect, logger *slog.Logger) *Converter {
	return &Converter{compiler: NewCompiler(d, logger)}
}

// ToEditable returns the lossless converter from d to editable HTML.
func ToEditable(d *Dialect, logger *slog.Logger) *Converter {
	return &Converter{compiler: NewCompiler(d, logger), editable: true}
}

func (cv *Converter) Convert(_ convert.Manager, doc storage.Document, w io.Writer, props convert.Properties) error {
	data, err := storage.ReadAll(doc)
	if err != nil {
		return err
	}
	cv.compiler.logger.Debug("compiling document", "path", doc.Path(), "dialect", cv.compiler.dialect.name)

	var out string
	if cv.editable {
		out = cv.compiler.CompileEditable(doc, string(data), props)
	} else if out, err = cv.compiler.Compile(doc, string(data), props); err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

func (cv *Converter) ContentTypes() []string { return []string{cv.compiler.dialect.contentType} }

func (cv *Converter) OutputContentType() string {
	if cv.editable {
		return contenttype.EditableHTML
	}
	return exchange.ContentType
}

func (cv *Converter) Lossless() bool { return true }

func (cv *Converter) String() string {
	name := strings.ToUpper(cv.compiler.dialect.name[:1]) + cv.compiler.dialect.name[1:]
	if cv.editable {
		return name + "ToEditableHTML"
	}
	return name + "ToExchange"
}
