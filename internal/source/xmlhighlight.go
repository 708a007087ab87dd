package source

import (
	"io"
	"regexp"
	"strings"

	"github.com/starford/vellum/internal/contenttype"
	"github.com/starford/vellum/internal/convert"
	"github.com/starford/vellum/internal/exchange"
	"github.com/starford/vellum/internal/storage"
)

var (
	xmlComment   = regexp.MustCompile(`(?s)<!--.*?-->`)
	xmlCDATA     = regexp.MustCompile(`(?s)<!\[CDATA\[.*?\]\]>`)
	xmlTag       = regexp.MustCompile(`<[^>]+>`)
	xmlTagParts  = regexp.MustCompile(`(?s)^<(/?[?!]?[\w:.-]*)(.*?)([/?]?)>$`)
	xmlAttribute = regexp.MustCompile(`([\w:.-]+)(\s*=\s*)("[^"]*"|'[^']*')`)
)

// XMLHighlight renders XML as HTML with element, attribute, comment and
// string highlighting.
type XMLHighlight struct{}

func (XMLHighlight) Convert(_ convert.Manager, doc storage.Document, w io.Writer, _ convert.Properties) error {
	data, err := storage.ReadAll(doc)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, HighlightXML(string(data)))
	return err
}

// HighlightXML marks the elements, attributes, comments and attribute values
// of s.
func HighlightXML(s string) string {
	s = strings.ReplaceAll(normalize(s), "&", "&amp;")

	comments := exchange.NewPlaceholders[string]("comment")
	s = xmlComment.ReplaceAllStringFunc(s, comments.Protect)
	s = xmlCDATA.ReplaceAllStringFunc(s, comments.Protect)
	s = xmlTag.ReplaceAllStringFunc(s, element)
	s = comments.Restore(s, func(c string) string {
		lines := strings.Split(escapeMarkup(c), "\n")
		for i, l := range lines {
			lines[i] = `<span class="code-comment">` + l + "</span>"
		}
		return strings.Join(lines, "\n")
	})
	s = numbered(s)
	return strings.ReplaceAll(s, "\t", exchange.TabSpaces)
}

var markupEscaper = strings.NewReplacer("<", "&lt;", ">", "&gt;")

func escapeMarkup(s string) string { return markupEscaper.Replace(s) }

func element(tag string) string {
	m := xmlTagParts.FindStringSubmatch(tag)
	if m == nil {
		return escapeMarkup(tag)
	}
	attrs := xmlAttribute.ReplaceAllStringFunc(escapeMarkup(m[2]), func(a string) string {
		p := xmlAttribute.FindStringSubmatch(a)
		return `<span class="xml-attribute">` + p[1] + "</span>" + p[2] + `<span class="code-string">` + p[3] + "</span>"
	})
	return `<span class="xml-element">&lt;` + m[1] + "</span>" + attrs +
		`<span class="xml-element">` + m[3] + "&gt;</span>"
}

func (XMLHighlight) ContentTypes() []string {
	return []string{contenttype.XML, contenttype.TextXML}
}

func (XMLHighlight) OutputContentType() string { return contenttype.HTML }
func (XMLHighlight) Lossless() bool            { return false }
func (XMLHighlight) String() string            { return "XMLToHTML" }
