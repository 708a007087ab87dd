package render

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/starford/vellum/internal/contenttype"
	"github.com/starford/vellum/internal/convert"
	"github.com/starford/vellum/internal/exchange"
	"github.com/starford/vellum/internal/storage"
)

var (
	headings      = cascadia.MustCompile("h1, h2, h3, h4, h5, h6, h7")
	anyHeading    = regexp.MustCompile(`(?s)<h[1-7](?:\s[^>]*)?>(.*?)</h[1-7]>`)
	markupTag     = regexp.MustCompile(`<[^>]*>`)
	standaloneCSS = strings.Join([]string{
		`body { font-family: sans-serif; margin: 0; }`,
		`#content { margin-left: 18em; padding: 1em 2em; max-width: 60em; }`,
		`.tableOfContents { position: fixed; top: 0; left: 0; bottom: 0; width: 16em; overflow: auto; padding: 1em; border-right: 1px solid #ddd; }`,
		`ul.toc { list-style: none; padding-left: 1em; margin: 0; }`,
		`table { border-collapse: collapse; } td { border: 1px solid #ccc; padding: 0.2em 0.5em; }`,
		`thead td { font-weight: bold; background: #eee; } td.important { color: #b00; } td.highlight { background: #ffa; }`,
		`blockquote { background: #f7f7f7; border-left: 3px solid #ccc; padding: 0.5em 1em; font-family: monospace; }`,
		`.code-keyword { color: #7f0055; font-weight: bold; } .code-string { color: #2a00ff; } .code-comment { color: #3f7f5f; }`,
		`.code-method { color: #000080; } .code-label { color: #808000; } .xml-element { color: #3f7f7f; } .xml-attribute { color: #7f007f; }`,
		`a.internal[exists="false"], .bad { color: #b00; }`,
		`@media print { .tableOfContents { display: none; } #content { margin: 0; } }`,
	}, "\n")
)

// Standalone renders a self contained HTML page: images are embedded and a
// table of contents is built from the headings.
type Standalone struct {
	exchangeInput
	logger *slog.Logger
}

// NewStandalone returns the standalone HTML renderer.
func NewStandalone(logger *slog.Logger) *Standalone {
	if logger == nil {
		logger = slog.Default()
	}
	return &Standalone{logger: logger}
}

func (s *Standalone) Convert(m convert.Manager, doc storage.Document, w io.Writer, props convert.Properties) error {
	content, err := read(doc)
	if err != nil {
		return err
	}
	body, err := NewHTML(s.logger).Render(m, doc, content, props.With(PropEmbed, "true"))
	if err != nil {
		return err
	}
	toc, err := TableOfContents(body)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, `<html><head><meta charset="utf-8"/><title>%s</title><style>%s</style></head>`+
		`<body><div id="content">%s</div><div class="tableOfContents">%s</div></body></html>`,
		exchange.EscapeXML(doc.Name()), standaloneCSS, HeaderAnchors(body), toc)
	return err
}

// TableOfContents lists the headings of an HTML fragment as nested lists
// linking to their anchors.
func TableOfContents(fragment string) (string, error) {
	root, err := html.Parse(strings.NewReader("<html><body>" + fragment + "</body></html>"))
	if err != nil {
		return "", fmt.Errorf("render: parse html: %w", err)
	}
	var b strings.Builder
	current := 0
	for _, n := range headings.MatchAll(root) {
		level := int(n.Data[1] - '0')
		for ; current < level; current++ {
			b.WriteString(`<ul class="toc">`)
		}
		for ; current > level; current-- {
			b.WriteString("</ul>")
		}
		text := strings.TrimSpace(textContent(n))
		fmt.Fprintf(&b, `<li><a href="#%s">%s</a></li>`, exchange.EncodeAnchor(text), exchange.EscapeXML(text))
	}
	for ; current > 0; current-- {
		b.WriteString("</ul>")
	}
	return b.String(), nil
}

// HeaderAnchors puts a named anchor before every heading. The name is built
// from the heading text the same way TableOfContents builds its links.
func HeaderAnchors(fragment string) string {
	return anyHeading.ReplaceAllStringFunc(fragment, func(h string) string {
		inner := anyHeading.FindStringSubmatch(h)[1]
		text := html.UnescapeString(markupTag.ReplaceAllString(inner, ""))
		return `<a name="` + exchange.EncodeAnchor(strings.TrimSpace(text)) + `"></a>` + h
	})
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return b.String()
}

func (s *Standalone) OutputContentType() string { return contenttype.StandaloneHTML }
func (s *Standalone) Lossless() bool            { return true }
func (s *Standalone) String() string            { return "ExchangeToStandaloneHTML" }
