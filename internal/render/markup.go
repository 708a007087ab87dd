package render

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"gopkg.in/yaml.v3"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/contenttype"
	"github.com/starford/vellum/internal/convert"
	"github.com/starford/vellum/internal/exchange"
	"github.com/starford/vellum/internal/storage"
)

// PropAnnotationDelimiter sets the marker of annotation lines written by
// the wiki renderer.
const PropAnnotationDelimiter = "annotationDelimiter"

// Markup renders exchange documents back into the wiki or Markdown dialect.
type Markup struct {
	exchangeInput
	markdown bool
	logger   *slog.Logger
}

// ToWiki returns the exchange to wiki renderer.
func ToWiki(logger *slog.Logger) *Markup {
	if logger == nil {
		logger = slog.Default()
	}
	return &Markup{logger: logger}
}

// ToMarkdown returns the exchange to Markdown renderer.
func ToMarkdown(logger *slog.Logger) *Markup {
	if logger == nil {
		logger = slog.Default()
	}
	return &Markup{markdown: true, logger: logger}
}

func (mk *Markup) Convert(_ convert.Manager, doc storage.Document, w io.Writer, props convert.Properties) error {
	content, err := read(doc)
	if err != nil {
		return err
	}
	out, err := mk.Render(content, props)
	if err != nil {
		return fmt.Errorf("render: %s: %w", doc.Path(), err)
	}
	_, err = io.WriteString(w, out)
	return err
}

var wikiStyles = map[string]string{
	"b": "**", "strong": "!!", "i": "++", "u": "__", "code": "@@",
	"cite": "??", "del": "~~", "ins": "%%",
}

// Render converts an exchange document into dialect source.
func (mk *Markup) Render(content string, props convert.Properties) (string, error) {
	if server := props.Get(PropServer, ""); server != "" {
		content = unrouteImages(content, server, props.Get(PropDownloadPath, DefaultDownloadPath))
	}
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(content), ctx)
	if err != nil {
		return "", &apperr.FormatError{Op: "render: markup", Detail: "parse exchange document", Err: err}
	}
	e := &emitter{markdown: mk.markdown}
	e.blocks(nodes)
	e.flush()

	head, err := e.head(props.Get(PropAnnotationDelimiter, "@"))
	if err != nil {
		return "", err
	}
	out := head + strings.Join(e.paras, "\n\n")
	out = strings.TrimLeft(extraNewlines.ReplaceAllString(out, "\n\n"), "\n")
	return strings.TrimRight(out, "\n") + "\n", nil
}

// unrouteImages turns image sources that point at the download route of
// server back into stream references.
func unrouteImages(content, server, download string) string {
	prefixes := []string{
		strings.TrimSuffix(server, "/") + "/" + strings.Trim(download, "/") + "/",
		"/" + strings.Trim(download, "/") + "/",
	}
	return imageSrc.ReplaceAllStringFunc(content, func(m string) string {
		sub := imageSrc.FindStringSubmatch(m)
		for _, p := range prefixes {
			if rest, ok := strings.CutPrefix(sub[2], p); ok {
				return sub[1] + exchange.SchemeStream + ":/" + rest + sub[3]
			}
		}
		return m
	})
}

// emitter accumulates the blocks of the output.
type emitter struct {
	markdown bool
	paras    []string
	pending  strings.Builder
	metas    []exchange.Meta
}

func (e *emitter) para(s string) {
	e.flush()
	if strings.TrimSpace(s) != "" {
		e.paras = append(e.paras, s)
	}
}

// flush closes the paragraph collecting loose inline content.
func (e *emitter) flush() {
	s := strings.TrimSpace(e.pending.String())
	e.pending.Reset()
	if s != "" {
		e.paras = append(e.paras, s)
	}
}

func (e *emitter) head(delim string) (string, error) {
	if len(e.metas) == 0 {
		return "", nil
	}
	if e.markdown {
		node := &yaml.Node{Kind: yaml.MappingNode}
		for _, m := range e.metas {
			node.Content = append(node.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: m.Name},
				&yaml.Node{Kind: yaml.ScalarNode, Value: m.Content})
		}
		out, err := yaml.Marshal(node)
		if err != nil {
			return "", fmt.Errorf("render: front matter: %w", err)
		}
		return "---\n" + string(out) + "---\n\n", nil
	}
	var b strings.Builder
	for _, m := range e.metas {
		b.WriteString(delim + m.Name + " " + m.Content + "\n")
	}
	return b.String() + "\n", nil
}

func (e *emitter) blocks(nodes []*html.Node) {
	for _, n := range nodes {
		e.block(n)
	}
}

func (e *emitter) block(n *html.Node) {
	if n.Type == html.TextNode {
		if strings.TrimSpace(n.Data) != "" {
			e.pending.WriteString(e.text(n.Data))
		}
		return
	}
	if n.Type != html.ElementNode {
		return
	}
	switch tag := n.Data; tag {
	case "meta":
		e.metas = append(e.metas, exchange.Meta{Name: attr(n, "name"), Content: attr(n, "content")})
	case "h1", "h2", "h3", "h4", "h5", "h6", "h7":
		if e.markdown {
			e.para(strings.Repeat("#", min(int(tag[1]-'0'), 6)) + " " + e.inline(n))
		} else {
			e.para(tag + ". " + e.inline(n))
		}
	case "p":
		e.para(e.inline(n))
	case "ul", "ol":
		e.para(strings.Join(e.list(n, 1), "\n"))
	case "table":
		e.para(e.table(n))
	case "blockquote":
		e.para(e.quote(n))
	case "hr":
		e.para("--")
	case "link":
		e.para("[:" + attr(n, "href") + "]")
	case "div", "section", "center":
		e.flush()
		e.blocks(childNodes(n))
		e.flush()
	default:
		e.pending.WriteString(e.inlineNode(n))
	}
}

func childNodes(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

func (e *emitter) text(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.ReplaceAll(s, "[", `\[`)
}

func (e *emitter) inline(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(e.inlineNode(c))
	}
	return b.String()
}

func (e *emitter) inlineNode(n *html.Node) string {
	switch n.Type {
	case html.TextNode:
		return e.text(n.Data)
	case html.ElementNode:
	default:
		return ""
	}
	if e.markdown && n.Data == "code" {
		return "`" + e.inline(n) + "`"
	}
	if d, ok := wikiStyles[n.Data]; ok {
		return d + e.inline(n) + d
	}
	switch n.Data {
	case "sub":
		return "-^" + e.inline(n) + "^"
	case "sup":
		return "+^" + e.inline(n) + "^"
	case "em":
		return "++" + e.inline(n) + "++"
	case "br":
		return "\n"
	case "a":
		return e.link(n)
	case "img":
		return e.image(n)
	case "link":
		return "[:" + attr(n, "href") + "]"
	case "span":
		if ref := attr(n, "reference"); ref != "" && attr(n, "class") == "bad" {
			return "[:" + ref + "]"
		}
		return e.inline(n)
	case "meta":
		e.metas = append(e.metas, exchange.Meta{Name: attr(n, "name"), Content: attr(n, "content")})
		return ""
	default:
		return e.inline(n)
	}
}

func (e *emitter) link(n *html.Node) string {
	text := e.inline(n)
	href, original := attr(n, "href"), attr(n, "original")
	named := attr(n, "hasdisplayname") == "true"
	switch {
	case href == "" && attr(n, "name") != "":
		if original == "" {
			original = attr(n, "name")
		}
		return "[#" + original + "]"
	case attr(n, "class") == "internal" && original != "":
		if !named {
			return "[$" + original + "]"
		}
		if e.markdown {
			return "[" + text + "](" + original + ")"
		}
		return "[" + text + "|$" + original + "]"
	case attr(n, "class") == "anchor" && original != "":
		if !named {
			text = ""
		}
		if e.markdown {
			if text == "" {
				return "[|#" + original + "]"
			}
			return "[" + text + "](#" + original + ")"
		}
		return "[" + text + "|#" + original + "]"
	case e.markdown:
		return "[" + text + "](" + href + ")"
	default:
		return "[" + text + "|" + href + "]"
	}
}

// image writes markdown image syntax, or for wiki an include of the image
// carrying its title and alternative text as parameters.
func (e *emitter) image(n *html.Node) string {
	ref := attr(n, "reference")
	if ref == "" {
		ref = strings.TrimPrefix(attr(n, "src"), exchange.SchemeStream+":")
	}
	title, alt := attr(n, "title"), attr(n, "alt")
	if e.markdown {
		out := "![" + alt + "](" + ref
		if title != "" && title != alt {
			out += ` "` + title + `"`
		}
		return out + ")"
	}
	q := url.Values{}
	if title != "" && title != ref {
		q.Set("title", title)
	}
	if alt != "" && alt != title {
		q.Set("alt", alt)
	}
	for _, k := range []string{"width", "height", "class"} {
		if v := attr(n, k); v != "" {
			q.Set(k, v)
		}
	}
	if len(q) == 0 {
		return "[:" + ref + "]"
	}
	return "[:" + ref + "?" + q.Encode() + "]"
}

func (e *emitter) list(n *html.Node, depth int) []string {
	var lines []string
	for li := n.FirstChild; li != nil; li = li.NextSibling {
		if li.Type == html.ElementNode && (li.Data == "ul" || li.Data == "ol") {
			lines = append(lines, e.list(li, depth+1)...)
			continue
		}
		if li.Type != html.ElementNode || li.Data != "li" {
			continue
		}
		var (
			item   strings.Builder
			nested []string
		)
		for c := li.FirstChild; c != nil; c = c.NextSibling {
			switch {
			case c.Type == html.ElementNode && (c.Data == "ul" || c.Data == "ol"):
				nested = append(nested, e.list(c, depth+1)...)
			case c.Type == html.ElementNode && c.Data == "em" && c == li.FirstChild:
				item.WriteString(":" + e.inline(c))
			default:
				item.WriteString(e.inlineNode(c))
			}
		}
		lines = append(lines, e.marker(n.Data, depth)+" "+strings.TrimSpace(item.String()))
		lines = append(lines, nested...)
	}
	return lines
}

func (e *emitter) marker(tag string, depth int) string {
	if e.markdown {
		m := "*"
		if tag == "ol" {
			m = "+"
		}
		return strings.Repeat("  ", depth-1) + m
	}
	if tag == "ol" {
		return strings.Repeat("#", depth)
	}
	return strings.Repeat("*", depth)
}

func (e *emitter) table(n *html.Node) string {
	var rows []string
	var walk func(n *html.Node, header bool)
	walk = func(n *html.Node, header bool) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "thead":
				walk(c, true)
			case "tbody", "tfoot":
				walk(c, false)
			case "tr":
				var cells []string
				for td := c.FirstChild; td != nil; td = td.NextSibling {
					if td.Type != html.ElementNode || (td.Data != "td" && td.Data != "th") {
						continue
					}
					cell := strings.TrimSpace(e.inline(td))
					switch attr(td, "class") {
					case "important":
						cell = "!" + cell + "!"
					case "highlight":
						cell = "@" + cell + "@"
					}
					cells = append(cells, cell)
				}
				row := "|" + strings.Join(cells, "|") + "|"
				if header {
					row = "|" + row
				}
				rows = append(rows, row)
			}
		}
	}
	walk(n, false)
	return strings.Join(rows, "\n")
}

func (e *emitter) quote(n *html.Node) string {
	format := attr(n, "format")
	content := strings.Trim(textContent(n), "\n")
	if e.markdown {
		if format == "txt" {
			format = ""
		}
		return "```" + format + "\n" + content + "\n```"
	}
	if format == "" || format == "txt" {
		return "[quote]\n" + content + "\n[/quote]"
	}
	return "[quote|" + format + "]\n" + content + "\n[/quote]"
}

func (mk *Markup) OutputContentType() string {
	if mk.markdown {
		return contenttype.Markdown
	}
	return contenttype.Wiki
}

func (mk *Markup) Lossless() bool { return true }

func (mk *Markup) String() string {
	if mk.markdown {
		return "ExchangeToMarkdown"
	}
	return "ExchangeToWiki"
}
