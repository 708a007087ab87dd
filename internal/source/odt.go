package source

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/contenttype"
	"github.com/starford/vellum/internal/convert"
	"github.com/starford/vellum/internal/exchange"
	"github.com/starford/vellum/internal/storage"
)

// ODT reads OpenDocument text into the exchange format. Only structure and
// basic character styles survive.
type ODT struct{}

func (ODT) Convert(_ convert.Manager, doc storage.Document, w io.Writer, _ convert.Properties) error {
	data, err := storage.ReadAll(doc)
	if err != nil {
		return err
	}
	out, err := ReadODT(doc.Path(), data)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

// ReadODT converts the package in data, stored at p, into the exchange
// format. Embedded pictures are referenced below p.
func ReadODT(p string, data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &apperr.FormatError{Op: "source: odt", Detail: "not a zip package", Err: err}
	}
	content, err := parseEntry(zr, "content.xml")
	if err != nil {
		return "", err
	}
	if content == nil {
		return "", apperr.Formatf("source: odt", "%s has no content.xml", p)
	}

	r := &odtReader{path: p, styles: textStyles(content), lists: listStyles(content)}
	body := xmlquery.FindOne(content, "//*[local-name()='body']/*[local-name()='text']")
	if body == nil {
		return "", apperr.Formatf("source: odt", "%s has no text body", p)
	}
	r.blocks(body)

	meta, err := parseEntry(zr, "meta.xml")
	if err != nil {
		return "", err
	}
	return odtMeta(meta) + strings.ReplaceAll(r.b.String(), "\t", exchange.TabSpaces), nil
}

func parseEntry(zr *zip.Reader, name string) (*xmlquery.Node, error) {
	f, err := zr.Open(name)
	if err != nil {
		return nil, nil
	}
	defer f.Close()
	n, err := xmlquery.Parse(f)
	if err != nil {
		return nil, &apperr.FormatError{Op: "source: odt", Detail: "parse " + name, Err: err}
	}
	return n, nil
}

func odtMeta(meta *xmlquery.Node) string {
	if meta == nil {
		return ""
	}
	var out string
	if t := xmlquery.FindOne(meta, "//*[local-name()='meta']/*[local-name()='title']"); t != nil {
		if v := strings.TrimSpace(t.InnerText()); v != "" {
			out += exchange.MetaElement(exchange.MetaTitle, v)
		}
	}
	var tags []string
	for _, k := range xmlquery.Find(meta, "//*[local-name()='keyword']") {
		if v := strings.TrimSpace(k.InnerText()); v != "" {
			tags = append(tags, v)
		}
	}
	if len(tags) > 0 {
		out += exchange.MetaElement(exchange.MetaTags, strings.Join(tags, ","))
	}
	return out
}

// charStyle is the subset of an automatic text style that is kept.
type charStyle struct {
	bold, italic, underline bool
}

func textStyles(content *xmlquery.Node) map[string]charStyle {
	out := map[string]charStyle{}
	for _, s := range xmlquery.Find(content, "//*[local-name()='automatic-styles']/*[local-name()='style']") {
		tp := child(s, "text-properties")
		if tp == nil {
			continue
		}
		out[attr(s, "name")] = charStyle{
			bold:      attr(tp, "font-weight") == "bold",
			italic:    attr(tp, "font-style") == "italic",
			underline: attr(tp, "text-underline-style") != "" && attr(tp, "text-underline-style") != "none",
		}
	}
	return out
}

// listStyles records which list styles number their items.
func listStyles(content *xmlquery.Node) map[string]bool {
	out := map[string]bool{}
	for _, s := range xmlquery.Find(content, "//*[local-name()='list-style']") {
		out[attr(s, "name")] = child(s, "list-level-style-number") != nil
	}
	return out
}

func attr(n *xmlquery.Node, local string) string {
	for _, a := range n.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func child(n *xmlquery.Node, local string) *xmlquery.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode && c.Data == local {
			return c
		}
	}
	return nil
}

type odtReader struct {
	path   string
	styles map[string]charStyle
	lists  map[string]bool
	b      strings.Builder
}

func (r *odtReader) blocks(n *xmlquery.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xmlquery.ElementNode {
			continue
		}
		switch c.Data {
		case "h":
			level, err := strconv.Atoi(attr(c, "outline-level"))
			if err != nil || level < 1 {
				level = 1
			}
			level = min(level, 7)
			fmt.Fprintf(&r.b, "<h%d>", level)
			r.inline(c)
			fmt.Fprintf(&r.b, "</h%d>", level)
		case "p":
			if strings.TrimSpace(c.InnerText()) == "" && child(c, "frame") == nil {
				continue
			}
			r.b.WriteString("<p>")
			r.inline(c)
			r.b.WriteString("</p>")
		case "list":
			r.list(c, attr(c, "style-name"))
		case "table":
			r.table(c)
		case "section":
			r.blocks(c)
		}
	}
}

// list renders nested lists; nested lists inherit the outer style name.
func (r *odtReader) list(n *xmlquery.Node, style string) {
	if s := attr(n, "style-name"); s != "" {
		style = s
	}
	tag := "ul"
	if r.lists[style] {
		tag = "ol"
	}
	r.b.WriteString("<" + tag + ">")
	for item := n.FirstChild; item != nil; item = item.NextSibling {
		if item.Type != xmlquery.ElementNode || item.Data != "list-item" {
			continue
		}
		r.b.WriteString("<li>")
		first := true
		for c := item.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != xmlquery.ElementNode {
				continue
			}
			switch c.Data {
			case "p", "h":
				if !first {
					r.b.WriteString("<br/>")
				}
				r.inline(c)
				first = false
			case "list":
				r.list(c, style)
			}
		}
		r.b.WriteString("</li>")
	}
	r.b.WriteString("</" + tag + ">")
}

func (r *odtReader) table(n *xmlquery.Node) {
	r.b.WriteString(`<table cellspacing="0" cellpadding="0">`)
	rows := xmlquery.Find(n, "./*[local-name()='table-row'] | ./*[local-name()='table-header-rows']/*[local-name()='table-row']")
	for _, row := range rows {
		r.b.WriteString("<tr>")
		for c := row.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != xmlquery.ElementNode || c.Data != "table-cell" {
				continue
			}
			r.b.WriteString("<td>")
			first := true
			for p := c.FirstChild; p != nil; p = p.NextSibling {
				if p.Type != xmlquery.ElementNode || (p.Data != "p" && p.Data != "h") {
					continue
				}
				if !first {
					r.b.WriteString("<br/>")
				}
				r.inline(p)
				first = false
			}
			r.b.WriteString("</td>")
		}
		r.b.WriteString("</tr>")
	}
	r.b.WriteString("</table>")
}

func (r *odtReader) inline(n *xmlquery.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case xmlquery.TextNode, xmlquery.CharDataNode:
			r.b.WriteString(exchange.EscapeXML(c.Data))
			continue
		case xmlquery.ElementNode:
		default:
			continue
		}
		switch c.Data {
		case "span":
			st := r.styles[attr(c, "style-name")]
			open, end := "", ""
			for _, t := range []struct {
				on  bool
				tag string
			}{{st.bold, "b"}, {st.italic, "i"}, {st.underline, "u"}} {
				if t.on {
					open += "<" + t.tag + ">"
					end = "</" + t.tag + ">" + end
				}
			}
			r.b.WriteString(open)
			r.inline(c)
			r.b.WriteString(end)
		case "a":
			href := attr(c, "href")
			r.b.WriteString(`<a class="external" href="` + exchange.EscapeAttrText(href) + `">`)
			r.inline(c)
			r.b.WriteString("</a>")
		case "s":
			count, err := strconv.Atoi(attr(c, "c"))
			if err != nil || count < 1 {
				count = 1
			}
			r.b.WriteString(strings.Repeat("&nbsp;", count))
		case "tab":
			r.b.WriteString(exchange.TabSpaces)
		case "line-break":
			r.b.WriteString("<br/>")
		case "frame":
			r.frame(c)
		case "note", "annotation", "bookmark", "bookmark-start", "bookmark-end", "soft-page-break":
		default:
			r.inline(c)
		}
	}
}

func (r *odtReader) frame(n *xmlquery.Node) {
	img := child(n, "image")
	if img == nil {
		return
	}
	href := attr(img, "href")
	if href == "" || hasScheme.MatchString(href) {
		return
	}
	title := attr(n, "name")
	if t := child(n, "title"); t != nil {
		title = strings.TrimSpace(t.InnerText())
	}
	src := exchange.SchemeStream + ":" + r.path + "/" + strings.TrimPrefix(href, "./")
	r.b.WriteString(`<img src="` + exchange.EscapeAttrText(src) + `" title="` + exchange.EscapeAttrText(title) +
		`" alt="` + exchange.EscapeAttrText(title) + `"/>`)
}

func (ODT) ContentTypes() []string    { return []string{contenttype.ODT} }
func (ODT) OutputContentType() string { return exchange.ContentType }
func (ODT) Lossless() bool            { return false }
func (ODT) String() string            { return "ODTToExchange" }
