package render

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"mime"
	"strconv"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/contenttype"
	"github.com/starford/vellum/internal/convert"
	"github.com/starford/vellum/internal/exchange"
	"github.com/starford/vellum/internal/storage"
)

// Generator is written to the meta data of generated packages.
const Generator = "Vellum/1.0"

// Image sizing: 96 dpi, at most 6in wide and 10in high.
const (
	inchPerPixel = 0.0104
	maxWidthIn   = 6.0
	maxHeightIn  = 10.0
)

// ImageSize returns the printed size in inches of a w by h pixel image.
func ImageSize(w, h int) (width, height float64) {
	width, height = float64(w)*inchPerPixel, float64(h)*inchPerPixel
	if width > maxWidthIn {
		height /= width / maxWidthIn
		width = maxWidthIn
	}
	if height > maxHeightIn {
		width /= height / maxHeightIn
		height = maxHeightIn
	}
	return width, height
}

// ODT renders exchange documents as OpenDocument text packages.
type ODT struct {
	exchangeInput
	logger *slog.Logger
	now    func() time.Time
}

// NewODT returns the ODT renderer.
func NewODT(logger *slog.Logger) *ODT {
	if logger == nil {
		logger = slog.Default()
	}
	return &ODT{logger: logger, now: time.Now}
}

type media struct {
	name        string
	contentType string
	data        []byte
}

// odtWriter turns one parsed exchange document into ODF body markup.
type odtWriter struct {
	m      convert.Manager
	doc    storage.Document
	props  convert.Properties
	logger *slog.Logger

	b      strings.Builder
	media  []media
	tables int
	inPara bool
}

func (o *ODT) Convert(m convert.Manager, doc storage.Document, w io.Writer, props convert.Properties) error {
	content, err := read(doc)
	if err != nil {
		return err
	}
	if m != nil {
		content, err = exchange.NewResolver(m, exchange.ContentType).WithLogger(o.logger).ResolveIncludes(doc, content, props)
		if err != nil {
			return err
		}
	}
	metas := exchange.ParseMeta(content)

	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(content), ctx)
	if err != nil {
		return &apperr.FormatError{Op: "render: odt", Detail: "parse " + doc.Path(), Err: err}
	}
	ow := &odtWriter{m: m, doc: doc, props: props, logger: o.logger}
	ow.blocks(nodes)
	ow.closePara()

	var buf bytes.Buffer
	if err := o.pack(&buf, ow, metas); err != nil {
		return fmt.Errorf("render: odt %s: %w", doc.Path(), err)
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// pack writes the zip container. The mimetype entry comes first and is
// stored uncompressed.
func (o *ODT) pack(w io.Writer, ow *odtWriter, metas []exchange.Meta) error {
	zw := zip.NewWriter(w)
	f, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return err
	}
	if _, err := io.WriteString(f, contenttype.ODT); err != nil {
		return err
	}

	entries := []struct{ name, body string }{
		{"META-INF/manifest.xml", manifest(ow.media)},
		{"styles.xml", odtStyles},
		{"content.xml", odtContent(ow.b.String())},
		{"meta.xml", o.meta(metas)},
		{"settings.xml", xmlHeader + `<office:document-settings xmlns:office="` + nsOffice + `" office:version="1.2"/>`},
	}
	for _, e := range entries {
		f, err := zw.Create(e.name)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(f, e.body); err != nil {
			return err
		}
	}
	for _, md := range ow.media {
		f, err := zw.CreateHeader(&zip.FileHeader{Name: md.name, Method: zip.Store})
		if err != nil {
			return err
		}
		if _, err := f.Write(md.data); err != nil {
			return err
		}
	}
	return zw.Close()
}

func manifest(items []media) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	fmt.Fprintf(&b, `<manifest:manifest xmlns:manifest="%s" manifest:version="1.2">`, nsManifest)
	entry := func(p, ct string) {
		fmt.Fprintf(&b, `<manifest:file-entry manifest:full-path="%s" manifest:media-type="%s"/>`,
			exchange.EscapeAttrText(p), exchange.EscapeAttrText(ct))
	}
	entry("/", contenttype.ODT)
	for _, name := range []string{"content.xml", "styles.xml", "meta.xml", "settings.xml"} {
		entry(name, contenttype.TextXML)
	}
	for _, md := range items {
		entry(md.name, md.contentType)
	}
	b.WriteString("</manifest:manifest>")
	return b.String()
}

func odtContent(body string) string {
	return xmlHeader + fmt.Sprintf(`<office:document-content xmlns:office="%s" xmlns:style="%s" xmlns:text="%s" `+
		`xmlns:table="%s" xmlns:draw="%s" xmlns:fo="%s" xmlns:xlink="%s" xmlns:svg="%s" office:version="1.2">`,
		nsOffice, nsStyle, nsText, nsTable, nsDraw, nsFO, nsXLink, nsSVG) +
		`<office:automatic-styles><style:style style:name="wrappedImage" style:family="graphic" style:parent-style-name="Graphics">` +
		`<style:graphic-properties style:wrap="none" style:horizontal-rel="paragraph" style:vertical-rel="paragraph" ` +
		`style:horizontal-pos="center" style:vertical-pos="bottom"/></style:style></office:automatic-styles>` +
		`<office:body><office:text>` + body + `</office:text></office:body></office:document-content>`
}

func (o *ODT) meta(metas []exchange.Meta) string {
	now := o.now().UTC().Format("2006-01-02T15:04:05Z")
	author := exchange.MetaValue(metas, exchange.MetaAuthor)
	if author == "" {
		author = "Vellum"
	}
	el := func(b *strings.Builder, name, value string) {
		b.WriteString("<" + name + ">" + exchange.EscapeXML(value) + "</" + name + ">")
	}

	var b strings.Builder
	b.WriteString(xmlHeader)
	fmt.Fprintf(&b, `<office:document-meta xmlns:office="%s" xmlns:meta="%s" xmlns:dc="%s" office:version="1.2"><office:meta>`,
		nsOffice, nsMeta, nsDC)
	el(&b, "meta:generator", Generator)
	el(&b, "meta:initial-creator", author)
	keywords := convert.Properties{"tags": exchange.MetaValue(metas, exchange.MetaTags)}.List("tags")
	for _, tag := range keywords {
		el(&b, "meta:keyword", tag)
	}
	if title := exchange.MetaValue(metas, exchange.MetaTitle); title != "" {
		el(&b, "dc:title", title)
	}
	subject := exchange.MetaValue(metas, "subject")
	if subject == "" {
		subject = exchange.MetaValue(metas, exchange.MetaDescription)
	}
	if subject != "" {
		el(&b, "dc:subject", subject)
	}
	el(&b, "dc:creator", author)
	el(&b, "meta:creation-date", now)
	el(&b, "dc:date", now)
	b.WriteString("</office:meta></office:document-meta>")
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func (w *odtWriter) openPara() {
	if !w.inPara {
		w.b.WriteString(`<text:p text:style-name="Text_20_body">`)
		w.inPara = true
	}
}

func (w *odtWriter) closePara() {
	if w.inPara {
		w.b.WriteString("</text:p>")
		w.inPara = false
	}
}

func (w *odtWriter) blocks(nodes []*html.Node) {
	for _, n := range nodes {
		w.block(n)
	}
}

func (w *odtWriter) children(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

func (w *odtWriter) block(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		if !w.inPara && strings.TrimSpace(n.Data) == "" {
			return
		}
		w.openPara()
		w.text(n.Data, false)
		return
	case html.ElementNode:
	default:
		return
	}

	switch tag := n.Data; tag {
	case "h1", "h2", "h3", "h4", "h5", "h6", "h7":
		w.closePara()
		level := tag[1:]
		fmt.Fprintf(&w.b, `<text:h text:style-name="Heading_20_%s" text:outline-level="%s">`, level, level)
		w.inline(n)
		w.b.WriteString("</text:h>")
	case "p":
		w.closePara()
		w.b.WriteString(`<text:p text:style-name="Text_20_body">`)
		w.inline(n)
		w.b.WriteString("</text:p>")
	case "ul", "ol":
		w.closePara()
		w.list(n)
	case "table":
		w.closePara()
		w.table(n)
	case "blockquote":
		w.closePara()
		w.quote(n)
	case "hr":
		w.closePara()
		w.b.WriteString(`<text:p text:style-name="Horizontal_20_Line"/>`)
	case "meta", "link":
	case "div", "section", "center":
		w.closePara()
		w.blocks(w.children(n))
		w.closePara()
	default:
		w.openPara()
		w.inlineNode(n)
	}
}

var spanStyles = map[string]string{
	"b": "Bold", "strong": "Bold",
	"i": "Italic", "em": "Italic", "cite": "Italic",
	"u": "Underline", "ins": "Underline",
	"del": "Strikethrough",
	"code": "Source_20_Text",
	"sup": "Superscript", "sub": "Subscript",
}

func (w *odtWriter) inline(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.inlineNode(c)
	}
}

func (w *odtWriter) inlineNode(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.text(n.Data, false)
		return
	case html.ElementNode:
	default:
		return
	}
	if style, ok := spanStyles[n.Data]; ok {
		w.b.WriteString(`<text:span text:style-name="` + style + `">`)
		w.inline(n)
		w.b.WriteString("</text:span>")
		return
	}
	switch n.Data {
	case "br":
		w.b.WriteString("<text:line-break/>")
	case "img":
		w.image(n)
	case "a":
		if name := attr(n, "name"); name != "" && attr(n, "href") == "" {
			w.b.WriteString(`<text:bookmark text:name="` + exchange.EscapeAttrText(name) + `"/>`)
			w.inline(n)
			return
		}
		fmt.Fprintf(&w.b, `<text:a xlink:type="simple" xlink:href="%s">`, exchange.EscapeAttrText(w.href(attr(n, "href"))))
		w.inline(n)
		w.b.WriteString("</text:a>")
	case "meta", "link":
	default:
		w.inline(n)
	}
}

// href maps page and stream references to the viewer routes.
func (w *odtWriter) href(ref string) string {
	if p, ok := strings.CutPrefix(ref, exchange.SchemePage+":"); ok {
		return route(w.props, PropViewPath, DefaultViewPath) + "/" + strings.TrimPrefix(p, "/")
	}
	if p, ok := strings.CutPrefix(ref, exchange.SchemeStream+":"); ok {
		return route(w.props, PropDownloadPath, DefaultDownloadPath) + "/" + strings.TrimPrefix(p, "/")
	}
	return ref
}

// text writes s with runs of spaces and tabs in ODF form. Newlines become
// line breaks in preformatted text and are dropped elsewhere.
func (w *odtWriter) text(s string, pre bool) {
	spaces := 0
	flush := func() {
		if spaces == 0 {
			return
		}
		w.b.WriteString(" ")
		if spaces > 1 {
			w.b.WriteString(`<text:s text:c="` + strconv.Itoa(spaces-1) + `"/>`)
		}
		spaces = 0
	}
	for _, r := range s {
		switch r {
		case ' ':
			spaces++
			continue
		case '\n':
			flush()
			if pre {
				w.b.WriteString("<text:line-break/>")
			}
			continue
		}
		flush()
		switch r {
		case '\t':
			w.b.WriteString("<text:tab/>")
		case '&':
			w.b.WriteString("&amp;")
		case '<':
			w.b.WriteString("&lt;")
		case '>':
			w.b.WriteString("&gt;")
		default:
			w.b.WriteRune(r)
		}
	}
	flush()
}

func (w *odtWriter) list(n *html.Node) {
	style := "List_UL"
	if n.Data == "ol" {
		style = "List_OL"
	}
	w.b.WriteString(`<text:list text:style-name="` + style + `">`)
	for li := n.FirstChild; li != nil; li = li.NextSibling {
		if li.Type == html.ElementNode && (li.Data == "ul" || li.Data == "ol") {
			w.b.WriteString("<text:list-item>")
			w.list(li)
			w.b.WriteString("</text:list-item>")
			continue
		}
		if li.Type != html.ElementNode || li.Data != "li" {
			continue
		}
		w.b.WriteString("<text:list-item>")
		open := false
		for c := li.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (c.Data == "ul" || c.Data == "ol") {
				if open {
					w.b.WriteString("</text:p>")
					open = false
				}
				w.list(c)
				continue
			}
			if !open {
				w.b.WriteString(`<text:p text:style-name="List_20_Contents">`)
				open = true
			}
			w.inlineNode(c)
		}
		if open {
			w.b.WriteString("</text:p>")
		}
		w.b.WriteString("</text:list-item>")
	}
	w.b.WriteString("</text:list>")
}

func (w *odtWriter) table(n *html.Node) {
	type row struct {
		cells  []*html.Node
		header bool
	}
	var rows []row
	columns := 0
	var collect func(n *html.Node, header bool)
	collect = func(n *html.Node, header bool) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "thead":
				collect(c, true)
			case "tbody", "tfoot":
				collect(c, false)
			case "tr":
				r := row{header: header}
				for cell := c.FirstChild; cell != nil; cell = cell.NextSibling {
					if cell.Type == html.ElementNode && (cell.Data == "td" || cell.Data == "th") {
						r.cells = append(r.cells, cell)
					}
				}
				columns = max(columns, len(r.cells))
				rows = append(rows, r)
			}
		}
	}
	collect(n, false)

	w.tables++
	fmt.Fprintf(&w.b, `<table:table table:name="Table%d">`, w.tables)
	if columns > 0 {
		fmt.Fprintf(&w.b, `<table:table-column table:number-columns-repeated="%d"/>`, columns)
	}
	inHeader := false
	for _, r := range rows {
		if r.header != inHeader {
			if r.header {
				w.b.WriteString("<table:table-header-rows>")
			} else {
				w.b.WriteString("</table:table-header-rows>")
			}
			inHeader = r.header
		}
		style := "Table_20_Contents"
		if r.header {
			style = "Table_20_Heading"
		}
		w.b.WriteString("<table:table-row>")
		for i := 0; i < columns; i++ {
			w.b.WriteString(`<table:table-cell office:value-type="string">`)
			w.b.WriteString(`<text:p text:style-name="` + style + `">`)
			if i < len(r.cells) {
				w.inline(r.cells[i])
			}
			w.b.WriteString("</text:p></table:table-cell>")
		}
		w.b.WriteString("</table:table-row>")
	}
	if inHeader {
		w.b.WriteString("</table:table-header-rows>")
	}
	w.b.WriteString("</table:table>")
}

// quote writes quoted content verbatim, one preformatted paragraph per line.
func (w *odtWriter) quote(n *html.Node) {
	for _, line := range strings.Split(strings.Trim(textContent(n), "\n"), "\n") {
		w.b.WriteString(`<text:p text:style-name="Preformatted_20_Text">`)
		w.text(line, true)
		w.b.WriteString("</text:p>")
	}
}

// image embeds the picture behind an img element. Pictures that cannot be
// loaded are replaced by their alternative text.
func (w *odtWriter) image(n *html.Node) {
	src, alt := attr(n, "src"), attr(n, "alt")
	data, ct, err := w.load(src)
	if err == nil && data == nil {
		fmt.Fprintf(&w.b, `<text:a xlink:type="simple" xlink:href="%s">`, exchange.EscapeAttrText(src))
		w.text(alt, false)
		w.b.WriteString("</text:a>")
		return
	}
	var cfg image.Config
	if err == nil {
		cfg, _, err = image.DecodeConfig(bytes.NewReader(data))
	}
	if err != nil {
		w.logger.Warn("image not embedded", "src", src, "path", w.doc.Path(), "error", err)
		w.text(alt, false)
		return
	}

	ext := contenttype.Extension(ct)
	if ext == "" {
		ext = "bin"
	}
	name := fmt.Sprintf("media/image%d.%s", len(w.media)+1, ext)
	w.media = append(w.media, media{name: name, contentType: ct, data: data})
	width, height := ImageSize(cfg.Width, cfg.Height)
	fmt.Fprintf(&w.b, `<draw:frame draw:style-name="wrappedImage" draw:name="image%d" text:anchor-type="as-char" `+
		`svg:width="%.4fin" svg:height="%.4fin" draw:z-index="0"><draw:image xlink:href="%s" xlink:type="simple" `+
		`xlink:show="embed" xlink:actuate="onLoad"/></draw:frame>`, len(w.media), width, height, name)
}

// load returns the bytes of a local or inline picture. Remote pictures
// yield no data and no error.
func (w *odtWriter) load(src string) ([]byte, string, error) {
	if rest, ok := strings.CutPrefix(src, "data:"); ok {
		meta, payload, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(meta, ";base64") {
			return nil, "", apperr.Formatf("render: odt", "unsupported data uri")
		}
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", &apperr.FormatError{Op: "render: odt", Detail: "decode data uri", Err: err}
		}
		ct, _, err := mime.ParseMediaType(strings.TrimSuffix(meta, ";base64"))
		if err != nil {
			ct = contenttype.OctetStream
		}
		return data, ct, nil
	}
	ref, ok := strings.CutPrefix(src, exchange.SchemeStream+":")
	if !ok {
		return nil, "", nil
	}
	res, err := OpenResource(w.m, w.doc, ref)
	if err != nil {
		return nil, "", err
	}
	return res.Data, res.ContentType, nil
}

func (o *ODT) OutputContentType() string { return contenttype.ODT }
func (o *ODT) Lossless() bool            { return false }
func (o *ODT) String() string            { return "ExchangeToODT" }
