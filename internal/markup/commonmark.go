package markup

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/starford/vellum/internal/contenttype"
	"github.com/starford/vellum/internal/convert"
	"github.com/starford/vellum/internal/exchange"
	"github.com/starford/vellum/internal/storage"
)

// CommonMark converts strict CommonMark (with GitHub extensions) into the
// exchange format. HTML the exchange format has no element for is dropped,
// which makes the conversion lossy.
type CommonMark struct {
	md goldmark.Markdown
}

// NewCommonMark returns the CommonMark converter.
func NewCommonMark() *CommonMark {
	return &CommonMark{md: goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithXHTML()),
	)}
}

var (
	cmCode     = regexp.MustCompile(`(?s)<pre><code(?: class="language-([^"]+)")?>(.*?)</code></pre>`)
	cmImage    = regexp.MustCompile(`<img src="([^"]*)" alt="([^"]*)"(?: title="([^"]*)")? />`)
	cmLink     = regexp.MustCompile(`<a href="([^"]*)"(?: title="[^"]*")?>`)
	cmHeadCell = regexp.MustCompile(`<th(?: style="[^"]*")?>`)
	cmBodyCell = regexp.MustCompile(`<td style="[^"]*">`)
	cmBetween  = regexp.MustCompile(`>\n+<`)
	cmTags     = strings.NewReplacer(
		"<strong>", "<b>", "</strong>", "</b>",
		"<em>", "<i>", "</em>", "</i>",
		"</th>", "</td>", "<hr />", "<hr/>", "<br />", "<br/>",
		"<table>", `<table cellspacing="0" cellpadding="0">`,
	)
)

func (c *CommonMark) Convert(_ convert.Manager, doc storage.Document, w io.Writer, _ convert.Properties) error {
	data, err := storage.ReadAll(doc)
	if err != nil {
		return err
	}
	metas, body := splitFrontMatter(strings.ReplaceAll(string(data), "\r", ""))

	var buf bytes.Buffer
	if err := c.md.Convert([]byte(body), &buf); err != nil {
		return fmt.Errorf("markup: commonmark %s: %w", doc.Path(), err)
	}

	quotes := exchange.NewPlaceholders[string]("quote")
	s := cmBetween.ReplaceAllString(strings.TrimSpace(buf.String()), "><")
	s = cmCode.ReplaceAllStringFunc(s, func(m string) string {
		sub := cmCode.FindStringSubmatch(m)
		format := sub[1]
		if format == "" {
			format = defaultQuoteFormat
		}
		return quotes.Protect(exchange.Quote(format, strings.TrimSuffix(sub[2], "\n")))
	})
	s = cmTags.Replace(s)
	s = cmHeadCell.ReplaceAllString(s, "<td>")
	s = cmBodyCell.ReplaceAllString(s, "<td>")
	s = cmImage.ReplaceAllStringFunc(s, func(m string) string { return commonMarkImage(doc, cmImage.FindStringSubmatch(m)) })
	s = cmLink.ReplaceAllStringFunc(s, func(m string) string { return commonMarkLink(doc, cmLink.FindStringSubmatch(m)[1]) })
	s = strings.ReplaceAll(s, "\n", "<br/>")

	_, err = io.WriteString(w, metaElements(metas)+quotes.Restore(s, identity))
	return err
}

func commonMarkImage(doc storage.Document, m []string) string {
	src, alt, title := m[1], m[2], m[3]
	ref := src
	if !hasScheme.MatchString(src) {
		if u, err := url.Parse(exchange.UnescapeXML(src)); err == nil {
			ref = exchange.EscapeAttrText(doc.Resolve(u.Path).Path())
		}
		src = exchange.SchemeStream + ":" + ref
	}
	if title == "" {
		title = alt
	}
	return fmt.Sprintf(`<img src="%s" reference="%s" title="%s" alt="%s"/>`, src, ref, title, alt)
}

func commonMarkLink(doc storage.Document, href string) string {
	switch {
	case strings.HasPrefix(href, "#"):
		return `<a class="anchor" hasDisplayName="true" href="` + href + `" original="` + href[1:] + `">`
	case hasScheme.MatchString(href) || strings.HasPrefix(href, "/"):
		return `<a rel="noopener noreferrer nofollow" class="external" href="` + href + `">`
	}
	u, err := url.Parse(exchange.UnescapeXML(href))
	if err != nil {
		return `<a href="` + href + `">`
	}
	linked := doc.Resolve(u.Path)
	target := exchange.SchemePage + ":" + linked.Path()
	if u.Fragment != "" {
		target += "#" + exchange.EncodeAnchor(u.Fragment)
	}
	return fmt.Sprintf(`<a class="internal" hasDisplayName="true" original="%s" exists="%t" href="%s">`,
		href, linked.Exists(), exchange.EscapeAttrText(target))
}

func (c *CommonMark) ContentTypes() []string    { return []string{contenttype.CommonMark} }
func (c *CommonMark) OutputContentType() string { return exchange.ContentType }
func (c *CommonMark) Lossless() bool            { return false }
func (c *CommonMark) String() string            { return "CommonMarkToExchange" }
