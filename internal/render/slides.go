package render

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/aymerick/douceur/parser"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/contenttype"
	"github.com/starford/vellum/internal/convert"
	"github.com/starford/vellum/internal/exchange"
	"github.com/starford/vellum/internal/storage"
)

// Slide deck properties.
const (
	PropFragment   = "fragment"
	PropTransition = "transition"
	PropMouseWheel = "mouseWheel"
	PropStyle      = "style"
	PropTitlePages = "titlePages"
	PropEmbedded   = "embedded"
	PropRevealPath = "revealPath"
)

// Meta names only the slide deck reads.
const (
	MetaSubtitle = "subtitle"
)

// DefaultRevealPath is where the reveal.js distribution is loaded from.
const DefaultRevealPath = "https://cdn.jsdelivr.net/npm/reveal.js@4.6.1/dist"

// Transitions lists the accepted slide transitions.
var Transitions = []string{"none", "fade", "slide", "convex", "concave", "zoom"}

var (
	slideHeading = regexp.MustCompile(`(?s)<h([12])[^>]*>(.*?)</h[12]>`)
	slideBreak   = regexp.MustCompile(`<hr[^>]*>`)
	headingTag   = regexp.MustCompile(`<(/?)h[0-9]`)
	headingBody  = regexp.MustCompile(`(?s)^<h[^>]*>(.*)</h[^>]*>$`)
	deeperTag    = regexp.MustCompile(`<(/?)h([3-7])`)
)

// Slides renders exchange documents as a reveal.js slide deck. Level one
// and two headings start new slides, horizontal rules start sub-slides.
type Slides struct {
	exchangeInput
	logger *slog.Logger
}

// NewSlides returns the slide deck renderer.
func NewSlides(logger *slog.Logger) *Slides {
	if logger == nil {
		logger = slog.Default()
	}
	return &Slides{logger: logger}
}

// deckOptions is the per call configuration of a deck.
type deckOptions struct {
	embedded   bool
	fragments  []string
	transition string
	mouseWheel bool
	style      string
	titlePages bool
	revealPath string
}

func deckOptionsFrom(props convert.Properties) (deckOptions, error) {
	o := deckOptions{
		embedded:   props.Bool(PropEmbedded),
		fragments:  props.List(PropFragment),
		transition: props.Get(PropTransition, "slide"),
		mouseWheel: props.Bool(PropMouseWheel),
		titlePages: props.Bool(PropTitlePages),
		revealPath: strings.TrimSuffix(props.Get(PropRevealPath, DefaultRevealPath), "/"),
	}
	if !slices.Contains(Transitions, o.transition) {
		o.transition = "slide"
	}
	if css := props.Get(PropStyle, ""); css != "" {
		sheet, err := parser.Parse(css)
		if err != nil {
			return o, &apperr.FormatError{Op: "render: slides", Detail: "invalid style", Err: err}
		}
		o.style = sheet.String()
	}
	return o, nil
}

func (s *Slides) Convert(m convert.Manager, doc storage.Document, w io.Writer, props convert.Properties) error {
	opts, err := deckOptionsFrom(props)
	if err != nil {
		return err
	}
	content, err := read(doc)
	if err != nil {
		return err
	}
	content, err = exchange.NewResolver(m, exchange.ContentType).WithLogger(s.logger).
		ResolveIncludes(doc, strings.TrimSpace(content), props)
	if err != nil {
		return err
	}
	content, err = exchange.NewResolver(m, contenttype.HTML).WithLogger(s.logger).ResolveQuotes(doc, content, props)
	if err != nil {
		return err
	}
	content = EmbedImages(m, doc, content, s.logger)
	content = strings.ReplaceAll(content, "\t", exchange.TabSpaces)
	content = strings.ReplaceAll(content, "&#160;", "&nbsp;")
	for _, tag := range opts.fragments {
		re, err := regexp.Compile(`(<` + regexp.QuoteMeta(tag) + `\b)`)
		if err != nil {
			continue
		}
		content = re.ReplaceAllString(content, `$1 class="fragment"`)
	}

	metas := exchange.ParseMeta(content)
	content = strings.TrimSpace(exchange.StripMeta(content))

	var b strings.Builder
	if !opts.embedded {
		s.head(&b, doc, metas, opts)
	}
	b.WriteString(`<div id="slideShow" class="reveal"><div class="slides">`)
	for _, sec := range Sections(content, metas, opts.titlePages) {
		b.WriteString(sec)
	}
	b.WriteString("</div></div>")
	if !opts.embedded {
		s.tail(&b, opts)
	}
	_, err = io.WriteString(w, b.String())
	return err
}

func (s *Slides) head(b *strings.Builder, doc storage.Document, metas []exchange.Meta, opts deckOptions) {
	theme := exchange.MetaValue(metas, "theme")
	if theme == "" {
		theme = "white"
	}
	fmt.Fprintf(b, `<html><head><meta charset="utf-8"/><title>Slides: %s</title>`, exchange.EscapeXML(doc.Name()))
	fmt.Fprintf(b, `<link rel="stylesheet" href="%s/reveal.css"/>`, exchange.EscapeAttrText(opts.revealPath))
	fmt.Fprintf(b, `<link rel="stylesheet" href="%s/theme/%s.css"/>`,
		exchange.EscapeAttrText(opts.revealPath), exchange.EscapeAttrText(theme))
	if opts.style != "" {
		b.WriteString("<style>" + opts.style + "</style>")
	}
	b.WriteString("</head><body>")
}

func (s *Slides) tail(b *strings.Builder, opts deckOptions) {
	fmt.Fprintf(b, `<script src="%s/reveal.js"></script>`, exchange.EscapeAttrText(opts.revealPath))
	fmt.Fprintf(b, "<script>Reveal.initialize({ controls: true, progress: true, history: true, transition: '%s', mouseWheel: %t });\n"+
		"Reveal.on('slidechanged', function() { window.scrollTo(0, 0); });</script>", opts.transition, opts.mouseWheel)
	b.WriteString("</body></html>")
}

// Sections splits a resolved exchange document into slide sections. When
// titlePages is set every heading is preceded by an overview slide listing
// all headings with the current one selected.
func Sections(content string, metas []exchange.Meta, titlePages bool) []string {
	var slides []string
	if title := exchange.MetaValue(metas, exchange.MetaTitle); title != "" {
		page := "<h1>" + exchange.EscapeXML(title) + "</h1>"
		if sub := exchange.MetaValue(metas, MetaSubtitle); sub != "" {
			page += "<h2>" + exchange.EscapeXML(sub) + "</h2>"
		}
		if author := exchange.MetaValue(metas, exchange.MetaAuthor); author != "" {
			page += "<p>" + exchange.EscapeXML(author) + "</p>"
		}
		slides = append(slides, `<section class="title">`+page+"</section>")
	}

	type slide struct {
		html     string
		overview int // index of the selected heading on an overview slide, or -1
	}
	var (
		headers []string
		deck    []slide
		prev    int
	)
	title := func() string {
		if len(headers) == 0 {
			return ""
		}
		return headers[len(headers)-1]
	}
	for _, loc := range slideHeading.FindAllStringIndex(content, -1) {
		if body := content[prev:loc[0]]; strings.TrimSpace(body) != "" {
			deck = append(deck, slide{html: section(title(), body), overview: -1})
		}
		headers = append(headers, content[loc[0]:loc[1]])
		prev = loc[1]
		if titlePages {
			deck = append(deck, slide{overview: len(headers) - 1})
		}
	}
	if body := content[prev:]; strings.TrimSpace(body) != "" {
		deck = append(deck, slide{html: section(title(), body), overview: -1})
	}

	for _, sl := range deck {
		if sl.overview >= 0 {
			slides = append(slides, "<section>"+overviewPage(headers, sl.overview)+"</section>")
			continue
		}
		slides = append(slides, sl.html)
	}
	return slides
}

// section renders one slide, splitting it into vertical sub-slides at
// horizontal rules.
func section(header, body string) string {
	if header != "" {
		header = headingTag.ReplaceAllString(header, "<${1}h1")
		header = strings.ReplaceAll(header, ` class="fragment"`, "")
		body = "<center>" + header + "</center>" + body
	}
	body = deeperTag.ReplaceAllStringFunc(body, func(t string) string {
		sub := deeperTag.FindStringSubmatch(t)
		n, _ := strconv.Atoi(sub[2])
		return "<" + sub[1] + "h" + strconv.Itoa(n-1)
	})
	var parts []string
	for _, p := range slideBreak.Split(body, -1) {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	switch len(parts) {
	case 0:
		return "<section></section>"
	case 1:
		return "<section>" + parts[0] + "</section>"
	}
	var b strings.Builder
	b.WriteString("<section>")
	for _, p := range parts {
		b.WriteString("<section>" + p + "</section>")
	}
	b.WriteString("</section>")
	return b.String()
}

// overviewPage lists the headings seen so far as nested lists.
func overviewPage(headers []string, selected int) string {
	var b strings.Builder
	depth := 0
	for i, h := range headers {
		level := int(h[2] - '0')
		for ; depth > level; depth-- {
			b.WriteString("</ul>")
		}
		for ; depth < level; depth++ {
			b.WriteString("<ul>")
		}
		b.WriteString("<li")
		if i == selected {
			b.WriteString(` class="selected"`)
		}
		b.WriteString(">" + headingBody.ReplaceAllString(h, "$1") + "</li>")
	}
	for ; depth > 0; depth-- {
		b.WriteString("</ul>")
	}
	return b.String()
}

func (s *Slides) OutputContentType() string { return contenttype.Slides }
func (s *Slides) Lossless() bool            { return false }
func (s *Slides) String() string            { return "ExchangeToSlides" }
