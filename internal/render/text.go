package render

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/starford/vellum/internal/contenttype"
	"github.com/starford/vellum/internal/convert"
	"github.com/starford/vellum/internal/exchange"
	"github.com/starford/vellum/internal/storage"
)

var extraNewlines = regexp.MustCompile(`\n{3,}`)

// Text renders exchange documents as plain text. All markup is dropped.
type Text struct {
	exchangeInput
	logger *slog.Logger
}

// NewText returns the plain text renderer.
func NewText(logger *slog.Logger) *Text {
	if logger == nil {
		logger = slog.Default()
	}
	return &Text{logger: logger}
}

func (t *Text) Convert(m convert.Manager, doc storage.Document, w io.Writer, props convert.Properties) error {
	content, err := read(doc)
	if err != nil {
		return err
	}
	if m != nil {
		content, err = exchange.NewResolver(m, exchange.ContentType).WithLogger(t.logger).ResolveIncludes(doc, content, props)
		if err != nil {
			return err
		}
	}
	out, err := PlainText(content)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

// PlainText strips the markup of an exchange document. Block boundaries and
// line breaks become newlines; quoted content keeps its own line structure.
func PlainText(content string) (string, error) {
	var (
		b     strings.Builder
		quote int
		cells int
	)
	block := func() {
		if s := b.String(); s != "" && !strings.HasSuffix(s, "\n") {
			b.WriteString("\n")
		}
	}
	paragraph := func() {
		block()
		if s := b.String(); s != "" && !strings.HasSuffix(s, "\n\n") {
			b.WriteString("\n")
		}
	}

	z := html.NewTokenizer(strings.NewReader(content))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return "", fmt.Errorf("render: tokenize: %w", err)
			}
			return finish(b.String()), nil
		case html.TextToken:
			s := string(z.Text())
			if quote == 0 {
				s = strings.ReplaceAll(s, "\n", "")
			}
			b.WriteString(strings.ReplaceAll(s, "\u00a0", " "))
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch tag := string(name); tag {
			case "br":
				b.WriteString("\n")
			case "blockquote":
				block()
				if tt == html.StartTagToken {
					quote++
				}
			case "li":
				block()
				b.WriteString("- ")
			case "tr":
				block()
				cells = 0
			case "td", "th":
				if cells > 0 {
					b.WriteString("\t")
				}
				cells++
			case "hr":
				paragraph()
			default:
				if isBlock(tag) {
					block()
				}
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch tag := string(name); tag {
			case "blockquote":
				quote = max(quote-1, 0)
				paragraph()
			case "p", "ul", "ol", "table", "h1", "h2", "h3", "h4", "h5", "h6", "h7":
				paragraph()
			default:
				if isBlock(tag) {
					block()
				}
			}
		}
	}
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "ul", "ol", "li", "table", "thead", "tbody", "tr", "section", "center",
		"h1", "h2", "h3", "h4", "h5", "h6", "h7":
		return true
	}
	return false
}

func finish(s string) string {
	s = strings.TrimLeft(extraNewlines.ReplaceAllString(s, "\n\n"), "\n")
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return ""
	}
	return s + "\n"
}

func (t *Text) OutputContentType() string { return contenttype.Text }
func (t *Text) Lossless() bool            { return false }
func (t *Text) String() string            { return "ExchangeToText" }
