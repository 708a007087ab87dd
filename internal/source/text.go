package source

import (
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/contenttype"
	"github.com/starford/vellum/internal/convert"
	"github.com/starford/vellum/internal/exchange"
	"github.com/starford/vellum/internal/storage"
)

// PropCharset names the encoding of a text document when it is not UTF-8.
const PropCharset = "charset"

// Text converts plain text and source code into the exchange format, one
// line span per line.
type Text struct{}

func (Text) Convert(_ convert.Manager, doc storage.Document, w io.Writer, props convert.Properties) error {
	data, err := storage.ReadAll(doc)
	if err != nil {
		return err
	}
	s, err := decode(data, props.Get(PropCharset, ""))
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, TextToExchange(s))
	return err
}

// decode turns data in the named charset into UTF-8. An empty name means
// the data already is UTF-8.
func decode(data []byte, charset string) (string, error) {
	if charset == "" {
		return string(data), nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return "", &apperr.FormatError{Op: "source: text", Detail: "unknown charset " + charset, Err: err}
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", &apperr.FormatError{Op: "source: text", Detail: "decode " + charset, Err: err}
	}
	return string(out), nil
}

// TextToExchange renders text as a paragraph of line spans.
func TextToExchange(s string) string {
	s = exchange.EscapeXML(normalize(s))
	s = strings.ReplaceAll(s, "\t", exchange.TabSpaces)
	s = strings.ReplaceAll(s, " ", "&nbsp;")
	var b strings.Builder
	b.WriteString("<p>")
	for _, line := range strings.Split(s, "\n") {
		b.WriteString(`<span class="line">`)
		b.WriteString(line)
		b.WriteString("</span><br/>")
	}
	b.WriteString("</p>")
	return b.String()
}

func (Text) ContentTypes() []string {
	return append([]string{contenttype.Text, contenttype.INI, contenttype.Properties, contenttype.Diff},
		contenttype.Code...)
}

func (Text) OutputContentType() string { return exchange.ContentType }
func (Text) Lossless() bool            { return true }
func (Text) String() string            { return "TextToExchange" }

// XML converts markup documents into the exchange format as escaped text.
type XML struct{}

func (XML) Convert(_ convert.Manager, doc storage.Document, w io.Writer, _ convert.Properties) error {
	data, err := storage.ReadAll(doc)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, XMLToExchange(string(data)))
	return err
}

// XMLToExchange renders markup as escaped text with explicit line breaks.
func XMLToExchange(s string) string {
	s = exchange.EscapeXML(strings.ReplaceAll(s, "\r", ""))
	s = strings.ReplaceAll(s, "\t", exchange.TabSpaces)
	s = strings.ReplaceAll(s, " ", "&nbsp;")
	return strings.ReplaceAll(s, "\n", "<br/>")
}

func (XML) ContentTypes() []string {
	return []string{contenttype.XML, contenttype.TextXML, contenttype.HTML}
}

func (XML) OutputContentType() string { return exchange.ContentType }
func (XML) Lossless() bool            { return true }
func (XML) String() string            { return "XMLToExchange" }
