package render

import (
	"encoding/base64"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/starford/vellum/internal/contenttype"
	"github.com/starford/vellum/internal/convert"
	"github.com/starford/vellum/internal/exchange"
	"github.com/starford/vellum/internal/storage"
)

var (
	pageRef   = regexp.MustCompile(`(?s)(href|src)([\s'"=]+)` + exchange.SchemePage + `:/?`)
	streamRef = regexp.MustCompile(`(?s)(href|src)([\s'"=]+)` + exchange.SchemeStream + `:/?`)
	imageSrc  = regexp.MustCompile(`(<img[^>]+?src[\s='"]+)([^'"]+)('|")`)
)

// HTML renders exchange documents as an HTML fragment. Page and stream
// references become viewer and download routes, or inline data when the
// embed property is set.
type HTML struct {
	exchangeInput
	logger *slog.Logger
}

// NewHTML returns the HTML renderer.
func NewHTML(logger *slog.Logger) *HTML {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTML{logger: logger}
}

func (h *HTML) Convert(m convert.Manager, doc storage.Document, w io.Writer, props convert.Properties) error {
	content, err := read(doc)
	if err != nil {
		return err
	}
	out, err := h.Render(m, doc, content, props)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

// Render converts content, the exchange document doc, into HTML.
func (h *HTML) Render(m convert.Manager, doc storage.Document, content string, props convert.Properties) (string, error) {
	content, err := exchange.NewResolver(m, contenttype.HTML).WithLogger(h.logger).Resolve(doc, content, props)
	if err != nil {
		return "", err
	}
	content = strings.ReplaceAll(content, "\t", exchange.TabSpaces)
	content = strings.ReplaceAll(content, "&#160;", "&nbsp;")

	if props.Bool(PropEmbed) {
		return EmbedImages(m, doc, content, h.logger), nil
	}
	content = pageRef.ReplaceAllString(content, "${1}${2}"+route(props, PropViewPath, DefaultViewPath)+"/")
	return streamRef.ReplaceAllString(content, "${1}${2}"+route(props, PropDownloadPath, DefaultDownloadPath)+"/"), nil
}

// EmbedImages inlines local image sources as data URIs. Remote and missing
// images are left alone.
func EmbedImages(m convert.Manager, doc storage.Document, content string, logger *slog.Logger) string {
	return imageSrc.ReplaceAllStringFunc(content, func(tag string) string {
		sub := imageSrc.FindStringSubmatch(tag)
		src := sub[2]
		ref, ok := strings.CutPrefix(src, exchange.SchemeStream+":")
		if !ok {
			return tag
		}
		res, err := OpenResource(m, doc, exchange.UnescapeXML(ref))
		if err != nil {
			logger.Warn("image not embedded", "src", src, "path", doc.Path(), "error", err)
			return tag
		}
		ct := res.ContentType
		if ct == "" {
			ct = contenttype.OctetStream
		}
		return sub[1] + "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(res.Data) + sub[3]
	})
}

func (h *HTML) OutputContentType() string { return contenttype.HTML }
func (h *HTML) Lossless() bool            { return true }
func (h *HTML) String() string            { return "ExchangeToHTML" }
