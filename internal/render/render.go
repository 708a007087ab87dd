// Package render holds the back-ends that turn exchange documents into
// their final formats.
package render

import (
	"strings"

	"github.com/starford/vellum/internal/convert"
	"github.com/starford/vellum/internal/exchange"
	"github.com/starford/vellum/internal/storage"
)

// Properties understood by the renderers.
const (
	PropEmbed        = "embed"
	PropServer       = "server"
	PropViewPath     = "viewPath"
	PropDownloadPath = "downloadPath"
)

// Default route names for page and stream links.
const (
	DefaultViewPath     = "view"
	DefaultDownloadPath = "download"
)

func read(doc storage.Document) (string, error) {
	data, err := storage.ReadAll(doc)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(string(data), "\r", ""), nil
}

// route joins the optional server prefix with a route name.
func route(props convert.Properties, key, def string) string {
	server := strings.TrimSuffix(props.Get(PropServer, ""), "/")
	name := strings.Trim(props.Get(key, def), "/")
	return server + "/" + name
}

// exchangeInput is embedded by every renderer.
type exchangeInput struct{}

func (exchangeInput) ContentTypes() []string { return []string{exchange.ContentType} }
