// Package builtin lists the converters shipped with vellum.
package builtin

import (
	"log/slog"

	"github.com/starford/vellum/internal/convert"
	"github.com/starford/vellum/internal/markup"
	"github.com/starford/vellum/internal/render"
	"github.com/starford/vellum/internal/source"
)

// Converters returns the built-in converters in registration order. Order
// matters: the first converter registered for a pair wins, and ties between
// synthesized chains go to the earlier registration.
func Converters(logger *slog.Logger) []convert.Converter {
	if logger == nil {
		logger = slog.Default()
	}
	return []convert.Converter{
		// front-ends
		markup.ToExchange(markup.Wiki, logger),
		markup.ToExchange(markup.Markdown, logger),
		markup.ToEditable(markup.Wiki, logger),
		markup.ToEditable(markup.Markdown, logger),
		markup.NewCommonMark(),
		source.XML{},
		source.Text{},
		source.Image{},
		source.ODT{},
		source.Code{},
		source.XMLHighlight{},

		// back-ends
		render.NewHTML(logger),
		render.NewStandalone(logger),
		render.NewSlides(logger),
		render.NewODT(logger),
		render.NewText(logger),
		render.ToWiki(logger),
		render.ToMarkdown(logger),
	}
}

// Registry returns a registry holding the built-in converters.
func Registry(logger *slog.Logger) *convert.Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return convert.NewRegistry(Converters(logger), convert.WithLogger(logger))
}
