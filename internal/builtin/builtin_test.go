package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/vellum/internal/contenttype"
	"github.com/starford/vellum/internal/convert"
	"github.com/starford/vellum/internal/exchange"
)

func TestRegistryPaths(t *testing.T) {
	r := Registry(nil)
	tests := []struct {
		from, to string
		want     string
	}{
		{contenttype.Wiki, contenttype.HTML, "Chain[WikiToExchange -> ExchangeToHTML]"},
		{contenttype.Markdown, contenttype.Wiki, "Chain[MarkdownToExchange -> ExchangeToWiki]"},
		{contenttype.Wiki, contenttype.Text, "Chain[WikiToExchange -> ExchangeToText]"},
		{contenttype.Wiki, contenttype.EditableHTML, "WikiToEditableHTML"},
		{contenttype.CommonMark, contenttype.Slides, "Chain[CommonMarkToExchange -> ExchangeToSlides]"},
		{contenttype.Java, contenttype.HTML, "CodeToHTML"},
		{contenttype.TextXML, contenttype.HTML, "XMLToHTML"},
		{contenttype.Text, exchange.ContentType, "TextToExchange"},
		{contenttype.PNG, contenttype.ODT, "Chain[ImageToExchange -> ExchangeToODT]"},
		{contenttype.ODT, contenttype.Markdown, "Chain[ODTToExchange -> ExchangeToMarkdown]"},
		{contenttype.ODT, contenttype.ODT, "PassThrough(" + contenttype.ODT + ")"},
	}
	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			c := r.Converter(tt.from, tt.to)
			require.NotNil(t, c)
			assert.Equal(t, tt.want, convert.Name(c))
		})
	}
}

func TestRegistryUnreachable(t *testing.T) {
	r := Registry(nil)
	assert.Nil(t, r.Converter(contenttype.HTML, contenttype.PNG))
	assert.Nil(t, r.Converter(contenttype.EditableHTML, contenttype.Wiki))
}

func TestConvertersAreNamed(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range Converters(nil) {
		name := convert.Name(c)
		assert.False(t, seen[name], "duplicate converter %s", name)
		seen[name] = true
		assert.NotEmpty(t, c.ContentTypes(), name)
	}
}
