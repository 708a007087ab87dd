// Package markup compiles the wiki and Markdown dialects into the exchange
// format.
package markup

import (
	"regexp"
	"strconv"

	"github.com/starford/vellum/internal/contenttype"
)

// Dialect describes the syntax of one markup language. Both dialects share
// the compilation passes and differ only in marker syntax.
type Dialect struct {
	name        string
	contentType string

	heading      *regexp.Regexp // groups: marker, text
	headingLevel func(marker string) int

	listItem     *regexp.Regexp // groups: indent, marker, content
	nestByIndent bool

	styles      []style
	fences      bool
	frontMatter bool
	parenLinks  bool
}

// Name returns the short dialect name.
func (d *Dialect) Name() string { return d.name }

// ContentType returns the source content type.
func (d *Dialect) ContentType() string { return d.contentType }

var wikiStyles = []style{
	{delim: '*', tag: "b"},
	{delim: '_', tag: "u"},
	{delim: '+', tag: "i"},
	{delim: '@', tag: "code"},
	{delim: '!', tag: "strong"},
	{delim: '?', tag: "cite"},
	{delim: '~', tag: "del"},
	{delim: '%', tag: "ins"},
}

// Wiki is the native dialect: "h1." headings, "*" and "#" lists,
// [name|target] links and [quote|type] blocks.
var Wiki = &Dialect{
	name:         "wiki",
	contentType:  contenttype.Wiki,
	heading:      regexp.MustCompile(`(?m)^h([1-7])\.[ \t]*(.*?)[ \t]*$`),
	headingLevel: func(m string) int { n, _ := strconv.Atoi(m); return n },
	listItem:     regexp.MustCompile(`^()(\*+|#+)[ \t]+(.*)$`),
	styles:       wikiStyles,
}

// Markdown accepts "#" headings, indented "*"/"-" bullets and "+" ordered
// items, fenced quotes, [name](target) links and YAML front matter on top of
// the wiki syntax.
var Markdown = &Dialect{
	name:         "markdown",
	contentType:  contenttype.Markdown,
	heading:      regexp.MustCompile(`(?m)^(#{1,6})[ \t]*([^#\n]+?)[ \t]*#*[ \t]*$`),
	headingLevel: func(m string) int { return len(m) },
	listItem:     regexp.MustCompile(`^([ \t]*)([*\-]{1,3}|\+{1,3})[ \t]+(.*)$`),
	nestByIndent: true,
	styles:       append(append([]style(nil), wikiStyles...), style{delim: '`', tag: "code", loose: true}),
	fences:       true,
	frontMatter:  true,
	parenLinks:   true,
}

func listTag(marker string) string {
	switch marker[0] {
	case '#', '+':
		return "ol"
	default:
		return "ul"
	}
}
