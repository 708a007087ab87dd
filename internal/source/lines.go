// Package source holds the front-ends for formats that are not markup:
// plain text, XML, images and ODT documents, plus the highlighters that turn
// source code straight into HTML.
package source

import (
	"strings"

	"github.com/starford/vellum/internal/exchange"
)

// lineBreak separates the line spans of highlighted output.
const lineBreak = `</span><br/><span class="line">`

// indent keeps leading whitespace visible once rendered.
func indent(line string) string {
	i := 0
	for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
		i++
	}
	if i == 0 {
		return line
	}
	lead := strings.ReplaceAll(line[:i], "\t", exchange.TabSpaces)
	return strings.ReplaceAll(lead, " ", "&nbsp;") + line[i:]
}

// numbered wraps every line of s in a line span and the whole in a
// paragraph. Leading indentation is kept.
func numbered(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = indent(l)
	}
	return `<p><span class="line">` + strings.Join(lines, lineBreak) + "</span></p>"
}

// normalize drops carriage returns and a single trailing newline.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	return strings.TrimSuffix(s, "\n")
}
