// Package exchange holds the intermediate document vocabulary every
// front-end emits and every back-end consumes, plus the machinery the
// back-ends share to resolve embedded quotes and includes.
package exchange

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ContentType identifies the exchange format.
const ContentType = "application/vnd.vellum.exchange+xml"

// Reference schemes for local resources. Page links point at a viewer,
// stream links at the raw bytes.
const (
	SchemePage   = "page"
	SchemeStream = "stream"
)

// TabSpaces replaces a tab in rendered output.
const TabSpaces = "&nbsp;&nbsp;&nbsp;&nbsp;"

// Property keys shared by front-ends and back-ends.
const (
	PropHeadingShift    = "h"
	PropIncludeLevel    = "includeLevel"
	PropMaxIncludeDepth = "maxIncludeDepth"
)

var (
	escaper     = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	unescaper   = strings.NewReplacer(
		"&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'", "&#39;", "'",
		"&nbsp;", " ", "&#160;", " ", "&amp;", "&",
	)
)

// EscapeXML escapes the markup-significant characters of text.
func EscapeXML(s string) string { return escaper.Replace(s) }

// EscapeAttr escapes s for use inside a double quoted attribute. Existing
// entities are kept.
func EscapeAttr(s string) string {
	return strings.ReplaceAll(s, `"`, "&quot;")
}

// EscapeAttrText escapes raw text for use inside a double quoted attribute.
func EscapeAttrText(s string) string { return attrEscaper.Replace(s) }

// UnescapeXML reverses EscapeXML and also decodes quotes and non-breaking
// spaces (as plain spaces).
func UnescapeXML(s string) string { return unescaper.Replace(s) }

var (
	nonWord    = regexp.MustCompile(`[^\w\s]+`)
	whitespace = regexp.MustCompile(`\s+`)
)

// EncodeAnchor turns free text into an anchor name: punctuation is dropped
// and whitespace runs become underscores.
func EncodeAnchor(s string) string {
	return whitespace.ReplaceAllString(nonWord.ReplaceAllString(s, ""), "_")
}

var heading = regexp.MustCompile(`(?s)<h([1-7])((?:\s[^>]*)?)>(.*?)</h[1-7]>`)

// ShiftHeadings moves every heading n levels down (up for negative n),
// clamped to h1..h7.
func ShiftHeadings(s string, n int) string {
	if n == 0 {
		return s
	}
	return heading.ReplaceAllStringFunc(s, func(m string) string {
		sub := heading.FindStringSubmatch(m)
		level, _ := strconv.Atoi(sub[1])
		level = min(max(level+n, 1), 7)
		return fmt.Sprintf("<h%d%s>%s</h%d>", level, sub[2], sub[3], level)
	})
}

// BrokenReference is spliced in place of an include that could not be
// resolved.
func BrokenReference(ref string) string {
	r := EscapeAttr(ref)
	return `<span reference="` + r + `" class="bad">failed to import <a class="internal" exists="false" href="` +
		r + `">` + r + `</a></span>`
}

// Quote renders a block quote element holding content of the given format.
func Quote(format, content string) string {
	return `<blockquote format="` + EscapeAttr(format) + `">` + content + `</blockquote>`
}

// Include renders an unresolved include element.
func Include(href string) string {
	return `<link href="` + EscapeAttr(href) + `"/>`
}
