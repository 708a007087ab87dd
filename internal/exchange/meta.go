package exchange

import (
	"regexp"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// Meta keys written by the front-ends.
const (
	MetaTitle       = "title"
	MetaDescription = "description"
	MetaAuthor      = "author"
	MetaTags        = "tags"
	MetaCreated     = "created"
)

// Meta is one name/content annotation of an exchange document.
type Meta struct {
	Name    string
	Content string
}

// MetaElement renders a meta element.
func MetaElement(name, content string) string {
	return `<meta name="` + EscapeAttrText(name) + `" content="` + EscapeAttrText(content) + `"/>`
}

var (
	metaExpr    = xpath.MustCompile("//meta[@name]")
	metaPattern = regexp.MustCompile(`<meta\s[^>]*/?>`)
	attrPattern = regexp.MustCompile(`(\w+)\s*=\s*"([^"]*)"`)
	nbsp        = strings.NewReplacer("&nbsp;", "&#160;")
)

// Parse reads an exchange document as XML under a synthetic root element.
func Parse(content string) (*xmlquery.Node, error) {
	return xmlquery.Parse(strings.NewReader("<exchange>" + nbsp.Replace(content) + "</exchange>"))
}

// ParseMeta returns the meta annotations of content in document order.
func ParseMeta(content string) []Meta {
	if !strings.Contains(content, "<meta") {
		return nil
	}
	root, err := Parse(content)
	if err != nil {
		return scanMeta(content)
	}
	var out []Meta
	for _, n := range xmlquery.QuerySelectorAll(root, metaExpr) {
		out = append(out, Meta{Name: n.SelectAttr("name"), Content: n.SelectAttr("content")})
	}
	return out
}

// scanMeta handles content that is not well-formed.
func scanMeta(content string) []Meta {
	var out []Meta
	for _, tag := range metaPattern.FindAllString(content, -1) {
		var m Meta
		for _, a := range attrPattern.FindAllStringSubmatch(tag, -1) {
			switch a[1] {
			case "name":
				m.Name = UnescapeXML(a[2])
			case "content":
				m.Content = UnescapeXML(a[2])
			}
		}
		if m.Name != "" {
			out = append(out, m)
		}
	}
	return out
}

// MetaValue returns the content of the first meta named name.
func MetaValue(metas []Meta, name string) string {
	for _, m := range metas {
		if m.Name == name {
			return m.Content
		}
	}
	return ""
}

// StripMeta removes meta elements from content.
func StripMeta(content string) string {
	return metaPattern.ReplaceAllString(content, "")
}
