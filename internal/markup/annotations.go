package markup

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/vellum/internal/exchange"
)

// DefaultAnnotationDelimiter starts an annotation line.
const DefaultAnnotationDelimiter = "@"

var defaultAnnotation = annotationPattern(DefaultAnnotationDelimiter)

func annotationPattern(delim string) *regexp.Regexp {
	d := regexp.QuoteMeta(delim)
	return regexp.MustCompile(`^[ \t]*` + d + `([^=\s` + d + `]+)(?:[ \t=]+(.*))?$`)
}

// annotations peels the leading block of "@key value" lines off s. The body
// starts at the first line that is not an annotation.
func annotations(s, delim string) ([]exchange.Meta, string) {
	re := defaultAnnotation
	if delim != DefaultAnnotationDelimiter {
		re = annotationPattern(delim)
	}
	lines := strings.Split(strings.TrimLeft(s, " \t\n"), "\n")
	var metas []exchange.Meta
	n := 0
	for ; n < len(lines); n++ {
		m := re.FindStringSubmatch(lines[n])
		if m == nil {
			break
		}
		metas = append(metas, exchange.Meta{
			Name:    exchange.UnescapeXML(m[1]),
			Content: exchange.UnescapeXML(strings.TrimSpace(m[2])),
		})
	}
	if n == 0 {
		return nil, s
	}
	return metas, strings.Join(lines[n:], "\n")
}

// splitFrontMatter separates a YAML block between leading --- lines from the
// body. Without a closed, valid block the whole input is body.
func splitFrontMatter(s string) ([]exchange.Meta, string) {
	const delim = "---"
	trimmed := strings.TrimLeft(s, "\n")
	if !strings.HasPrefix(trimmed, delim+"\n") {
		return nil, s
	}

	rest := trimmed[len(delim):]
	idx := strings.Index(rest, "\n"+delim)
	if idx < 0 {
		return nil, s
	}
	block := rest[:idx]
	body := rest[idx+1+len(delim):]
	if body != "" && body[0] != '\n' {
		return nil, s
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(exchange.UnescapeXML(block)), &doc); err != nil {
		return nil, s
	}
	return frontMatterMeta(&doc), body
}

// frontMatterMeta flattens the top level mapping: scalars as is, sequences
// of scalars joined with ",". Nested mappings are skipped.
func frontMatterMeta(doc *yaml.Node) []exchange.Meta {
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil
	}
	m := doc.Content[0]
	var out []exchange.Meta
	for i := 0; i+1 < len(m.Content); i += 2 {
		key, v := m.Content[i].Value, m.Content[i+1]
		switch v.Kind {
		case yaml.ScalarNode:
			out = append(out, exchange.Meta{Name: key, Content: v.Value})
		case yaml.SequenceNode:
			var items []string
			for _, item := range v.Content {
				if item.Kind == yaml.ScalarNode {
					items = append(items, item.Value)
				}
			}
			out = append(out, exchange.Meta{Name: key, Content: strings.Join(items, ",")})
		}
	}
	return out
}

func metaElements(metas []exchange.Meta) string {
	var b strings.Builder
	for _, m := range metas {
		b.WriteString(exchange.MetaElement(m.Name, m.Content))
	}
	return b.String()
}
