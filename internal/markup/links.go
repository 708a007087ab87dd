package markup

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/exchange"
)

var (
	externalLink  = regexp.MustCompile(`\[([^|\]]*)\|(\w+:/[^\]]+)\]`)
	anchorLink    = regexp.MustCompile(`\[([^|\]]*)\|#([^\]]+)\]`)
	namedLocal    = regexp.MustCompile(`\[([^|\]]*)\|\$([^\]]+)\]`)
	bareLocal     = regexp.MustCompile(`\[\$([^\]]+)\]`)
	anchorDecl    = regexp.MustCompile(`\[#([^\]]+)\]`)
	includeMarker = regexp.MustCompile(`\[:([^\]]+)\]`)

	mdImage    = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)(?:\s+"([^"]*)")?\)`)
	mdExternal = regexp.MustCompile(`\[([^|\]]*)\]\s*\((\w+:[^)]+|/[^)]+)\)`)
	mdAnchor   = regexp.MustCompile(`\[([^|\]]*)\]\(#([^)]+)\)`)
	mdLocal    = regexp.MustCompile(`\[([^|\]]*)\]\(([^)\s#][^)\s]*)\)`)
	hasScheme  = regexp.MustCompile(`^\w+:`)
)

func (c *compilation) externalLinks(s string) string {
	s = replaceUnescaped(externalLink, s, func(m []string) string {
		return external("nofollow", m[1], m[2])
	})
	if !c.dialect.parenLinks {
		return s
	}
	s = replaceUnescaped(mdImage, s, c.image)
	return replaceUnescaped(mdExternal, s, func(m []string) string {
		return external("noopener noreferrer nofollow", m[1], m[2])
	})
}

func external(rel, name, link string) string {
	if name == "" {
		name = link
	}
	return `<a rel="` + rel + `" class="external" href="` + exchange.EscapeAttr(link) + `">` + name + "</a>"
}

// image renders ![alt](src "title"). Local sources become stream references
// relative to the document.
func (c *compilation) image(m []string) string {
	alt, src, title := m[1], m[2], m[3]
	ref := src
	if !hasScheme.MatchString(src) {
		linked := c.resolve(exchange.UnescapeXML(src))
		ref = exchange.EscapeXML(linked)
		src = exchange.SchemeStream + ":" + ref
	}
	if title == "" {
		title = alt
	}
	if title == "" {
		title = ref
	}
	if alt == "" {
		alt = title
	}
	return fmt.Sprintf(`<img src="%s" reference="%s" title="%s" alt="%s"/>`,
		exchange.EscapeAttr(src), exchange.EscapeAttr(ref), exchange.EscapeAttr(title), exchange.EscapeAttr(alt))
}

func (c *compilation) anchorLinks(s string) string {
	render := func(m []string) string {
		name, hasName := m[1], m[1] != ""
		if !hasName {
			name = m[2]
		}
		return fmt.Sprintf(`<a class="anchor" hasDisplayName="%t" href="#%s" original="%s">%s</a>`,
			hasName, exchange.EncodeAnchor(exchange.UnescapeXML(m[2])), exchange.EscapeAttr(m[2]), name)
	}
	s = replaceUnescaped(anchorLink, s, render)
	if c.dialect.parenLinks {
		s = replaceUnescaped(mdAnchor, s, render)
	}
	return s
}

func (c *compilation) localLinks(s string) string {
	s = replaceUnescaped(namedLocal, s, func(m []string) string { return c.localLink(m[1], m[2]) })
	s = replaceUnescaped(bareLocal, s, func(m []string) string { return c.localLink("", m[1]) })
	if c.dialect.parenLinks {
		s = replaceUnescaped(mdLocal, s, func(m []string) string { return c.localLink(m[1], m[2]) })
	}
	return s
}

// localLink renders a link to another document, resolved against the
// document's parent and flagged with its existence.
func (c *compilation) localLink(name, target string) string {
	raw := strings.TrimRight(target, "/")
	u, err := url.Parse(exchange.UnescapeXML(raw))
	if err != nil {
		c.fail(apperr.Formatf("compile link", "invalid link %q: %v", raw, err))
		return ""
	}

	linked := c.doc.Resolve(u.Path)
	exists := linked != nil && linked.Exists()
	link := u.Path
	if linked != nil {
		link = linked.Path()
	}

	hasName := name != ""
	if !hasName {
		name = raw
		if exists {
			name = exchange.EscapeXML(linked.Name())
		}
	}
	href := exchange.SchemePage + ":" + link
	if u.Fragment != "" {
		href += "#" + exchange.EncodeAnchor(u.Fragment)
	}
	return fmt.Sprintf(`<a class="internal" hasDisplayName="%t" original="%s" exists="%t" href="%s" title="%s">%s</a>`,
		hasName, exchange.EscapeAttr(raw), exists, exchange.EscapeAttr(href), exchange.EscapeAttr(name), name)
}

func (c *compilation) anchors(s string) string {
	return replaceUnescaped(anchorDecl, s, func(m []string) string {
		return `<a name="` + exchange.EncodeAnchor(exchange.UnescapeXML(m[1])) + `" original="` +
			exchange.EscapeAttr(m[1]) + `"></a>`
	})
}

func includes(s string) string {
	return replaceUnescaped(includeMarker, s, func(m []string) string {
		return `<link href="` + exchange.EscapeAttr(m[1]) + `"/>`
	})
}

// resolve returns the vault path of a reference relative to the document.
func (c *compilation) resolve(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if linked := c.doc.Resolve(u.Path); linked != nil {
		return linked.Path()
	}
	return u.Path
}
