package exchange

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/contenttype"
	"github.com/starford/vellum/internal/convert"
	"github.com/starford/vellum/internal/storage"
)

var (
	quotePattern   = regexp.MustCompile(`(?s)<blockquote[^>]*format[\s='"]+([^'"]+)[^>]*>(.*?)</blockquote>`)
	includePattern = regexp.MustCompile(`<link[^>]*href[\s='"]+([^'"]+)[^>]*/>`)
)

// Resolver splices quotes and includes into exchange documents for one
// target content type.
type Resolver struct {
	m      convert.Manager
	to     string
	logger *slog.Logger
}

// NewResolver returns a resolver producing content of type to.
func NewResolver(m convert.Manager, to string) *Resolver {
	return &Resolver{m: m, to: to, logger: slog.Default()}
}

// WithLogger sets the logger used for recoverable problems.
func (r *Resolver) WithLogger(l *slog.Logger) *Resolver {
	r.logger = l
	return r
}

// Resolve replaces every quote and include in content. Quotes are resolved
// first and are not looked at again by the include pass.
func (r *Resolver) Resolve(doc storage.Document, content string, props convert.Properties) (string, error) {
	quotes := NewPlaceholders[string]("resolved")
	content, err := r.resolveQuotes(doc, content, props, quotes)
	if err != nil {
		return "", err
	}
	content, err = r.ResolveIncludes(doc, content, props)
	if err != nil {
		return "", err
	}
	return quotes.Restore(content, func(s string) string { return s }), nil
}

// ResolveQuotes converts the raw content of every quote element from the
// dialect named by its format attribute into the target type.
func (r *Resolver) ResolveQuotes(doc storage.Document, content string, props convert.Properties) (string, error) {
	quotes := NewPlaceholders[string]("resolved")
	out, err := r.resolveQuotes(doc, content, props, quotes)
	if err != nil {
		return "", err
	}
	return quotes.Restore(out, func(s string) string { return s }), nil
}

func (r *Resolver) resolveQuotes(doc storage.Document, content string, props convert.Properties, protect *Placeholders[string]) (string, error) {
	var firstErr error
	out := quotePattern.ReplaceAllStringFunc(content, func(m string) string {
		if firstErr != nil {
			return m
		}
		sub := quotePattern.FindStringSubmatch(m)
		format, raw := sub[1], UnescapeXML(sub[2])

		from := contenttype.ForHint(format)
		if from == "" {
			r.logger.Warn("unknown quote format, using plain text", "format", format, "path", doc.Path())
			from = contenttype.Text
		}
		c := r.m.Converter(from, r.to)
		if c == nil {
			firstErr = apperr.Formatf("resolve quote", "no converter from %s to %s", from, r.to)
			return m
		}
		frag := storage.NewFragment(doc.Parent(), doc.Path(), from, []byte(raw))
		var buf bytes.Buffer
		if err := c.Convert(r.m, frag, &buf, props); err != nil {
			firstErr = fmt.Errorf("exchange: quote %s: %w", format, err)
			return m
		}
		return protect.Protect(Quote(format, buf.String()))
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// ResolveIncludes replaces every include element with the referenced
// document converted to the target type. Unresolvable includes become a
// broken reference marker.
func (r *Resolver) ResolveIncludes(doc storage.Document, content string, props convert.Properties) (string, error) {
	var firstErr error
	out := includePattern.ReplaceAllStringFunc(content, func(m string) string {
		if firstErr != nil {
			return m
		}
		ref := includePattern.FindStringSubmatch(m)[1]
		s, err := r.include(doc, ref, props)
		if err != nil {
			firstErr = err
			return m
		}
		return s
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

func (r *Resolver) include(doc storage.Document, ref string, props convert.Properties) (string, error) {
	ref = strings.TrimSuffix(strings.ReplaceAll(ref, "&amp;", "&"), "/")
	u, err := url.Parse(ref)
	if err != nil {
		return "", apperr.Formatf("resolve include", "invalid reference %q: %v", ref, err)
	}

	level := props.Int(PropIncludeLevel, 0)
	if limit := props.Int(PropMaxIncludeDepth, 0); limit > 0 && level >= limit {
		r.logger.Warn("include depth exceeded", "ref", ref, "path", doc.Path(), "limit", limit)
		return BrokenReference(ref), nil
	}

	child := childProperties(props, u)
	child[PropIncludeLevel] = strconv.Itoa(level + 1)

	target := r.target(doc, u, ref)
	if target == nil {
		return BrokenReference(ref), nil
	}
	c := r.m.Converter(target.ContentType(), r.to)
	if c == nil {
		r.logger.Warn("no converter for include", "ref", ref, "from", target.ContentType(), "to", r.to)
		return BrokenReference(ref), nil
	}

	var buf bytes.Buffer
	if err := c.Convert(r.m, target, &buf, child); err != nil {
		return "", fmt.Errorf("exchange: include %s: %w", ref, err)
	}
	out := ShiftHeadings(buf.String(), convert.Properties(child).Int(PropHeadingShift, 0))

	quotes := NewPlaceholders[string]("included")
	out = quotePattern.ReplaceAllStringFunc(out, quotes.Protect)
	out, err = r.ResolveIncludes(target, out, child)
	if err != nil {
		return "", err
	}
	return quotes.Restore(out, func(s string) string { return s }), nil
}

// target finds the included document: datastore resources for references
// with a scheme, vault documents for everything else.
func (r *Resolver) target(doc storage.Document, u *url.URL, ref string) storage.Document {
	if u.Scheme == "" {
		linked := doc.Resolve(u.Path)
		if linked == nil || !linked.Exists() || linked.ContentType() == "" {
			return nil
		}
		return linked
	}
	ds := r.m.Datastore(doc)
	if ds == nil {
		return nil
	}
	res, err := ds.Properties(ref)
	if err != nil {
		return nil
	}
	rc, err := ds.Retrieve(ref)
	if err != nil {
		return nil
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		r.logger.Warn("read datastore resource", "ref", ref, "error", err)
		return nil
	}
	p := ref
	if res.Path != "" {
		p = res.Path
	}
	return storage.NewFragment(doc.Parent(), p, res.ContentType, data).WithModTime(res.LastModified)
}

// childProperties inherits props minus the heading shift, then applies the
// include's own query parameters. Keys without a value are "true".
func childProperties(props convert.Properties, u *url.URL) convert.Properties {
	child := props.Clone()
	delete(child, PropHeadingShift)
	for k, vs := range u.Query() {
		v := "true"
		if len(vs) > 0 && vs[0] != "" {
			v = vs[0]
		}
		child[k] = v
	}
	return child
}
