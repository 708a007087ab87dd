package cache

import (
	"path"
	"regexp"
	"strings"

	"github.com/starford/vellum/internal/contenttype"
)

var (
	includeRef = regexp.MustCompile(`\[:([^\]|]+)\]`)
	hasScheme  = regexp.MustCompile(`^\w{2,}:`)
)

// includeTargets returns the vault paths a wiki or Markdown document at p
// includes. Other content types include nothing.
func includeTargets(p, contentType string, data []byte) []string {
	if contentType != contenttype.Wiki && contentType != contenttype.Markdown {
		return nil
	}
	var out []string
	seen := make(map[string]struct{})
	for _, m := range includeRef.FindAllSubmatch(data, -1) {
		ref := string(m[1])
		if i := strings.IndexAny(ref, "?#"); i >= 0 {
			ref = ref[:i]
		}
		ref = strings.TrimSuffix(strings.TrimSpace(ref), "/")
		if ref == "" || hasScheme.MatchString(ref) {
			continue
		}
		if strings.HasPrefix(ref, "/") {
			ref = path.Clean(ref)
		} else {
			ref = path.Join(path.Dir(p), ref)
		}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	return out
}

// hidden reports whether p lies in a hidden directory such as the
// attachment namespace. Hidden files are never listed as documents.
func hidden(p string) bool {
	for _, part := range strings.Split(strings.TrimPrefix(p, "/"), "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
