package convert

import (
	"maps"
	"strconv"
	"strings"
)

// Properties is the per-conversion configuration bag. A nil bag means "no
// properties were supplied", which is the only case conversion results may
// be cached.
type Properties map[string]string

// Get returns the value for key or def when absent or empty.
func (p Properties) Get(key, def string) string {
	if v, ok := p[key]; ok && v != "" {
		return v
	}
	return def
}

// Has reports whether key is present.
func (p Properties) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Bool parses key as a boolean; absent or malformed values are false.
func (p Properties) Bool(key string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(p[key]))
	return err == nil && b
}

// Int parses key as an integer, returning def when absent or malformed.
func (p Properties) Int(key string, def int) int {
	v, ok := p[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

// Clone copies the bag. Cloning nil yields an empty, non-nil bag.
func (p Properties) Clone() Properties {
	out := make(Properties, len(p))
	maps.Copy(out, p)
	return out
}

// With returns a copy with key set to value.
func (p Properties) With(key, value string) Properties {
	out := p.Clone()
	out[key] = value
	return out
}

// List splits a comma separated value into trimmed, non-empty items.
func (p Properties) List(key string) []string {
	var out []string
	for _, s := range strings.Split(p[key], ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
