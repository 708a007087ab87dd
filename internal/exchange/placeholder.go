package exchange

import (
	"strings"

	"github.com/google/uuid"
)

// Placeholders protects regions of a document from rewrite passes. Each
// protected value is replaced by a unique "[kind=uuid]" token until Restore.
// A table belongs to a single conversion call.
type Placeholders[T any] struct {
	kind   string
	tokens []string
	values map[string]T
}

// NewPlaceholders creates an empty table whose tokens read "[kind=...]".
func NewPlaceholders[T any](kind string) *Placeholders[T] {
	return &Placeholders[T]{kind: kind, values: make(map[string]T)}
}

// Protect stores v and returns the token that stands in for it.
func (p *Placeholders[T]) Protect(v T) string {
	token := "[" + p.kind + "=" + uuid.NewString() + "]"
	p.tokens = append(p.tokens, token)
	p.values[token] = v
	return token
}

// Len returns the number of protected values.
func (p *Placeholders[T]) Len() int { return len(p.tokens) }

// Lookup returns the value for token.
func (p *Placeholders[T]) Lookup(token string) (T, bool) {
	v, ok := p.values[token]
	return v, ok
}

// Restore replaces every token in s with render(value).
func (p *Placeholders[T]) Restore(s string, render func(T) string) string {
	if len(p.tokens) == 0 {
		return s
	}
	pairs := make([]string, 0, 2*len(p.tokens))
	for _, t := range p.tokens {
		pairs = append(pairs, t, render(p.values[t]))
	}
	return strings.NewReplacer(pairs...).Replace(s)
}
