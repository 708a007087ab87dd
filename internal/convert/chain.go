package convert

import (
	"bytes"
	"io"
	"strings"

	"github.com/starford/vellum/internal/storage"
)

// Chain runs its stages in order, feeding each stage's output to the next as
// an in-memory fragment tagged with that stage's output type.
type Chain struct {
	stages []Converter
}

// NewChain composes stages. It panics on an empty stage list.
func NewChain(stages ...Converter) *Chain {
	if len(stages) == 0 {
		panic("convert: empty chain")
	}
	return &Chain{stages: append([]Converter(nil), stages...)}
}

// Stages returns the stage converters in execution order.
func (c *Chain) Stages() []Converter {
	return append([]Converter(nil), c.stages...)
}

func (c *Chain) Convert(m Manager, doc storage.Document, w io.Writer, props Properties) error {
	current := doc
	last := len(c.stages) - 1
	for i, stage := range c.stages {
		if i == last {
			return stage.Convert(m, current, w, props)
		}
		var buf bytes.Buffer
		if err := stage.Convert(m, current, &buf, props); err != nil {
			return err
		}
		current = storage.NewFragment(doc.Parent(), doc.Path(), stage.OutputContentType(), buf.Bytes()).
			WithModTime(doc.LastModified())
	}
	return nil
}

func (c *Chain) ContentTypes() []string    { return c.stages[0].ContentTypes() }
func (c *Chain) OutputContentType() string { return c.stages[len(c.stages)-1].OutputContentType() }

// Lossless reports whether every stage is lossless.
func (c *Chain) Lossless() bool {
	for _, s := range c.stages {
		if !s.Lossless() {
			return false
		}
	}
	return true
}

func (c *Chain) String() string {
	names := make([]string, len(c.stages))
	for i, s := range c.stages {
		names[i] = Name(s)
	}
	return "Chain[" + strings.Join(names, " -> ") + "]"
}
