package convert

import (
	"bytes"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/vellum/internal/datastore"
	"github.com/starford/vellum/internal/storage"
)

// tagger appends its name to the content so tests can see the stages a
// conversion went through.
type tagger struct {
	name     string
	from     []string
	to       string
	lossless bool
}

func conv(name, from, to string, lossless bool) *tagger {
	return &tagger{name: name, from: []string{from}, to: to, lossless: lossless}
}

func (c *tagger) Convert(_ Manager, doc storage.Document, w io.Writer, _ Properties) error {
	if !slices.Contains(c.from, doc.ContentType()) {
		return fmt.Errorf("%s: unexpected input type %q", c.name, doc.ContentType())
	}
	data, err := storage.ReadAll(doc)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s>%s", data, c.name)
	return err
}

func (c *tagger) ContentTypes() []string    { return c.from }
func (c *tagger) OutputContentType() string { return c.to }
func (c *tagger) Lossless() bool            { return c.lossless }
func (c *tagger) String() string            { return c.name }

type nopManager struct{ r *Registry }

func (m nopManager) Converter(from, to string) Converter           { return m.r.Converter(from, to) }
func (m nopManager) Datastore(storage.Document) datastore.Datastore { return nil }

func run(t *testing.T, r *Registry, c Converter, from, input string) string {
	t.Helper()
	var buf bytes.Buffer
	doc := storage.NewFragment(nil, "/doc", from, []byte(input))
	require.NoError(t, c.Convert(nopManager{r}, doc, &buf, nil))
	return buf.String()
}

func TestIdentityForAnyType(t *testing.T) {
	r := NewRegistry(nil)
	for _, typ := range []string{"a/b", "application/x-never-registered", ""} {
		c := r.Converter(typ, typ)
		require.NotNil(t, c, typ)
		assert.True(t, c.Lossless())
		assert.Equal(t, "payload \x00 bytes", run(t, r, c, typ, "payload \x00 bytes"))
		assert.Same(t, c, r.Converter(typ, typ))
	}
}

func TestDirectEdge(t *testing.T) {
	ab := conv("ab", "a", "b", true)
	r := NewRegistry([]Converter{ab})
	assert.Same(t, ab, r.Converter("a", "b"))
	assert.Nil(t, r.Converter("b", "a"))
}

func TestFidelityDominance(t *testing.T) {
	r := NewRegistry([]Converter{
		conv("ab", "a", "b", false),
		conv("bc", "b", "c", false),
		conv("ad", "a", "d", true),
		conv("de", "d", "e", true),
		conv("ec", "e", "c", true),
	})

	paths := r.Paths("a", "c")
	require.Len(t, paths, 2)
	assert.InDelta(t, 3.0, paths[0].Score, 1e-9)
	assert.InDelta(t, 3.2, paths[1].Score, 1e-9)

	c := r.Converter("a", "c")
	require.NotNil(t, c)
	assert.True(t, c.Lossless())
	assert.Equal(t, "x>ad>de>ec", run(t, r, c, "a", "x"))
	assert.Equal(t, "Chain[ad -> de -> ec]", Name(c))
}

func TestTiesKeepDiscoveryOrder(t *testing.T) {
	r := NewRegistry([]Converter{
		conv("ab", "a", "b", true),
		conv("ax", "a", "x", true),
		conv("xc", "x", "c", true),
		conv("bc", "b", "c", true),
	})
	assert.Equal(t, "in>ab>bc", run(t, r, r.Converter("a", "c"), "a", "in"))
}

func TestExhaustiveSimplePaths(t *testing.T) {
	// a -> b -> c, a -> c via d, plus a cycle b <-> d
	r := NewRegistry([]Converter{
		conv("ab", "a", "b", true),
		conv("bd", "b", "d", true),
		conv("db", "d", "b", true),
		conv("bc", "b", "c", true),
		conv("ad", "a", "d", true),
		conv("dc", "d", "c", true),
		conv("ba", "b", "a", true),
	})
	paths := r.Paths("a", "c")
	var got []string
	for _, p := range paths {
		got = append(got, Name(NewChain(p.Stages...)))
	}
	assert.ElementsMatch(t, []string{
		"Chain[ab -> bc]",
		"Chain[ad -> dc]",
		"Chain[ab -> bd -> dc]",
		"Chain[ad -> db -> bc]",
	}, got)
	for _, p := range paths {
		seen := map[string]bool{"a": true}
		for _, s := range p.Stages {
			out := s.OutputContentType()
			assert.False(t, seen[out], "type %s repeated in %v", out, got)
			seen[out] = true
		}
	}
}

func TestMemoizationSurvivesRegister(t *testing.T) {
	r := NewRegistry([]Converter{
		conv("ab", "a", "b", true),
		conv("bc", "b", "c", true),
	})
	first := r.Converter("a", "c")
	require.NotNil(t, first)
	assert.Nil(t, r.Converter("a", "z"))

	r.Register(conv("ac", "a", "c", true))
	r.Register(conv("az", "a", "z", true))
	r.Register(conv("cz", "c", "z", true))

	assert.Same(t, first, r.Converter("a", "c"))
	assert.Nil(t, r.Converter("a", "z"))
	// a pair never looked up before sees the new edges
	assert.Equal(t, "q>bc>cz", run(t, r, r.Converter("b", "z"), "b", "q"))
}

func TestChainLosslessness(t *testing.T) {
	all := NewChain(conv("x", "a", "b", true), conv("y", "b", "c", true))
	mixed := NewChain(conv("x", "a", "b", true), conv("y", "b", "c", false))
	assert.True(t, all.Lossless())
	assert.False(t, mixed.Lossless())
	assert.Equal(t, []string{"a"}, mixed.ContentTypes())
	assert.Equal(t, "c", mixed.OutputContentType())
}

func TestScoreRecursesIntoChains(t *testing.T) {
	chain := NewChain(conv("x", "a", "b", true), conv("y", "b", "c", false))
	assert.InDelta(t, 2.6, Score(chain), 1e-9)
	assert.InDelta(t, ScoreUnreachable, Score(nil), 1e-9)

	// a registered chain is scored by its stages, so a 1-edge chain path costs
	// more than a 2-edge lossless path
	r := NewRegistry([]Converter{
		NewChain(conv("x", "a", "b", false), conv("y", "b", "c", false)),
		conv("ad", "a", "d", true),
		conv("dc", "d", "c", true),
	})
	paths := r.Paths("a", "c")
	require.Len(t, paths, 2)
	assert.InDelta(t, 2.0, paths[0].Score, 1e-9)
	assert.InDelta(t, 3.2, paths[1].Score, 1e-9)
}

func TestChainFeedsTaggedFragments(t *testing.T) {
	r := NewRegistry([]Converter{
		conv("ab", "a", "b", true),
		conv("bc", "b", "c", false),
	})
	c := r.Converter("a", "c")
	require.NotNil(t, c)
	assert.False(t, c.Lossless())
	// tagger rejects inputs with the wrong content type
	assert.Equal(t, "0>ab>bc", run(t, r, c, "a", "0"))
}

func TestConcurrentLookupsResolveOnce(t *testing.T) {
	r := NewRegistry([]Converter{
		conv("ab", "a", "b", true),
		conv("bc", "b", "c", true),
		conv("cd", "c", "d", true),
	})
	var wg sync.WaitGroup
	results := make([]Converter, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Converter("a", "d")
		}(i)
	}
	wg.Wait()
	for _, c := range results {
		assert.Same(t, results[0], c)
	}
}

func TestEdges(t *testing.T) {
	multi := &tagger{name: "m", from: []string{"a", "b", "c"}, to: "c", lossless: false}
	r := NewRegistry([]Converter{multi, conv("dup", "a", "c", true)})
	edges := r.Edges()
	require.Len(t, edges, 2)
	assert.Equal(t, "a", edges[0].From)
	assert.Equal(t, "m", edges[0].Name)
	assert.Equal(t, "b", edges[1].From)
	assert.False(t, edges[1].Lossless)
	assert.True(t, strings.HasPrefix(Name(PassThrough("x")), "PassThrough"))
}

func TestPropertiesHelpers(t *testing.T) {
	p := Properties{"h": "2", "embed": "true", "bad": "x", "fragment": " li, p ,,"}
	assert.Equal(t, 2, p.Int("h", 0))
	assert.Equal(t, 7, p.Int("bad", 7))
	assert.Equal(t, 7, p.Int("none", 7))
	assert.True(t, p.Bool("embed"))
	assert.False(t, p.Bool("bad"))
	assert.Equal(t, []string{"li", "p"}, p.List("fragment"))
	assert.Equal(t, "view", p.Get("viewPath", "view"))

	var nilBag Properties
	assert.False(t, nilBag.Has("x"))
	clone := nilBag.With("x", "1")
	assert.NotNil(t, clone)
	assert.Nil(t, nilBag)
}
