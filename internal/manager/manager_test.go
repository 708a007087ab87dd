package manager

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/builtin"
	"github.com/starford/vellum/internal/contenttype"
	"github.com/starford/vellum/internal/convert"
	"github.com/starford/vellum/internal/datastore"
	"github.com/starford/vellum/internal/storage"
)

type memCache struct {
	data    map[string][]byte
	lookups int
	stores  int
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Lookup(_ context.Context, doc storage.Document, to string) ([]byte, bool, error) {
	c.lookups++
	d, ok := c.data[doc.Path()+"|"+to]
	return d, ok, nil
}

func (c *memCache) Store(_ context.Context, doc storage.Document, to string, data []byte) error {
	c.stores++
	c.data[doc.Path()+"|"+to] = append([]byte(nil), data...)
	return nil
}

func vault(t *testing.T, files map[string]string) *storage.FS {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)
	for p, c := range files {
		require.NoError(t, fs.Write(p, []byte(c)))
	}
	return fs
}

func TestConvertWikiToHTML(t *testing.T) {
	v := vault(t, map[string]string{
		"/docs/main.wiki":  "h1. Title\n\nSee [$other.wiki].\n\n[:inc.wiki]\n\n[quote|java]\npublic class A {}\n[/quote]",
		"/docs/other.wiki": "x",
		"/docs/inc.wiki":   "Included **text**",
	})
	m := New(builtin.Registry(nil), v)

	out, err := m.Convert(context.Background(), v.Document("/docs/main.wiki"), contenttype.HTML, nil)
	require.NoError(t, err)
	html := string(out)
	assert.Contains(t, html, "<h1>Title</h1>")
	assert.Contains(t, html, `href="/view/docs/other.wiki"`)
	assert.Contains(t, html, "Included <b>text</b>")
	assert.Contains(t, html, `<span class="code-keyword">public</span>`)
	assert.NotContains(t, html, "<link")
}

func TestConvertWikiToHTMLWithServer(t *testing.T) {
	v := vault(t, map[string]string{
		"/docs/main.wiki":     "h1. Title\n\nSee [$other.wiki].\n\n[:sub/inc.wiki]",
		"/docs/other.wiki":    "x",
		"/docs/sub/inc.wiki":  "Go to [$leaf.wiki].",
		"/docs/sub/leaf.wiki": "leaf",
	})
	c := newMemCache()
	m := New(builtin.Registry(nil), v, WithCache(c))
	props := convert.Properties{"server": "http://host/"}

	out, err := m.Convert(context.Background(), v.Document("/docs/main.wiki"), contenttype.HTML, props)
	require.NoError(t, err)
	html := string(out)
	assert.Contains(t, html, `href="http://host/view/docs/other.wiki"`)
	assert.Contains(t, html, `href="http://host/view/docs/sub/leaf.wiki"`, "links inside includes resolve against the included document")
	assert.NotContains(t, html, `href://`)
	assert.NotContains(t, html, "page:")
	assert.Zero(t, c.stores, "renderings with properties are not cached")

	props = convert.Properties{"server": "http://host", "viewPath": "pages"}
	out, err = m.Convert(context.Background(), v.Document("/docs/main.wiki"), contenttype.HTML, props)
	require.NoError(t, err)
	assert.Contains(t, string(out), `href="http://host/pages/docs/other.wiki"`)
}

func TestConvertMarkdownToWiki(t *testing.T) {
	v := vault(t, map[string]string{
		"/a.md": "---\ntitle: T\n---\n\n# Head\n\nSome **b** text.",
	})
	m := New(builtin.Registry(nil), v)

	out, err := m.Convert(context.Background(), v.Document("/a.md"), contenttype.Wiki, nil)
	require.NoError(t, err)
	assert.Equal(t, "@title T\n\nh1. Head\n\nSome **b** text.\n", string(out))
}

func TestConvertWikiToODT(t *testing.T) {
	v := vault(t, map[string]string{"/a.wiki": "h1. Head\n\nbody"})
	m := New(builtin.Registry(nil), v)

	out, err := m.Convert(context.Background(), v.Document("/a.wiki"), contenttype.ODT, nil)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("PK")))
	assert.Contains(t, string(out[:100]), "mimetype"+contenttype.ODT)
}

func TestConvertIncludesAttachment(t *testing.T) {
	v := vault(t, map[string]string{"/docs/main.wiki": "[:.resources/note.txt]"})
	m := New(builtin.Registry(nil), v)
	doc := v.Document("/docs/main.wiki")

	uri, err := m.Datastore(doc).Store(strings.NewReader("hello"), "note", contenttype.Text)
	require.NoError(t, err)
	assert.Equal(t, datastore.Namespace+"note.txt", uri)

	out, err := m.Convert(context.Background(), doc, contenttype.HTML, nil)
	require.NoError(t, err)
	assert.Contains(t, string(out), `<span class="line">hello</span>`)
}

func TestConvertCache(t *testing.T) {
	v := vault(t, map[string]string{"/a.wiki": "h1. Head"})
	doc := v.Document("/a.wiki")
	ctx := context.Background()

	t.Run("populated and served without properties", func(t *testing.T) {
		c := newMemCache()
		m := New(builtin.Registry(nil), v, WithCache(c))
		first, err := m.Convert(ctx, doc, contenttype.HTML, nil)
		require.NoError(t, err)
		c.data["/a.wiki|"+contenttype.HTML] = []byte("cached")

		second, err := m.Convert(ctx, doc, contenttype.HTML, nil)
		require.NoError(t, err)
		assert.Equal(t, "<h1>Head</h1>", string(first))
		assert.Equal(t, "cached", string(second))
		assert.Equal(t, 1, c.stores)
	})

	t.Run("bypassed with properties", func(t *testing.T) {
		c := newMemCache()
		m := New(builtin.Registry(nil), v, WithCache(c))
		_, err := m.Convert(ctx, doc, contenttype.HTML, convert.Properties{})
		require.NoError(t, err)
		assert.Zero(t, c.lookups)
		assert.Zero(t, c.stores)
	})

	t.Run("size limit", func(t *testing.T) {
		c := newMemCache()
		m := New(builtin.Registry(nil), v, WithCache(c), WithSizeLimit(5))
		_, err := m.Convert(ctx, doc, contenttype.HTML, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, c.lookups)
		assert.Zero(t, c.stores)
	})

	t.Run("content type filter", func(t *testing.T) {
		c := newMemCache()
		m := New(builtin.Registry(nil), v, WithCache(c), WithCacheContentTypes(contenttype.Text))
		_, err := m.Convert(ctx, doc, contenttype.HTML, nil)
		require.NoError(t, err)
		_, err = m.Convert(ctx, doc, contenttype.Text, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, c.stores)
		assert.Contains(t, c.data, "/a.wiki|"+contenttype.Text)
	})
}

func TestConvertErrors(t *testing.T) {
	v := vault(t, map[string]string{"/a.wiki": "x", "/a.unknownext": "x", "/b.html": "<p>x</p>"})
	m := New(builtin.Registry(nil), v)
	ctx := context.Background()

	_, err := m.Convert(ctx, v.Document("/a.unknownext"), contenttype.HTML, nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = m.Convert(ctx, v.Document("/a.wiki"), "", nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = m.Convert(ctx, v.Document("/b.html"), contenttype.PNG, nil)
	assert.ErrorIs(t, err, apperr.ErrNoConverter)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = m.Convert(cancelled, v.Document("/a.wiki"), contenttype.HTML, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConvertTo(t *testing.T) {
	v := vault(t, map[string]string{"/a.wiki": "h1. Head"})
	m := New(builtin.Registry(nil), v)

	var buf bytes.Buffer
	require.NoError(t, m.ConvertTo(context.Background(), v.Document("/a.wiki"), contenttype.Text, nil, &buf))
	assert.Equal(t, "Head\n", buf.String())
}

func TestManagerLookups(t *testing.T) {
	v := vault(t, nil)
	m := New(builtin.Registry(nil), v)
	assert.True(t, m.CanConvert(contenttype.Wiki, contenttype.HTML))
	assert.False(t, m.CanConvert(contenttype.HTML, contenttype.PNG))
	assert.NotNil(t, m.Converter(contenttype.Markdown, contenttype.Slides))
	assert.NotNil(t, m.Datastore(v.Document("/a.wiki")))

	m = New(builtin.Registry(nil), v, WithDatastoreFactory(func(storage.Document) datastore.Datastore { return nil }))
	assert.Nil(t, m.Datastore(v.Document("/a.wiki")))
}
