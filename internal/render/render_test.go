package render

import (
	"archive/zip"
	"bytes"
	"image"
	"image/png"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/contenttype"
	"github.com/starford/vellum/internal/convert"
	"github.com/starford/vellum/internal/datastore"
	"github.com/starford/vellum/internal/exchange"
	"github.com/starford/vellum/internal/markup"
	"github.com/starford/vellum/internal/source"
	"github.com/starford/vellum/internal/storage"
)

type testManager struct {
	r     *convert.Registry
	vault *storage.FS
}

func (m testManager) Converter(from, to string) convert.Converter { return m.r.Converter(from, to) }
func (m testManager) Datastore(doc storage.Document) datastore.Datastore {
	return datastore.NewFileStore(m.vault, doc)
}

func setup(t *testing.T) (testManager, *storage.FS) {
	t.Helper()
	vault, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)
	r := convert.NewRegistry([]convert.Converter{
		markup.ToExchange(markup.Wiki, nil),
		source.Text{},
		source.Image{},
		NewHTML(nil),
	})
	return testManager{r: r, vault: vault}, vault
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

// page returns an exchange document living at /docs/page.wiki.
func page(vault *storage.FS, content string) storage.Document {
	return storage.NewFragment(vault.Document("/docs/page.wiki"), "/docs/page.wiki", exchange.ContentType, []byte(content))
}

func convertString(t *testing.T, c convert.Converter, m convert.Manager, doc storage.Document, props convert.Properties) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Convert(m, doc, &buf, props))
	return buf.String()
}

func TestHTMLRewritesReferences(t *testing.T) {
	m, vault := setup(t)
	doc := page(vault, `<p><a class="internal" href="page:/docs/b.wiki">b</a><img src="stream:/docs/x.png"/></p>`)

	got := convertString(t, NewHTML(nil), m, doc, convert.Properties{PropServer: "http://host/"})
	assert.Equal(t, `<p><a class="internal" href="http://host/view/docs/b.wiki">b</a><img src="http://host/download/docs/x.png"/></p>`, got)

	got = convertString(t, NewHTML(nil), m, doc, convert.Properties{PropViewPath: "/pages/"})
	assert.Contains(t, got, `href="/pages/docs/b.wiki"`)
	assert.Contains(t, got, `src="/download/docs/x.png"`)
}

func TestHTMLTabsAndSpaces(t *testing.T) {
	m, vault := setup(t)
	got := convertString(t, NewHTML(nil), m, page(vault, "<p>a\tb&#160;c</p>"), nil)
	assert.Equal(t, "<p>a"+exchange.TabSpaces+"b&nbsp;c</p>", got)
}

func TestEmbedImages(t *testing.T) {
	m, vault := setup(t)
	require.NoError(t, vault.Write("/docs/x.png", pngBytes(t, 2, 2)))
	doc := page(vault, `<p><img src="stream:/docs/x.png" title="x"/><img src="stream:/docs/gone.png"/></p>`)

	got := convertString(t, NewHTML(nil), m, doc, convert.Properties{PropEmbed: "true"})
	assert.Contains(t, got, `<img src="data:image/png;base64,`)
	assert.Contains(t, got, `<img src="stream:/docs/gone.png"/>`, "missing images keep their source")
}

func TestTableOfContents(t *testing.T) {
	toc, err := TableOfContents("<h1>Intro</h1><p>x</p><h2>Details</h2><h1>End</h1>")
	require.NoError(t, err)
	assert.Equal(t,
		`<ul class="toc"><li><a href="#Intro">Intro</a></li><ul class="toc"><li><a href="#Details">Details</a></li></ul>`+
			`<li><a href="#End">End</a></li></ul>`,
		toc)

	toc, err = TableOfContents("<p>no headings</p>")
	require.NoError(t, err)
	assert.Empty(t, toc)
}

func TestHeaderAnchors(t *testing.T) {
	got := HeaderAnchors("<h1>Intro</h1><h2><b>x</b> y</h2>")
	assert.Equal(t, `<a name="Intro"></a><h1>Intro</h1><a name="x_y"></a><h2><b>x</b> y</h2>`, got)
}

func TestTableOfContentsLinksMatchAnchors(t *testing.T) {
	body := `<h1>Intro &amp; more</h1><h2>The <b>good</b> kind</h2><h2 class="x"><i>Odd</i>, <code>case</code></h2>`
	toc, err := TableOfContents(body)
	require.NoError(t, err)
	anchored := HeaderAnchors(body)

	for _, name := range []string{"Intro_more", "The_good_kind", "Odd_case"} {
		assert.Contains(t, toc, `href="#`+name+`"`)
		assert.Contains(t, anchored, `<a name="`+name+`"></a>`)
	}
}

func TestStandalone(t *testing.T) {
	m, vault := setup(t)
	require.NoError(t, vault.Write("/docs/x.png", pngBytes(t, 1, 1)))
	doc := page(vault, `<h1>Intro</h1><p><img src="stream:/docs/x.png"/></p>`)

	got := convertString(t, NewStandalone(nil), m, doc, nil)
	assert.True(t, strings.HasPrefix(got, `<html><head><meta charset="utf-8"/><title>page.wiki</title>`))
	assert.Contains(t, got, `<div id="content"><a name="Intro"></a><h1>Intro</h1>`)
	assert.Contains(t, got, `src="data:image/png;base64,`)
	assert.Contains(t, got, `<div class="tableOfContents"><ul class="toc"><li><a href="#Intro">Intro</a></li></ul></div>`)
	assert.True(t, strings.HasSuffix(got, "</body></html>"))
}

func TestSections(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		metas      []exchange.Meta
		titlePages bool
		want       []string
	}{
		{
			name:    "headings and sub-slides",
			content: "<h1>A</h1><p>a</p><h2>B</h2><p>b</p><hr/><p>c</p>",
			want: []string{
				"<section><center><h1>A</h1></center><p>a</p></section>",
				"<section><section><center><h1>B</h1></center><p>b</p></section><section><p>c</p></section></section>",
			},
		},
		{
			name:    "title slide",
			content: "<p>intro</p>",
			metas:   []exchange.Meta{{Name: "title", Content: "Deck"}, {Name: "author", Content: "Me"}},
			want: []string{
				`<section class="title"><h1>Deck</h1><p>Me</p></section>`,
				"<section><p>intro</p></section>",
			},
		},
		{
			name:    "deeper headings move up",
			content: "<h3>x</h3><p>y</p>",
			want:    []string{"<section><h2>x</h2><p>y</p></section>"},
		},
		{
			name:    "empty heading makes no slide",
			content: "<h1>A</h1><h1>B</h1><p>b</p>",
			want:    []string{"<section><center><h1>B</h1></center><p>b</p></section>"},
		},
		{
			name:       "overview pages",
			content:    "<h1>A</h1><p>a</p><h1>B</h1><p>b</p>",
			titlePages: true,
			want: []string{
				`<section><ul><li class="selected">A</li><li>B</li></ul></section>`,
				"<section><center><h1>A</h1></center><p>a</p></section>",
				`<section><ul><li>A</li><li class="selected">B</li></ul></section>`,
				"<section><center><h1>B</h1></center><p>b</p></section>",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sections(tt.content, tt.metas, tt.titlePages))
		})
	}
}

func TestSlidesConvert(t *testing.T) {
	m, vault := setup(t)
	doc := page(vault, `<meta name="title" content="Deck"/><h1>A</h1><p>x</p>`)

	got := convertString(t, NewSlides(nil), m, doc, convert.Properties{
		PropTransition: "zoom",
		PropFragment:   "p",
		PropStyle:      "h1 { color: red; }",
	})
	assert.Contains(t, got, `<title>Slides: page.wiki</title>`)
	assert.Contains(t, got, `<link rel="stylesheet" href="`+DefaultRevealPath+`/theme/white.css"/>`)
	assert.Contains(t, got, "<style>h1 {\n  color: red;\n}</style>")
	assert.Contains(t, got, `<section class="title"><h1>Deck</h1></section>`)
	assert.Contains(t, got, `<p class="fragment">x</p>`)
	assert.Contains(t, got, "transition: 'zoom'")

	got = convertString(t, NewSlides(nil), m, doc, convert.Properties{PropEmbedded: "true", PropTransition: "spin"})
	assert.True(t, strings.HasPrefix(got, `<div id="slideShow" class="reveal"><div class="slides">`))
	assert.True(t, strings.HasSuffix(got, "</div></div>"))
}

func TestSlidesInvalidStyle(t *testing.T) {
	m, vault := setup(t)
	err := NewSlides(nil).Convert(m, page(vault, "<p>x</p>"), io.Discard, convert.Properties{PropStyle: "} p { color: red }"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrFormat)
}

func TestPlainText(t *testing.T) {
	got, err := PlainText("<h1>Title</h1><p>One<br/>two</p><ul><li>a</li><li>b</li></ul>" +
		"<table><tr><td>x</td><td>y</td></tr></table><blockquote format=\"txt\">l1\nl2</blockquote><p>a&nbsp;b</p>")
	require.NoError(t, err)
	assert.Equal(t, "Title\n\nOne\ntwo\n\n- a\n- b\n\nx\ty\n\nl1\nl2\n\na b\n", got)

	got, err = PlainText("")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTextConvertResolvesIncludes(t *testing.T) {
	m, vault := setup(t)
	require.NoError(t, vault.Write("/docs/inc.wiki", []byte("included **text**")))
	doc := page(vault, `<p>before</p><link href="inc.wiki"/>`)

	got := convertString(t, NewText(nil), m, doc, nil)
	assert.Equal(t, "before\n\nincluded text\n", got)
}

func TestImageSize(t *testing.T) {
	w, h := ImageSize(96, 48)
	assert.InDelta(t, 0.9984, w, 1e-9)
	assert.InDelta(t, 0.4992, h, 1e-9)

	w, h = ImageSize(1000, 100)
	assert.InDelta(t, 6.0, w, 1e-9)
	assert.InDelta(t, 0.6, h, 1e-9)

	w, h = ImageSize(100, 2000)
	assert.InDelta(t, 10.0, h, 1e-9)
	assert.InDelta(t, 0.5, w, 1e-9)
}

func TestODT(t *testing.T) {
	m, vault := setup(t)
	require.NoError(t, vault.Write("/docs/x.png", pngBytes(t, 96, 48)))
	doc := page(vault, `<meta name="title" content="Report"/><meta name="tags" content="a, b"/>`+
		`<h1>Intro</h1><p>Hello  <b>world</b></p><ul><li>a</li><ul><li>b</li></ul></ul>`+
		`<p><img src="stream:/docs/x.png" alt="x"/></p>`+"<blockquote format=\"txt\">a\tb</blockquote>")

	odt := NewODT(nil)
	odt.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	data := []byte(convertString(t, odt, m, doc, nil))

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.NotEmpty(t, zr.File)
	assert.Equal(t, "mimetype", zr.File[0].Name)
	assert.Equal(t, zip.Store, zr.File[0].Method)

	entries := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		entries[f.Name] = string(b)
	}
	assert.Equal(t, contenttype.ODT, entries["mimetype"])

	content := entries["content.xml"]
	assert.Contains(t, content, `<text:h text:style-name="Heading_20_1" text:outline-level="1">Intro</text:h>`)
	assert.Contains(t, content, `Hello <text:s text:c="1"/><text:span text:style-name="Bold">world</text:span>`)
	assert.Contains(t, content, `<text:list text:style-name="List_UL"><text:list-item><text:p text:style-name="List_20_Contents">a</text:p></text:list-item>`+
		`<text:list-item><text:list text:style-name="List_UL">`)
	assert.Contains(t, content, `svg:width="0.9984in" svg:height="0.4992in"`)
	assert.Contains(t, content, `xlink:href="media/image1.png"`)
	assert.Contains(t, content, `<text:p text:style-name="Preformatted_20_Text">a<text:tab/>b</text:p>`)

	assert.Contains(t, entries, "media/image1.png")
	assert.Contains(t, entries["META-INF/manifest.xml"], `manifest:full-path="media/image1.png" manifest:media-type="image/png"`)

	meta := entries["meta.xml"]
	assert.Contains(t, meta, "<dc:title>Report</dc:title>")
	assert.Contains(t, meta, "<meta:keyword>a</meta:keyword><meta:keyword>b</meta:keyword>")
	assert.Contains(t, meta, "<meta:creation-date>2024-01-02T03:04:05Z</meta:creation-date>")
	assert.Contains(t, meta, "<meta:generator>"+Generator+"</meta:generator>")
}

func TestOpenResource(t *testing.T) {
	m, vault := setup(t)
	doc := vault.Document("/docs/page.wiki")
	require.NoError(t, vault.Write("/docs/x.png", []byte("png")))

	t.Run("vault file", func(t *testing.T) {
		res, err := OpenResource(m, doc, "x.png")
		require.NoError(t, err)
		assert.Equal(t, "/docs/x.png", res.Path)
		assert.Equal(t, "image/png", res.ContentType)
		assert.Equal(t, []byte("png"), res.Data)
		assert.Equal(t, "x.png", res.Name())
	})

	t.Run("datastore", func(t *testing.T) {
		uri, err := m.Datastore(doc).Store(strings.NewReader("logo"), "logo", "image/png")
		require.NoError(t, err)
		res, err := OpenResource(m, doc, uri)
		require.NoError(t, err)
		assert.Equal(t, "/docs/.resources/logo.png", res.Path)
		assert.Equal(t, []byte("logo"), res.Data)
	})

	t.Run("odt package entry", func(t *testing.T) {
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		f, err := zw.Create("Pictures/p.png")
		require.NoError(t, err)
		_, err = f.Write([]byte("inner"))
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		require.NoError(t, vault.Write("/docs/a.odt", buf.Bytes()))

		res, err := OpenResource(m, doc, "/docs/a.odt/Pictures/p.png")
		require.NoError(t, err)
		assert.Equal(t, "image/png", res.ContentType)
		assert.Equal(t, []byte("inner"), res.Data)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := OpenResource(m, doc, "nope.png")
		require.Error(t, err)
	})
}

func TestMarkupWiki(t *testing.T) {
	content := `<meta name="title" content="Doc"/><h1>Intro</h1><p>Some <b>bold</b> and <i>it</i> text.</p>` +
		`<ul><li>a</li><ul><li>b</li></ul><li>c</li></ul><blockquote format="txt">raw *x*</blockquote><hr/>` +
		`<table><thead><tr><td>h</td></tr></thead><tr><td class="important">v</td></tr></table>`

	got, err := ToWiki(nil).Render(content, nil)
	require.NoError(t, err)
	assert.Equal(t, "@title Doc\n\nh1. Intro\n\nSome **bold** and ++it++ text.\n\n* a\n** b\n* c\n\n"+
		"[quote]\nraw *x*\n[/quote]\n\n--\n\n||h|\n|!v!|\n", got)
}

func TestMarkupLinks(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wiki, md string
	}{
		{
			name: "external",
			in:   `<p><a rel="nofollow" class="external" href="http://e.com">E</a></p>`,
			wiki: "[E|http://e.com]\n", md: "[E](http://e.com)\n",
		},
		{
			name: "internal without display name",
			in:   `<p><a class="internal" hasDisplayName="false" original="other.wiki" exists="true" href="page:/docs/other.wiki">other.wiki</a></p>`,
			wiki: "[$other.wiki]\n", md: "[$other.wiki]\n",
		},
		{
			name: "internal with display name",
			in:   `<p><a class="internal" hasDisplayName="true" original="other.wiki" exists="true" href="page:/docs/other.wiki">Other</a></p>`,
			wiki: "[Other|$other.wiki]\n", md: "[Other](other.wiki)\n",
		},
		{
			name: "anchor",
			in:   `<p><a class="anchor" hasDisplayName="true" href="#top" original="top">Up</a></p>`,
			wiki: "[Up|#top]\n", md: "[Up](#top)\n",
		},
		{
			name: "anchor declaration",
			in:   `<p><a name="top" original="top"></a></p>`,
			wiki: "[#top]\n", md: "[#top]\n",
		},
		{
			name: "image",
			in:   `<p><img src="stream:/docs/x.png" reference="/docs/x.png" title="/docs/x.png" alt="/docs/x.png"/></p>`,
			wiki: "[:/docs/x.png]\n", md: "![/docs/x.png](/docs/x.png)\n",
		},
		{
			name: "include",
			in:   `<link href="other.wiki"/>`,
			wiki: "[:other.wiki]\n", md: "[:other.wiki]\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToWiki(nil).Render(tt.in, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wiki, got)

			got, err = ToMarkdown(nil).Render(tt.in, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.md, got)
		})
	}
}

func TestMarkupMarkdown(t *testing.T) {
	content := `<meta name="title" content="Doc"/><h2>Intro</h2>` +
		`<p>Use <code>x</code> here.</p><ol><li>one</li></ol><blockquote format="go">x := 1</blockquote>`

	got, err := ToMarkdown(nil).Render(content, nil)
	require.NoError(t, err)
	assert.Equal(t, "---\ntitle: Doc\n---\n\n## Intro\n\nUse `x` here.\n\n+ one\n\n```go\nx := 1\n```\n", got)
}

func TestMarkupUnroutesImages(t *testing.T) {
	content := `<p><img src="http://host/download/docs/x.png" title="x" alt="x"/></p>`
	got, err := ToWiki(nil).Render(content, convert.Properties{PropServer: "http://host"})
	require.NoError(t, err)
	assert.Equal(t, "[:/docs/x.png?title=x]\n", got)
}

func TestWikiRoundTrip(t *testing.T) {
	src := "h1. Intro\n\nSome **bold** text.\n\n* a\n** b"
	doc := storage.NewFragment(nil, "/doc.wiki", contenttype.Wiki, []byte(src))
	compiler := markup.NewCompiler(markup.Wiki, nil)

	first, err := compiler.Compile(doc, src, nil)
	require.NoError(t, err)
	wiki, err := ToWiki(nil).Render(first, nil)
	require.NoError(t, err)
	second, err := compiler.Compile(doc, strings.TrimSpace(wiki), nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMarkupConverter(t *testing.T) {
	assert.Equal(t, contenttype.Wiki, ToWiki(nil).OutputContentType())
	assert.Equal(t, contenttype.Markdown, ToMarkdown(nil).OutputContentType())
	assert.True(t, ToWiki(nil).Lossless())
	assert.Equal(t, []string{exchange.ContentType}, ToMarkdown(nil).ContentTypes())
	assert.Equal(t, "ExchangeToMarkdown", ToMarkdown(nil).String())
}
