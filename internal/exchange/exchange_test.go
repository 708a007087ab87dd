package exchange

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShiftHeadings(t *testing.T) {
	in := `<h1>One</h1><p>x</p><h2 id="b">Two</h2>`

	assert.Equal(t, `<h2>One</h2><p>x</p><h3 id="b">Two</h3>`, ShiftHeadings(in, 1))
	assert.Equal(t, in, ShiftHeadings(in, 0))
	assert.Equal(t, `<h7>One</h7><p>x</p><h7 id="b">Two</h7>`, ShiftHeadings(in, 10))
	assert.Equal(t, `<h1>One</h1><p>x</p><h1 id="b">Two</h1>`, ShiftHeadings(in, -3))
}

func TestBrokenReference(t *testing.T) {
	got := BrokenReference("missing.wiki")
	assert.Equal(t,
		`<span reference="missing.wiki" class="bad">failed to import <a class="internal" exists="false" href="missing.wiki">missing.wiki</a></span>`,
		got)
}

func TestEscaping(t *testing.T) {
	assert.Equal(t, "a &lt;b&gt; &amp; c", EscapeXML("a <b> & c"))
	assert.Equal(t, "a <b> & c", UnescapeXML(EscapeXML("a <b> & c")))
	assert.Equal(t, `say &quot;hi&quot;`, EscapeAttr(`say "hi"`))
	assert.Equal(t, "Hello_World", EncodeAnchor("Hello,  World!"))
}

func TestPlaceholders(t *testing.T) {
	p := NewPlaceholders[string]("quote")
	a := p.Protect("first")
	b := p.Protect("second")

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "[quote="))
	assert.Equal(t, 2, p.Len())

	v, ok := p.Lookup(b)
	assert.True(t, ok)
	assert.Equal(t, "second", v)

	got := p.Restore("x "+a+" y "+b, strings.ToUpper)
	assert.Equal(t, "x FIRST y SECOND", got)
}

func TestParseMeta(t *testing.T) {
	content := MetaElement("title", `A "quoted" <title>`) + MetaElement("tags", "a,b") + "<p>x&nbsp;y</p>"
	metas := ParseMeta(content)

	assert.Equal(t, []Meta{{"title", `A "quoted" <title>`}, {"tags", "a,b"}}, metas)
	assert.Equal(t, "a,b", MetaValue(metas, MetaTags))
	assert.Equal(t, "", MetaValue(metas, MetaAuthor))
	assert.Equal(t, "<p>x&nbsp;y</p>", StripMeta(content))
}

func TestParseMetaMalformed(t *testing.T) {
	content := `<meta name="title" content="T"/><b><u>crossed</b></u>`
	assert.Equal(t, []Meta{{"title", "T"}}, ParseMeta(content))
	assert.Nil(t, ParseMeta("<p>none</p>"))
}
