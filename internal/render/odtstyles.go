package render

import (
	"fmt"
	"strings"
)

// ODF namespaces.
const (
	nsOffice   = "urn:oasis:names:tc:opendocument:xmlns:office:1.0"
	nsMeta     = "urn:oasis:names:tc:opendocument:xmlns:meta:1.0"
	nsDC       = "http://purl.org/dc/elements/1.1/"
	nsManifest = "urn:oasis:names:tc:opendocument:xmlns:manifest:1.0"
	nsText     = "urn:oasis:names:tc:opendocument:xmlns:text:1.0"
	nsTable    = "urn:oasis:names:tc:opendocument:xmlns:table:1.0"
	nsDraw     = "urn:oasis:names:tc:opendocument:xmlns:drawing:1.0"
	nsStyle    = "urn:oasis:names:tc:opendocument:xmlns:style:1.0"
	nsFO       = "urn:oasis:names:tc:opendocument:xmlns:xsl-fo-compatible:1.0"
	nsSVG      = "urn:oasis:names:tc:opendocument:xmlns:svg-compatible:1.0"
	nsXLink    = "http://www.w3.org/1999/xlink"
)

const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

var headingSizes = []string{"130%", "115%", "105%", "100%", "95%", "90%", "85%"}

// odtStyles is styles.xml: the named styles the content refers to.
var odtStyles = func() string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	fmt.Fprintf(&b, `<office:document-styles xmlns:office="%s" xmlns:style="%s" xmlns:text="%s" xmlns:fo="%s" xmlns:svg="%s" office:version="1.2">`,
		nsOffice, nsStyle, nsText, nsFO, nsSVG)
	b.WriteString(`<office:styles>`)
	b.WriteString(`<style:default-style style:family="paragraph"><style:paragraph-properties fo:margin-top="0in" fo:margin-bottom="0.08in"/>` +
		`<style:text-properties style:font-name="Liberation Sans" fo:font-family="'Liberation Sans'" fo:font-size="11pt"/></style:default-style>`)
	b.WriteString(`<style:style style:name="Standard" style:family="paragraph" style:class="text"/>`)
	b.WriteString(`<style:style style:name="Text_20_body" style:display-name="Text body" style:family="paragraph" style:parent-style-name="Standard" style:class="text">` +
		`<style:paragraph-properties fo:margin-top="0in" fo:margin-bottom="0.08in"/></style:style>`)
	b.WriteString(`<style:style style:name="Heading" style:family="paragraph" style:parent-style-name="Standard" style:next-style-name="Text_20_body" style:class="text">` +
		`<style:paragraph-properties fo:margin-top="0.17in" fo:margin-bottom="0.08in" fo:keep-with-next="always"/>` +
		`<style:text-properties fo:font-weight="bold"/></style:style>`)
	for i, size := range headingSizes {
		fmt.Fprintf(&b, `<style:style style:name="Heading_20_%d" style:display-name="Heading %d" style:family="paragraph" `+
			`style:parent-style-name="Heading" style:next-style-name="Text_20_body" style:default-outline-level="%d" style:class="text">`+
			`<style:text-properties fo:font-size="%s"/></style:style>`, i+1, i+1, i+1, size)
	}
	b.WriteString(`<style:style style:name="Preformatted_20_Text" style:display-name="Preformatted Text" style:family="paragraph" style:parent-style-name="Standard" style:class="html">` +
		`<style:paragraph-properties fo:margin-top="0in" fo:margin-bottom="0in" fo:background-color="#f2f2f2"/>` +
		`<style:text-properties style:font-name="Liberation Mono" fo:font-family="'Liberation Mono'" fo:font-size="9pt"/></style:style>`)
	b.WriteString(`<style:style style:name="Horizontal_20_Line" style:display-name="Horizontal Line" style:family="paragraph" style:parent-style-name="Standard" style:class="html">` +
		`<style:paragraph-properties fo:margin-bottom="0.2in" fo:border-bottom="0.01in solid #808080" fo:padding="0in"/></style:style>`)
	b.WriteString(`<style:style style:name="List_20_Contents" style:display-name="List Contents" style:family="paragraph" style:parent-style-name="Standard" style:class="list"/>`)
	b.WriteString(`<style:style style:name="Table_20_Contents" style:display-name="Table Contents" style:family="paragraph" style:parent-style-name="Standard" style:class="extra"/>`)
	b.WriteString(`<style:style style:name="Table_20_Heading" style:display-name="Table Heading" style:family="paragraph" style:parent-style-name="Table_20_Contents" style:class="extra">` +
		`<style:text-properties fo:font-weight="bold"/></style:style>`)
	for _, s := range []struct{ name, props string }{
		{"Bold", `fo:font-weight="bold"`},
		{"Italic", `fo:font-style="italic"`},
		{"Underline", `style:text-underline-style="solid" style:text-underline-width="auto" style:text-underline-color="font-color"`},
		{"Strikethrough", `style:text-line-through-style="solid"`},
		{"Source_20_Text", `style:font-name="Liberation Mono" fo:font-family="'Liberation Mono'"`},
		{"Superscript", `style:text-position="super 58%"`},
		{"Subscript", `style:text-position="sub 58%"`},
	} {
		fmt.Fprintf(&b, `<style:style style:name="%s" style:family="text"><style:text-properties %s/></style:style>`, s.name, s.props)
	}
	b.WriteString(`<style:style style:name="Graphics" style:family="graphic"/>`)
	b.WriteString(`<text:list-style style:name="List_UL">`)
	for level := 1; level <= 10; level++ {
		fmt.Fprintf(&b, `<text:list-level-style-bullet text:level="%d" text:bullet-char="•">`+
			`<style:list-level-properties text:space-before="%.2fin" text:min-label-width="0.25in"/></text:list-level-style-bullet>`,
			level, 0.25*float64(level-1))
	}
	b.WriteString(`</text:list-style><text:list-style style:name="List_OL">`)
	for level := 1; level <= 10; level++ {
		fmt.Fprintf(&b, `<text:list-level-style-number text:level="%d" style:num-suffix="." style:num-format="1">`+
			`<style:list-level-properties text:space-before="%.2fin" text:min-label-width="0.25in"/></text:list-level-style-number>`,
			level, 0.25*float64(level-1))
	}
	b.WriteString(`</text:list-style></office:styles></office:document-styles>`)
	return b.String()
}()
