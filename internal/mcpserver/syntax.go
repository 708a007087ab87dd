package mcpserver

const bt = "`"

// SyntaxGuide describes the wiki markup that vellum compiles. LLM consumers
// should read it before writing documents meant for conversion.
const SyntaxGuide = `# Vellum Wiki Syntax

Documents ending in ` + bt + `.wiki` + bt + ` use the wiki dialect; ` + bt + `.md` + bt + ` documents use the
Markdown dialect, which accepts everything below plus the Markdown forms noted.

## Blocks

- Headings: ` + bt + `h1. Title` + bt + ` to ` + bt + `h7. Title` + bt + `. Markdown: ` + bt + `# Title` + bt + ` to ` + bt + `###### Title` + bt + `.
- Paragraphs are separated by a blank line; a single newline is a line break.
- Bullets start with ` + bt + `*` + bt + `, numbered items with ` + bt + `#` + bt + `; repeat the marker to nest
  (` + bt + `**` + bt + `, ` + bt + `##` + bt + `). Markdown nests ` + bt + `*` + bt + `/` + bt + `-` + bt + ` bullets and ` + bt + `+` + bt + ` items by indentation.
- Tables are rows of cells between ` + bt + `|` + bt + ` characters; a row of ` + bt + `||` + bt + ` cells is a header row.
- Quotes: ` + bt + `[quote|java]` + bt + ` ... ` + bt + `[/quote]` + bt + ` renders the enclosed text through the
  converter for the named format (here Java highlighting). ` + bt + `[quote]` + bt + ` alone is plain text.
  Markdown also accepts fenced blocks: three backticks followed by the format.

## Inline styles

Wrap text in doubled markers: ` + bt + `**bold**` + bt + `, ` + bt + `__underline__` + bt + `, ` + bt + `++italic++` + bt + `,
` + bt + `@@code@@` + bt + `, ` + bt + `!!strong!!` + bt + `, ` + bt + `??cite??` + bt + `, ` + bt + `~~deleted~~` + bt + `, ` + bt + `%%inserted%%` + bt + `.
Markdown adds single backticks for code. Escape a marker with a backslash.

## Links and includes

- ` + bt + `[$other.wiki]` + bt + ` or ` + bt + `[Name|$other.wiki]` + bt + `: link to another document, relative to this one.
- ` + bt + `[Name|#section]` + bt + `: link to an anchor; ` + bt + `[#section]` + bt + ` declares one.
- ` + bt + `[Name|https://example.com]` + bt + `: external link.
- ` + bt + `[:part.wiki]` + bt + `: include another document in place. Images are included the same way:
  ` + bt + `[:.resources/photo.png?title=Photo]` + bt + `.
- Markdown: ` + bt + `[Name](other.md)` + bt + ` and ` + bt + `![alt](.resources/photo.png "title")` + bt + `.

## Metadata

Wiki documents start with annotation lines such as ` + bt + `@title Weekly report` + bt + ` followed by a blank
line. Markdown documents use YAML front matter between ` + bt + `---` + bt + ` lines.

## Attachments

Store images with the ` + bt + `store_attachment` + bt + ` tool. It returns the reference to paste into the
document. Attachments live in the ` + bt + `.resources/` + bt + ` directory next to the document.
`
