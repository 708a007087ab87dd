package source

import (
	"io"
	"regexp"
	"strings"

	"github.com/starford/vellum/internal/contenttype"
	"github.com/starford/vellum/internal/convert"
	"github.com/starford/vellum/internal/exchange"
	"github.com/starford/vellum/internal/storage"
)

var keywords = []string{
	"abstract", "continue", "for", "new", "switch", "assert", "default", "goto", "package", "synchronized",
	"boolean", "do", "if", "private", "this", "break", "double", "implements", "protected", "throw",
	"byte", "else", "import", "public", "throws", "case", "enum", "instanceof", "return", "transient",
	"catch", "extends", "int", "short", "try", "char", "final", "interface", "static", "void",
	"class", "finally", "long", "strictfp", "volatile", "const", "float", "native", "super", "while",
	"select", "from", "where", "insert", "delete", "update",
}

var (
	doubleQuoted = regexp.MustCompile(`"(?:[^"\\\n]|\\.)*"`)
	singleQuoted = regexp.MustCompile(`'(?:[^'\\\n]|\\.)*'`)
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineComment  = regexp.MustCompile(`(?m)(//.*|#.*|^[ \t]*--[ \t]+.*)$`)
	keyword      = regexp.MustCompile(`\b(` + strings.Join(keywords, "|") + `)\b`)
	method       = regexp.MustCompile(`\b([\w.]+)\(`)
	label        = regexp.MustCompile(`(<span class="line">(?:&nbsp;)*)(\w+):`)
)

// Code highlights source code as HTML. Tokenizing is approximate, which
// makes the conversion lossy.
type Code struct{}

func (Code) Convert(_ convert.Manager, doc storage.Document, w io.Writer, _ convert.Properties) error {
	data, err := storage.ReadAll(doc)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, HighlightCode(string(data)))
	return err
}

// HighlightCode marks keywords, method calls, comments, string literals and
// labels of s with code-* spans.
func HighlightCode(s string) string {
	s = exchange.EscapeXML(normalize(s))

	strs := exchange.NewPlaceholders[string]("string")
	s = doubleQuoted.ReplaceAllStringFunc(s, strs.Protect)
	s = singleQuoted.ReplaceAllStringFunc(s, strs.Protect)
	comments := exchange.NewPlaceholders[string]("comment")
	s = blockComment.ReplaceAllStringFunc(s, comments.Protect)
	s = lineComment.ReplaceAllStringFunc(s, comments.Protect)

	s = keyword.ReplaceAllString(s, `<span class="code-keyword">$1</span>`)
	s = method.ReplaceAllString(s, `<span class="code-method">$1</span>(`)

	s = comments.Restore(s, func(c string) string {
		lines := strings.Split(c, "\n")
		for i, l := range lines {
			lines[i] = `<span class="code-comment">` + l + "</span>"
		}
		return strings.Join(lines, "\n")
	})
	s = strs.Restore(s, func(v string) string { return `<span class="code-string">` + v + "</span>" })

	s = numbered(s)
	s = label.ReplaceAllString(s, `$1<span class="code-label">$2</span>:`)
	return strings.ReplaceAll(s, "\t", exchange.TabSpaces)
}

func (Code) ContentTypes() []string    { return contenttype.Code }
func (Code) OutputContentType() string { return contenttype.HTML }
func (Code) Lossless() bool            { return false }
func (Code) String() string            { return "CodeToHTML" }
