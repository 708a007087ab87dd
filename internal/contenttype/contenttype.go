// Package contenttype names the document formats the service understands
// and maps them to and from file extensions.
package contenttype

import (
	"mime"
	"path"
	"strings"
	"sync"
)

const (
	Wiki           = "text/x-wiki"
	Markdown       = "text/x-markdown"
	CommonMark     = "text/markdown"
	EditableHTML   = "text/html+editable"
	HTML           = "text/html"
	StandaloneHTML = "text/html+standalone"
	Slides         = "text/html+slides"
	ODT            = "application/vnd.oasis.opendocument.text"
	Text           = "text/plain"
	XML            = "application/xml"
	TextXML        = "text/xml"
	Diff           = "text/x-diff"
	INI            = "text/x-plain.ini"
	Properties     = "text/x-plain.properties"
	Java           = "text/x-java-source"
	C              = "text/x-c"
	JavaScript     = "application/x-javascript"
	JSON           = "application/json"
	Python         = "text/x-script.python"
	PHP            = "text/x-script.php"
	Scheme         = "text/x-script.scheme"
	Shell          = "text/x-script.sh"
	Tcl            = "text/x-script.tcl"
	Tcsh           = "text/x-script.tcsh"
	Zsh            = "text/x-script.zsh"
	SQL            = "application/x-sql"
	Batch          = "application/bat"
	PNG            = "image/png"
	GIF            = "image/gif"
	JPEG           = "image/jpeg"
	TIFF           = "image/tiff"
	BMP            = "image/bmp"
	WEBP           = "image/webp"
	OctetStream    = "application/octet-stream"
)

// Code lists the source code formats that get syntax highlighting.
var Code = []string{Batch, PHP, Java, C, JavaScript, JSON, Python, Scheme, Shell, Tcl, Tcsh, Zsh, SQL}

// Images lists the raster formats that can be referenced from documents.
var Images = []string{PNG, GIF, JPEG, TIFF, BMP, WEBP}

// extension table; the first extension listed for a type is its preferred one.
var table = []struct {
	typ  string
	exts []string
}{
	{Wiki, []string{"wiki", "txtw"}},
	{Markdown, []string{"md", "markdown"}},
	{CommonMark, []string{"cmark", "commonmark"}},
	{EditableHTML, []string{"ehtml"}},
	{HTML, []string{"html", "htm"}},
	{StandaloneHTML, []string{"shtml"}},
	{Slides, []string{"slides"}},
	{ODT, []string{"odt"}},
	{Text, []string{"txt", "text", "log"}},
	{XML, []string{"xml", "xsd", "xsl"}},
	{Diff, []string{"diff", "patch"}},
	{INI, []string{"ini"}},
	{Properties, []string{"properties"}},
	{Java, []string{"java"}},
	{C, []string{"c", "h", "cpp"}},
	{JavaScript, []string{"js"}},
	{JSON, []string{"json"}},
	{Python, []string{"py"}},
	{PHP, []string{"php"}},
	{Scheme, []string{"scm"}},
	{Shell, []string{"sh", "bash"}},
	{Tcl, []string{"tcl"}},
	{Tcsh, []string{"tcsh"}},
	{Zsh, []string{"zsh"}},
	{SQL, []string{"sql"}},
	{Batch, []string{"bat"}},
	{PNG, []string{"png"}},
	{GIF, []string{"gif"}},
	{JPEG, []string{"jpg", "jpeg"}},
	{TIFF, []string{"tiff", "tif"}},
	{BMP, []string{"bmp"}},
	{WEBP, []string{"webp"}},
}

var (
	mu      sync.RWMutex
	byExt   = map[string]string{}
	extByCT = map[string]string{}
)

func init() {
	for _, e := range table {
		for _, ext := range e.exts {
			byExt[ext] = e.typ
		}
		extByCT[e.typ] = e.exts[0]
	}
}

// Register adds or overrides an extension mapping. The extension becomes the
// preferred one for the type when the type has none yet.
func Register(typ, ext string) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	mu.Lock()
	defer mu.Unlock()
	byExt[ext] = typ
	if _, ok := extByCT[typ]; !ok {
		extByCT[typ] = ext
	}
}

// ForExtension returns the content type for an extension (with or without the
// leading dot), or "" when unknown.
func ForExtension(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return ""
	}
	mu.RLock()
	typ, ok := byExt[ext]
	mu.RUnlock()
	if ok {
		return typ
	}
	if typ := mime.TypeByExtension("." + ext); typ != "" {
		if i := strings.IndexByte(typ, ';'); i >= 0 {
			typ = typ[:i]
		}
		return strings.TrimSpace(typ)
	}
	return ""
}

// ForName returns the content type for a file name based on its extension.
func ForName(name string) string {
	return ForExtension(path.Ext(name))
}

// Extension returns the preferred extension (without dot) for a content type,
// or "" when unknown.
func Extension(typ string) string {
	mu.RLock()
	ext, ok := extByCT[typ]
	mu.RUnlock()
	if ok {
		return ext
	}
	exts, _ := mime.ExtensionsByType(typ)
	if len(exts) > 0 {
		return strings.TrimPrefix(exts[0], ".")
	}
	return ""
}

// ForHint resolves a format hint as written in a document: either a full
// content type or an extension such as "java".
func ForHint(hint string) string {
	hint = strings.TrimSpace(hint)
	if strings.Contains(hint, "/") {
		return strings.ToLower(hint)
	}
	return ForExtension(hint)
}
