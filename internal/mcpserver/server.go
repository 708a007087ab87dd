// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes vellum conversions for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/vellum/internal/apperr"
	"github.com/starford/vellum/internal/contenttype"
	"github.com/starford/vellum/internal/convert"
	"github.com/starford/vellum/internal/manager"
	"github.com/starford/vellum/internal/storage"
)

const syntaxURI = "vellum://wiki-syntax"

// Server wraps the MCP server with vellum tools.
type Server struct {
	mcp   *server.MCPServer
	mgr   *manager.Manager
	vault *storage.FS
}

// New creates a new MCP server with all vellum tools registered.
func New(mgr *manager.Manager, vault *storage.FS, version string) *Server {
	s := &Server{mgr: mgr, vault: vault}

	s.mcp = server.NewMCPServer(
		"Vellum",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("convert_document",
		mcp.WithDescription("Convert a vault document, or inline content, to another content type. "+
			"Text results are returned as is; binary results (ODT) are base64 encoded."),
		mcp.WithString("to", mcp.Required(), mcp.Description("Target content type or extension (e.g. text/html, odt, txt)")),
		mcp.WithString("path", mcp.Description("Vault path of the document (e.g. docs/page.wiki)")),
		mcp.WithString("content", mcp.Description("Inline source; path then only anchors relative references")),
		mcp.WithString("content_type", mcp.Description("Content type or extension of inline content")),
		mcp.WithObject("properties", mcp.Description("Conversion properties (string values)")),
	), s.convertDocument)

	s.mcp.AddTool(mcp.NewTool("list_converters",
		mcp.WithDescription("List converter edges, or the scored conversion paths between two content types."),
		mcp.WithString("from", mcp.Description("Source content type")),
		mcp.WithString("to", mcp.Description("Target content type")),
	), s.listConverters)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List all convertible documents or those in a specific folder."),
		mcp.WithString("folder", mcp.Description("Optional folder to list (empty for all)")),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read the raw source of a vault document."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault path of the document")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("store_attachment",
		mcp.WithDescription("Store an image or file next to a document, from an http(s) URL or a base64 data URI. "+
			"Returns the reference to use in wiki and Markdown documents."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data: URI of the file")),
		mcp.WithString("document", mcp.Description("Vault path of the owning document (vault root when empty)")),
		mcp.WithString("filename", mcp.Description("Preferred file name")),
	), s.storeAttachment)

	s.mcp.AddTool(mcp.NewTool("get_wiki_syntax",
		mcp.WithDescription("Returns the wiki and Markdown syntax vellum compiles. "+
			"Call this before writing documents meant for conversion."),
	), s.getWikiSyntax)

	s.mcp.AddResource(
		mcp.NewResource(syntaxURI, "Wiki Syntax",
			mcp.WithResourceDescription("Wiki and Markdown syntax understood by the converters."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSyntaxResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func vaultPath(p string) string {
	return "/" + strings.TrimPrefix(p, "/")
}

func (s *Server) convertDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	to, err := req.RequireString("to")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to = contenttype.ForHint(to)
	p := req.GetString("path", "")
	content := req.GetString("content", "")
	if p == "" && content == "" {
		return mcp.NewToolResultError("one of path or content is required"), nil
	}
	p = vaultPath(p)

	var props convert.Properties
	if raw, ok := req.GetArguments()["properties"].(map[string]any); ok && len(raw) > 0 {
		props = convert.Properties{}
		for k, v := range raw {
			props[k] = fmt.Sprint(v)
		}
	}

	var doc storage.Document
	if content != "" {
		ct := contenttype.ForHint(req.GetString("content_type", ""))
		if ct == "" {
			ct = contenttype.ForName(p)
		}
		doc = storage.NewFragment(s.vault.Document(path.Dir(p)), p, ct, []byte(content))
		if props == nil {
			props = convert.Properties{}
		}
	} else {
		doc = s.vault.Document(p)
		if !doc.Exists() {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", p)), nil
		}
	}

	out, err := s.mgr.Convert(ctx, doc, to, props)
	if err != nil {
		return mcp.NewToolResultError(describe(err)), nil
	}
	if !utf8.Valid(out) {
		return mcp.NewToolResultText(base64.StdEncoding.EncodeToString(out)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// describe turns conversion errors into messages an agent can act on.
func describe(err error) string {
	switch {
	case errors.Is(err, apperr.ErrNoConverter):
		return "no conversion path: " + err.Error() + " (see list_converters)"
	case errors.Is(err, apperr.ErrFormat):
		return "invalid document: " + err.Error()
	case errors.Is(err, fs.ErrNotExist):
		return "not found: " + err.Error()
	default:
		return err.Error()
	}
}

func (s *Server) listConverters(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from := contenttype.ForHint(req.GetString("from", ""))
	to := contenttype.ForHint(req.GetString("to", ""))
	reg := s.mgr.Registry()

	var v any
	if from == "" || to == "" {
		v = reg.Edges()
	} else {
		v = convert.Describe(reg.Paths(from, to))
	}
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listDocuments(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	metas, err := s.vault.List(vaultPath(req.GetString("folder", "")))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var lines []string
	for _, m := range metas {
		lines = append(lines, m.Path+"\t"+m.ContentType)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) readDocument(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.vault.Read(vaultPath(p))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", p)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) getWikiSyntax(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(SyntaxGuide), nil
}

func (s *Server) readSyntaxResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      syntaxURI,
			MIMEType: "text/markdown",
			Text:     SyntaxGuide,
		},
	}, nil
}
