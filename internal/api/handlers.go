package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/vellum/internal/cache"
	"github.com/starford/vellum/internal/contenttype"
	"github.com/starford/vellum/internal/convert"
	"github.com/starford/vellum/internal/manager"
	"github.com/starford/vellum/internal/render"
	"github.com/starford/vellum/internal/storage"
)

const (
	maxBodyBytes   = 10 << 20 // 10 MB
	maxUploadBytes = 50 << 20 // 50 MB
)

// Handler holds API route handlers.
type Handler struct {
	mgr    *manager.Manager
	vault  *storage.FS
	cache  cache.Store
	props  convert.Properties
	logger *slog.Logger
}

// NewHandler creates a new Handler. store may be nil when caching is off.
// props are applied to every view rendering; nil keeps view results
// cacheable.
func NewHandler(mgr *manager.Manager, vault *storage.FS, store cache.Store, props convert.Properties, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{mgr: mgr, vault: vault, cache: store, props: props, logger: logger}
}

// vaultPath extracts the document path from the URL wildcard. Supports
// encoded slashes from OpenAPI clients (e.g. docs%2Fpage.wiki).
func vaultPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		decoded = raw
	}
	return "/" + decoded
}

// Convert handles POST /api/convert.
//
//	@Summary		Convert a vault document or inline content
//	@Tags			convert
//	@Accept			json
//	@Param			body	body		ConvertRequest	true	"Conversion request"
//	@Success		200		{file}		binary
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		415		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/convert [post]
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.To == "" || (req.Path == "" && req.Content == "") {
		writeJSON(w, http.StatusBadRequest, errorBody("to and one of path or content are required"))
		return
	}

	p := "/" + strings.TrimPrefix(req.Path, "/")
	var doc storage.Document
	if req.Content != "" {
		ct := req.ContentType
		if ct == "" {
			ct = contenttype.ForName(p)
		}
		doc = storage.NewFragment(h.vault.Document(path.Dir(p)), p, ct, []byte(req.Content))
	} else {
		doc = h.vault.Document(p)
		if !doc.Exists() {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
	}

	var props convert.Properties
	if len(req.Properties) > 0 {
		props = convert.Properties(req.Properties)
	}
	// Inline content has no stable identity, so it never hits the cache.
	if props == nil && req.Content != "" {
		props = convert.Properties{}
	}

	out, err := h.mgr.Convert(r.Context(), doc, req.To, props)
	if err != nil {
		writeError(w, h.logger, "convert", err)
		return
	}
	writeBytes(w, req.To, out)
}

// typeParam reads a content type from the query. A literal "+" in a
// hand-typed URL such as ?to=text/html+slides arrives as a space.
func typeParam(r *http.Request, key string) string {
	return strings.ReplaceAll(strings.TrimSpace(r.URL.Query().Get(key)), " ", "+")
}

// ListConverters handles GET /api/converters.
//
//	@Summary		List converters, or the paths between two content types
//	@Tags			convert
//	@Produce		json
//	@Param			from	query		string	false	"Source content type"
//	@Param			to		query		string	false	"Target content type"
//	@Success		200		{object}	ConvertersResponse
//	@Success		200		{object}	PathsResponse
//	@Security		BearerAuth
//	@Router			/converters [get]
func (h *Handler) ListConverters(w http.ResponseWriter, r *http.Request) {
	from, to := typeParam(r, "from"), typeParam(r, "to")
	if from == "" || to == "" {
		writeJSON(w, http.StatusOK, ConvertersResponse{Converters: h.mgr.Registry().Edges()})
		return
	}
	resp := PathsResponse{
		From:  from,
		To:    to,
		Paths: convert.Describe(h.mgr.Registry().Paths(from, to)),
	}
	if c := h.mgr.Converter(from, to); c != nil {
		resp.Converter = convert.Name(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

// View handles GET /view/*: the document rendered as HTML, or as the
// content type named by the "to" query parameter.
//
//	@Summary		Render a vault document
//	@Tags			content
//	@Param			path	path	string	true	"Document path"
//	@Param			to		query	string	false	"Target content type"
//	@Success		200		{file}	binary
//	@Failure		404		{object}	errResponse
//	@Failure		415		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/view/{path} [get]
func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	p := vaultPath(r)
	doc := h.vault.Document(p)
	if p == "" || !doc.Exists() {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	to := typeParam(r, "to")
	if to == "" {
		to = contenttype.HTML
	}
	out, err := h.mgr.Convert(r.Context(), doc, to, h.props)
	if err != nil {
		writeError(w, h.logger, "view", err)
		return
	}
	writeBytes(w, to, out)
}

// Download handles GET /download/*: raw vault files, attachments, and
// entries of ODT packages.
//
//	@Summary		Download a vault file or attachment
//	@Tags			content
//	@Param			path	path	string	true	"File path"
//	@Success		200		{file}	binary
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/download/{path} [get]
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	p := vaultPath(r)
	if p == "" {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	res, err := render.OpenResource(h.mgr, h.vault.Document("/"), p)
	if err != nil {
		writeError(w, h.logger, "download", err)
		return
	}
	ct := res.ContentType
	if ct == "" {
		ct = contenttype.OctetStream
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", res.Name()))
	writeBytes(w, ct, res.Data)
}

// UploadAttachment handles POST /api/attachments (multipart/form-data,
// field "file"). The "document" form field names the document the
// attachment belongs to; the vault root is used when it is empty.
//
//	@Summary		Store an attachment next to a document
//	@Tags			attachments
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file		formData	file	true	"Attachment"
//	@Param			document	formData	string	false	"Owning document path"
//	@Success		201			{object}	AttachmentUploadResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/attachments [post]
func (h *Handler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	owner := h.vault.Document("/" + strings.TrimPrefix(r.FormValue("document"), "/"))
	ds := h.mgr.Datastore(owner)
	if ds == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody("attachments are not supported"))
		return
	}

	ct := contenttype.ForName(header.Filename)
	if ct == "" {
		ct = header.Header.Get("Content-Type")
	}
	uri, err := ds.Store(file, header.Filename, ct)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	res, err := ds.Properties(uri)
	if err != nil {
		writeError(w, h.logger, "attachment properties", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// CacheStats handles GET /api/cache/stats.
//
//	@Summary		Conversion cache statistics
//	@Tags			cache
//	@Produce		json
//	@Success		200	{object}	cache.Stats
//	@Security		BearerAuth
//	@Router			/cache/stats [get]
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeJSON(w, http.StatusOK, cache.Stats{})
		return
	}
	stats, err := h.cache.Stats(r.Context())
	if err != nil {
		writeError(w, h.logger, "cache stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// PurgeCache handles DELETE /api/cache.
//
//	@Summary		Drop every cached rendering
//	@Tags			cache
//	@Success		204	"Cache purged"
//	@Security		BearerAuth
//	@Router			/cache [delete]
func (h *Handler) PurgeCache(w http.ResponseWriter, r *http.Request) {
	if h.cache != nil {
		if err := h.cache.Purge(r.Context()); err != nil {
			writeError(w, h.logger, "cache purge", err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// Invalidate handles POST /api/cache/invalidate/*.
//
//	@Summary		Drop the renderings of a document and its includers
//	@Tags			cache
//	@Produce		json
//	@Param			path	path	string	true	"Document path"
//	@Success		200		{object}	map[string][]string
//	@Security		BearerAuth
//	@Router			/cache/invalidate/{path} [post]
func (h *Handler) Invalidate(w http.ResponseWriter, r *http.Request) {
	p := vaultPath(r)
	if p == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	affected := []string{}
	if h.cache != nil {
		var err error
		if affected, err = h.cache.Invalidate(r.Context(), p); err != nil {
			writeError(w, h.logger, "cache invalidate", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"invalidated": affected})
}

func writeBytes(w http.ResponseWriter, ct string, data []byte) {
	w.Header().Set("Content-Type", mediaType(ct))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
