package api

import (
	"github.com/starford/vellum/internal/datastore"
	"github.com/starford/vellum/internal/models"
)

// ConvertRequest is the request body of POST /api/convert. Either Path names
// a vault document, or Content carries the source inline; Path then only
// anchors relative references and picks the content type when ContentType
// is empty.
type ConvertRequest struct {
	Path        string            `json:"path" example:"docs/page.wiki"`
	Content     string            `json:"content,omitempty" example:"h1. Title"`
	ContentType string            `json:"content_type,omitempty" example:"text/x-wiki"`
	To          string            `json:"to" example:"text/html" validate:"required"`
	Properties  map[string]string `json:"properties,omitempty"`
}

// ConvertersResponse lists the direct converter edges.
type ConvertersResponse struct {
	Converters []models.ConverterInfo `json:"converters" validate:"required"`
}

// PathsResponse describes how one content type converts to another.
type PathsResponse struct {
	From      string            `json:"from" example:"text/x-wiki" validate:"required"`
	To        string            `json:"to" example:"text/html" validate:"required"`
	Converter string            `json:"converter,omitempty" example:"Chain[WikiToExchange -> ExchangeToHTML]"`
	Paths     []models.PathInfo `json:"paths" validate:"required"`
}

// AttachmentUploadResponse is returned after a successful attachment upload.
type AttachmentUploadResponse = datastore.Resource
