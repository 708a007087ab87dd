// Package models defines the transport types shared by the API and MCP surfaces.
package models

import "time"

// DocumentInfo is lightweight metadata about a vault document.
type DocumentInfo struct {
	Path        string    `json:"path"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Checksum    string    `json:"checksum"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ConverterInfo describes one direct converter edge.
type ConverterInfo struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Lossless bool   `json:"lossless"`
	Name     string `json:"name"`
}

// PathInfo describes a candidate conversion path and its score.
type PathInfo struct {
	Stages []string `json:"stages"`
	Score  float64  `json:"score"`
}
