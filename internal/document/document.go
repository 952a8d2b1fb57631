// Package document turns supporting files into uniform text records.
package document

import (
	"path/filepath"
	"strings"
	"time"
)

// Type identifies the source kind of a Document
type Type string

const (
	TypeWord  Type = "word"
	TypePDF   Type = "pdf"
	TypeText  Type = "text"
	TypeError Type = "error"
)

// IDTimeLayout is the timestamp suffix of document identifiers
const IDTimeLayout = "20060102150405"

// Document is an immutable extracted source. Error-typed documents stand in
// for files that failed to load and carry the failure message as Content.
type Document struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"createdAt"`
	Content   string    `json:"content"`
}

// IsError reports whether the document is a failure placeholder
func (d Document) IsError() bool {
	return d.Type == TypeError
}

// NewID derives a document identifier from its path and ingestion time
func NewID(path string, at time.Time) string {
	return path + "__" + at.Format(IDTimeLayout)
}

// TypeForPath maps a file extension to a document type
func TypeForPath(path string) (Type, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return TypePDF, true
	case ".docx":
		return TypeWord, true
	case ".txt", ".text", ".md":
		return TypeText, true
	default:
		return "", false
	}
}

// SupportedExtensions lists the extensions the normalizer accepts
func SupportedExtensions() []string {
	return []string{".pdf", ".docx", ".txt", ".text", ".md"}
}
