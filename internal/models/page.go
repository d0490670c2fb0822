// Package models defines the domain types for tracmark.
package models

import "time"

// Page is the highest revision of one Trac wiki page.
type Page struct {
	Name       string    `json:"name"`
	Version    int       `json:"version"`
	Text       string    `json:"-"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Attachment is a file attached to a wiki page.
type Attachment struct {
	Owner    string `json:"owner"`
	Filename string `json:"filename"`
	Path     string `json:"-"` // readable source location
	Size     int64  `json:"size"`
}

// Diagnostic kinds.
const (
	KindAttachmentMissing = "attachment.missing"
	KindTitleIndexFailed  = "titleindex.failed"
	KindDanglingLink      = "link.dangling"
)

// Diagnostic is a non-fatal finding produced while converting a page.
type Diagnostic struct {
	Document string `json:"document"`
	Kind     string `json:"kind"`
	Subject  string `json:"subject"`
	Message  string `json:"message"`
}
