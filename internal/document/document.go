// Package document defines the core data model shared by the store,
// chunker, and pipeline packages.
package document

import (
	"fmt"
	"time"
)

// Type identifies the source file format of a document.
type Type string

const (
	TypePDF      Type = "pdf"
	TypeDOCX     Type = "docx"
	TypeImage    Type = "image"
	TypeMarkdown Type = "markdown"
	TypeHTML     Type = "html"
	TypeText     Type = "text"
)

// Status is the lifecycle state of a document. Transitions are monotonic
// except for the paused -> processing resume edge.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusPaused     Status = "paused"
)

// Terminal reports whether a status ends a pipeline run. Paused is
// terminal-for-now: the document stays eligible for resume.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusPaused
}

// Document is a user-supplied file tracked by the pipeline. Mutated
// exclusively by the pipeline; chunks are stored separately, keyed by ID.
type Document struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      Type   `json:"type"`
	FilePath  string `json:"file_path"`
	SizeBytes int64  `json:"size_bytes"`

	Status    Status `json:"status"`
	PageCount int    `json:"page_count,omitempty"` // known only after extraction
	Text      string `json:"text,omitempty"`       // populated on completion
	Error     string `json:"error,omitempty"`      // populated on failure

	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	LastAccessAt time.Time `json:"last_access_at"`
}

// Chunk is a bounded slice of a document's extracted text with page
// attribution. Chunks for a document are gapless, ordered by Index, and
// immutable once written.
type Chunk struct {
	DocumentID    string `json:"document_id"`
	Index         int    `json:"index"`
	Text          string `json:"text"`
	StartPage     int    `json:"start_page"` // inclusive, 1-based
	EndPage       int    `json:"end_page"`   // inclusive
	TokenEstimate int    `json:"token_estimate"`
}

// Update is a transient progress notification emitted by the pipeline at
// every status or page-count change. It is delivered, not persisted.
type Update struct {
	DocumentID  string `json:"document_id"`
	Status      Status `json:"status"`
	Progress    int    `json:"progress"` // 0-100
	CurrentPage int    `json:"current_page,omitempty"`
	TotalPages  int    `json:"total_pages,omitempty"`
	Error       string `json:"error,omitempty"`
}

// TypeForExt maps a lower-case file extension to a document type.
func TypeForExt(ext string) (Type, error) {
	switch ext {
	case ".pdf":
		return TypePDF, nil
	case ".docx":
		return TypeDOCX, nil
	case ".png", ".jpg", ".jpeg":
		return TypeImage, nil
	case ".md", ".markdown":
		return TypeMarkdown, nil
	case ".html", ".htm":
		return TypeHTML, nil
	case ".txt":
		return TypeText, nil
	default:
		return "", fmt.Errorf("unsupported file extension: %q", ext)
	}
}

// Paginated reports whether extraction for this type proceeds page by page.
// Only paginated sources can be interrupted between pages.
func (t Type) Paginated() bool {
	return t == TypePDF
}
