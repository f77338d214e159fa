// Package extractor converts source files into plain text. PDF sources
// expose their content page by page so the pipeline can checkpoint between
// pages; every other format extracts in a single shot.
package extractor

import (
	"context"
	"fmt"

	"github.com/pageturn/ingest/internal/document"
)

// Source is an open handle on a document's extractable content.
type Source interface {
	Close() error
}

// Paginated is a source whose text is produced one page at a time.
// Page is 1-based; an absent or unreadable page contributes no content
// and is reported with ok=false rather than an error.
type Paginated interface {
	Source
	TotalPages() int
	Page(n int) (text string, ok bool)
}

// Whole is a source extracted in one operation.
type Whole interface {
	Source
	Text(ctx context.Context) (string, error)
}

// Open returns the extraction source for a document type and file path.
func Open(t document.Type, path string) (Source, error) {
	switch t {
	case document.TypePDF:
		return openPDF(path)
	case document.TypeDOCX:
		return &docxSource{path: path}, nil
	case document.TypeImage:
		return &imageSource{path: path}, nil
	case document.TypeMarkdown:
		return &markdownSource{path: path}, nil
	case document.TypeHTML:
		return &htmlSource{path: path}, nil
	case document.TypeText:
		return &textSource{path: path}, nil
	default:
		return nil, fmt.Errorf("no extractor for document type %q", t)
	}
}
