package pipeline

import (
	"errors"
	"fmt"

	"github.com/pageturn/ingest/internal/store"
)

var (
	// ErrNotFound is returned for operations on an unknown document id,
	// before any state mutation.
	ErrNotFound = store.ErrNotFound

	// ErrPermissionDenied means the storage gate refused access; no run
	// starts and the document collection is untouched.
	ErrPermissionDenied = errors.New("storage permission denied")

	// ErrAlreadyRunning is returned when Process is called for a document
	// that already has an active run. Concurrent runs per document are
	// rejected, not coalesced.
	ErrAlreadyRunning = errors.New("document is already being processed")
)

// ExtractionError wraps a failure of the page-extraction capability. The
// document is left in a well-formed failed state with the message attached.
type ExtractionError struct {
	DocumentID string
	Err        error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s: %v", e.DocumentID, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
