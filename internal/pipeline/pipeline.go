// Package pipeline orchestrates document processing: permission check,
// file acquisition, per-type extraction, chunking, persistence, and
// progress reporting, with cooperative pause/resume between pages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pageturn/ingest/internal/chunker"
	"github.com/pageturn/ingest/internal/document"
	"github.com/pageturn/ingest/internal/extractor"
	"github.com/pageturn/ingest/internal/progress"
	"github.com/pageturn/ingest/internal/store"
	"github.com/pageturn/ingest/internal/task"
)

// errCancelled marks a run stopped by its cancellation handle. It never
// escapes Process: cancellation surfaces as the paused state, not an error.
var errCancelled = errors.New("extraction cancelled")

// run is the cancellation handle for one active pipeline run.
type run struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Opener resolves the extraction source for a document type and path.
type Opener func(document.Type, string) (extractor.Source, error)

// Pipeline drives documents from pending to a terminal status. All
// collaborators are injected so the pipeline stays testable in isolation.
type Pipeline struct {
	store    *store.DocumentStore
	registry *task.Registry
	events   *progress.Broadcaster
	gate     Gate
	open     Opener
	chunkCfg chunker.Config
	log      *slog.Logger

	mu   sync.Mutex
	runs map[string]*run // at most one handle per document id
}

func New(st *store.DocumentStore, registry *task.Registry, events *progress.Broadcaster, gate Gate, chunkCfg chunker.Config, log *slog.Logger) *Pipeline {
	return &Pipeline{
		store:    st,
		registry: registry,
		events:   events,
		gate:     gate,
		open:     extractor.Open,
		chunkCfg: chunkCfg,
		log:      log,
		runs:     make(map[string]*run),
	}
}

// Add registers an already-stored file as a pending document.
func (p *Pipeline) Add(ctx context.Context, name, filePath string, size int64) (*document.Document, error) {
	typ, err := document.TypeForExt(strings.ToLower(filepath.Ext(name)))
	if err != nil {
		return nil, err
	}
	now := time.Now()
	doc := document.Document{
		ID:           NewID(),
		Name:         name,
		Type:         typ,
		FilePath:     filePath,
		SizeBytes:    size,
		Status:       document.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastAccessAt: now,
	}
	if err := p.store.Put(ctx, doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Process runs the document through extraction, chunking, and persistence.
// It blocks until the run reaches a terminal status. A completed document
// is a no-op unless resume is set; a second concurrent call for the same
// id returns ErrAlreadyRunning.
func (p *Pipeline) Process(ctx context.Context, id string, resume bool) error {
	ok, err := p.gate.EnsureStoragePermission(ctx)
	if err != nil {
		return fmt.Errorf("permission check: %w", err)
	}
	if !ok {
		return ErrPermissionDenied
	}

	doc, err := p.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if doc.Status == document.StatusCompleted && !resume {
		// Cache hit: already processed, nothing to do, no events fire.
		return nil
	}

	p.mu.Lock()
	if _, active := p.runs[id]; active {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	r := &run{cancel: cancel, done: make(chan struct{})}
	p.runs[id] = r
	p.mu.Unlock()

	defer func() {
		cancel()
		p.mu.Lock()
		delete(p.runs, id)
		p.mu.Unlock()
		close(r.done)
	}()

	log := p.log.With("document_id", id, "type", doc.Type)
	p.registry.Register(id, doc.Name, &runController{p: p, id: id})

	// File acquisition: the backing file must exist before any transition.
	if _, statErr := os.Stat(doc.FilePath); statErr != nil {
		return p.fail(ctx, id, log, fmt.Errorf("acquire file: %w", statErr))
	}

	// The processing transition is observable before extraction starts.
	if _, err := p.store.Update(ctx, id, func(d *document.Document) {
		d.Status = document.StatusProcessing
		d.Error = ""
	}); err != nil {
		return err
	}
	p.events.Publish(document.Update{DocumentID: id, Status: document.StatusProcessing, Progress: 0})
	p.registry.UpdateProgress(id, 0)
	log.Info("processing started", "resume", resume)

	text, pageCount, err := p.extract(runCtx, ctx, id, doc)
	if errors.Is(err, errCancelled) {
		return p.pause(ctx, id, log)
	}
	if err != nil {
		return p.fail(ctx, id, log, err)
	}
	if pageCount < 1 {
		// A source reporting zero pages still completes as one page.
		pageCount = 1
	}

	chunks := chunker.Split(id, text, pageCount, p.chunkCfg)
	if err := p.store.SaveChunks(ctx, id, chunks); err != nil {
		return p.fail(ctx, id, log, fmt.Errorf("persist chunks: %w", err))
	}
	if _, err := p.store.Update(ctx, id, func(d *document.Document) {
		d.Text = text
		d.PageCount = pageCount
		d.Status = document.StatusCompleted
	}); err != nil {
		return err
	}
	p.events.Publish(document.Update{DocumentID: id, Status: document.StatusCompleted, Progress: 100})
	p.registry.UpdateProgress(id, 100)
	p.registry.Remove(id)
	log.Info("processing completed", "pages", pageCount, "chunks", len(chunks))
	return nil
}

// extract dispatches by document type. Paginated sources poll the
// cancellation handle after every page, so a pause takes effect within one
// page's worth of work; whole-document sources check once up front.
func (p *Pipeline) extract(runCtx, ctx context.Context, id string, doc *document.Document) (string, int, error) {
	src, err := p.open(doc.Type, doc.FilePath)
	if err != nil {
		return "", 0, err
	}
	defer src.Close()

	switch s := src.(type) {
	case extractor.Paginated:
		total := s.TotalPages()
		var buf strings.Builder
		for page := 1; page <= total; page++ {
			if text, ok := s.Page(page); ok {
				if buf.Len() > 0 {
					buf.WriteByte('\n')
				}
				buf.WriteString(text)
			}
			select {
			case <-runCtx.Done():
				// Partial text is discarded, not partially chunked.
				return "", 0, errCancelled
			default:
			}
			p.checkpoint(ctx, id, page, total)
		}
		return buf.String(), total, nil

	case extractor.Whole:
		select {
		case <-runCtx.Done():
			return "", 0, errCancelled
		default:
		}
		text, err := s.Text(runCtx)
		if err != nil {
			if runCtx.Err() != nil {
				return "", 0, errCancelled
			}
			return "", 0, err
		}
		return text, 1, nil

	default:
		return "", 0, fmt.Errorf("source for type %q supports no extraction mode", doc.Type)
	}
}

// checkpoint applies the three per-page effects with one progress value:
// persist the document stamp, broadcast the page counters, update the task.
func (p *Pipeline) checkpoint(ctx context.Context, id string, page, total int) {
	pct := page * 100 / total
	if pct > 99 {
		// 100 is reserved for the completion update after chunks persist.
		pct = 99
	}
	if _, err := p.store.Update(ctx, id, func(*document.Document) {}); err != nil {
		p.log.Warn("checkpoint persist failed", "document_id", id, "page", page, "error", err)
	}
	p.events.Publish(document.Update{
		DocumentID:  id,
		Status:      document.StatusProcessing,
		Progress:    pct,
		CurrentPage: page,
		TotalPages:  total,
	})
	p.registry.UpdateProgress(id, pct)
}

// pause records the paused state after a cancelled run. The background
// task stays registered so a lifecycle foreground can resume it; only the
// cancellation handle is released (by Process's deferred cleanup). Resume
// restarts extraction from page 1; nothing is checkpointed across a pause.
func (p *Pipeline) pause(ctx context.Context, id string, log *slog.Logger) error {
	if _, err := p.store.Update(ctx, id, func(d *document.Document) {
		d.Status = document.StatusPaused
	}); err != nil {
		return err
	}
	p.events.Publish(document.Update{DocumentID: id, Status: document.StatusPaused, Progress: 0})
	p.registry.UpdateProgress(id, 0)
	p.registry.UpdateStatus(id, task.StatusPaused)
	log.Info("processing paused")
	return nil
}

// fail records the failure on the document and returns it to the caller.
func (p *Pipeline) fail(ctx context.Context, id string, log *slog.Logger, cause error) error {
	if _, err := p.store.Update(ctx, id, func(d *document.Document) {
		d.Status = document.StatusFailed
		d.Error = cause.Error()
	}); err != nil {
		log.Error("record failure", "error", err)
	}
	p.events.Publish(document.Update{
		DocumentID: id,
		Status:     document.StatusFailed,
		Progress:   0,
		Error:      cause.Error(),
	})
	p.registry.UpdateStatus(id, task.StatusFailed)
	p.registry.Remove(id)
	log.Error("processing failed", "error", cause)
	return &ExtractionError{DocumentID: id, Err: cause}
}

// Pause signals the active cancellation handle for a document and waits
// for the run to stop. No-op when no run is active.
func (p *Pipeline) Pause(ctx context.Context, id string) {
	p.mu.Lock()
	r, ok := p.runs[id]
	p.mu.Unlock()
	if !ok {
		return
	}
	r.cancel()
	select {
	case <-r.done:
	case <-ctx.Done():
	}
}

// Get returns a document and stamps its last access time.
func (p *Pipeline) Get(ctx context.Context, id string) (*document.Document, error) {
	doc, err := p.store.Update(ctx, id, func(d *document.Document) {
		d.LastAccessAt = time.Now()
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// List returns all documents.
func (p *Pipeline) List(ctx context.Context) ([]document.Document, error) {
	return p.store.List(ctx)
}

// Chunks returns the stored chunk collection for a document.
func (p *Pipeline) Chunks(ctx context.Context, id string) ([]document.Chunk, error) {
	return p.store.Chunks(ctx, id)
}

// Delete stops any active run, removes the document and its chunk
// collection, and removes the backing file best-effort: a missing or
// undeletable file is logged and swallowed so the logical delete always
// wins.
func (p *Pipeline) Delete(ctx context.Context, id string) error {
	p.Pause(ctx, id)

	doc, err := p.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := p.store.Delete(ctx, id); err != nil {
		return err
	}
	if doc.FilePath != "" {
		if err := os.Remove(doc.FilePath); err != nil {
			p.log.Warn("remove backing file", "document_id", id, "path", doc.FilePath, "error", err)
		}
	}
	p.registry.Remove(id)
	return nil
}

// SubscribeProgress registers the single progress listener for a document
// and returns an unsubscribe function.
func (p *Pipeline) SubscribeProgress(id string, fn progress.Listener) func() {
	return p.events.Subscribe(id, fn)
}

// runController adapts one pipeline run to the task registry's
// pause/resume capability.
type runController struct {
	p  *Pipeline
	id string
}

func (c *runController) Pause(ctx context.Context) error {
	c.p.Pause(ctx, c.id)
	return nil
}

// Resume restarts processing in the background; the run re-extracts from
// page 1 rather than resuming a checkpoint.
func (c *runController) Resume(context.Context) error {
	go func() {
		err := c.p.Process(context.Background(), c.id, true)
		if err != nil && !errors.Is(err, ErrAlreadyRunning) {
			c.p.log.Error("resume failed", "document_id", c.id, "error", err)
		}
	}()
	return nil
}
