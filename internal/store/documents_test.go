package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pageturn/ingest/internal/document"
)

func newTestStore() *DocumentStore {
	return NewDocumentStore(NewMemoryKV())
}

func testDoc(id string) document.Document {
	now := time.Now()
	return document.Document{
		ID:        id,
		Name:      id + ".pdf",
		Type:      document.TypePDF,
		Status:    document.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestDocumentStore_PutGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	if err := s.Put(ctx, testDoc("a")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.Get(ctx, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "a.pdf" {
		t.Errorf("expected name a.pdf, got %q", got.Name)
	}
}

func TestDocumentStore_GetMissing(t *testing.T) {
	s := newTestStore()
	_, err := s.Get(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDocumentStore_PutReplacesSameID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	s.Put(ctx, testDoc("a"))
	updated := testDoc("a")
	updated.Status = document.StatusCompleted
	s.Put(ctx, updated)

	docs, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	if docs[0].Status != document.StatusCompleted {
		t.Errorf("expected replaced status, got %q", docs[0].Status)
	}
}

func TestDocumentStore_UpdateStampsUpdatedAt(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	doc := testDoc("a")
	doc.UpdatedAt = time.Now().Add(-time.Hour)
	s.Put(ctx, doc)

	got, err := s.Update(ctx, "a", func(d *document.Document) {
		d.Status = document.StatusProcessing
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Status != document.StatusProcessing {
		t.Errorf("expected processing, got %q", got.Status)
	}
	if !got.UpdatedAt.After(doc.UpdatedAt) {
		t.Error("expected UpdatedAt to advance")
	}
}

func TestDocumentStore_UpdateMissing(t *testing.T) {
	s := newTestStore()
	_, err := s.Update(context.Background(), "nope", func(*document.Document) {})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDocumentStore_DeleteRemovesChunks(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	s.Put(ctx, testDoc("a"))
	s.SaveChunks(ctx, "a", []document.Chunk{{DocumentID: "a", Index: 0, Text: "hello"}})

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected document gone, got %v", err)
	}
	chunks, err := s.Chunks(ctx, "a")
	if err != nil {
		t.Fatalf("chunks: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected chunk collection removed, got %d chunks", len(chunks))
	}
}

func TestDocumentStore_ChunksMissingIsEmpty(t *testing.T) {
	s := newTestStore()
	chunks, err := s.Chunks(context.Background(), "nope")
	if err != nil {
		t.Fatalf("chunks: %v", err)
	}
	if chunks != nil {
		t.Errorf("expected nil chunks, got %v", chunks)
	}
}

func TestDocumentStore_ConcurrentUpdatesNoLostWrites(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	for _, id := range []string{"a", "b"} {
		s.Put(ctx, testDoc(id))
	}

	var wg sync.WaitGroup
	for range 50 {
		for _, id := range []string{"a", "b"} {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				s.Update(ctx, id, func(d *document.Document) {
					d.PageCount++
				})
			}(id)
		}
	}
	wg.Wait()

	for _, id := range []string{"a", "b"} {
		got, err := s.Get(ctx, id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if got.PageCount != 50 {
			t.Errorf("document %s: expected 50 increments, got %d", id, got.PageCount)
		}
	}
}
