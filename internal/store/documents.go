package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pageturn/ingest/internal/document"
)

// ErrNotFound is returned for operations on an unknown document id.
var ErrNotFound = errors.New("document not found")

const (
	documentsKey   = "documents"
	chunkKeyPrefix = "chunks/"
)

// DocumentStore keeps the document list under a fixed key and each
// document's chunks under a key derived from its id. The whole list is
// read, mutated, and written back on every change, so a store-level mutex
// serializes writers to prevent lost updates between concurrent runs.
type DocumentStore struct {
	mu sync.Mutex
	kv KV
}

func NewDocumentStore(kv KV) *DocumentStore {
	return &DocumentStore{kv: kv}
}

// List returns all documents, ordered as stored.
func (s *DocumentStore) List(ctx context.Context) ([]document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAll(ctx)
}

// Get returns a single document by id.
func (s *DocumentStore) Get(ctx context.Context, id string) (*document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, err := s.readAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		if docs[i].ID == id {
			d := docs[i]
			return &d, nil
		}
	}
	return nil, fmt.Errorf("get %s: %w", id, ErrNotFound)
}

// Put inserts the document, or replaces an existing one with the same id.
func (s *DocumentStore) Put(ctx context.Context, doc document.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, err := s.readAll(ctx)
	if err != nil {
		return err
	}
	replaced := false
	for i := range docs {
		if docs[i].ID == doc.ID {
			docs[i] = doc
			replaced = true
			break
		}
	}
	if !replaced {
		docs = append(docs, doc)
	}
	return s.writeAll(ctx, docs)
}

// Update applies fn to the stored document under the store lock and
// stamps UpdatedAt. Returns the mutated copy.
func (s *DocumentStore) Update(ctx context.Context, id string, fn func(*document.Document)) (*document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, err := s.readAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		if docs[i].ID == id {
			fn(&docs[i])
			docs[i].UpdatedAt = time.Now()
			if err := s.writeAll(ctx, docs); err != nil {
				return nil, err
			}
			d := docs[i]
			return &d, nil
		}
	}
	return nil, fmt.Errorf("update %s: %w", id, ErrNotFound)
}

// Delete removes the document and its chunk collection.
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, err := s.readAll(ctx)
	if err != nil {
		return err
	}
	kept := docs[:0]
	found := false
	for _, d := range docs {
		if d.ID == id {
			found = true
			continue
		}
		kept = append(kept, d)
	}
	if !found {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	if err := s.writeAll(ctx, kept); err != nil {
		return err
	}
	return s.kv.Delete(ctx, chunkKeyPrefix+id)
}

// SaveChunks writes the chunk collection for a document in one batch.
func (s *DocumentStore) SaveChunks(ctx context.Context, id string, chunks []document.Chunk) error {
	data, err := json.Marshal(chunks)
	if err != nil {
		return fmt.Errorf("marshal chunks for %s: %w", id, err)
	}
	return s.kv.Set(ctx, chunkKeyPrefix+id, data)
}

// Chunks returns the stored chunk collection for a document. A missing
// collection is an empty one.
func (s *DocumentStore) Chunks(ctx context.Context, id string) ([]document.Chunk, error) {
	data, ok, err := s.kv.Get(ctx, chunkKeyPrefix+id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var chunks []document.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("unmarshal chunks for %s: %w", id, err)
	}
	return chunks, nil
}

func (s *DocumentStore) readAll(ctx context.Context) ([]document.Document, error) {
	data, ok, err := s.kv.Get(ctx, documentsKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var docs []document.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("unmarshal documents: %w", err)
	}
	return docs, nil
}

func (s *DocumentStore) writeAll(ctx context.Context, docs []document.Document) error {
	data, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("marshal documents: %w", err)
	}
	return s.kv.Set(ctx, documentsKey, data)
}
