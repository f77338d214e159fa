// Package progress carries pipeline status updates to a presentation
// layer. It is a narrow integration point, not a general event bus: one
// listener per document id, delivered synchronously, nothing buffered.
package progress

import (
	"sync"

	"github.com/pageturn/ingest/internal/document"
)

// Listener receives progress updates for a single document.
type Listener func(document.Update)

// Broadcaster maps each document id to at most one listener. Subscribing
// again for the same id replaces the previous listener; missed events are
// not replayed. Unsubscribing is the caller's responsibility so dismissed
// views do not leak references.
type Broadcaster struct {
	mu        sync.Mutex
	listeners map[string]*subscription
}

// subscription gives each registration its own identity, so a stale
// unsubscribe cannot remove a listener that replaced it.
type subscription struct {
	fn Listener
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{listeners: make(map[string]*subscription)}
}

// Subscribe registers the listener for a document id and returns an
// unsubscribe function. Unsubscribing is a no-op once the listener has
// been replaced by a newer subscription.
func (b *Broadcaster) Subscribe(docID string, fn Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &subscription{fn: fn}
	b.listeners[docID] = sub
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.listeners[docID] == sub {
			delete(b.listeners, docID)
		}
	}
}

// Publish delivers the update in-line to the current listener, if any.
func (b *Broadcaster) Publish(update document.Update) {
	b.mu.Lock()
	sub := b.listeners[update.DocumentID]
	b.mu.Unlock()
	if sub != nil {
		sub.fn(update)
	}
}
