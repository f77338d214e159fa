package progress

import (
	"testing"

	"github.com/pageturn/ingest/internal/document"
)

func TestBroadcaster_DeliversToListener(t *testing.T) {
	b := NewBroadcaster()
	var got []document.Update
	b.Subscribe("doc-1", func(u document.Update) { got = append(got, u) })

	b.Publish(document.Update{DocumentID: "doc-1", Status: document.StatusProcessing, Progress: 10})
	b.Publish(document.Update{DocumentID: "doc-1", Status: document.StatusProcessing, Progress: 20})

	if len(got) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(got))
	}
	if got[0].Progress != 10 || got[1].Progress != 20 {
		t.Errorf("expected in-order delivery, got %v", got)
	}
}

func TestBroadcaster_NoListenerIsNoop(t *testing.T) {
	b := NewBroadcaster()
	// Must not panic or block.
	b.Publish(document.Update{DocumentID: "doc-1", Progress: 5})
}

func TestBroadcaster_ResubscribeReplaces(t *testing.T) {
	b := NewBroadcaster()
	var first, second int
	b.Subscribe("doc-1", func(document.Update) { first++ })
	b.Subscribe("doc-1", func(document.Update) { second++ })

	b.Publish(document.Update{DocumentID: "doc-1"})
	if first != 0 {
		t.Error("expected first listener replaced")
	}
	if second != 1 {
		t.Errorf("expected second listener to fire once, got %d", second)
	}
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	b := NewBroadcaster()
	var calls int
	unsub := b.Subscribe("doc-1", func(document.Update) { calls++ })
	unsub()
	b.Publish(document.Update{DocumentID: "doc-1"})
	if calls != 0 {
		t.Errorf("expected no delivery after unsubscribe, got %d", calls)
	}
}

func TestBroadcaster_StaleUnsubscribeKeepsReplacement(t *testing.T) {
	// A reconnecting client replaces its listener before the old
	// connection's deferred unsubscribe runs; the replacement must keep
	// receiving updates.
	b := NewBroadcaster()
	var first, second int
	staleUnsub := b.Subscribe("doc-1", func(document.Update) { first++ })
	b.Subscribe("doc-1", func(document.Update) { second++ })

	staleUnsub()
	b.Publish(document.Update{DocumentID: "doc-1"})
	if second != 1 {
		t.Errorf("expected replacement listener to survive stale unsubscribe, got %d deliveries", second)
	}
	if first != 0 {
		t.Errorf("expected replaced listener silent, got %d deliveries", first)
	}
}

func TestBroadcaster_IsolatesDocuments(t *testing.T) {
	b := NewBroadcaster()
	var a, c int
	b.Subscribe("doc-a", func(document.Update) { a++ })
	b.Subscribe("doc-c", func(document.Update) { c++ })

	b.Publish(document.Update{DocumentID: "doc-a"})
	if a != 1 || c != 0 {
		t.Errorf("expected delivery only to doc-a listener, got a=%d c=%d", a, c)
	}
}
