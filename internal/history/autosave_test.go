package history

import (
	"sync"
	"testing"
	"time"

	"cardsmith/api/internal/card"
)

type persistRecorder struct {
	mu   sync.Mutex
	docs []*card.Document
}

func (r *persistRecorder) record(doc *card.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, doc)
}

func (r *persistRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.docs)
}

func (r *persistRecorder) last() *card.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.docs) == 0 {
		return nil
	}
	return r.docs[len(r.docs)-1]
}

func TestBurstCoalescesToLastState(t *testing.T) {
	rec := &persistRecorder{}
	saver := NewAutosave(30*time.Millisecond, rec.record)
	defer saver.Close()

	for i := 0; i < 10; i++ {
		saver.Note(docWithName("draft"))
		saver.Note(docWithName("final"))
	}
	time.Sleep(200 * time.Millisecond)

	if got := rec.count(); got != 1 {
		t.Fatalf("persist calls = %d, want 1", got)
	}
	if name := rec.last().String(card.FieldName, ""); name != "final" {
		t.Errorf("persisted state = %q, want the last of the burst", name)
	}
}

func TestCloseFlushesPending(t *testing.T) {
	rec := &persistRecorder{}
	saver := NewAutosave(time.Hour, rec.record)
	saver.Note(docWithName("unsaved"))
	saver.Close()

	if got := rec.count(); got != 1 {
		t.Fatalf("persist calls = %d, want flush on close", got)
	}
	if name := rec.last().String(card.FieldName, ""); name != "unsaved" {
		t.Errorf("flushed state = %q", name)
	}

	// Notes after close are rejected.
	saver.Note(docWithName("late"))
	saver.Flush()
	if got := rec.count(); got != 1 {
		t.Errorf("note after close must be dropped, persist calls = %d", got)
	}
}

func TestFlushWithNothingPendingIsNoop(t *testing.T) {
	rec := &persistRecorder{}
	saver := NewAutosave(10*time.Millisecond, rec.record)
	defer saver.Close()
	saver.Flush()
	if rec.count() != 0 {
		t.Error("flush without pending state must not persist")
	}
}
