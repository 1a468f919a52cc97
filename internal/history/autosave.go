package history

import (
	"sync"
	"time"

	"cardsmith/api/internal/card"
)

// Autosave coalesces rapid-fire edits behind a trailing-edge debounce: a
// burst of Note calls produces one persist per pause in activity, and the
// last state of a burst is always the one persisted. Close flushes rather
// than drops a pending state, so teardown never loses the final edit.
type Autosave struct {
	mu      sync.Mutex
	window  time.Duration
	persist func(*card.Document)
	timer   *time.Timer
	pending *card.Document
	closed  bool
}

// NewAutosave returns an autosave with the given debounce window. persist
// runs on the timer goroutine with the coalesced document.
func NewAutosave(window time.Duration, persist func(*card.Document)) *Autosave {
	if window <= 0 {
		window = 800 * time.Millisecond
	}
	return &Autosave{window: window, persist: persist}
}

// Note records doc as the latest state and restarts the debounce window.
// Later calls supersede earlier ones: last write wins.
func (a *Autosave) Note(doc *card.Document) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || doc == nil {
		return
	}
	a.pending = doc.Clone()
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.window, a.fire)
}

func (a *Autosave) fire() {
	a.mu.Lock()
	doc := a.pending
	a.pending = nil
	a.mu.Unlock()
	if doc != nil {
		a.persist(doc)
	}
}

// Flush persists any pending state immediately.
func (a *Autosave) Flush() {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
	}
	doc := a.pending
	a.pending = nil
	a.mu.Unlock()
	if doc != nil {
		a.persist(doc)
	}
}

// Close flushes the pending state and rejects further notes.
func (a *Autosave) Close() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	a.Flush()
}
