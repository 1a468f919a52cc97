// Package history keeps the linear, depth-bounded undo/redo log of card
// documents and the debounced autosave that feeds persistence.
package history

import "cardsmith/api/internal/card"

// DefaultDepth bounds the undo log when no explicit depth is configured.
const DefaultDepth = 30

// Log is an append-only undo/redo log. The cursor moves strictly left and
// right inside the stored range; any push collapses the redo branch, so the
// history stays a single linear narrative.
type Log struct {
	entries  []*card.Document
	cursor   int
	maxDepth int
}

// NewLog returns an empty log bounded to maxDepth entries.
func NewLog(maxDepth int) *Log {
	if maxDepth <= 0 {
		maxDepth = DefaultDepth
	}
	return &Log{cursor: -1, maxDepth: maxDepth}
}

// Push appends a deep copy of doc. A document equal to the entry at the
// cursor is a no-op, suppressing redundant snapshots from no-op edits.
// Entries after the cursor are discarded, and the oldest entry is evicted
// once the depth bound is exceeded. Returns whether an entry was added.
func (l *Log) Push(doc *card.Document) bool {
	if doc == nil {
		return false
	}
	if l.cursor >= 0 && card.Equal(l.entries[l.cursor], doc) {
		return false
	}
	l.entries = l.entries[:l.cursor+1]
	l.entries = append(l.entries, doc.Clone())
	if len(l.entries) > l.maxDepth {
		overflow := len(l.entries) - l.maxDepth
		l.entries = append([]*card.Document{}, l.entries[overflow:]...)
	}
	l.cursor = len(l.entries) - 1
	return true
}

// Undo steps the cursor back and returns a copy of that document. The
// second return is false when there is nothing to undo.
func (l *Log) Undo() (*card.Document, bool) {
	if !l.CanUndo() {
		return nil, false
	}
	l.cursor--
	return l.entries[l.cursor].Clone(), true
}

// Redo steps the cursor forward; a no-op beyond the top.
func (l *Log) Redo() (*card.Document, bool) {
	if !l.CanRedo() {
		return nil, false
	}
	l.cursor++
	return l.entries[l.cursor].Clone(), true
}

// CanUndo reports whether an older state exists.
func (l *Log) CanUndo() bool { return l.cursor > 0 }

// CanRedo reports whether a newer state exists.
func (l *Log) CanRedo() bool { return l.cursor < len(l.entries)-1 }

// Len returns the number of stored states.
func (l *Log) Len() int { return len(l.entries) }

// Current returns a copy of the state at the cursor, or nil for an empty
// log.
func (l *Log) Current() *card.Document {
	if l.cursor < 0 {
		return nil
	}
	return l.entries[l.cursor].Clone()
}
