package history

import (
	"fmt"
	"testing"

	"cardsmith/api/internal/card"
)

func docWithName(name string) *card.Document {
	doc := card.DefaultDocument()
	doc.Fields[card.FieldName] = name
	return doc
}

func TestPushDedup(t *testing.T) {
	log := NewLog(10)
	doc := docWithName("Ada")
	if !log.Push(doc) {
		t.Fatal("first push must add an entry")
	}
	if log.Push(doc.Clone()) {
		t.Error("pushing an equal document must be a no-op")
	}
	if log.Len() != 1 {
		t.Errorf("len = %d, want 1", log.Len())
	}
}

func TestDepthBoundEviction(t *testing.T) {
	const depth = 30
	log := NewLog(depth)
	for i := 0; i < depth+5; i++ {
		log.Push(docWithName(fmt.Sprintf("state-%d", i)))
	}
	if log.Len() != depth {
		t.Fatalf("len = %d, want %d", log.Len(), depth)
	}
	// Oldest five evicted: undo reaches exactly depth-1 times from the top.
	undos := 0
	for log.CanUndo() {
		log.Undo()
		undos++
	}
	if undos != depth-1 {
		t.Errorf("undo count = %d, want %d", undos, depth-1)
	}
	bottom := log.Current()
	if got := bottom.String(card.FieldName, ""); got != "state-5" {
		t.Errorf("oldest surviving state = %q, want state-5", got)
	}
}

func TestUndoRedoInverse(t *testing.T) {
	log := NewLog(10)
	for _, name := range []string{"one", "two", "three"} {
		log.Push(docWithName(name))
	}
	before := log.Current()

	undone, ok := log.Undo()
	if !ok || undone.String(card.FieldName, "") != "two" {
		t.Fatalf("undo gave %v", undone)
	}
	redone, ok := log.Redo()
	if !ok {
		t.Fatal("redo must succeed after undo")
	}
	if !card.Equal(before, redone) {
		t.Error("undo then redo must return the pre-undo document")
	}
	if _, ok := log.Redo(); ok {
		t.Error("redo beyond the top must be a no-op")
	}
}

func TestPushCollapsesRedoBranch(t *testing.T) {
	log := NewLog(10)
	for _, name := range []string{"one", "two", "three"} {
		log.Push(docWithName(name))
	}
	log.Undo()
	log.Undo()
	log.Push(docWithName("fork"))
	if log.CanRedo() {
		t.Error("new push must discard the redo branch")
	}
	if log.Len() != 2 {
		t.Errorf("len = %d, want 2 (one + fork)", log.Len())
	}
}

func TestStoredEntriesAreIsolated(t *testing.T) {
	log := NewLog(10)
	doc := docWithName("Ada")
	log.Push(doc)
	doc.Fields[card.FieldName] = "mutated after push"
	if got := log.Current().String(card.FieldName, ""); got != "Ada" {
		t.Errorf("history entry mutated through caller reference: %q", got)
	}
	current := log.Current()
	current.Fields[card.FieldName] = "mutated via accessor"
	if got := log.Current().String(card.FieldName, ""); got != "Ada" {
		t.Errorf("history entry mutated through Current copy: %q", got)
	}
}

func TestEmptyLog(t *testing.T) {
	log := NewLog(0)
	if log.CanUndo() || log.CanRedo() {
		t.Error("empty log must allow neither undo nor redo")
	}
	if log.Current() != nil {
		t.Error("empty log has no current document")
	}
	if _, ok := log.Undo(); ok {
		t.Error("undo on empty log must fail")
	}
}
