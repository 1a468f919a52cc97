// Package statesync keeps a live editing surface and the portable card
// document in lock step. The synchronizer is the single place where "UI
// truth" and "document truth" are reconciled, on both the read and the
// write side.
package statesync

import (
	"strconv"

	"cardsmith/api/internal/card"
)

// ControlKind tells the synchronizer how to coerce a control's raw value.
type ControlKind string

const (
	ControlText     ControlKind = "text"
	ControlNumber   ControlKind = "number"
	ControlCheckbox ControlKind = "checkbox"
)

// Control is one flat form control's raw state.
type Control struct {
	Kind ControlKind
	Raw  string
}

// PhoneControl is the control group backing one phone entry.
type PhoneControl struct {
	ID     string
	Value  string
	Face   card.Face
	Offset card.Offset
}

// SocialControl is the control group backing one social link entry.
type SocialControl struct {
	ID       string
	Platform string
	Value    string
	Face     card.Face
	Offset   card.Offset
	Style    *card.StyleOverride
}

// StaticControl is the control group backing one fixed contact channel.
type StaticControl struct {
	Value  string
	Face   card.Face
	Offset card.Offset
}

// FormSnapshot is the raw state of the whole editing surface: every flat
// control, the dynamic list sections in on-screen order, cached image
// references, and the drag state recorded on visual nodes.
type FormSnapshot struct {
	Controls   map[string]Control
	Phones     []PhoneControl
	Socials    []SocialControl
	Static     map[string]StaticControl
	Images     card.Images
	Positions  map[card.PlaceableKey]card.Offset
	Placements map[card.PlaceableKey]card.Face
}

// Clone returns a deep copy of the snapshot.
func (s FormSnapshot) Clone() FormSnapshot {
	out := FormSnapshot{
		Controls:   make(map[string]Control, len(s.Controls)),
		Phones:     make([]PhoneControl, len(s.Phones)),
		Socials:    make([]SocialControl, len(s.Socials)),
		Static:     make(map[string]StaticControl, len(s.Static)),
		Images:     s.Images,
		Positions:  make(map[card.PlaceableKey]card.Offset, len(s.Positions)),
		Placements: make(map[card.PlaceableKey]card.Face, len(s.Placements)),
	}
	for key, control := range s.Controls {
		out.Controls[key] = control
	}
	copy(out.Phones, s.Phones)
	for i, social := range s.Socials {
		cloned := social
		if social.Style != nil {
			style := *social.Style
			cloned.Style = &style
		}
		out.Socials[i] = cloned
	}
	for platform, control := range s.Static {
		out.Static[platform] = control
	}
	for key, offset := range s.Positions {
		out.Positions[key] = offset
	}
	for key, face := range s.Placements {
		out.Placements[key] = face
	}
	return out
}

// Surface is the narrow capability the synchronizer needs from the live
// editing surface. The real interactive renderer satisfies it; tests and
// the server-side export path use MemorySurface.
type Surface interface {
	// Snapshot returns the surface's current raw state.
	Snapshot() FormSnapshot
	// Apply replaces the surface's state wholesale. It must apply every
	// piece or none; a partial apply is a contract violation.
	Apply(FormSnapshot) error
	// Refresh re-derives the visual consequences for the named scopes
	// (background, text, qr, ...), after an Apply.
	Refresh(scopes []string)
}

// MemorySurface is an in-memory Surface. It backs the synchronizer's tests
// and the server-side export pipeline, where documents are written through
// a synchronizer without any real UI.
type MemorySurface struct {
	state     FormSnapshot
	refreshes [][]string
	applyErr  error
}

// NewMemorySurface returns a surface seeded from the built-in default
// document, with control kinds derived from each default field's type.
func NewMemorySurface() *MemorySurface {
	defaults := card.DefaultDocument()
	snapshot := FormSnapshot{
		Controls:   make(map[string]Control, len(defaults.Fields)),
		Phones:     []PhoneControl{},
		Socials:    []SocialControl{},
		Static:     make(map[string]StaticControl, len(defaults.StaticSocial)),
		Images:     defaults.Images,
		Positions:  defaults.Positions,
		Placements: defaults.Placements,
	}
	for key, value := range defaults.Fields {
		snapshot.Controls[key] = controlFor(value)
	}
	for platform, channel := range defaults.StaticSocial {
		snapshot.Static[platform] = StaticControl{Value: channel.Value, Face: channel.Placement, Offset: channel.Position}
	}
	return &MemorySurface{state: snapshot}
}

func controlFor(value any) Control {
	switch v := value.(type) {
	case bool:
		return Control{Kind: ControlCheckbox, Raw: strconv.FormatBool(v)}
	case float64:
		return Control{Kind: ControlNumber, Raw: strconv.FormatFloat(v, 'f', -1, 64)}
	case string:
		return Control{Kind: ControlText, Raw: v}
	default:
		return Control{Kind: ControlText}
	}
}

// Snapshot implements Surface.
func (m *MemorySurface) Snapshot() FormSnapshot {
	return m.state.Clone()
}

// Apply implements Surface.
func (m *MemorySurface) Apply(snapshot FormSnapshot) error {
	if m.applyErr != nil {
		return m.applyErr
	}
	m.state = snapshot.Clone()
	return nil
}

// Refresh implements Surface, recording the requested scopes.
func (m *MemorySurface) Refresh(scopes []string) {
	m.refreshes = append(m.refreshes, scopes)
}

// Refreshes returns the recorded refresh scope lists, oldest first.
func (m *MemorySurface) Refreshes() [][]string {
	return m.refreshes
}

// FailNextApply makes every subsequent Apply return err until called with
// nil again.
func (m *MemorySurface) FailNextApply(err error) {
	m.applyErr = err
}
