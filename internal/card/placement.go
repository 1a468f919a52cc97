package card

import "fmt"

// PlacementStore answers "where is placeable X" for both the closed
// singleton set and the open per-entry set, and lets callers mutate it.
// Singleton keys are strict: an unknown key is a caller error. Entry ids
// are lenient and default to {0,0} on the front face, since entries can be
// deleted out from under stale references.
type PlacementStore struct {
	positions  map[PlaceableKey]Offset
	placements map[PlaceableKey]Face

	entryFaces   map[string]Face
	entryOffsets map[string]Offset
}

// NewPlacementStore returns a store seeded with the default singleton
// placements.
func NewPlacementStore() *PlacementStore {
	s := &PlacementStore{
		positions:    make(map[PlaceableKey]Offset, len(corePlaceables)),
		placements:   make(map[PlaceableKey]Face, len(corePlaceables)),
		entryFaces:   make(map[string]Face),
		entryOffsets: make(map[string]Offset),
	}
	defaults := DefaultDocument()
	for _, key := range corePlaceables {
		s.positions[key] = Offset{}
		s.placements[key] = defaults.Placements[key]
	}
	return s
}

// Face returns the face a singleton placeable renders on.
func (s *PlacementStore) Face(key PlaceableKey) (Face, error) {
	if !IsCorePlaceable(key) {
		return "", fmt.Errorf("unknown placeable %q", key)
	}
	return s.placements[key], nil
}

// SetFace moves a singleton placeable to a face. Moving faces resets the
// manual offset: a freshly-moved element starts at its new face's default
// slot.
func (s *PlacementStore) SetFace(key PlaceableKey, face Face) error {
	if !IsCorePlaceable(key) {
		return fmt.Errorf("unknown placeable %q", key)
	}
	if !face.Valid() {
		return fmt.Errorf("invalid face %q", face)
	}
	s.placements[key] = face
	s.positions[key] = Offset{}
	return nil
}

// Offset returns a singleton placeable's delta from its default slot.
func (s *PlacementStore) Offset(key PlaceableKey) (Offset, error) {
	if !IsCorePlaceable(key) {
		return Offset{}, fmt.Errorf("unknown placeable %q", key)
	}
	return s.positions[key], nil
}

// AddOffset accumulates a drag delta onto a singleton placeable.
func (s *PlacementStore) AddOffset(key PlaceableKey, dx, dy float64) error {
	if !IsCorePlaceable(key) {
		return fmt.Errorf("unknown placeable %q", key)
	}
	offset := s.positions[key]
	offset.X += dx
	offset.Y += dy
	s.positions[key] = offset
	return nil
}

// EntryFace returns the face for a dynamic list entry, front by default.
func (s *PlacementStore) EntryFace(id string) Face {
	if face, ok := s.entryFaces[id]; ok {
		return face
	}
	return FaceFront
}

// SetEntryFace moves a dynamic entry to a face and resets its offset, the
// same rule the singleton set follows.
func (s *PlacementStore) SetEntryFace(id string, face Face) {
	if !face.Valid() {
		face = FaceFront
	}
	s.entryFaces[id] = face
	s.entryOffsets[id] = Offset{}
}

// EntryOffset returns a dynamic entry's offset, {0,0} for unknown ids.
func (s *PlacementStore) EntryOffset(id string) Offset {
	return s.entryOffsets[id]
}

// AddEntryOffset accumulates a drag delta onto a dynamic entry.
func (s *PlacementStore) AddEntryOffset(id string, dx, dy float64) {
	offset := s.entryOffsets[id]
	offset.X += dx
	offset.Y += dy
	s.entryOffsets[id] = offset
}

// ForgetEntry drops all state for a removed entry.
func (s *PlacementStore) ForgetEntry(id string) {
	delete(s.entryFaces, id)
	delete(s.entryOffsets, id)
}

// Load replaces the store's state with the document's placement data.
func (s *PlacementStore) Load(doc *Document) {
	for _, key := range corePlaceables {
		s.positions[key] = doc.Positions[key]
		if face, ok := doc.Placements[key]; ok && face.Valid() {
			s.placements[key] = face
		}
	}
	s.entryFaces = make(map[string]Face)
	s.entryOffsets = make(map[string]Offset)
	for _, entry := range doc.Phones {
		s.entryFaces[entry.ID] = entry.Placement
		s.entryOffsets[entry.ID] = entry.Position
	}
	for _, entry := range doc.SocialLinks {
		s.entryFaces[entry.ID] = entry.Placement
		s.entryOffsets[entry.ID] = entry.Position
	}
}

// ApplyTo writes the store's singleton state into the document and fills
// each list entry's face and offset from the per-entry state.
func (s *PlacementStore) ApplyTo(doc *Document) {
	for _, key := range corePlaceables {
		doc.Positions[key] = s.positions[key]
		doc.Placements[key] = s.placements[key]
	}
	for i := range doc.Phones {
		doc.Phones[i].Placement = s.EntryFace(doc.Phones[i].ID)
		doc.Phones[i].Position = s.EntryOffset(doc.Phones[i].ID)
	}
	for i := range doc.SocialLinks {
		doc.SocialLinks[i].Placement = s.EntryFace(doc.SocialLinks[i].ID)
		doc.SocialLinks[i].Position = s.EntryOffset(doc.SocialLinks[i].ID)
	}
}
