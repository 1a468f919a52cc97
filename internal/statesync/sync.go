package statesync

import (
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	"cardsmith/api/internal/card"
	"cardsmith/api/internal/history"
)

// WriteOptions controls a Write call.
type WriteOptions struct {
	// PushHistory pushes the post-write re-read document onto the undo
	// log. Undo and redo apply documents with this off, so applying
	// history never generates new history.
	PushHistory bool
}

// Synchronizer reconciles the live editing surface with the portable
// document. Read assembles a document from the surface's raw state; Write
// applies a document back onto the surface, rebuilds the dynamic list
// sections, triggers dependent re-derivation, and re-reads.
type Synchronizer struct {
	surface Surface
	log     *history.Log
}

// New returns a synchronizer over surface, recording history into undoLog.
func New(surface Surface, undoLog *history.Log) *Synchronizer {
	if undoLog == nil {
		undoLog = history.NewLog(history.DefaultDepth)
	}
	return &Synchronizer{surface: surface, log: undoLog}
}

// History exposes the undo log for UI enablement checks.
func (s *Synchronizer) History() *history.Log { return s.log }

// Read walks the surface's current values and assembles a document.
// Checkbox controls yield booleans, number controls yield numbers,
// everything else strings. List sections are read in on-screen order with
// each entry's recorded drag offset, {0,0} when none exists.
func (s *Synchronizer) Read() *card.Document {
	snapshot := s.surface.Snapshot()
	doc := &card.Document{
		Fields:       make(map[string]any, len(snapshot.Controls)),
		Phones:       make([]card.PhoneEntry, 0, len(snapshot.Phones)),
		SocialLinks:  make([]card.SocialEntry, 0, len(snapshot.Socials)),
		StaticSocial: make(map[string]card.StaticChannel, len(snapshot.Static)),
		Images:       snapshot.Images,
		Positions:    make(map[card.PlaceableKey]card.Offset),
		Placements:   make(map[card.PlaceableKey]card.Face),
	}
	for key, control := range snapshot.Controls {
		value, ok := coerce(control)
		if !ok {
			log.Printf("statesync: skipping unreadable control %q (%s: %q)", key, control.Kind, control.Raw)
			continue
		}
		doc.Fields[key] = value
	}
	for _, phone := range snapshot.Phones {
		doc.Phones = append(doc.Phones, card.PhoneEntry{
			ID:        phone.ID,
			Value:     phone.Value,
			Placement: phone.Face,
			Position:  phone.Offset,
		})
	}
	for _, social := range snapshot.Socials {
		entry := card.SocialEntry{
			ID:        social.ID,
			Platform:  social.Platform,
			Value:     social.Value,
			Placement: social.Face,
			Position:  social.Offset,
		}
		if social.Style != nil {
			style := *social.Style
			entry.Style = &style
		}
		doc.SocialLinks = append(doc.SocialLinks, entry)
	}
	for platform, control := range snapshot.Static {
		doc.StaticSocial[platform] = card.StaticChannel{
			Value:     control.Value,
			Placement: control.Face,
			Position:  control.Offset,
		}
	}
	for key, offset := range snapshot.Positions {
		doc.Positions[key] = offset
	}
	for key, face := range snapshot.Placements {
		doc.Placements[key] = face
	}
	doc.Normalize()
	return doc
}

// Write applies doc onto the surface: flat fields onto matching controls
// (unknown fields are logged and left at their current value, so older or
// foreign documents remain loadable), the phone and social sections torn
// down and rebuilt from the document with their stored ids, images and
// placement state restored, and dependent visual state re-derived per the
// field dependency table. Write ends by reading the surface back; the
// re-read document, not the caller's, is what reaches history, so history
// always stores what the surface actually converged to.
func (s *Synchronizer) Write(doc *card.Document, opts WriteOptions) (*card.Document, error) {
	if doc == nil {
		return nil, fmt.Errorf("statesync: nil document")
	}
	incoming := doc.Clone()
	incoming.Normalize()

	current := s.surface.Snapshot()
	next := current.Clone()

	changed := make(map[string]struct{})
	for key, value := range incoming.Fields {
		control, ok := next.Controls[key]
		if !ok {
			log.Printf("statesync: skipping unknown field %q", key)
			continue
		}
		raw, ok := format(control.Kind, value)
		if !ok {
			log.Printf("statesync: skipping field %q: %T does not fit %s control", key, value, control.Kind)
			continue
		}
		if control.Raw != raw {
			changed[key] = struct{}{}
		}
		control.Raw = raw
		next.Controls[key] = control
	}

	// Full rebuild, not incremental patch: entry controls are destroyed
	// and recreated with ids restored from the document.
	next.Phones = next.Phones[:0]
	for _, entry := range incoming.Phones {
		next.Phones = append(next.Phones, PhoneControl{
			ID:     entry.ID,
			Value:  entry.Value,
			Face:   entry.Placement,
			Offset: entry.Position,
		})
	}
	next.Socials = next.Socials[:0]
	for _, entry := range incoming.SocialLinks {
		control := SocialControl{
			ID:       entry.ID,
			Platform: entry.Platform,
			Value:    entry.Value,
			Face:     entry.Placement,
			Offset:   entry.Position,
		}
		if entry.Style != nil {
			style := *entry.Style
			control.Style = &style
		}
		next.Socials = append(next.Socials, control)
	}
	next.Static = make(map[string]StaticControl, len(incoming.StaticSocial))
	for platform, channel := range incoming.StaticSocial {
		next.Static[platform] = StaticControl{
			Value:  channel.Value,
			Face:   channel.Placement,
			Offset: channel.Position,
		}
	}
	next.Images = incoming.Images
	next.Positions = make(map[card.PlaceableKey]card.Offset, len(incoming.Positions))
	for key, offset := range incoming.Positions {
		next.Positions[key] = offset
	}
	next.Placements = make(map[card.PlaceableKey]card.Face, len(incoming.Placements))
	for key, face := range incoming.Placements {
		next.Placements[key] = face
	}

	if err := s.surface.Apply(next); err != nil {
		return nil, fmt.Errorf("apply document: %w", err)
	}
	s.surface.Refresh(refreshScopes(incoming, current, changed))

	converged := s.Read()
	if opts.PushHistory {
		s.log.Push(converged)
	}
	return converged, nil
}

// ReadAndRecord reads the surface and pushes the result onto history; the
// read side drives history on every meaningful edit.
func (s *Synchronizer) ReadAndRecord() *card.Document {
	doc := s.Read()
	s.log.Push(doc)
	return doc
}

// Undo applies the previous history state. It never generates history
// itself. The bool reports whether there was anything to undo.
func (s *Synchronizer) Undo() (*card.Document, bool, error) {
	doc, ok := s.log.Undo()
	if !ok {
		return nil, false, nil
	}
	applied, err := s.Write(doc, WriteOptions{PushHistory: false})
	if err != nil {
		return nil, true, err
	}
	return applied, true, nil
}

// Redo applies the next history state, symmetric to Undo.
func (s *Synchronizer) Redo() (*card.Document, bool, error) {
	doc, ok := s.log.Redo()
	if !ok {
		return nil, false, nil
	}
	applied, err := s.Write(doc, WriteOptions{PushHistory: false})
	if err != nil {
		return nil, true, err
	}
	return applied, true, nil
}

func coerce(control Control) (any, bool) {
	switch control.Kind {
	case ControlCheckbox:
		switch strings.ToLower(strings.TrimSpace(control.Raw)) {
		case "true", "on", "1", "checked":
			return true, true
		default:
			return false, true
		}
	case ControlNumber:
		value, err := strconv.ParseFloat(strings.TrimSpace(control.Raw), 64)
		if err != nil {
			return nil, false
		}
		return value, true
	default:
		return control.Raw, true
	}
}

func format(kind ControlKind, value any) (string, bool) {
	switch kind {
	case ControlCheckbox:
		v, ok := value.(bool)
		if !ok {
			return "", false
		}
		return strconv.FormatBool(v), true
	case ControlNumber:
		switch v := value.(type) {
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), true
		case int:
			return strconv.Itoa(v), true
		default:
			return "", false
		}
	default:
		v, ok := value.(string)
		if !ok {
			return "", false
		}
		return v, true
	}
}

// Refresh scope names.
const (
	ScopeBackgroundFront = "background:front"
	ScopeBackgroundBack  = "background:back"
	ScopeText            = "text"
	ScopeLogo            = "logo"
	ScopePhoto           = "photo"
	ScopePhones          = "phones"
	ScopeSocial          = "social"
	ScopeQR              = "qr"
	ScopeLayout          = "layout"
)

// fieldScopes is the complete field-to-recompute dependency list. Fields
// absent here fall back to a full-card refresh.
var fieldScopes = map[string][]string{
	card.FieldFrontBgColor1:  {ScopeBackgroundFront},
	card.FieldFrontBgColor2:  {ScopeBackgroundFront},
	card.FieldFrontBgOpacity: {ScopeBackgroundFront},
	card.FieldBackBgColor1:   {ScopeBackgroundBack},
	card.FieldBackBgColor2:   {ScopeBackgroundBack},
	card.FieldBackBgOpacity:  {ScopeBackgroundBack},
	card.FieldTheme:          {ScopeBackgroundFront, ScopeBackgroundBack, ScopeText},

	card.FieldName:        {ScopeText},
	card.FieldTagline:     {ScopeText},
	card.FieldCompany:     {ScopeText},
	card.FieldFontFamily:  {ScopeText},
	card.FieldNameColor:   {ScopeText},
	card.FieldNameSize:    {ScopeText},
	card.FieldTaglineCol:  {ScopeText},
	card.FieldTaglineSize: {ScopeText},

	card.FieldLogoURL:    {ScopeLogo},
	card.FieldLogoSize:   {ScopeLogo},
	card.FieldPhotoSize:  {ScopePhoto},
	card.FieldPhotoRound: {ScopePhoto},

	card.FieldPhoneColor:  {ScopePhones},
	card.FieldPhoneSize:   {ScopePhones},
	card.FieldSocialStyle: {ScopePhones, ScopeSocial},
	card.FieldSocialColor: {ScopeSocial},
	card.FieldSocialSize:  {ScopeSocial},

	card.FieldQRMode:   {ScopeQR},
	card.FieldQRURL:    {ScopeQR},
	card.FieldQRSize:   {ScopeQR},
	card.FieldDesignID: {ScopeQR},
}

// Fields feeding the generated vCard payload; in the auto QR modes a
// change to any of them must also regenerate the QR code.
var vcardFields = map[string]struct{}{
	card.FieldName:    {},
	card.FieldTagline: {},
	card.FieldCompany: {},
}

func refreshScopes(incoming *card.Document, previous FormSnapshot, changedFields map[string]struct{}) []string {
	scopes := make(map[string]struct{})
	qrSpec := card.ResolveQR(incoming)
	autoQR := qrSpec.NeedsPayload

	for key := range changedFields {
		deps, ok := fieldScopes[key]
		if !ok {
			deps = []string{ScopeLayout}
		}
		for _, dep := range deps {
			scopes[dep] = struct{}{}
		}
		if autoQR {
			if _, feeds := vcardFields[key]; feeds {
				scopes[ScopeQR] = struct{}{}
			}
		}
	}

	// List and image sections always rebuild; their scopes follow suit.
	scopes[ScopePhones] = struct{}{}
	scopes[ScopeSocial] = struct{}{}
	scopes[ScopeLayout] = struct{}{}
	if autoQR {
		scopes[ScopeQR] = struct{}{}
	}
	if incoming.Images != previous.Images {
		scopes[ScopeBackgroundFront] = struct{}{}
		scopes[ScopeBackgroundBack] = struct{}{}
		scopes[ScopePhoto] = struct{}{}
		scopes[ScopeQR] = struct{}{}
	}

	out := make([]string, 0, len(scopes))
	for scope := range scopes {
		out = append(out, scope)
	}
	sort.Strings(out)
	return out
}
