// Package card defines the portable business-card document model: the
// serializable description of one two-sided card design, plus the placement
// store and layout resolver shared by every renderer of that document.
package card

// Face is one side of the two-sided card.
type Face string

const (
	FaceFront Face = "front"
	FaceBack  Face = "back"
)

// Valid reports whether f is one of the two card faces.
func (f Face) Valid() bool {
	return f == FaceFront || f == FaceBack
}

// Offset is a pixel delta from a placeable's default layout slot. The zero
// value means "use the default slot", not "hidden".
type Offset struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// IsZero reports whether the offset leaves the element at its default slot.
func (o Offset) IsZero() bool {
	return o.X == 0 && o.Y == 0
}

// PlaceableKey identifies one of the five fixed singleton placeables. The
// set is closed: it never grows or shrinks at runtime.
type PlaceableKey string

const (
	PlaceLogo    PlaceableKey = "logo"
	PlacePhoto   PlaceableKey = "photo"
	PlaceName    PlaceableKey = "name"
	PlaceTagline PlaceableKey = "tagline"
	PlaceQR      PlaceableKey = "qr"
)

var corePlaceables = []PlaceableKey{PlaceLogo, PlacePhoto, PlaceName, PlaceTagline, PlaceQR}

// CorePlaceables returns the closed singleton placeable set.
func CorePlaceables() []PlaceableKey {
	out := make([]PlaceableKey, len(corePlaceables))
	copy(out, corePlaceables)
	return out
}

// IsCorePlaceable reports whether key belongs to the closed singleton set.
func IsCorePlaceable(key PlaceableKey) bool {
	for _, k := range corePlaceables {
		if k == key {
			return true
		}
	}
	return false
}

// PhoneEntry is one user-added phone number. ID is assigned once at creation
// and is the join key between the entry's data, its on-canvas node, and its
// form control group.
type PhoneEntry struct {
	ID        string `json:"id"`
	Value     string `json:"value"`
	Placement Face   `json:"placement"`
	Position  Offset `json:"position"`
}

// StyleOverride carries per-entry styling for a social link. A nil override
// means "use the section-wide style"; a present override always wins, even
// when its values happen to equal the section defaults.
type StyleOverride struct {
	Color string  `json:"color"`
	Size  float64 `json:"size"`
}

// SocialEntry is one user-added social link.
type SocialEntry struct {
	ID        string         `json:"id"`
	Platform  string         `json:"platform"`
	Value     string         `json:"value"`
	Placement Face           `json:"placement"`
	Position  Offset         `json:"position"`
	Style     *StyleOverride `json:"style,omitempty"`
}

// StaticChannel is one entry of the fixed, non-removable contact channel set.
type StaticChannel struct {
	Value     string `json:"value"`
	Placement Face   `json:"placement"`
	Position  Offset `json:"position"`
}

// StaticPlatforms is the fixed contact channel set, in render order.
var StaticPlatforms = []string{"email", "website", "whatsapp", "facebook", "linkedin"}

// Images holds URIs of uploaded artwork. Empty string means "none".
type Images struct {
	FrontBackground string `json:"frontBackground,omitempty"`
	BackBackground  string `json:"backBackground,omitempty"`
	QRUpload        string `json:"qrUpload,omitempty"`
	Photo           string `json:"photo,omitempty"`
}

// Document is the complete, serializable description of one card design.
// It is the single unit of persistence, history, and reconstruction: a
// viewer that never saw the editing form must be able to rebuild the card
// from a Document alone.
type Document struct {
	Fields       map[string]any           `json:"fields"`
	Phones       []PhoneEntry             `json:"phones"`
	SocialLinks  []SocialEntry            `json:"socialLinks"`
	StaticSocial map[string]StaticChannel `json:"staticSocial"`
	Images       Images                   `json:"images"`
	Positions    map[PlaceableKey]Offset  `json:"positions"`
	Placements   map[PlaceableKey]Face    `json:"placements"`
}

// Well-known field keys. Values in Fields are strings, float64s, or bools.
const (
	FieldName       = "name"
	FieldTagline    = "tagline"
	FieldCompany    = "company"
	FieldLogoURL    = "logoUrl"
	FieldTheme      = "theme"
	FieldFontFamily = "fontFamily"

	FieldFrontBgColor1  = "frontBgColor1"
	FieldFrontBgColor2  = "frontBgColor2"
	FieldBackBgColor1   = "backBgColor1"
	FieldBackBgColor2   = "backBgColor2"
	FieldFrontBgOpacity = "frontBgImageOpacity"
	FieldBackBgOpacity  = "backBgImageOpacity"

	FieldNameColor   = "nameColor"
	FieldNameSize    = "nameSize"
	FieldTaglineCol  = "taglineColor"
	FieldTaglineSize = "taglineSize"
	FieldLogoSize    = "logoSize"
	FieldPhotoSize   = "photoSize"
	FieldPhotoRound  = "photoRound"

	FieldPhoneColor  = "phoneColor"
	FieldPhoneSize   = "phoneSize"
	FieldSocialStyle = "socialStyle" // "button" or "text"
	FieldSocialColor = "socialColor"
	FieldSocialSize  = "socialSize"

	FieldQRMode   = "qrMode" // "vcard", "viewer", "url", "upload"
	FieldQRURL    = "qrUrl"
	FieldQRSize   = "qrSize"
	FieldDesignID = "designId"
)

// QR source modes.
const (
	QRModeVCard  = "vcard"
	QRModeViewer = "viewer"
	QRModeURL    = "url"
	QRModeUpload = "upload"
)

// DefaultDocument returns the built-in first-run design.
func DefaultDocument() *Document {
	doc := &Document{
		Fields: map[string]any{
			FieldName:       "",
			FieldTagline:    "",
			FieldCompany:    "",
			FieldLogoURL:    "",
			FieldTheme:      "midnight",
			FieldFontFamily: "Inter",

			FieldFrontBgColor1:  "#0f172a",
			FieldFrontBgColor2:  "#1e293b",
			FieldBackBgColor1:   "#1e293b",
			FieldBackBgColor2:   "#0f172a",
			FieldFrontBgOpacity: 1.0,
			FieldBackBgOpacity:  1.0,

			FieldNameColor:   "#f8fafc",
			FieldNameSize:    28.0,
			FieldTaglineCol:  "#cbd5e1",
			FieldTaglineSize: 14.0,
			FieldLogoSize:    72.0,
			FieldPhotoSize:   88.0,
			FieldPhotoRound:  true,

			FieldPhoneColor:  "#e6f0f7",
			FieldPhoneSize:   13.0,
			FieldSocialStyle: "button",
			FieldSocialColor: "#e6f0f7",
			FieldSocialSize:  12.0,

			FieldQRMode:   QRModeVCard,
			FieldQRURL:    "",
			FieldQRSize:   96.0,
			FieldDesignID: "",
		},
		Phones:       []PhoneEntry{},
		SocialLinks:  []SocialEntry{},
		StaticSocial: map[string]StaticChannel{},
		Positions:    map[PlaceableKey]Offset{},
		Placements: map[PlaceableKey]Face{
			PlaceLogo:    FaceFront,
			PlacePhoto:   FaceFront,
			PlaceName:    FaceFront,
			PlaceTagline: FaceFront,
			PlaceQR:      FaceBack,
		},
	}
	for _, key := range corePlaceables {
		doc.Positions[key] = Offset{}
	}
	for _, platform := range StaticPlatforms {
		doc.StaticSocial[platform] = StaticChannel{Placement: FaceBack}
	}
	return doc
}

// Normalize repairs a document in place after deserialization: nil maps and
// slices are allocated, field values are coerced to the three supported
// scalar kinds, the closed placement and position maps are forced back to
// exactly the five core keys, and entry faces default to front. Unknown or
// malformed pieces are dropped rather than failing the load.
func (d *Document) Normalize() {
	if d.Fields == nil {
		d.Fields = map[string]any{}
	}
	for key, value := range d.Fields {
		switch v := value.(type) {
		case string, bool, float64:
		case int:
			d.Fields[key] = float64(v)
		case int64:
			d.Fields[key] = float64(v)
		case float32:
			d.Fields[key] = float64(v)
		default:
			delete(d.Fields, key)
		}
	}
	if d.Phones == nil {
		d.Phones = []PhoneEntry{}
	}
	for i := range d.Phones {
		if !d.Phones[i].Placement.Valid() {
			d.Phones[i].Placement = FaceFront
		}
	}
	if d.SocialLinks == nil {
		d.SocialLinks = []SocialEntry{}
	}
	for i := range d.SocialLinks {
		if !d.SocialLinks[i].Placement.Valid() {
			d.SocialLinks[i].Placement = FaceFront
		}
	}
	if d.StaticSocial == nil {
		d.StaticSocial = map[string]StaticChannel{}
	}
	for _, platform := range StaticPlatforms {
		channel := d.StaticSocial[platform]
		if !channel.Placement.Valid() {
			channel.Placement = FaceBack
		}
		d.StaticSocial[platform] = channel
	}
	for platform := range d.StaticSocial {
		if !isStaticPlatform(platform) {
			delete(d.StaticSocial, platform)
		}
	}

	defaults := DefaultDocument()
	positions := make(map[PlaceableKey]Offset, len(corePlaceables))
	placements := make(map[PlaceableKey]Face, len(corePlaceables))
	for _, key := range corePlaceables {
		positions[key] = d.Positions[key]
		face, ok := d.Placements[key]
		if !ok || !face.Valid() {
			face = defaults.Placements[key]
		}
		placements[key] = face
	}
	d.Positions = positions
	d.Placements = placements
}

func isStaticPlatform(platform string) bool {
	for _, p := range StaticPlatforms {
		if p == platform {
			return true
		}
	}
	return false
}

// Clone returns a deep copy. History and persistence only ever store
// clones; a document pushed to history is never mutated afterwards.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{
		Fields:       make(map[string]any, len(d.Fields)),
		Phones:       make([]PhoneEntry, len(d.Phones)),
		SocialLinks:  make([]SocialEntry, len(d.SocialLinks)),
		StaticSocial: make(map[string]StaticChannel, len(d.StaticSocial)),
		Images:       d.Images,
		Positions:    make(map[PlaceableKey]Offset, len(d.Positions)),
		Placements:   make(map[PlaceableKey]Face, len(d.Placements)),
	}
	for key, value := range d.Fields {
		out.Fields[key] = value
	}
	copy(out.Phones, d.Phones)
	for i, entry := range d.SocialLinks {
		cloned := entry
		if entry.Style != nil {
			style := *entry.Style
			cloned.Style = &style
		}
		out.SocialLinks[i] = cloned
	}
	for platform, channel := range d.StaticSocial {
		out.StaticSocial[platform] = channel
	}
	for key, offset := range d.Positions {
		out.Positions[key] = offset
	}
	for key, face := range d.Placements {
		out.Placements[key] = face
	}
	return out
}

// Equal reports deep equality of two documents, comparing field values
// after numeric coercion so that a JSON round trip never changes equality.
func Equal(a, b *Document) bool {
	if a == nil || b == nil {
		return a == b
	}
	if len(a.Fields) != len(b.Fields) {
		return false
	}
	for key, av := range a.Fields {
		bv, ok := b.Fields[key]
		if !ok || !scalarEqual(av, bv) {
			return false
		}
	}
	if len(a.Phones) != len(b.Phones) {
		return false
	}
	for i := range a.Phones {
		if a.Phones[i] != b.Phones[i] {
			return false
		}
	}
	if len(a.SocialLinks) != len(b.SocialLinks) {
		return false
	}
	for i := range a.SocialLinks {
		if !socialEqual(a.SocialLinks[i], b.SocialLinks[i]) {
			return false
		}
	}
	if len(a.StaticSocial) != len(b.StaticSocial) {
		return false
	}
	for platform, ac := range a.StaticSocial {
		if bc, ok := b.StaticSocial[platform]; !ok || ac != bc {
			return false
		}
	}
	if a.Images != b.Images {
		return false
	}
	if len(a.Positions) != len(b.Positions) || len(a.Placements) != len(b.Placements) {
		return false
	}
	for key, offset := range a.Positions {
		if other, ok := b.Positions[key]; !ok || offset != other {
			return false
		}
	}
	for key, face := range a.Placements {
		if other, ok := b.Placements[key]; !ok || face != other {
			return false
		}
	}
	return true
}

func socialEqual(a, b SocialEntry) bool {
	if a.ID != b.ID || a.Platform != b.Platform || a.Value != b.Value ||
		a.Placement != b.Placement || a.Position != b.Position {
		return false
	}
	if (a.Style == nil) != (b.Style == nil) {
		return false
	}
	if a.Style != nil && *a.Style != *b.Style {
		return false
	}
	return true
}

func scalarEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// String returns the string value of a field, or fallback when the field is
// absent or not a string.
func (d *Document) String(key, fallback string) string {
	if v, ok := d.Fields[key].(string); ok {
		return v
	}
	return fallback
}

// Number returns the numeric value of a field, or fallback when the field
// is absent or not numeric.
func (d *Document) Number(key string, fallback float64) float64 {
	if v, ok := toFloat(d.Fields[key]); ok {
		return v
	}
	return fallback
}

// Bool returns the boolean value of a field, or fallback when the field is
// absent or not boolean.
func (d *Document) Bool(key string, fallback bool) bool {
	if v, ok := d.Fields[key].(bool); ok {
		return v
	}
	return fallback
}
