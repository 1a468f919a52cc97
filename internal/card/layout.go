package card

import (
	"regexp"
	"strings"
)

// Canvas size both renderers agree on: 3.5in x 2in at 150dpi.
const (
	CanvasWidth  = 525.0
	CanvasHeight = 300.0
)

// VisualKind classifies a resolved placeable node.
type VisualKind string

const (
	VisualLogo    VisualKind = "logo"
	VisualPhoto   VisualKind = "photo"
	VisualName    VisualKind = "name"
	VisualTagline VisualKind = "tagline"
	VisualQR      VisualKind = "qr"
	VisualPhone   VisualKind = "phone"
	VisualSocial  VisualKind = "social"
	VisualStatic  VisualKind = "static"
)

// QRSpec describes where the QR node's content comes from. In "upload" and
// "url" modes the document already names the content; in the auto modes
// ("vcard", "viewer") the renderer must regenerate the encodable payload at
// render time and NeedsPayload is true.
type QRSpec struct {
	Mode         string
	ImageURL     string
	EncodeTarget string
	NeedsPayload bool
}

// Visual is one resolved placeable node: everything a renderer needs to
// draw it, independent of any editing state.
type Visual struct {
	Key        string
	Kind       VisualKind
	Face       Face
	Text       string
	ImageURL   string
	Platform   string
	Color      string
	Size       float64
	FontFamily string
	Button     bool
	Round      bool
	Anchor     Offset
	Offset     Offset
	QR         *QRSpec
}

// Position is the node's final top-left point: default anchor plus the
// stored drag delta.
func (v Visual) Position() Offset {
	return Offset{X: v.Anchor.X + v.Offset.X, Y: v.Anchor.Y + v.Offset.Y}
}

// Default anchor slots per face. The table is a fixed layout convention:
// the interactive surface and the headless renderer must place a node with
// a zero offset at exactly the same point.
var singletonAnchors = map[Face]map[PlaceableKey]Offset{
	FaceFront: {
		PlaceLogo:    {X: 24, Y: 24},
		PlacePhoto:   {X: 413, Y: 24},
		PlaceName:    {X: 24, Y: 148},
		PlaceTagline: {X: 24, Y: 188},
		PlaceQR:      {X: 405, Y: 180},
	},
	FaceBack: {
		PlaceLogo:    {X: 24, Y: 24},
		PlacePhoto:   {X: 413, Y: 24},
		PlaceName:    {X: 24, Y: 48},
		PlaceTagline: {X: 24, Y: 88},
		PlaceQR:      {X: 214, Y: 92},
	},
}

// Stacked list anchors: each rendered entry of a section occupies the next
// row on its face. Skipped (empty) entries do not consume a row.
var (
	phoneStack  = map[Face]Offset{FaceFront: {X: 24, Y: 228}, FaceBack: {X: 24, Y: 140}}
	socialStack = map[Face]Offset{FaceFront: {X: 300, Y: 228}, FaceBack: {X: 300, Y: 140}}
	staticStack = map[Face]Offset{FaceFront: {X: 300, Y: 120}, FaceBack: {X: 24, Y: 228}}
	stackRow    = 26.0
)

var hexColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

// SafeColor returns color when it is a well-formed hex color, otherwise
// fallback. A malformed color degrades one node, never the whole card.
func SafeColor(color, fallback string) string {
	trimmed := strings.TrimSpace(color)
	if hexColorPattern.MatchString(trimmed) {
		return trimmed
	}
	return fallback
}

// SafeSize clamps a font or box size to a sane positive range, falling back
// when the stored value is unusable.
func SafeSize(size, fallback float64) float64 {
	if size > 0 && size <= 400 {
		return size
	}
	return fallback
}

// ResolveQR determines the QR node's content source for a document. The
// auto modes fall back to vCard when the viewer link cannot be formed.
func ResolveQR(doc *Document) QRSpec {
	mode := doc.String(FieldQRMode, QRModeVCard)
	switch mode {
	case QRModeUpload:
		return QRSpec{Mode: mode, ImageURL: doc.Images.QRUpload}
	case QRModeURL:
		return QRSpec{Mode: mode, EncodeTarget: strings.TrimSpace(doc.String(FieldQRURL, ""))}
	case QRModeViewer:
		if strings.TrimSpace(doc.String(FieldDesignID, "")) == "" {
			return QRSpec{Mode: QRModeVCard, NeedsPayload: true}
		}
		return QRSpec{Mode: mode, NeedsPayload: true}
	default:
		return QRSpec{Mode: QRModeVCard, NeedsPayload: true}
	}
}

// ResolveFace is the canonical layout resolver: it maps a document and a
// face to the list of visible nodes, resolving content, style, and
// position. Both the interactive surface and the headless renderer consume
// this one function, which is what keeps them from drifting apart.
func ResolveFace(doc *Document, face Face) []Visual {
	visuals := make([]Visual, 0, 8)
	fontFamily := doc.String(FieldFontFamily, "Inter")
	anchors := singletonAnchors[face]

	for _, key := range corePlaceables {
		if doc.Placements[key] != face {
			continue
		}
		visual := Visual{
			Key:        string(key),
			Face:       face,
			Anchor:     anchors[key],
			Offset:     doc.Positions[key],
			FontFamily: fontFamily,
		}
		switch key {
		case PlaceLogo:
			logoURL := strings.TrimSpace(doc.String(FieldLogoURL, ""))
			if logoURL == "" {
				continue
			}
			visual.Kind = VisualLogo
			visual.ImageURL = logoURL
			visual.Size = SafeSize(doc.Number(FieldLogoSize, 72), 72)
		case PlacePhoto:
			if doc.Images.Photo == "" {
				continue
			}
			visual.Kind = VisualPhoto
			visual.ImageURL = doc.Images.Photo
			visual.Size = SafeSize(doc.Number(FieldPhotoSize, 88), 88)
			visual.Round = doc.Bool(FieldPhotoRound, true)
		case PlaceName:
			name := strings.TrimSpace(doc.String(FieldName, ""))
			if name == "" {
				continue
			}
			visual.Kind = VisualName
			visual.Text = name
			visual.Color = SafeColor(doc.String(FieldNameColor, ""), "#f8fafc")
			visual.Size = SafeSize(doc.Number(FieldNameSize, 28), 28)
		case PlaceTagline:
			tagline := strings.TrimSpace(doc.String(FieldTagline, ""))
			if tagline == "" {
				continue
			}
			visual.Kind = VisualTagline
			visual.Text = tagline
			visual.Color = SafeColor(doc.String(FieldTaglineCol, ""), "#cbd5e1")
			visual.Size = SafeSize(doc.Number(FieldTaglineSize, 14), 14)
		case PlaceQR:
			spec := ResolveQR(doc)
			if spec.Mode == QRModeUpload && spec.ImageURL == "" {
				continue
			}
			if spec.Mode == QRModeURL && spec.EncodeTarget == "" {
				continue
			}
			visual.Kind = VisualQR
			visual.Size = SafeSize(doc.Number(FieldQRSize, 96), 96)
			visual.QR = &spec
		}
		visuals = append(visuals, visual)
	}

	button := doc.String(FieldSocialStyle, "button") == "button"
	phoneColor := SafeColor(doc.String(FieldPhoneColor, ""), "#e6f0f7")
	phoneSize := SafeSize(doc.Number(FieldPhoneSize, 13), 13)
	row := 0
	for _, entry := range doc.Phones {
		if entry.Placement != face || strings.TrimSpace(entry.Value) == "" {
			continue
		}
		base := phoneStack[face]
		visuals = append(visuals, Visual{
			Key:        entry.ID,
			Kind:       VisualPhone,
			Face:       face,
			Text:       strings.TrimSpace(entry.Value),
			Color:      phoneColor,
			Size:       phoneSize,
			FontFamily: fontFamily,
			Button:     button,
			Anchor:     Offset{X: base.X, Y: base.Y + float64(row)*stackRow},
			Offset:     entry.Position,
		})
		row++
	}

	sectionColor := SafeColor(doc.String(FieldSocialColor, ""), "#e6f0f7")
	sectionSize := SafeSize(doc.Number(FieldSocialSize, 12), 12)
	row = 0
	for _, entry := range doc.SocialLinks {
		if entry.Placement != face || strings.TrimSpace(entry.Value) == "" {
			continue
		}
		color, size := sectionColor, sectionSize
		if entry.Style != nil {
			color = SafeColor(entry.Style.Color, sectionColor)
			size = SafeSize(entry.Style.Size, sectionSize)
		}
		base := socialStack[face]
		visuals = append(visuals, Visual{
			Key:        entry.ID,
			Kind:       VisualSocial,
			Face:       face,
			Text:       strings.TrimSpace(entry.Value),
			Platform:   entry.Platform,
			Color:      color,
			Size:       size,
			FontFamily: fontFamily,
			Button:     button,
			Anchor:     Offset{X: base.X, Y: base.Y + float64(row)*stackRow},
			Offset:     entry.Position,
		})
		row++
	}

	row = 0
	for _, platform := range StaticPlatforms {
		channel, ok := doc.StaticSocial[platform]
		if !ok || channel.Placement != face || strings.TrimSpace(channel.Value) == "" {
			continue
		}
		base := staticStack[face]
		visuals = append(visuals, Visual{
			Key:        "static:" + platform,
			Kind:       VisualStatic,
			Face:       face,
			Text:       strings.TrimSpace(channel.Value),
			Platform:   platform,
			Color:      sectionColor,
			Size:       sectionSize,
			FontFamily: fontFamily,
			Button:     button,
			Anchor:     Offset{X: base.X, Y: base.Y + float64(row)*stackRow},
			Offset:     channel.Position,
		})
		row++
	}

	return visuals
}

// Background describes one face's resolved background layers.
type Background struct {
	ColorTop    string
	ColorBottom string
	ImageURL    string
	Opacity     float64
}

// ResolveBackground resolves a face's gradient colors and optional image
// layer with its opacity.
func ResolveBackground(doc *Document, face Face) Background {
	if face == FaceBack {
		opacity := doc.Number(FieldBackBgOpacity, 1)
		if opacity < 0 || opacity > 1 {
			opacity = 1
		}
		return Background{
			ColorTop:    SafeColor(doc.String(FieldBackBgColor1, ""), "#1e293b"),
			ColorBottom: SafeColor(doc.String(FieldBackBgColor2, ""), "#0f172a"),
			ImageURL:    doc.Images.BackBackground,
			Opacity:     opacity,
		}
	}
	opacity := doc.Number(FieldFrontBgOpacity, 1)
	if opacity < 0 || opacity > 1 {
		opacity = 1
	}
	return Background{
		ColorTop:    SafeColor(doc.String(FieldFrontBgColor1, ""), "#0f172a"),
		ColorBottom: SafeColor(doc.String(FieldFrontBgColor2, ""), "#1e293b"),
		ImageURL:    doc.Images.FrontBackground,
		Opacity:     opacity,
	}
}
