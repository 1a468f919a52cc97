// Package render reconstructs a card's full visual state from its document
// alone. It consumes the same layout resolver as the interactive surface,
// so a headless rendering and the live canvas place every node at the same
// point.
package render

import (
	"bytes"
	"fmt"
	"html/template"

	"cardsmith/api/internal/card"
	"cardsmith/api/internal/qr"
)

// Renderer produces standalone HTML for a card document.
type Renderer struct {
	// ViewerBaseURL is the public origin used when a viewer-mode QR
	// payload has to be regenerated.
	ViewerBaseURL string
}

func New(viewerBaseURL string) *Renderer {
	return &Renderer{ViewerBaseURL: viewerBaseURL}
}

type pageView struct {
	Title  string
	Width  float64
	Height float64
	Faces  []faceView
}

type faceView struct {
	Face       card.Face
	Background backgroundView
	Visuals    []visualView
}

type backgroundView struct {
	ColorTop    string
	ColorBottom string
	ImageURL    template.URL
	Opacity     float64
}

type visualView struct {
	Kind       card.VisualKind
	Text       string
	Platform   string
	ImageURL   template.URL
	Color      string
	FontFamily string
	Button     bool
	Round      bool
	X          float64
	Y          float64
	Size       float64
}

// Page renders the complete card, front face then back face, as a single
// standalone HTML document. Each face carries an element id (card-front,
// card-back) so downstream capture can target one face at a time.
func (r *Renderer) Page(doc *card.Document, title string) (string, error) {
	return r.render(doc, title, card.FaceFront, card.FaceBack)
}

// Face renders a single face as a standalone HTML document.
func (r *Renderer) Face(doc *card.Document, face card.Face) (string, error) {
	if !face.Valid() {
		return "", fmt.Errorf("render: invalid face %q", face)
	}
	return r.render(doc, doc.String(card.FieldName, "Business card"), face)
}

func (r *Renderer) render(doc *card.Document, title string, faces ...card.Face) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("render: nil document")
	}
	normalized := doc.Clone()
	normalized.Normalize()

	page := pageView{
		Title:  title,
		Width:  card.CanvasWidth,
		Height: card.CanvasHeight,
		Faces:  make([]faceView, 0, len(faces)),
	}
	for _, face := range faces {
		view, err := r.faceView(normalized, face)
		if err != nil {
			return "", err
		}
		page.Faces = append(page.Faces, view)
	}

	var buf bytes.Buffer
	if err := cardTemplate.Execute(&buf, page); err != nil {
		return "", fmt.Errorf("execute card template: %w", err)
	}
	return buf.String(), nil
}

func (r *Renderer) faceView(doc *card.Document, face card.Face) (faceView, error) {
	bg := card.ResolveBackground(doc, face)
	view := faceView{
		Face: face,
		Background: backgroundView{
			ColorTop:    bg.ColorTop,
			ColorBottom: bg.ColorBottom,
			ImageURL:    SafeURL(bg.ImageURL),
			Opacity:     bg.Opacity,
		},
	}
	for _, visual := range card.ResolveFace(doc, face) {
		node, keep, err := r.visualView(doc, visual)
		if err != nil {
			return faceView{}, err
		}
		if keep {
			view.Visuals = append(view.Visuals, node)
		}
	}
	return view, nil
}

func (r *Renderer) visualView(doc *card.Document, visual card.Visual) (visualView, bool, error) {
	position := visual.Position()
	node := visualView{
		Kind:       visual.Kind,
		Text:       visual.Text,
		Platform:   visual.Platform,
		ImageURL:   SafeURL(visual.ImageURL),
		Color:      visual.Color,
		FontFamily: visual.FontFamily,
		Round:      visual.Round,
		X:          position.X,
		Y:          position.Y,
		Size:       visual.Size,
	}
	switch visual.Kind {
	case card.VisualPhone, card.VisualSocial, card.VisualStatic:
		node.Button = visual.Button
	case card.VisualQR:
		if visual.QR.NeedsPayload || visual.QR.Mode == card.QRModeURL {
			payload, err := qr.Payload(doc, r.ViewerBaseURL)
			if err != nil {
				return visualView{}, false, nil
			}
			dataURL, err := qr.DataURL(payload, int(visual.Size)*2)
			if err != nil {
				return visualView{}, false, fmt.Errorf("render qr node: %w", err)
			}
			node.ImageURL = SafeURL(dataURL)
		} else {
			node.ImageURL = SafeURL(visual.QR.ImageURL)
		}
	}
	return node, true, nil
}
