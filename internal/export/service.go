package export

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"strings"

	"cardsmith/api/internal/card"
	"cardsmith/api/internal/qr"
	"cardsmith/api/internal/render"
	"cardsmith/api/internal/vcard"
)

// Service provides card export functionality
type Service struct {
	renderer *render.Renderer
	capturer Capturer
}

// NewService creates a new export service
func NewService(renderer *render.Renderer, capturer Capturer) *Service {
	return &Service{renderer: renderer, capturer: capturer}
}

// Export generates a single artifact in the requested format.
func (s *Service) Export(ctx context.Context, doc *card.Document, req Request) (*Result, error) {
	title := req.Title
	if title == "" {
		title = doc.String(card.FieldName, "card")
	}
	name := sanitizeFilename(title)

	switch req.Format {
	case FormatPNG, FormatJPEG:
		return s.exportRaster(ctx, doc, req, name, title)
	case FormatPDF:
		return s.exportPDF(ctx, doc, name, title)
	case FormatVCard:
		return &Result{
			Data:     []byte(vcard.Encode(doc)),
			Filename: name + ".vcf",
			MimeType: "text/vcard",
		}, nil
	case FormatQR:
		payload, err := qr.Payload(doc, s.renderer.ViewerBaseURL)
		if err != nil {
			return nil, err
		}
		data, err := qr.PNG(payload, 512)
		if err != nil {
			return nil, err
		}
		return &Result{Data: data, Filename: name + "-qr.png", MimeType: "image/png"}, nil
	case FormatZip:
		return s.Bundle(ctx, doc, title)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, req.Format)
	}
}

func (s *Service) exportRaster(ctx context.Context, doc *card.Document, req Request, name, title string) (*Result, error) {
	face := req.Face
	if face == "" {
		face = card.FaceFront
	}
	if !face.Valid() {
		return nil, fmt.Errorf("invalid face %q", face)
	}

	html, err := s.renderer.Page(doc, title)
	if err != nil {
		return nil, fmt.Errorf("render card: %w", err)
	}
	shot, err := s.capturer.CapturePNG(ctx, html, "#card-"+string(face), req.Scale)
	if err != nil {
		return nil, err
	}

	if req.Format == FormatJPEG {
		img, err := png.Decode(bytes.NewReader(shot))
		if err != nil {
			return nil, fmt.Errorf("decode captured png: %w", err)
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		return &Result{
			Data:     buf.Bytes(),
			Filename: name + "-" + string(face) + ".jpg",
			MimeType: "image/jpeg",
		}, nil
	}

	return &Result{
		Data:     shot,
		Filename: name + "-" + string(face) + ".png",
		MimeType: "image/png",
	}, nil
}

func (s *Service) exportPDF(ctx context.Context, doc *card.Document, name, title string) (*Result, error) {
	html, err := s.renderer.Page(doc, title)
	if err != nil {
		return nil, fmt.Errorf("render card: %w", err)
	}
	data, err := s.capturer.PrintPDF(ctx, injectPrintCSS(html))
	if err != nil {
		return nil, err
	}
	return &Result{Data: data, Filename: name + ".pdf", MimeType: "application/pdf"}, nil
}

// printCSS reshapes the on-screen page for print: one exact business-card
// page per face, no chrome around the cards.
const printCSS = `<style>
  @page { size: 3.5in 2in; margin: 0; }
  body { margin: 0; background: #ffffff; }
  .card { margin: 0; border-radius: 0; box-shadow: none; page-break-after: always; }
  .card:last-child { page-break-after: auto; }
</style>`

func injectPrintCSS(html string) string {
	if idx := strings.Index(html, "</head>"); idx >= 0 {
		return html[:idx] + printCSS + html[idx:]
	}
	return printCSS + html
}
