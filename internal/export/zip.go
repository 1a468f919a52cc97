package export

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"cardsmith/api/internal/card"
	"cardsmith/api/internal/qr"
	"cardsmith/api/internal/statesync"
	"cardsmith/api/internal/vcard"
)

// Bundle produces a zip with every artifact for one design: both face
// rasters, the PDF, the contact file, and the QR image when the design's
// mode yields one.
func (s *Service) Bundle(ctx context.Context, doc *card.Document, title string) (*Result, error) {
	var buf bytes.Buffer
	archive := zip.NewWriter(&buf)
	if err := s.writeDesign(ctx, archive, doc, "", title); err != nil {
		return nil, err
	}
	if err := archive.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return &Result{
		Data:     buf.Bytes(),
		Filename: sanitizeFilename(title) + ".zip",
		MimeType: "application/zip",
	}, nil
}

// BatchItem is one stored design in a multi-design export.
type BatchItem struct {
	Name string
	Doc  *card.Document
}

// BatchError reports one failed item in a batch.
type BatchError struct {
	Name string
	Err  error
}

// Batch exports several stored designs through the live synchronizer: each
// item is written onto the surface in turn, captured, and bundled. One
// failed item is reported and skipped, the batch continues. Whatever
// happens, the originally active document is written back afterwards and
// must survive the round trip.
func (s *Service) Batch(ctx context.Context, sync *statesync.Synchronizer, items []BatchItem) (*Result, []BatchError, error) {
	original := sync.Read()

	var buf bytes.Buffer
	archive := zip.NewWriter(&buf)
	var failures []BatchError

	for i, item := range items {
		name := item.Name
		if name == "" {
			name = "design-" + strconv.Itoa(i+1)
		}
		converged, err := sync.Write(item.Doc, statesync.WriteOptions{})
		if err != nil {
			log.Printf("export: batch item %q not applied: %v", name, err)
			failures = append(failures, BatchError{Name: name, Err: err})
			continue
		}
		if err := s.writeDesign(ctx, archive, converged, sanitizeFilename(name)+"/", name); err != nil {
			log.Printf("export: batch item %q not captured: %v", name, err)
			failures = append(failures, BatchError{Name: name, Err: err})
		}
	}

	if _, err := sync.Write(original, statesync.WriteOptions{}); err != nil {
		return nil, failures, fmt.Errorf("restore active document: %w", err)
	}
	if !card.Equal(sync.Read(), original) {
		return nil, failures, fmt.Errorf("active document did not survive batch restore")
	}

	if err := archive.Close(); err != nil {
		return nil, failures, fmt.Errorf("close archive: %w", err)
	}
	return &Result{
		Data:     buf.Bytes(),
		Filename: "cards.zip",
		MimeType: "application/zip",
	}, failures, nil
}

// writeDesign captures one design's artifacts into the archive under the
// given path prefix.
func (s *Service) writeDesign(ctx context.Context, archive *zip.Writer, doc *card.Document, prefix, title string) error {
	html, err := s.renderer.Page(doc, title)
	if err != nil {
		return fmt.Errorf("render card: %w", err)
	}

	for _, face := range []card.Face{card.FaceFront, card.FaceBack} {
		shot, err := s.capturer.CapturePNG(ctx, html, "#card-"+string(face), 0)
		if err != nil {
			return fmt.Errorf("capture %s face: %w", face, err)
		}
		if err := writeZipFile(archive, prefix+string(face)+".png", shot); err != nil {
			return err
		}
	}

	pdfData, err := s.capturer.PrintPDF(ctx, injectPrintCSS(html))
	if err != nil {
		return fmt.Errorf("print pdf: %w", err)
	}
	if err := writeZipFile(archive, prefix+"card.pdf", pdfData); err != nil {
		return err
	}

	if err := writeZipFile(archive, prefix+"contact.vcf", []byte(vcard.Encode(doc))); err != nil {
		return err
	}

	payload, err := qr.Payload(doc, s.renderer.ViewerBaseURL)
	if err == nil {
		qrData, err := qr.PNG(payload, 512)
		if err != nil {
			return fmt.Errorf("encode qr: %w", err)
		}
		if err := writeZipFile(archive, prefix+"qr.png", qrData); err != nil {
			return err
		}
	} else if !errors.Is(err, qr.ErrNoPayload) {
		return fmt.Errorf("resolve qr payload: %w", err)
	}

	return nil
}

func writeZipFile(archive *zip.Writer, name string, data []byte) error {
	w, err := archive.Create(name)
	if err != nil {
		return fmt.Errorf("create %s in archive: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write %s to archive: %w", name, err)
	}
	return nil
}
