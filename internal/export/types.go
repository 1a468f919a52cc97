// Package export turns card documents into downloadable artifacts: face
// rasters, a two-page PDF, a vCard contact file, a standalone QR image,
// and zip bundles over one or many designs.
package export

import (
	"errors"

	"cardsmith/api/internal/card"
)

// Format represents the export output format
type Format string

const (
	FormatPNG   Format = "png"
	FormatJPEG  Format = "jpeg"
	FormatPDF   Format = "pdf"
	FormatVCard Format = "vcard"
	FormatQR    Format = "qr"
	FormatZip   Format = "zip"
)

// Request contains parameters for a single-artifact export
type Request struct {
	Format Format
	// Face selects the captured face for raster formats. Empty means front.
	Face card.Face
	// Scale is the raster device scale factor. Zero means 2x.
	Scale float64
	Title string
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrRasterDependencyMissing indicates the headless browser runtime is unavailable.
	ErrRasterDependencyMissing = errors.New("export raster dependency missing")
	// ErrUnsupportedFormat indicates the requested format is not one this pipeline produces.
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

// sanitizeFilename creates a safe filename from a title
func sanitizeFilename(title string) string {
	result := ""
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			result += string(r)
		case r == ' ':
			result += "-"
		case r == '-', r == '_':
			result += string(r)
		default:
			// Skip other characters
		}
	}

	if len(result) > 50 {
		result = result[:50]
	}

	if result == "" {
		result = "card"
	}

	return result
}
