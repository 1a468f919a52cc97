// Package qr resolves a card's QR payload and encodes it to PNG.
package qr

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"cardsmith/api/internal/card"
	"cardsmith/api/internal/vcard"
)

// ErrNoPayload is returned when the document's QR mode yields nothing to
// encode (upload mode, or a url mode with an empty URL).
var ErrNoPayload = errors.New("qr: no encodable payload for document")

// Payload regenerates the encodable QR payload for a document. Auto modes
// are resolved at call time: vcard mode shares the exact vCard assembly the
// contact-file export uses, viewer mode composes the public viewer URL from
// viewerBaseURL and the saved design id.
func Payload(doc *card.Document, viewerBaseURL string) (string, error) {
	spec := card.ResolveQR(doc)
	switch spec.Mode {
	case card.QRModeVCard:
		return vcard.Encode(doc), nil
	case card.QRModeViewer:
		designID := strings.TrimSpace(doc.String(card.FieldDesignID, ""))
		if designID == "" || strings.TrimSpace(viewerBaseURL) == "" {
			return vcard.Encode(doc), nil
		}
		return strings.TrimRight(strings.TrimSpace(viewerBaseURL), "/") + "/api/view/" + designID, nil
	case card.QRModeURL:
		if spec.EncodeTarget == "" {
			return "", ErrNoPayload
		}
		return spec.EncodeTarget, nil
	default:
		// Upload mode: the document already names an image, nothing to encode.
		return "", ErrNoPayload
	}
}

// PNG encodes a payload as a square QR PNG of the given pixel size.
func PNG(payload string, size int) ([]byte, error) {
	if strings.TrimSpace(payload) == "" {
		return nil, ErrNoPayload
	}
	if size < 64 {
		size = 64
	}
	data, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return data, nil
}

// DataURL encodes a payload as an inline PNG data URL for embedding
// directly in rendered HTML.
func DataURL(payload string, size int) (string, error) {
	data, err := PNG(payload, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}
