package qr

import (
	"bytes"
	"strings"
	"testing"

	"cardsmith/api/internal/card"
	"cardsmith/api/internal/vcard"
)

func TestPayloadVCardModeMatchesExport(t *testing.T) {
	doc := card.DefaultDocument()
	doc.Fields[card.FieldName] = "Ada Lovelace"
	doc.Phones = []card.PhoneEntry{{ID: "ph_1", Value: "555-0100"}}

	payload, err := Payload(doc, "https://cards.example")
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	if payload != vcard.Encode(doc) {
		t.Error("auto-vcard QR payload must byte-for-byte match the vCard export")
	}
}

func TestPayloadViewerMode(t *testing.T) {
	doc := card.DefaultDocument()
	doc.Fields[card.FieldQRMode] = card.QRModeViewer
	doc.Fields[card.FieldDesignID] = "design_abc"

	payload, err := Payload(doc, "https://cards.example/")
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	if payload != "https://cards.example/api/view/design_abc" {
		t.Errorf("viewer payload = %q", payload)
	}

	// No saved id yet: fall back to the vCard payload, never an empty code.
	doc.Fields[card.FieldDesignID] = ""
	payload, err = Payload(doc, "https://cards.example")
	if err != nil {
		t.Fatalf("Payload fallback: %v", err)
	}
	if !strings.HasPrefix(payload, "BEGIN:VCARD") {
		t.Errorf("expected vcard fallback, got %q", payload)
	}
}

func TestPayloadURLAndUploadModes(t *testing.T) {
	doc := card.DefaultDocument()
	doc.Fields[card.FieldQRMode] = card.QRModeURL
	doc.Fields[card.FieldQRURL] = "https://example.com/me"
	payload, err := Payload(doc, "")
	if err != nil || payload != "https://example.com/me" {
		t.Errorf("url mode: %q %v", payload, err)
	}

	doc.Fields[card.FieldQRURL] = ""
	if _, err := Payload(doc, ""); err == nil {
		t.Error("url mode with empty url must error")
	}

	doc.Fields[card.FieldQRMode] = card.QRModeUpload
	if _, err := Payload(doc, ""); err == nil {
		t.Error("upload mode has no payload to encode")
	}
}

func TestPNGAndDataURL(t *testing.T) {
	data, err := PNG("https://example.com", 128)
	if err != nil {
		t.Fatalf("PNG: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("output is not a PNG")
	}

	url, err := DataURL("https://example.com", 128)
	if err != nil {
		t.Fatalf("DataURL: %v", err)
	}
	if !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Errorf("bad data url prefix: %s", url[:32])
	}

	if _, err := PNG("   ", 128); err == nil {
		t.Error("blank payload must error")
	}
}
