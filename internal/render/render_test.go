package render

import (
	"strings"
	"testing"

	"cardsmith/api/internal/card"
)

func testDocument() *card.Document {
	doc := card.DefaultDocument()
	doc.Fields[card.FieldName] = "Ada Lovelace"
	doc.Fields[card.FieldTagline] = "Analyst"
	doc.Phones = []card.PhoneEntry{
		{ID: "phone_1", Value: "+1 555 0100", Placement: card.FaceFront},
	}
	doc.Normalize()
	return doc
}

func TestPageRendersBothFaces(t *testing.T) {
	html, err := New("").Page(testDocument(), "Ada Lovelace")
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if !strings.Contains(html, `id="card-front"`) || !strings.Contains(html, `id="card-back"`) {
		t.Fatalf("rendered page is missing a face container")
	}
	if !strings.Contains(html, "Ada Lovelace") {
		t.Fatalf("rendered page is missing the name node")
	}
	if !strings.Contains(html, "+1 555 0100") {
		t.Fatalf("rendered page is missing the phone node")
	}
}

func TestNodePositionIsAnchorPlusOffset(t *testing.T) {
	doc := testDocument()
	doc.Positions[card.PlaceName] = card.Offset{X: 6, Y: -8}
	doc.Normalize()

	html, err := New("").Page(doc, "")
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	// Front name anchor is (24, 148); the drag delta lands it at (30, 140).
	if !strings.Contains(html, "left: 30px; top: 140px;") {
		t.Fatalf("name node not placed at anchor plus offset:\n%s", html)
	}
}

func TestEmptyLogoIsOmitted(t *testing.T) {
	doc := testDocument()
	doc.Fields[card.FieldLogoURL] = ""

	html, err := New("").Page(doc, "")
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if strings.Contains(html, "node-logo") {
		t.Fatalf("empty logo still rendered a node")
	}
}

func TestAutoQRIsEmbeddedAsDataURL(t *testing.T) {
	doc := testDocument()
	doc.Fields[card.FieldQRMode] = card.QRModeVCard

	html, err := New("").Page(doc, "")
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if !strings.Contains(html, "data:image/png;base64,") {
		t.Fatalf("vcard-mode qr was not embedded inline")
	}
}

func TestUploadQRUsesStoredImage(t *testing.T) {
	doc := testDocument()
	doc.Fields[card.FieldQRMode] = card.QRModeUpload
	doc.Images.QRUpload = "https://cdn.example.com/qr/u_1.png"

	html, err := New("").Page(doc, "")
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if !strings.Contains(html, "https://cdn.example.com/qr/u_1.png") {
		t.Fatalf("upload-mode qr did not use the stored image")
	}
	if strings.Contains(html, "data:image/png;base64,") {
		t.Fatalf("upload-mode qr should not be regenerated")
	}
}

func TestMalformedColorFallsBack(t *testing.T) {
	doc := testDocument()
	doc.Fields[card.FieldNameColor] = "red; } body { display:none"

	html, err := New("").Page(doc, "")
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if !strings.Contains(html, "color: #f8fafc") {
		t.Fatalf("malformed name color did not degrade to the default")
	}
	if strings.Contains(html, "display:none") {
		t.Fatalf("malformed color leaked into the stylesheet")
	}
}

func TestFaceRejectsUnknownFace(t *testing.T) {
	if _, err := New("").Face(testDocument(), "side"); err == nil {
		t.Fatalf("expected an error for an unknown face")
	}
}
