package card

import "testing"

func findVisual(visuals []Visual, key string) *Visual {
	for i := range visuals {
		if visuals[i].Key == key {
			return &visuals[i]
		}
	}
	return nil
}

func TestEmptyLogoOmittedOnBothFaces(t *testing.T) {
	doc := sampleDocument()
	doc.Fields[FieldLogoURL] = ""
	for _, face := range []Face{FaceFront, FaceBack} {
		if v := findVisual(ResolveFace(doc, face), string(PlaceLogo)); v != nil {
			t.Errorf("empty logo field must omit the node on %s", face)
		}
	}
}

func TestSingletonAnchorPlusOffset(t *testing.T) {
	doc := sampleDocument() // logo on back at offset {10,-4}
	visuals := ResolveFace(doc, FaceBack)
	logo := findVisual(visuals, string(PlaceLogo))
	if logo == nil {
		t.Fatal("logo missing from back face")
	}
	want := Offset{X: singletonAnchors[FaceBack][PlaceLogo].X + 10, Y: singletonAnchors[FaceBack][PlaceLogo].Y - 4}
	if logo.Position() != want {
		t.Errorf("position = %+v, want %+v", logo.Position(), want)
	}
	if findVisual(ResolveFace(doc, FaceFront), string(PlaceLogo)) != nil {
		t.Error("logo placed on back must not resolve on front")
	}
}

func TestPhoneEntriesPerFace(t *testing.T) {
	doc := sampleDocument() // ph_1 front with offset, ph_2 back
	front := ResolveFace(doc, FaceFront)
	back := ResolveFace(doc, FaceBack)

	p1 := findVisual(front, "ph_1")
	if p1 == nil {
		t.Fatal("ph_1 missing on front")
	}
	wantP1 := Offset{X: phoneStack[FaceFront].X + 3, Y: phoneStack[FaceFront].Y - 2}
	if p1.Position() != wantP1 {
		t.Errorf("ph_1 position = %+v, want %+v", p1.Position(), wantP1)
	}
	p2 := findVisual(back, "ph_2")
	if p2 == nil {
		t.Fatal("ph_2 missing on back")
	}
	if p2.Position() != phoneStack[FaceBack] {
		t.Errorf("ph_2 position = %+v, want anchor %+v", p2.Position(), phoneStack[FaceBack])
	}

	// Empty-valued entries are skipped and do not consume a stack row.
	doc.Phones = append([]PhoneEntry{{ID: "ph_0", Value: "  ", Placement: FaceFront}}, doc.Phones...)
	front = ResolveFace(doc, FaceFront)
	if findVisual(front, "ph_0") != nil {
		t.Error("blank phone entry must be skipped")
	}
	if got := findVisual(front, "ph_1"); got == nil || got.Anchor != phoneStack[FaceFront] {
		t.Error("skipped entry must not shift later rows")
	}
}

func TestStyleOverridePrecedence(t *testing.T) {
	doc := DefaultDocument()
	doc.Fields[FieldSocialColor] = "#e6f0f7"
	doc.SocialLinks = []SocialEntry{
		{ID: "sl_a", Platform: "github", Value: "one", Placement: FaceFront,
			Style: &StyleOverride{Color: "#112233", Size: 12}},
		{ID: "sl_b", Platform: "twitter", Value: "two", Placement: FaceFront},
		// An override set to the section default still counts as an override.
		{ID: "sl_c", Platform: "bluesky", Value: "three", Placement: FaceFront,
			Style: &StyleOverride{Color: "#e6f0f7", Size: 12}},
	}
	visuals := ResolveFace(doc, FaceFront)
	if v := findVisual(visuals, "sl_a"); v == nil || v.Color != "#112233" {
		t.Errorf("override color not applied: %+v", v)
	}
	if v := findVisual(visuals, "sl_b"); v == nil || v.Color != "#e6f0f7" {
		t.Errorf("sibling without override must use section color: %+v", v)
	}
	if v := findVisual(visuals, "sl_c"); v == nil || v.Color != "#e6f0f7" {
		t.Errorf("explicit override may equal the section default: %+v", v)
	}
}

func TestMalformedColorDegradesToDefault(t *testing.T) {
	doc := sampleDocument()
	doc.Fields[FieldTaglineCol] = "not-a-color"
	visuals := ResolveFace(doc, FaceFront)
	tagline := findVisual(visuals, string(PlaceTagline))
	if tagline == nil {
		t.Fatal("bad tagline color must not drop the tagline node")
	}
	if tagline.Color != "#cbd5e1" {
		t.Errorf("tagline color = %q, want default", tagline.Color)
	}
	// Other nodes are unaffected.
	if findVisual(visuals, string(PlaceName)) == nil {
		t.Error("name node must still render")
	}
}

func TestResolveQRModes(t *testing.T) {
	doc := DefaultDocument()

	spec := ResolveQR(doc)
	if spec.Mode != QRModeVCard || !spec.NeedsPayload {
		t.Errorf("default mode = %+v, want auto vcard", spec)
	}

	doc.Fields[FieldQRMode] = QRModeURL
	doc.Fields[FieldQRURL] = "https://example.com/me"
	spec = ResolveQR(doc)
	if spec.NeedsPayload || spec.EncodeTarget != "https://example.com/me" {
		t.Errorf("url mode = %+v", spec)
	}

	doc.Fields[FieldQRMode] = QRModeUpload
	doc.Images.QRUpload = "https://img.example/qr.png"
	spec = ResolveQR(doc)
	if spec.ImageURL != "https://img.example/qr.png" || spec.NeedsPayload {
		t.Errorf("upload mode = %+v", spec)
	}

	// Viewer mode without a saved id falls back to vcard.
	doc.Fields[FieldQRMode] = QRModeViewer
	spec = ResolveQR(doc)
	if spec.Mode != QRModeVCard {
		t.Errorf("viewer mode without design id = %+v", spec)
	}
	doc.Fields[FieldDesignID] = "design_abc"
	spec = ResolveQR(doc)
	if spec.Mode != QRModeViewer || !spec.NeedsPayload {
		t.Errorf("viewer mode with design id = %+v", spec)
	}

	// Upload mode with no uploaded image omits the QR node entirely.
	doc.Fields[FieldQRMode] = QRModeUpload
	doc.Images.QRUpload = ""
	doc.Placements[PlaceQR] = FaceBack
	if findVisual(ResolveFace(doc, FaceBack), string(PlaceQR)) != nil {
		t.Error("upload mode with no image must omit the QR node")
	}
}

func TestBackgroundResolution(t *testing.T) {
	doc := DefaultDocument()
	doc.Fields[FieldFrontBgColor1] = "#101010"
	doc.Fields[FieldFrontBgColor2] = "zzz"
	doc.Fields[FieldFrontBgOpacity] = 0.5
	doc.Images.FrontBackground = "https://img.example/bg.jpg"

	bg := ResolveBackground(doc, FaceFront)
	if bg.ColorTop != "#101010" {
		t.Errorf("ColorTop = %q", bg.ColorTop)
	}
	if bg.ColorBottom != "#1e293b" {
		t.Errorf("malformed bottom color must fall back, got %q", bg.ColorBottom)
	}
	if bg.Opacity != 0.5 || bg.ImageURL == "" {
		t.Errorf("background = %+v", bg)
	}

	doc.Fields[FieldBackBgOpacity] = 9.0
	if back := ResolveBackground(doc, FaceBack); back.Opacity != 1 {
		t.Errorf("out-of-range opacity must clamp to 1, got %v", back.Opacity)
	}
}
