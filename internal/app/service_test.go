package app

import (
	"archive/zip"
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"cardsmith/api/internal/card"
	"cardsmith/api/internal/designcache"
	"cardsmith/api/internal/designrepo"
	"cardsmith/api/internal/export"
	"cardsmith/api/internal/render"
	"cardsmith/api/internal/search"
	"cardsmith/api/internal/store"
)

type fakeDesignStore struct {
	mu      sync.Mutex
	designs map[string]store.Design

	createFn func(context.Context, store.Design) (store.Design, error)
	getFn    func(context.Context, string) (store.Design, error)
}

func newFakeDesignStore() *fakeDesignStore {
	return &fakeDesignStore{designs: make(map[string]store.Design)}
}

func (f *fakeDesignStore) CreateDesign(ctx context.Context, design store.Design) (store.Design, error) {
	if f.createFn != nil {
		return f.createFn(ctx, design)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	design.CreatedAt = now
	design.UpdatedAt = now
	f.designs[design.ID] = design
	return design, nil
}

func (f *fakeDesignStore) UpdateDesignDocument(ctx context.Context, id, name string, document json.RawMessage) (store.Design, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	design, ok := f.designs[id]
	if !ok {
		return store.Design{}, sql.ErrNoRows
	}
	design.Name = name
	design.Document = document
	design.UpdatedAt = time.Now().UTC()
	f.designs[id] = design
	return design, nil
}

func (f *fakeDesignStore) GetDesign(ctx context.Context, id string) (store.Design, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	design, ok := f.designs[id]
	if !ok {
		return store.Design{}, sql.ErrNoRows
	}
	return design, nil
}

func (f *fakeDesignStore) ListDesigns(ctx context.Context, limit, offset int) ([]store.DesignSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	summaries := make([]store.DesignSummary, 0, len(f.designs))
	for _, design := range f.designs {
		summaries = append(summaries, store.DesignSummary{
			ID:        design.ID,
			Name:      design.Name,
			CreatedAt: design.CreatedAt,
			UpdatedAt: design.UpdatedAt,
		})
	}
	return summaries, nil
}

func (f *fakeDesignStore) DeleteDesign(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.designs[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.designs, id)
	return nil
}

type draftRecord struct {
	doc     *card.Document
	savedAt time.Time
}

type fakeDraftStore struct {
	mu     sync.Mutex
	drafts map[string]draftRecord
	saves  int
}

func newFakeDraftStore() *fakeDraftStore {
	return &fakeDraftStore{drafts: make(map[string]draftRecord)}
}

func (f *fakeDraftStore) SaveDraft(ctx context.Context, sessionID string, doc *card.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	f.drafts[sessionID] = draftRecord{doc: doc.Clone(), savedAt: time.Now().UTC()}
	return nil
}

func (f *fakeDraftStore) LoadDraft(ctx context.Context, sessionID string) (*card.Document, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.drafts[sessionID]
	if !ok {
		return nil, time.Time{}, designcache.ErrDraftNotFound
	}
	return record.doc.Clone(), record.savedAt, nil
}

func (f *fakeDraftStore) DeleteDraft(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.drafts, sessionID)
	return nil
}

func (f *fakeDraftStore) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

type fakeRevisionLog struct {
	mu       sync.Mutex
	ensured  []string
	messages []string
	byHash   map[string]*card.Document
}

func newFakeRevisionLog() *fakeRevisionLog {
	return &fakeRevisionLog{byHash: make(map[string]*card.Document)}
}

func (f *fakeRevisionLog) EnsureDesignRepo(designID string, doc *card.Document, author string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured = append(f.ensured, designID)
	return nil
}

func (f *fakeRevisionLog) CommitDocument(designID string, doc *card.Document, author, message string) (designrepo.RevisionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	return designrepo.RevisionInfo{Hash: "abc1234", Message: message}, nil
}

func (f *fakeRevisionLog) DocumentByHash(designID, hash string) (*card.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.byHash[hash]
	if !ok {
		return nil, errors.New("revision not found")
	}
	return doc.Clone(), nil
}

func (f *fakeRevisionLog) History(designID string, limit int) ([]designrepo.RevisionInfo, error) {
	return []designrepo.RevisionInfo{{Hash: "abc1234", Message: "Save design"}}, nil
}

type fakeSearchIndex struct {
	mu      sync.Mutex
	indexed []search.DesignRecord
	deleted []string
}

func (f *fakeSearchIndex) Search(ctx context.Context, q search.Query) search.Response {
	return search.Response{Results: []search.Result{{ID: "design_1", Name: "Indexed"}}, Total: 1, Query: q.Text}
}

func (f *fakeSearchIndex) IndexDesign(record search.DesignRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, record)
}

func (f *fakeSearchIndex) DeleteDesign(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
}

type fakeUploader struct {
	lastKind string
}

func (f *fakeUploader) Store(ctx context.Context, kind string, data []byte, contentType string) (string, error) {
	f.lastKind = kind
	return "https://cdn.example/cardsmith/" + kind + "/img_1.png", nil
}

type stubCapturer struct{}

func (stubCapturer) CapturePNG(ctx context.Context, html, selector string, scale float64) ([]byte, error) {
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.White)
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (stubCapturer) PrintPDF(ctx context.Context, html string) ([]byte, error) {
	return []byte("%PDF-1.4 stub"), nil
}

type testEnv struct {
	service   *Service
	designs   *fakeDesignStore
	drafts    *fakeDraftStore
	revisions *fakeRevisionLog
	searcher  *fakeSearchIndex
	uploads   *fakeUploader
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	renderer := render.New("https://cards.example/api/view")
	env := &testEnv{
		designs:   newFakeDesignStore(),
		drafts:    newFakeDraftStore(),
		revisions: newFakeRevisionLog(),
		searcher:  &fakeSearchIndex{},
		uploads:   &fakeUploader{},
	}
	env.service = NewService(
		nil,
		env.designs,
		env.drafts,
		env.revisions,
		env.searcher,
		env.uploads,
		export.NewService(renderer, stubCapturer{}),
		renderer,
		20*time.Millisecond,
	)
	t.Cleanup(env.service.Close)
	return env
}

func testDocumentJSON(t *testing.T, name string) json.RawMessage {
	t.Helper()
	doc := card.DefaultDocument()
	doc.Fields[card.FieldName] = name
	doc.Fields[card.FieldCompany] = "Analytical Engines Ltd"
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal document: %v", err)
	}
	return raw
}

func TestSaveDesignStampsDesignID(t *testing.T) {
	env := newTestEnv(t)

	payload, err := env.service.SaveDesign(context.Background(), SaveDesignInput{
		Name:     "Ada's card",
		Document: testDocumentJSON(t, "Ada Lovelace"),
	})
	if err != nil {
		t.Fatalf("SaveDesign: %v", err)
	}
	if payload.ID == "" {
		t.Fatal("expected a generated design id")
	}

	var doc card.Document
	if err := json.Unmarshal(payload.Document, &doc); err != nil {
		t.Fatalf("unmarshal stored document: %v", err)
	}
	if got := doc.String(card.FieldDesignID, ""); got != payload.ID {
		t.Errorf("stored document carries designId %q, want %q", got, payload.ID)
	}

	if len(env.searcher.indexed) != 1 {
		t.Fatalf("expected 1 indexed record, got %d", len(env.searcher.indexed))
	}
	if env.searcher.indexed[0].Holder != "Ada Lovelace" {
		t.Errorf("indexed holder = %q", env.searcher.indexed[0].Holder)
	}
	if len(env.revisions.ensured) != 1 {
		t.Errorf("expected revision repo init, got %d", len(env.revisions.ensured))
	}
}

func TestSaveDesignFallsBackToHolderName(t *testing.T) {
	env := newTestEnv(t)

	payload, err := env.service.SaveDesign(context.Background(), SaveDesignInput{
		Document: testDocumentJSON(t, "Grace Hopper"),
	})
	if err != nil {
		t.Fatalf("SaveDesign: %v", err)
	}
	if payload.Name != "Grace Hopper" {
		t.Errorf("name = %q, want holder name fallback", payload.Name)
	}
}

func TestSaveDesignRejectsMissingName(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.SaveDesign(context.Background(), SaveDesignInput{
		Document: testDocumentJSON(t, ""),
	})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestUpdateDesignEnforcesEditKey(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.service.SaveDesign(context.Background(), SaveDesignInput{
		Name:     "Protected",
		EditKey:  "hunter2",
		Document: testDocumentJSON(t, "Ada Lovelace"),
	})
	if err != nil {
		t.Fatalf("SaveDesign: %v", err)
	}

	_, err = env.service.SaveDesign(context.Background(), SaveDesignInput{
		ID:       created.ID,
		Name:     "Protected",
		Document: testDocumentJSON(t, "Ada Lovelace"),
	})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "EDIT_KEY_REQUIRED" {
		t.Fatalf("expected EDIT_KEY_REQUIRED, got %v", err)
	}

	_, err = env.service.SaveDesign(context.Background(), SaveDesignInput{
		ID:       created.ID,
		Name:     "Protected",
		EditKey:  "wrong",
		Document: testDocumentJSON(t, "Ada Lovelace"),
	})
	if !errors.As(err, &domainErr) || domainErr.Code != "EDIT_KEY_MISMATCH" {
		t.Fatalf("expected EDIT_KEY_MISMATCH, got %v", err)
	}

	if _, err := env.service.SaveDesign(context.Background(), SaveDesignInput{
		ID:       created.ID,
		Name:     "Protected v2",
		EditKey:  "hunter2",
		Document: testDocumentJSON(t, "Ada Lovelace"),
	}); err != nil {
		t.Fatalf("update with correct key: %v", err)
	}

	found := false
	for _, message := range env.revisions.messages {
		if message == "Save design" {
			found = true
		}
	}
	if !found {
		t.Error("expected a revision commit on update")
	}
}

func TestDeleteDesignRemovesSearchRecord(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.service.SaveDesign(context.Background(), SaveDesignInput{
		Name:     "Ephemeral",
		Document: testDocumentJSON(t, "Ada Lovelace"),
	})
	if err != nil {
		t.Fatalf("SaveDesign: %v", err)
	}

	if err := env.service.DeleteDesign(context.Background(), created.ID, ""); err != nil {
		t.Fatalf("DeleteDesign: %v", err)
	}
	if _, err := env.service.GetDesign(context.Background(), created.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows after delete, got %v", err)
	}
	if len(env.searcher.deleted) != 1 || env.searcher.deleted[0] != created.ID {
		t.Errorf("expected search deindex of %s, got %v", created.ID, env.searcher.deleted)
	}
}

func TestDesignRevisionNotFound(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.service.SaveDesign(context.Background(), SaveDesignInput{
		Name:     "Versioned",
		Document: testDocumentJSON(t, "Ada Lovelace"),
	})
	if err != nil {
		t.Fatalf("SaveDesign: %v", err)
	}

	_, err = env.service.DesignRevision(context.Background(), created.ID, "fffffff")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "REVISION_NOT_FOUND" {
		t.Fatalf("expected REVISION_NOT_FOUND, got %v", err)
	}
}

func TestNoteDraftCoalescesBursts(t *testing.T) {
	env := newTestEnv(t)

	for _, name := range []string{"draft one", "draft two", "draft three"} {
		if err := env.service.NoteDraft("session-1", testDocumentJSON(t, name)); err != nil {
			t.Fatalf("NoteDraft: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for env.drafts.saveCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := env.drafts.saveCount(); got != 1 {
		t.Fatalf("expected the burst to coalesce into 1 save, got %d", got)
	}

	doc, _, err := env.service.LoadDraft(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("LoadDraft: %v", err)
	}
	var loaded card.Document
	if err := json.Unmarshal(doc, &loaded); err != nil {
		t.Fatalf("unmarshal draft: %v", err)
	}
	if got := loaded.String(card.FieldName, ""); got != "draft three" {
		t.Errorf("persisted draft holds %q, want the last write in the burst", got)
	}
}

func TestDiscardDraftFlushesThenDeletes(t *testing.T) {
	env := newTestEnv(t)

	if err := env.service.NoteDraft("session-2", testDocumentJSON(t, "pending")); err != nil {
		t.Fatalf("NoteDraft: %v", err)
	}
	if err := env.service.DiscardDraft(context.Background(), "session-2"); err != nil {
		t.Fatalf("DiscardDraft: %v", err)
	}

	_, _, err := env.service.LoadDraft(context.Background(), "session-2")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "DRAFT_NOT_FOUND" {
		t.Fatalf("expected DRAFT_NOT_FOUND after discard, got %v", err)
	}
}

func TestExportBatchReportsMissingDesigns(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.service.SaveDesign(context.Background(), SaveDesignInput{
		Name:     "Keeper",
		Document: testDocumentJSON(t, "Ada Lovelace"),
	})
	if err != nil {
		t.Fatalf("SaveDesign: %v", err)
	}

	result, failures, err := env.service.ExportBatch(context.Background(), []string{created.ID, "design_missing"})
	if err != nil {
		t.Fatalf("ExportBatch: %v", err)
	}
	if len(failures) != 1 || failures[0].Name != "design_missing" {
		t.Fatalf("expected one failure for the missing id, got %v", failures)
	}

	reader, err := zip.NewReader(bytes.NewReader(result.Data), int64(len(result.Data)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	foundFront := false
	for _, file := range reader.File {
		if file.Name == "Keeper/front.png" {
			foundFront = true
		}
		if strings.HasPrefix(file.Name, "design_missing/") {
			t.Errorf("unexpected entry for missing design: %s", file.Name)
		}
	}
	if !foundFront {
		t.Error("expected Keeper/front.png in bundle")
	}
}

func TestExportBatchAllMissingIs404(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.service.ExportBatch(context.Background(), []string{"design_missing"})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != 404 {
		t.Fatalf("expected 404 when nothing is exportable, got %v", err)
	}
}

func TestUploadImageWithoutStorage(t *testing.T) {
	env := newTestEnv(t)
	env.service.uploads = nil

	_, err := env.service.UploadImage(context.Background(), "logo", []byte("png"), "image/png")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "UPLOADS_UNAVAILABLE" {
		t.Fatalf("expected UPLOADS_UNAVAILABLE, got %v", err)
	}
}
