package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"cardsmith/api/internal/card"
	"cardsmith/api/internal/designcache"
	"cardsmith/api/internal/designrepo"
	"cardsmith/api/internal/export"
	"cardsmith/api/internal/history"
	"cardsmith/api/internal/render"
	"cardsmith/api/internal/search"
	"cardsmith/api/internal/statesync"
	"cardsmith/api/internal/store"
	"cardsmith/api/internal/util"
)

// DesignStore is the persistence surface the service needs.
type DesignStore interface {
	CreateDesign(ctx context.Context, design store.Design) (store.Design, error)
	UpdateDesignDocument(ctx context.Context, id, name string, document json.RawMessage) (store.Design, error)
	GetDesign(ctx context.Context, id string) (store.Design, error)
	ListDesigns(ctx context.Context, limit, offset int) ([]store.DesignSummary, error)
	DeleteDesign(ctx context.Context, id string) error
}

// DraftStore holds in-progress documents keyed by editing session.
type DraftStore interface {
	SaveDraft(ctx context.Context, sessionID string, doc *card.Document) error
	LoadDraft(ctx context.Context, sessionID string) (*card.Document, time.Time, error)
	DeleteDraft(ctx context.Context, sessionID string) error
}

// RevisionLog records every saved version of a design.
type RevisionLog interface {
	EnsureDesignRepo(designID string, doc *card.Document, author string) error
	CommitDocument(designID string, doc *card.Document, author, message string) (designrepo.RevisionInfo, error)
	DocumentByHash(designID, hash string) (*card.Document, error)
	History(designID string, limit int) ([]designrepo.RevisionInfo, error)
}

// SearchIndex is the gallery search facade.
type SearchIndex interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexDesign(record search.DesignRecord)
	DeleteDesign(id string)
}

// Uploader stores user imagery and returns its public URL.
type Uploader interface {
	Store(ctx context.Context, kind string, data []byte, contentType string) (string, error)
}

type Service struct {
	db        *sql.DB
	designs   DesignStore
	drafts    DraftStore
	revisions RevisionLog
	searcher  SearchIndex
	uploads   Uploader
	exporter  *export.Service
	renderer  *render.Renderer

	autosaveWindow time.Duration
	saverMu        sync.Mutex
	draftSavers    map[string]*history.Autosave
}

func NewService(
	db *sql.DB,
	designs DesignStore,
	drafts DraftStore,
	revisions RevisionLog,
	searcher SearchIndex,
	uploads Uploader,
	exporter *export.Service,
	renderer *render.Renderer,
	autosaveWindow time.Duration,
) *Service {
	if autosaveWindow <= 0 {
		autosaveWindow = 800 * time.Millisecond
	}
	return &Service{
		db:             db,
		designs:        designs,
		drafts:         drafts,
		revisions:      revisions,
		searcher:       searcher,
		uploads:        uploads,
		exporter:       exporter,
		renderer:       renderer,
		autosaveWindow: autosaveWindow,
		draftSavers:    make(map[string]*history.Autosave),
	}
}

func (s *Service) Ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

// Close flushes pending draft writes.
func (s *Service) Close() {
	s.saverMu.Lock()
	savers := make([]*history.Autosave, 0, len(s.draftSavers))
	for _, saver := range s.draftSavers {
		savers = append(savers, saver)
	}
	s.draftSavers = make(map[string]*history.Autosave)
	s.saverMu.Unlock()
	for _, saver := range savers {
		saver.Close()
	}
}

// SaveDesignInput is the save-design request body.
type SaveDesignInput struct {
	ID       string          `json:"id,omitempty"`
	Name     string          `json:"name"`
	EditKey  string          `json:"editKey,omitempty"`
	Document json.RawMessage `json:"document"`
}

// DesignPayload is the design representation handed to clients.
type DesignPayload struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Document  json.RawMessage `json:"document"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func decodeDocument(raw json.RawMessage) (*card.Document, error) {
	if len(raw) == 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "document is required", nil)
	}
	var doc card.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, domainError(http.StatusBadRequest, "INVALID_DOCUMENT", "document is not valid JSON", nil)
	}
	doc.Normalize()
	return &doc, nil
}

func encodeDocument(doc *card.Document) (json.RawMessage, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return raw, nil
}

// SaveDesign creates or updates a stored design. The saved document always
// carries its own design id, so a viewer-mode QR can be regenerated from
// the document alone.
func (s *Service) SaveDesign(ctx context.Context, input SaveDesignInput) (DesignPayload, error) {
	doc, err := decodeDocument(input.Document)
	if err != nil {
		return DesignPayload{}, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = strings.TrimSpace(doc.String(card.FieldName, ""))
	}
	if name == "" {
		return DesignPayload{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}

	if strings.TrimSpace(input.ID) == "" {
		return s.createDesign(ctx, name, input.EditKey, doc)
	}
	return s.updateDesign(ctx, strings.TrimSpace(input.ID), name, input.EditKey, doc)
}

func (s *Service) createDesign(ctx context.Context, name, editKey string, doc *card.Document) (DesignPayload, error) {
	id := util.NewID("design")
	doc.Fields[card.FieldDesignID] = id

	var keyHash string
	if editKey != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(editKey), bcrypt.DefaultCost)
		if err != nil {
			return DesignPayload{}, fmt.Errorf("hash edit key: %w", err)
		}
		keyHash = string(hashed)
	}

	raw, err := encodeDocument(doc)
	if err != nil {
		return DesignPayload{}, err
	}

	design, err := s.designs.CreateDesign(ctx, store.Design{
		ID:          id,
		Name:        name,
		Document:    raw,
		EditKeyHash: keyHash,
	})
	if err != nil {
		return DesignPayload{}, fmt.Errorf("create design: %w", err)
	}

	if s.revisions != nil {
		if err := s.revisions.EnsureDesignRepo(id, doc, name); err != nil {
			log.Printf("app: revision log init for %s: %v", id, err)
		}
	}
	s.indexDesign(design.ID, design.Name, doc, design.UpdatedAt)

	return DesignPayload{
		ID:        design.ID,
		Name:      design.Name,
		Document:  design.Document,
		CreatedAt: design.CreatedAt,
		UpdatedAt: design.UpdatedAt,
	}, nil
}

func (s *Service) updateDesign(ctx context.Context, id, name, editKey string, doc *card.Document) (DesignPayload, error) {
	existing, err := s.designs.GetDesign(ctx, id)
	if err != nil {
		return DesignPayload{}, err
	}
	if err := verifyEditKey(existing.EditKeyHash, editKey); err != nil {
		return DesignPayload{}, err
	}

	doc.Fields[card.FieldDesignID] = id
	raw, err := encodeDocument(doc)
	if err != nil {
		return DesignPayload{}, err
	}

	design, err := s.designs.UpdateDesignDocument(ctx, id, name, raw)
	if err != nil {
		return DesignPayload{}, err
	}

	if s.revisions != nil {
		if err := s.revisions.EnsureDesignRepo(id, doc, name); err != nil {
			log.Printf("app: revision log init for %s: %v", id, err)
		}
		if _, err := s.revisions.CommitDocument(id, doc, name, "Save design"); err != nil {
			log.Printf("app: revision commit for %s: %v", id, err)
		}
	}
	s.indexDesign(design.ID, design.Name, doc, design.UpdatedAt)

	return DesignPayload{
		ID:        design.ID,
		Name:      design.Name,
		Document:  design.Document,
		CreatedAt: design.CreatedAt,
		UpdatedAt: design.UpdatedAt,
	}, nil
}

func verifyEditKey(hash, key string) error {
	if hash == "" {
		return nil
	}
	if key == "" {
		return domainError(http.StatusUnauthorized, "EDIT_KEY_REQUIRED", "This design requires its edit key", nil)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
		return domainError(http.StatusUnauthorized, "EDIT_KEY_MISMATCH", "Edit key does not match", nil)
	}
	return nil
}

func (s *Service) indexDesign(id, name string, doc *card.Document, updatedAt time.Time) {
	if s.searcher == nil {
		return
	}
	s.searcher.IndexDesign(search.DesignRecord{
		ID:      id,
		Name:    name,
		Holder:  doc.String(card.FieldName, ""),
		Company: doc.String(card.FieldCompany, ""),
		Tagline: doc.String(card.FieldTagline, ""),
		Updated: updatedAt.Unix(),
	})
}

// GetDesign loads one stored design.
func (s *Service) GetDesign(ctx context.Context, id string) (DesignPayload, error) {
	design, err := s.designs.GetDesign(ctx, id)
	if err != nil {
		return DesignPayload{}, err
	}
	return DesignPayload{
		ID:        design.ID,
		Name:      design.Name,
		Document:  design.Document,
		CreatedAt: design.CreatedAt,
		UpdatedAt: design.UpdatedAt,
	}, nil
}

// ListDesigns returns gallery rows.
func (s *Service) ListDesigns(ctx context.Context, limit, offset int) ([]store.DesignSummary, error) {
	return s.designs.ListDesigns(ctx, limit, offset)
}

// SearchDesigns queries the gallery search.
func (s *Service) SearchDesigns(ctx context.Context, q search.Query) search.Response {
	if s.searcher == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.searcher.Search(ctx, q)
}

// DeleteDesign removes a stored design after checking its edit key.
func (s *Service) DeleteDesign(ctx context.Context, id, editKey string) error {
	design, err := s.designs.GetDesign(ctx, id)
	if err != nil {
		return err
	}
	if err := verifyEditKey(design.EditKeyHash, editKey); err != nil {
		return err
	}
	if err := s.designs.DeleteDesign(ctx, id); err != nil {
		return err
	}
	if s.searcher != nil {
		s.searcher.DeleteDesign(id)
	}
	return nil
}

// DesignHistory lists a design's saved revisions, newest first.
func (s *Service) DesignHistory(ctx context.Context, id string, limit int) ([]designrepo.RevisionInfo, error) {
	if _, err := s.designs.GetDesign(ctx, id); err != nil {
		return nil, err
	}
	if s.revisions == nil {
		return []designrepo.RevisionInfo{}, nil
	}
	items, err := s.revisions.History(id, limit)
	if err != nil {
		return nil, fmt.Errorf("design history: %w", err)
	}
	return items, nil
}

// DesignRevision returns the design document as of one revision.
func (s *Service) DesignRevision(ctx context.Context, id, hash string) (json.RawMessage, error) {
	if _, err := s.designs.GetDesign(ctx, id); err != nil {
		return nil, err
	}
	if s.revisions == nil {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Revision history is not enabled", nil)
	}
	doc, err := s.revisions.DocumentByHash(id, hash)
	if err != nil {
		return nil, domainError(http.StatusNotFound, "REVISION_NOT_FOUND", "Revision not found", nil)
	}
	return encodeDocument(doc)
}

// ViewerHTML reconstructs a stored design as a standalone page. The viewer
// never sees the editing surface; the page is rebuilt from the document
// alone.
func (s *Service) ViewerHTML(ctx context.Context, id string) (string, error) {
	design, err := s.designs.GetDesign(ctx, id)
	if err != nil {
		return "", err
	}
	doc, err := decodeDocument(design.Document)
	if err != nil {
		return "", err
	}
	html, err := s.renderer.Page(doc, design.Name)
	if err != nil {
		return "", fmt.Errorf("render viewer page: %w", err)
	}
	return html, nil
}

// ExportInput selects what to export: a stored design by id, or a raw
// document straight from the editor.
type ExportInput struct {
	ID       string          `json:"id,omitempty"`
	Document json.RawMessage `json:"document,omitempty"`
}

func (s *Service) resolveExportDocument(ctx context.Context, input ExportInput) (*card.Document, string, error) {
	if strings.TrimSpace(input.ID) != "" {
		design, err := s.designs.GetDesign(ctx, strings.TrimSpace(input.ID))
		if err != nil {
			return nil, "", err
		}
		doc, err := decodeDocument(design.Document)
		if err != nil {
			return nil, "", err
		}
		return doc, design.Name, nil
	}
	doc, err := decodeDocument(input.Document)
	if err != nil {
		return nil, "", err
	}
	return doc, doc.String(card.FieldName, "card"), nil
}

// ExportDesign produces one artifact for one design.
func (s *Service) ExportDesign(ctx context.Context, input ExportInput, format export.Format, face card.Face) (*export.Result, error) {
	doc, name, err := s.resolveExportDocument(ctx, input)
	if err != nil {
		return nil, err
	}
	result, err := s.exporter.Export(ctx, doc, export.Request{Format: format, Face: face, Title: name})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ExportBatch bundles several stored designs into one archive. The batch
// runs through a synchronizer over a fresh in-memory surface, so per-item
// capture failures leave the bundle's other items intact.
func (s *Service) ExportBatch(ctx context.Context, ids []string) (*export.Result, []export.BatchError, error) {
	if len(ids) == 0 {
		return nil, nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "ids is required", nil)
	}

	items := make([]export.BatchItem, 0, len(ids))
	var failures []export.BatchError
	for _, id := range ids {
		design, err := s.designs.GetDesign(ctx, id)
		if err != nil {
			failures = append(failures, export.BatchError{Name: id, Err: err})
			continue
		}
		doc, err := decodeDocument(design.Document)
		if err != nil {
			failures = append(failures, export.BatchError{Name: design.Name, Err: err})
			continue
		}
		items = append(items, export.BatchItem{Name: design.Name, Doc: doc})
	}
	if len(items) == 0 {
		return nil, failures, domainError(http.StatusNotFound, "NOT_FOUND", "No exportable designs", nil)
	}

	syncer := statesync.New(statesync.NewMemorySurface(), history.NewLog(history.DefaultDepth))
	result, batchFailures, err := s.exporter.Batch(ctx, syncer, items)
	failures = append(failures, batchFailures...)
	if err != nil {
		return nil, failures, fmt.Errorf("batch export: %w", err)
	}
	return result, failures, nil
}

// NoteDraft queues a draft write behind the session's debounce window.
// Rapid-fire edits coalesce into one Redis write per pause; the last state
// in a burst is the one persisted.
func (s *Service) NoteDraft(sessionID string, raw json.RawMessage) error {
	doc, err := decodeDocument(raw)
	if err != nil {
		return err
	}
	if s.drafts == nil {
		return domainError(http.StatusServiceUnavailable, "DRAFTS_UNAVAILABLE", "Draft storage is not configured", nil)
	}
	s.draftSaver(sessionID).Note(doc)
	return nil
}

func (s *Service) draftSaver(sessionID string) *history.Autosave {
	s.saverMu.Lock()
	defer s.saverMu.Unlock()
	saver, ok := s.draftSavers[sessionID]
	if ok {
		return saver
	}
	saver = history.NewAutosave(s.autosaveWindow, func(doc *card.Document) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.drafts.SaveDraft(ctx, sessionID, doc); err != nil {
			log.Printf("app: save draft %s: %v", sessionID, err)
		}
	})
	s.draftSavers[sessionID] = saver
	return saver
}

// LoadDraft returns a session's draft document.
func (s *Service) LoadDraft(ctx context.Context, sessionID string) (json.RawMessage, time.Time, error) {
	if s.drafts == nil {
		return nil, time.Time{}, domainError(http.StatusServiceUnavailable, "DRAFTS_UNAVAILABLE", "Draft storage is not configured", nil)
	}
	doc, savedAt, err := s.drafts.LoadDraft(ctx, sessionID)
	if err != nil {
		if errors.Is(err, designcache.ErrDraftNotFound) {
			return nil, time.Time{}, domainError(http.StatusNotFound, "DRAFT_NOT_FOUND", "No draft for this session", nil)
		}
		return nil, time.Time{}, err
	}
	raw, err := encodeDocument(doc)
	if err != nil {
		return nil, time.Time{}, err
	}
	return raw, savedAt, nil
}

// DiscardDraft drops a session's pending and stored draft.
func (s *Service) DiscardDraft(ctx context.Context, sessionID string) error {
	s.saverMu.Lock()
	saver, ok := s.draftSavers[sessionID]
	if ok {
		delete(s.draftSavers, sessionID)
	}
	s.saverMu.Unlock()
	if ok {
		saver.Close()
	}
	if s.drafts == nil {
		return nil
	}
	return s.drafts.DeleteDraft(ctx, sessionID)
}

// UploadImage stores one user image and returns its public URL.
func (s *Service) UploadImage(ctx context.Context, kind string, data []byte, contentType string) (string, error) {
	if s.uploads == nil {
		return "", domainError(http.StatusServiceUnavailable, "UPLOADS_UNAVAILABLE", "Upload storage is not configured", nil)
	}
	if len(data) == 0 {
		return "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "empty upload", nil)
	}
	if strings.TrimSpace(kind) == "" {
		kind = "image"
	}
	url, err := s.uploads.Store(ctx, kind, data, contentType)
	if err != nil {
		return "", err
	}
	return url, nil
}
