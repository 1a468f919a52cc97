package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cardsmith/api/internal/card"
	"cardsmith/api/internal/export"
	"cardsmith/api/internal/qr"
	"cardsmith/api/internal/search"
	"cardsmith/api/internal/upload"
)

type HTTPServer struct {
	service        *Service
	corsOrigin     string
	maxUploadBytes int
}

func NewHTTPServer(service *Service, corsOrigin string, maxUploadBytes int) *HTTPServer {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 5 << 20
	}
	return &HTTPServer{service: service, corsOrigin: corsOrigin, maxUploadBytes: maxUploadBytes}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/save-design" {
		var body SaveDesignInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.SaveDesign(r.Context(), body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"id":      payload.ID,
			"design":  payload,
		})
		return
	}

	parts := splitPath(r.URL.Path)

	// GET /api/get-design/{id}
	if r.Method == http.MethodGet && len(parts) == 3 && parts[0] == "api" && parts[1] == "get-design" {
		payload, err := s.service.GetDesign(r.Context(), parts[2])
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	// GET /api/designs and GET /api/designs/search
	if r.Method == http.MethodGet && r.URL.Path == "/api/designs" {
		limit := queryInt(r, "limit", 50)
		offset := queryInt(r, "offset", 0)
		summaries, err := s.service.ListDesigns(r.Context(), limit, offset)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"designs": summaries})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/designs/search" {
		q := search.Query{
			Text:   strings.TrimSpace(r.URL.Query().Get("q")),
			Limit:  queryInt(r, "limit", 20),
			Offset: queryInt(r, "offset", 0),
		}
		writeJSON(w, http.StatusOK, s.service.SearchDesigns(r.Context(), q))
		return
	}

	// DELETE /api/designs/{id}
	if r.Method == http.MethodDelete && len(parts) == 3 && parts[0] == "api" && parts[1] == "designs" {
		editKey := strings.TrimSpace(r.Header.Get("X-Edit-Key"))
		if editKey == "" {
			var body struct {
				EditKey string `json:"editKey"`
			}
			_ = decodeBody(r, &body)
			editKey = body.EditKey
		}
		if err := s.service.DeleteDesign(r.Context(), parts[2], editKey); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	// GET /api/designs/{id}/history
	if r.Method == http.MethodGet && len(parts) == 4 && parts[0] == "api" && parts[1] == "designs" && parts[3] == "history" {
		items, err := s.service.DesignHistory(r.Context(), parts[2], queryInt(r, "limit", 50))
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"revisions": items})
		return
	}

	// GET /api/designs/{id}/export/{file}
	if r.Method == http.MethodGet && len(parts) == 5 && parts[0] == "api" && parts[1] == "designs" && parts[3] == "export" {
		s.handleStoredExport(w, r, parts[2], parts[4])
		return
	}

	// GET /api/designs/{id}/revision/{hash}
	if r.Method == http.MethodGet && len(parts) == 5 && parts[0] == "api" && parts[1] == "designs" && parts[3] == "revision" {
		raw, err := s.service.DesignRevision(r.Context(), parts[2], parts[4])
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"document": raw})
		return
	}

	// GET /api/view/{id} serves the reconstructed card page.
	if r.Method == http.MethodGet && len(parts) == 3 && parts[0] == "api" && parts[1] == "view" {
		html, err := s.service.ViewerHTML(r.Context(), parts[2])
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, html)
		return
	}

	// POST /api/export/zip and POST /api/export/{format}
	if r.Method == http.MethodPost && len(parts) == 3 && parts[0] == "api" && parts[1] == "export" {
		if parts[2] == "zip" {
			s.handleExportZip(w, r)
			return
		}
		s.handleExport(w, r, export.Format(parts[2]))
		return
	}

	// POST /api/upload-image
	if r.Method == http.MethodPost && r.URL.Path == "/api/upload-image" {
		s.handleUploadImage(w, r)
		return
	}

	// Draft endpoints, keyed by editing session.
	if len(parts) == 3 && parts[0] == "api" && parts[1] == "draft" {
		sessionID := parts[2]
		switch r.Method {
		case http.MethodPut, http.MethodPost:
			var body struct {
				Document json.RawMessage `json:"document"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if err := s.service.NoteDraft(sessionID, body.Document); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]any{"queued": true})
			return
		case http.MethodGet:
			raw, savedAt, err := s.service.LoadDraft(r.Context(), sessionID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"document": raw, "savedAt": savedAt})
			return
		case http.MethodDelete:
			if err := s.service.DiscardDraft(r.Context(), sessionID); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, format export.Format) {
	var body ExportInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	face := card.Face(r.URL.Query().Get("face"))

	result, err := s.service.ExportDesign(r.Context(), body, format, face)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeDownload(w, result)
}

// handleStoredExport serves one artifact of a stored design by file name,
// e.g. /api/designs/{id}/export/card.pdf.
func (s *HTTPServer) handleStoredExport(w http.ResponseWriter, r *http.Request, id, file string) {
	var format export.Format
	switch file {
	case "card.png":
		format = export.FormatPNG
	case "card.jpg", "card.jpeg":
		format = export.FormatJPEG
	case "card.pdf":
		format = export.FormatPDF
	case "contact.vcf":
		format = export.FormatVCard
	case "qr.png":
		format = export.FormatQR
	case "card.zip":
		format = export.FormatZip
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Unknown export artifact", nil)
		return
	}
	face := card.Face(r.URL.Query().Get("face"))

	result, err := s.service.ExportDesign(r.Context(), ExportInput{ID: id}, format, face)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeDownload(w, result)
}

func (s *HTTPServer) handleExportZip(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	result, failures, err := s.service.ExportBatch(r.Context(), body.IDs)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	for _, failure := range failures {
		w.Header().Add("X-Export-Skipped", failure.Name)
	}
	writeDownload(w, result)
}

func (s *HTTPServer) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	kind := strings.TrimSpace(r.URL.Query().Get("kind"))
	contentType := r.Header.Get("Content-Type")

	r.Body = http.MaxBytesReader(w, r.Body, int64(s.maxUploadBytes))

	var data []byte
	if strings.HasPrefix(contentType, "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "multipart field 'file' is required", nil)
			return
		}
		defer file.Close()
		data, err = io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE",
				fmt.Sprintf("Upload exceeds %d bytes", s.maxUploadBytes), nil)
			return
		}
		contentType = header.Header.Get("Content-Type")
		if kind == "" {
			kind = strings.TrimSpace(r.FormValue("kind"))
		}
	} else {
		var err error
		data, err = io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE",
				fmt.Sprintf("Upload exceeds %d bytes", s.maxUploadBytes), nil)
			return
		}
	}

	url, err := s.service.UploadImage(r.Context(), kind, data, contentType)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"url": url})
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Edit-Key, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func writeDownload(w http.ResponseWriter, result *export.Result) {
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func queryInt(r *http.Request, key string, fallback int) int {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, qr.ErrNoPayload) {
		return http.StatusUnprocessableEntity, "NO_QR_PAYLOAD", "This design's QR mode has nothing to encode", nil
	}
	if errors.Is(err, export.ErrUnsupportedFormat) {
		return http.StatusBadRequest, "UNSUPPORTED_FORMAT", "Unsupported export format", nil
	}
	if errors.Is(err, export.ErrRasterDependencyMissing) {
		return http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Raster export is unavailable", nil
	}
	if errors.Is(err, upload.ErrUnsupportedContentType) {
		return http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Only image uploads are accepted", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
