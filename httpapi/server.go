// Copyright 2025 The NLP Odyssey Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package httpapi exposes the form lifecycle over HTTP: upload, status,
// state sync, confirmation, reset, and the confirmed-download endpoint. It
// also serves the browser client with caching disabled.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/Caellwyn/gemini-realtime-voice-app/form"
	"github.com/Caellwyn/gemini-realtime-voice-app/pdfform"
)

// DefaultMaxUploadSize caps uploaded PDFs at 5 MiB.
const DefaultMaxUploadSize = 5 << 20

// ExtractFunc derives a form schema from uploaded PDF bytes.
type ExtractFunc func(pdf []byte, originalFilename string) (*form.Schema, error)

// FillFunc renders session values into the original PDF.
type FillFunc func(original []byte, values map[string]string) ([]byte, error)

// Server is the HTTP boundary over the session registry and PDF storage.
type Server struct {
	Sessions      *form.SessionManager
	Storage       *form.Storage
	Logger        *slog.Logger
	Extract       ExtractFunc
	Fill          FillFunc
	MaxUploadSize int64

	// Static, when set, serves the browser client for unmatched paths.
	Static http.Handler
}

// Routes builds the request mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload_form", s.handleUpload)
	mux.HandleFunc("POST /update_form_state", s.handleUpdateFormState)
	mux.HandleFunc("POST /confirm_form", s.handleConfirmForm)
	mux.HandleFunc("POST /reset_form", s.handleResetForm)
	mux.HandleFunc("GET /download_filled/{formID}", s.handleDownloadFilled)
	mux.HandleFunc("GET /form_status/{formID}", s.handleFormStatus)
	if s.Static != nil {
		mux.Handle("GET /", s.Static)
	}
	return noCache(mux)
}

// noCache disables client caching on every response; stale form state in the
// browser is worse than the extra requests.
func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) maxUploadSize() int64 {
	if s.MaxUploadSize > 0 {
		return s.MaxUploadSize
	}
	return DefaultMaxUploadSize
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		s.writeError(w, http.StatusUnsupportedMediaType, "bad_content_type", "expected multipart/form-data")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize())
	if err := r.ParseMultipartForm(s.maxUploadSize()); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) || strings.Contains(err.Error(), "request body too large") {
			s.writeError(w, http.StatusRequestEntityTooLarge, "file_too_large",
				fmt.Sprintf("upload exceeds %d bytes", s.maxUploadSize()))
			return
		}
		s.writeError(w, http.StatusBadRequest, "bad_content_type", "malformed multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "no_file", "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	pdf, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "internal_error", "reading upload failed")
		return
	}

	schema, err := s.Extract(pdf, header.Filename)
	if err != nil {
		s.writeExtractError(w, err)
		return
	}

	if s.Storage != nil {
		if _, err := s.Storage.Create(pdf, header.Filename, schema.FormID); err != nil {
			s.Logger.Error("storing uploaded PDF failed",
				slog.String("formID", schema.FormID),
				slog.String("error", err.Error()))
			s.writeError(w, http.StatusInternalServerError, "internal_error", "storing upload failed")
			return
		}
	}

	s.Sessions.Create(schema.FormID, schema)
	s.Logger.Info("form session created",
		slog.String("formID", schema.FormID),
		slog.String("filename", header.Filename),
		slog.Int("fields", len(schema.Fields)))

	response := map[string]any{"ok": true, "schema": schema}
	if warnings := uploadWarnings(schema); len(warnings) > 0 {
		response["warnings"] = warnings
	}
	s.writeJSON(w, http.StatusOK, response)
}

func uploadWarnings(schema *form.Schema) []string {
	var warnings []string
	if capped, _ := schema.Metadata["field_cap_reached"].(bool); capped {
		warnings = append(warnings, "form has more fields than the supported maximum; extra fields were dropped")
	}
	if filtered, ok := schema.Metadata["filtered_internal_count"].(int); ok && filtered > 0 {
		warnings = append(warnings, fmt.Sprintf("%d internal PDF fields were excluded", filtered))
	}
	return warnings
}

func (s *Server) writeExtractError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pdfform.ErrNotPDF):
		s.writeError(w, http.StatusBadRequest, "not_pdf", "the uploaded file is not a PDF")
	case errors.Is(err, pdfform.ErrEncrypted):
		s.writeError(w, http.StatusBadRequest, "encrypted_pdf", "encrypted PDFs are not supported")
	case errors.Is(err, pdfform.ErrNotAcroForm):
		s.writeError(w, http.StatusBadRequest, "not_acroform", "the PDF has no fillable form")
	case errors.Is(err, pdfform.ErrNoFields):
		s.writeError(w, http.StatusBadRequest, "no_fields", "the form has no usable fields")
	default:
		s.Logger.Warn("PDF parse failed", slog.String("error", err.Error()))
		s.writeError(w, http.StatusBadRequest, "parse_failed", "the PDF could not be parsed")
	}
}

type formStateRequest struct {
	FormID  string         `json:"form_id"`
	Updates map[string]any `json:"updates"`
}

func (s *Server) handleUpdateFormState(w http.ResponseWriter, r *http.Request) {
	var req formStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FormID == "" {
		s.writeError(w, http.StatusBadRequest, "update_failed", "body must be JSON with form_id and updates")
		return
	}
	applied := s.Sessions.UpdateFields(req.FormID, req.Updates)
	if applied == nil {
		s.writeError(w, http.StatusNotFound, "unknown_form", "no session for form_id "+req.FormID)
		return
	}
	snapshot, _ := s.Sessions.Snapshot(req.FormID)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"updated":   applied,
		"complete":  snapshot.Complete,
		"remaining": snapshot.RemainingCount,
	})
}

func (s *Server) handleConfirmForm(w http.ResponseWriter, r *http.Request) {
	var req formStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FormID == "" {
		s.writeError(w, http.StatusBadRequest, "update_failed", "body must be JSON with form_id")
		return
	}
	if !s.Sessions.ConfirmDownload(req.FormID) {
		s.writeError(w, http.StatusNotFound, "unknown_form", "no session for form_id "+req.FormID)
		return
	}
	s.Logger.Info("form confirmed for download", slog.String("formID", req.FormID))
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleResetForm deletes one session when form_id is given, or every
// session otherwise. Reset is terminal: state and stored artifacts go
// together, and later references see unknown_form.
func (s *Server) handleResetForm(w http.ResponseWriter, r *http.Request) {
	var req formStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "update_failed", "body must be JSON")
		return
	}
	if req.FormID != "" {
		s.Sessions.Delete(req.FormID)
	} else {
		s.Sessions.ClearAll()
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleDownloadFilled(w http.ResponseWriter, r *http.Request) {
	formID := r.PathValue("formID")
	snapshot, ok := s.Sessions.Snapshot(formID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown_form", "no session for form_id "+formID)
		return
	}
	if !snapshot.DownloadConfirmed {
		s.writeError(w, http.StatusConflict, "incomplete", "the form has not been confirmed for download")
		return
	}

	original := s.Storage.LoadOriginal(formID)
	if original == nil {
		s.writeError(w, http.StatusInternalServerError, "missing_original", "the original PDF is no longer available")
		return
	}

	filled, err := s.Fill(original, snapshot.State)
	if err != nil {
		s.Logger.Error("filling PDF failed",
			slog.String("formID", formID),
			slog.String("error", err.Error()))
		s.writeError(w, http.StatusInternalServerError, "fill_failed", "rendering the filled PDF failed")
		return
	}
	if err := s.Storage.SaveFilled(formID, filled); err != nil {
		s.Logger.Warn("persisting filled PDF failed",
			slog.String("formID", formID),
			slog.String("error", err.Error()))
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", downloadDisposition(formID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(filled)
}

func downloadDisposition(formID string) string {
	name := "filled_" + formID + ".pdf"
	return fmt.Sprintf("attachment; filename=%q", sanitizeFilename(name))
}

func sanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '"', '\\', '/', '\n', '\r':
			return '_'
		}
		return r
	}, name)
}

func (s *Server) handleFormStatus(w http.ResponseWriter, r *http.Request) {
	formID := r.PathValue("formID")
	snapshot, ok := s.Sessions.Snapshot(formID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown_form", "no session for form_id "+formID)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"remaining": snapshot.RemainingCount,
		"complete":  snapshot.Complete,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.Logger.Warn("writing response failed", slog.String("error", err.Error()))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, map[string]any{
		"ok":      false,
		"error":   code,
		"message": message,
	})
}
