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

package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Caellwyn/gemini-realtime-voice-app/form"
	"github.com/Caellwyn/gemini-realtime-voice-app/pdfform"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fixture struct {
	server   *Server
	sessions *form.SessionManager
	storage  *form.Storage
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	storage, err := form.NewStorage(t.TempDir(), time.Hour)
	require.NoError(t, err)
	sessions := form.NewSessionManager(storage, testLogger())
	f := &fixture{
		sessions: sessions,
		storage:  storage,
		server: &Server{
			Sessions: sessions,
			Storage:  storage,
			Logger:   testLogger(),
			Extract: func(pdf []byte, filename string) (*form.Schema, error) {
				return &form.Schema{
					FormID: "form-1",
					Fields: []form.FormField{
						{CanonicalName: "Name", DisplayName: "Name", Kind: form.FieldKindText},
						{CanonicalName: "Email", DisplayName: "Email", Kind: form.FieldKindText},
					},
					Metadata: map[string]any{},
				}, nil
			},
			Fill: func(original []byte, values map[string]string) ([]byte, error) {
				return append([]byte("%PDF-filled:"), original...), nil
			},
		},
	}
	return f
}

func (f *fixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	recorder := httptest.NewRecorder()
	f.server.Routes().ServeHTTP(recorder, req)
	return recorder
}

func (f *fixture) postJSON(t *testing.T, path string, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return f.do(t, req)
}

func uploadRequest(t *testing.T, fieldName, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(fieldName, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	req := httptest.NewRequest(http.MethodPost, "/upload_form", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeJSON(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return body
}

func (f *fixture) upload(t *testing.T) string {
	t.Helper()
	recorder := f.do(t, uploadRequest(t, "file", "test.pdf", []byte("%PDF-1.7 test")))
	require.Equal(t, http.StatusOK, recorder.Code)
	return "form-1"
}

func TestUploadFormCreatesSession(t *testing.T) {
	f := newFixture(t)

	recorder := f.do(t, uploadRequest(t, "file", "test.pdf", []byte("%PDF-1.7 test")))

	require.Equal(t, http.StatusOK, recorder.Code)
	body := decodeJSON(t, recorder)
	assert.Equal(t, true, body["ok"])
	schema := body["schema"].(map[string]any)
	assert.Equal(t, "form-1", schema["form_id"])
	assert.Equal(t, 1, f.sessions.Count())
	assert.NotNil(t, f.storage.LoadOriginal("form-1"))
	assert.Equal(t, "no-store, no-cache, must-revalidate", recorder.Header().Get("Cache-Control"))
}

func TestUploadFormRejectsWrongContentType(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/upload_form", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")

	recorder := f.do(t, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, recorder.Code)
	assert.Equal(t, "bad_content_type", decodeJSON(t, recorder)["error"])
}

func TestUploadFormRejectsMissingFile(t *testing.T) {
	f := newFixture(t)

	recorder := f.do(t, uploadRequest(t, "document", "test.pdf", []byte("%PDF-1.7")))

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "no_file", decodeJSON(t, recorder)["error"])
}

func TestUploadFormRejectsOversizedFile(t *testing.T) {
	f := newFixture(t)
	f.server.MaxUploadSize = 128

	recorder := f.do(t, uploadRequest(t, "file", "big.pdf", bytes.Repeat([]byte("a"), 4096)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, recorder.Code)
	assert.Equal(t, "file_too_large", decodeJSON(t, recorder)["error"])
}

func TestUploadFormMapsExtractionErrors(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{pdfform.ErrNotPDF, "not_pdf"},
		{pdfform.ErrEncrypted, "encrypted_pdf"},
		{pdfform.ErrNotAcroForm, "not_acroform"},
		{pdfform.ErrNoFields, "no_fields"},
		{errors.New("corrupt xref table"), "parse_failed"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			f := newFixture(t)
			f.server.Extract = func([]byte, string) (*form.Schema, error) {
				return nil, tc.err
			}

			recorder := f.do(t, uploadRequest(t, "file", "test.pdf", []byte("junk")))

			assert.Equal(t, http.StatusBadRequest, recorder.Code)
			assert.Equal(t, tc.code, decodeJSON(t, recorder)["error"])
			assert.Equal(t, 0, f.sessions.Count())
		})
	}
}

func TestUploadFormReplacesExistingSession(t *testing.T) {
	f := newFixture(t)
	f.upload(t)
	require.NotNil(t, f.sessions.UpdateFields("form-1", map[string]any{"Name": "Alice"}))

	f.upload(t)

	snapshot, ok := f.sessions.Snapshot("form-1")
	require.True(t, ok)
	assert.Empty(t, snapshot.State["Name"])
	assert.Equal(t, 1, f.sessions.Count())
}

func TestUpdateFormState(t *testing.T) {
	f := newFixture(t)
	f.upload(t)

	recorder := f.postJSON(t, "/update_form_state", map[string]any{
		"form_id": "form-1",
		"updates": map[string]any{"Name": "Alice"},
	})

	require.Equal(t, http.StatusOK, recorder.Code)
	body := decodeJSON(t, recorder)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, map[string]any{"Name": "Alice"}, body["updated"])
	assert.Equal(t, false, body["complete"])
	assert.Equal(t, float64(1), body["remaining"])
}

func TestUpdateFormStateUnknownForm(t *testing.T) {
	f := newFixture(t)

	recorder := f.postJSON(t, "/update_form_state", map[string]any{
		"form_id": "missing",
		"updates": map[string]any{"Name": "Alice"},
	})

	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Equal(t, "unknown_form", decodeJSON(t, recorder)["error"])
}

func TestConfirmForm(t *testing.T) {
	f := newFixture(t)
	f.upload(t)

	recorder := f.postJSON(t, "/confirm_form", map[string]any{"form_id": "form-1"})

	require.Equal(t, http.StatusOK, recorder.Code)
	snapshot, ok := f.sessions.Snapshot("form-1")
	require.True(t, ok)
	assert.True(t, snapshot.DownloadConfirmed)
}

func TestConfirmFormUnknown(t *testing.T) {
	f := newFixture(t)

	recorder := f.postJSON(t, "/confirm_form", map[string]any{"form_id": "missing"})

	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestResetFormDeletesOneSession(t *testing.T) {
	f := newFixture(t)
	f.upload(t)

	recorder := f.postJSON(t, "/reset_form", map[string]any{"form_id": "form-1"})

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, 0, f.sessions.Count())
	assert.Nil(t, f.storage.LoadOriginal("form-1"))
}

func TestResetFormWithoutIDClearsAll(t *testing.T) {
	f := newFixture(t)
	f.upload(t)

	req := httptest.NewRequest(http.MethodPost, "/reset_form", strings.NewReader(""))
	recorder := f.do(t, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, 0, f.sessions.Count())
}

func TestDownloadFilledRequiresConfirmation(t *testing.T) {
	f := newFixture(t)
	f.upload(t)

	recorder := f.do(t, httptest.NewRequest(http.MethodGet, "/download_filled/form-1", nil))

	assert.Equal(t, http.StatusConflict, recorder.Code)
	assert.Equal(t, "incomplete", decodeJSON(t, recorder)["error"])
}

func TestDownloadFilledUnknownForm(t *testing.T) {
	f := newFixture(t)

	recorder := f.do(t, httptest.NewRequest(http.MethodGet, "/download_filled/missing", nil))

	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Equal(t, "unknown_form", decodeJSON(t, recorder)["error"])
}

func TestDownloadFilledHappyPath(t *testing.T) {
	f := newFixture(t)
	f.upload(t)
	f.postJSON(t, "/update_form_state", map[string]any{
		"form_id": "form-1",
		"updates": map[string]any{"Name": "Alice", "Email": "a@b.com"},
	})
	f.postJSON(t, "/confirm_form", map[string]any{"form_id": "form-1"})

	recorder := f.do(t, httptest.NewRequest(http.MethodGet, "/download_filled/form-1", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "application/pdf", recorder.Header().Get("Content-Type"))
	assert.Contains(t, recorder.Header().Get("Content-Disposition"), "filled_form-1.pdf")
	assert.True(t, bytes.HasPrefix(recorder.Body.Bytes(), []byte("%PDF-filled:")))

	_, stored := f.storage.FilledPath("form-1")
	assert.True(t, stored)
}

func TestDownloadFilledFillFailure(t *testing.T) {
	f := newFixture(t)
	f.upload(t)
	f.postJSON(t, "/confirm_form", map[string]any{"form_id": "form-1"})
	f.server.Fill = func([]byte, map[string]string) ([]byte, error) {
		return nil, errors.New("render failed")
	}

	recorder := f.do(t, httptest.NewRequest(http.MethodGet, "/download_filled/form-1", nil))

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Equal(t, "fill_failed", decodeJSON(t, recorder)["error"])
}

func TestDownloadFilledMissingOriginal(t *testing.T) {
	f := newFixture(t)
	f.upload(t)
	f.postJSON(t, "/confirm_form", map[string]any{"form_id": "form-1"})
	require.NoError(t, f.storage.Delete("form-1"))

	recorder := f.do(t, httptest.NewRequest(http.MethodGet, "/download_filled/form-1", nil))

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Equal(t, "missing_original", decodeJSON(t, recorder)["error"])
}

func TestFormStatus(t *testing.T) {
	f := newFixture(t)
	f.upload(t)
	f.postJSON(t, "/update_form_state", map[string]any{
		"form_id": "form-1",
		"updates": map[string]any{"Name": "Alice"},
	})

	recorder := f.do(t, httptest.NewRequest(http.MethodGet, "/form_status/form-1", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	body := decodeJSON(t, recorder)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, float64(1), body["remaining"])
	assert.Equal(t, false, body["complete"])
}

func TestFormStatusUnknownAfterExpiry(t *testing.T) {
	f := newFixture(t)
	f.upload(t)
	f.sessions.Delete("form-1")

	recorder := f.do(t, httptest.NewRequest(http.MethodGet, "/form_status/missing", nil))

	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Equal(t, "unknown_form", decodeJSON(t, recorder)["error"])
}
