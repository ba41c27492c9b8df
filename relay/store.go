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

package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Caellwyn/gemini-realtime-voice-app/form"
)

// SessionStore is the relay's access path to the authoritative session
// registry. Exactly one implementation is selected at startup: DirectStore
// when the HTTP server and the relay share a process, RemoteStore when they
// do not.
type SessionStore interface {
	UpdateFields(ctx context.Context, formID string, updates map[string]any) (map[string]string, error)
	ConfirmDownload(ctx context.Context, formID string) error
	// Direct reports whether updates land in the registry synchronously,
	// making debounced full resyncs redundant.
	Direct() bool
}

// DirectStore accesses the session manager in-process.
type DirectStore struct {
	Sessions *form.SessionManager
}

func (s *DirectStore) UpdateFields(_ context.Context, formID string, updates map[string]any) (map[string]string, error) {
	applied := s.Sessions.UpdateFields(formID, updates)
	if applied == nil {
		return nil, fmt.Errorf("unknown form session %q", formID)
	}
	return applied, nil
}

func (s *DirectStore) ConfirmDownload(_ context.Context, formID string) error {
	if !s.Sessions.ConfirmDownload(formID) {
		return fmt.Errorf("unknown form session %q", formID)
	}
	return nil
}

func (s *DirectStore) Direct() bool { return true }

// DefaultRemoteSyncTimeout bounds one remote sync request so a slow store
// never stalls the conversation loop.
const DefaultRemoteSyncTimeout = 3 * time.Second

// RemoteStore pushes updates to the HTTP server's /update_form_state endpoint
// in another process. Calls are best effort; the caller treats the mirror as
// the fallback source of truth for the turn.
type RemoteStore struct {
	BaseURL string
	Client  *http.Client
}

// NewRemoteStore builds a remote store against baseURL (e.g.
// "http://localhost:8000").
func NewRemoteStore(baseURL string) *RemoteStore {
	return &RemoteStore{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: DefaultRemoteSyncTimeout},
	}
}

func (s *RemoteStore) UpdateFields(ctx context.Context, formID string, updates map[string]any) (map[string]string, error) {
	body, err := json.Marshal(map[string]any{
		"form_id": formID,
		"updates": updates,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/update_form_state", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("update_form_state returned status %d", resp.StatusCode)
	}
	var result struct {
		OK      bool              `json:"ok"`
		Updated map[string]string `json:"updated"`
		Error   string            `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if !result.OK {
		return nil, fmt.Errorf("update_form_state failed: %s", result.Error)
	}
	return result.Updated, nil
}

func (s *RemoteStore) ConfirmDownload(ctx context.Context, formID string) error {
	body, err := json.Marshal(map[string]any{"form_id": formID})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/confirm_form", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("confirm_form returned status %d", resp.StatusCode)
	}
	return nil
}

func (s *RemoteStore) Direct() bool { return false }
