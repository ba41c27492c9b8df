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

// Package relay keeps three views of form state consistent: the model's
// tool-call arguments, the server's canonical session state, and the browser
// UI. It hosts the browser-facing websocket endpoint, the tool call
// reconciliation engine, and the synchronization path to the session store.
package relay

import "encoding/json"

// ClientEnvelope is one inbound client message. Exactly one member is set;
// messages are processed strictly in arrival order.
type ClientEnvelope struct {
	Setup         *SetupMessage   `json:"setup,omitempty"`
	RealtimeInput *RealtimeInput  `json:"realtime_input,omitempty"`
	UserEdit      *UserEdit       `json:"user_edit,omitempty"`
	ConfirmForm   json.RawMessage `json:"confirm_form,omitempty"`
}

// SetupMessage must be the first message of every connection. Missing field
// names or form id is fatal for the session.
type SetupMessage struct {
	PDFFieldNames    []string       `json:"pdf_field_names"`
	PDFFormID        string         `json:"pdf_form_id"`
	VoiceName        string         `json:"voice_name,omitempty"`
	EnableVAD        bool           `json:"enable_vad,omitempty"`
	Model            string         `json:"model,omitempty"`
	GenerationConfig map[string]any `json:"generation_config,omitempty"`
}

// MediaChunk is one base64-encoded audio chunk from the browser.
type MediaChunk struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

// RealtimeInput streams user audio or text toward the model.
type RealtimeInput struct {
	MediaChunks    []MediaChunk `json:"media_chunks,omitempty"`
	Text           string       `json:"text,omitempty"`
	AudioStreamEnd bool         `json:"audio_stream_end,omitempty"`
}

// UserEdit is a manual field edit made in the browser, bypassing the model
// but flowing through the same applier path as tool calls.
type UserEdit struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// Relay→client message shapes.

// TextMessage carries model text output.
type TextMessage struct {
	Text string `json:"text"`
}

// AudioMessage carries one base64 model audio chunk.
type AudioMessage struct {
	Audio         string `json:"audio"`
	AudioMIMEType string `json:"audio_mime_type,omitempty"`
}

// FormStateMessage mirrors a full state snapshot to the client.
type FormStateMessage struct {
	FormState any `json:"form_state"`
}

// FormToolResponse notifies the client that a tool call changed fields.
type FormToolResponse struct {
	Updated     map[string]string `json:"updated"`
	Remaining   int               `json:"remaining"`
	Unknown     []string          `json:"unknown"`
	CatalogHash string            `json:"catalog_hash"`
}

type formToolResponseMessage struct {
	FormToolResponse FormToolResponse `json:"form_tool_response"`
}

// FormCompleteMessage signals every field has a value.
type FormCompleteMessage struct {
	FormComplete bool `json:"form_complete"`
}

// DownloadReadyMessage is the terminal confirmation push.
type DownloadReadyMessage struct {
	DownloadReady bool   `json:"download_ready"`
	FormID        string `json:"form_id"`
}
