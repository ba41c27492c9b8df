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

package form

import "time"

const snapshotSampleSize = 10

// Session is the authoritative field state for one uploaded form instance.
//
// State keys are always exactly the schema's canonical field names. A field
// is missing iff its state value is empty; the confirmed flag distinguishes
// "never touched" from "explicitly set" independently of value truthiness and
// is never reset by sync activity. Access is serialized by the owning
// SessionManager; Session itself is not safe for concurrent use.
type Session struct {
	FormID            string
	Schema            *Schema
	Catalog           FieldCatalog
	State             map[string]string
	Confirmed         map[string]bool
	LastActivity      time.Time
	CreatedAt         time.Time
	DownloadConfirmed bool
}

// NewSession builds a fresh session for a schema with every field absent.
func NewSession(formID string, schema *Schema) *Session {
	names := schema.OrderedFieldNames()
	state := make(map[string]string, len(names))
	confirmed := make(map[string]bool, len(names))
	for _, name := range names {
		state[name] = ""
		confirmed[name] = false
	}
	now := time.Now()
	return &Session{
		FormID:       formID,
		Schema:       schema,
		Catalog:      ComputeCatalog(names),
		State:        state,
		Confirmed:    confirmed,
		LastActivity: now,
		CreatedAt:    now,
	}
}

// Touch updates the activity timestamp, extending the session lease.
func (s *Session) Touch() {
	s.LastActivity = time.Now()
}

// IsExpired reports whether the session has been inactive longer than timeout.
func (s *Session) IsExpired(timeout time.Duration) bool {
	return time.Since(s.LastActivity) > timeout
}

// MissingFields returns the canonical names of unfilled fields, in schema
// order.
func (s *Session) MissingFields() []string {
	var missing []string
	for _, name := range s.Schema.OrderedFieldNames() {
		if s.State[name] == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// IsComplete reports whether every field has a value.
func (s *Session) IsComplete() bool {
	return len(s.MissingFields()) == 0
}

// Snapshot is a read-only view of session progress used by the query tool
// and status endpoints.
type Snapshot struct {
	FormID            string            `json:"form_id"`
	State             map[string]string `json:"state"`
	Missing           []string          `json:"missing"`
	Confirmed         map[string]bool   `json:"confirmed"`
	Complete          bool              `json:"complete"`
	CatalogHash       string            `json:"catalog_hash"`
	RemainingCount    int               `json:"remaining_count"`
	FilledCount       int               `json:"filled_count"`
	RemainingSample   []string          `json:"remaining_sample"`
	DownloadConfirmed bool              `json:"download_confirmed"`
}

// Snapshot captures the current progress of the session.
func (s *Session) Snapshot() Snapshot {
	missing := s.MissingFields()
	if missing == nil {
		missing = []string{}
	}
	state := make(map[string]string, len(s.State))
	for k, v := range s.State {
		state[k] = v
	}
	confirmed := make(map[string]bool, len(s.Confirmed))
	for k, v := range s.Confirmed {
		confirmed[k] = v
	}
	sample := missing
	if len(sample) > snapshotSampleSize {
		sample = sample[:snapshotSampleSize]
	}
	return Snapshot{
		FormID:            s.FormID,
		State:             state,
		Missing:           missing,
		Confirmed:         confirmed,
		Complete:          len(missing) == 0,
		CatalogHash:       s.Catalog.Hash,
		RemainingCount:    len(missing),
		FilledCount:       len(s.State) - len(missing),
		RemainingSample:   sample,
		DownloadConfirmed: s.DownloadConfirmed,
	}
}
