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
	"sync"

	"github.com/Caellwyn/gemini-realtime-voice-app/form"
)

// Mirror is the per-connection view of field state. Every update from this
// connection (tool call or manual edit) applies here first; the session store
// is brought up to date afterwards through the sync manager. Within one turn
// the mirror is the source of truth for what the model was told.
//
// Tool calls arrive on the model listener goroutine while manual edits arrive
// on the client receive loop, and the sync manager's debounce goroutine reads
// the state for full resyncs, so all state access goes through the mutex.
type Mirror struct {
	FormID     string
	FieldNames []string
	Catalog    form.FieldCatalog

	mu        sync.Mutex
	state     map[string]string
	confirmed map[string]bool
	aliases   *form.AliasTable
}

// NewMirror builds a connection mirror from the setup message's field list.
func NewMirror(formID string, fieldNames []string) *Mirror {
	schema := form.SchemaFromFieldNames(formID, fieldNames)
	m := &Mirror{
		FormID:     formID,
		FieldNames: schema.OrderedFieldNames(),
		Catalog:    form.ComputeCatalog(fieldNames),
		state:      make(map[string]string, len(fieldNames)),
		confirmed:  make(map[string]bool, len(fieldNames)),
		aliases:    form.NewAliasTable(schema),
	}
	for _, name := range m.FieldNames {
		m.state[name] = ""
		m.confirmed[name] = false
	}
	return m
}

// ResolveAlias maps a model-supplied field label to its canonical name.
func (m *Mirror) ResolveAlias(key string) (string, form.AliasStatus) {
	return m.aliases.Resolve(key)
}

// Apply runs updates through the field update applier against the mirror
// state and stamps the catalog hash onto the summary.
func (m *Mirror) Apply(updates map[string]any) form.Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	summary := form.ApplyFieldUpdates(updates, m.state, m.confirmed, m.FieldNames)
	summary.CatalogHash = m.Catalog.Hash
	return summary
}

// Value returns the mirrored value for a canonical field name.
func (m *Mirror) Value(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state[name]
}

// NonEmpty returns every field that currently has a value, the payload of a
// full resync.
func (m *Mirror) NonEmpty() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]any, len(m.state))
	for name, value := range m.state {
		if value != "" {
			out[name] = value
		}
	}
	return out
}

// Snapshot renders the current mirror state for a form_state notification.
func (m *Mirror) Snapshot() form.Summary {
	return m.Apply(map[string]any{})
}
