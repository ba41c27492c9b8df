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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Caellwyn/gemini-realtime-voice-app/form"
)

func TestNewMirrorInitializesEmptyState(t *testing.T) {
	m := NewMirror("form-1", []string{"Name", "Email"})

	assert.Equal(t, "form-1", m.FormID)
	assert.Equal(t, []string{"Name", "Email"}, m.FieldNames)
	assert.NotEmpty(t, m.Catalog.Hash)
	assert.Empty(t, m.Value("Name"))
	assert.Empty(t, m.NonEmpty())
}

func TestMirrorApplyStampsCatalogHash(t *testing.T) {
	m := NewMirror("form-1", []string{"Name", "Email"})

	summary := m.Apply(map[string]any{"Name": "Alice"})

	require.Equal(t, map[string]string{"Name": "Alice"}, summary.Applied)
	assert.Equal(t, m.Catalog.Hash, summary.CatalogHash)
	assert.Equal(t, 1, summary.RemainingEmptyCount)
	assert.False(t, summary.Complete)
	assert.Equal(t, "Alice", m.Value("Name"))
}

func TestMirrorApplyIsIdempotent(t *testing.T) {
	m := NewMirror("form-1", []string{"Name"})

	first := m.Apply(map[string]any{"Name": "Alice"})
	second := m.Apply(map[string]any{"Name": "Alice"})

	assert.Len(t, first.Applied, 1)
	assert.Empty(t, second.Applied)
	assert.Equal(t, []string{"Name"}, second.Unchanged)
}

func TestMirrorNonEmptySkipsBlankFields(t *testing.T) {
	m := NewMirror("form-1", []string{"Name", "Email", "Phone"})
	m.Apply(map[string]any{"Name": "Alice", "Phone": "555"})

	assert.Equal(t, map[string]any{"Name": "Alice", "Phone": "555"}, m.NonEmpty())
}

func TestMirrorSnapshotDoesNotMutate(t *testing.T) {
	m := NewMirror("form-1", []string{"Name", "Email"})
	m.Apply(map[string]any{"Name": "Alice"})

	snapshot := m.Snapshot()

	assert.Empty(t, snapshot.Applied)
	assert.Equal(t, 1, snapshot.FilledCount)
	assert.Equal(t, 1, snapshot.RemainingEmptyCount)
	assert.Equal(t, "Alice", m.Value("Name"))
}

func TestMirrorResolveAliasOnDuplicatedNames(t *testing.T) {
	// Phone and Phone_2 share the display label "Phone": a bare "Phone"
	// must stay ambiguous rather than silently landing on one of them.
	m := NewMirror("form-1", []string{"Phone", "Phone_2"})

	_, status := m.ResolveAlias("Phone")
	assert.Equal(t, form.AliasAmbiguous, status)

	canonical, status := m.ResolveAlias("Phone #2")
	assert.Equal(t, form.AliasResolved, status)
	assert.Equal(t, "Phone_2", canonical)

	_, status = m.ResolveAlias("Fax")
	assert.Equal(t, form.AliasUnknown, status)
}
