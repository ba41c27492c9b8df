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

import (
	"fmt"
	"strings"
)

// AliasStatus reports the outcome of resolving a model-supplied field label.
type AliasStatus int

const (
	// AliasResolved means the label mapped to exactly one canonical field.
	AliasResolved AliasStatus = iota
	// AliasAmbiguous means the label is a display name shared by several
	// fields; resolution refuses to guess.
	AliasAmbiguous
	// AliasUnknown means the label matched nothing in the schema.
	AliasUnknown
)

// AliasTable translates model-facing display labels into canonical field
// names. It is built fresh per session from the schema and is read-only
// afterwards.
type AliasTable struct {
	aliases   map[string]string
	ambiguous map[string]struct{}
	canonical map[string]struct{}
}

// NewAliasTable derives the alias table for a schema.
//
// Unique display names map directly to their canonical field. A display name
// shared by several fields gets " #N" suffixed variants ("Phone #1",
// "Phone #2", ...), and the bare base label is marked ambiguous: a model
// sending it will see the key come back as unknown rather than have the
// engine pick a field for it.
func NewAliasTable(s *Schema) *AliasTable {
	counts := make(map[string]int, len(s.Fields))
	for _, f := range s.Fields {
		if f.DisplayName != "" {
			counts[f.DisplayName]++
		}
	}

	t := &AliasTable{
		aliases:   make(map[string]string, len(s.Fields)),
		ambiguous: make(map[string]struct{}),
		canonical: make(map[string]struct{}, len(s.Fields)),
	}
	seen := make(map[string]int, len(s.Fields))
	for _, f := range s.Fields {
		t.canonical[f.CanonicalName] = struct{}{}
		if f.DisplayName == "" {
			continue
		}
		if counts[f.DisplayName] == 1 {
			t.aliases[f.DisplayName] = f.CanonicalName
			continue
		}
		seen[f.DisplayName]++
		t.aliases[fmt.Sprintf("%s #%d", f.DisplayName, seen[f.DisplayName])] = f.CanonicalName
		t.ambiguous[f.DisplayName] = struct{}{}
	}
	return t
}

// Resolve maps a model-supplied key to a canonical field name.
//
// Resolution order: ambiguous display base (refused), exact alias, exact
// canonical name. Anything else is unknown and the raw key is returned
// unchanged so the caller can report it.
func (t *AliasTable) Resolve(key string) (string, AliasStatus) {
	k := strings.TrimSpace(key)
	if _, ok := t.ambiguous[k]; ok {
		return k, AliasAmbiguous
	}
	if canonical, ok := t.aliases[k]; ok {
		return canonical, AliasResolved
	}
	if _, ok := t.canonical[k]; ok {
		return k, AliasResolved
	}
	return k, AliasUnknown
}
