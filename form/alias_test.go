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
	"testing"

	"github.com/stretchr/testify/assert"
)

func aliasTestSchema() *Schema {
	return &Schema{
		FormID: "f1",
		Fields: []FormField{
			{CanonicalName: "FirstName", DisplayName: "First Name", Kind: FieldKindText},
			{CanonicalName: "Phone", DisplayName: "Phone", Kind: FieldKindText},
			{CanonicalName: "Phone_2", DisplayName: "Phone", Kind: FieldKindText},
		},
	}
}

func TestAliasTableResolvesUniqueDisplayName(t *testing.T) {
	table := NewAliasTable(aliasTestSchema())

	canonical, status := table.Resolve("First Name")
	assert.Equal(t, AliasResolved, status)
	assert.Equal(t, "FirstName", canonical)
}

func TestAliasTableResolvesCanonicalName(t *testing.T) {
	table := NewAliasTable(aliasTestSchema())

	canonical, status := table.Resolve("FirstName")
	assert.Equal(t, AliasResolved, status)
	assert.Equal(t, "FirstName", canonical)
}

func TestAliasTableResolvesSuffixedVariants(t *testing.T) {
	table := NewAliasTable(aliasTestSchema())

	first, status := table.Resolve("Phone #1")
	assert.Equal(t, AliasResolved, status)
	assert.Equal(t, "Phone", first)

	second, status := table.Resolve("Phone #2")
	assert.Equal(t, AliasResolved, status)
	assert.Equal(t, "Phone_2", second)
}

func TestAliasTableRefusesAmbiguousBaseLabel(t *testing.T) {
	table := NewAliasTable(aliasTestSchema())

	key, status := table.Resolve("Phone")
	assert.Equal(t, AliasAmbiguous, status)
	assert.Equal(t, "Phone", key)
}

func TestAliasTableReportsUnknownLabel(t *testing.T) {
	table := NewAliasTable(aliasTestSchema())

	key, status := table.Resolve("Fax")
	assert.Equal(t, AliasUnknown, status)
	assert.Equal(t, "Fax", key)
}

func TestAliasTableTrimsWhitespace(t *testing.T) {
	table := NewAliasTable(aliasTestSchema())

	canonical, status := table.Resolve("  First Name  ")
	assert.Equal(t, AliasResolved, status)
	assert.Equal(t, "FirstName", canonical)
}
