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
	"github.com/stretchr/testify/require"
)

func TestSchemaFromFieldNamesPreservesOrder(t *testing.T) {
	s := SchemaFromFieldNames("form-1", []string{"Name", "Email", "Phone"})

	assert.Equal(t, "form-1", s.FormID)
	assert.Equal(t, []string{"Name", "Email", "Phone"}, s.OrderedFieldNames())
	for _, f := range s.Fields {
		assert.Equal(t, f.CanonicalName, f.DisplayName)
		assert.Equal(t, FieldKindText, f.Kind)
	}
}

func TestSchemaFromFieldNamesRecognizesDedupeSuffix(t *testing.T) {
	s := SchemaFromFieldNames("form-1", []string{"Phone", "Phone_2", "Phone_3"})

	require.Len(t, s.Fields, 3)
	assert.Equal(t, "Phone", s.Fields[0].DisplayName)
	assert.Equal(t, "Phone", s.Fields[1].DisplayName)
	assert.Equal(t, "Phone", s.Fields[2].DisplayName)
}

func TestSchemaFromFieldNamesKeepsUnrelatedSuffixes(t *testing.T) {
	// _1 is never a dedupe suffix, and _2 without its base present is just
	// part of the PDF's own field name.
	s := SchemaFromFieldNames("form-1", []string{"Line_1", "Address_2"})

	assert.Equal(t, "Line_1", s.Fields[0].DisplayName)
	assert.Equal(t, "Address_2", s.Fields[1].DisplayName)
}

func TestSchemaFromFieldNamesRoundTripsThroughAliasTable(t *testing.T) {
	s := SchemaFromFieldNames("form-1", []string{"Phone", "Phone_2"})
	table := NewAliasTable(s)

	_, status := table.Resolve("Phone")
	assert.Equal(t, AliasAmbiguous, status)

	canonical, status := table.Resolve("Phone #1")
	assert.Equal(t, AliasResolved, status)
	assert.Equal(t, "Phone", canonical)
}
