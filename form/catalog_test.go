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

func TestComputeCatalogHashIsOrderIndependent(t *testing.T) {
	a := ComputeCatalog([]string{"B", "A"})
	b := ComputeCatalog([]string{"A", "B"})

	assert.Equal(t, a.Hash, b.Hash)
	assert.Equal(t, []string{"A", "B"}, a.Fields)
	assert.Len(t, a.Hash, CatalogHashLen)
}

func TestComputeCatalogHashChangesWithFieldSet(t *testing.T) {
	a := ComputeCatalog([]string{"A", "B"})
	b := ComputeCatalog([]string{"A", "B", "C"})

	assert.NotEqual(t, a.Hash, b.Hash)
}

func TestComputeCatalogDoesNotMutateInput(t *testing.T) {
	names := []string{"Z", "A"}
	ComputeCatalog(names)
	assert.Equal(t, []string{"Z", "A"}, names)
}

func TestInitialSystemMessageMentionsHashAndFields(t *testing.T) {
	catalog := ComputeCatalog([]string{"Name", "Email"})
	msg := InitialSystemMessage([]string{"Name", "Email"}, catalog.Hash)

	require.Contains(t, msg, catalog.Hash)
	assert.Contains(t, msg, "Name")
	assert.Contains(t, msg, "Email")
	assert.Contains(t, msg, "update_pdf_fields")
	assert.Contains(t, msg, "get_form_state")
}
