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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// CatalogHashLen is the number of hex characters kept from the field-set digest.
const CatalogHashLen = 16

// FieldCatalog is an immutable snapshot of a schema's field-name set.
//
// The hash is computed over a sorted copy of the names, so two catalogs built
// from the same set of names always carry the same hash regardless of the
// on-page ordering. It is used only to detect schema drift between what the
// model was told at session start and the live session; it has no security
// purpose.
type FieldCatalog struct {
	Fields []string `json:"fields"`
	Hash   string   `json:"hash"`
}

// ComputeCatalog builds a FieldCatalog for the given field names.
func ComputeCatalog(fieldNames []string) FieldCatalog {
	canonical := slices.Clone(fieldNames)
	slices.Sort(canonical)
	raw, _ := json.Marshal(canonical)
	sum := sha256.Sum256(raw)
	return FieldCatalog{
		Fields: canonical,
		Hash:   hex.EncodeToString(sum[:])[:CatalogHashLen],
	}
}

// InitialSystemMessage renders the catalog priming text sent to the model at
// session start. Field names are listed in their original visual order, not
// the catalog's sorted order.
func InitialSystemMessage(fieldNames []string, catalogHash string) string {
	jsonList, _ := json.Marshal(fieldNames)
	var b strings.Builder
	fmt.Fprintf(&b, "PDF Form Field Catalog (hash=%s)\n", catalogHash)
	b.WriteString("Use ONLY these exact field names when calling update_pdf_fields.\n")
	b.WriteString("Field list JSON: ")
	b.Write(jsonList)
	b.WriteString("\n")
	b.WriteString("Call update_pdf_fields with 'updates' parameter as a JSON string mapping field names to values.\n")
	b.WriteString(`Example: updates = '{"FirstName": "Alice", "LastName": "Smith"}'` + "\n")
	b.WriteString("MANDATORY: Call update_pdf_fields immediately after EVERY user utterance that provides any field value(s).\n")
	b.WriteString("If you lose track of fields or values CALL get_form_state instead of guessing.\n")
	b.WriteString("Rules:\n")
	b.WriteString("- ALWAYS call update_pdf_fields when user provides field values, then ask for next field.\n")
	b.WriteString("- Update incrementally; only send fields explicitly provided by the user in that utterance.\n")
	b.WriteString("- Never invent or partially guess; ask a clarifying question instead.\n")
	b.WriteString("- Omit already correct / previously set fields.\n")
	b.WriteString("- If user provides multiple fields in one utterance you may include all of them in one update_pdf_fields call.\n")
	b.WriteString("Field names (original order, one per line):\n")
	b.WriteString(strings.Join(fieldNames, "\n"))
	return b.String()
}
