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
	"strconv"
	"strings"
)

// FieldKind classifies a form field's widget type.
type FieldKind string

const (
	FieldKindText     FieldKind = "text"
	FieldKindCheckbox FieldKind = "checkbox"
	FieldKindRadio    FieldKind = "radio"
	FieldKindChoice   FieldKind = "choice"
)

// Rect is a widget bounding rectangle in PDF user-space coordinates.
type Rect struct {
	X0, Y0, X1, Y1 float64
}

// FormField describes a single extracted AcroForm field.
//
// CanonicalName is the disambiguated, stable identifier used as the
// state-mapping key; duplicates in the source PDF receive a numeric suffix at
// extraction time. DisplayName is the human/model-facing label and may repeat
// across fields. Fields are immutable after extraction.
type FormField struct {
	CanonicalName string    `json:"canonical_name"`
	DisplayName   string    `json:"display_name"`
	PageIndex     int       `json:"page_index"`
	Rect          *Rect     `json:"rect,omitempty"`
	Kind          FieldKind `json:"kind"`
	AllowedValues []string  `json:"allowed_values,omitempty"`
	GroupName     string    `json:"group_name,omitempty"`
	SpokenPrompt  string    `json:"spoken_prompt,omitempty"`
}

// Schema is the immutable field layout of one uploaded form.
type Schema struct {
	FormID   string         `json:"form_id"`
	Fields   []FormField    `json:"fields"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SchemaFromFieldNames rebuilds a minimal schema from canonical names alone,
// for callers that only receive the name list (the websocket setup message).
// A trailing _N suffix whose base also appears in the list is recognized as
// extraction-time disambiguation and the base becomes the display name, so
// alias handling behaves the same as with a full schema.
func SchemaFromFieldNames(formID string, names []string) *Schema {
	present := make(map[string]struct{}, len(names))
	for _, name := range names {
		present[name] = struct{}{}
	}
	fields := make([]FormField, len(names))
	for i, name := range names {
		display := name
		if idx := strings.LastIndex(name, "_"); idx > 0 {
			base, suffix := name[:idx], name[idx+1:]
			if n, err := strconv.Atoi(suffix); err == nil && n >= 2 {
				if _, ok := present[base]; ok {
					display = base
				}
			}
		}
		fields[i] = FormField{
			CanonicalName: name,
			DisplayName:   display,
			Kind:          FieldKindText,
		}
	}
	return &Schema{FormID: formID, Fields: fields}
}

// OrderedFieldNames returns canonical names in extraction order.
func (s *Schema) OrderedFieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.CanonicalName
	}
	return names
}
