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
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// MaxFieldValueLength bounds any stored field value.
	MaxFieldValueLength = 500

	remainingSampleSize = 8
)

// Summary is the single result contract of a field-update application. Both
// the model-facing tool response and the client notification are rendered
// from it; there is no second formatting path.
type Summary struct {
	Applied             map[string]string `json:"applied"`
	UnknownFields       []string          `json:"unknown_fields"`
	ConflictsUserLocked []string          `json:"conflicts_user_locked"`
	Unchanged           []string          `json:"unchanged"`
	RemainingSample     []string          `json:"remaining_sample"`
	RemainingEmptyCount int               `json:"remaining_empty_count"`
	FilledCount         int               `json:"filled_count"`
	Complete            bool              `json:"complete"`
	CatalogHash         string            `json:"catalog_hash,omitempty"`
	Errors              []string          `json:"errors,omitempty"`
}

// ApplyFieldUpdates applies a proposed field->value mapping onto the given
// state and confirmation maps, restricted to allowedFields.
//
// The caller upstream is a language model, so the input shape is treated as
// adversarial: nil or empty values are skipped, keys outside allowedFields
// are collected under UnknownFields, and a proposed value equal to the stored
// one is recorded under Unchanged without mutation. It never returns an
// error; every malformed entry degrades to a skip or an unknown-field record.
//
// The function mutates state and confirmed in place and has no other side
// effects; persistence and activity timestamps are the caller's concern.
func ApplyFieldUpdates(updates map[string]any, state map[string]string, confirmed map[string]bool, allowedFields []string) Summary {
	allowed := make(map[string]struct{}, len(allowedFields))
	for _, name := range allowedFields {
		allowed[name] = struct{}{}
	}

	summary := Summary{
		Applied:             map[string]string{},
		UnknownFields:       []string{},
		ConflictsUserLocked: []string{},
		Unchanged:           []string{},
	}

	for key, value := range updates {
		k := strings.TrimSpace(key)
		if k == "" {
			continue
		}
		if _, ok := allowed[k]; !ok {
			summary.UnknownFields = append(summary.UnknownFields, k)
			continue
		}
		if value == nil {
			continue
		}
		s := strings.TrimSpace(stringifyValue(value))
		if s == "" {
			continue
		}
		s = truncateValue(s)
		if state[k] == s {
			summary.Unchanged = append(summary.Unchanged, k)
			continue
		}
		state[k] = s
		confirmed[k] = true
		summary.Applied[k] = s
	}

	empty := make([]string, 0, len(allowedFields))
	for _, name := range allowedFields {
		if state[name] == "" {
			empty = append(empty, name)
		}
	}
	summary.RemainingEmptyCount = len(empty)
	summary.FilledCount = len(allowedFields) - len(empty)
	summary.Complete = len(empty) == 0
	if len(empty) > remainingSampleSize {
		empty = empty[:remainingSampleSize]
	}
	summary.RemainingSample = empty
	return summary
}

// stringifyValue coerces an arbitrary JSON-decoded value to its stored string
// form. Composite values are serialized to compact JSON rather than rejected.
// truncateValue caps a value at MaxFieldValueLength characters, never
// cutting through a multibyte rune.
func truncateValue(s string) string {
	if utf8.RuneCountInString(s) <= MaxFieldValueLength {
		return s
	}
	return string([]rune(s)[:MaxFieldValueLength])
}

func stringifyValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		if raw, err := json.Marshal(v); err == nil {
			return string(raw)
		}
		return fmt.Sprintf("%v", value)
	}
}
