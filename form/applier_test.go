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
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestState(names ...string) (map[string]string, map[string]bool) {
	state := make(map[string]string, len(names))
	confirmed := make(map[string]bool, len(names))
	for _, name := range names {
		state[name] = ""
		confirmed[name] = false
	}
	return state, confirmed
}

func TestApplyFieldUpdatesAppliesValidFields(t *testing.T) {
	state, confirmed := newTestState("Name", "Email")

	summary := ApplyFieldUpdates(map[string]any{"Name": "Alice"}, state, confirmed, []string{"Name", "Email"})

	assert.Equal(t, map[string]string{"Name": "Alice"}, summary.Applied)
	assert.Empty(t, summary.UnknownFields)
	assert.False(t, summary.Complete)
	assert.Equal(t, 1, summary.RemainingEmptyCount)
	assert.Equal(t, 1, summary.FilledCount)
	assert.Equal(t, []string{"Email"}, summary.RemainingSample)
	assert.Equal(t, "Alice", state["Name"])
	assert.True(t, confirmed["Name"])
	assert.False(t, confirmed["Email"])
}

func TestApplyFieldUpdatesIsIdempotent(t *testing.T) {
	state, confirmed := newTestState("Name")
	allowed := []string{"Name"}

	first := ApplyFieldUpdates(map[string]any{"Name": "Alice"}, state, confirmed, allowed)
	require.Equal(t, map[string]string{"Name": "Alice"}, first.Applied)

	second := ApplyFieldUpdates(map[string]any{"Name": "Alice"}, state, confirmed, allowed)
	assert.Empty(t, second.Applied)
	assert.Equal(t, []string{"Name"}, second.Unchanged)
	assert.Equal(t, "Alice", state["Name"])
	assert.True(t, second.Complete)
}

func TestApplyFieldUpdatesUnknownFieldIsolation(t *testing.T) {
	state, confirmed := newTestState("Name")

	summary := ApplyFieldUpdates(map[string]any{
		"Name": "Alice",
		"Nmae": "Bob",
	}, state, confirmed, []string{"Name"})

	assert.Equal(t, map[string]string{"Name": "Alice"}, summary.Applied)
	assert.Equal(t, []string{"Nmae"}, summary.UnknownFields)
	assert.True(t, summary.Complete)
}

func TestApplyFieldUpdatesUnknownOnlyLeavesSessionIncomplete(t *testing.T) {
	state, confirmed := newTestState("Name")

	summary := ApplyFieldUpdates(map[string]any{"Nmae": "Alice"}, state, confirmed, []string{"Name"})

	assert.Empty(t, summary.Applied)
	assert.Equal(t, []string{"Nmae"}, summary.UnknownFields)
	assert.False(t, summary.Complete)
	assert.Equal(t, "", state["Name"])
}

func TestApplyFieldUpdatesSkipsNilAndEmptyValues(t *testing.T) {
	state, confirmed := newTestState("Name", "Email")

	summary := ApplyFieldUpdates(map[string]any{
		"Name":  nil,
		"Email": "   ",
	}, state, confirmed, []string{"Name", "Email"})

	assert.Empty(t, summary.Applied)
	assert.Empty(t, summary.UnknownFields)
	assert.False(t, confirmed["Name"])
	assert.False(t, confirmed["Email"])
}

func TestApplyFieldUpdatesCoercesAndTruncatesValues(t *testing.T) {
	state, confirmed := newTestState("Age", "Notes", "Opt")

	long := strings.Repeat("x", MaxFieldValueLength+100)
	summary := ApplyFieldUpdates(map[string]any{
		"Age":   float64(42),
		"Notes": long,
		"Opt":   true,
	}, state, confirmed, []string{"Age", "Notes", "Opt"})

	assert.Equal(t, "42", summary.Applied["Age"])
	assert.Len(t, state["Notes"], MaxFieldValueLength)
	assert.Equal(t, "true", state["Opt"])
}

func TestApplyFieldUpdatesTruncatesOnRuneBoundary(t *testing.T) {
	state, confirmed := newTestState("Notes")

	long := strings.Repeat("é", MaxFieldValueLength+100)
	ApplyFieldUpdates(map[string]any{"Notes": long}, state, confirmed, []string{"Notes"})

	assert.True(t, utf8.ValidString(state["Notes"]))
	assert.Equal(t, MaxFieldValueLength, utf8.RuneCountInString(state["Notes"]))
}

func TestApplyFieldUpdatesCompletenessIsMonotonicUnderRepeats(t *testing.T) {
	state, confirmed := newTestState("Name", "Email")
	allowed := []string{"Name", "Email"}

	ApplyFieldUpdates(map[string]any{"Name": "Alice"}, state, confirmed, allowed)
	full := ApplyFieldUpdates(map[string]any{"Email": "a@b.com"}, state, confirmed, allowed)
	require.True(t, full.Complete)

	repeat := ApplyFieldUpdates(map[string]any{"Email": "a@b.com"}, state, confirmed, allowed)
	assert.True(t, repeat.Complete)
	assert.Equal(t, []string{"Email"}, repeat.Unchanged)
}

func TestApplyFieldUpdatesRemainingSampleIsCapped(t *testing.T) {
	names := make([]string, 12)
	for i := range names {
		names[i] = strings.Repeat("f", i+1)
	}
	state, confirmed := newTestState(names...)

	summary := ApplyFieldUpdates(map[string]any{}, state, confirmed, names)

	assert.Equal(t, 12, summary.RemainingEmptyCount)
	assert.Len(t, summary.RemainingSample, remainingSampleSize)
}
