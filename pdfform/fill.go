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

package pdfform

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfcpuform "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/form"
)

// Fill writes values into a copy of the original PDF and returns its bytes.
//
// Matching is by raw PDF field name; keys without a matching field are
// ignored so a partially stale state still produces a usable document. The
// original bytes are never modified.
func Fill(original []byte, values map[string]string) ([]byte, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("fill form: no values to apply")
	}

	conf := pdfConfiguration()
	var exported bytes.Buffer
	if err := api.ExportFormJSON(bytes.NewReader(original), &exported, "", conf); err != nil {
		return nil, fmt.Errorf("fill form: export: %w", classifyReadError(err))
	}
	var group pdfcpuform.FormGroup
	if err := json.Unmarshal(exported.Bytes(), &group); err != nil {
		return nil, fmt.Errorf("fill form: decode form data: %w", err)
	}
	for i := range group.Forms {
		patchForm(&group.Forms[i], values)
	}

	data, err := json.Marshal(group)
	if err != nil {
		return nil, fmt.Errorf("fill form: encode form data: %w", err)
	}

	var out bytes.Buffer
	if err := api.FillForm(bytes.NewReader(original), bytes.NewReader(data), &out, conf); err != nil {
		return nil, fmt.Errorf("fill form: %w", err)
	}
	return out.Bytes(), nil
}

func patchForm(f *pdfcpuform.Form, values map[string]string) {
	for i := range f.TextFields {
		if v, ok := lookup(values, f.TextFields[i].Name, f.TextFields[i].ID); ok {
			f.TextFields[i].Value = v
		}
	}
	for i := range f.DateFields {
		if v, ok := lookup(values, f.DateFields[i].Name, f.DateFields[i].ID); ok {
			f.DateFields[i].Value = v
		}
	}
	for i := range f.CheckBoxes {
		if v, ok := lookup(values, f.CheckBoxes[i].Name, f.CheckBoxes[i].ID); ok {
			f.CheckBoxes[i].Value = parseCheckValue(v)
		}
	}
	for i := range f.RadioButtonGroups {
		if v, ok := lookup(values, f.RadioButtonGroups[i].Name, f.RadioButtonGroups[i].ID); ok {
			f.RadioButtonGroups[i].Value = v
		}
	}
	for i := range f.ComboBoxes {
		if v, ok := lookup(values, f.ComboBoxes[i].Name, f.ComboBoxes[i].ID); ok {
			f.ComboBoxes[i].Value = v
		}
	}
	for i := range f.ListBoxes {
		if v, ok := lookup(values, f.ListBoxes[i].Name, f.ListBoxes[i].ID); ok {
			f.ListBoxes[i].Values = []string{v}
		}
	}
}

func lookup(values map[string]string, name, id string) (string, bool) {
	if v, ok := values[name]; ok {
		return v, true
	}
	if v, ok := values[id]; ok {
		return v, true
	}
	return "", false
}

// parseCheckValue interprets the loose truthy strings a voice model produces
// for checkbox state.
func parseCheckValue(v string) bool {
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	switch v {
	case "yes", "Yes", "YES", "on", "On", "checked", "x", "X":
		return true
	}
	return false
}
