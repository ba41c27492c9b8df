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

// Package pdfform is the PDF boundary of the application. It extracts an
// AcroForm field schema from uploaded bytes and writes collected values back
// into a filled copy, using pdfcpu for all PDF processing.
package pdfform

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfcpuform "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/form"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/Caellwyn/gemini-realtime-voice-app/form"
)

// MaxFields is the safety cap on extracted form fields.
const MaxFields = 300

// Typed extraction failures. The HTTP layer maps each to a stable error code.
var (
	ErrNotPDF      = errors.New("not a PDF document")
	ErrEncrypted   = errors.New("PDF is password protected")
	ErrNotAcroForm = errors.New("PDF has no AcroForm")
	ErrNoFields    = errors.New("no fillable fields found")
)

// internalFieldNames are hidden workflow or submission controls observed in
// sample PDFs that must not be presented for data entry. Lowercase for
// case-insensitive matching.
var internalFieldNames = map[string]struct{}{
	"formid":             {},
	"pdf_submission_new": {},
	"simple_spc":         {},
	"adobewarning":       {},
	"submit":             {},
	"print":              {},
	"clear":              {},
	"reset":              {},
}

// internalFieldPatterns are conservative substring heuristics; extend
// cautiously to avoid stripping legitimate fields.
var internalFieldPatterns = []string{
	"adobewarning",
	"_spc", // spacer artifacts
}

func isInternalField(name string) bool {
	lower := strings.ToLower(name)
	if _, ok := internalFieldNames[lower]; ok {
		return true
	}
	for _, p := range internalFieldPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func fieldKind(typ pdfcpuform.FieldType) form.FieldKind {
	switch typ {
	case pdfcpuform.FTCheckBox:
		return form.FieldKindCheckbox
	case pdfcpuform.FTRadioButtonGroup:
		return form.FieldKindRadio
	case pdfcpuform.FTComboBox, pdfcpuform.FTListBox:
		return form.FieldKindChoice
	default:
		return form.FieldKindText
	}
}

func splitOptions(opts string) []string {
	if opts == "" {
		return nil
	}
	parts := strings.Split(opts, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func pdfConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// classifyReadError maps pdfcpu parse failures onto the typed errors above.
// pdfcpu does not export sentinel errors for these cases, so the message is
// the only signal available.
func classifyReadError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "password") || strings.Contains(msg, "encrypt"):
		return fmt.Errorf("%w: %s", ErrEncrypted, err)
	case strings.Contains(msg, "no form"), strings.Contains(msg, "acroform"):
		return fmt.Errorf("%w: %s", ErrNotAcroForm, err)
	case strings.Contains(msg, "header"), strings.Contains(msg, "version"):
		return fmt.Errorf("%w: %s", ErrNotPDF, err)
	default:
		return err
	}
}

// hasPDFHeader checks for the %PDF- magic, allowing a little leading junk the
// way PDF readers do.
func hasPDFHeader(data []byte) bool {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.Contains(head, []byte("%PDF-"))
}

// Extract reads the AcroForm fields of pdfBytes and builds a stable schema.
//
// Internal control fields are filtered out, duplicate names receive a numeric
// suffix starting at _2 so every canonical name is a unique state key, and the
// result is capped at MaxFields. The raw PDF field name is kept as the
// display name.
func Extract(pdfBytes []byte, originalFilename string) (*form.Schema, error) {
	if !hasPDFHeader(pdfBytes) {
		return nil, ErrNotPDF
	}

	fields, err := api.FormFields(bytes.NewReader(pdfBytes), pdfConfiguration())
	if err != nil {
		return nil, classifyReadError(err)
	}
	if len(fields) == 0 {
		return nil, ErrNoFields
	}

	collected := make([]form.FormField, 0, len(fields))
	nameCounts := make(map[string]int)
	var filteredInternal []string
	capReached := false

	for _, f := range fields {
		if len(collected) >= MaxFields {
			capReached = true
			break
		}
		name := f.Name
		if name == "" {
			name = f.ID
		}
		if name == "" {
			continue
		}
		if isInternalField(name) {
			filteredInternal = append(filteredInternal, name)
			continue
		}
		canonical := name
		nameCounts[name]++
		if n := nameCounts[name]; n > 1 {
			canonical = fmt.Sprintf("%s_%d", name, n)
		}
		pageIndex := 0
		if len(f.Pages) > 0 && f.Pages[0] > 0 {
			pageIndex = f.Pages[0] - 1
		}
		collected = append(collected, form.FormField{
			CanonicalName: canonical,
			DisplayName:   name,
			PageIndex:     pageIndex,
			Kind:          fieldKind(f.Typ),
			AllowedValues: splitOptions(f.Opts),
		})
	}

	if len(collected) == 0 {
		return nil, ErrNoFields
	}

	sample := filteredInternal
	if len(sample) > 10 {
		sample = sample[:10]
	}
	return &form.Schema{
		FormID: uuid.New().String(),
		Fields: collected,
		Metadata: map[string]any{
			"original_filename":        originalFilename,
			"field_cap_reached":        capReached,
			"total_fields_raw":         len(collected),
			"filtered_internal_count":  len(filteredInternal),
			"filtered_internal_sample": sample,
		},
	}, nil
}
