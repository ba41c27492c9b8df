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
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/Caellwyn/gemini-realtime-voice-app/form"
)

const (
	// DefaultNormalizerModel answers the normalization prompt; it is a
	// cheaper text model than the realtime voice one.
	DefaultNormalizerModel = "gemini-2.5-flash"

	normalizerTemperature   = 0.2
	maxNormalizedFields     = 120
	maxDisplayNameLength    = 80
	maxSpokenPromptLength   = 140
	normalizerInstructions  = `You are normalizing PDF form fields for a voice assistant.
Input is JSON with 'fields': an array. Each field has index, base_name, kind, page, and allowed_values.

Goals:
1) Provide a clear display_name for each field (spoken-friendly).
2) Provide a concise spoken_prompt (<=140 chars).
3) If multiple fields form a logical question group, assign identical group_id and group_label. This includes radio button sets (single select) and clusters of checkboxes that belong to one prompt such as 'check all that apply' (multi-select).
4) Keep the same length/order; preserve index. Do not invent or drop fields.
Return pure JSON: { "normalized": [ {"index":int, "display_name":str, "spoken_prompt":str, "group_id":str|null, "group_label":str|null} ] }`
)

// FieldNormalizer asks Gemini to propose friendly display names, short
// spoken prompts, and logical groupings for an extracted schema. It is
// optional; extraction works with raw PDF names when it is disabled or when
// the call fails.
type FieldNormalizer struct {
	APIKey string
	Model  string
	Logger *slog.Logger

	// generate is swapped out in tests; nil means call the Gemini API.
	generate func(ctx context.Context, model, prompt string) (string, error)
}

type normalizerField struct {
	Index         int      `json:"index"`
	BaseName      string   `json:"base_name"`
	Kind          string   `json:"kind"`
	Page          int      `json:"page"`
	AllowedValues []string `json:"allowed_values,omitempty"`
}

type normalizedField struct {
	Index        int    `json:"index"`
	DisplayName  string `json:"display_name"`
	SpokenPrompt string `json:"spoken_prompt"`
	GroupID      string `json:"group_id"`
	GroupLabel   string `json:"group_label"`
}

// Normalize enriches schema fields in place. Only fields whose index the
// model echoed back are touched; a malformed or partial answer degrades to
// the raw extraction result for the rest.
func (n *FieldNormalizer) Normalize(ctx context.Context, schema *form.Schema) error {
	if schema == nil || len(schema.Fields) == 0 {
		return nil
	}
	limit := len(schema.Fields)
	if limit > maxNormalizedFields {
		limit = maxNormalizedFields
	}

	payload := make([]normalizerField, limit)
	for i := range payload {
		f := schema.Fields[i]
		payload[i] = normalizerField{
			Index:         i,
			BaseName:      f.CanonicalName,
			Kind:          string(f.Kind),
			Page:          f.PageIndex,
			AllowedValues: f.AllowedValues,
		}
	}
	encoded, err := json.Marshal(map[string]any{"fields": payload})
	if err != nil {
		return fmt.Errorf("encoding normalizer payload: %w", err)
	}

	generate := n.generate
	if generate == nil {
		generate = n.generateWithGemini
	}
	model := n.Model
	if model == "" {
		model = DefaultNormalizerModel
	}
	answer, err := generate(ctx, model, normalizerInstructions+"\n"+string(encoded))
	if err != nil {
		return fmt.Errorf("normalizer call: %w", err)
	}

	var parsed struct {
		Normalized []normalizedField `json:"normalized"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(answer)), &parsed); err != nil {
		return fmt.Errorf("parsing normalizer answer: %w", err)
	}

	applied := 0
	for _, item := range parsed.Normalized {
		if item.Index < 0 || item.Index >= limit {
			continue
		}
		applied++
		field := &schema.Fields[item.Index]
		if name := clipRunes(strings.TrimSpace(item.DisplayName), maxDisplayNameLength); name != "" {
			field.DisplayName = name
		}
		field.SpokenPrompt = clipRunes(strings.TrimSpace(item.SpokenPrompt), maxSpokenPromptLength)
		switch {
		case item.GroupLabel != "":
			field.GroupName = item.GroupLabel
		case item.GroupID != "":
			field.GroupName = item.GroupID
		}
	}
	if n.Logger != nil {
		n.Logger.Debug("normalized schema fields",
			"form_id", schema.FormID, "fields", limit, "applied", applied)
	}
	return nil
}

func (n *FieldNormalizer) generateWithGemini(ctx context.Context, model, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  n.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("creating gemini client: %w", err)
	}
	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](normalizerTemperature),
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

func clipRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
