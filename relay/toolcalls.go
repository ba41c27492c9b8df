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

package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"github.com/Caellwyn/gemini-realtime-voice-app/form"
	"github.com/Caellwyn/gemini-realtime-voice-app/realtime"
)

const (
	ToolUpdatePDFFields = "update_pdf_fields"
	ToolGetFormState    = "get_form_state"
)

// ToolDeclarations returns the function declarations advertised to the model.
func ToolDeclarations() []*genai.Tool {
	return []*genai.Tool{{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        ToolUpdatePDFFields,
				Description: "Update one or more PDF form fields explicitly provided by the user.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"updates": {
							Type:        genai.TypeString,
							Description: `JSON string mapping fieldName -> value. Example: '{"FirstName": "Alice", "LastName": "Smith"}'`,
						},
					},
				},
			},
			{
				Name:        ToolGetFormState,
				Description: "Retrieve current PDF form progress, counts, and remaining sample. Call if unsure or after unknown_fields.",
				Parameters: &genai.Schema{
					Type:       genai.TypeObject,
					Properties: map[string]*genai.Schema{},
				},
			},
		},
	}}
}

// SystemInstruction renders the conversational contract for a form with the
// given field count.
func SystemInstruction(totalFields int) string {
	return fmt.Sprintf(
		"You are collecting values for an uploaded PDF form with %d fields. All are required. "+
			"CRITICAL: After EVERY user utterance that provides field values, you MUST call update_pdf_fields immediately to save those values. "+
			"Never guess or invent. Ask only for the NEXT missing field in visual order unless the user voluntarily gives multiple in one utterance. "+
			"If uncertain about progress call get_form_state. When the user provides ANY field value(s), IMMEDIATELY call update_pdf_fields with an 'updates' parameter containing a JSON string mapping field names to values, e.g. '{\"FirstName\": \"Alice\", \"LastName\": \"Smith\"}'. "+
			"The updates parameter must be a valid JSON string. Do not restate unchanged fields. ALWAYS call the tool when values are provided, then ask for the next field. "+
			"After all fields are filled ask for a single confirmation. After user confirms stop. No chit-chat.",
		totalFields)
}

// NormalizeUpdateArgs canonicalizes the update tool's argument payload.
//
// The model may send the mapping three ways: as a JSON string under
// "updates", as a nested object under "updates", or as flat top-level keys.
// All collapse into one flat mapping here; malformed JSON degrades to an
// error string rather than a failure, per the permissive tool contract.
func NormalizeUpdateArgs(args map[string]any) (map[string]any, []string) {
	if args == nil {
		return map[string]any{}, nil
	}
	raw, hasUpdates := args["updates"]
	if !hasUpdates {
		// Flat shape: the arguments themselves are the mapping.
		flat := make(map[string]any, len(args))
		for k, v := range args {
			flat[k] = v
		}
		return flat, nil
	}
	switch v := raw.(type) {
	case string:
		var parsed map[string]any
		if err := json.Unmarshal([]byte(v), &parsed); err != nil {
			return map[string]any{}, []string{fmt.Sprintf("invalid JSON in updates: %v", err)}
		}
		return parsed, nil
	case map[string]any:
		return v, nil
	default:
		return map[string]any{}, []string{"updates must be a JSON object or JSON string"}
	}
}

// resolveAliases maps model-supplied keys to canonical field names. Unknown
// labels keep their raw key so the applier records them under unknown_fields.
// Ambiguous labels are withheld from the applier entirely and returned
// separately: the bare base of a duplicated display name is also a valid
// canonical name, and letting it through would silently pick one field.
func resolveAliases(mirror *Mirror, updates map[string]any) (map[string]any, []string) {
	resolved := make(map[string]any, len(updates))
	var ambiguous []string
	for key, value := range updates {
		canonical, status := mirror.ResolveAlias(key)
		switch status {
		case form.AliasResolved:
			resolved[canonical] = value
		case form.AliasAmbiguous:
			ambiguous = append(ambiguous, canonical)
		default:
			resolved[key] = value
		}
	}
	return resolved, ambiguous
}

// ToolCallEngine reconciles model tool invocations with form state and
// produces both the model-facing response and client notifications.
type ToolCallEngine struct {
	Sync   *SyncManager
	Audit  *ToolAudit
	Logger *slog.Logger
}

// ToolResult is the outcome of one reconciled tool call.
type ToolResult struct {
	Response      realtime.FunctionResponse
	Notifications []any
}

// Handle reconciles a single function call against the connection mirror.
// Unknown tool names still answer the model, with an error payload, so the
// conversation never stalls on a missing response.
func (e *ToolCallEngine) Handle(ctx context.Context, call realtime.FunctionCall, mirror *Mirror) ToolResult {
	started := time.Now()
	switch call.Name {
	case ToolUpdatePDFFields:
		return e.handleUpdate(ctx, call, mirror, started)
	case ToolGetFormState:
		return e.handleQuery(call, mirror, started)
	default:
		e.Logger.Warn("unknown tool call", slog.String("tool", call.Name))
		return ToolResult{
			Response: realtime.FunctionResponse{
				ID:   call.ID,
				Name: call.Name,
				Response: map[string]any{
					"result": map[string]any{"errors": []string{"unknown tool " + call.Name}},
				},
			},
		}
	}
}

func (e *ToolCallEngine) handleUpdate(ctx context.Context, call realtime.FunctionCall, mirror *Mirror, started time.Time) ToolResult {
	updates, errs := NormalizeUpdateArgs(call.Arguments)
	resolved, ambiguous := resolveAliases(mirror, updates)
	summary := mirror.Apply(resolved)
	summary.UnknownFields = append(summary.UnknownFields, ambiguous...)
	summary.Errors = append(summary.Errors, errs...)

	e.Sync.SyncUpdates(ctx, toAnyMap(summary.Applied))
	e.Sync.ScheduleFullSync(ctx, mirror)

	result := ToolResult{
		Response: functionResponse(call, summary),
	}
	if len(summary.Applied) > 0 {
		result.Notifications = append(result.Notifications, formToolResponseMessage{
			FormToolResponse: FormToolResponse{
				Updated:     summary.Applied,
				Remaining:   summary.RemainingEmptyCount,
				Unknown:     summary.UnknownFields,
				CatalogHash: summary.CatalogHash,
			},
		})
	}
	if summary.Complete && len(summary.Applied) > 0 {
		result.Notifications = append(result.Notifications, FormCompleteMessage{FormComplete: true})
	}
	e.Audit.Record(mirror.FormID, call, summary, started)
	return result
}

func (e *ToolCallEngine) handleQuery(call realtime.FunctionCall, mirror *Mirror, started time.Time) ToolResult {
	snapshot := mirror.Snapshot()
	e.Audit.Record(mirror.FormID, call, snapshot, started)
	return ToolResult{
		Response: functionResponse(call, snapshot),
		Notifications: []any{
			FormStateMessage{FormState: snapshot},
		},
	}
}

func functionResponse(call realtime.FunctionCall, summary form.Summary) realtime.FunctionResponse {
	payload := map[string]any{"result": summaryToMap(summary)}
	if len(summary.Errors) > 0 {
		payload["errors"] = summary.Errors
	}
	return realtime.FunctionResponse{
		ID:       call.ID,
		Name:     call.Name,
		Response: payload,
	}
}

func summaryToMap(summary form.Summary) map[string]any {
	raw, err := json.Marshal(summary)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}

func toAnyMap(in map[string]string) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
