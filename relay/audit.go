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
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/Caellwyn/gemini-realtime-voice-app/form"
	"github.com/Caellwyn/gemini-realtime-voice-app/realtime"
)

// auditRecord is one JSONL line of the tool audit trail.
type auditRecord struct {
	TS         float64        `json:"ts"`
	DurationMS float64        `json:"duration_ms"`
	SessionID  string         `json:"session_id"`
	Tool       string         `json:"tool"`
	Request    map[string]any `json:"request"`
	Meta       auditMeta      `json:"response_meta"`
}

type auditMeta struct {
	AppliedCount  int    `json:"applied_count"`
	UnknownCount  int    `json:"unknown_count"`
	ConflictCount int    `json:"conflict_count"`
	CatalogHash   string `json:"catalog_hash"`
}

// ToolAudit appends one JSONL record per tool invocation for offline audit.
// Write failures never interrupt the response path. A nil ToolAudit records
// nothing.
type ToolAudit struct {
	mu  sync.Mutex
	out io.Writer
}

// NewToolAudit writes audit records to out.
func NewToolAudit(out io.Writer) *ToolAudit {
	return &ToolAudit{out: out}
}

// Record appends one audit line.
func (a *ToolAudit) Record(sessionID string, call realtime.FunctionCall, summary form.Summary, started time.Time) {
	if a == nil || a.out == nil {
		return
	}
	rec := auditRecord{
		TS:         float64(time.Now().UnixNano()) / 1e9,
		DurationMS: float64(time.Since(started).Microseconds()) / 1000.0,
		SessionID:  sessionID,
		Tool:       call.Name,
		Request:    call.Arguments,
		Meta: auditMeta{
			AppliedCount:  len(summary.Applied),
			UnknownCount:  len(summary.UnknownFields),
			ConflictCount: len(summary.ConflictsUserLocked),
			CatalogHash:   summary.CatalogHash,
		},
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	_, _ = a.out.Write(append(line, '\n'))
}
