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

package realtime

type ConnectionStatus string

const (
	ConnectionStatusConnecting   ConnectionStatus = "connecting"
	ConnectionStatusConnected    ConnectionStatus = "connected"
	ConnectionStatusDisconnected ConnectionStatus = "disconnected"
)

const (
	modelEventTypeError            = "error"
	modelEventTypeException        = "exception"
	modelEventTypeSetupComplete    = "setup_complete"
	modelEventTypeAudio            = "audio"
	modelEventTypeText             = "text"
	modelEventTypeToolCall         = "tool_call"
	modelEventTypeToolCallCancel   = "tool_call_cancellation"
	modelEventTypeTurnComplete     = "turn_complete"
	modelEventTypeInterrupted      = "interrupted"
	modelEventTypeGoAway           = "go_away"
	modelEventTypeConnectionStatus = "connection_status"
	modelEventTypeRawServerEvent   = "raw_server_event"
)

// ModelEvent is a transport-level event emitted by the model.
type ModelEvent interface {
	Type() string
}

// ModelErrorEvent represents a transport-layer error reported by the server.
type ModelErrorEvent struct {
	Error any
}

func (ModelErrorEvent) Type() string { return modelEventTypeError }

// ModelExceptionEvent indicates a local failure while processing events.
type ModelExceptionEvent struct {
	Exception error
	Context   *string
}

func (ModelExceptionEvent) Type() string { return modelEventTypeException }

// ModelSetupCompleteEvent indicates the Live session accepted the setup.
type ModelSetupCompleteEvent struct{}

func (ModelSetupCompleteEvent) Type() string { return modelEventTypeSetupComplete }

// ModelAudioEvent contains raw audio bytes emitted by the model turn.
type ModelAudioEvent struct {
	Data     []byte
	MIMEType string
}

func (ModelAudioEvent) Type() string { return modelEventTypeAudio }

// ModelTextEvent contains a text part of the model turn.
type ModelTextEvent struct {
	Text string
}

func (ModelTextEvent) Type() string { return modelEventTypeText }

// FunctionCall is one pending tool invocation from the model.
type FunctionCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ModelToolCallEvent is emitted when the model requests tool execution.
type ModelToolCallEvent struct {
	Calls []FunctionCall
}

func (ModelToolCallEvent) Type() string { return modelEventTypeToolCall }

// ModelToolCallCancellationEvent cancels previously issued tool calls.
type ModelToolCallCancellationEvent struct {
	IDs []string
}

func (ModelToolCallCancellationEvent) Type() string { return modelEventTypeToolCallCancel }

// ModelTurnCompleteEvent indicates the model finished a turn.
type ModelTurnCompleteEvent struct{}

func (ModelTurnCompleteEvent) Type() string { return modelEventTypeTurnComplete }

// ModelInterruptedEvent indicates user speech interrupted generation.
type ModelInterruptedEvent struct{}

func (ModelInterruptedEvent) Type() string { return modelEventTypeInterrupted }

// ModelGoAwayEvent indicates the server is about to drop the connection.
type ModelGoAwayEvent struct {
	TimeLeft string
}

func (ModelGoAwayEvent) Type() string { return modelEventTypeGoAway }

// ModelConnectionStatusEvent indicates connection state changes.
type ModelConnectionStatusEvent struct {
	Status ConnectionStatus
}

func (ModelConnectionStatusEvent) Type() string { return modelEventTypeConnectionStatus }

// ModelRawServerEvent wraps server payloads before interpretation.
type ModelRawServerEvent struct {
	Data any
}

func (ModelRawServerEvent) Type() string { return modelEventTypeRawServerEvent }
