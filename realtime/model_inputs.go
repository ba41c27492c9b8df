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

const (
	sendEventTypeAudio          = "audio"
	sendEventTypeText           = "text"
	sendEventTypeAudioStreamEnd = "audio_stream_end"
	sendEventTypeToolResponse   = "tool_response"
	sendEventTypeRawMessage     = "raw_message"
)

// ModelSendEvent is a client event that can be sent to the model.
type ModelSendEvent interface {
	Type() string
}

// ModelSendAudio streams one chunk of user audio to the model.
type ModelSendAudio struct {
	MIMEType string
	Data     []byte
}

func (ModelSendAudio) Type() string { return sendEventTypeAudio }

// ModelSendText streams realtime text input to the model.
type ModelSendText struct {
	Text string
}

func (ModelSendText) Type() string { return sendEventTypeText }

// ModelSendAudioStreamEnd tells the model the input audio stream ended so it
// can respond. Only meaningful when server-side VAD is disabled.
type ModelSendAudioStreamEnd struct{}

func (ModelSendAudioStreamEnd) Type() string { return sendEventTypeAudioStreamEnd }

// FunctionResponse answers a single pending tool call.
type FunctionResponse struct {
	ID       string
	Name     string
	Response map[string]any
}

// ModelSendToolResponse returns tool results to the model.
type ModelSendToolResponse struct {
	Responses []FunctionResponse
}

func (ModelSendToolResponse) Type() string { return sendEventTypeToolResponse }

// ModelSendRawMessage sends an arbitrary client payload over the transport.
type ModelSendRawMessage struct {
	Payload map[string]any
}

func (ModelSendRawMessage) Type() string { return sendEventTypeRawMessage }
