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

// Package realtime implements the upstream transport to the Gemini Live API.
// It exposes a small Model contract so the relay layer never touches the wire
// protocol directly and tests can substitute a fake transport.
package realtime

import (
	"context"
	"os"
	"time"

	"google.golang.org/genai"
)

// APIKeyProvider dynamically resolves API keys.
type APIKeyProvider func(context.Context) (string, error)

// TransportConfig configures low-level websocket transport behavior.
// A nil PingTimeout disables read-deadline enforcement while keepalive pings
// keep flowing.
type TransportConfig struct {
	PingInterval     *time.Duration
	PingTimeout      *time.Duration
	HandshakeTimeout *time.Duration
}

// WebSocketConn is the minimal websocket contract used by the transport.
type WebSocketConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	Close() error
}

// WebSocketDialer dials a websocket connection for transport usage.
type WebSocketDialer func(
	context.Context,
	string,
	map[string]string,
	*TransportConfig,
) (WebSocketConn, error)

// SessionSettings describe the Live session to establish.
type SessionSettings struct {
	ModelName         string
	SystemInstruction string
	Voice             string
	Tools             []*genai.Tool
	EnableVAD         bool
}

// ModelConfig contains transport connection options.
type ModelConfig struct {
	APIKey          string
	APIKeyProvider  APIKeyProvider
	URL             string
	Headers         map[string]string
	TransportDialer WebSocketDialer
	TransportConfig *TransportConfig
	Settings        SessionSettings
}

// ResolveAPIKey resolves the API key from config string/provider/environment.
func (c ModelConfig) ResolveAPIKey(ctx context.Context) (string, error) {
	if c.APIKey != "" {
		return c.APIKey, nil
	}
	if c.APIKeyProvider != nil {
		return c.APIKeyProvider(ctx)
	}
	return os.Getenv("GEMINI_API_KEY"), nil
}

// ModelListener receives events emitted by a model transport.
type ModelListener interface {
	OnEvent(context.Context, ModelEvent) error
}

// Model defines the upstream transport contract.
type Model interface {
	Connect(context.Context, ModelConfig) error
	AddListener(ModelListener)
	RemoveListener(ModelListener)
	SendEvent(context.Context, ModelSendEvent) error
	Close(context.Context) error
}
