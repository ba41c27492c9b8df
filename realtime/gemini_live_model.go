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

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"google.golang.org/genai"
)

const (
	defaultLiveModelName = "gemini-2.5-flash-preview-native-audio-dialog"
	defaultLiveVoice     = "Puck"
	defaultLiveEndpoint  = "wss://generativelanguage.googleapis.com/ws/" +
		"google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	// Low-sensitivity VAD keeps the model from reacting to breathing noise
	// while the user is dictating field values.
	vadPrefixPaddingMS   = 20
	vadSilenceDurationMS = 100
)

// GeminiLiveModel is the websocket transport to the Gemini Live API.
//
// Events flow through registered listeners; the read loop runs on its own
// goroutine from Connect until the connection drops or Close is called.
type GeminiLiveModel struct {
	model            string
	connected        bool
	listeners        []ModelListener
	listenersMutex   sync.RWMutex
	lastConnectURL   string
	sendMutex        sync.Mutex
	sentClientEvents []map[string]any
	sendClientEvent  func(context.Context, map[string]any) error
	websocketConn    WebSocketConn
	websocketDone    chan struct{}
	dialWebSocket    WebSocketDialer
	transportConfig  *TransportConfig
	pingStop         chan struct{}
}

// NewGeminiLiveModel creates a transport with default model settings.
func NewGeminiLiveModel() *GeminiLiveModel {
	return &GeminiLiveModel{
		model: defaultLiveModelName,
	}
}

// SetTransportConfig updates the default transport configuration used for
// connections.
func (m *GeminiLiveModel) SetTransportConfig(config *TransportConfig) {
	m.transportConfig = config
}

func (m *GeminiLiveModel) Connect(ctx context.Context, options ModelConfig) error {
	if m.connected {
		return errors.New("live model is already connected")
	}

	settings := options.Settings
	if strings.TrimSpace(settings.ModelName) != "" {
		m.model = strings.TrimSpace(settings.ModelName)
	}

	apiKey, err := options.ResolveAPIKey(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(apiKey) == "" {
		return errors.New("api key is required but was not provided")
	}

	m.lastConnectURL = strings.TrimSpace(options.URL)
	if m.lastConnectURL == "" {
		m.lastConnectURL = defaultLiveURL(apiKey)
	}
	m.sendMutex.Lock()
	m.sentClientEvents = nil
	m.sendMutex.Unlock()

	transportConfig := options.TransportConfig
	if transportConfig == nil {
		transportConfig = m.transportConfig
	}
	dialer := options.TransportDialer
	if dialer == nil {
		dialer = m.dialWebSocket
	}
	if dialer == nil {
		dialer = defaultWebSocketDialer
	}
	conn, err := dialer(ctx, m.lastConnectURL, options.Headers, transportConfig)
	if err != nil {
		return fmt.Errorf("failed to connect websocket transport: %w", err)
	}
	m.websocketConn = conn
	m.websocketDone = make(chan struct{})
	m.configureTransport(conn, transportConfig)
	m.sendClientEvent = func(_ context.Context, payload map[string]any) error {
		return conn.WriteJSON(payload)
	}

	if err := m.dispatchClientEvent(ctx, buildSetupPayload(m.model, settings)); err != nil {
		_ = conn.Close()
		m.websocketConn = nil
		m.sendClientEvent = nil
		return err
	}

	go m.listenForMessages()

	m.connected = true
	return m.emitEvent(ctx, ModelConnectionStatusEvent{Status: ConnectionStatusConnected})
}

func (m *GeminiLiveModel) AddListener(listener ModelListener) {
	if listener == nil {
		return
	}
	m.listenersMutex.Lock()
	defer m.listenersMutex.Unlock()
	for _, existing := range m.listeners {
		if existing == listener {
			return
		}
	}
	m.listeners = append(m.listeners, listener)
}

func (m *GeminiLiveModel) RemoveListener(listener ModelListener) {
	if listener == nil {
		return
	}
	m.listenersMutex.Lock()
	defer m.listenersMutex.Unlock()
	out := make([]ModelListener, 0, len(m.listeners))
	for _, existing := range m.listeners {
		if existing != listener {
			out = append(out, existing)
		}
	}
	m.listeners = out
}

func (m *GeminiLiveModel) SendEvent(ctx context.Context, event ModelSendEvent) error {
	if !m.connected {
		return errors.New("live model is not connected")
	}

	switch e := event.(type) {
	case ModelSendAudio:
		return m.dispatchClientEvent(ctx, map[string]any{
			"realtimeInput": map[string]any{
				"mediaChunks": []any{
					map[string]any{
						"mimeType": e.MIMEType,
						"data":     base64.StdEncoding.EncodeToString(e.Data),
					},
				},
			},
		})

	case ModelSendText:
		return m.dispatchClientEvent(ctx, map[string]any{
			"realtimeInput": map[string]any{"text": e.Text},
		})

	case ModelSendAudioStreamEnd:
		return m.dispatchClientEvent(ctx, map[string]any{
			"realtimeInput": map[string]any{"audioStreamEnd": true},
		})

	case ModelSendToolResponse:
		if len(e.Responses) == 0 {
			return errors.New("tool response requires at least one function response")
		}
		responses := make([]any, 0, len(e.Responses))
		for _, r := range e.Responses {
			entry := map[string]any{
				"name":     r.Name,
				"response": r.Response,
			}
			if r.ID != "" {
				entry["id"] = r.ID
			}
			responses = append(responses, entry)
		}
		return m.dispatchClientEvent(ctx, map[string]any{
			"toolResponse": map[string]any{"functionResponses": responses},
		})

	case ModelSendRawMessage:
		if e.Payload == nil {
			return errors.New("raw message payload cannot be nil")
		}
		return m.dispatchClientEvent(ctx, e.Payload)

	default:
		return fmt.Errorf("unsupported live send event %T", event)
	}
}

func (m *GeminiLiveModel) Close(ctx context.Context) error {
	if m.pingStop != nil {
		close(m.pingStop)
		m.pingStop = nil
	}
	if m.websocketConn != nil {
		_ = m.websocketConn.Close()
		if m.websocketDone != nil {
			select {
			case <-m.websocketDone:
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
		}
		m.websocketConn = nil
		m.websocketDone = nil
	}
	m.connected = false
	m.sendClientEvent = nil
	return m.emitEvent(ctx, ModelConnectionStatusEvent{Status: ConnectionStatusDisconnected})
}

func defaultLiveURL(apiKey string) string {
	query := url.Values{}
	query.Set("key", apiKey)
	return defaultLiveEndpoint + "?" + query.Encode()
}

// buildSetupPayload renders the BidiGenerateContent setup message from session
// settings. Tools pass through genai's own JSON encoding so declarations stay
// wire-accurate.
func buildSetupPayload(model string, settings SessionSettings) map[string]any {
	generationConfig := map[string]any{
		"responseModalities": []any{"AUDIO"},
	}
	voice := settings.Voice
	if voice == "" {
		voice = defaultLiveVoice
	}
	generationConfig["speechConfig"] = map[string]any{
		"voiceConfig": map[string]any{
			"prebuiltVoiceConfig": map[string]any{"voiceName": voice},
		},
	}

	setup := map[string]any{
		"model":            "models/" + strings.TrimPrefix(model, "models/"),
		"generationConfig": generationConfig,
	}
	if settings.SystemInstruction != "" {
		setup["systemInstruction"] = map[string]any{
			"parts": []any{map[string]any{"text": settings.SystemInstruction}},
		}
	}
	if tools := toolsToPayload(settings.Tools); tools != nil {
		setup["tools"] = tools
	}
	if settings.EnableVAD {
		setup["realtimeInputConfig"] = map[string]any{
			"automaticActivityDetection": map[string]any{
				"startOfSpeechSensitivity": "START_SENSITIVITY_LOW",
				"endOfSpeechSensitivity":   "END_SENSITIVITY_LOW",
				"prefixPaddingMs":          vadPrefixPaddingMS,
				"silenceDurationMs":        vadSilenceDurationMS,
			},
		}
	}
	return map[string]any{"setup": setup}
}

func toolsToPayload(tools []*genai.Tool) []any {
	if len(tools) == 0 {
		return nil
	}
	raw, err := json.Marshal(tools)
	if err != nil {
		return nil
	}
	var payload []any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	return payload
}

func (m *GeminiLiveModel) configureTransport(conn WebSocketConn, config *TransportConfig) {
	if conn == nil || config == nil {
		return
	}
	ws, ok := conn.(*websocket.Conn)
	if !ok {
		return
	}

	pingEnabled := config.PingInterval != nil && *config.PingInterval > 0
	if pingEnabled && config.PingTimeout != nil && *config.PingTimeout > 0 {
		timeout := *config.PingTimeout
		_ = ws.SetReadDeadline(time.Now().Add(timeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(timeout))
		})
	}

	if !pingEnabled {
		return
	}
	if m.pingStop != nil {
		close(m.pingStop)
	}
	m.pingStop = make(chan struct{})
	pingInterval := *config.PingInterval
	deadline := pingInterval
	if config.PingTimeout != nil && *config.PingTimeout > 0 {
		deadline = *config.PingTimeout
	}

	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = ws.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(deadline))
			case <-m.websocketDone:
				return
			case <-m.pingStop:
				return
			}
		}
	}()
}

// dispatchClientEvent serializes writes to the websocket: audio frames come
// from the relay receive loop while tool responses come from the listener
// goroutine, and gorilla/websocket allows only one concurrent writer.
func (m *GeminiLiveModel) dispatchClientEvent(ctx context.Context, event map[string]any) error {
	if event == nil {
		return errors.New("client event payload cannot be nil")
	}
	m.sendMutex.Lock()
	defer m.sendMutex.Unlock()
	m.sentClientEvents = append(m.sentClientEvents, event)
	if m.sendClientEvent != nil {
		return m.sendClientEvent(ctx, event)
	}
	return nil
}

func (m *GeminiLiveModel) emitEvent(ctx context.Context, event ModelEvent) error {
	m.listenersMutex.RLock()
	listeners := slices.Clone(m.listeners)
	m.listenersMutex.RUnlock()
	for _, listener := range listeners {
		if listener == nil {
			continue
		}
		if err := listener.OnEvent(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func defaultWebSocketDialer(
	ctx context.Context,
	rawURL string,
	headers map[string]string,
	transportConfig *TransportConfig,
) (WebSocketConn, error) {
	dialer := websocket.Dialer{}
	if transportConfig != nil && transportConfig.HandshakeTimeout != nil {
		dialer.HandshakeTimeout = *transportConfig.HandshakeTimeout
	}
	httpHeaders := make(http.Header, len(headers))
	for key, value := range headers {
		httpHeaders.Set(key, value)
	}
	conn, _, err := dialer.DialContext(ctx, rawURL, httpHeaders)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (m *GeminiLiveModel) listenForMessages() {
	defer func() {
		if m.websocketDone != nil {
			close(m.websocketDone)
		}
	}()

	for {
		if m.websocketConn == nil {
			return
		}

		_, payload, err := m.websocketConn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				_ = m.emitEvent(context.Background(), ModelConnectionStatusEvent{
					Status: ConnectionStatusDisconnected,
				})
				return
			}
			contextMessage := "websocket error in message listener"
			_ = m.emitEvent(context.Background(), ModelExceptionEvent{
				Exception: err,
				Context:   &contextMessage,
			})
			_ = m.emitEvent(context.Background(), ModelConnectionStatusEvent{
				Status: ConnectionStatusDisconnected,
			})
			return
		}

		_ = m.handleWSMessage(context.Background(), payload)
	}
}

func (m *GeminiLiveModel) handleWSMessage(ctx context.Context, rawMessage []byte) error {
	var event map[string]any
	if err := json.Unmarshal(rawMessage, &event); err != nil {
		if emitErr := m.emitEvent(ctx, ModelRawServerEvent{Data: string(rawMessage)}); emitErr != nil {
			return emitErr
		}
		return m.emitEvent(ctx, ModelErrorEvent{Error: err})
	}
	return m.handleWSEvent(ctx, event)
}

func (m *GeminiLiveModel) handleWSEvent(ctx context.Context, event map[string]any) error {
	if event == nil {
		return nil
	}

	if err := m.emitEvent(ctx, ModelRawServerEvent{Data: event}); err != nil {
		return err
	}

	if _, ok := event["setupComplete"]; ok {
		return m.emitEvent(ctx, ModelSetupCompleteEvent{})
	}

	if raw, ok := event["serverContent"]; ok {
		content, ok := toStringAnyMap(raw)
		if !ok {
			return m.emitEvent(ctx, ModelErrorEvent{
				Error: errors.New("invalid field serverContent: expected object"),
			})
		}
		return m.handleServerContent(ctx, content)
	}

	if raw, ok := event["toolCall"]; ok {
		toolCall, ok := toStringAnyMap(raw)
		if !ok {
			return m.emitEvent(ctx, ModelErrorEvent{
				Error: errors.New("invalid field toolCall: expected object"),
			})
		}
		return m.handleToolCall(ctx, toolCall)
	}

	if raw, ok := event["toolCallCancellation"]; ok {
		cancellation, ok := toStringAnyMap(raw)
		if !ok {
			return m.emitEvent(ctx, ModelErrorEvent{
				Error: errors.New("invalid field toolCallCancellation: expected object"),
			})
		}
		var ids []string
		if rawIDs, ok := cancellation["ids"].([]any); ok {
			for _, rawID := range rawIDs {
				if id, ok := rawID.(string); ok {
					ids = append(ids, id)
				}
			}
		}
		return m.emitEvent(ctx, ModelToolCallCancellationEvent{IDs: ids})
	}

	if raw, ok := event["goAway"]; ok {
		timeLeft := ""
		if goAway, ok := toStringAnyMap(raw); ok {
			timeLeft, _ = goAway["timeLeft"].(string)
		}
		return m.emitEvent(ctx, ModelGoAwayEvent{TimeLeft: timeLeft})
	}

	if raw, ok := event["error"]; ok {
		return m.emitEvent(ctx, ModelErrorEvent{Error: raw})
	}

	return nil
}

func (m *GeminiLiveModel) handleServerContent(ctx context.Context, content map[string]any) error {
	if interrupted, _ := content["interrupted"].(bool); interrupted {
		if err := m.emitEvent(ctx, ModelInterruptedEvent{}); err != nil {
			return err
		}
	}

	if raw, ok := content["modelTurn"]; ok {
		modelTurn, ok := toStringAnyMap(raw)
		if !ok {
			return m.emitEvent(ctx, ModelErrorEvent{
				Error: errors.New("invalid field modelTurn: expected object"),
			})
		}
		parts, _ := modelTurn["parts"].([]any)
		for _, rawPart := range parts {
			part, ok := toStringAnyMap(rawPart)
			if !ok {
				continue
			}
			if text, ok := part["text"].(string); ok && text != "" {
				if err := m.emitEvent(ctx, ModelTextEvent{Text: text}); err != nil {
					return err
				}
				continue
			}
			inline, ok := toStringAnyMap(part["inlineData"])
			if !ok {
				continue
			}
			data, _ := inline["data"].(string)
			audioBytes, err := base64.StdEncoding.DecodeString(data)
			if err != nil {
				if emitErr := m.emitEvent(ctx, ModelErrorEvent{Error: err}); emitErr != nil {
					return emitErr
				}
				continue
			}
			mimeType, _ := inline["mimeType"].(string)
			if err := m.emitEvent(ctx, ModelAudioEvent{Data: audioBytes, MIMEType: mimeType}); err != nil {
				return err
			}
		}
	}

	if turnComplete, _ := content["turnComplete"].(bool); turnComplete {
		return m.emitEvent(ctx, ModelTurnCompleteEvent{})
	}
	return nil
}

func (m *GeminiLiveModel) handleToolCall(ctx context.Context, toolCall map[string]any) error {
	rawCalls, _ := toolCall["functionCalls"].([]any)
	calls := make([]FunctionCall, 0, len(rawCalls))
	for _, rawCall := range rawCalls {
		call, ok := toStringAnyMap(rawCall)
		if !ok {
			continue
		}
		name, _ := call["name"].(string)
		if strings.TrimSpace(name) == "" {
			if err := m.emitEvent(ctx, ModelErrorEvent{
				Error: errors.New("missing required field name in functionCalls entry"),
			}); err != nil {
				return err
			}
			continue
		}
		id, _ := call["id"].(string)
		args, _ := toStringAnyMap(call["args"])
		calls = append(calls, FunctionCall{ID: id, Name: name, Arguments: args})
	}
	if len(calls) == 0 {
		return nil
	}
	return m.emitEvent(ctx, ModelToolCallEvent{Calls: calls})
}

func toStringAnyMap(value any) (map[string]any, bool) {
	result, ok := value.(map[string]any)
	return result, ok
}
