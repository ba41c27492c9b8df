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
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Caellwyn/gemini-realtime-voice-app/form"
	"github.com/Caellwyn/gemini-realtime-voice-app/realtime"
)

// DefaultLatencyInterval is the period between client latency probes.
const DefaultLatencyInterval = 30 * time.Second

// defaultAudioMIMEType is assumed for media chunks that omit a mime type.
const defaultAudioMIMEType = "audio/pcm;rate=16000"

// clientConn is the subset of the browser websocket used by the session
// handler, so tests can substitute a fake connection.
type clientConn interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v any) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// syncedConn serializes writes; the model listener, the receive loop, and
// the latency probe all write to the same client connection.
type syncedConn struct {
	mu   sync.Mutex
	conn clientConn
}

func (c *syncedConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *syncedConn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(messageType, data, deadline)
}

// Server hosts the browser-facing realtime endpoint. One connection maps to
// one upstream Live session and one form mirror.
type Server struct {
	Store           SessionStore
	Audit           *ToolAudit
	Logger          *slog.Logger
	APIKey          string
	NewModel        func() realtime.Model
	TransportConfig *realtime.TransportConfig
	LatencyInterval time.Duration
	SyncDebounce    time.Duration
}

// The browser client is served from a different port than the relay, so the
// upgrade is always cross-origin.
var clientUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := clientUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	s.HandleConnection(r.Context(), conn)
}

// HandleConnection runs one realtime session from setup to close. The first
// client message must be a setup message; everything after streams through
// the model and the reconciliation engine.
func (s *Server) HandleConnection(ctx context.Context, conn clientConn) {
	defer conn.Close()

	setup, err := s.readSetup(conn)
	if err != nil {
		s.Logger.Warn("session setup rejected", slog.String("error", err.Error()))
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, err.Error()), deadline)
		return
	}

	mirror := NewMirror(setup.PDFFormID, setup.PDFFieldNames)
	syncMgr := NewSyncManager(s.Store, setup.PDFFormID, s.Logger)
	if s.SyncDebounce > 0 {
		syncMgr.debounce = s.SyncDebounce
	}
	engine := &ToolCallEngine{Sync: syncMgr, Audit: s.Audit, Logger: s.Logger}
	client := &syncedConn{conn: conn}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := s.NewModel()
	listener := &modelRelayListener{
		server: s,
		client: client,
		model:  model,
		engine: engine,
		mirror: mirror,
		cancel: cancel,
	}
	model.AddListener(listener)

	err = model.Connect(ctx, realtime.ModelConfig{
		APIKey:          s.APIKey,
		TransportConfig: s.TransportConfig,
		Settings: realtime.SessionSettings{
			ModelName:         setup.Model,
			SystemInstruction: SystemInstruction(len(setup.PDFFieldNames)),
			Voice:             setup.VoiceName,
			Tools:             ToolDeclarations(),
			EnableVAD:         setup.EnableVAD,
		},
	})
	if err != nil {
		s.Logger.Error("upstream model connection failed",
			slog.String("formID", setup.PDFFormID),
			slog.String("error", err.Error()))
		return
	}
	defer func() { _ = model.Close(context.WithoutCancel(ctx)) }()

	// Prime the model with the field catalog before any audio arrives.
	priming := form.InitialSystemMessage(mirror.FieldNames, mirror.Catalog.Hash)
	if err := model.SendEvent(ctx, realtime.ModelSendText{Text: priming}); err != nil {
		s.Logger.Warn("catalog priming failed", slog.String("error", err.Error()))
	}

	go s.measureLatency(ctx, client)

	s.receiveLoop(ctx, cancel, conn, client, model, mirror, syncMgr)
}

func (s *Server) readSetup(conn clientConn) (*SetupMessage, error) {
	_, payload, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read setup message: %w", err)
	}
	var envelope ClientEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("parse setup message: %w", err)
	}
	if envelope.Setup == nil {
		return nil, fmt.Errorf("first message must be setup")
	}
	if len(envelope.Setup.PDFFieldNames) == 0 || envelope.Setup.PDFFormID == "" {
		return nil, fmt.Errorf("setup requires pdf_field_names and pdf_form_id")
	}
	return envelope.Setup, nil
}

// receiveLoop processes inbound client messages strictly in arrival order.
// It returns when the transport closes, the context is cancelled, or the
// client confirms the form (the terminal transition).
func (s *Server) receiveLoop(
	ctx context.Context,
	cancel context.CancelFunc,
	conn clientConn,
	client *syncedConn,
	model realtime.Model,
	mirror *Mirror,
	syncMgr *SyncManager,
) {
	defer cancel()
	for {
		if ctx.Err() != nil {
			return
		}
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.Logger.Info("client connection closed",
					slog.String("formID", mirror.FormID),
					slog.String("error", err.Error()))
			}
			return
		}
		var envelope ClientEnvelope
		if err := json.Unmarshal(payload, &envelope); err != nil {
			s.Logger.Warn("unparsable client message", slog.String("error", err.Error()))
			continue
		}

		switch {
		case envelope.RealtimeInput != nil:
			s.handleRealtimeInput(ctx, model, envelope.RealtimeInput)

		case envelope.UserEdit != nil:
			s.handleUserEdit(ctx, model, mirror, syncMgr, envelope.UserEdit)

		case envelope.ConfirmForm != nil:
			s.handleConfirmation(ctx, client, model, mirror, syncMgr)
			return

		case envelope.Setup != nil:
			s.Logger.Warn("duplicate setup message ignored", slog.String("formID", mirror.FormID))
		}
	}
}

func (s *Server) handleRealtimeInput(ctx context.Context, model realtime.Model, input *RealtimeInput) {
	for _, chunk := range input.MediaChunks {
		data, err := base64.StdEncoding.DecodeString(chunk.Data)
		if err != nil {
			s.Logger.Warn("dropping undecodable audio chunk", slog.String("error", err.Error()))
			continue
		}
		mimeType := chunk.MIMEType
		if mimeType == "" {
			mimeType = defaultAudioMIMEType
		}
		if err := model.SendEvent(ctx, realtime.ModelSendAudio{MIMEType: mimeType, Data: data}); err != nil {
			s.Logger.Warn("audio forward failed", slog.String("error", err.Error()))
		}
	}
	if input.Text != "" {
		if err := model.SendEvent(ctx, realtime.ModelSendText{Text: input.Text}); err != nil {
			s.Logger.Warn("text forward failed", slog.String("error", err.Error()))
		}
	}
	if input.AudioStreamEnd {
		if err := model.SendEvent(ctx, realtime.ModelSendAudioStreamEnd{}); err != nil {
			s.Logger.Warn("audio stream end forward failed", slog.String("error", err.Error()))
		}
	}
}

// handleUserEdit applies a manual browser edit through the same applier path
// as tool calls and nudges the model toward the next missing field.
func (s *Server) handleUserEdit(ctx context.Context, model realtime.Model, mirror *Mirror, syncMgr *SyncManager, edit *UserEdit) {
	if edit.Field == "" {
		return
	}
	summary := mirror.Apply(map[string]any{edit.Field: edit.Value})
	if len(summary.Applied) == 0 && len(summary.Unchanged) == 0 {
		return
	}

	msg := fmt.Sprintf("User explicitly set %s = %s. Ask only for the next missing field.", edit.Field, edit.Value)
	if summary.Complete {
		msg = "All fields now provided. Ask user for final confirmation."
	}
	if err := model.SendEvent(ctx, realtime.ModelSendText{Text: msg}); err != nil {
		s.Logger.Warn("user edit nudge failed", slog.String("error", err.Error()))
	}

	syncMgr.SyncUpdates(ctx, toAnyMap(summary.Applied))
	syncMgr.ScheduleFullSync(ctx, mirror)
}

// handleConfirmation is the one-confirmation-per-session terminal transition:
// record the confirmation, push a final full sync, tell the client the
// download is ready, and end the session.
func (s *Server) handleConfirmation(ctx context.Context, client *syncedConn, model realtime.Model, mirror *Mirror, syncMgr *SyncManager) {
	syncMgr.ConfirmDownload(ctx)
	syncMgr.SyncUpdates(ctx, mirror.NonEmpty())

	if err := model.SendEvent(ctx, realtime.ModelSendText{
		Text: "User confirmed all fields. Session will conclude.",
	}); err != nil {
		s.Logger.Warn("confirmation notice failed", slog.String("error", err.Error()))
	}

	if err := client.WriteJSON(DownloadReadyMessage{DownloadReady: true, FormID: mirror.FormID}); err != nil {
		s.Logger.Warn("download_ready push failed", slog.String("error", err.Error()))
	}
}

// measureLatency periodically pings the client connection. RTT shows up in
// the pong handler installed by gorilla; here the probe just keeps sending
// and logs the departure.
func (s *Server) measureLatency(ctx context.Context, client *syncedConn) {
	interval := s.LatencyInterval
	if interval <= 0 {
		interval = DefaultLatencyInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			if err := client.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				s.Logger.Info("latency probe stopped", slog.String("error", err.Error()))
				return
			}
			s.Logger.Debug("latency probe sent", slog.Duration("writeTime", time.Since(start)))
		}
	}
}

// modelRelayListener forwards model events to the browser and routes tool
// calls through the reconciliation engine.
type modelRelayListener struct {
	server *Server
	client *syncedConn
	model  realtime.Model
	engine *ToolCallEngine
	mirror *Mirror
	cancel context.CancelFunc
}

func (l *modelRelayListener) OnEvent(ctx context.Context, event realtime.ModelEvent) error {
	switch e := event.(type) {
	case realtime.ModelAudioEvent:
		return l.client.WriteJSON(AudioMessage{
			Audio:         base64.StdEncoding.EncodeToString(e.Data),
			AudioMIMEType: e.MIMEType,
		})

	case realtime.ModelTextEvent:
		return l.client.WriteJSON(TextMessage{Text: e.Text})

	case realtime.ModelToolCallEvent:
		responses := make([]realtime.FunctionResponse, 0, len(e.Calls))
		for _, call := range e.Calls {
			result := l.engine.Handle(ctx, call, l.mirror)
			responses = append(responses, result.Response)
			for _, notification := range result.Notifications {
				if err := l.client.WriteJSON(notification); err != nil {
					l.server.Logger.Warn("client notification failed", slog.String("error", err.Error()))
				}
			}
		}
		if err := l.model.SendEvent(ctx, realtime.ModelSendToolResponse{Responses: responses}); err != nil {
			l.server.Logger.Warn("tool response send failed", slog.String("error", err.Error()))
		}
		return nil

	case realtime.ModelConnectionStatusEvent:
		if e.Status == realtime.ConnectionStatusDisconnected {
			l.cancel()
		}
		return nil

	case realtime.ModelGoAwayEvent:
		l.server.Logger.Warn("upstream session ending", slog.String("timeLeft", e.TimeLeft))
		return nil

	case realtime.ModelErrorEvent:
		l.server.Logger.Warn("upstream model error", slog.Any("error", e.Error))
		return nil

	case realtime.ModelExceptionEvent:
		l.server.Logger.Warn("upstream transport exception", slog.String("error", e.Exception.Error()))
		return nil

	default:
		return nil
	}
}
