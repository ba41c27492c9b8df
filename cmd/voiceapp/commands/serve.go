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

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Caellwyn/gemini-realtime-voice-app/config"
	"github.com/Caellwyn/gemini-realtime-voice-app/form"
	"github.com/Caellwyn/gemini-realtime-voice-app/httpapi"
	"github.com/Caellwyn/gemini-realtime-voice-app/pdfform"
	"github.com/Caellwyn/gemini-realtime-voice-app/realtime"
	"github.com/Caellwyn/gemini-realtime-voice-app/relay"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server and the realtime relay",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(serveConfigPath)
		if err != nil {
			return err
		}
		return runServe(cmd.Context(), cfg)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context, cfg config.Config) error {
	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return err
	}

	if cfg.Gemini.APIKey == "" {
		logger.Warn("GEMINI_API_KEY is not set; upstream connections will fail")
	}

	storage, err := form.NewStorage(cfg.Storage.Dir, cfg.Session.Timeout)
	if err != nil {
		return fmt.Errorf("init PDF storage: %w", err)
	}
	storage.StartCleanup(cfg.Session.SweepInterval)
	defer storage.StopCleanup()

	sessions := form.NewSessionManager(storage, logger,
		form.WithSessionTimeout(cfg.Session.Timeout),
		form.WithSweepInterval(cfg.Session.SweepInterval))
	sessions.StartSweep()
	defer sessions.StopSweep()

	apiServer := &httpapi.Server{
		Sessions:      sessions,
		Storage:       storage,
		Logger:        logger,
		Extract:       buildExtract(ctx, cfg.Gemini, logger),
		Fill:          pdfform.Fill,
		MaxUploadSize: cfg.HTTP.MaxUploadSize,
		Static:        staticHandler(cfg.HTTP.StaticDir),
	}

	audit, auditClose, err := buildAudit(cfg.Relay.AuditLogPath)
	if err != nil {
		return err
	}
	defer auditClose()

	relayServer := &relay.Server{
		Store:           buildStore(cfg, sessions),
		Audit:           audit,
		Logger:          logger,
		APIKey:          cfg.Gemini.APIKey,
		NewModel:        func() realtime.Model { return realtime.NewGeminiLiveModel() },
		TransportConfig: buildTransportConfig(cfg.Relay),
		LatencyInterval: cfg.Relay.LatencyInterval,
		SyncDebounce:    cfg.Relay.SyncDebounce,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpSrv := &http.Server{Addr: cfg.HTTP.Addr, Handler: apiServer.Routes()}
	relaySrv := &http.Server{Addr: cfg.Relay.Addr, Handler: relayServer}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", slog.String("addr", cfg.HTTP.Addr))
		return ignoreServerClosed(httpSrv.ListenAndServe())
	})
	g.Go(func() error {
		logger.Info("realtime relay listening", slog.String("addr", cfg.Relay.Addr))
		return ignoreServerClosed(relaySrv.ListenAndServe())
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		errHTTP := httpSrv.Shutdown(shutdownCtx)
		errRelay := relaySrv.Shutdown(shutdownCtx)
		return errors.Join(errHTTP, errRelay)
	})
	return g.Wait()
}

func buildLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "", "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}
	return slog.New(handler), nil
}

// buildExtract wraps schema extraction with the optional Gemini field
// normalizer. Normalization failures fall back to the raw extraction result.
func buildExtract(ctx context.Context, cfg config.GeminiConfig, logger *slog.Logger) httpapi.ExtractFunc {
	if !cfg.NormalizeFields {
		return pdfform.Extract
	}
	normalizer := &pdfform.FieldNormalizer{
		APIKey: cfg.APIKey,
		Model:  cfg.NormalizerModel,
		Logger: logger,
	}
	return func(pdf []byte, originalFilename string) (*form.Schema, error) {
		schema, err := pdfform.Extract(pdf, originalFilename)
		if err != nil {
			return nil, err
		}
		callCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := normalizer.Normalize(callCtx, schema); err != nil {
			logger.Warn("field normalization failed; keeping raw field names", "error", err)
		}
		return schema, nil
	}
}

func buildStore(cfg config.Config, sessions *form.SessionManager) relay.SessionStore {
	if cfg.Relay.RemoteSyncURL != "" {
		return relay.NewRemoteStore(cfg.Relay.RemoteSyncURL)
	}
	return &relay.DirectStore{Sessions: sessions}
}

func buildTransportConfig(cfg config.RelayConfig) *realtime.TransportConfig {
	tc := &realtime.TransportConfig{}
	if cfg.PingInterval > 0 {
		tc.PingInterval = &cfg.PingInterval
	}
	if cfg.PingTimeout > 0 {
		tc.PingTimeout = &cfg.PingTimeout
	}
	return tc
}

func buildAudit(path string) (*relay.ToolAudit, func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit log: %w", err)
	}
	return relay.NewToolAudit(file), func() { _ = file.Close() }, nil
}

func staticHandler(dir string) http.Handler {
	if dir == "" {
		return nil
	}
	return http.FileServer(http.Dir(dir))
}

func ignoreServerClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
