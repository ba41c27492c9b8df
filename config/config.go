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

// Package config loads service configuration from an optional YAML file with
// environment overrides for secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Relay   RelayConfig   `yaml:"relay"`
	Session SessionConfig `yaml:"session"`
	Gemini  GeminiConfig  `yaml:"gemini"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
}

// HTTPConfig configures the REST and static-file server.
type HTTPConfig struct {
	Addr          string `yaml:"addr"`
	MaxUploadSize int64  `yaml:"max_upload_size"`
	StaticDir     string `yaml:"static_dir"`
}

// RelayConfig configures the browser-facing realtime endpoint.
type RelayConfig struct {
	Addr            string        `yaml:"addr"`
	SyncDebounce    time.Duration `yaml:"sync_debounce"`
	LatencyInterval time.Duration `yaml:"latency_interval"`
	PingInterval    time.Duration `yaml:"ping_interval"`
	// PingTimeout <= 0 disables read-deadline enforcement, tolerating long
	// model-processing pauses.
	PingTimeout time.Duration `yaml:"ping_timeout"`
	// RemoteSyncURL switches the relay to remote mode against an HTTP
	// server in another process. Empty means direct in-process sync.
	RemoteSyncURL string `yaml:"remote_sync_url"`
	AuditLogPath  string `yaml:"audit_log_path"`
}

// SessionConfig configures session expiry.
type SessionConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// GeminiConfig configures the upstream Live connection.
type GeminiConfig struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	Voice     string `yaml:"voice"`
	EnableVAD bool   `yaml:"enable_vad"`

	// NormalizeFields runs each extracted schema through an extra Gemini
	// call that proposes friendly display names, spoken prompts, and
	// field groupings. Off by default.
	NormalizeFields bool   `yaml:"normalize_fields"`
	NormalizerModel string `yaml:"normalizer_model"`
}

// StorageConfig configures on-disk PDF storage.
type StorageConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:          ":8000",
			MaxUploadSize: 5 << 20,
			StaticDir:     "web",
		},
		Relay: RelayConfig{
			Addr:            ":9082",
			SyncDebounce:    300 * time.Millisecond,
			LatencyInterval: 30 * time.Second,
			PingInterval:    30 * time.Second,
			PingTimeout:     0,
		},
		Session: SessionConfig{
			Timeout:       10 * time.Minute,
			SweepInterval: 3 * time.Minute,
		},
		Gemini: GeminiConfig{
			Model:           "gemini-2.5-flash-preview-native-audio-dialog",
			Voice:           "Puck",
			EnableVAD:       true,
			NormalizerModel: "gemini-2.5-flash",
		},
		Storage: StorageConfig{
			Dir: "uploaded_forms",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from path, merged over Default. An empty path
// returns the defaults. GEMINI_API_KEY in the environment overrides the file
// in either case.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.Gemini.APIKey = key
	}
	return cfg, nil
}
