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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8000", cfg.HTTP.Addr)
	assert.Equal(t, ":9082", cfg.Relay.Addr)
	assert.Equal(t, int64(5<<20), cfg.HTTP.MaxUploadSize)
	assert.Equal(t, 300*time.Millisecond, cfg.Relay.SyncDebounce)
	assert.Equal(t, 30*time.Second, cfg.Relay.PingInterval)
	assert.Zero(t, cfg.Relay.PingTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Session.Timeout)
	assert.Equal(t, "gemini-2.5-flash-preview-native-audio-dialog", cfg.Gemini.Model)
	assert.False(t, cfg.Gemini.NormalizeFields)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.NormalizerModel)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":8080"
gemini:
  api_key: from-file
  voice: Kore
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "from-file", cfg.Gemini.APIKey)
	assert.Equal(t, "Kore", cfg.Gemini.Voice)
	assert.Equal(t, ":9082", cfg.Relay.Addr)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "from-env")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gemini:\n  api_key: from-file\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Gemini.APIKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
