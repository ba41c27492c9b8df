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

package form

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	originalPDFName = "original.pdf"
	filledPDFName   = "filled.pdf"
	metaFileName    = "meta.txt"
)

// Storage keeps per-form PDF artifacts on disk: one directory per form id
// holding the uploaded original and, once generated, the filled output. The
// whole directory is removed on session deletion or expiry.
type Storage struct {
	baseDir           string
	inactivityTimeout time.Duration

	mu          sync.Mutex
	lastSeen    map[string]time.Time
	cleanupStop chan struct{}
	cleanupDone chan struct{}
}

// NewStorage creates the base directory if needed.
func NewStorage(baseDir string, inactivityTimeout time.Duration) (*Storage, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage dir: %w", err)
	}
	return &Storage{
		baseDir:           baseDir,
		inactivityTimeout: inactivityTimeout,
		lastSeen:          make(map[string]time.Time),
	}, nil
}

func (s *Storage) formDir(formID string) string {
	return filepath.Join(s.baseDir, formID)
}

// Create stores the original PDF bytes under a new (or supplied) form id and
// returns the id.
func (s *Storage) Create(originalPDF []byte, originalFilename, formID string) (string, error) {
	if formID == "" {
		formID = uuid.New().String()
	}
	dir := s.formDir(formID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating form dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, originalPDFName), originalPDF, 0o644); err != nil {
		return "", fmt.Errorf("writing original pdf: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metaFileName), []byte(originalFilename), 0o644); err != nil {
		return "", fmt.Errorf("writing meta: %w", err)
	}
	s.mu.Lock()
	s.lastSeen[formID] = time.Now()
	s.mu.Unlock()
	return formID, nil
}

// Touch refreshes the artifact lease for a form id.
func (s *Storage) Touch(formID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lastSeen[formID]; ok {
		s.lastSeen[formID] = time.Now()
	}
}

// LoadOriginal returns the stored original PDF, or nil if absent.
func (s *Storage) LoadOriginal(formID string) []byte {
	data, err := os.ReadFile(filepath.Join(s.formDir(formID), originalPDFName))
	if err != nil {
		return nil
	}
	return data
}

// SaveFilled stores the filled PDF output for a form.
func (s *Storage) SaveFilled(formID string, filledPDF []byte) error {
	return os.WriteFile(filepath.Join(s.formDir(formID), filledPDFName), filledPDF, 0o644)
}

// FilledPath returns the path of the filled PDF if it exists.
func (s *Storage) FilledPath(formID string) (string, bool) {
	path := filepath.Join(s.formDir(formID), filledPDFName)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// Delete removes every artifact for a form id.
func (s *Storage) Delete(formID string) error {
	s.mu.Lock()
	delete(s.lastSeen, formID)
	s.mu.Unlock()
	return os.RemoveAll(s.formDir(formID))
}

// StartCleanup launches the background artifact reaper. It removes form
// directories whose lease lapsed, on its own goroutine, until StopCleanup.
func (s *Storage) StartCleanup(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cleanupStop != nil {
		return
	}
	s.cleanupStop = make(chan struct{})
	s.cleanupDone = make(chan struct{})
	go s.cleanupLoop(interval, s.cleanupStop, s.cleanupDone)
}

// StopCleanup halts the background reaper and waits for it to exit.
func (s *Storage) StopCleanup() {
	s.mu.Lock()
	stop, done := s.cleanupStop, s.cleanupDone
	s.cleanupStop, s.cleanupDone = nil, nil
	s.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (s *Storage) cleanupLoop(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.CleanupInactive()
		case <-stop:
			return
		}
	}
}

// CleanupInactive removes artifacts whose lease lapsed.
func (s *Storage) CleanupInactive() {
	now := time.Now()
	var stale []string
	s.mu.Lock()
	for formID, seen := range s.lastSeen {
		if now.Sub(seen) > s.inactivityTimeout {
			stale = append(stale, formID)
		}
	}
	s.mu.Unlock()
	for _, formID := range stale {
		_ = s.Delete(formID)
	}
}
