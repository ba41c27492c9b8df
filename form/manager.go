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
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultSessionTimeout is the inactivity window after which a session
	// is eligible for the background sweep.
	DefaultSessionTimeout = 10 * time.Minute
	// DefaultSweepInterval is how often the background sweep runs.
	DefaultSweepInterval = 3 * time.Minute
)

// SessionManager owns the registry of live form sessions.
//
// It is the one genuinely shared multi-writer resource of the system: every
// connection's tasks and the background sweep goroutine go through the single
// registry mutex, so updates to the same form from different connections are
// linearized, last write wins per field.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	storage *Storage
	logger  *slog.Logger
	timeout time.Duration

	sweepInterval time.Duration
	sweepStop     chan struct{}
	sweepDone     chan struct{}
}

// SessionManagerOption customizes a SessionManager.
type SessionManagerOption func(*SessionManager)

// WithSessionTimeout overrides the inactivity timeout.
func WithSessionTimeout(d time.Duration) SessionManagerOption {
	return func(m *SessionManager) { m.timeout = d }
}

// WithSweepInterval overrides the background sweep interval.
func WithSweepInterval(d time.Duration) SessionManagerOption {
	return func(m *SessionManager) { m.sweepInterval = d }
}

// NewSessionManager builds a manager. storage may be nil when no on-disk
// artifacts are kept (tests); logger must not be nil.
func NewSessionManager(storage *Storage, logger *slog.Logger, opts ...SessionManagerOption) *SessionManager {
	m := &SessionManager{
		sessions:      make(map[string]*Session),
		storage:       storage,
		logger:        logger,
		timeout:       DefaultSessionTimeout,
		sweepInterval: DefaultSweepInterval,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create registers a new session for formID, replacing any existing one.
// Replacement is a full delete-then-create including on-disk artifacts, so at
// most one live session exists per form id and nothing from a prior schema
// leaks into the new state.
func (m *SessionManager) Create(formID string, schema *Schema) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[formID]; ok {
		m.deleteLocked(formID)
	}
	session := NewSession(formID, schema)
	m.sessions[formID] = session
	return session
}

// Get returns the session for formID, or nil if unknown. A successful lookup
// touches the activity timestamp: an active voice conversation must not
// expire mid-session.
func (m *SessionManager) Get(formID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	session := m.sessions[formID]
	if session != nil {
		session.Touch()
		if m.storage != nil {
			m.storage.Touch(formID)
		}
	}
	return session
}

// Snapshot returns a point-in-time view of a session's progress without
// handing out the session itself. It reports false when formID is unknown.
// Unlike Get, reading status does not extend the session lease.
func (m *SessionManager) Snapshot(formID string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session := m.sessions[formID]
	if session == nil {
		return Snapshot{}, false
	}
	return session.Snapshot(), true
}

// UpdateFields applies updates to the session's state via ApplyFieldUpdates.
// It returns the applied subset. A nil result means the session is unknown;
// an empty non-nil map means nothing changed.
func (m *SessionManager) UpdateFields(formID string, updates map[string]any) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	session := m.sessions[formID]
	if session == nil {
		return nil
	}
	summary := ApplyFieldUpdates(updates, session.State, session.Confirmed, session.Schema.OrderedFieldNames())
	session.Touch()
	if m.storage != nil {
		m.storage.Touch(formID)
	}
	return summary.Applied
}

// ConfirmDownload marks the session as confirmed for download. Confirmation
// is independent of completeness and does not freeze further edits.
func (m *SessionManager) ConfirmDownload(formID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	session := m.sessions[formID]
	if session == nil {
		return false
	}
	session.DownloadConfirmed = true
	session.Touch()
	return true
}

// Delete removes a session and its stored artifacts. It reports whether a
// session existed.
func (m *SessionManager) Delete(formID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteLocked(formID)
}

func (m *SessionManager) deleteLocked(formID string) bool {
	if _, ok := m.sessions[formID]; !ok {
		return false
	}
	delete(m.sessions, formID)
	if m.storage != nil {
		if err := m.storage.Delete(formID); err != nil {
			m.logger.Warn("session artifact deletion failed",
				slog.String("formID", formID),
				slog.String("error", err.Error()))
		}
	}
	return true
}

// Sweep removes every expired session and returns how many were removed.
func (m *SessionManager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for formID, session := range m.sessions {
		if session.IsExpired(m.timeout) {
			m.deleteLocked(formID)
			removed++
			m.logger.Info("removed expired form session", slog.String("formID", formID))
		}
	}
	return removed
}

// ClearAll deletes every session and its artifacts. Used by explicit reset.
func (m *SessionManager) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for formID := range m.sessions {
		m.deleteLocked(formID)
	}
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// IDs returns the ids of all live sessions.
func (m *SessionManager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for formID := range m.sessions {
		ids = append(ids, formID)
	}
	return ids
}

// StartSweep launches the background expiry sweep. It runs on its own
// goroutine, independent of any connection's lifetime, until StopSweep.
func (m *SessionManager) StartSweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sweepStop != nil {
		return
	}
	m.sweepStop = make(chan struct{})
	m.sweepDone = make(chan struct{})
	go m.sweepLoop(m.sweepStop, m.sweepDone)
}

// StopSweep halts the background sweep and waits for it to exit.
func (m *SessionManager) StopSweep() {
	m.mu.Lock()
	stop, done := m.sweepStop, m.sweepDone
	m.sweepStop, m.sweepDone = nil, nil
	m.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (m *SessionManager) sweepLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Sweep()
		case <-stop:
			return
		}
	}
}
