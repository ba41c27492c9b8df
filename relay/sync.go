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
	"log/slog"
	"sync"
	"time"
)

// DefaultFullSyncDebounce is the trailing delay before a coalesced full
// resync fires.
const DefaultFullSyncDebounce = 300 * time.Millisecond

// SyncManager reconciles one connection's mirror with the session store.
//
// Failures are logged and swallowed: the relay must keep flowing even when
// persistence lags, since the mirror remains the in-turn source of truth.
type SyncManager struct {
	store    SessionStore
	formID   string
	debounce time.Duration
	logger   *slog.Logger

	mu          sync.Mutex
	syncPending bool
}

// NewSyncManager builds a sync manager for one connection.
func NewSyncManager(store SessionStore, formID string, logger *slog.Logger) *SyncManager {
	return &SyncManager{
		store:    store,
		formID:   formID,
		debounce: DefaultFullSyncDebounce,
		logger:   logger,
	}
}

// SyncUpdates pushes applied updates to the session store, best effort.
func (s *SyncManager) SyncUpdates(ctx context.Context, applied map[string]any) {
	if s.formID == "" || len(applied) == 0 {
		return
	}
	if _, err := s.store.UpdateFields(ctx, s.formID, applied); err != nil {
		s.logger.Warn("field sync failed",
			slog.String("formID", s.formID),
			slog.String("error", err.Error()))
	}
}

// ScheduleFullSync arranges a debounced re-push of every non-empty mirror
// field. A pending request coalesces new ones into a no-op, and in direct
// mode the whole mechanism is skipped: each incremental update is already
// authoritative. The wait is abandoned when ctx is cancelled; a full sync
// that never fires is acceptable.
func (s *SyncManager) ScheduleFullSync(ctx context.Context, mirror *Mirror) {
	if s.formID == "" || s.store.Direct() {
		return
	}
	s.mu.Lock()
	if s.syncPending {
		s.mu.Unlock()
		return
	}
	s.syncPending = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.syncPending = false
			s.mu.Unlock()
		}()
		timer := time.NewTimer(s.debounce)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return
		}
		s.SyncUpdates(ctx, mirror.NonEmpty())
	}()
}

// ConfirmDownload records the download confirmation in the session store.
func (s *SyncManager) ConfirmDownload(ctx context.Context) {
	if s.formID == "" {
		return
	}
	if err := s.store.ConfirmDownload(ctx, s.formID); err != nil {
		s.logger.Warn("download confirmation sync failed",
			slog.String("formID", s.formID),
			slog.String("error", err.Error()))
	}
}
