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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncUpdatesPushesAppliedFields(t *testing.T) {
	store := &fakeStore{direct: true}
	s := NewSyncManager(store, "form-1", testLogger())

	s.SyncUpdates(context.Background(), map[string]any{"Name": "Alice"})

	require.Equal(t, 1, store.updateCount())
	assert.Equal(t, map[string]any{"Name": "Alice"}, store.updates[0])
}

func TestSyncUpdatesSkipsEmptyBatch(t *testing.T) {
	store := &fakeStore{direct: true}
	s := NewSyncManager(store, "form-1", testLogger())

	s.SyncUpdates(context.Background(), map[string]any{})
	s.SyncUpdates(context.Background(), nil)

	assert.Equal(t, 0, store.updateCount())
}

func TestSyncUpdatesSwallowsStoreErrors(t *testing.T) {
	store := &fakeStore{direct: true, err: errors.New("store down")}
	s := NewSyncManager(store, "form-1", testLogger())

	assert.NotPanics(t, func() {
		s.SyncUpdates(context.Background(), map[string]any{"Name": "Alice"})
	})
}

func TestScheduleFullSyncNoOpInDirectMode(t *testing.T) {
	store := &fakeStore{direct: true}
	s := NewSyncManager(store, "form-1", testLogger())
	s.debounce = time.Millisecond
	mirror := NewMirror("form-1", []string{"Name"})
	mirror.Apply(map[string]any{"Name": "Alice"})

	s.ScheduleFullSync(context.Background(), mirror)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, store.updateCount())
}

func TestScheduleFullSyncFiresAfterDebounce(t *testing.T) {
	store := &fakeStore{}
	s := NewSyncManager(store, "form-1", testLogger())
	s.debounce = time.Millisecond
	mirror := NewMirror("form-1", []string{"Name", "Email"})
	mirror.Apply(map[string]any{"Name": "Alice"})

	s.ScheduleFullSync(context.Background(), mirror)

	assert.Eventually(t, func() bool {
		return store.updateCount() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, map[string]any{"Name": "Alice"}, store.updates[0])
}

func TestScheduleFullSyncCoalescesPendingRequests(t *testing.T) {
	store := &fakeStore{}
	s := NewSyncManager(store, "form-1", testLogger())
	s.debounce = 50 * time.Millisecond
	mirror := NewMirror("form-1", []string{"Name"})
	mirror.Apply(map[string]any{"Name": "Alice"})

	for range 5 {
		s.ScheduleFullSync(context.Background(), mirror)
	}

	assert.Eventually(t, func() bool {
		return store.updateCount() == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, store.updateCount())
}

func TestScheduleFullSyncAbandonedOnCancel(t *testing.T) {
	store := &fakeStore{}
	s := NewSyncManager(store, "form-1", testLogger())
	s.debounce = 50 * time.Millisecond
	mirror := NewMirror("form-1", []string{"Name"})
	mirror.Apply(map[string]any{"Name": "Alice"})

	ctx, cancel := context.WithCancel(context.Background())
	s.ScheduleFullSync(ctx, mirror)
	cancel()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, store.updateCount())
}

func TestConfirmDownloadReachesStore(t *testing.T) {
	store := &fakeStore{direct: true}
	s := NewSyncManager(store, "form-1", testLogger())

	s.ConfirmDownload(context.Background())

	assert.Equal(t, 1, store.confirmed)
}
