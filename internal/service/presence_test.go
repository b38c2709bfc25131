package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(grace time.Duration) (*PresenceTracker, *Client) {
	hub := NewHub()
	watcher := newTestClient(99, "agent")
	hub.Join(watcher, PresenceTopic)
	return NewPresenceTracker(hub, grace), watcher
}

func TestPresenceOnlineIffConnected(t *testing.T) {
	tracker, _ := newTestTracker(time.Minute)
	connID := uuid.New()

	status, _ := tracker.Status(1)
	assert.Equal(t, PresenceOffline, status)
	assert.Zero(t, tracker.Connections(1))

	tracker.HandleConnect(1, connID)
	status, _ = tracker.Status(1)
	assert.Equal(t, PresenceOnline, status)
	assert.Equal(t, 1, tracker.Connections(1))

	tracker.HandleDisconnect(1, connID)
	status, _ = tracker.Status(1)
	assert.Equal(t, PresenceOffline, status)
	assert.Zero(t, tracker.Connections(1))
}

func TestPresenceMultiDeviceDisconnectKeepsOnline(t *testing.T) {
	tracker, _ := newTestTracker(time.Minute)
	phone := uuid.New()
	laptop := uuid.New()

	tracker.HandleConnect(1, phone)
	tracker.HandleConnect(1, laptop)
	require.Equal(t, 2, tracker.Connections(1))

	// 其中一個裝置斷線，另一個還在，狀態必須維持 online
	tracker.HandleDisconnect(1, phone)
	status, _ := tracker.Status(1)
	assert.Equal(t, PresenceOnline, status)
	assert.Equal(t, 1, tracker.Connections(1))
}

func TestPresenceEvictionAfterGrace(t *testing.T) {
	tracker, _ := newTestTracker(20 * time.Millisecond)
	connID := uuid.New()

	tracker.HandleConnect(1, connID)
	tracker.HandleDisconnect(1, connID)

	assert.Eventually(t, func() bool {
		tracker.mu.Lock()
		defer tracker.mu.Unlock()
		_, exists := tracker.records[1]
		return !exists
	}, time.Second, 5*time.Millisecond)

	// 記錄移除後查詢回到預設 offline
	status, lastSeen := tracker.Status(1)
	assert.Equal(t, PresenceOffline, status)
	assert.True(t, lastSeen.IsZero())
}

func TestPresenceReconnectWithinGraceCancelsEviction(t *testing.T) {
	tracker, _ := newTestTracker(30 * time.Millisecond)
	first := uuid.New()

	tracker.HandleConnect(1, first)
	tracker.HandleDisconnect(1, first)

	// 寬限期內帶新連接 ID 重連
	second := uuid.New()
	tracker.HandleConnect(1, second)

	time.Sleep(60 * time.Millisecond)
	status, _ := tracker.Status(1)
	assert.Equal(t, PresenceOnline, status)

	tracker.mu.Lock()
	_, exists := tracker.records[1]
	recordCount := len(tracker.records)
	tracker.mu.Unlock()
	assert.True(t, exists)
	assert.Equal(t, 1, recordCount) // 重連不會產生重複記錄
}

func TestPresenceSetStatus(t *testing.T) {
	tracker, watcher := newTestTracker(time.Minute)
	connID := uuid.New()
	tracker.HandleConnect(1, connID)
	drainEvents(t, watcher)

	require.NoError(t, tracker.SetStatus(1, PresenceBusy))
	status, _ := tracker.Status(1)
	assert.Equal(t, PresenceBusy, status)

	// 狀態覆寫一定會廣播
	events := drainEvents(t, watcher)
	envelope, ok := findEvent(events, EventPresenceUpdate)
	require.True(t, ok)
	var update PresenceUpdate
	require.NoError(t, json.Unmarshal(envelope.Data, &update))
	assert.Equal(t, uint(1), update.UserID)
	assert.Equal(t, PresenceBusy, update.Status)
}

func TestPresenceSetStatusRejectsInvalid(t *testing.T) {
	tracker, _ := newTestTracker(time.Minute)
	tracker.HandleConnect(1, uuid.New())

	assert.ErrorIs(t, tracker.SetStatus(1, "offline"), ErrInvalidStatus)
	assert.ErrorIs(t, tracker.SetStatus(1, "invisible"), ErrInvalidStatus)
	assert.ErrorIs(t, tracker.SetStatus(2, PresenceAway), ErrNotTracked)
}

func TestPresenceBroadcastOnConnectAndDisconnect(t *testing.T) {
	tracker, watcher := newTestTracker(time.Minute)
	connID := uuid.New()

	tracker.HandleConnect(1, connID)
	events := drainEvents(t, watcher)
	envelope, ok := findEvent(events, EventPresenceUpdate)
	require.True(t, ok)
	var update PresenceUpdate
	require.NoError(t, json.Unmarshal(envelope.Data, &update))
	assert.Equal(t, PresenceOnline, update.Status)

	tracker.HandleDisconnect(1, connID)
	events = drainEvents(t, watcher)
	envelope, ok = findEvent(events, EventPresenceUpdate)
	require.True(t, ok)
	require.NoError(t, json.Unmarshal(envelope.Data, &update))
	assert.Equal(t, PresenceOffline, update.Status)
}
