package service

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// 在線狀態的合法值；offline 由連接數歸零推導，不接受客戶端指定
const (
	PresenceOnline  = "online"
	PresenceAway    = "away"
	PresenceBusy    = "busy"
	PresenceOffline = "offline"
)

// PresenceBus 是跨節點轉發在線狀態的協作介面，單節點部署可以不提供
type PresenceBus interface {
	Publish(ctx context.Context, payload interface{}) error
	Subscribe(ctx context.Context, handler func(data []byte))
}

// presenceRecord 是單一用戶的在線狀態記錄，
// 連接集合清空並超過寬限期後整筆移除
type presenceRecord struct {
	status   string
	lastSeen time.Time
	conns    map[uuid.UUID]bool
	evict    *time.Timer
}

// PresenceTracker 維護所有用戶的在線狀態，狀態只存在於進程內，
// 重啟後歸零；在線狀態是即時信號，不是稽核記錄
type PresenceTracker struct {
	hub     *Hub
	mu      sync.Mutex
	records map[uint]*presenceRecord
	grace   time.Duration
	bus     PresenceBus
	nodeID  string
}

// NewPresenceTracker 創建在線狀態追蹤器；grace 是連接清空後
// 保留記錄的寬限期，未指定時為 5 分鐘
func NewPresenceTracker(hub *Hub, grace time.Duration) *PresenceTracker {
	if grace <= 0 {
		grace = 5 * time.Minute
	}
	return &PresenceTracker{
		hub:     hub,
		records: make(map[uint]*presenceRecord),
		grace:   grace,
		nodeID:  uuid.NewString(),
	}
}

// AttachBus 掛上跨節點廣播匯流排，其他節點的更新會轉發給本地訂閱者
func (t *PresenceTracker) AttachBus(ctx context.Context, bus PresenceBus) {
	t.bus = bus
	bus.Subscribe(ctx, t.handleBusMessage)
}

func (t *PresenceTracker) handleBusMessage(data []byte) {
	var update PresenceUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		log.Printf("presence bus decode error: %v", err)
		return
	}
	// 自己發佈的更新已經廣播過本地，跳過避免重複
	if update.Origin == t.nodeID {
		return
	}
	t.hub.Broadcast(PresenceTopic, EventPresenceUpdate, update)
}

// HandleConnect 登記一個新連接；重連會隱含取消進行中的記錄回收
func (t *PresenceTracker) HandleConnect(userID uint, connID uuid.UUID) {
	t.mu.Lock()
	record, ok := t.records[userID]
	if !ok {
		record = &presenceRecord{conns: make(map[uuid.UUID]bool)}
		t.records[userID] = record
	}
	if record.evict != nil {
		record.evict.Stop()
		record.evict = nil
	}
	record.conns[connID] = true
	record.status = PresenceOnline
	record.lastSeen = time.Now()
	update := t.updateLocked(userID, record)
	t.mu.Unlock()

	t.publish(update)
}

// HandleDisconnect 移除一個連接；最後一個連接斷開時狀態轉為 offline
// 並啟動寬限期回收計時
func (t *PresenceTracker) HandleDisconnect(userID uint, connID uuid.UUID) {
	t.mu.Lock()
	record, ok := t.records[userID]
	if !ok {
		t.mu.Unlock()
		return
	}
	delete(record.conns, connID)
	record.lastSeen = time.Now()
	if len(record.conns) == 0 {
		record.status = PresenceOffline
		record.evict = time.AfterFunc(t.grace, func() {
			t.evict(userID)
		})
	}
	update := t.updateLocked(userID, record)
	t.mu.Unlock()

	t.publish(update)
}

// SetStatus 客戶端主動覆寫自己的狀態，只接受 online/away/busy
func (t *PresenceTracker) SetStatus(userID uint, status string) error {
	if status != PresenceOnline && status != PresenceAway && status != PresenceBusy {
		return ErrInvalidStatus
	}

	t.mu.Lock()
	record, ok := t.records[userID]
	if !ok || len(record.conns) == 0 {
		t.mu.Unlock()
		return ErrNotTracked
	}
	record.status = status
	record.lastSeen = time.Now()
	update := t.updateLocked(userID, record)
	t.mu.Unlock()

	t.publish(update)
	return nil
}

// Status 查詢用戶目前的狀態；沒有記錄時視為 offline
func (t *PresenceTracker) Status(userID uint) (string, time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, ok := t.records[userID]
	if !ok {
		return PresenceOffline, time.Time{}
	}
	return record.status, record.lastSeen
}

// Connections 回傳用戶目前的活躍連接數
func (t *PresenceTracker) Connections(userID uint) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, ok := t.records[userID]
	if !ok {
		return 0
	}
	return len(record.conns)
}

// evict 在寬限期結束後移除記錄；期間有重連就保留
func (t *PresenceTracker) evict(userID uint) {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, ok := t.records[userID]
	if ok && len(record.conns) == 0 {
		delete(t.records, userID)
	}
}

func (t *PresenceTracker) updateLocked(userID uint, record *presenceRecord) PresenceUpdate {
	return PresenceUpdate{
		Origin:   t.nodeID,
		UserID:   userID,
		Status:   record.status,
		LastSeen: record.lastSeen,
	}
}

// publish 廣播狀態更新給本地訂閱者，並在有匯流排時發佈給其他節點；
// 匯流排失敗只記錄，在線狀態本來就允許短暫不一致
func (t *PresenceTracker) publish(update PresenceUpdate) {
	t.hub.Broadcast(PresenceTopic, EventPresenceUpdate, update)

	if t.bus != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := t.bus.Publish(ctx, update); err != nil {
				log.Printf("presence bus publish error: %v", err)
			}
		}()
	}
}
