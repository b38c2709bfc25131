package service

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client 代表一個 WebSocket 客戶端連接；同一用戶可以同時持有多個連接
type Client struct {
	ConnID   uuid.UUID       // 連接 ID，重連會產生新的 ID
	Conn     *websocket.Conn // WebSocket 連接
	UserID   uint            // 用戶 ID
	Role     string          // 用戶角色 (patient/physician/agent)
	SendChan chan []byte     // 消息發送通道，用於異步傳送消息

	// SendChan 從不關閉：廣播的成員快照可能在連接清理後才送出，
	// 對已關閉通道的發送會讓整個進程崩潰。writePump 改由 done 通知結束
	done chan struct{}
}

// NewClient 創建一個已通過認證的客戶端連接
func NewClient(conn *websocket.Conn, userID uint, role string) *Client {
	return &Client{
		ConnID:   uuid.New(),
		Conn:     conn,
		UserID:   userID,
		Role:     role,
		SendChan: make(chan []byte, 256), // 設置緩衝大小為 256 的消息通道
		done:     make(chan struct{}),
	}
}

// ClientLifecycle 由事件分派器實作，Hub 在連接的三個時間點回呼
type ClientLifecycle interface {
	OnConnect(client *Client)
	OnMessage(client *Client, envelope *Envelope)
	OnDisconnect(client *Client)
}

// Hub 管理所有的 WebSocket 連接與主題訂閱，
// 主題名稱如 user:<id>、conversation:<id>、consultation:<id>
type Hub struct {
	topics     map[string]map[*Client]bool // topic -> client 集合
	clients    map[*Client]map[string]bool // client -> 已加入的 topic 集合
	clientsMux sync.RWMutex                // 保護上面兩個 map 的讀寫鎖
	lifecycle  ClientLifecycle
}

// NewHub 創建並初始化新的連接中樞
func NewHub() *Hub {
	return &Hub{
		topics:  make(map[string]map[*Client]bool),
		clients: make(map[*Client]map[string]bool),
	}
}

// SetLifecycle 注入事件分派器，必須在接受任何連接前呼叫
func (h *Hub) SetLifecycle(lifecycle ClientLifecycle) {
	h.lifecycle = lifecycle
}

// HandleClient 接手一個已認證的連接，直到連接關閉才返回
func (h *Hub) HandleClient(client *Client) {
	h.lifecycle.OnConnect(client)

	// 確保連接關閉時清理資源
	defer func() {
		h.lifecycle.OnDisconnect(client)
		h.RemoveClient(client)
		close(client.done)
		client.Conn.Close()
	}()

	// 啟動讀寫處理
	go h.writePump(client)
	h.readPump(client)
}

// readPump 持續監聽並分派從客戶端接收的事件
func (h *Hub) readPump(client *Client) {
	client.Conn.SetReadLimit(4096) // 設置最大消息大小為 4KB
	client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket unexpected close error: %v", err)
			}
			break
		}

		// 解析接收到的事件；格式錯誤回覆錯誤事件，連接維持開啟
		var envelope Envelope
		if err := json.Unmarshal(message, &envelope); err != nil {
			h.Emit(client, EventError, ErrorPayload{Message: ErrMalformedPayload.Error()})
			continue
		}

		h.lifecycle.OnMessage(client, &envelope)
	}
}

// writePump 處理向客戶端發送消息的邏輯
func (h *Hub) writePump(client *Client) {
	// 設置心跳檢查計時器
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case message := <-client.SendChan:
			// 設置寫入超時
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-client.done:
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			// 發送心跳包
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Join 將客戶端加入指定主題
func (h *Hub) Join(client *Client, topic string) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Client]bool)
	}
	h.topics[topic][client] = true

	if h.clients[client] == nil {
		h.clients[client] = make(map[string]bool)
	}
	h.clients[client][topic] = true
}

// Leave 將客戶端移出指定主題
func (h *Hub) Leave(client *Client, topic string) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	h.leaveLocked(client, topic)
}

func (h *Hub) leaveLocked(client *Client, topic string) {
	if clients, ok := h.topics[topic]; ok {
		delete(clients, client)
		// 如果主題空了，刪除主題
		if len(clients) == 0 {
			delete(h.topics, topic)
		}
	}
	if topics, ok := h.clients[client]; ok {
		delete(topics, topic)
	}
}

// RemoveClient 將客戶端移出所有主題
func (h *Hub) RemoveClient(client *Client) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	for topic := range h.clients[client] {
		h.leaveLocked(client, topic)
	}
	delete(h.clients, client)
}

// InTopic 檢查客戶端是否已加入指定主題
func (h *Hub) InTopic(client *Client, topic string) bool {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()

	return h.clients[client][topic]
}

// TopicsOf 回傳客戶端目前加入的所有主題
func (h *Hub) TopicsOf(client *Client) []string {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()

	topics := make([]string, 0, len(h.clients[client]))
	for topic := range h.clients[client] {
		topics = append(topics, topic)
	}
	return topics
}

// UserConnections 計算指定用戶在主題中的連接數，except 連接不計入，
// 用於判斷多裝置下是否還有其他連接留在房間
func (h *Hub) UserConnections(topic string, userID uint, except *Client) int {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()

	count := 0
	for client := range h.topics[topic] {
		if client.UserID == userID && client != except {
			count++
		}
	}
	return count
}

// Members 回傳主題目前的連接數
func (h *Hub) Members(topic string) int {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()

	return len(h.topics[topic])
}

// Emit 向單一客戶端發送事件
func (h *Hub) Emit(client *Client, event string, data interface{}) {
	message, err := marshalEnvelope(event, data)
	if err != nil {
		log.Printf("message encoding error: %v", err)
		return
	}
	h.send(client, message)
}

// Broadcast 向主題內的所有客戶端廣播事件
func (h *Hub) Broadcast(topic, event string, data interface{}) {
	h.BroadcastExcept(topic, nil, event, data)
}

// BroadcastExcept 向主題內除 skip 以外的客戶端廣播事件
func (h *Hub) BroadcastExcept(topic string, skip *Client, event string, data interface{}) {
	message, err := marshalEnvelope(event, data)
	if err != nil {
		log.Printf("message encoding error: %v", err)
		return
	}

	h.clientsMux.RLock()
	clients := make([]*Client, 0, len(h.topics[topic]))
	for client := range h.topics[topic] {
		if client != skip {
			clients = append(clients, client)
		}
	}
	h.clientsMux.RUnlock()

	for _, client := range clients {
		h.send(client, message)
	}
}

// SendToUser 向指定用戶的所有連接發送事件
func (h *Hub) SendToUser(userID uint, event string, data interface{}) {
	h.Broadcast(UserTopic(userID), event, data)
}

func (h *Hub) send(client *Client, message []byte) {
	select {
	case client.SendChan <- message:
		// 消息成功加入發送隊列
	default:
		// 客戶端消息隊列已滿，關閉連接
		h.RemoveClient(client)
		if client.Conn != nil {
			client.Conn.Close()
		}
	}
}

func marshalEnvelope(event string, data interface{}) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		raw = encoded
	}
	return json.Marshal(&Envelope{Event: event, Data: raw})
}
