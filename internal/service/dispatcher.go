package service

import (
	"context"
	"encoding/json"
	"log"
	"time"
)

// Dispatcher 把連線上的事件分派給各服務。每次分派都包一層逾時，
// 外部呼叫卡住時以錯誤收場而不是讓整條連接停擺；
// 任何處理錯誤都轉成回給請求方的錯誤事件，不會中斷連接或進程
type Dispatcher struct {
	hub          *Hub
	presence     *PresenceTracker
	chat         *ChatService
	consultation *ConsultationService
	notification *NotificationService
	callTimeout  time.Duration
}

func NewDispatcher(hub *Hub, presence *PresenceTracker, chat *ChatService, consultation *ConsultationService, notification *NotificationService, callTimeout time.Duration) *Dispatcher {
	if callTimeout <= 0 {
		callTimeout = 10 * time.Second
	}
	return &Dispatcher{
		hub:          hub,
		presence:     presence,
		chat:         chat,
		consultation: consultation,
		notification: notification,
		callTimeout:  callTimeout,
	}
}

// OnConnect 連接建立後加入個人頻道並登記在線狀態
func (d *Dispatcher) OnConnect(client *Client) {
	d.hub.Join(client, UserTopic(client.UserID))
	d.hub.Join(client, NotificationTopic(client.UserID))
	d.hub.Join(client, PresenceTopic)
	d.presence.HandleConnect(client.UserID, client.ConnID)
}

// OnDisconnect 連接關閉時替客戶端收尾：退出仍在的房間、註銷在線狀態
func (d *Dispatcher) OnDisconnect(client *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), d.callTimeout)
	defer cancel()

	for _, topic := range d.hub.TopicsOf(client) {
		if sessionID, ok := parseConsultationTopic(topic); ok {
			if err := d.consultation.LeaveRoom(ctx, client, sessionID); err != nil {
				log.Printf("leave consultation %d on disconnect: %v", sessionID, err)
			}
			continue
		}
		if conversationID, ok := parseConversationTopic(topic); ok {
			d.chat.LeaveConversation(client, conversationID)
		}
	}

	d.presence.HandleDisconnect(client.UserID, client.ConnID)
}

// OnMessage 分派單一事件，錯誤轉成只回給請求方的錯誤事件
func (d *Dispatcher) OnMessage(client *Client, envelope *Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), d.callTimeout)
	defer cancel()

	if err := d.route(ctx, client, envelope); err != nil {
		d.emitError(client, envelope.Event, err)
	}
}

func (d *Dispatcher) route(ctx context.Context, client *Client, envelope *Envelope) error {
	switch envelope.Event {
	case EventConversationJoin:
		var payload ConversationRef
		if err := decodePayload(envelope, &payload); err != nil {
			return err
		}
		return d.chat.JoinConversation(ctx, client, payload.ConversationID)

	case EventConversationLeave:
		var payload ConversationRef
		if err := decodePayload(envelope, &payload); err != nil {
			return err
		}
		d.chat.LeaveConversation(client, payload.ConversationID)
		return nil

	case EventMessageSend:
		var payload SendMessagePayload
		if err := decodePayload(envelope, &payload); err != nil {
			return err
		}
		if payload.Content == "" {
			return ErrMalformedPayload
		}
		return d.chat.SendMessage(ctx, client, payload.ConversationID, payload.Content, payload.MessageType)

	case EventTypingStart, EventTypingStop:
		var payload ConversationRef
		if err := decodePayload(envelope, &payload); err != nil {
			return err
		}
		d.chat.Typing(client, payload.ConversationID, envelope.Event == EventTypingStart)
		return nil

	case EventMessageMarkRead:
		var payload MarkReadPayload
		if err := decodePayload(envelope, &payload); err != nil {
			return err
		}
		return d.chat.MarkAsRead(ctx, client, payload.ConversationID, payload.MessageID)

	case EventConsultationJoin:
		var payload SessionRef
		if err := decodePayload(envelope, &payload); err != nil {
			return err
		}
		return d.consultation.JoinRoom(ctx, client, payload.SessionID)

	case EventConsultationLeave:
		var payload SessionRef
		if err := decodePayload(envelope, &payload); err != nil {
			return err
		}
		return d.consultation.LeaveRoom(ctx, client, payload.SessionID)

	case EventOffer, EventAnswer, EventIceCandidate:
		var payload SignalPayload
		if err := decodePayload(envelope, &payload); err != nil {
			return err
		}
		if payload.TargetUserID == 0 || len(payload.Payload) == 0 {
			return ErrMalformedPayload
		}
		return d.consultation.Relay(client, envelope.Event, payload.SessionID, payload.TargetUserID, payload.Payload)

	case EventSessionStart:
		var payload SessionRef
		if err := decodePayload(envelope, &payload); err != nil {
			return err
		}
		return d.consultation.StartSession(ctx, client, payload.SessionID)

	case EventSessionEnd:
		var payload SessionRef
		if err := decodePayload(envelope, &payload); err != nil {
			return err
		}
		return d.consultation.EndSession(ctx, client, payload.SessionID)

	case EventPresenceStatus:
		var payload StatusPayload
		if err := decodePayload(envelope, &payload); err != nil {
			return err
		}
		return d.presence.SetStatus(client.UserID, payload.Status)

	case EventNotificationSubscribe:
		var payload SubscribePayload
		if err := decodePayload(envelope, &payload); err != nil {
			return err
		}
		return d.notification.Subscribe(client, payload.Channels)

	case EventNotificationMarkRead:
		var payload NotificationMarkReadPayload
		if err := decodePayload(envelope, &payload); err != nil {
			return err
		}
		return d.notification.MarkRead(ctx, client, payload.NotificationID, payload.MarkAllAsRead)

	default:
		return ErrUnknownEvent
	}
}

// decodePayload 解析事件內容；缺省內容視為空物件，解析失敗視為協議誤用
func decodePayload(envelope *Envelope, v interface{}) error {
	data := envelope.Data
	if len(data) == 0 {
		data = []byte("{}")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return ErrMalformedPayload
	}
	return nil
}

// emitError 把錯誤轉成範圍限定在請求方的錯誤事件；
// 非預期錯誤（資料庫等上游故障）記錄詳情後只回覆通用訊息
func (d *Dispatcher) emitError(client *Client, event string, err error) {
	message := err.Error()
	if !clientFacing(err) {
		log.Printf("handler error on %q: %v", event, err)
		message = "內部錯誤，請稍後再試"
	}
	d.hub.Emit(client, EventError, ErrorPayload{Message: message})
}
