package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telecare_rtc/internal/models"
)

type chatFixture struct {
	hub              *Hub
	conversationRepo *fakeConversationRepo
	messageRepo      *fakeMessageRepo
	chat             *ChatService
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	hub := NewHub()
	conversationRepo := newFakeConversationRepo()
	messageRepo := newFakeMessageRepo()
	return &chatFixture{
		hub:              hub,
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		chat:             NewChatService(hub, conversationRepo, messageRepo),
	}
}

func (f *chatFixture) createConversation(t *testing.T, patientID, providerID uint) *models.Conversation {
	t.Helper()
	conversation, err := f.chat.CreateConversation(context.Background(), patientID, providerID, models.ConversationKindCare)
	require.NoError(t, err)
	return conversation
}

func TestJoinConversationRejectsNonParticipant(t *testing.T) {
	f := newChatFixture(t)
	conversation := f.createConversation(t, 1, 2)
	intruder := newTestClient(3, "patient")

	err := f.chat.JoinConversation(context.Background(), intruder, conversation.ID)

	assert.ErrorIs(t, err, ErrNotParticipant)
	assert.False(t, f.hub.InTopic(intruder, ConversationTopic(conversation.ID)))
}

func TestJoinConversationUnknownID(t *testing.T) {
	f := newChatFixture(t)
	client := newTestClient(1, "patient")

	err := f.chat.JoinConversation(context.Background(), client, 42)
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestJoinConversationSendsBacklogAndNotifiesMembers(t *testing.T) {
	f := newChatFixture(t)
	conversation := f.createConversation(t, 1, 2)

	// 預先寫入超過上限的歷史訊息
	for i := 0; i < chatBacklogLimit+10; i++ {
		message := models.NewChatMessage(conversation.ID, 1, "patient", fmt.Sprintf("msg-%d", i), "")
		require.NoError(t, f.messageRepo.Create(context.Background(), &message))
	}

	patient := newTestClient(1, "patient")
	physician := newTestClient(2, "physician")
	require.NoError(t, f.chat.JoinConversation(context.Background(), physician, conversation.ID))
	drainEvents(t, physician)

	require.NoError(t, f.chat.JoinConversation(context.Background(), patient, conversation.ID))

	patientEvents := drainEvents(t, patient)
	envelope, ok := findEvent(patientEvents, EventChatMessages)
	require.True(t, ok)
	var backlog BacklogPayload
	require.NoError(t, json.Unmarshal(envelope.Data, &backlog))
	assert.Len(t, backlog.Messages, chatBacklogLimit)
	// 快照是時間正序的最近訊息
	assert.Equal(t, fmt.Sprintf("msg-%d", 10), backlog.Messages[0].Content)
	assert.Equal(t, fmt.Sprintf("msg-%d", chatBacklogLimit+9), backlog.Messages[len(backlog.Messages)-1].Content)

	// 加入者自己不會收到 user_joined
	_, ok = findEvent(patientEvents, EventConversationUserJoined)
	assert.False(t, ok)
	physicianEvents := drainEvents(t, physician)
	_, ok = findEvent(physicianEvents, EventConversationUserJoined)
	assert.True(t, ok)
}

func TestSendMessagePersistsAndBroadcastsToAllMembers(t *testing.T) {
	f := newChatFixture(t)
	conversation := f.createConversation(t, 1, 2)
	patient := newTestClient(1, "patient")
	physician := newTestClient(2, "physician")
	require.NoError(t, f.chat.JoinConversation(context.Background(), patient, conversation.ID))
	require.NoError(t, f.chat.JoinConversation(context.Background(), physician, conversation.ID))
	drainEvents(t, patient)
	drainEvents(t, physician)

	require.NoError(t, f.chat.SendMessage(context.Background(), patient, conversation.ID, "你好", ""))

	// 廣播包含發送者本人，發送者的其他裝置才能同步
	for _, client := range []*Client{patient, physician} {
		events := drainEvents(t, client)
		envelope, ok := findEvent(events, EventMessageNew)
		require.True(t, ok)
		var message models.Message
		require.NoError(t, json.Unmarshal(envelope.Data, &message))
		assert.Equal(t, "你好", message.Content)
		assert.Equal(t, "text", message.Type)
		assert.Equal(t, uint(1), message.SenderID)
	}

	stored, err := f.messageRepo.FindRecentByConversation(context.Background(), conversation.ID, 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
}

func TestSendMessageRevalidatesMembershipEverySend(t *testing.T) {
	f := newChatFixture(t)
	conversation := f.createConversation(t, 1, 2)
	patient := newTestClient(1, "patient")
	require.NoError(t, f.chat.JoinConversation(context.Background(), patient, conversation.ID))

	// 用戶中途被移出對話：連接還在房間裡，發言仍必須失敗
	updated := *conversation
	updated.PatientID = 77
	f.conversationRepo.set(updated)

	err := f.chat.SendMessage(context.Background(), patient, conversation.ID, "還在嗎", "")
	assert.ErrorIs(t, err, ErrNotParticipant)

	stored, findErr := f.messageRepo.FindRecentByConversation(context.Background(), conversation.ID, 10)
	require.NoError(t, findErr)
	assert.Empty(t, stored)
}

func TestTypingBroadcastSkipsSender(t *testing.T) {
	f := newChatFixture(t)
	conversation := f.createConversation(t, 1, 2)
	patient := newTestClient(1, "patient")
	physician := newTestClient(2, "physician")
	require.NoError(t, f.chat.JoinConversation(context.Background(), patient, conversation.ID))
	require.NoError(t, f.chat.JoinConversation(context.Background(), physician, conversation.ID))
	drainEvents(t, patient)
	drainEvents(t, physician)

	f.chat.Typing(patient, conversation.ID, true)
	f.chat.Typing(patient, conversation.ID, false)

	assert.Empty(t, drainEvents(t, patient))
	physicianEvents := drainEvents(t, physician)
	_, ok := findEvent(physicianEvents, EventTypingStart)
	assert.True(t, ok)
	_, ok = findEvent(physicianEvents, EventTypingStop)
	assert.True(t, ok)
}

func TestMarkAsReadUpdatesOthersMessagesAndNotifiesRoom(t *testing.T) {
	f := newChatFixture(t)
	conversation := f.createConversation(t, 1, 2)
	patient := newTestClient(1, "patient")
	physician := newTestClient(2, "physician")
	require.NoError(t, f.chat.JoinConversation(context.Background(), patient, conversation.ID))
	require.NoError(t, f.chat.JoinConversation(context.Background(), physician, conversation.ID))

	require.NoError(t, f.chat.SendMessage(context.Background(), physician, conversation.ID, "請問症狀", ""))
	require.NoError(t, f.chat.SendMessage(context.Background(), patient, conversation.ID, "頭痛", ""))
	drainEvents(t, patient)
	drainEvents(t, physician)

	require.NoError(t, f.chat.MarkAsRead(context.Background(), patient, conversation.ID, nil))

	stored, err := f.messageRepo.FindRecentByConversation(context.Background(), conversation.ID, 10)
	require.NoError(t, err)
	for _, message := range stored {
		if message.SenderID == 2 {
			assert.NotNil(t, message.ReadAt) // 對方的訊息被標記已讀
		} else {
			assert.Nil(t, message.ReadAt) // 自己的訊息不動
		}
	}

	physicianEvents := drainEvents(t, physician)
	envelope, ok := findEvent(physicianEvents, EventMessageRead)
	require.True(t, ok)
	var read MessageReadPayload
	require.NoError(t, json.Unmarshal(envelope.Data, &read))
	assert.Equal(t, uint(1), read.ReaderID)
}

func TestLeaveConversationIgnoresNonMember(t *testing.T) {
	f := newChatFixture(t)
	conversation := f.createConversation(t, 1, 2)
	patient := newTestClient(1, "patient")
	outsider := newTestClient(3, "patient")
	require.NoError(t, f.chat.JoinConversation(context.Background(), patient, conversation.ID))
	drainEvents(t, patient)

	// 沒加入過房間的連接不能對房間成員注入離開事件
	f.chat.LeaveConversation(outsider, conversation.ID)

	assert.Empty(t, drainEvents(t, patient))
}

func TestLeaveConversationNotifiesRemainingMembers(t *testing.T) {
	f := newChatFixture(t)
	conversation := f.createConversation(t, 1, 2)
	patient := newTestClient(1, "patient")
	physician := newTestClient(2, "physician")
	require.NoError(t, f.chat.JoinConversation(context.Background(), patient, conversation.ID))
	require.NoError(t, f.chat.JoinConversation(context.Background(), physician, conversation.ID))
	drainEvents(t, patient)
	drainEvents(t, physician)

	f.chat.LeaveConversation(patient, conversation.ID)

	assert.False(t, f.hub.InTopic(patient, ConversationTopic(conversation.ID)))
	physicianEvents := drainEvents(t, physician)
	_, ok := findEvent(physicianEvents, EventConversationUserLeft)
	assert.True(t, ok)
}
