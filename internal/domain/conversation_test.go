package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConversation_Append(t *testing.T) {
	t.Run("should keep insertion order and reject duplicate ids", func(t *testing.T) {
		req := require.New(t)
		conv := NewConversation("c1")
		now := time.Now()

		req.True(conv.Append(ChatMessage{ID: "m1", SenderID: "u1", Body: "first", SentAt: now}))
		req.True(conv.Append(ChatMessage{ID: "m0", SenderID: "u2", Body: "late", SentAt: now.Add(-time.Hour)}))
		req.False(conv.Append(ChatMessage{ID: "m1", SenderID: "u3", Body: "other body"}))

		req.Len(conv.Messages, 2)
		req.Equal("m1", conv.Messages[0].ID)
		req.Equal("m0", conv.Messages[1].ID)
		req.Equal([]string{"u1", "u2"}, conv.Participants())
	})

	t.Run("should not share the log with a clone", func(t *testing.T) {
		req := require.New(t)
		conv := NewConversation("c1")
		conv.Append(ChatMessage{ID: "m1"})

		clone := conv.Clone()
		clone.Append(ChatMessage{ID: "m2"})

		req.Len(conv.Messages, 1)
		req.Len(clone.Messages, 2)
	})
}

func TestTimestamp(t *testing.T) {
	req := require.New(t)
	at := time.Date(2024, 3, 1, 10, 30, 15, 123456789, time.FixedZone("CET", 3600))

	ts := Timestamp(at)

	req.Equal(time.UTC, ts.Location())
	req.Equal(123000000, ts.Nanosecond())
	req.True(ts.Equal(at.Truncate(time.Millisecond)))
	req.True(Timestamp(time.Time{}).IsZero())
}

func TestLocalUser_DisplayName(t *testing.T) {
	req := require.New(t)
	req.Equal("Alice", LocalUser{ID: "u1", Name: "Alice", Username: "alice"}.DisplayName())
	req.Equal("alice", LocalUser{ID: "u1", Username: "alice"}.DisplayName())
	req.Equal("u1", LocalUser{ID: "u1"}.DisplayName())
}

func TestCustomEvent_EventType(t *testing.T) {
	req := require.New(t)

	req.Equal(ChatMessageEventType, CustomEvent{Type: ChatMessageEventType}.EventType())
	req.Equal(ChatMessageEventType, CustomEvent{Custom: json.RawMessage(`{"type":"chat_message"}`)}.EventType())
	req.Equal("", CustomEvent{Custom: json.RawMessage(`not json`)}.EventType())

	msg := NewChatMessage("m1", LocalUser{ID: "u1", Name: "Alice"}, "hi", time.Now())
	evt, err := NewChatEvent(msg)
	req.NoError(err)
	req.Equal(ChatMessageEventType, evt.EventType())

	var payload ChatPayload
	req.NoError(json.Unmarshal(evt.Custom, &payload))
	req.Equal("m1", payload.MessageID)
	req.Equal("hi", payload.Message)
	req.Equal("Alice", evt.User.Name)
}

func TestSimpleEventBus(t *testing.T) {
	req := require.New(t)
	bus := NewEventBus()

	unread := bus.Subscribe([]EventType{EventTypeUnreadChanged})
	all := bus.Subscribe(nil)

	bus.Publish(UnreadChangedEvent{CallID: "c1", UnreadCount: 1, HasUnread: true})
	bus.Publish(CallStateEvent{CallID: "c1", State: CallStateJoined})

	req.Len(unread, 1)
	req.Len(all, 2)

	evt := <-unread
	req.Equal(EventTypeUnreadChanged, evt.Type())

	bus.Unsubscribe(unread)
	_, open := <-unread
	req.False(open)
}
