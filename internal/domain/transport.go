//go:generate go run go.uber.org/mock/mockgen -source=transport.go -destination=../mocks/mock_transport.go -package=mocks
package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	ChatMessageEventType   = "chat_message"
	CallHeartbeatEventType = "call_heartbeat"
)

// CustomEvent is an application-defined event carried by the call
// transport's generic event channel.
type CustomEvent struct {
	Type      string          `json:"type,omitempty"`
	Custom    json.RawMessage `json:"custom,omitempty"`
	User      *EventUser      `json:"user,omitempty"`
	CreatedAt string          `json:"created_at,omitempty"`
}

// EventUser is the sender metadata stamped by the transport.
type EventUser struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Image string `json:"image,omitempty"`
}

// ChatPayload is the "custom" body of a chat_message event. Every field is
// optional on the wire; ingestion resolves the missing ones.
type ChatPayload struct {
	Type      string `json:"type"`
	MessageID string `json:"messageId,omitempty"`
	Message   string `json:"message,omitempty"`
	UserID    string `json:"userId,omitempty"`
	UserName  string `json:"userName,omitempty"`
	UserImage string `json:"userImage,omitempty"`
	Timestamp any    `json:"timestamp,omitempty"`
}

// EventType returns the application type of the event, looking at the
// transport-level type first and the payload type second.
func (e CustomEvent) EventType() string {
	if e.Type != "" {
		return e.Type
	}
	var head struct {
		Type string `json:"type"`
	}
	if len(e.Custom) == 0 || json.Unmarshal(e.Custom, &head) != nil {
		return ""
	}
	return head.Type
}

// NewChatEvent builds the outbound event for msg, carrying the same id so the
// transport echo can be recognized.
func NewChatEvent(msg ChatMessage) (CustomEvent, error) {
	custom, err := json.Marshal(ChatPayload{
		Type:      ChatMessageEventType,
		MessageID: msg.ID,
		Message:   msg.Body,
		UserID:    msg.SenderID,
		UserName:  msg.SenderName,
		UserImage: msg.SenderAvatarRef,
		Timestamp: msg.SentAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return CustomEvent{}, fmt.Errorf("failed to encode chat payload: %w", err)
	}
	return CustomEvent{
		Type:   ChatMessageEventType,
		Custom: custom,
		User: &EventUser{
			ID:    msg.SenderID,
			Name:  msg.SenderName,
			Image: msg.SenderAvatarRef,
		},
	}, nil
}

func NewHeartbeatEvent(at time.Time) CustomEvent {
	custom, _ := json.Marshal(map[string]any{
		"type":      CallHeartbeatEventType,
		"timestamp": at.UnixMilli(),
	})
	return CustomEvent{Type: CallHeartbeatEventType, Custom: custom}
}

// CallTransport is the capability supplied by the external call backend.
// Delivery is at-least-once and unordered across senders.
type CallTransport interface {
	CurrentCallID() string
	Subscribe(handler func(CustomEvent)) (unsubscribe func())
	Publish(ctx context.Context, event CustomEvent) error
	Lifecycle() <-chan CallState
}

// CallControls are the call actions reachable from whichever surface is
// presented to the user.
type CallControls interface {
	Leave(ctx context.Context) error
	SetMuted(ctx context.Context, muted bool) error
	Muted() bool
}
