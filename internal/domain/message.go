package domain

import "time"

// MaxBodyLength is the longest message body, in characters, a participant may send.
const MaxBodyLength = 500

// ChatMessage is an immutable entry of a call's conversation log.
type ChatMessage struct {
	ID              string
	SenderID        string
	SenderName      string
	SenderAvatarRef string
	Body            string
	SentAt          time.Time
}

func NewChatMessage(id string, sender LocalUser, body string, sentAt time.Time) ChatMessage {
	return ChatMessage{
		ID:              id,
		SenderID:        sender.ID,
		SenderName:      sender.DisplayName(),
		SenderAvatarRef: sender.ImageRef,
		Body:            body,
		SentAt:          Timestamp(sentAt),
	}
}

func (m ChatMessage) IsFrom(userID string) bool {
	return m.SenderID == userID
}

// Timestamp normalizes t to UTC with millisecond precision, the resolution
// kept by the durable record.
func Timestamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return t.UTC().Truncate(time.Millisecond)
}

// FormatMessageTime renders the wall-clock time of a message as HH:MM.
func FormatMessageTime(t time.Time) string {
	return t.Local().Format("15:04")
}
