package domain

import (
	"time"

	"github.com/samber/lo"
)

// Conversation is the per-call aggregate of message log and read state.
// Messages are kept in acceptance order and only ever appended.
type Conversation struct {
	CallID      string
	Messages    []ChatMessage
	LastReadAt  time.Time
	UnreadCount int
}

func NewConversation(callID string) *Conversation {
	return &Conversation{
		CallID:   callID,
		Messages: []ChatMessage{},
	}
}

func (c *Conversation) Has(messageID string) bool {
	return lo.ContainsBy(c.Messages, func(m ChatMessage) bool {
		return m.ID == messageID
	})
}

// Append adds msg at the end of the log unless a message with the same id
// is already present. It reports whether msg was accepted.
func (c *Conversation) Append(msg ChatMessage) bool {
	if c.Has(msg.ID) {
		return false
	}
	c.Messages = append(c.Messages, msg)
	return true
}

func (c *Conversation) MarkRead(at time.Time) {
	c.LastReadAt = Timestamp(at)
	c.UnreadCount = 0
}

// Participants returns the distinct sender ids in order of first appearance.
func (c *Conversation) Participants() []string {
	return lo.Uniq(lo.Map(c.Messages, func(m ChatMessage, _ int) string {
		return m.SenderID
	}))
}

func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	messages := make([]ChatMessage, len(c.Messages))
	copy(messages, c.Messages)
	return &Conversation{
		CallID:      c.CallID,
		Messages:    messages,
		LastReadAt:  c.LastReadAt,
		UnreadCount: c.UnreadCount,
	}
}
