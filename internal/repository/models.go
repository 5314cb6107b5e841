package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/clippy-oss/homie/callchat/internal/domain"
)

const storageKeyPrefix = "meeting_chat_messages_"

// sentAtLayout is an ISO-8601 instant with millisecond precision.
const sentAtLayout = "2006-01-02T15:04:05.000Z07:00"

// StorageKey returns the key/value storage key of a call's record.
func StorageKey(callID string) string {
	return storageKeyPrefix + callID
}

// ConversationRecord is the durable layout of a conversation.
type ConversationRecord struct {
	Messages    []MessageRecord `json:"messages"`
	LastReadAt  int64           `json:"lastReadAt"`
	UnreadCount int             `json:"unreadCount"`
}

type MessageRecord struct {
	ID              string `json:"id"`
	SenderID        string `json:"senderId"`
	SenderName      string `json:"senderName"`
	SenderAvatarRef string `json:"senderAvatarRef"`
	Body            string `json:"body"`
	SentAt          string `json:"sentAt"`
}

type ConversationModel struct {
	CallID      string    `gorm:"primaryKey;column:call_id"`
	Messages    string    `gorm:"column:messages;type:text"`
	LastReadAt  int64     `gorm:"column:last_read_at"`
	UnreadCount int       `gorm:"column:unread_count"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (ConversationModel) TableName() string { return "conversations" }

// Conversion functions
func ConversationToRecord(conv *domain.Conversation) ConversationRecord {
	return ConversationRecord{
		Messages: lo.Map(conv.Messages, func(m domain.ChatMessage, _ int) MessageRecord {
			return MessageToRecord(m)
		}),
		LastReadAt:  toEpochMillis(conv.LastReadAt),
		UnreadCount: conv.UnreadCount,
	}
}

func RecordToConversation(callID string, rec ConversationRecord) (*domain.Conversation, error) {
	conv := domain.NewConversation(callID)
	conv.Messages = make([]domain.ChatMessage, 0, len(rec.Messages))
	for _, r := range rec.Messages {
		msg, err := RecordToMessage(r)
		if err != nil {
			return nil, err
		}
		conv.Messages = append(conv.Messages, msg)
	}
	conv.LastReadAt = fromEpochMillis(rec.LastReadAt)
	conv.UnreadCount = max(rec.UnreadCount, 0)
	return conv, nil
}

func MessageToRecord(m domain.ChatMessage) MessageRecord {
	sentAt := ""
	if !m.SentAt.IsZero() {
		sentAt = m.SentAt.UTC().Format(sentAtLayout)
	}
	return MessageRecord{
		ID:              m.ID,
		SenderID:        m.SenderID,
		SenderName:      m.SenderName,
		SenderAvatarRef: m.SenderAvatarRef,
		Body:            m.Body,
		SentAt:          sentAt,
	}
}

func RecordToMessage(r MessageRecord) (domain.ChatMessage, error) {
	var sentAt time.Time
	if r.SentAt != "" {
		parsed, err := time.Parse(time.RFC3339Nano, r.SentAt)
		if err != nil {
			return domain.ChatMessage{}, fmt.Errorf("invalid sentAt for message %s: %w", r.ID, err)
		}
		sentAt = domain.Timestamp(parsed)
	}
	return domain.ChatMessage{
		ID:              r.ID,
		SenderID:        r.SenderID,
		SenderName:      r.SenderName,
		SenderAvatarRef: r.SenderAvatarRef,
		Body:            r.Body,
		SentAt:          sentAt,
	}, nil
}

// EncodeConversation serializes conv into its durable JSON record.
func EncodeConversation(conv *domain.Conversation) ([]byte, error) {
	data, err := json.Marshal(ConversationToRecord(conv))
	if err != nil {
		return nil, fmt.Errorf("failed to encode conversation %s: %w", conv.CallID, err)
	}
	return data, nil
}

func DecodeConversation(callID string, data []byte) (*domain.Conversation, error) {
	var rec ConversationRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode conversation %s: %w", callID, err)
	}
	return RecordToConversation(callID, rec)
}

func ConversationDomainToModel(conv *domain.Conversation) (*ConversationModel, error) {
	rec := ConversationToRecord(conv)
	messages, err := json.Marshal(rec.Messages)
	if err != nil {
		return nil, fmt.Errorf("failed to encode messages of %s: %w", conv.CallID, err)
	}
	return &ConversationModel{
		CallID:      conv.CallID,
		Messages:    string(messages),
		LastReadAt:  rec.LastReadAt,
		UnreadCount: rec.UnreadCount,
	}, nil
}

func ConversationModelToDomain(m *ConversationModel) (*domain.Conversation, error) {
	if m == nil {
		return nil, nil
	}
	rec := ConversationRecord{
		LastReadAt:  m.LastReadAt,
		UnreadCount: m.UnreadCount,
	}
	if m.Messages != "" {
		if err := json.Unmarshal([]byte(m.Messages), &rec.Messages); err != nil {
			return nil, fmt.Errorf("failed to decode messages of %s: %w", m.CallID, err)
		}
	}
	return RecordToConversation(m.CallID, rec)
}

func toEpochMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromEpochMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
