//go:generate go run go.uber.org/mock/mockgen -source=interfaces.go -destination=../mocks/mock_conversation_repository.go -package=mocks
package repository

import (
	"context"

	"github.com/clippy-oss/homie/callchat/internal/domain"
)

// ConversationRepository persists one durable record per call identifier.
// Get returns nil, nil when no record exists.
type ConversationRepository interface {
	Get(ctx context.Context, callID string) (*domain.Conversation, error)
	Save(ctx context.Context, conv *domain.Conversation) error
	Delete(ctx context.Context, callID string) error
}
