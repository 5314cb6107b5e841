package repository

import (
	"context"
	"sync"

	"github.com/clippy-oss/homie/callchat/internal/domain"
)

// memoryConversationRepository keeps encoded records in a map. Records go
// through the same codec as the durable backends.
type memoryConversationRepository struct {
	mu      sync.RWMutex
	records map[string][]byte
}

func NewMemoryConversationRepository() ConversationRepository {
	return &memoryConversationRepository{records: make(map[string][]byte)}
}

func (r *memoryConversationRepository) Get(_ context.Context, callID string) (*domain.Conversation, error) {
	r.mu.RLock()
	data, ok := r.records[StorageKey(callID)]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return DecodeConversation(callID, data)
}

func (r *memoryConversationRepository) Save(_ context.Context, conv *domain.Conversation) error {
	data, err := EncodeConversation(conv)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.records[StorageKey(conv.CallID)] = data
	r.mu.Unlock()
	return nil
}

func (r *memoryConversationRepository) Delete(_ context.Context, callID string) error {
	r.mu.Lock()
	delete(r.records, StorageKey(callID))
	r.mu.Unlock()
	return nil
}
