package repository

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"

	"github.com/clippy-oss/homie/callchat/internal/domain"
)

// badgerConversationRepository stores each conversation as one JSON value
// under StorageKey(callID).
type badgerConversationRepository struct {
	db *badger.DB
}

func NewBadgerConversationRepository(db *badger.DB) ConversationRepository {
	return &badgerConversationRepository{db: db}
}

func (r *badgerConversationRepository) Get(_ context.Context, callID string) (*domain.Conversation, error) {
	var data []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(StorageKey(callID)))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return DecodeConversation(callID, data)
}

func (r *badgerConversationRepository) Save(_ context.Context, conv *domain.Conversation) error {
	data, err := EncodeConversation(conv)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(StorageKey(conv.CallID)), data)
	})
}

func (r *badgerConversationRepository) Delete(_ context.Context, callID string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(StorageKey(callID)))
	})
}
