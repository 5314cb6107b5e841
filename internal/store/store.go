package store

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/clippy-oss/homie/callchat/internal/domain"
	"github.com/clippy-oss/homie/callchat/internal/logger"
	"github.com/clippy-oss/homie/callchat/internal/repository"
)

// Store owns every conversation session of the process. Callers only ever
// receive copies; mutations go through the methods below.
//
// Repository failures are logged and swallowed: the in-memory session keeps
// going for that operation and the caller never sees the error.
type Store struct {
	repo repository.ConversationRepository
	bus  domain.EventBus
	log  zerolog.Logger
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]*domain.Conversation
}

func New(repo repository.ConversationRepository, bus domain.EventBus) *Store {
	return &Store{
		repo:     repo,
		bus:      bus,
		log:      logger.Module("store"),
		now:      time.Now,
		sessions: make(map[string]*domain.Conversation),
	}
}

// Load rehydrates the session of callID from durable storage, replacing any
// in-memory copy. An absent or unreadable record yields an empty session.
func (s *Store) Load(ctx context.Context, callID string) *domain.Conversation {
	s.mu.Lock()
	conv := s.read(ctx, callID)
	s.sessions[callID] = conv
	snapshot := conv.Clone()
	s.mu.Unlock()

	s.publish(domain.ConversationLoadedEvent{
		CallID:       callID,
		MessageCount: len(snapshot.Messages),
		EventTime:    s.now(),
	})
	return snapshot
}

// Append adds msg to the log of callID unless its id is already present,
// then persists the whole session. It reports whether msg was accepted.
func (s *Store) Append(ctx context.Context, callID string, msg domain.ChatMessage, source domain.MessageSource) bool {
	s.mu.Lock()
	conv := s.session(ctx, callID)
	if !conv.Append(msg) {
		s.mu.Unlock()
		return false
	}
	s.persist(ctx, conv)
	s.mu.Unlock()

	s.publish(domain.MessageAppendedEvent{
		CallID:    callID,
		Message:   msg,
		Source:    source,
		EventTime: s.now(),
	})
	return true
}

// MarkRead sets lastReadAt to now and clears the unread count.
func (s *Store) MarkRead(ctx context.Context, callID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.session(ctx, callID)
	conv.MarkRead(s.now())
	s.persist(ctx, conv)
}

// SetUnread records the unread count derived by the notification tracker.
func (s *Store) SetUnread(ctx context.Context, callID string, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.session(ctx, callID)
	conv.UnreadCount = max(count, 0)
	s.persist(ctx, conv)
}

// Purge removes the durable record of callID and drops its session.
func (s *Store) Purge(ctx context.Context, callID string) {
	s.mu.Lock()
	delete(s.sessions, callID)
	if err := s.repo.Delete(ctx, callID); err != nil {
		s.log.Warn().Err(err).Str("call_id", callID).Msg("Failed to purge conversation")
	}
	s.mu.Unlock()

	s.publish(domain.ConversationLoadedEvent{
		CallID:    callID,
		Purged:    true,
		EventTime: s.now(),
	})
}

// Snapshot returns a copy of the in-memory session of callID, or an empty
// session when none is live. It never touches durable storage.
func (s *Store) Snapshot(callID string) *domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv, ok := s.sessions[callID]; ok {
		return conv.Clone()
	}
	return domain.NewConversation(callID)
}

// Peek reads the durable record of callID without hydrating a session.
func (s *Store) Peek(ctx context.Context, callID string) (*domain.Conversation, error) {
	conv, err := s.repo.Get(ctx, callID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return domain.NewConversation(callID), nil
	}
	return conv, nil
}

// session returns the live session of callID, loading it on first use.
// Caller holds mu.
func (s *Store) session(ctx context.Context, callID string) *domain.Conversation {
	if conv, ok := s.sessions[callID]; ok {
		return conv
	}
	conv := s.read(ctx, callID)
	s.sessions[callID] = conv
	return conv
}

func (s *Store) read(ctx context.Context, callID string) *domain.Conversation {
	conv, err := s.repo.Get(ctx, callID)
	if err != nil {
		s.log.Warn().Err(err).Str("call_id", callID).Msg("Failed to load conversation, starting empty")
		return domain.NewConversation(callID)
	}
	if conv == nil {
		return domain.NewConversation(callID)
	}
	return conv
}

func (s *Store) persist(ctx context.Context, conv *domain.Conversation) {
	if err := s.repo.Save(ctx, conv); err != nil {
		s.log.Warn().Err(err).
			Str("call_id", conv.CallID).
			Int("messages", len(conv.Messages)).
			Msg("Failed to persist conversation")
	}
}

func (s *Store) publish(event domain.Event) {
	if s.bus != nil {
		s.bus.Publish(event)
	}
}
