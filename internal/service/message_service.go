package service

import (
	"context"

	"github.com/clippy-oss/homie/callchat/internal/chat"
	"github.com/clippy-oss/homie/callchat/internal/domain"
	"github.com/clippy-oss/homie/callchat/internal/notify"
	"github.com/clippy-oss/homie/callchat/internal/store"
)

// MessageService is the entry point of the remote surfaces (gRPC, MCP,
// headless CLI) into the chat layer.
type MessageService struct {
	store     *store.Store
	surface   *chat.Surface
	tracker   *notify.Tracker
	transport domain.CallTransport
}

func NewMessageService(
	store *store.Store,
	surface *chat.Surface,
	tracker *notify.Tracker,
	transport domain.CallTransport,
) *MessageService {
	return &MessageService{
		store:     store,
		surface:   surface,
		tracker:   tracker,
		transport: transport,
	}
}

func (s *MessageService) CurrentCallID() string {
	return s.transport.CurrentCallID()
}

// GetConversation returns the live session of the current call, or the
// stored history of any other call. An empty callID means the current call.
func (s *MessageService) GetConversation(ctx context.Context, callID string) (*domain.Conversation, error) {
	current := s.transport.CurrentCallID()
	if callID == "" {
		callID = current
	}
	if callID == "" {
		return nil, chat.ErrNoActiveCall
	}
	if callID == current {
		return s.store.Snapshot(callID), nil
	}
	return s.store.Peek(ctx, callID)
}

func (s *MessageService) LocalUser() domain.LocalUser {
	return s.surface.User()
}

func (s *MessageService) SendMessage(ctx context.Context, text string) (domain.ChatMessage, error) {
	return s.surface.Send(ctx, text)
}

// MarkRead clears the unread count of the current call without opening
// the panel.
func (s *MessageService) MarkRead(ctx context.Context) error {
	callID := s.transport.CurrentCallID()
	if callID == "" {
		return chat.ErrNoActiveCall
	}
	s.store.MarkRead(ctx, callID)
	s.tracker.Reset(ctx, callID, 0)
	return nil
}

func (s *MessageService) Unread() notify.State {
	return s.tracker.State()
}

func (s *MessageService) Badge() string {
	return s.tracker.Badge()
}
