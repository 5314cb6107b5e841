package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clippy-oss/homie/callchat/internal/domain"
	"github.com/clippy-oss/homie/callchat/internal/logger"
)

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrMessageTooLong = fmt.Errorf("message exceeds %d characters", domain.MaxBodyLength)
	ErrSendInFlight   = errors.New("a message is already being sent")
	ErrSendFailed     = errors.New("failed to send message")
	ErrNoActiveCall   = errors.New("not connected to a call")
)

// Conversations is the part of the conversation store the chat panel uses.
type Conversations interface {
	Append(ctx context.Context, callID string, msg domain.ChatMessage, source domain.MessageSource) bool
	Snapshot(callID string) *domain.Conversation
}

// VisibilityObserver is told when the chat panel opens or closes.
type VisibilityObserver interface {
	PanelVisibilityChanged(ctx context.Context, open bool)
}

type composition struct {
	Body string `validate:"required,max=500"`
}

// Surface is the chat panel of the primary surface: it tracks visibility,
// sends with optimistic local echo and keeps the last send error until it
// is dismissed.
type Surface struct {
	store     Conversations
	transport domain.CallTransport
	observer  VisibilityObserver
	bus       domain.EventBus
	user      domain.LocalUser
	validate  *validator.Validate
	log       zerolog.Logger

	now   func() time.Time
	newID func() string

	mu         sync.Mutex
	open       bool
	sending    bool
	cancelSend context.CancelFunc
	err        error
}

func NewSurface(
	store Conversations,
	transport domain.CallTransport,
	observer VisibilityObserver,
	bus domain.EventBus,
	user domain.LocalUser,
) *Surface {
	return &Surface{
		store:     store,
		transport: transport,
		observer:  observer,
		bus:       bus,
		user:      user,
		validate:  validator.New(),
		log:       logger.Module("chat"),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

func (s *Surface) User() domain.LocalUser {
	return s.user
}

func (s *Surface) Open(ctx context.Context) {
	s.mu.Lock()
	s.open = true
	s.mu.Unlock()

	if s.observer != nil {
		s.observer.PanelVisibilityChanged(ctx, true)
	}
}

// Close hides the panel. A send still waiting for the transport is
// abandoned; its optimistic message stays in the log.
func (s *Surface) Close(ctx context.Context) {
	s.mu.Lock()
	s.open = false
	if s.cancelSend != nil {
		s.cancelSend()
	}
	s.mu.Unlock()

	if s.observer != nil {
		s.observer.PanelVisibilityChanged(ctx, false)
	}
}

func (s *Surface) Toggle(ctx context.Context) {
	if s.IsOpen() {
		s.Close(ctx)
		return
	}
	s.Open(ctx)
}

func (s *Surface) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *Surface) Sending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sending
}

// Err returns the last send failure, nil once dismissed.
func (s *Surface) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Surface) DismissError() {
	s.mu.Lock()
	s.err = nil
	s.mu.Unlock()
}

// Messages returns the log of the current call in insertion order.
func (s *Surface) Messages() []domain.ChatMessage {
	callID := s.transport.CurrentCallID()
	if callID == "" {
		return []domain.ChatMessage{}
	}
	return s.store.Snapshot(callID).Messages
}

// Send appends text to the log under a fresh id and publishes the same id
// to the call, so the transport echo is dropped as a duplicate. On failure
// the local message is kept and the error is retained for display; the
// user retries by sending again.
func (s *Surface) Send(ctx context.Context, text string) (domain.ChatMessage, error) {
	body := strings.TrimSpace(text)
	if err := s.check(body); err != nil {
		return domain.ChatMessage{}, err
	}

	callID := s.transport.CurrentCallID()
	if callID == "" {
		return domain.ChatMessage{}, ErrNoActiveCall
	}

	s.mu.Lock()
	if s.sending {
		s.mu.Unlock()
		return domain.ChatMessage{}, ErrSendInFlight
	}
	sendCtx, cancel := context.WithCancel(ctx)
	s.sending = true
	s.cancelSend = cancel
	s.err = nil
	s.mu.Unlock()
	defer cancel()

	msg := domain.NewChatMessage(s.newID(), s.user, body, s.now())
	s.store.Append(ctx, callID, msg, domain.MessageSourceOptimistic)

	err := s.publish(sendCtx, msg)

	s.mu.Lock()
	s.sending = false
	s.cancelSend = nil
	if err != nil {
		s.err = err
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Warn().Err(err).Str("call_id", callID).Str("message_id", msg.ID).Msg("Send failed")
		if s.bus != nil {
			s.bus.Publish(domain.SendFailedEvent{
				CallID:    callID,
				MessageID: msg.ID,
				Reason:    err.Error(),
				EventTime: s.now(),
			})
		}
		return msg, err
	}
	return msg, nil
}

func (s *Surface) publish(ctx context.Context, msg domain.ChatMessage) error {
	evt, err := domain.NewChatEvent(msg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	if err := s.transport.Publish(ctx, evt); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

func (s *Surface) check(body string) error {
	err := s.validate.Struct(composition{Body: body})
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "max" {
		return ErrMessageTooLong
	}
	return ErrEmptyMessage
}
