package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/clippy-oss/homie/callchat/internal/domain"
	"github.com/clippy-oss/homie/callchat/internal/ingest"
	"github.com/clippy-oss/homie/callchat/internal/logger"
	"github.com/clippy-oss/homie/callchat/internal/notify"
	"github.com/clippy-oss/homie/callchat/internal/store"
)

const inboundBuffer = 256

// SurfaceCloser tears down the secondary surface when a call ends.
type SurfaceCloser interface {
	Close()
}

type CallServiceConfig struct {
	// HeartbeatInterval enables call_heartbeat events while joined. Zero disables.
	HeartbeatInterval time.Duration
}

// CallService coordinates the chat layer with the call lifecycle: it
// hydrates the conversation on join, purges it on leave and feeds inbound
// events to ingestion in delivery order.
type CallService struct {
	transport domain.CallTransport
	store     *store.Store
	tracker   *notify.Tracker
	ingestor  *ingest.Ingestor
	pip       SurfaceCloser
	bus       domain.EventBus
	config    CallServiceConfig
	log       zerolog.Logger

	inbound chan domain.CustomEvent
	done    chan struct{}

	mu            sync.RWMutex
	callID        string
	unsubscribe   func()
	stopHeartbeat context.CancelFunc
}

func NewCallService(
	transport domain.CallTransport,
	store *store.Store,
	tracker *notify.Tracker,
	ingestor *ingest.Ingestor,
	pip SurfaceCloser,
	bus domain.EventBus,
	config CallServiceConfig,
) *CallService {
	return &CallService{
		transport: transport,
		store:     store,
		tracker:   tracker,
		ingestor:  ingestor,
		pip:       pip,
		bus:       bus,
		config:    config,
		log:       logger.Module("call"),
		inbound:   make(chan domain.CustomEvent, inboundBuffer),
		done:      make(chan struct{}),
	}
}

// ActiveCallID is the call whose conversation is currently hydrated.
func (s *CallService) ActiveCallID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.callID
}

// Run processes lifecycle transitions and inbound events until ctx ends or
// the lifecycle stream closes.
func (s *CallService) Run(ctx context.Context) error {
	defer close(s.done)
	defer s.detach()

	lifecycle := s.transport.Lifecycle()
	for {
		select {
		case <-ctx.Done():
			return nil
		case state, ok := <-lifecycle:
			if !ok {
				return nil
			}
			s.handleState(ctx, state)
		case evt := <-s.inbound:
			s.handleEvent(ctx, evt)
		}
	}
}

func (s *CallService) handleState(ctx context.Context, state domain.CallState) {
	switch state {
	case domain.CallStateJoined:
		s.joined(ctx)
	case domain.CallStateLeft:
		s.left(ctx)
	default:
		s.publishState(s.transport.CurrentCallID(), state)
	}
}

func (s *CallService) joined(ctx context.Context) {
	callID := s.transport.CurrentCallID()
	if callID == "" {
		s.log.Warn().Msg("Joined without a call id")
		return
	}
	if active := s.ActiveCallID(); active != "" && active != callID {
		s.detach()
	}

	conv := s.store.Load(ctx, callID)
	s.tracker.Reset(ctx, callID, conv.UnreadCount)

	unsubscribe := s.transport.Subscribe(s.enqueue)
	var stop context.CancelFunc
	if s.config.HeartbeatInterval > 0 {
		var hbCtx context.Context
		hbCtx, stop = context.WithCancel(context.Background())
		go s.heartbeat(hbCtx, s.config.HeartbeatInterval)
	}

	s.mu.Lock()
	s.callID = callID
	s.unsubscribe = unsubscribe
	s.stopHeartbeat = stop
	s.mu.Unlock()

	s.log.Info().
		Str("call_id", callID).
		Int("messages", len(conv.Messages)).
		Int("unread", conv.UnreadCount).
		Msg("Conversation hydrated")
	s.publishState(callID, domain.CallStateJoined)
}

// left purges the conversation whatever the panel state and closes the
// secondary surface.
func (s *CallService) left(ctx context.Context) {
	callID := s.ActiveCallID()
	s.detach()

	if callID != "" {
		s.store.Purge(ctx, callID)
		s.log.Info().Str("call_id", callID).Msg("Conversation purged")
	}
	s.tracker.Reset(ctx, "", 0)
	if s.pip != nil {
		s.pip.Close()
	}
	s.publishState(callID, domain.CallStateLeft)
}

// detach stops listening to the current call.
func (s *CallService) detach() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	stop := s.stopHeartbeat
	s.callID = ""
	s.unsubscribe = nil
	s.stopHeartbeat = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if stop != nil {
		stop()
	}
}

// enqueue runs on the transport's delivery goroutine.
func (s *CallService) enqueue(evt domain.CustomEvent) {
	select {
	case s.inbound <- evt:
	case <-s.done:
	}
}

func (s *CallService) handleEvent(ctx context.Context, evt domain.CustomEvent) {
	callID := s.ActiveCallID()
	msg, err := s.ingestor.Ingest(ctx, callID, evt)
	switch {
	case err == nil:
		s.log.Debug().Str("call_id", callID).Str("message_id", msg.ID).Msg("Message accepted")
	case errors.Is(err, ingest.ErrNotChatEvent), errors.Is(err, ingest.ErrDuplicate):
	default:
		s.log.Debug().Err(err).Str("call_id", callID).Msg("Inbound event dropped")
	}
}

func (s *CallService) heartbeat(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			pubCtx, cancel := context.WithTimeout(ctx, interval)
			if err := s.transport.Publish(pubCtx, domain.NewHeartbeatEvent(now)); err != nil {
				s.log.Debug().Err(err).Msg("Heartbeat not delivered")
			}
			cancel()
		}
	}
}

func (s *CallService) publishState(callID string, state domain.CallState) {
	if s.bus != nil {
		s.bus.Publish(domain.CallStateEvent{CallID: callID, State: state, EventTime: time.Now()})
	}
}
