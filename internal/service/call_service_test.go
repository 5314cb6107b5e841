package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clippy-oss/homie/callchat/internal/chat"
	"github.com/clippy-oss/homie/callchat/internal/domain"
	"github.com/clippy-oss/homie/callchat/internal/ingest"
	"github.com/clippy-oss/homie/callchat/internal/notify"
	"github.com/clippy-oss/homie/callchat/internal/repository"
	"github.com/clippy-oss/homie/callchat/internal/store"
)

type fakeTransport struct {
	lifecycle chan domain.CallState

	mu        sync.Mutex
	callID    string
	handlers  map[int]func(domain.CustomEvent)
	next      int
	published []domain.CustomEvent
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		lifecycle: make(chan domain.CallState, 8),
		handlers:  make(map[int]func(domain.CustomEvent)),
	}
}

func (f *fakeTransport) CurrentCallID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callID
}

func (f *fakeTransport) Subscribe(handler func(domain.CustomEvent)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	f.handlers[id] = handler
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers, id)
	}
}

func (f *fakeTransport) Publish(_ context.Context, evt domain.CustomEvent) error {
	f.mu.Lock()
	f.published = append(f.published, evt)
	f.mu.Unlock()
	f.deliver(evt)
	return nil
}

func (f *fakeTransport) Lifecycle() <-chan domain.CallState { return f.lifecycle }

func (f *fakeTransport) join(callID string) {
	f.mu.Lock()
	f.callID = callID
	f.mu.Unlock()
	f.lifecycle <- domain.CallStateJoined
}

func (f *fakeTransport) leave() {
	f.mu.Lock()
	f.callID = ""
	f.mu.Unlock()
	f.lifecycle <- domain.CallStateLeft
}

func (f *fakeTransport) deliver(evt domain.CustomEvent) {
	f.mu.Lock()
	handlers := make([]func(domain.CustomEvent), 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()
	for _, h := range handlers {
		h(evt)
	}
}

func (f *fakeTransport) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

type closeCounter struct {
	mu    sync.Mutex
	count int
}

func (c *closeCounter) Close() {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
}

func (c *closeCounter) closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

type harness struct {
	transport *fakeTransport
	repo      repository.ConversationRepository
	store     *store.Store
	tracker   *notify.Tracker
	surface   *chat.Surface
	pip       *closeCounter
	bus       *domain.SimpleEventBus
	calls     <-chan domain.Event
	svc       *CallService
	messages  *MessageService
}

func newHarness(t *testing.T, repo repository.ConversationRepository, heartbeat time.Duration) *harness {
	t.Helper()
	h := &harness{
		transport: newFakeTransport(),
		repo:      repo,
		pip:       &closeCounter{},
		bus:       domain.NewEventBus(),
	}
	h.calls = h.bus.Subscribe([]domain.EventType{domain.EventTypeCallState})
	h.store = store.New(repo, h.bus)
	h.tracker = notify.NewTracker(h.store, h.bus, notify.DefaultBadgeCap)
	me := domain.LocalUser{ID: "me", Name: "Me"}
	h.surface = chat.NewSurface(h.store, h.transport, h.tracker, h.bus, me)
	ingestor := ingest.New(h.store, h.tracker, me.ID)
	h.svc = NewCallService(h.transport, h.store, h.tracker, ingestor, h.pip, h.bus,
		CallServiceConfig{HeartbeatInterval: heartbeat})
	h.messages = NewMessageService(h.store, h.surface, h.tracker, h.transport)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = h.svc.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func (h *harness) waitState(t *testing.T, want domain.CallState) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case evt := <-h.calls:
			if evt.(domain.CallStateEvent).State == want {
				return
			}
		case <-deadline:
			t.Fatalf("call state %s not reached", want)
		}
	}
}

func chatEvent(t *testing.T, id, from, text string) domain.CustomEvent {
	t.Helper()
	custom, err := json.Marshal(map[string]any{
		"type":      domain.ChatMessageEventType,
		"messageId": id,
		"message":   text,
		"userId":    from,
	})
	require.NoError(t, err)
	return domain.CustomEvent{Type: domain.ChatMessageEventType, Custom: custom}
}

func TestCallService_EndToEndScenario(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, repository.NewMemoryConversationRepository(), 0)

	h.transport.join("c1")
	h.waitState(t, domain.CallStateJoined)
	req.Equal("c1", h.svc.ActiveCallID())
	req.Equal(1, h.transport.subscribers())

	h.transport.deliver(chatEvent(t, "m1", "u2", "hi"))
	req.Eventually(func() bool { return h.tracker.State().UnreadCount == 1 }, 2*time.Second, 5*time.Millisecond)
	req.Len(h.store.Snapshot("c1").Messages, 1)
	req.Equal("1", h.tracker.Badge())

	// retransmit
	h.transport.deliver(chatEvent(t, "m1", "u2", "hi"))
	h.transport.deliver(chatEvent(t, "m2", "u3", "sync"))
	req.Eventually(func() bool { return len(h.store.Snapshot("c1").Messages) == 2 }, 2*time.Second, 5*time.Millisecond)
	req.Equal(2, h.tracker.State().UnreadCount)

	h.surface.Open(context.Background())
	req.Zero(h.tracker.State().UnreadCount)

	h.transport.leave()
	h.waitState(t, domain.CallStateLeft)

	conv := h.store.Load(context.Background(), "c1")
	req.Empty(conv.Messages)
	req.Zero(conv.UnreadCount)
	req.Equal(1, h.pip.closes())
	req.Zero(h.transport.subscribers())
	req.Empty(h.svc.ActiveCallID())
}

func TestCallService_RehydratesOnJoin(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := repository.NewMemoryConversationRepository()

	seed := domain.NewConversation("c1")
	seed.Append(domain.ChatMessage{ID: "old", SenderID: "u2", Body: "before reload", SentAt: domain.Timestamp(time.Now())})
	seed.UnreadCount = 1
	req.NoError(repo.Save(ctx, seed))

	h := newHarness(t, repo, 0)
	h.transport.join("c1")
	h.waitState(t, domain.CallStateJoined)

	req.Len(h.store.Snapshot("c1").Messages, 1)
	req.Equal(1, h.tracker.State().UnreadCount)
	req.Equal("c1", h.tracker.CallID())
}

func TestCallService_PurgesEvenWithPanelOpen(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := repository.NewMemoryConversationRepository()
	h := newHarness(t, repo, 0)

	h.transport.join("c1")
	h.waitState(t, domain.CallStateJoined)
	h.surface.Open(ctx)

	_, err := h.surface.Send(ctx, "my own words")
	req.NoError(err)
	// the echo from the fake transport is dropped by id
	req.Never(func() bool { return len(h.store.Snapshot("c1").Messages) > 1 }, 100*time.Millisecond, 10*time.Millisecond)

	h.transport.leave()
	h.waitState(t, domain.CallStateLeft)

	stored, err := repo.Get(ctx, "c1")
	req.NoError(err)
	req.Nil(stored)
	req.True(h.surface.IsOpen())
}

func TestCallService_Heartbeat(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, repository.NewMemoryConversationRepository(), 10*time.Millisecond)

	h.transport.join("c1")
	h.waitState(t, domain.CallStateJoined)

	req.Eventually(func() bool {
		h.transport.mu.Lock()
		defer h.transport.mu.Unlock()
		return len(h.transport.published) >= 2
	}, 2*time.Second, 5*time.Millisecond)

	// heartbeats never reach the log
	req.Empty(h.store.Snapshot("c1").Messages)

	h.transport.leave()
	h.waitState(t, domain.CallStateLeft)
	time.Sleep(20 * time.Millisecond)
	h.transport.mu.Lock()
	sent := len(h.transport.published)
	h.transport.mu.Unlock()
	time.Sleep(50 * time.Millisecond)
	h.transport.mu.Lock()
	defer h.transport.mu.Unlock()
	req.Equal(sent, len(h.transport.published))
}

func TestMessageService(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := repository.NewMemoryConversationRepository()

	old := domain.NewConversation("old-call")
	old.Append(domain.ChatMessage{ID: "x", SenderID: "u9", Body: "archived"})
	req.NoError(repo.Save(ctx, old))

	h := newHarness(t, repo, 0)

	_, err := h.messages.GetConversation(ctx, "")
	req.ErrorIs(err, chat.ErrNoActiveCall)
	req.ErrorIs(h.messages.MarkRead(ctx), chat.ErrNoActiveCall)

	h.transport.join("c1")
	h.waitState(t, domain.CallStateJoined)

	h.transport.deliver(chatEvent(t, "m1", "u2", "hi"))
	req.Eventually(func() bool { return h.messages.Unread().UnreadCount == 1 }, 2*time.Second, 5*time.Millisecond)
	req.Equal("1", h.messages.Badge())

	current, err := h.messages.GetConversation(ctx, "")
	req.NoError(err)
	req.Equal("c1", current.CallID)
	req.Len(current.Messages, 1)

	archived, err := h.messages.GetConversation(ctx, "old-call")
	req.NoError(err)
	req.Equal("archived", archived.Messages[0].Body)

	req.NoError(h.messages.MarkRead(ctx))
	req.Zero(h.messages.Unread().UnreadCount)
	req.Zero(h.store.Snapshot("c1").UnreadCount)

	msg, err := h.messages.SendMessage(ctx, "reply")
	req.NoError(err)
	req.Equal("me", msg.SenderID)
}
