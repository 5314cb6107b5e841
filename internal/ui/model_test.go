package ui

import (
	"context"
	"fmt"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/clippy-oss/homie/callchat/internal/chat"
	"github.com/clippy-oss/homie/callchat/internal/cli"
	"github.com/clippy-oss/homie/callchat/internal/domain"
	"github.com/clippy-oss/homie/callchat/internal/mocks"
	"github.com/clippy-oss/homie/callchat/internal/notify"
	"github.com/clippy-oss/homie/callchat/internal/pip"
	"github.com/clippy-oss/homie/callchat/internal/repository"
	"github.com/clippy-oss/homie/callchat/internal/service"
	"github.com/clippy-oss/homie/callchat/internal/store"
)

type fixture struct {
	model   model
	bus     *domain.SimpleEventBus
	tracker *notify.Tracker
	surface *chat.Surface
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockCallTransport(ctrl)
	transport.EXPECT().CurrentCallID().Return("c1").AnyTimes()
	transport.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	ctx := context.Background()
	bus := domain.NewEventBus()
	st := store.New(repository.NewMemoryConversationRepository(), bus)
	st.Load(ctx, "c1")
	tracker := notify.NewTracker(st, bus, notify.DefaultBadgeCap)
	tracker.Reset(ctx, "c1", 0)
	surface := chat.NewSurface(st, transport, tracker, bus, domain.LocalUser{ID: "me", Name: "Me"})
	msgSvc := service.NewMessageService(st, surface, tracker, transport)
	handler := cli.NewCommandHandler(msgSvc, nil, surface, nil, bus, cli.HandlerConfig{})

	cfg := Config{
		Handler:  handler,
		Messages: msgSvc,
		Surface:  surface,
		Bus:      bus,
	}
	m := newModel(ctx, cfg, nil)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	return &fixture{
		model:   updated.(model),
		bus:     bus,
		tracker: tracker,
		surface: surface,
	}
}

func (f *fixture) update(msg tea.Msg) tea.Cmd {
	updated, cmd := f.model.Update(msg)
	f.model = updated.(model)
	return cmd
}

func TestModel_TabTogglesPanelAndBadge(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 11; i++ {
		f.tracker.MessageArrived(ctx, true)
	}
	req.False(f.surface.IsOpen())
	req.Contains(f.model.View(), "9+")
	req.Contains(f.model.View(), "11 unread message(s)")

	f.update(tea.KeyMsg{Type: tea.KeyTab})
	req.True(f.surface.IsOpen())
	req.Equal(0, f.tracker.State().UnreadCount)
	req.NotContains(f.model.View(), "9+")

	f.update(tea.KeyMsg{Type: tea.KeyTab})
	req.False(f.surface.IsOpen())
}

func TestModel_EnterSendsMessage(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.update(tea.KeyMsg{Type: tea.KeyTab})
	f.model.input.SetValue("  hello call  ")

	cmd := f.update(tea.KeyMsg{Type: tea.KeyEnter})
	req.NotNil(cmd)
	req.True(f.model.inflight)
	req.Empty(f.model.input.Value())

	f.update(cmd())
	req.False(f.model.inflight)

	messages := f.surface.Messages()
	req.Len(messages, 1)
	req.Equal("hello call", messages[0].Body)
	req.Contains(f.model.View(), "hello call")
}

func TestModel_TimelineFollowsNewMessages(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	f.update(tea.KeyMsg{Type: tea.KeyTab})
	appended := func(body string) {
		msg, err := f.surface.Send(ctx, body)
		req.NoError(err)
		f.update(busEventMsg{event: domain.MessageAppendedEvent{CallID: "c1", Message: msg}})
	}

	for i := 0; i < 60; i++ {
		appended(fmt.Sprintf("line %d", i))
	}
	req.True(f.model.timeline.AtBottom())

	f.update(tea.KeyMsg{Type: tea.KeyPgUp})
	req.False(f.model.timeline.AtBottom())
	offset := f.model.timeline.YOffset

	t.Run("re-render without new messages keeps position", func(t *testing.T) {
		f.update(busEventMsg{event: domain.UnreadChangedEvent{CallID: "c1"}})
		require.Equal(t, offset, f.model.timeline.YOffset)
		f.update(tea.WindowSizeMsg{Width: 100, Height: 30})
		require.Equal(t, offset, f.model.timeline.YOffset)
	})

	t.Run("append scrolls to newest", func(t *testing.T) {
		appended("newest")
		require.True(t, f.model.timeline.AtBottom())
		require.Contains(t, f.model.timeline.View(), "newest")
	})
}

type stubPiP struct {
	state pip.State
}

func (s *stubPiP) RequestOpen(context.Context) pip.State { return s.state }
func (s *stubPiP) Close()                                {}
func (s *stubPiP) State() pip.State                      { return s.state }
func (s *stubPiP) PresentingSurface() pip.Surface        { return pip.SurfacePrimary }

func TestModel_PiPKeyHiddenWhenUnsupported(t *testing.T) {
	t.Run("no manager", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		req.NotContains(f.model.View(), "ctrl+p")
		req.Nil(f.update(tea.KeyMsg{Type: tea.KeyCtrlP}))
		req.False(f.model.inflight)
	})

	t.Run("unsupported", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		f.model.cfg.PiP = &stubPiP{state: pip.StateUnsupported}
		req.NotContains(f.model.View(), "ctrl+p")
		req.Nil(f.update(tea.KeyMsg{Type: tea.KeyCtrlP}))
	})

	t.Run("available", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		f.model.cfg.PiP = &stubPiP{state: pip.StateClosed}
		req.Contains(f.model.View(), "ctrl+p pip")
		req.NotNil(f.update(tea.KeyMsg{Type: tea.KeyCtrlP}))
		req.True(f.model.inflight)
	})
}

func TestModel_EnterWithClosedPanel(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.model.input.SetValue("hello")
	cmd := f.update(tea.KeyMsg{Type: tea.KeyEnter})
	req.Nil(cmd)
	req.Empty(f.surface.Messages())
	req.Contains(f.model.statusLine, "Tab")
}

func TestModel_SlashCommand(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.model.input.SetValue("/unread")
	cmd := f.update(tea.KeyMsg{Type: tea.KeyEnter})
	req.NotNil(cmd)

	f.update(cmd())
	req.Equal("no unread messages", f.model.statusLine)
}

func TestModel_QuitCommand(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.model.input.SetValue("/quit")
	cmd := f.update(tea.KeyMsg{Type: tea.KeyEnter})
	req.NotNil(cmd)

	quit := f.update(cmd())
	req.NotNil(quit)
	req.IsType(tea.QuitMsg{}, quit())
}

func TestModel_CallStateEvents(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	req.Contains(f.model.View(), "Connected to call: c1")
	req.Contains(f.model.View(), "1 participant(s)")

	f.update(busEventMsg{event: domain.CallStateEvent{CallID: "c1", State: domain.CallStateLeft}})
	req.Equal("", f.model.callID)
	req.Contains(f.model.View(), "Not connected to call")
	req.Equal("call left", f.model.statusLine)
}

func TestModel_EscDismissesThenCloses(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.update(tea.KeyMsg{Type: tea.KeyTab})
	req.True(f.surface.IsOpen())

	f.update(tea.KeyMsg{Type: tea.KeyEsc})
	req.False(f.surface.IsOpen())
}

func TestForwardEvents(t *testing.T) {
	req := require.New(t)
	bus := domain.NewEventBus()
	inbound, stop := forwardEvents(bus)

	bus.Publish(domain.PiPStateEvent{State: "open", EventTime: time.Now()})

	select {
	case msg := <-inbound:
		evt, ok := msg.(busEventMsg)
		req.True(ok)
		req.Equal(domain.EventTypePiPState, evt.event.Type())
	case <-time.After(2 * time.Second):
		t.Fatal("event not forwarded")
	}

	stop()
	select {
	case _, ok := <-inbound:
		req.False(ok)
	case <-time.After(2 * time.Second):
		t.Fatal("inbound not closed")
	}
}
