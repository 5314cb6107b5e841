package relay

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clippy-oss/homie/callchat/internal/domain"
	hub "github.com/clippy-oss/homie/callchat/internal/relay"
)

func startRelay(t *testing.T) (*httptest.Server, *hub.Hub, string) {
	t.Helper()
	h := hub.NewHub()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, h, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func nextState(t *testing.T, tr *Transport) domain.CallState {
	t.Helper()
	select {
	case s := <-tr.Lifecycle():
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no lifecycle state")
		return ""
	}
}

func collect(tr *Transport) chan domain.CustomEvent {
	ch := make(chan domain.CustomEvent, 16)
	tr.Subscribe(func(evt domain.CustomEvent) { ch <- evt })
	return ch
}

func TestTransport_JoinPublishLeave(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, h, url := startRelay(t)

	alice := New(url, domain.LocalUser{ID: "alice", Name: "Alice"})
	bob := New(url, domain.LocalUser{ID: "bob", Username: "bobby"})

	req.NoError(alice.Join(ctx, "c1"))
	req.Equal(domain.CallStateConnecting, nextState(t, alice))
	req.Equal(domain.CallStateJoined, nextState(t, alice))
	req.Equal("c1", alice.CurrentCallID())

	req.NoError(bob.Join(ctx, "c1"))
	req.Eventually(func() bool { return h.Participants("c1") == 2 }, 2*time.Second, 10*time.Millisecond)

	aliceEvents := collect(alice)
	bobEvents := collect(bob)

	msg := domain.NewChatMessage("m1", domain.LocalUser{ID: "alice", Name: "Alice"}, "hi", time.Now())
	evt, err := domain.NewChatEvent(msg)
	req.NoError(err)
	req.NoError(alice.Publish(ctx, evt))

	for _, ch := range []chan domain.CustomEvent{aliceEvents, bobEvents} {
		select {
		case got := <-ch:
			req.Equal(domain.ChatMessageEventType, got.EventType())
			req.Equal("alice", got.User.ID)
			req.NotEmpty(got.CreatedAt)
			req.JSONEq(string(evt.Custom), string(got.Custom))
		case <-time.After(2 * time.Second):
			t.Fatal("event not delivered")
		}
	}

	req.NoError(bob.Leave(ctx))
	req.Empty(bob.CurrentCallID())
	req.ErrorIs(bob.Publish(ctx, evt), ErrNotJoined)
	req.Eventually(func() bool { return h.Participants("c1") == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestTransport_StampsSenderMetadata(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, url := startRelay(t)

	tr := New(url, domain.LocalUser{ID: "carol", Name: "Carol", ImageRef: "carol.png"})
	req.NoError(tr.Join(ctx, "c1"))
	events := collect(tr)

	req.NoError(tr.Publish(ctx, domain.NewHeartbeatEvent(time.Now())))

	select {
	case got := <-events:
		req.Equal(domain.CallHeartbeatEventType, got.EventType())
		req.Equal(&domain.EventUser{ID: "carol", Name: "Carol", Image: "carol.png"}, got.User)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestTransport_JoinTwiceFails(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, url := startRelay(t)

	tr := New(url, domain.LocalUser{ID: "dave"})
	req.NoError(tr.Join(ctx, "c1"))
	req.ErrorIs(tr.Join(ctx, "c2"), ErrAlreadyJoined)
}

func TestTransport_JoinUnreachableRelay(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	tr := New("ws://127.0.0.1:1", domain.LocalUser{ID: "erin"})
	req.Error(tr.Join(ctx, "c1"))
	req.Equal(domain.CallStateConnecting, nextState(t, tr))
	req.Equal(domain.CallStateIdle, nextState(t, tr))
	req.Empty(tr.CurrentCallID())
}

func TestTransport_RelayLossEndsCall(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, h, url := startRelay(t)

	tr := New(url, domain.LocalUser{ID: "frank"})
	req.NoError(tr.Join(ctx, "c1"))
	req.Equal(domain.CallStateConnecting, nextState(t, tr))
	req.Equal(domain.CallStateJoined, nextState(t, tr))

	h.Close()

	req.Equal(domain.CallStateLeft, nextState(t, tr))
	req.Empty(tr.CurrentCallID())
}

func TestTransport_MuteRequiresCall(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, url := startRelay(t)

	tr := New(url, domain.LocalUser{ID: "gina"})
	req.ErrorIs(tr.SetMuted(ctx, true), ErrNotJoined)

	req.NoError(tr.Join(ctx, "c1"))
	req.NoError(tr.SetMuted(ctx, true))
	req.True(tr.Muted())
	req.NoError(tr.Leave(ctx))
	req.False(tr.Muted())
}
