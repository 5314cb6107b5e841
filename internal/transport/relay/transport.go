package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/clippy-oss/homie/callchat/internal/domain"
	"github.com/clippy-oss/homie/callchat/internal/logger"
	hub "github.com/clippy-oss/homie/callchat/internal/relay"
)

var (
	ErrNotJoined     = errors.New("not joined to a call")
	ErrAlreadyJoined = errors.New("already joined to a call")
	ErrConnClosed    = errors.New("relay connection closed")
)

const lifecycleBuffer = 32

// Transport is a CallTransport and CallControls backed by a relay hub.
type Transport struct {
	url  string
	user domain.LocalUser
	log  zerolog.Logger

	lifecycle chan domain.CallState

	mu           sync.Mutex
	conn         *websocket.Conn
	cancel       context.CancelFunc
	callID       string
	participants int
	muted        bool
	seq          uint64
	pending      map[uint64]chan error
	handlers     map[int]func(domain.CustomEvent)
	nextHandler  int
}

func New(url string, user domain.LocalUser) *Transport {
	return &Transport{
		url:       url,
		user:      user,
		log:       logger.Module("transport"),
		lifecycle: make(chan domain.CallState, lifecycleBuffer),
		pending:   make(map[uint64]chan error),
		handlers:  make(map[int]func(domain.CustomEvent)),
	}
}

func (t *Transport) Lifecycle() <-chan domain.CallState {
	return t.lifecycle
}

func (t *Transport) CurrentCallID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.callID
}

func (t *Transport) Participants() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.participants
}

// Subscribe registers handler for every event delivered by the relay.
// Handlers run on the read loop in delivery order and must not block.
func (t *Transport) Subscribe(handler func(domain.CustomEvent)) func() {
	t.mu.Lock()
	id := t.nextHandler
	t.nextHandler++
	t.handlers[id] = handler
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.handlers, id)
		t.mu.Unlock()
	}
}

// Join connects to the relay and enters callID.
func (t *Transport) Join(ctx context.Context, callID string) error {
	t.mu.Lock()
	if t.conn != nil {
		t.mu.Unlock()
		return ErrAlreadyJoined
	}
	t.mu.Unlock()

	t.setState(domain.CallStateConnecting)

	conn, _, err := websocket.Dial(ctx, t.url, nil)
	if err != nil {
		t.setState(domain.CallStateIdle)
		return fmt.Errorf("failed to connect to relay: %w", err)
	}
	conn.SetReadLimit(1 << 20)

	user := domain.EventUser{ID: t.user.ID, Name: t.user.DisplayName(), Image: t.user.ImageRef}
	if err := wsjson.Write(ctx, conn, hub.Frame{Op: hub.OpJoin, CallID: callID, User: &user}); err != nil {
		conn.CloseNow()
		t.setState(domain.CallStateIdle)
		return fmt.Errorf("failed to join call: %w", err)
	}
	var joined hub.Frame
	if err := wsjson.Read(ctx, conn, &joined); err != nil || joined.Op != hub.OpJoined {
		conn.CloseNow()
		t.setState(domain.CallStateIdle)
		if err == nil {
			err = fmt.Errorf("unexpected reply %q: %s", joined.Op, joined.Error)
		}
		return fmt.Errorf("failed to join call: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	t.mu.Lock()
	t.conn = conn
	t.cancel = cancel
	t.callID = callID
	t.participants = joined.Participants
	t.mu.Unlock()

	t.log.Info().Str("call_id", callID).Int("participants", joined.Participants).Msg("Joined call")
	go t.readLoop(runCtx, conn)
	t.setState(domain.CallStateJoined)
	return nil
}

// Leave exits the current call.
func (t *Transport) Leave(ctx context.Context) error {
	t.mu.Lock()
	conn := t.conn
	cancel := t.cancel
	callID := t.callID
	if conn == nil {
		t.mu.Unlock()
		return ErrNotJoined
	}
	t.detach()
	t.mu.Unlock()

	_ = wsjson.Write(ctx, conn, hub.Frame{Op: hub.OpLeave})
	conn.Close(websocket.StatusNormalClosure, "leave")
	cancel()

	t.log.Info().Str("call_id", callID).Msg("Left call")
	t.setState(domain.CallStateLeft)
	return nil
}

// Publish sends evt to the call and waits for the relay to acknowledge it.
func (t *Transport) Publish(ctx context.Context, evt domain.CustomEvent) error {
	t.mu.Lock()
	conn := t.conn
	if conn == nil {
		t.mu.Unlock()
		return ErrNotJoined
	}
	t.seq++
	seq := t.seq
	ack := make(chan error, 1)
	t.pending[seq] = ack
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.pending, seq)
		t.mu.Unlock()
	}()

	if err := wsjson.Write(ctx, conn, hub.Frame{Op: hub.OpEvent, Seq: seq, Event: &evt}); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	select {
	case err := <-ack:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Transport) SetMuted(_ context.Context, muted bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return ErrNotJoined
	}
	t.muted = muted
	t.log.Info().Bool("muted", muted).Msg("Microphone state changed")
	return nil
}

func (t *Transport) Muted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.muted
}

func (t *Transport) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var f hub.Frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			t.dropped(conn, err)
			return
		}
		switch f.Op {
		case hub.OpEvent:
			if f.Event != nil {
				t.dispatch(*f.Event)
			}
		case hub.OpAck:
			t.resolve(f.Seq, f.Error)
		case hub.OpPresence:
			t.mu.Lock()
			t.participants = f.Participants
			t.mu.Unlock()
		case hub.OpError:
			t.log.Warn().Str("error", f.Error).Msg("Relay error")
		}
	}
}

func (t *Transport) dispatch(evt domain.CustomEvent) {
	t.mu.Lock()
	handlers := make([]func(domain.CustomEvent), 0, len(t.handlers))
	for i := 0; i < t.nextHandler; i++ {
		if h, ok := t.handlers[i]; ok {
			handlers = append(handlers, h)
		}
	}
	t.mu.Unlock()

	for _, h := range handlers {
		h(evt)
	}
}

func (t *Transport) resolve(seq uint64, errMsg string) {
	t.mu.Lock()
	ack, ok := t.pending[seq]
	t.mu.Unlock()
	if !ok {
		return
	}
	var err error
	if errMsg != "" {
		err = errors.New(errMsg)
	}
	ack <- err
}

// dropped handles the relay going away without a Leave. The call is over
// for this client.
func (t *Transport) dropped(conn *websocket.Conn, err error) {
	t.mu.Lock()
	if t.conn != conn {
		t.mu.Unlock()
		return
	}
	callID := t.callID
	cancel := t.cancel
	t.detach()
	t.mu.Unlock()

	cancel()
	conn.CloseNow()
	t.log.Warn().Err(err).Str("call_id", callID).Msg("Relay connection lost")
	t.setState(domain.CallStateLeft)
}

// detach clears the connection and fails pending publishes. Caller holds mu.
func (t *Transport) detach() {
	t.conn = nil
	t.cancel = nil
	t.callID = ""
	t.participants = 0
	t.muted = false
	for seq, ack := range t.pending {
		select {
		case ack <- ErrConnClosed:
		default:
		}
		delete(t.pending, seq)
	}
}

func (t *Transport) setState(state domain.CallState) {
	select {
	case t.lifecycle <- state:
	default:
		t.log.Warn().Str("state", string(state)).Msg("Lifecycle consumer too slow, state dropped")
	}
}
