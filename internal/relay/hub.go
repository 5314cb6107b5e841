package relay

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/clippy-oss/homie/callchat/internal/domain"
	"github.com/clippy-oss/homie/callchat/internal/logger"
)

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
	readLimit    = 1 << 20
)

// Hub fans custom events out to every participant of a call, the sender
// included. It is the reference call transport used in development.
type Hub struct {
	log zerolog.Logger

	mu    sync.RWMutex
	calls map[string]map[*participant]struct{}
}

type participant struct {
	id     string
	callID string
	conn   *websocket.Conn
	send   chan Frame
	user   domain.EventUser
}

func NewHub() *Hub {
	return &Hub{
		log:   logger.Module("relay"),
		calls: make(map[string]map[*participant]struct{}),
	}
}

// Participants returns the number of connections in callID.
func (h *Hub) Participants(callID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.calls[callID])
}

// Close disconnects every participant. Clients see the call end.
func (h *Hub) Close() {
	h.mu.RLock()
	var conns []*websocket.Conn
	for _, members := range h.calls {
		for p := range members {
			conns = append(conns, p.conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		conn.Close(websocket.StatusGoingAway, "relay shutting down")
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket accept failed")
		return
	}
	conn.SetReadLimit(readLimit)
	h.serve(r.Context(), conn)
}

func (h *Hub) serve(ctx context.Context, conn *websocket.Conn) {
	defer conn.CloseNow()

	var join Frame
	if err := wsjson.Read(ctx, conn, &join); err != nil {
		return
	}
	if join.Op != OpJoin || join.CallID == "" {
		_ = wsjson.Write(ctx, conn, Frame{Op: OpError, Error: "expected join with callId"})
		conn.Close(websocket.StatusPolicyViolation, "expected join")
		return
	}

	p := &participant{
		id:     uuid.NewString(),
		callID: join.CallID,
		conn:   conn,
		send:   make(chan Frame, sendBuffer),
	}
	p.user = lo.FromPtr(join.User)
	p.user.ID = lo.CoalesceOrEmpty(p.user.ID, p.id)

	count := h.register(p)
	log := h.log.With().Str("call_id", p.callID).Str("user_id", p.user.ID).Logger()
	log.Info().Int("participants", count).Msg("Participant joined")

	writeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go p.writePump(writeCtx)

	p.enqueue(Frame{Op: OpJoined, CallID: p.callID, Participants: count})
	h.broadcast(p.callID, Frame{Op: OpPresence, CallID: p.callID, Participants: count})

	for {
		var f Frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				log.Debug().Err(err).Msg("Read failed")
			}
			break
		}
		if f.Op == OpLeave {
			break
		}
		if f.Op != OpEvent || f.Event == nil {
			p.enqueue(Frame{Op: OpAck, Seq: f.Seq, Error: "unsupported frame"})
			continue
		}
		h.relay(p, f)
	}

	count = h.unregister(p)
	log.Info().Int("participants", count).Msg("Participant left")
	h.broadcast(p.callID, Frame{Op: OpPresence, CallID: p.callID, Participants: count})
}

// relay stamps sender metadata and delivery time on the event, delivers it
// to the whole call and acks the sender.
func (h *Hub) relay(from *participant, f Frame) {
	evt := *f.Event
	user := lo.FromPtr(evt.User)
	user.ID = lo.CoalesceOrEmpty(user.ID, from.user.ID)
	user.Name = lo.CoalesceOrEmpty(user.Name, from.user.Name)
	user.Image = lo.CoalesceOrEmpty(user.Image, from.user.Image)
	evt.User = &user
	evt.CreatedAt = lo.CoalesceOrEmpty(evt.CreatedAt, time.Now().UTC().Format(time.RFC3339Nano))

	h.broadcast(from.callID, Frame{Op: OpEvent, CallID: from.callID, Event: &evt})
	from.enqueue(Frame{Op: OpAck, Seq: f.Seq})
}

func (h *Hub) register(p *participant) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.calls[p.callID]
	if !ok {
		members = make(map[*participant]struct{})
		h.calls[p.callID] = members
	}
	members[p] = struct{}{}
	return len(members)
}

func (h *Hub) unregister(p *participant) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.calls[p.callID]
	delete(members, p)
	if len(members) == 0 {
		delete(h.calls, p.callID)
	}
	return len(members)
}

func (h *Hub) broadcast(callID string, f Frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for p := range h.calls[callID] {
		if !p.enqueue(f) {
			h.log.Warn().Str("call_id", callID).Str("participant", p.id).Msg("Participant too slow, frame dropped")
		}
	}
}

func (p *participant) enqueue(f Frame) bool {
	select {
	case p.send <- f:
		return true
	default:
		return false
	}
}

func (p *participant) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-p.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, p.conn, f)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
