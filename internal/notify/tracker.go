package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/clippy-oss/homie/callchat/internal/domain"
	"github.com/clippy-oss/homie/callchat/internal/logger"
)

// ReadStateStore receives the effects requested by the tracker.
type ReadStateStore interface {
	MarkRead(ctx context.Context, callID string)
	SetUnread(ctx context.Context, callID string, count int)
}

// Tracker applies Reduce to the conversation of the active call and carries
// out the resulting effects.
type Tracker struct {
	store    ReadStateStore
	bus      domain.EventBus
	badgeCap int
	log      zerolog.Logger

	mu     sync.Mutex
	callID string
	state  State
}

func NewTracker(store ReadStateStore, bus domain.EventBus, badgeCap int) *Tracker {
	return &Tracker{
		store:    store,
		bus:      bus,
		badgeCap: badgeCap,
		log:      logger.Module("notify"),
	}
}

// Reset binds the tracker to callID with the unread count loaded from storage.
// Panel visibility is kept.
func (t *Tracker) Reset(ctx context.Context, callID string, unread int) {
	t.mu.Lock()
	t.callID = callID
	t.mu.Unlock()
	t.apply(ctx, Reset(unread))
}

func (t *Tracker) MessageArrived(ctx context.Context, fromOther bool) {
	t.apply(ctx, MessageArrived(fromOther))
}

func (t *Tracker) PanelVisibilityChanged(ctx context.Context, open bool) {
	t.apply(ctx, PanelVisibilityChanged(open))
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tracker) CallID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.callID
}

// Badge is the rendered unread badge, empty when nothing is unread.
func (t *Tracker) Badge() string {
	return Badge(t.State().UnreadCount, t.badgeCap)
}

// apply holds mu through the effects so that persisted counts follow the
// order of transitions.
func (t *Tracker) apply(ctx context.Context, in Input) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.state
	next, effect := Reduce(prev, in)
	t.state = next
	callID := t.callID

	t.log.Debug().
		Str("call_id", callID).
		Int("unread", next.UnreadCount).
		Bool("panel_open", next.PanelOpen).
		Stringer("effect", effect).
		Msg("Unread state updated")

	if callID != "" && t.store != nil {
		switch effect {
		case EffectMarkRead:
			t.store.MarkRead(ctx, callID)
		case EffectPersistUnread:
			t.store.SetUnread(ctx, callID, next.UnreadCount)
		}
	}

	if t.bus != nil && (prev.UnreadCount != next.UnreadCount || prev.HasUnread != next.HasUnread) {
		t.bus.Publish(domain.UnreadChangedEvent{
			CallID:      callID,
			UnreadCount: next.UnreadCount,
			HasUnread:   next.HasUnread,
			EventTime:   time.Now(),
		})
	}
}
