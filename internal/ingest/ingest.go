package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/spf13/cast"

	"github.com/clippy-oss/homie/callchat/internal/domain"
	"github.com/clippy-oss/homie/callchat/internal/logger"
)

const unknownSender = "unknown"

var (
	ErrNotChatEvent   = errors.New("not a chat message event")
	ErrMalformedEvent = errors.New("malformed chat message event")
	ErrDuplicate      = errors.New("duplicate message")
	ErrNoActiveCall   = errors.New("no active call")
)

// MessageAppender is the part of the conversation store ingestion writes to.
type MessageAppender interface {
	Append(ctx context.Context, callID string, msg domain.ChatMessage, source domain.MessageSource) bool
}

// ArrivalNotifier is told about every accepted message.
type ArrivalNotifier interface {
	MessageArrived(ctx context.Context, fromOther bool)
}

// inbound is a fully resolved chat event, validated before it becomes a
// ChatMessage.
type inbound struct {
	ID       string `validate:"required"`
	SenderID string `validate:"required"`
	Body     string `validate:"required,max=500"`
}

type Ingestor struct {
	store       MessageAppender
	notifier    ArrivalNotifier
	localUserID string
	validate    *validator.Validate
	log         zerolog.Logger

	now   func() time.Time
	newID func() string
}

func New(store MessageAppender, notifier ArrivalNotifier, localUserID string) *Ingestor {
	return &Ingestor{
		store:       store,
		notifier:    notifier,
		localUserID: localUserID,
		validate:    validator.New(),
		log:         logger.Module("ingest"),
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Decode turns a transport event into a canonical message. Every field is
// taken from the payload first, then from the transport sender metadata,
// then from a fixed fallback.
func (i *Ingestor) Decode(evt domain.CustomEvent) (domain.ChatMessage, error) {
	if evt.EventType() != domain.ChatMessageEventType {
		return domain.ChatMessage{}, ErrNotChatEvent
	}

	var payload domain.ChatPayload
	if len(evt.Custom) > 0 {
		if err := json.Unmarshal(evt.Custom, &payload); err != nil {
			return domain.ChatMessage{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
	}
	user := lo.FromPtr(evt.User)

	msg := domain.ChatMessage{
		ID:              lo.CoalesceOrEmpty(payload.MessageID, i.newID()),
		SenderID:        lo.CoalesceOrEmpty(payload.UserID, user.ID, unknownSender),
		SenderName:      lo.CoalesceOrEmpty(payload.UserName, user.Name, unknownSender),
		SenderAvatarRef: lo.CoalesceOrEmpty(payload.UserImage, user.Image),
		Body:            payload.Message,
		SentAt:          domain.Timestamp(i.resolveTime(payload.Timestamp, evt.CreatedAt)),
	}

	if strings.TrimSpace(msg.Body) == "" {
		return domain.ChatMessage{}, fmt.Errorf("%w: empty message", ErrMalformedEvent)
	}
	if err := i.validate.Struct(inbound{ID: msg.ID, SenderID: msg.SenderID, Body: msg.Body}); err != nil {
		return domain.ChatMessage{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return msg, nil
}

// Ingest decodes evt and appends it to the conversation of callID. Accepted
// messages are reported to the notifier; duplicates are not.
func (i *Ingestor) Ingest(ctx context.Context, callID string, evt domain.CustomEvent) (domain.ChatMessage, error) {
	if callID == "" {
		return domain.ChatMessage{}, ErrNoActiveCall
	}

	msg, err := i.Decode(evt)
	if err != nil {
		if !errors.Is(err, ErrNotChatEvent) {
			i.log.Debug().Err(err).Str("call_id", callID).Msg("Dropping inbound event")
		}
		return domain.ChatMessage{}, err
	}

	if !i.store.Append(ctx, callID, msg, domain.MessageSourceRemote) {
		i.log.Debug().Str("call_id", callID).Str("message_id", msg.ID).Msg("Duplicate message ignored")
		return msg, ErrDuplicate
	}

	if i.notifier != nil {
		i.notifier.MessageArrived(ctx, !msg.IsFrom(i.localUserID))
	}
	return msg, nil
}

// resolveTime accepts epoch milliseconds, numeric strings and date strings.
// Anything unusable falls back to the transport's created_at, then to now.
func (i *Ingestor) resolveTime(raw any, createdAt string) time.Time {
	if t, ok := parseTime(raw); ok {
		return t
	}
	if t, ok := parseTime(createdAt); ok {
		return t
	}
	return i.now()
}

// minEpochMillis is the smallest number read as epoch milliseconds. Shorter
// digit strings such as a bare year go through date parsing instead.
const minEpochMillis = 1_000_000_000

func parseTime(raw any) (time.Time, bool) {
	switch v := raw.(type) {
	case nil:
		return time.Time{}, false
	case float64, int, int64, json.Number:
		ms, err := cast.ToInt64E(v)
		if err != nil || ms < minEpochMillis {
			return time.Time{}, false
		}
		return time.UnixMilli(ms).UTC(), true
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return time.Time{}, false
		}
		if ms, err := cast.ToInt64E(s); err == nil && ms >= minEpochMillis {
			return time.UnixMilli(ms).UTC(), true
		}
		t, err := cast.ToTimeE(s)
		if err != nil || t.IsZero() {
			return time.Time{}, false
		}
		return t.UTC(), true
	default:
		return time.Time{}, false
	}
}
