package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/samber/lo"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/clippy-oss/homie/callchat/internal/chat"
	"github.com/clippy-oss/homie/callchat/internal/domain"
	"github.com/clippy-oss/homie/callchat/internal/service"
)

type Handler struct {
	msgSvc *service.MessageService
	caller service.Caller
	bus    domain.EventBus
}

func NewHandler(msgSvc *service.MessageService, caller service.Caller, bus domain.EventBus) *Handler {
	return &Handler{
		msgSvc: msgSvc,
		caller: caller,
		bus:    bus,
	}
}

func (h *Handler) GetConversation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	callID := req.GetFields()["callId"].GetStringValue()
	conv, err := h.msgSvc.GetConversation(ctx, callID)
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := structpb.NewStruct(conversationToMap(conv))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode conversation: %v", err)
	}
	return out, nil
}

func (h *Handler) SendMessage(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	text := req.GetFields()["text"].GetStringValue()
	msg, err := h.msgSvc.SendMessage(ctx, text)
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := structpb.NewStruct(map[string]any{"message": messageToMap(msg)})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode message: %v", err)
	}
	return out, nil
}

func (h *Handler) MarkRead(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := h.msgSvc.MarkRead(ctx); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (h *Handler) GetUnread(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	state := h.msgSvc.Unread()
	out, err := structpb.NewStruct(map[string]any{
		"callId":      h.msgSvc.CurrentCallID(),
		"unreadCount": state.UnreadCount,
		"hasUnread":   state.HasUnread,
		"panelOpen":   state.PanelOpen,
		"badge":       h.msgSvc.Badge(),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode unread state: %v", err)
	}
	return out, nil
}

func (h *Handler) JoinCall(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	callID := req.GetFields()["callId"].GetStringValue()
	if callID == "" {
		return nil, status.Error(codes.InvalidArgument, "callId is required")
	}
	if h.caller == nil {
		return nil, status.Error(codes.Unimplemented, "call control not available")
	}
	if err := h.caller.Join(ctx, callID); err != nil {
		return nil, status.Errorf(codes.Unavailable, "failed to join call: %v", err)
	}
	return &emptypb.Empty{}, nil
}

func (h *Handler) LeaveCall(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if h.caller == nil {
		return nil, status.Error(codes.Unimplemented, "call control not available")
	}
	if err := h.caller.Leave(ctx); err != nil {
		return nil, status.Errorf(codes.FailedPrecondition, "failed to leave call: %v", err)
	}
	return &emptypb.Empty{}, nil
}

func (h *Handler) StreamEvents(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	eventCh := h.bus.Subscribe([]domain.EventType{
		domain.EventTypeMessageAppended,
		domain.EventTypeSendFailed,
		domain.EventTypeUnreadChanged,
		domain.EventTypeConversationLoaded,
		domain.EventTypeCallState,
		domain.EventTypePiPState,
	})
	defer h.bus.Unsubscribe(eventCh)

	for {
		select {
		case <-stream.Context().Done():
			return nil
		case event, ok := <-eventCh:
			if !ok {
				return nil
			}
			out, err := structpb.NewStruct(eventToMap(event))
			if err != nil {
				continue
			}
			if err := stream.Send(out); err != nil {
				return err
			}
		}
	}
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrMessageTooLong):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, chat.ErrNoActiveCall):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, chat.ErrSendInFlight):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, chat.ErrSendFailed):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// Conversion helpers
func messageToMap(m domain.ChatMessage) map[string]any {
	return map[string]any{
		"id":              m.ID,
		"senderId":        m.SenderID,
		"senderName":      m.SenderName,
		"senderAvatarRef": m.SenderAvatarRef,
		"body":            m.Body,
		"sentAt":          formatTime(m.SentAt),
	}
}

func conversationToMap(conv *domain.Conversation) map[string]any {
	return map[string]any{
		"callId": conv.CallID,
		"messages": lo.Map(conv.Messages, func(m domain.ChatMessage, _ int) any {
			return messageToMap(m)
		}),
		"lastReadAt":  formatTime(conv.LastReadAt),
		"unreadCount": conv.UnreadCount,
	}
}

func eventToMap(event domain.Event) map[string]any {
	out := map[string]any{
		"type":      string(event.Type()),
		"timestamp": formatTime(event.Timestamp()),
	}
	switch e := event.(type) {
	case domain.MessageAppendedEvent:
		out["callId"] = e.CallID
		out["source"] = string(e.Source)
		out["message"] = messageToMap(e.Message)
	case domain.SendFailedEvent:
		out["callId"] = e.CallID
		out["messageId"] = e.MessageID
		out["reason"] = e.Reason
	case domain.UnreadChangedEvent:
		out["callId"] = e.CallID
		out["unreadCount"] = e.UnreadCount
		out["hasUnread"] = e.HasUnread
	case domain.ConversationLoadedEvent:
		out["callId"] = e.CallID
		out["messageCount"] = e.MessageCount
		out["purged"] = e.Purged
	case domain.CallStateEvent:
		out["callId"] = e.CallID
		out["state"] = string(e.State)
	case domain.PiPStateEvent:
		out["state"] = e.State
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
