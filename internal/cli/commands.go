package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/clippy-oss/homie/callchat/internal/chat"
	"github.com/clippy-oss/homie/callchat/internal/domain"
	"github.com/clippy-oss/homie/callchat/internal/pip"
	"github.com/clippy-oss/homie/callchat/internal/service"
)

// PiPController is the part of the picture-in-picture manager the CLI drives.
type PiPController interface {
	RequestOpen(ctx context.Context) pip.State
	Close()
	State() pip.State
	PresentingSurface() pip.Surface
}

type HandlerConfig struct {
	// PiPURL is shown to the user when a window is requested.
	PiPURL string
	// PiPTimeout bounds how long /pip waits for the window to be granted.
	PiPTimeout time.Duration
}

// CommandHandler handles CLI commands
type CommandHandler struct {
	msgSvc  *service.MessageService
	caller  service.Caller
	surface *chat.Surface
	pip     PiPController
	bus     domain.EventBus
	config  HandlerConfig
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(
	msgSvc *service.MessageService,
	caller service.Caller,
	surface *chat.Surface,
	pip PiPController,
	bus domain.EventBus,
	config HandlerConfig,
) *CommandHandler {
	return &CommandHandler{
		msgSvc:  msgSvc,
		caller:  caller,
		surface: surface,
		pip:     pip,
		bus:     bus,
		config:  config,
	}
}

// Command represents a parsed command
type Command struct {
	Name string
	Args []string
}

// ParseCommand parses a command string (e.g., "/send Hello everyone")
func ParseCommand(input string) (*Command, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("empty command")
	}

	if !strings.HasPrefix(input, "/") {
		return nil, fmt.Errorf("commands must start with /")
	}

	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	name := strings.TrimPrefix(parts[0], "/")
	args := parts[1:]

	return &Command{Name: name, Args: args}, nil
}

// Execute executes a command and returns the result
func (h *CommandHandler) Execute(ctx context.Context, cmd *Command) (interface{}, error) {
	switch cmd.Name {
	case "help", "h":
		return h.cmdHelp()
	case "status", "s":
		return h.cmdStatus(), nil
	case "join", "j":
		return h.cmdJoin(ctx, cmd.Args)
	case "leave":
		return h.cmdLeave(ctx)
	case "mute":
		return h.cmdMute(ctx, true)
	case "unmute":
		return h.cmdMute(ctx, false)
	case "messages", "msg":
		return h.cmdMessages(ctx, cmd.Args)
	case "send":
		return h.cmdSend(ctx, cmd.Args)
	case "read":
		return h.cmdRead(ctx)
	case "unread", "u":
		return h.cmdUnread(), nil
	case "open":
		h.surface.Open(ctx)
		return map[string]string{"message": "Chat panel opened"}, nil
	case "close":
		h.surface.Close(ctx)
		return map[string]string{"message": "Chat panel closed"}, nil
	case "pip":
		return h.cmdPiP(ctx)
	case "quit", "exit", "q":
		return map[string]bool{"quit": true}, nil
	default:
		return nil, fmt.Errorf("unknown command: %s. Type /help for available commands", cmd.Name)
	}
}

func (h *CommandHandler) cmdHelp() (interface{}, error) {
	help := `Available commands:

Call:
  /status, /s              Show call status
  /join, /j <call_id>      Join a call
  /leave                   Leave the current call (discards its chat)
  /mute, /unmute           Toggle the microphone

Chat:
  /send <text>             Send a message to the call
  /messages, /msg [call_id|-] [limit]  Show messages (- or nothing: current call)
  /open, /close            Open or close the chat panel
  /read                    Mark the current call as read
  /unread, /u              Show the unread count

Picture-in-picture:
  /pip                     Open or close the floating call window

Other:
  /help, /h                Show this help
  /quit, /exit, /q         Exit the CLI`

	return map[string]string{"help": help}, nil
}

func (h *CommandHandler) cmdStatus() CallStatus {
	callID := h.msgSvc.CurrentCallID()
	unread := h.msgSvc.Unread()

	status := CallStatus{
		CallID:    callID,
		InCall:    callID != "",
		PanelOpen: h.surface.IsOpen(),
		PiP:       string(h.pipState()),
		Unread:    unread.UnreadCount,
		Badge:     h.msgSvc.Badge(),
		Status:    "not in a call",
	}
	if h.caller != nil {
		status.Muted = h.caller.Muted()
	}
	if status.InCall {
		status.Status = "in call " + callID
	}
	return status
}

func (h *CommandHandler) cmdJoin(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /join <call_id>")
	}
	if h.caller == nil {
		return nil, fmt.Errorf("call control not available")
	}

	if err := h.caller.Join(ctx, args[0]); err != nil {
		return nil, fmt.Errorf("failed to join call: %w", err)
	}
	return map[string]string{"message": "Joined call " + args[0], "call_id": args[0]}, nil
}

func (h *CommandHandler) cmdLeave(ctx context.Context) (interface{}, error) {
	if h.caller == nil {
		return nil, fmt.Errorf("call control not available")
	}
	callID := h.msgSvc.CurrentCallID()
	if err := h.caller.Leave(ctx); err != nil {
		return nil, fmt.Errorf("failed to leave call: %w", err)
	}
	return map[string]string{"message": "Left call " + callID}, nil
}

func (h *CommandHandler) cmdMute(ctx context.Context, muted bool) (interface{}, error) {
	if h.caller == nil {
		return nil, fmt.Errorf("call control not available")
	}
	if err := h.caller.SetMuted(ctx, muted); err != nil {
		return nil, fmt.Errorf("failed to change microphone: %w", err)
	}
	if muted {
		return map[string]string{"message": "Microphone muted"}, nil
	}
	return map[string]string{"message": "Microphone unmuted"}, nil
}

// currentCallArg stands for the active call where a call id is expected.
const currentCallArg = "-"

func (h *CommandHandler) cmdMessages(ctx context.Context, args []string) (interface{}, error) {
	callID := ""
	if len(args) > 0 && args[0] != currentCallArg {
		callID = args[0]
	}
	limit := 50
	if len(args) > 1 {
		l, err := strconv.Atoi(args[1])
		if err != nil || l <= 0 {
			return nil, fmt.Errorf("invalid limit %q", args[1])
		}
		limit = l
	}

	conv, err := h.msgSvc.GetConversation(ctx, callID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	messages := conv.Messages
	if len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	result := lo.Map(messages, func(msg domain.ChatMessage, _ int) MessageInfo {
		return h.messageInfo(conv.CallID, msg)
	})
	return map[string]interface{}{"call_id": conv.CallID, "messages": result, "count": len(result)}, nil
}

func (h *CommandHandler) cmdSend(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /send <text>")
	}

	msg, err := h.msgSvc.SendMessage(ctx, strings.Join(args, " "))
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	return h.messageInfo(h.msgSvc.CurrentCallID(), msg), nil
}

func (h *CommandHandler) cmdRead(ctx context.Context) (interface{}, error) {
	if err := h.msgSvc.MarkRead(ctx); err != nil {
		return nil, fmt.Errorf("failed to mark as read: %w", err)
	}
	return map[string]string{"message": "Marked as read"}, nil
}

func (h *CommandHandler) cmdUnread() UnreadInfo {
	state := h.msgSvc.Unread()
	return UnreadInfo{
		CallID:      h.msgSvc.CurrentCallID(),
		UnreadCount: state.UnreadCount,
		HasUnread:   state.HasUnread,
		Badge:       h.msgSvc.Badge(),
	}
}

// cmdPiP toggles the floating call window. A window that is unsupported or
// not granted is reported through the returned state, not as an error.
func (h *CommandHandler) cmdPiP(ctx context.Context) (interface{}, error) {
	if h.pipState() == pip.StateUnsupported {
		return PiPInfo{
			State:   string(pip.StateUnsupported),
			Surface: string(pip.SurfacePrimary),
		}, nil
	}

	if h.pip.State() == pip.StateOpen {
		h.pip.Close()
	} else {
		if h.config.PiPTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, h.config.PiPTimeout)
			defer cancel()
		}
		h.pip.RequestOpen(ctx)
	}

	return PiPInfo{
		State:   string(h.pip.State()),
		URL:     h.config.PiPURL,
		Surface: string(h.pip.PresentingSurface()),
	}, nil
}

func (h *CommandHandler) pipState() pip.State {
	if h.pip == nil {
		return pip.StateUnsupported
	}
	return h.pip.State()
}

func (h *CommandHandler) messageInfo(callID string, msg domain.ChatMessage) MessageInfo {
	return MessageInfo{
		ID:           msg.ID,
		CallID:       callID,
		SenderID:     msg.SenderID,
		SenderName:   msg.SenderName,
		SenderAvatar: msg.SenderAvatarRef,
		Body:         msg.Body,
		SentAt:       msg.SentAt,
		IsFromMe:     msg.IsFrom(h.msgSvc.LocalUser().ID),
	}
}

// SubscribeEvents subscribes to chat and call events. The returned function
// ends the subscription and closes the channel.
func (h *CommandHandler) SubscribeEvents(eventTypes []domain.EventType) (<-chan Event, func()) {
	if len(eventTypes) == 0 {
		eventTypes = []domain.EventType{
			domain.EventTypeMessageAppended,
			domain.EventTypeSendFailed,
			domain.EventTypeUnreadChanged,
			domain.EventTypeCallState,
			domain.EventTypePiPState,
		}
	}

	domainChan := h.bus.Subscribe(eventTypes)
	resultChan := make(chan Event)
	done := make(chan struct{})

	go func() {
		defer close(resultChan)
		for evt := range domainChan {
			event, ok := h.toEvent(evt)
			if !ok {
				continue
			}
			select {
			case resultChan <- event:
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return resultChan, func() {
		once.Do(func() {
			close(done)
			h.bus.Unsubscribe(domainChan)
		})
	}
}

func (h *CommandHandler) toEvent(evt domain.Event) (Event, bool) {
	var eventType string
	var data interface{}

	switch e := evt.(type) {
	case domain.MessageAppendedEvent:
		eventType = "message_appended"
		info := h.messageInfo(e.CallID, e.Message)
		data = map[string]interface{}{"message": info, "source": string(e.Source)}
	case domain.SendFailedEvent:
		eventType = "send_failed"
		data = map[string]interface{}{
			"call_id":    e.CallID,
			"message_id": e.MessageID,
			"reason":     e.Reason,
		}
	case domain.UnreadChangedEvent:
		eventType = "unread_changed"
		data = UnreadInfo{
			CallID:      e.CallID,
			UnreadCount: e.UnreadCount,
			HasUnread:   e.HasUnread,
			Badge:       h.msgSvc.Badge(),
		}
	case domain.ConversationLoadedEvent:
		eventType = "conversation_loaded"
		data = map[string]interface{}{
			"call_id":       e.CallID,
			"message_count": e.MessageCount,
			"purged":        e.Purged,
		}
	case domain.CallStateEvent:
		eventType = "call_state"
		data = map[string]interface{}{
			"call_id": e.CallID,
			"state":   string(e.State),
		}
	case domain.PiPStateEvent:
		eventType = "pip_state"
		data = map[string]interface{}{"state": e.State}
	default:
		return Event{}, false
	}

	return Event{
		Type:      eventType,
		Timestamp: evt.Timestamp(),
		Data:      data,
	}, true
}
