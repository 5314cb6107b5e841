package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/clippy-oss/homie/callchat/internal/chat"
)

func (s *Server) handleGetConversation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	callID := request.GetString("call_id", "")

	limit := request.GetInt("limit", 50)
	if limit > 200 {
		limit = 200
	}
	if limit <= 0 {
		limit = 50
	}

	conv, err := s.msgSvc.GetConversation(ctx, callID)
	if err != nil {
		if errors.Is(err, chat.ErrNoActiveCall) {
			return mcp.NewToolResultError("Not in a call. Pass call_id to read a stored conversation."), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get conversation: %v", err)), nil
	}

	if len(conv.Messages) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No messages in call %s", conv.CallID)), nil
	}

	messages := conv.Messages
	if len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Messages from call %s (%d of %d):\n\n", conv.CallID, len(messages), len(conv.Messages)))

	for _, msg := range messages {
		sender := msg.SenderName
		if msg.IsFrom(s.localUserID()) {
			sender = "Me"
		}
		result.WriteString(fmt.Sprintf("[%s] %s:\n", msg.SentAt.Local().Format("2006-01-02 15:04"), sender))
		result.WriteString(fmt.Sprintf("  %s\n", msg.Body))
		result.WriteString(fmt.Sprintf("  ID: %s\n\n", msg.ID))
	}

	if conv.UnreadCount > 0 {
		result.WriteString(fmt.Sprintf("Unread: %d message(s)\n", conv.UnreadCount))
	}

	return mcp.NewToolResultText(result.String()), nil
}

func (s *Server) handleSendMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := request.GetString("text", "")
	if strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("text is required"), nil
	}

	msg, err := s.msgSvc.SendMessage(ctx, text)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to send message: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Message sent successfully!\nID: %s\nTimestamp: %s\nCall: %s",
		msg.ID, msg.SentAt.Local().Format("2006-01-02 15:04:05"), s.msgSvc.CurrentCallID())), nil
}

func (s *Server) handleMarkRead(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.msgSvc.MarkRead(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to mark as read: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Marked call %s as read", s.msgSvc.CurrentCallID())), nil
}

func (s *Server) handleUnread(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	callID := s.msgSvc.CurrentCallID()
	if callID == "" {
		return mcp.NewToolResultText("Not in a call"), nil
	}

	state := s.msgSvc.Unread()
	if !state.HasUnread {
		return mcp.NewToolResultText(fmt.Sprintf("No unread messages in call %s", callID)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Unread: %d message(s) in call %s\nBadge: %s",
		state.UnreadCount, callID, s.msgSvc.Badge())), nil
}

func (s *Server) handleCallStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	callID := s.msgSvc.CurrentCallID()
	if callID == "" {
		return mcp.NewToolResultText("Call Status: Not in a call"), nil
	}

	muted := false
	if s.caller != nil {
		muted = s.caller.Muted()
	}
	return mcp.NewToolResultText(fmt.Sprintf("Call Status: Joined\nCall: %s\nMuted: %v\nUnread: %d",
		callID, muted, s.msgSvc.Unread().UnreadCount)), nil
}

func (s *Server) handleJoin(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	callID := request.GetString("call_id", "")
	if callID == "" {
		return mcp.NewToolResultError("call_id is required"), nil
	}
	if s.caller == nil {
		return mcp.NewToolResultError("Call control is not available"), nil
	}

	if err := s.caller.Join(ctx, callID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to join call: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Joined call %s", callID)), nil
}

func (s *Server) handleLeave(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.caller == nil {
		return mcp.NewToolResultError("Call control is not available"), nil
	}
	callID := s.msgSvc.CurrentCallID()
	if err := s.caller.Leave(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to leave call: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Left call %s", callID)), nil
}

func (s *Server) handleSetMuted(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.caller == nil {
		return mcp.NewToolResultError("Call control is not available"), nil
	}
	muted := request.GetBool("muted", false)
	if err := s.caller.SetMuted(ctx, muted); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to change microphone: %v", err)), nil
	}
	if muted {
		return mcp.NewToolResultText("Microphone muted"), nil
	}
	return mcp.NewToolResultText("Microphone unmuted"), nil
}

func (s *Server) localUserID() string {
	return s.msgSvc.LocalUser().ID
}
