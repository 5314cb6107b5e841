package mcp

import (
	"context"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/clippy-oss/homie/callchat/internal/service"
)

type ServerConfig struct {
	Address string
}

type Server struct {
	mcpServer  *server.MCPServer
	sseServer  *server.SSEServer
	httpServer *http.Server
	msgSvc     *service.MessageService
	caller     service.Caller
	config     ServerConfig
}

func NewServer(
	msgSvc *service.MessageService,
	caller service.Caller,
	config ServerConfig,
) *Server {
	s := &Server{
		msgSvc: msgSvc,
		caller: caller,
		config: config,
	}

	s.mcpServer = server.NewMCPServer(
		"callchat",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.registerTools()

	s.sseServer = server.NewSSEServer(s.mcpServer,
		server.WithKeepAliveInterval(30*time.Second),
	)

	return s
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("callchat_get_conversation",
			mcp.WithDescription("Get the chat messages of the current call, or the stored history of another call"),
			mcp.WithString("call_id",
				mcp.Description("Call to read (defaults to the current call)"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of most recent messages to return (default 50, max 200)"),
			),
		),
		s.handleGetConversation,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("callchat_send_message",
			mcp.WithDescription("Send a chat message to everyone in the current call"),
			mcp.WithString("text",
				mcp.Required(),
				mcp.Description("Message text, at most 500 characters"),
			),
		),
		s.handleSendMessage,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("callchat_mark_read",
			mcp.WithDescription("Mark every message of the current call as read"),
		),
		s.handleMarkRead,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("callchat_unread",
			mcp.WithDescription("Get the unread message count of the current call"),
		),
		s.handleUnread,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("callchat_call_status",
			mcp.WithDescription("Get the current call and microphone status"),
		),
		s.handleCallStatus,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("callchat_join",
			mcp.WithDescription("Join a call"),
			mcp.WithString("call_id",
				mcp.Required(),
				mcp.Description("Identifier of the call to join"),
			),
		),
		s.handleJoin,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("callchat_leave",
			mcp.WithDescription("Leave the current call. Its chat history is discarded."),
		),
		s.handleLeave,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("callchat_set_muted",
			mcp.WithDescription("Mute or unmute the microphone"),
			mcp.WithBoolean("muted",
				mcp.Required(),
				mcp.Description("true to mute, false to unmute"),
			),
		),
		s.handleSetMuted,
	)
}

func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.Handle("/sse", s.sseServer.SSEHandler())
	mux.Handle("/message", s.sseServer.MessageHandler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	s.httpServer = &http.Server{
		Addr:    s.config.Address,
		Handler: mux,
	}

	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
