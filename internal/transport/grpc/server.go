package grpc

import (
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/clippy-oss/homie/callchat/internal/domain"
	"github.com/clippy-oss/homie/callchat/internal/service"
)

type ServerConfig struct {
	Address string
}

type Server struct {
	server  *grpc.Server
	handler *Handler
	config  ServerConfig
}

func NewServer(
	msgSvc *service.MessageService,
	caller service.Caller,
	bus domain.EventBus,
	config ServerConfig,
) *Server {
	handler := NewHandler(msgSvc, caller, bus)

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			LoggingInterceptor(),
			RecoveryInterceptor(),
		),
		grpc.ChainStreamInterceptor(
			StreamLoggingInterceptor(),
			StreamRecoveryInterceptor(),
		),
	)

	RegisterConversationServiceServer(server, handler)
	reflection.Register(server)

	return &Server{
		server:  server,
		handler: handler,
		config:  config,
	}
}

func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return err
	}

	return s.Serve(lis)
}

// Serve runs the server on an existing listener.
func (s *Server) Serve(lis net.Listener) error {
	return s.server.Serve(lis)
}

func (s *Server) Stop() {
	s.server.GracefulStop()
}
