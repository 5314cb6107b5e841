package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/clippy-oss/homie/callchat/internal/cli"
	"github.com/clippy-oss/homie/callchat/internal/config"
	"github.com/clippy-oss/homie/callchat/internal/logger"
	grpcTransport "github.com/clippy-oss/homie/callchat/internal/transport/grpc"
	mcpTransport "github.com/clippy-oss/homie/callchat/internal/transport/mcp"
	"github.com/clippy-oss/homie/callchat/internal/ui"
)

// overrides are command-line values taking precedence over the environment.
type overrides struct {
	callID    string
	userID    string
	userName  string
	userImage string
	relayURL  string
	storage   string
}

func main() {
	var flags overrides

	rootCmd := &cobra.Command{
		Use:          "callchat",
		Short:        "In-call chat for the relay call transport",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd.Context(), flags, cli.ModeTUI)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.callID, "call", "c", "", "call to join on start")
	pf.StringVar(&flags.userID, "user-id", "", "local participant id (random when empty)")
	pf.StringVarP(&flags.userName, "name", "n", "", "display name")
	pf.StringVar(&flags.userImage, "image", "", "avatar reference")
	pf.StringVar(&flags.relayURL, "relay", "", "relay websocket URL")
	pf.StringVar(&flags.storage, "storage", "", "storage backend: sqlite, badger or memory")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "tui",
			Short: "Full screen chat (default)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runClient(cmd.Context(), flags, cli.ModeTUI)
			},
		},
		&cobra.Command{
			Use:   "interactive",
			Short: "Line oriented chat shell",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runClient(cmd.Context(), flags, cli.ModeInteractive)
			},
		},
		&cobra.Command{
			Use:   "headless",
			Short: "JSON lines on stdin/stdout for subprocess integration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runClient(cmd.Context(), flags, cli.ModeHeadless)
			},
		},
		&cobra.Command{
			Use:   "serve",
			Short: "Expose the chat over gRPC and MCP",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context(), flags)
			},
		},
		newHistoryCmd(&flags),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(flags overrides) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flags.callID != "" {
		cfg.CallID = flags.callID
	}
	if flags.userID != "" {
		cfg.UserID = flags.userID
	}
	if flags.userName != "" {
		cfg.UserName = flags.userName
	}
	if flags.userImage != "" {
		cfg.UserImage = flags.userImage
	}
	if flags.relayURL != "" {
		cfg.RelayURL = flags.relayURL
	}
	if flags.storage != "" {
		cfg.Storage = flags.storage
	}
	return cfg, cfg.Validate()
}

// initLogger sends logs to a file in the full screen UI, to stderr in
// headless mode (stdout carries the protocol) and to stdout otherwise.
func initLogger(cfg *config.Config, mode cli.Mode) (io.Closer, error) {
	switch mode {
	case cli.ModeTUI, cli.ModeInteractive:
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logger.Init(cfg.LogLevel, f)
		return f, nil
	case cli.ModeHeadless:
		logger.Init(cfg.LogLevel, os.Stderr)
	default:
		logger.Init(cfg.LogLevel, os.Stdout)
	}
	return io.NopCloser(nil), nil
}

func runClient(ctx context.Context, flags overrides, mode cli.Mode) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	closer, err := initLogger(cfg, mode)
	if err != nil {
		return err
	}
	defer closer.Close()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	a.start(ctx)
	defer a.shutdown()

	switch mode {
	case cli.ModeHeadless:
		err = cli.NewHeadlessCLI(a.handler).Run(ctx)
	case cli.ModeInteractive:
		err = cli.NewInteractiveCLI(a.handler).Run(ctx)
	default:
		err = ui.Run(ctx, ui.Config{
			Handler:  a.handler,
			Messages: a.msgSvc,
			Surface:  a.surface,
			PiP:      a.pip,
			Caller:   a.transport,
			Presence: a.transport,
			Bus:      a.bus,
		})
	}
	if err == context.Canceled {
		return nil
	}
	return err
}

func runServe(ctx context.Context, flags overrides) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	logger.Init(cfg.LogLevel, os.Stdout)
	log := logger.Module("main")

	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	log.Info().
		Str("storage", cfg.Storage).
		Str("relay", cfg.RelayURL).
		Str("grpc", cfg.GRPCAddress).
		Str("mcp", cfg.MCPAddress).
		Msg("Call chat starting")

	grpcServer := grpcTransport.NewServer(a.msgSvc, a.transport, a.bus, grpcTransport.ServerConfig{
		Address: cfg.GRPCAddress,
	})
	mcpServer := mcpTransport.NewServer(a.msgSvc, a.transport, mcpTransport.ServerConfig{
		Address: cfg.MCPAddress,
	})

	errCh := make(chan error, 2)
	go func() {
		log.Info().Str("address", cfg.GRPCAddress).Msg("Starting gRPC server")
		if err := grpcServer.Start(); err != nil {
			errCh <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()
	go func() {
		log.Info().Str("address", cfg.MCPAddress).Msg("Starting MCP SSE server")
		if err := mcpServer.Start(); err != nil {
			errCh <- fmt.Errorf("MCP server error: %w", err)
		}
	}()

	a.start(ctx)

	// Print ready message for subprocess coordination
	fmt.Println("ready")

	select {
	case err = <-errCh:
		log.Error().Err(err).Msg("Server error")
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
	}

	grpcServer.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if stopErr := mcpServer.Stop(shutdownCtx); stopErr != nil {
		log.Warn().Err(stopErr).Msg("MCP server stop error")
	}
	a.shutdown()

	log.Info().Msg("Shutdown complete")
	return err
}
