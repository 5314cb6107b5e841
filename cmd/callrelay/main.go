package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/clippy-oss/homie/callchat/internal/config"
	"github.com/clippy-oss/homie/callchat/internal/logger"
	"github.com/clippy-oss/homie/callchat/internal/relay"
)

func main() {
	var listen string

	rootCmd := &cobra.Command{
		Use:          "callrelay",
		Short:        "Relay that fans call events out to every participant",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.RelayListen = listen
			}
			logger.Init(cfg.LogLevel, os.Stdout)
			return run(cmd.Context(), cfg.RelayListen)
		},
	}
	rootCmd.Flags().StringVarP(&listen, "listen", "l", "", "address to listen on")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, addr string) error {
	log := logger.Module("relay")
	hub := relay.NewHub()

	mux := http.NewServeMux()
	mux.Handle("/", hub)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", addr).Msg("Relay listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var err error
	select {
	case err = <-errCh:
		log.Error().Err(err).Msg("Relay server error")
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
	}

	// hijacked websocket connections are not tracked by Shutdown
	hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if stopErr := server.Shutdown(shutdownCtx); stopErr != nil {
		log.Warn().Err(stopErr).Msg("Relay shutdown error")
	}
	return err
}
