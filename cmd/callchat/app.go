package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/clippy-oss/homie/callchat/internal/chat"
	"github.com/clippy-oss/homie/callchat/internal/cli"
	"github.com/clippy-oss/homie/callchat/internal/config"
	"github.com/clippy-oss/homie/callchat/internal/domain"
	"github.com/clippy-oss/homie/callchat/internal/ingest"
	"github.com/clippy-oss/homie/callchat/internal/logger"
	"github.com/clippy-oss/homie/callchat/internal/notify"
	"github.com/clippy-oss/homie/callchat/internal/pip"
	"github.com/clippy-oss/homie/callchat/internal/pip/webhost"
	"github.com/clippy-oss/homie/callchat/internal/repository"
	"github.com/clippy-oss/homie/callchat/internal/service"
	"github.com/clippy-oss/homie/callchat/internal/store"
	"github.com/clippy-oss/homie/callchat/internal/transport/relay"
)

// app holds the wired chat layer of one client process.
type app struct {
	cfg *config.Config
	log zerolog.Logger

	closeStorage func() error

	bus       *domain.SimpleEventBus
	transport *relay.Transport
	store     *store.Store
	tracker   *notify.Tracker
	surface   *chat.Surface
	pipHost   *webhost.Host
	pip       *pip.Manager
	callSvc   *service.CallService
	msgSvc    *service.MessageService
	handler   *cli.CommandHandler

	cancel  context.CancelFunc
	stopped sync.WaitGroup
}

func openRepository(cfg *config.Config) (repository.ConversationRepository, func() error, error) {
	switch cfg.Storage {
	case config.StorageBadger:
		db, err := repository.OpenBadger(cfg.BadgerPath)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewBadgerConversationRepository(db), db.Close, nil
	case config.StorageMemory:
		return repository.NewMemoryConversationRepository(), func() error { return nil }, nil
	default:
		db, err := repository.OpenDatabase(cfg.DatabasePath)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get database handle: %w", err)
		}
		return repository.NewConversationRepository(db), sqlDB.Close, nil
	}
}

// localUser builds the participant identity. cfg.UserID is either configured
// or the id kept in the data directory.
func localUser(cfg *config.Config) domain.LocalUser {
	return domain.LocalUser{
		ID:       cfg.UserID,
		Name:     cfg.UserName,
		Username: os.Getenv("USER"),
		ImageRef: cfg.UserImage,
	}
}

func newApp(cfg *config.Config) (*app, error) {
	repo, closeStorage, err := openRepository(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	user := localUser(cfg)
	a := &app{
		cfg:          cfg,
		log:          logger.Module("app"),
		closeStorage: closeStorage,
		bus:          domain.NewEventBus(),
	}

	a.transport = relay.New(cfg.RelayURL, user)
	a.store = store.New(repo, a.bus)
	a.tracker = notify.NewTracker(a.store, a.bus, cfg.BadgeCap)
	a.surface = chat.NewSurface(a.store, a.transport, a.tracker, a.bus, user)
	ingestor := ingest.New(a.store, a.tracker, user.ID)

	var host pip.Host
	pipURL := ""
	if cfg.PiPEnabled {
		a.pipHost = webhost.New(cfg.PiPAddress)
		host = a.pipHost
		pipURL = a.pipHost.URL()
	}
	a.pip = pip.NewManager(host, pip.StyleList(cfg.Stylesheets()), a.transport, a.bus)

	a.callSvc = service.NewCallService(
		a.transport,
		a.store,
		a.tracker,
		ingestor,
		a.pip,
		a.bus,
		service.CallServiceConfig{HeartbeatInterval: cfg.HeartbeatInterval},
	)
	a.msgSvc = service.NewMessageService(a.store, a.surface, a.tracker, a.transport)
	a.handler = cli.NewCommandHandler(a.msgSvc, a.transport, a.surface, a.pip, a.bus, cli.HandlerConfig{
		PiPURL:     pipURL,
		PiPTimeout: cfg.PiPOpenTimeout,
	})

	return a, nil
}

// start runs the lifecycle coordinator and the PiP host, then joins the
// configured call, if any.
func (a *app) start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.stopped.Add(1)
	go func() {
		defer a.stopped.Done()
		if err := a.callSvc.Run(runCtx); err != nil && runCtx.Err() == nil {
			a.log.Error().Err(err).Msg("Call service stopped")
		}
	}()

	if a.pipHost != nil {
		go func() {
			if err := a.pipHost.Start(); err != nil {
				a.log.Warn().Err(err).Str("address", a.cfg.PiPAddress).Msg("PiP host stopped")
			}
		}()
	}

	if a.cfg.CallID != "" {
		joinCtx, joinCancel := context.WithTimeout(ctx, 10*time.Second)
		defer joinCancel()
		if err := a.transport.Join(joinCtx, a.cfg.CallID); err != nil {
			a.log.Warn().Err(err).Str("call_id", a.cfg.CallID).Msg("Auto-join failed")
		}
	}
}

// shutdown stops the coordinator before disconnecting, so quitting keeps
// the stored conversation for the next start. Only an explicit leave purges.
func (a *app) shutdown() {
	if a.cancel != nil {
		a.cancel()
	}
	a.stopped.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.transport.CurrentCallID() != "" {
		if err := a.transport.Leave(ctx); err != nil {
			a.log.Debug().Err(err).Msg("Disconnect failed")
		}
	}
	a.pip.Close()
	if a.pipHost != nil {
		if err := a.pipHost.Shutdown(ctx); err != nil {
			a.log.Debug().Err(err).Msg("PiP host shutdown failed")
		}
	}
	if err := a.closeStorage(); err != nil {
		a.log.Warn().Err(err).Msg("Failed to close storage")
	}
}
