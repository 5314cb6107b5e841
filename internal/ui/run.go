package ui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/clippy-oss/homie/callchat/internal/domain"
)

// Run shows the full screen call chat until the user quits or ctx ends.
func Run(ctx context.Context, cfg Config) error {
	inbound, stop := forwardEvents(cfg.Bus)
	defer stop()

	p := tea.NewProgram(newModel(ctx, cfg, inbound),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// forwardEvents bridges bus events into the program's message stream.
func forwardEvents(bus domain.EventBus) (chan tea.Msg, func()) {
	events := bus.Subscribe([]domain.EventType{
		domain.EventTypeMessageAppended,
		domain.EventTypeSendFailed,
		domain.EventTypeUnreadChanged,
		domain.EventTypeConversationLoaded,
		domain.EventTypeCallState,
		domain.EventTypePiPState,
	})
	inbound := make(chan tea.Msg, 256)
	done := make(chan struct{})

	go func() {
		defer close(inbound)
		for evt := range events {
			select {
			case inbound <- busEventMsg{event: evt}:
			case <-done:
				return
			}
		}
	}()

	return inbound, func() {
		close(done)
		bus.Unsubscribe(events)
	}
}
