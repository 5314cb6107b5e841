package pip

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/clippy-oss/homie/callchat/internal/domain"
	"github.com/clippy-oss/homie/callchat/internal/logger"
)

type State string

const (
	StateUnsupported State = "unsupported"
	StateClosed      State = "closed"
	StateOpen        State = "open"
)

// Surface names where the user is currently looking at the call.
type Surface string

const (
	SurfacePrimary   Surface = "primary"
	SurfaceSecondary Surface = "secondary"
)

// ControlAction is a call control invoked from the secondary surface.
type ControlAction string

const (
	ActionLeave      ControlAction = "leave"
	ActionToggleMute ControlAction = "toggle_mute"
	ActionMute       ControlAction = "mute"
	ActionUnmute     ControlAction = "unmute"
)

var (
	// ErrUnsupported is returned by a Host that cannot open windows at all.
	ErrUnsupported = errors.New("secondary surface not supported")
	// ErrDenied is returned when an open request is refused or times out.
	ErrDenied = errors.New("secondary surface request denied")
)

// Host creates secondary windows.
type Host interface {
	Supported() bool
	RequestWindow(ctx context.Context) (Window, error)
}

// Window is one open secondary surface. Unloaded is closed when the window
// goes away for any reason, including Close.
type Window interface {
	ID() string
	AdoptStylesheets(refs []string) error
	Actions() <-chan ControlAction
	Unloaded() <-chan struct{}
	Close() error
}

// StyleSource lists the stylesheets active on the primary surface.
type StyleSource interface {
	Stylesheets() []string
}

type StyleList []string

func (l StyleList) Stylesheets() []string { return l }

// Handle describes the secondary surface.
type Handle struct {
	WindowRef   string
	IsSupported bool
	IsOpen      bool
}

// Manager owns the single secondary surface. Open failures are normal
// outcomes reported through State, never errors.
type Manager struct {
	host     Host
	styles   StyleSource
	controls domain.CallControls
	bus      domain.EventBus
	log      zerolog.Logger

	mu      sync.Mutex
	state   State
	window  Window
	opening bool
	gen     int
}

func NewManager(host Host, styles StyleSource, controls domain.CallControls, bus domain.EventBus) *Manager {
	state := StateClosed
	if host == nil || !host.Supported() {
		state = StateUnsupported
	}
	return &Manager{
		host:     host,
		styles:   styles,
		controls: controls,
		bus:      bus,
		log:      logger.Module("pip"),
		state:    state,
	}
}

// RequestOpen asks the host for a window and blocks until it is granted,
// refused or ctx ends. It is a no-op unless the surface is closed.
func (m *Manager) RequestOpen(ctx context.Context) State {
	m.mu.Lock()
	if m.state != StateClosed || m.opening {
		state := m.state
		m.mu.Unlock()
		return state
	}
	m.opening = true
	gen := m.gen
	m.mu.Unlock()

	win, err := m.host.RequestWindow(ctx)

	m.mu.Lock()
	m.opening = false
	if err != nil {
		if errors.Is(err, ErrUnsupported) {
			m.state = StateUnsupported
		}
		state := m.state
		m.mu.Unlock()
		m.log.Info().Err(err).Str("state", string(state)).Msg("Secondary surface not opened")
		m.publish(state)
		return state
	}
	if gen != m.gen {
		// closed or torn down while the request was pending
		m.mu.Unlock()
		_ = win.Close()
		return m.State()
	}
	m.window = win
	m.state = StateOpen
	m.gen++
	gen = m.gen
	m.mu.Unlock()

	var refs []string
	if m.styles != nil {
		refs = m.styles.Stylesheets()
	}
	if err := win.AdoptStylesheets(refs); err != nil {
		m.log.Warn().Err(err).Str("window", win.ID()).Msg("Failed to copy stylesheets")
	}

	m.log.Info().Str("window", win.ID()).Int("stylesheets", len(refs)).Msg("Secondary surface opened")
	m.publish(StateOpen)
	go m.watch(win, gen)
	return StateOpen
}

// Close releases the open window, if any, and abandons a pending open.
func (m *Manager) Close() {
	m.mu.Lock()
	m.gen++
	m.release()
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Handle() Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := Handle{
		IsSupported: m.state != StateUnsupported,
		IsOpen:      m.state == StateOpen,
	}
	if m.window != nil {
		h.WindowRef = m.window.ID()
	}
	return h
}

// PresentingSurface reports which surface currently carries the call controls.
func (m *Manager) PresentingSurface() Surface {
	if m.State() == StateOpen {
		return SurfaceSecondary
	}
	return SurfacePrimary
}

// Controls are the call controls shared by both surfaces.
func (m *Manager) Controls() domain.CallControls {
	return m.controls
}

// release closes the current window. Caller holds mu; release unlocks it.
func (m *Manager) release() {
	win := m.window
	wasOpen := m.state == StateOpen
	m.window = nil
	if m.state == StateOpen {
		m.state = StateClosed
	}
	m.mu.Unlock()

	if win != nil {
		if err := win.Close(); err != nil {
			m.log.Debug().Err(err).Str("window", win.ID()).Msg("Window close")
		}
	}
	if wasOpen {
		m.log.Info().Msg("Secondary surface closed")
		m.publish(StateClosed)
	}
}

func (m *Manager) watch(win Window, gen int) {
	actions := win.Actions()
	for {
		select {
		case <-win.Unloaded():
			m.mu.Lock()
			if gen != m.gen {
				m.mu.Unlock()
				return
			}
			m.gen++
			m.release()
			return
		case action, ok := <-actions:
			if !ok {
				actions = nil
				continue
			}
			m.dispatch(action)
		}
	}
}

func (m *Manager) dispatch(action ControlAction) {
	if m.controls == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	switch action {
	case ActionLeave:
		err = m.controls.Leave(ctx)
	case ActionToggleMute:
		err = m.controls.SetMuted(ctx, !m.controls.Muted())
	case ActionMute:
		err = m.controls.SetMuted(ctx, true)
	case ActionUnmute:
		err = m.controls.SetMuted(ctx, false)
	default:
		m.log.Debug().Str("action", string(action)).Msg("Unknown control action")
		return
	}
	if err != nil {
		m.log.Warn().Err(err).Str("action", string(action)).Msg("Call control failed")
	}
}

func (m *Manager) publish(state State) {
	if m.bus != nil {
		m.bus.Publish(domain.PiPStateEvent{State: string(state), EventTime: time.Now()})
	}
}
