package webhost

import (
	"context"
	"encoding/json"
	"net"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clippy-oss/homie/callchat/internal/logger"
	"github.com/clippy-oss/homie/callchat/internal/pip"
)

// Message is the JSON frame exchanged with the browser mini-window.
type Message struct {
	Type   string   `json:"type"`
	Hrefs  []string `json:"hrefs,omitempty"`
	Action string   `json:"action,omitempty"`
}

const (
	MessageStylesheets = "stylesheets"
	MessageControl     = "control"
	MessageClose       = "close"
	MessageRejected    = "rejected"
)

// Host serves a browser page that acts as the secondary surface. A window
// is granted when the page connects while an open request is pending.
type Host struct {
	app  *fiber.App
	addr string
	log  zerolog.Logger

	mu      sync.Mutex
	waiting chan *window
}

func New(addr string) *Host {
	h := &Host{
		addr: addr,
		log:  logger.Module("pip-host"),
	}
	h.app = fiber.New(fiber.Config{DisableStartupMessage: true})
	h.app.Get("/pip", h.handlePage)
	h.app.Use("/pip/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	h.app.Get("/pip/ws", websocket.New(h.serveWindow))
	return h
}

func (h *Host) Supported() bool { return true }

// URL is the page the user opens to accept a pending request.
func (h *Host) URL() string {
	return "http://" + h.addr + "/pip"
}

func (h *Host) Start() error {
	h.log.Info().Str("address", h.addr).Msg("Starting secondary surface host")
	return h.app.Listen(h.addr)
}

// Serve runs the host on an existing listener.
func (h *Host) Serve(ln net.Listener) error {
	return h.app.Listener(ln)
}

func (h *Host) Shutdown(ctx context.Context) error {
	return h.app.ShutdownWithContext(ctx)
}

// RequestWindow waits for the page to connect. Only one request may be
// pending; ctx ending counts as a denial.
func (h *Host) RequestWindow(ctx context.Context) (pip.Window, error) {
	h.mu.Lock()
	if h.waiting != nil {
		h.mu.Unlock()
		return nil, pip.ErrDenied
	}
	ch := make(chan *window, 1)
	h.waiting = ch
	h.mu.Unlock()

	h.log.Info().Str("url", h.URL()).Msg("Waiting for mini-window")

	select {
	case w := <-ch:
		return w, nil
	case <-ctx.Done():
		h.mu.Lock()
		abandoned := h.waiting == ch
		if abandoned {
			h.waiting = nil
		}
		h.mu.Unlock()
		if abandoned {
			return nil, pip.ErrDenied
		}
		// The page connected before the request was withdrawn.
		return <-ch, nil
	}
}

// handOff gives w to the pending request, if any. The window is queued
// under the lock, so a request that is withdrawn afterwards still sees it.
func (h *Host) handOff(w *window) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.waiting == nil {
		return false
	}
	h.waiting <- w
	h.waiting = nil
	return true
}

func (h *Host) handlePage(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(pageHTML)
}

func (h *Host) serveWindow(c *websocket.Conn) {
	w := newWindow(c)
	if !h.handOff(w) {
		data, _ := json.Marshal(Message{Type: MessageRejected})
		_ = c.WriteMessage(websocket.TextMessage, data)
		_ = c.Close()
		return
	}
	h.log.Info().Str("window", w.id).Msg("Mini-window connected")

	go w.writePump()
	w.readPump()
	h.log.Info().Str("window", w.id).Msg("Mini-window unloaded")
}

// window is one connected page. All writes go through writePump.
type window struct {
	id       string
	conn     *websocket.Conn
	send     chan []byte
	actions  chan pip.ControlAction
	unloaded chan struct{}

	mu         sync.Mutex
	closed     bool
	unloadOnce sync.Once
}

func newWindow(conn *websocket.Conn) *window {
	return &window{
		id:       uuid.NewString(),
		conn:     conn,
		send:     make(chan []byte, 16),
		actions:  make(chan pip.ControlAction, 16),
		unloaded: make(chan struct{}),
	}
}

func (w *window) ID() string                        { return w.id }
func (w *window) Actions() <-chan pip.ControlAction { return w.actions }
func (w *window) Unloaded() <-chan struct{}         { return w.unloaded }

func (w *window) AdoptStylesheets(refs []string) error {
	return w.enqueue(Message{Type: MessageStylesheets, Hrefs: refs})
}

// Close asks the page to close itself and ends the connection.
func (w *window) Close() error {
	data, err := json.Marshal(Message{Type: MessageClose})
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	select {
	case w.send <- data:
	default:
	}
	close(w.send)
	return nil
}

func (w *window) enqueue(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return net.ErrClosed
	}
	select {
	case w.send <- data:
	default:
		// slow page, drop
	}
	return nil
}

func (w *window) writePump() {
	for data := range w.send {
		if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			break
		}
	}
	_ = w.conn.Close()
}

func (w *window) readPump() {
	defer w.markUnloaded()
	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != MessageControl {
			continue
		}
		select {
		case w.actions <- pip.ControlAction(msg.Action):
		default:
		}
	}
}

func (w *window) markUnloaded() {
	w.unloadOnce.Do(func() {
		close(w.unloaded)
		_ = w.Close()
	})
}
