package webhost

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/require"

	"github.com/clippy-oss/homie/callchat/internal/pip"
)

func startHost(t *testing.T) *Host {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	h := New(ln.Addr().String())
	go func() { _ = h.Serve(ln) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = h.Shutdown(ctx)
	})
	return h
}

func dial(t *testing.T, h *Host) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws://"+h.addr+"/pip/ws", nil)
	require.NoError(t, err)
	return conn
}

func TestHost_ServesPage(t *testing.T) {
	req := require.New(t)
	h := New("127.0.0.1:0")

	resp, err := h.app.Test(mustRequest(t, "/pip"))
	req.NoError(err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	req.NoError(err)

	req.Equal(http.StatusOK, resp.StatusCode)
	req.Contains(string(body), "/pip/ws")
}

func TestHost_RequestTimesOutAsDenial(t *testing.T) {
	h := New("127.0.0.1:0")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	w, err := h.RequestWindow(ctx)
	require.ErrorIs(t, err, pip.ErrDenied)
	require.Nil(t, w)
}

func TestHost_HandOffRacingWithdrawal(t *testing.T) {
	req := require.New(t)
	h := New("127.0.0.1:0")

	req.False(h.handOff(newWindow(nil)))

	for i := 0; i < 50; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		type result struct {
			win pip.Window
			err error
		}
		done := make(chan result, 1)
		go func() {
			win, err := h.RequestWindow(ctx)
			done <- result{win, err}
		}()
		req.Eventually(func() bool {
			h.mu.Lock()
			defer h.mu.Unlock()
			return h.waiting != nil
		}, time.Second, time.Millisecond)

		w := newWindow(nil)
		req.True(h.handOff(w))
		cancel()

		res := <-done
		req.NoError(res.err)
		req.Same(w, res.win)
	}
}

func TestHost_UnsolicitedPageIsRejected(t *testing.T) {
	req := require.New(t)
	h := startHost(t)

	conn := dial(t, h)
	defer conn.CloseNow()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var msg Message
	req.NoError(wsjson.Read(ctx, conn, &msg))
	req.Equal(MessageRejected, msg.Type)
}

func TestHost_WindowLifecycle(t *testing.T) {
	req := require.New(t)
	h := startHost(t)

	granted := make(chan pip.Window, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		w, err := h.RequestWindow(ctx)
		if err == nil {
			granted <- w
		}
	}()

	// wait for the request to be pending
	req.Eventually(func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.waiting != nil
	}, 2*time.Second, 5*time.Millisecond)

	conn := dial(t, h)
	defer conn.CloseNow()

	var w pip.Window
	select {
	case w = <-granted:
	case <-time.After(2 * time.Second):
		t.Fatal("window not granted")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req.NoError(w.AdoptStylesheets([]string{"https://cdn.test/app.css"}))
	var msg Message
	req.NoError(wsjson.Read(ctx, conn, &msg))
	req.Equal(MessageStylesheets, msg.Type)
	req.Equal([]string{"https://cdn.test/app.css"}, msg.Hrefs)

	req.NoError(wsjson.Write(ctx, conn, Message{Type: MessageControl, Action: string(pip.ActionLeave)}))
	select {
	case action := <-w.Actions():
		req.Equal(pip.ActionLeave, action)
	case <-time.After(2 * time.Second):
		t.Fatal("control action not forwarded")
	}

	// the page going away is the unload signal
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	select {
	case <-w.Unloaded():
	case <-time.After(2 * time.Second):
		t.Fatal("unload not observed")
	}
}

func mustRequest(t *testing.T, path string) *http.Request {
	t.Helper()
	r, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)
	return r
}
