package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/clippy-oss/homie/callchat/internal/chat"
	"github.com/clippy-oss/homie/callchat/internal/domain"
	"github.com/clippy-oss/homie/callchat/internal/mocks"
	"github.com/clippy-oss/homie/callchat/internal/notify"
	"github.com/clippy-oss/homie/callchat/internal/pip"
	"github.com/clippy-oss/homie/callchat/internal/repository"
	"github.com/clippy-oss/homie/callchat/internal/service"
	"github.com/clippy-oss/homie/callchat/internal/store"
)

type fakeCaller struct {
	mu     sync.Mutex
	joined string
	muted  bool
}

func (f *fakeCaller) Join(_ context.Context, callID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joined = callID
	return nil
}

func (f *fakeCaller) Leave(context.Context) error { return nil }

func (f *fakeCaller) SetMuted(_ context.Context, muted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.muted = muted
	return nil
}

func (f *fakeCaller) Muted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.muted
}

type fakePiP struct {
	state  pip.State
	grant  bool
	opens  int
	closes int
}

func (f *fakePiP) RequestOpen(context.Context) pip.State {
	f.opens++
	if f.grant {
		f.state = pip.StateOpen
	}
	return f.state
}

func (f *fakePiP) Close() {
	f.closes++
	f.state = pip.StateClosed
}

func (f *fakePiP) State() pip.State { return f.state }

func (f *fakePiP) PresentingSurface() pip.Surface {
	if f.state == pip.StateOpen {
		return pip.SurfaceSecondary
	}
	return pip.SurfacePrimary
}

type fixture struct {
	handler *CommandHandler
	tracker *notify.Tracker
	surface *chat.Surface
	caller  *fakeCaller
	pip     *fakePiP
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockCallTransport(ctrl)
	transport.EXPECT().CurrentCallID().Return("c1").AnyTimes()
	transport.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	ctx := context.Background()
	bus := domain.NewEventBus()
	st := store.New(repository.NewMemoryConversationRepository(), bus)
	st.Load(ctx, "c1")
	tracker := notify.NewTracker(st, bus, notify.DefaultBadgeCap)
	tracker.Reset(ctx, "c1", 0)
	surface := chat.NewSurface(st, transport, tracker, bus, domain.LocalUser{ID: "me", Name: "Me"})
	msgSvc := service.NewMessageService(st, surface, tracker, transport)

	f := &fixture{
		tracker: tracker,
		surface: surface,
		caller:  &fakeCaller{},
		pip:     &fakePiP{state: pip.StateClosed, grant: true},
	}
	f.handler = NewCommandHandler(msgSvc, f.caller, surface, f.pip, bus, HandlerConfig{PiPURL: "http://localhost/pip"})
	return f
}

func TestParseCommand(t *testing.T) {
	t.Run("name and args", func(t *testing.T) {
		req := require.New(t)
		cmd, err := ParseCommand("  /send hello   world ")
		req.NoError(err)
		req.Equal("send", cmd.Name)
		req.Equal([]string{"hello", "world"}, cmd.Args)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ParseCommand("   ")
		require.Error(t, err)
	})

	t.Run("missing slash", func(t *testing.T) {
		_, err := ParseCommand("send hi")
		require.Error(t, err)
	})
}

func TestCommandHandler_SendAndMessages(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.handler.Execute(ctx, &Command{Name: "send", Args: []string{"hello", "all"}})
	req.NoError(err)
	sent, ok := result.(MessageInfo)
	req.True(ok)
	req.Equal("hello all", sent.Body)
	req.True(sent.IsFromMe)
	req.Equal("c1", sent.CallID)

	result, err = f.handler.Execute(ctx, &Command{Name: "msg"})
	req.NoError(err)
	m := result.(map[string]interface{})
	req.Equal(1, m["count"])
	req.Equal(sent.ID, m["messages"].([]MessageInfo)[0].ID)

	_, err = f.handler.Execute(ctx, &Command{Name: "send"})
	req.Error(err)
}

func TestCommandHandler_MessagesLimit(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three"} {
		_, err := f.handler.Execute(ctx, &Command{Name: "send", Args: []string{text}})
		req.NoError(err)
	}

	result, err := f.handler.Execute(ctx, &Command{Name: "messages", Args: []string{"-", "2"}})
	req.NoError(err)
	messages := result.(map[string]interface{})["messages"].([]MessageInfo)
	req.Len(messages, 2)
	req.Equal("two", messages[0].Body)
	req.Equal("three", messages[1].Body)

	_, err = f.handler.Execute(ctx, &Command{Name: "messages", Args: []string{"-", "many"}})
	req.ErrorContains(err, "invalid limit")
}

func TestCommandHandler_MessagesNumericCallID(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.handler.Execute(ctx, &Command{Name: "send", Args: []string{"current call"}})
	req.NoError(err)

	result, err := f.handler.Execute(ctx, &Command{Name: "messages", Args: []string{"12345"}})
	req.NoError(err)
	data := result.(map[string]interface{})
	req.Equal("12345", data["call_id"])
	req.Equal(0, data["count"])

	cmd, err := ParseCommand("/messages 12345 5")
	req.NoError(err)
	result, err = f.handler.Execute(ctx, cmd)
	req.NoError(err)
	req.Equal("12345", result.(map[string]interface{})["call_id"])
}

func TestCommandHandler_UnreadAndRead(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	f.tracker.MessageArrived(ctx, true)
	result, err := f.handler.Execute(ctx, &Command{Name: "unread"})
	req.NoError(err)
	req.Equal(UnreadInfo{CallID: "c1", UnreadCount: 1, HasUnread: true, Badge: "1"}, result)

	_, err = f.handler.Execute(ctx, &Command{Name: "read"})
	req.NoError(err)
	req.Equal(0, f.tracker.State().UnreadCount)
}

func TestCommandHandler_PanelVisibility(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	f.tracker.MessageArrived(ctx, true)
	_, err := f.handler.Execute(ctx, &Command{Name: "open"})
	req.NoError(err)
	req.True(f.surface.IsOpen())
	req.Equal(0, f.tracker.State().UnreadCount)

	status := f.handler.cmdStatus()
	req.True(status.PanelOpen)
	req.Equal("in call c1", status.Status)

	_, err = f.handler.Execute(ctx, &Command{Name: "close"})
	req.NoError(err)
	req.False(f.surface.IsOpen())
}

func TestCommandHandler_CallControls(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.handler.Execute(ctx, &Command{Name: "join"})
	req.Error(err)

	_, err = f.handler.Execute(ctx, &Command{Name: "j", Args: []string{"c7"}})
	req.NoError(err)
	req.Equal("c7", f.caller.joined)

	_, err = f.handler.Execute(ctx, &Command{Name: "mute"})
	req.NoError(err)
	req.True(f.handler.cmdStatus().Muted)
}

func TestCommandHandler_PiPToggle(t *testing.T) {
	t.Run("open then close", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		ctx := context.Background()

		result, err := f.handler.Execute(ctx, &Command{Name: "pip"})
		req.NoError(err)
		req.Equal(PiPInfo{State: "open", URL: "http://localhost/pip", Surface: "secondary"}, result)

		result, err = f.handler.Execute(ctx, &Command{Name: "pip"})
		req.NoError(err)
		req.Equal("closed", result.(PiPInfo).State)
		req.Equal(1, f.pip.closes)
	})

	t.Run("denied", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		f.pip.grant = false
		result, err := f.handler.Execute(context.Background(), &Command{Name: "pip"})
		req.NoError(err)
		req.Equal(PiPInfo{State: "closed", URL: "http://localhost/pip", Surface: "primary"}, result)
		req.Equal(1, f.pip.opens)
	})

	t.Run("unsupported", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		f.pip.state = pip.StateUnsupported
		result, err := f.handler.Execute(context.Background(), &Command{Name: "pip"})
		req.NoError(err)
		req.Equal(PiPInfo{State: "unsupported", Surface: "primary"}, result)
		req.Equal(0, f.pip.opens)
	})

	t.Run("no manager", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		f.handler.pip = nil
		result, err := f.handler.Execute(context.Background(), &Command{Name: "pip"})
		req.NoError(err)
		req.Equal("unsupported", result.(PiPInfo).State)
	})
}

func TestCommandHandler_Unknown(t *testing.T) {
	f := newFixture(t)
	_, err := f.handler.Execute(context.Background(), &Command{Name: "dance"})
	require.ErrorContains(t, err, "unknown command")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Split(strings.TrimSpace(b.buf.String()), "\n")
}

func responses(t *testing.T, out *syncBuffer) map[string]Response {
	t.Helper()
	byID := make(map[string]Response)
	for _, line := range out.Lines() {
		var frame map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &frame))
		if frame["type"] == "event" {
			continue
		}
		var resp Response
		require.NoError(t, json.Unmarshal([]byte(line), &resp))
		byID[resp.ID] = resp
	}
	return byID
}

func TestHeadlessCLI_Run(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	input := strings.Join([]string{
		`{"id":"1","command":"send","params":{"text":"hi there"}}`,
		`{"id":"2","command":"messages","params":{"limit":10}}`,
		`not json`,
		`{"id":"3"}`,
		`{"id":"4","command":"quit"}`,
		`{"id":"5","command":"status"}`,
	}, "\n") + "\n"

	out := &syncBuffer{}
	cli := NewHeadlessCLI(f.handler)
	cli.reader = bufio.NewReader(strings.NewReader(input))
	cli.writer = out

	req.NoError(cli.Run(context.Background()))

	byID := responses(t, out)
	req.True(byID["1"].Success)
	req.True(byID["2"].Success)
	data := byID["2"].Data.(map[string]interface{})
	req.Equal(float64(1), data["count"])

	req.False(byID["3"].Success)
	req.Equal("missing command field", byID["3"].Error)
	req.True(byID["4"].Success)
	req.NotContains(byID, "5")

	// the invalid JSON line is reported without an id, as is the ready banner
	req.False(byID[""].Success)
	req.Contains(byID[""].Error, "invalid JSON")
}

func TestHeadlessCLI_ParamsToArgs(t *testing.T) {
	req := require.New(t)
	cli := &HeadlessCLI{}

	req.Equal([]string{"c1"}, cli.paramsToArgs("join", map[string]interface{}{"call_id": "c1"}))
	req.Equal([]string{"c1", "20"}, cli.paramsToArgs("messages", map[string]interface{}{"call_id": "c1", "limit": float64(20)}))
	req.Equal([]string{"-", "10"}, cli.paramsToArgs("messages", map[string]interface{}{"limit": float64(10)}))
	req.Equal([]string{"12345"}, cli.paramsToArgs("messages", map[string]interface{}{"call_id": float64(12345)}))
	req.Equal([]string{"hello world"}, cli.paramsToArgs("send", map[string]interface{}{"text": "hello world"}))
	req.Nil(cli.paramsToArgs("send", nil))
}
