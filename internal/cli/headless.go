package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/cast"
)

// HeadlessCLI handles JSON-based headless operation
type HeadlessCLI struct {
	handler *CommandHandler
	reader  *bufio.Reader
	writer  io.Writer
	mu      sync.Mutex
}

// NewHeadlessCLI creates a new headless CLI
func NewHeadlessCLI(handler *CommandHandler) *HeadlessCLI {
	return &HeadlessCLI{
		handler: handler,
		reader:  bufio.NewReader(os.Stdin),
		writer:  os.Stdout,
	}
}

// Run starts the headless JSON processing loop. It returns on EOF or after
// a quit request.
func (cli *HeadlessCLI) Run(ctx context.Context) error {
	cli.sendResponse(Response{
		Success: true,
		Data:    map[string]string{"status": "ready", "mode": string(ModeHeadless)},
	})

	eventChan, unsubscribe := cli.handler.SubscribeEvents(nil)
	defer unsubscribe()

	go cli.streamEvents(eventChan)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			line, err := cli.reader.ReadString('\n')
			if len(line) > 0 {
				if quit := cli.processRequest(ctx, line); quit {
					return nil
				}
			}
			if err != nil {
				if err == io.EOF {
					return nil
				}
				cli.sendError("", fmt.Sprintf("read error: %v", err))
				return err
			}
		}
	}
}

func (cli *HeadlessCLI) processRequest(ctx context.Context, line string) bool {
	var req Request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		cli.sendError("", fmt.Sprintf("invalid JSON: %v", err))
		return false
	}

	if req.Command == "" {
		cli.sendError(req.ID, "missing command field")
		return false
	}

	switch req.Command {
	case "subscribe":
		// Already subscribed, just acknowledge
		cli.sendResponse(Response{
			ID:      req.ID,
			Success: true,
			Data:    map[string]string{"message": "subscribed to events"},
		})
		return false
	case "quit", "exit":
		cli.sendResponse(Response{
			ID:      req.ID,
			Success: true,
			Data:    map[string]string{"message": "goodbye"},
		})
		return true
	}

	cmd := &Command{
		Name: req.Command,
		Args: cli.paramsToArgs(req.Command, req.Params),
	}

	result, err := cli.handler.Execute(ctx, cmd)
	if err != nil {
		cli.sendError(req.ID, err.Error())
		return false
	}

	cli.sendResponse(Response{
		ID:      req.ID,
		Success: true,
		Data:    result,
	})
	return false
}

func (cli *HeadlessCLI) paramsToArgs(command string, params map[string]interface{}) []string {
	if params == nil {
		return nil
	}

	var args []string

	switch command {
	case "join", "j":
		if callID := cast.ToString(params["call_id"]); callID != "" {
			args = append(args, callID)
		}

	case "messages", "msg":
		callID := cast.ToString(params["call_id"])
		limit := cast.ToInt(params["limit"])
		if callID == "" && limit > 0 {
			callID = currentCallArg
		}
		if callID != "" {
			args = append(args, callID)
		}
		if limit > 0 {
			args = append(args, fmt.Sprintf("%d", limit))
		}

	case "send":
		if text := cast.ToString(params["text"]); text != "" {
			args = append(args, text)
		}
	}

	return args
}

func (cli *HeadlessCLI) streamEvents(eventChan <-chan Event) {
	for event := range eventChan {
		cli.sendEvent(event)
	}
}

func (cli *HeadlessCLI) sendResponse(resp Response) {
	cli.mu.Lock()
	defer cli.mu.Unlock()

	data, _ := json.Marshal(resp)
	fmt.Fprintln(cli.writer, string(data))
}

func (cli *HeadlessCLI) sendError(id, message string) {
	cli.sendResponse(Response{
		ID:      id,
		Success: false,
		Error:   message,
	})
}

func (cli *HeadlessCLI) sendEvent(event Event) {
	cli.mu.Lock()
	defer cli.mu.Unlock()

	data, _ := json.Marshal(map[string]interface{}{
		"type":      "event",
		"event":     event.Type,
		"timestamp": event.Timestamp,
		"data":      event.Data,
	})
	fmt.Fprintln(cli.writer, string(data))
}
