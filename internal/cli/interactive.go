package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gookit/color"

	"github.com/clippy-oss/homie/callchat/internal/domain"
)

// InteractiveCLI is a line-oriented shell for terminals where the full
// screen UI is not wanted. Lines not starting with / are sent as messages.
type InteractiveCLI struct {
	handler *CommandHandler
	reader  *bufio.Reader
	writer  io.Writer
}

// NewInteractiveCLI creates a new interactive CLI
func NewInteractiveCLI(handler *CommandHandler) *InteractiveCLI {
	return &InteractiveCLI{
		handler: handler,
		reader:  bufio.NewReader(os.Stdin),
		writer:  os.Stdout,
	}
}

// Run starts the interactive CLI loop
func (cli *InteractiveCLI) Run(ctx context.Context) error {
	cli.printWelcome()

	eventChan, unsubscribe := cli.handler.SubscribeEvents([]domain.EventType{
		domain.EventTypeMessageAppended,
		domain.EventTypeSendFailed,
		domain.EventTypeCallState,
	})
	defer unsubscribe()

	go cli.handleEvents(eventChan)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			cli.print("\n> ")
			line, err := cli.reader.ReadString('\n')
			if err != nil {
				if err == io.EOF {
					return nil
				}
				return err
			}

			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if !strings.HasPrefix(line, "/") {
				line = "/send " + line
			}

			if err := cli.processCommand(ctx, line); err != nil {
				if err.Error() == "quit" {
					cli.println("Goodbye!")
					return nil
				}
				cli.println(color.Red.Sprintf("Error: %s", err))
			}
		}
	}
}

func (cli *InteractiveCLI) printWelcome() {
	cli.println("===========================================")
	cli.println("  Call Chat")
	cli.println("===========================================")
	cli.println("Type /help for available commands")
	cli.println("")

	status := cli.handler.cmdStatus()
	cli.printf("Status: %s\n", status.Status)
}

func (cli *InteractiveCLI) processCommand(ctx context.Context, input string) error {
	cmd, err := ParseCommand(input)
	if err != nil {
		return err
	}

	result, err := cli.handler.Execute(ctx, cmd)
	if err != nil {
		return err
	}

	if m, ok := result.(map[string]bool); ok && m["quit"] {
		return fmt.Errorf("quit")
	}

	cli.displayResult(cmd.Name, result)
	return nil
}

func (cli *InteractiveCLI) displayResult(cmdName string, result interface{}) {
	switch cmdName {
	case "help", "h":
		if m, ok := result.(map[string]string); ok {
			cli.println(m["help"])
		}

	case "status", "s":
		if s, ok := result.(CallStatus); ok {
			cli.printf("Call Status: %s\n", s.Status)
			cli.printf("  Muted: %v\n", s.Muted)
			cli.printf("  Chat panel open: %v\n", s.PanelOpen)
			cli.printf("  Picture-in-picture: %s\n", s.PiP)
			if s.Badge != "" {
				cli.printf("  Unread: %s\n", color.Yellow.Sprint(s.Badge))
			}
		}

	case "messages", "msg":
		if m, ok := result.(map[string]interface{}); ok {
			messages, _ := m["messages"].([]MessageInfo)
			cli.printf("Found %d message(s):\n\n", len(messages))
			for _, msg := range messages {
				cli.printMessage(msg)
			}
		}

	case "send":
		if msg, ok := result.(MessageInfo); ok {
			cli.printf("Message sent! (%s)\n", msg.ID)
		}

	case "unread", "u":
		if u, ok := result.(UnreadInfo); ok {
			if !u.HasUnread {
				cli.println("No unread messages")
				return
			}
			cli.printf("Unread: %s\n", color.Yellow.Sprint(u.Badge))
		}

	case "pip":
		if p, ok := result.(PiPInfo); ok {
			cli.printf("Picture-in-picture: %s\n", p.State)
		}

	default:
		if m, ok := result.(map[string]string); ok {
			if msg, exists := m["message"]; exists {
				cli.println(msg)
				return
			}
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		cli.println(string(data))
	}
}

func (cli *InteractiveCLI) printMessage(msg MessageInfo) {
	sender := msg.SenderName
	if msg.IsFromMe {
		sender = "Me"
	}
	cli.printf("[%s] %s:\n", domain.FormatMessageTime(msg.SentAt), color.Cyan.Sprint(sender))
	cli.printf("  %s\n", msg.Body)
}

func (cli *InteractiveCLI) handleEvents(eventChan <-chan Event) {
	for event := range eventChan {
		switch event.Type {
		case "message_appended":
			data, ok := event.Data.(map[string]interface{})
			if !ok {
				continue
			}
			msg, _ := data["message"].(MessageInfo)
			if msg.IsFromMe {
				continue
			}
			cli.println("")
			cli.printMessage(msg)
			cli.print("> ")
		case "send_failed":
			cli.println(color.Red.Sprint("\n[Message not delivered, send it again]"))
			cli.print("> ")
		case "call_state":
			if data, ok := event.Data.(map[string]interface{}); ok {
				cli.printf("\n[Call %v: %v]\n", data["call_id"], data["state"])
				cli.print("> ")
			}
		}
	}
}

func (cli *InteractiveCLI) print(s string) {
	fmt.Fprint(cli.writer, s)
}

func (cli *InteractiveCLI) println(s string) {
	fmt.Fprintln(cli.writer, s)
}

func (cli *InteractiveCLI) printf(format string, args ...interface{}) {
	fmt.Fprintf(cli.writer, format, args...)
}
