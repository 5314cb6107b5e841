package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/clippy-oss/homie/callchat/internal/domain"
	"github.com/clippy-oss/homie/callchat/internal/logger"
	"github.com/clippy-oss/homie/callchat/internal/store"
)

func newHistoryCmd(flags *overrides) *cobra.Command {
	return &cobra.Command{
		Use:   "history <call_id>",
		Short: "Print the stored chat of a call",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*flags)
			if err != nil {
				return err
			}
			logger.Init(cfg.LogLevel, os.Stderr)

			repo, closeStorage, err := openRepository(cfg)
			if err != nil {
				return err
			}
			defer closeStorage()

			return printHistory(cmd.Context(), os.Stdout, store.New(repo, nil), args[0])
		},
	}
}

// printHistory renders the durable record of callID without hydrating it.
func printHistory(ctx context.Context, w io.Writer, st *store.Store, callID string) error {
	conv, err := st.Peek(ctx, callID)
	if err != nil {
		return fmt.Errorf("failed to read call %s: %w", callID, err)
	}

	fmt.Fprintln(w, color.Cyan.Sprintf("Call %s", callID))
	if len(conv.Messages) == 0 {
		fmt.Fprintln(w, "No stored messages")
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Time", "Sender", "Message", "ID"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, msg := range conv.Messages {
		table.Append([]string{
			domain.FormatMessageTime(msg.SentAt),
			msg.SenderName,
			msg.Body,
			msg.ID,
		})
	}
	table.Render()

	summary := fmt.Sprintf("%d message(s), %d unread", len(conv.Messages), conv.UnreadCount)
	if conv.UnreadCount > 0 {
		summary = color.Yellow.Sprint(summary)
	}
	fmt.Fprintln(w, summary)
	return nil
}
