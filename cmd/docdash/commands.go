package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"docdash/internal/client"
	"docdash/internal/model"
)

func newListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List conversations, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl := c.controller()
			defer ctrl.Close()

			if err := ctrl.Load(cmd.Context()); err != nil {
				return err
			}
			return printConversations(cmd.OutOrStdout(), ctrl.Snapshot().Conversations)
		},
	}
}

func newShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show <conversation-id>",
		Short: "Print a conversation's messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl := c.controller()
			defer ctrl.Close()

			if err := ctrl.Select(cmd.Context(), args[0]); err != nil {
				return err
			}
			for _, m := range ctrl.Snapshot().Messages {
				printMessage(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}
}

func newRenameCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <conversation-id> <title>",
		Short: "Rename a conversation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl := c.controller()
			defer ctrl.Close()
			return ctrl.Rename(cmd.Context(), args[0], strings.Join(args[1:], " "))
		},
	}
}

func newDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <conversation-id>",
		Short: "Delete a conversation and its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl := c.controller()
			defer ctrl.Close()
			return ctrl.Delete(cmd.Context(), args[0])
		},
	}
}

func newChatCmd(c *cli) *cobra.Command {
	var conversationID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat",
		Long: `Reads one prompt per line and streams the reply.

  /new    start a new conversation
  /quit   exit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl := c.controller()
			defer ctrl.Close()

			if conversationID != "" {
				if err := ctrl.Select(cmd.Context(), conversationID); err != nil {
					return err
				}
				for _, m := range ctrl.Snapshot().Messages {
					printMessage(cmd.OutOrStdout(), m)
				}
			}
			return runChat(cmd.Context(), ctrl, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "continue an existing conversation")
	return cmd
}

func runChat(ctx context.Context, ctrl *client.Controller, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "/quit":
			return nil
		case "/new":
			if _, err := ctrl.NewConversation(ctx, ""); err != nil {
				fmt.Fprintf(out, "! %v\n", err)
			}
			continue
		}

		sendCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		err := streamReply(sendCtx, ctrl, line, out)
		stop()

		switch {
		case errors.Is(err, client.ErrCancelled):
			fmt.Fprintln(out, "(cancelled)")
		case err != nil:
			fmt.Fprintf(out, "! %v\n", err)
		}
	}
}

// streamReply sends text and prints the reply as it grows.
func streamReply(ctx context.Context, ctrl *client.Controller, text string, out io.Writer) error {
	p := &replyPrinter{out: out}
	done := make(chan struct{})
	watched := make(chan struct{})

	go func() {
		defer close(watched)
		for {
			select {
			case <-ctrl.Changes():
				if ph := ctrl.Snapshot().Placeholder; ph != nil {
					p.update(ph.Content)
				}
			case <-done:
				return
			}
		}
	}()

	err := ctrl.Send(ctx, text)
	close(done)
	<-watched

	if err == nil {
		msgs := ctrl.Snapshot().Messages
		if n := len(msgs); n > 0 && msgs[n-1].Role == model.RoleAssistant {
			p.update(msgs[n-1].Content)
		}
	}
	p.finish()
	return err
}

// replyPrinter writes only the part of a reply not printed yet.
type replyPrinter struct {
	out     io.Writer
	printed string
}

func (p *replyPrinter) update(content string) {
	if !strings.HasPrefix(content, p.printed) {
		// The saved reply differs from what streamed; reprint it whole.
		fmt.Fprint(p.out, "\n"+content)
		p.printed = content
		return
	}
	fmt.Fprint(p.out, content[len(p.printed):])
	p.printed = content
}

func (p *replyPrinter) finish() {
	if p.printed != "" {
		fmt.Fprintln(p.out)
	}
}

func printConversations(out io.Writer, conversations []model.ConversationSummary) error {
	if len(conversations) == 0 {
		fmt.Fprintln(out, "No conversations yet.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tMESSAGES\tLAST")
	for _, conv := range conversations {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", conv.ID, conv.Title, conv.MessageCount, conv.LastMessagePreview)
	}
	return tw.Flush()
}

func printMessage(out io.Writer, m model.ChatMessage) {
	fmt.Fprintf(out, "[%s] %s\n", m.Role, m.Content)
}
