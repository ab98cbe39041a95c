// Command docdash is a terminal client for the docdash chat API.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"docdash/internal/app"
	"docdash/internal/client"
	"docdash/internal/config"
)

// cli holds what every subcommand needs once the persistent flags are parsed.
type cli struct {
	serverURL string
	cfg       *config.ClientConfig
	logger    *slog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "docdash",
		Short: "Chat with the docdash assistant from a terminal",
		Long: `docdash talks to a running docdash server.

Run "docdash chat" to start a conversation; replies stream in as they are
generated and Ctrl-C stops the current reply.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClientConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if cmd.Flags().Changed("server") {
				cfg.ServerURL = c.serverURL
			}
			c.cfg = cfg
			c.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: app.ParseLevel(cfg.LogLevel),
			}))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.serverURL, "server", "", "server URL (overrides DOCDASH_SERVER_URL)")

	root.AddCommand(
		newChatCmd(c),
		newListCmd(c),
		newShowCmd(c),
		newRenameCmd(c),
		newDeleteCmd(c),
	)
	return root
}

func (c *cli) controller() *client.Controller {
	transport := client.NewHTTPTransport(c.cfg.ServerURL, nil)
	return client.NewController(transport, client.Options{
		Logger:  c.logger,
		Session: client.SessionOptions{IdleTimeout: c.cfg.StreamIdleTimeout},
	})
}
