package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/exepirit/lorachat/internal/bridge"
)

func newBridgeCommand(opts *options) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Run the HTTP relay shared by nodes on the http link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg := opts.cfg.Bridge
			if listen != "" {
				cfg.Listen = listen
			}
			logger, closer, err := newLogger(opts.cfg.Log, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer closer.Close()

			server := bridge.NewServer(bridge.Config{Listen: cfg.Listen, MailboxSize: cfg.MailboxSize}, logger)
			return server.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "address to listen on (default from config, \":4403\")")
	return cmd
}
