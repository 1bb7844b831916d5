package cli

import (
	"errors"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/exepirit/lorachat/internal/config"
	"github.com/exepirit/lorachat/internal/ui"
)

func newChatCommand(opts *options) *cobra.Command {
	var (
		nodeID string
		link   string
		plain  bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Join the chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg := opts.cfg
			if nodeID != "" {
				cfg.NodeID = nodeID
			}
			if link != "" {
				cfg.Link.Kind = link
			}

			logger, logCloser, err := newLogger(cfg.Log, cmd.ErrOrStderr(), !plain)
			if err != nil {
				return err
			}
			defer logCloser.Close()

			a, err := newNode(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()
			node := a.node
			node.Restore(ctx)

			runErr := make(chan error, 1)
			startNode := func() {
				go func() {
					err := node.Run(ctx)
					node.Stop()
					runErr <- err
				}()
			}

			if plain {
				console := ui.NewConsole(cmd.OutOrStdout())
				node.Subscribe(console)
				console.Banner(node.NodeID())
				for _, env := range node.History() {
					console.Notify(env)
				}
				startNode()

				inputErr := ui.ReadLines(cmd.InOrStdin(), node.Submit, node.Done())
				node.Stop()
				return errors.Join(inputErr, <-runErr)
			}

			display := ui.NewProgramDisplay()
			node.Subscribe(display)
			program := tea.NewProgram(ui.NewModel(node, node.History()),
				tea.WithAltScreen(),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()))
			go display.Pump(ctx, program)
			go func() {
				select {
				case <-node.Done():
				case <-ctx.Done():
				}
				program.Quit()
			}()
			startNode()

			_, uiErr := program.Run()
			node.Stop()
			return errors.Join(uiErr, <-runErr)
		},
	}
	cmd.Flags().StringVar(&nodeID, "node", "", "node identifier (default from config)")
	cmd.Flags().StringVar(&link, "link", "", "link kind: "+config.LinkSim+", "+config.LinkSerial+", "+
		config.LinkMQTT+", "+config.LinkHTTP+", "+config.LinkUDP)
	cmd.Flags().BoolVar(&plain, "plain", false, "print plain lines instead of the full-screen view")
	return cmd
}
