// Package cli implements the lorachat command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/exepirit/lorachat/internal/config"
)

// options are the global flags and the configuration loaded from them.
type options struct {
	configPath string
	logLevel   string

	cfg config.Config
}

func (o *options) load(_ *cobra.Command, _ []string) error {
	path := o.configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	o.cfg = cfg
	return nil
}

// NewRootCommand builds the lorachat command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "lorachat",
		Short: "Peer-to-peer text chat over LoRa radio",
		Long: `lorachat is a text chat for nodes sharing a LoRa radio channel.
Messages are optionally encrypted with a pre-shared key and relayed over
a serial modem, an MQTT broker, an HTTP relay, LAN multicast or a simulated link.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: opts.load,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/lorachat/config.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newChatCommand(opts),
		newBridgeCommand(opts),
		newKeygenCommand(),
		newVersionCommand(),
	)
	return root
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
