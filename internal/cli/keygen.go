package cli

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/exepirit/lorachat/pkg/lorachat"
)

func newKeygenCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a pre-shared key",
		Long: `Generate a random pre-shared key, base64-encoded.
Distribute it to every node out of band and reference it with encryption.key
or encryption.key_file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := lorachat.GenerateKey()
			if err != nil {
				return err
			}
			encoded := base64.StdEncoding.EncodeToString(key)
			if out == "" {
				fmt.Fprintln(cmd.OutOrStdout(), encoded)
				return nil
			}
			if err := os.WriteFile(out, []byte(encoded+"\n"), 0o600); err != nil {
				return fmt.Errorf("failed to write key: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Key written to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "write the key to a file instead of stdout")
	return cmd
}
