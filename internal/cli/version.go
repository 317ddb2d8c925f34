package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lago-morph/mk8/internal/buildmeta"
)

// newVersionCommand creates the "version" subcommand.
func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the mk8 version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), buildmeta.String())
			return nil
		},
	}
}
