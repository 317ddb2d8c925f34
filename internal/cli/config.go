package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lago-morph/mk8/internal/aws"
	"github.com/lago-morph/mk8/internal/creds"
	"github.com/lago-morph/mk8/internal/errdef"
)

// newConfigCommand creates the "config" subcommand for AWS credential setup.
func newConfigCommand(opts *Options) *cobra.Command {
	var (
		update       bool
		skipValidate bool
	)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configure and validate AWS credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())
			out := cmd.OutOrStdout()

			manager, err := creds.NewManager(logger, "")
			if err != nil {
				return err
			}

			if update {
				changed, err := manager.Update(true)
				if err != nil {
					return err
				}
				if len(changed) == 0 {
					fmt.Fprintln(out, "Credentials unchanged.")
				} else {
					for _, field := range changed {
						fmt.Fprintf(out, "Updated %s.\n", field)
					}
				}
			}

			set, source, err := manager.Acquire()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Access key: %s (from %s)\n", creds.Mask(set.AccessKeyID), source)
			fmt.Fprintf(out, "Region:     %s\n", set.Region)

			if skipValidate {
				return nil
			}

			result, err := aws.NewClient().ValidateCredentials(cmd.Context(), set)
			if err != nil {
				return fmt.Errorf("validating credentials: %w", err)
			}
			if !result.Valid {
				return errdef.New(
					fmt.Sprintf("credential validation failed: %s (%s)", result.ErrorMessage, result.ErrorCode),
					result.Suggestions()...,
				).WithCode(errdef.ExitConfiguration)
			}

			fmt.Fprintf(out, "Credentials valid for AWS account %s.\n", result.AccountID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&update, "update", false, "Re-prompt for credentials even if already configured")
	cmd.Flags().BoolVar(&skipValidate, "skip-validation", false, "Skip the live STS validation call")

	return cmd
}
