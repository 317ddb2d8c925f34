package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lago-morph/mk8/internal/creds"
	"github.com/lago-morph/mk8/internal/errdef"
	"github.com/lago-morph/mk8/internal/prereq"
)

// newVerifyCommand creates the "verify" subcommand that checks the local setup.
func newVerifyCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify prerequisites and credential configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())
			out := cmd.OutOrStdout()
			failed := false

			for _, status := range prereq.NewChecker(logger).CheckAll(cmd.Context()) {
				state := "ok"
				switch {
				case !status.Installed:
					state = "missing"
					failed = true
				case status.Name == prereq.ToolDocker && !status.DaemonRunning:
					state = "daemon not running"
					failed = true
				}
				fmt.Fprintf(out, "%-8s %s\n", status.Name, state)
				if !status.OK() {
					for _, hint := range prereq.Instructions(status.Name) {
						fmt.Fprintf(out, "         %s\n", hint)
					}
				}
			}

			manager, err := creds.NewManager(logger, "")
			if err != nil {
				return err
			}
			if configured, err := credentialsConfigured(manager); err != nil {
				return err
			} else if configured {
				fmt.Fprintf(out, "%-8s ok\n", "creds")
			} else {
				fmt.Fprintf(out, "%-8s not configured (run 'mk8 config')\n", "creds")
				failed = true
			}

			if failed {
				return errdef.New("environment verification failed").WithCode(errdef.ExitPrerequisite)
			}
			fmt.Fprintln(out, "Environment is ready.")
			return nil
		},
	}
}

// credentialsConfigured reports whether complete credentials are stored,
// without prompting.
func credentialsConfigured(manager *creds.Manager) (bool, error) {
	set, err := manager.Stored()
	if err != nil {
		return false, err
	}
	return set.Complete(), nil
}
