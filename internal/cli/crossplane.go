package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lago-morph/mk8/internal/creds"
	"github.com/lago-morph/mk8/internal/crossplane"
)

// newCrossplaneCommand creates the "crossplane" command group.
func newCrossplaneCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crossplane",
		Short: "Manage Crossplane on the bootstrap cluster",
	}

	cmd.AddCommand(
		newCrossplaneInstallCommand(opts),
		newCrossplaneUninstallCommand(opts),
		newCrossplaneStatusCommand(opts),
	)

	return cmd
}

// newCrossplaneInstallCommand creates the "crossplane install" subcommand.
// It installs the control plane, the AWS provider, and configures the
// provider with stored credentials.
func newCrossplaneInstallCommand(opts *Options) *cobra.Command {
	var (
		chartVersion string
		timeout      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install Crossplane and the AWS provider",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())
			installer := crossplane.NewInstaller(logger, opts.Kubeconfig)

			if err := installer.Install(cmd.Context(), chartVersion, timeout); err != nil {
				return err
			}
			if err := installer.InstallProvider(cmd.Context(), 0); err != nil {
				return err
			}

			manager, err := creds.NewManager(logger, "")
			if err != nil {
				return err
			}
			set, source, err := manager.Acquire()
			if err != nil {
				return err
			}
			logger.Debug("using AWS credentials", "source", source)
			if err := installer.Configure(cmd.Context(), set); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Crossplane is installed and configured.")
			return nil
		},
	}

	cmd.Flags().StringVar(&chartVersion, "version", "", "Crossplane chart version to install (default: latest)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Timeout for the install to settle (e.g. 5m)")

	return cmd
}

// newCrossplaneUninstallCommand creates the "crossplane uninstall" subcommand.
func newCrossplaneUninstallCommand(opts *Options) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove Crossplane, the AWS provider and their configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			confirmed, err := confirmDestructive(yes, "Remove Crossplane and the AWS provider from the bootstrap cluster?")
			if err != nil {
				return err
			}
			if !confirmed {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}

			report := crossplane.NewInstaller(logger, opts.Kubeconfig).Uninstall(cmd.Context())
			printTeardownReport(cmd, report)
			return report.Err()
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

// newCrossplaneStatusCommand creates the "crossplane status" subcommand.
func newCrossplaneStatusCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show Crossplane installation state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			status, err := crossplane.NewInstaller(logger, opts.Kubeconfig).Status(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Release:         %s\n", boolWord(status.ReleaseInstalled, "installed", "not installed"))
			if status.ReleaseInstalled {
				if status.ChartVersion != "" {
					fmt.Fprintf(out, "Chart version:   %s\n", status.ChartVersion)
				}
				fmt.Fprintf(out, "Pods:            %s\n", status.PodSummary)
				fmt.Fprintf(out, "Provider:        %s\n", boolWord(status.ProviderInstalled, "installed", "not installed"))
				if status.ProviderInstalled {
					fmt.Fprintf(out, "Provider ready:  %s\n", boolWord(status.ProviderReady, "yes", "no"))
				}
				fmt.Fprintf(out, "ProviderConfig:  %s\n", boolWord(status.ProviderConfigExists, "present", "missing"))
			}
			printIssues(cmd, status.Issues)
			return nil
		},
	}
}
