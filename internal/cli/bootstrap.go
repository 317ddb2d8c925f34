package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lago-morph/mk8/internal/bootstrap"
	"github.com/lago-morph/mk8/internal/kind"
	"github.com/lago-morph/mk8/internal/teardown"
)

// newBootstrapCommand creates the "bootstrap" command group for bootstrap cluster lifecycle.
func newBootstrapCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Manage the local bootstrap cluster",
	}

	cmd.AddCommand(
		newBootstrapCreateCommand(opts),
		newBootstrapDeleteCommand(opts),
		newBootstrapStatusCommand(opts),
	)

	return cmd
}

// newBootstrapCreateCommand creates the "bootstrap create" subcommand.
func newBootstrapCreateCommand(opts *Options) *cobra.Command {
	var (
		kubernetesVersion string
		forceRecreate     bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create the bootstrap cluster and register it in the kubeconfig",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())
			orchestrator := bootstrap.New(logger, opts.Kubeconfig)
			if err := orchestrator.Create(cmd.Context(), kubernetesVersion, forceRecreate); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Bootstrap cluster %q is ready.\n", kind.ClusterName)
			return nil
		},
	}

	cmd.Flags().StringVar(&kubernetesVersion, "kubernetes-version", "", "Kubernetes version for the cluster node image (e.g. v1.31.0)")
	cmd.Flags().BoolVar(&forceRecreate, "force-recreate", false, "Delete and recreate the cluster if it already exists")

	return cmd
}

// newBootstrapDeleteCommand creates the "bootstrap delete" subcommand.
func newBootstrapDeleteCommand(opts *Options) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the bootstrap cluster and its kubeconfig entry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			confirmed, err := confirmDestructive(yes,
				fmt.Sprintf("Delete bootstrap cluster %q and its kubeconfig entry?", kind.ClusterName))
			if err != nil {
				return err
			}
			if !confirmed {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}

			report := bootstrap.New(logger, opts.Kubeconfig).Delete(cmd.Context())
			printTeardownReport(cmd, report)
			return report.Err()
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

// newBootstrapStatusCommand creates the "bootstrap status" subcommand.
func newBootstrapStatusCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show bootstrap cluster state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			status, err := bootstrap.New(logger, opts.Kubeconfig).Status(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Cluster:     %s\n", boolWord(status.Exists, "exists", "missing"))
			if status.Exists {
				fmt.Fprintf(out, "Registered:  %s\n", boolWord(status.Registered, "yes", "no"))
				fmt.Fprintf(out, "Nodes:       %s\n", status.NodeSummary)
				if status.ServerVersion != "" {
					fmt.Fprintf(out, "Kubernetes:  %s\n", status.ServerVersion)
				}
			}
			printIssues(cmd, status.Issues)
			return nil
		},
	}
}

// boolWord picks a human-readable word for a boolean state.
func boolWord(v bool, yes, no string) string {
	if v {
		return yes
	}
	return no
}

// printIssues lists status issues, if any.
func printIssues(cmd *cobra.Command, issues []string) {
	if len(issues) == 0 {
		return
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Issues:")
	for _, issue := range issues {
		fmt.Fprintf(out, "  - %s\n", issue)
	}
}

// printTeardownReport summarizes what a teardown attempted and what failed.
func printTeardownReport(cmd *cobra.Command, report *teardown.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Attempted: %s\n", strings.Join(report.Attempted, ", "))
	if report.OK() {
		fmt.Fprintln(out, "All steps completed.")
		return
	}
	fmt.Fprintln(out, "Failed steps:")
	for _, failure := range report.Failures {
		fmt.Fprintf(out, "  - %s: %s\n", failure.Label, failure.Message)
	}
}
