// Package helm wraps the helm CLI for add-on chart management.
package helm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lago-morph/mk8/internal/errdef"
	"github.com/lago-morph/mk8/internal/logging"
)

// runner executes a helm invocation and returns stdout and stderr.
type runner func(ctx context.Context, args ...string) (string, string, error)

// Client wraps helm CLI operations against a fixed kubeconfig and kube
// context.
type Client struct {
	kubeconfig  string
	kubeContext string
	logger      *slog.Logger
	run         runner
}

// NewClient constructs a helm client pinned to the given kubeconfig file and
// kube context. Empty values fall back to helm's own defaults.
func NewClient(logger *slog.Logger, kubeconfig, kubeContext string) *Client {
	c := &Client{kubeconfig: kubeconfig, kubeContext: kubeContext, logger: logger}
	c.run = c.runHelm
	return c
}

// AddRepo adds a chart repository, optionally force-updating an existing one.
func (c *Client) AddRepo(ctx context.Context, name, url string, force bool) error {
	args := []string{"repo", "add", name, url}
	if force {
		args = append(args, "--force-update")
	}
	if _, stderr, err := c.run(ctx, args...); err != nil {
		return helmError(err, stderr, "repo add")
	}
	return nil
}

// UpdateRepos refreshes all configured chart repositories.
func (c *Client) UpdateRepos(ctx context.Context) error {
	if _, stderr, err := c.run(ctx, "repo", "update"); err != nil {
		return helmError(err, stderr, "repo update")
	}
	return nil
}

// InstallOptions configures a chart installation.
type InstallOptions struct {
	Release         string
	Chart           string
	Namespace       string
	Version         string
	Values          map[string]any
	CreateNamespace bool
	Wait            bool
	Timeout         time.Duration
}

// Install installs a chart. Values, when present, are written to a temporary
// YAML file and passed via --values.
func (c *Client) Install(ctx context.Context, opts InstallOptions) error {
	args := []string{"install", opts.Release, opts.Chart, "--namespace", opts.Namespace}
	if opts.Version != "" {
		args = append(args, "--version", opts.Version)
	}
	if opts.CreateNamespace {
		args = append(args, "--create-namespace")
	}
	if opts.Wait {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = 10 * time.Minute
		}
		args = append(args, "--wait", "--timeout", fmt.Sprintf("%ds", int(timeout.Seconds())))
	}

	if len(opts.Values) > 0 {
		valuesFile, err := writeValuesFile(opts.Values)
		if err != nil {
			return errdef.Wrap(err, "write helm values")
		}
		defer func() { _ = os.Remove(valuesFile) }()
		args = append(args, "--values", valuesFile)
	}

	c.logger.Debug("installing helm chart", "release", opts.Release, "chart", opts.Chart, "namespace", opts.Namespace)
	if _, stderr, err := c.run(ctx, args...); err != nil {
		return helmError(err, stderr, "install")
	}
	return nil
}

// Uninstall removes a release.
func (c *Client) Uninstall(ctx context.Context, release, namespace string, wait bool) error {
	args := []string{"uninstall", release, "--namespace", namespace}
	if wait {
		args = append(args, "--wait")
	}
	if _, stderr, err := c.run(ctx, args...); err != nil {
		return helmError(err, stderr, "uninstall")
	}
	return nil
}

// ReleaseStatus holds the fields mk8 reads from helm status output.
type ReleaseStatus struct {
	Name string `json:"name"`
	Info struct {
		Status string `json:"status"`
	} `json:"info"`
	Chart struct {
		Metadata struct {
			Version    string `json:"version"`
			AppVersion string `json:"appVersion"`
		} `json:"metadata"`
	} `json:"chart"`
}

// Status fetches the status of a release.
func (c *Client) Status(ctx context.Context, release, namespace string) (*ReleaseStatus, error) {
	stdout, stderr, err := c.run(ctx, "status", release, "--namespace", namespace, "--output", "json")
	if err != nil {
		return nil, helmError(err, stderr, "status")
	}

	var status ReleaseStatus
	if err := json.Unmarshal([]byte(stdout), &status); err != nil {
		return nil, fmt.Errorf("decode helm status for %s: %w", release, err)
	}
	return &status, nil
}

// ReleaseExists reports whether a release is installed in the namespace.
func (c *Client) ReleaseExists(ctx context.Context, release, namespace string) bool {
	_, err := c.Status(ctx, release, namespace)
	return err == nil
}

// writeValuesFile marshals chart values to a temporary YAML file.
func writeValuesFile(values map[string]any) (string, error) {
	data, err := yaml.Marshal(values)
	if err != nil {
		return "", err
	}
	f, err := os.CreateTemp("", "mk8-helm-values-*.yaml")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// helmError maps a failed helm invocation to a suggestion-carrying error.
func helmError(err error, stderr, op string) error {
	if errors.Is(err, exec.ErrNotFound) {
		return errdef.Wrap(err, "helm command not found",
			"Install Helm: https://helm.sh/docs/intro/install/",
			"Ensure helm is in your PATH",
			"Verify the installation: helm version",
		).WithCode(errdef.ExitPrerequisite)
	}
	return errdef.Wrap(err, "helm "+op+" failed", suggestionsFor(stderr)...)
}

// suggestionsFor maps known helm stderr content to remediation hints.
func suggestionsFor(stderr string) []string {
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "repository") && strings.Contains(lower, "not found"):
		return []string{
			"Add the repository: helm repo add <name> <url>",
			"Update repositories: helm repo update",
			"List repositories: helm repo list",
		}
	case strings.Contains(lower, "already exists"):
		return []string{
			"Uninstall the release first: helm uninstall <release>",
			"Use a different release name",
		}
	case strings.Contains(lower, "connection refused"):
		return []string{
			"Check the cluster is running: kubectl get nodes",
			"Verify the context: kubectl config current-context",
		}
	case strings.Contains(lower, "forbidden"), strings.Contains(lower, "unauthorized"):
		return []string{
			"Check RBAC permissions for your user",
			"Verify the service account has the required permissions",
		}
	default:
		return []string{
			"Check the release status: helm status <release>",
			"Verify cluster connectivity: kubectl get nodes",
		}
	}
}

// runHelm executes helm pinned to the client's kubeconfig and kube context.
func (c *Client) runHelm(ctx context.Context, args ...string) (string, string, error) {
	cmdArgs := append([]string{}, args...)
	if c.kubeContext != "" {
		cmdArgs = append(cmdArgs, "--kube-context", c.kubeContext)
	}

	cmd := exec.CommandContext(ctx, "helm", cmdArgs...)
	cmd.Env = c.environ()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = io.MultiWriter(&stderr, logging.NewWriter(c.logger, "helm"))

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// environ returns the process environment with KUBECONFIG overridden when the
// client is pinned to a specific file, so helm and kubectl target the same
// kubeconfig.
func (c *Client) environ() []string {
	env := os.Environ()
	if c.kubeconfig != "" {
		env = append(env, "KUBECONFIG="+c.kubeconfig)
	}
	return env
}
