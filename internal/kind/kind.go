// Package kind wraps the kind CLI for bootstrap cluster provisioning.
package kind

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lago-morph/mk8/internal/errdef"
	"github.com/lago-morph/mk8/internal/logging"
)

// ClusterName is the fixed name of the mk8 bootstrap cluster.
const ClusterName = "mk8-bootstrap"

// ContextName is the kubeconfig context kind generates for the bootstrap cluster.
const ContextName = "kind-" + ClusterName

// runner executes a kind invocation and returns stdout and stderr.
type runner func(ctx context.Context, args ...string) (string, string, error)

// Client wraps kind CLI operations with error mapping and output parsing.
type Client struct {
	logger *slog.Logger
	run    runner
}

// NewClient constructs a kind client.
func NewClient(logger *slog.Logger) *Client {
	c := &Client{logger: logger}
	c.run = c.runKind
	return c
}

// Exists reports whether the bootstrap cluster is known to kind.
func (c *Client) Exists(ctx context.Context) bool {
	stdout, _, err := c.run(ctx, "get", "clusters")
	if err != nil {
		return false
	}
	for _, name := range strings.Fields(stdout) {
		if name == ClusterName {
			return true
		}
	}
	return false
}

// Create provisions the bootstrap cluster. An optional Kubernetes version
// selects the kindest/node image; empty means kind's default. The cluster
// config (control-plane node with 80/443 port mappings) is written to a
// temporary file for the invocation.
func (c *Client) Create(ctx context.Context, kubernetesVersion string) error {
	if kubernetesVersion != "" {
		if err := validateVersion(kubernetesVersion); err != nil {
			return err
		}
	}

	configPath, err := writeDefaultConfig()
	if err != nil {
		return errdef.Wrap(err, "write kind cluster config")
	}
	defer func() { _ = os.Remove(configPath) }()

	args := []string{"create", "cluster", "--name", ClusterName, "--config", configPath}
	if kubernetesVersion != "" {
		args = append(args, "--image", "kindest/node:"+kubernetesVersion)
	}

	c.logger.Debug("creating kind cluster", "name", ClusterName, "version", kubernetesVersion)
	if _, stderr, err := c.run(ctx, args...); err != nil {
		return kindError(err, stderr, "create cluster")
	}
	return nil
}

// Delete removes the bootstrap cluster.
func (c *Client) Delete(ctx context.Context) error {
	c.logger.Debug("deleting kind cluster", "name", ClusterName)
	if _, stderr, err := c.run(ctx, "delete", "cluster", "--name", ClusterName); err != nil {
		return kindError(err, stderr, "delete cluster")
	}
	return nil
}

// Kubeconfig returns the cluster's kubeconfig as YAML.
func (c *Client) Kubeconfig(ctx context.Context) (string, error) {
	stdout, stderr, err := c.run(ctx, "get", "kubeconfig", "--name", ClusterName)
	if err != nil {
		return "", kindError(err, stderr, "get kubeconfig")
	}
	return stdout, nil
}

// versionPattern matches v<major>.<minor> with an optional patch component.
var versionPattern = regexp.MustCompile(`^v\d+\.\d+(\.\d+)?$`)

// validateVersion rejects Kubernetes version strings kind cannot consume.
func validateVersion(version string) error {
	if !versionPattern.MatchString(version) {
		return errdef.New(
			fmt.Sprintf("invalid Kubernetes version %q", version),
			"Use the form v<major>.<minor>.<patch>, e.g. v1.31.0",
			"Check available node images: https://github.com/kubernetes-sigs/kind/releases",
		).WithCode(errdef.ExitValidation)
	}
	return nil
}

// clusterConfig is the kind cluster configuration rendered for creation.
type clusterConfig struct {
	Kind       string       `yaml:"kind"`
	APIVersion string       `yaml:"apiVersion"`
	Nodes      []nodeConfig `yaml:"nodes"`
}

type nodeConfig struct {
	Role              string        `yaml:"role"`
	ExtraPortMappings []portMapping `yaml:"extraPortMappings,omitempty"`
}

type portMapping struct {
	ContainerPort int    `yaml:"containerPort"`
	HostPort      int    `yaml:"hostPort"`
	Protocol      string `yaml:"protocol"`
}

// writeDefaultConfig renders the default single control-plane config to a
// temporary YAML file and returns its path.
func writeDefaultConfig() (string, error) {
	cfg := clusterConfig{
		Kind:       "Cluster",
		APIVersion: "kind.x-k8s.io/v1alpha4",
		Nodes: []nodeConfig{
			{
				Role: "control-plane",
				ExtraPortMappings: []portMapping{
					{ContainerPort: 80, HostPort: 80, Protocol: "TCP"},
					{ContainerPort: 443, HostPort: 443, Protocol: "TCP"},
				},
			},
		},
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	f, err := os.CreateTemp("", "mk8-kind-*.yaml")
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

// kindError maps a failed kind invocation to a suggestion-carrying error,
// using known stderr substrings for remediation hints.
func kindError(err error, stderr, op string) error {
	if errors.Is(err, exec.ErrNotFound) {
		return errdef.Wrap(err, "kind command not found",
			"Install kind: https://kind.sigs.k8s.io/docs/user/quick-start/#installation",
			"Ensure kind is in your PATH",
			"Verify the installation: kind version",
		).WithCode(errdef.ExitPrerequisite)
	}
	return errdef.Wrap(err, "kind "+op+" failed", suggestionsFor(stderr)...)
}

// suggestionsFor maps known kind stderr content to remediation hints.
func suggestionsFor(stderr string) []string {
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "already exists"):
		return []string{
			"Delete the existing cluster: mk8 bootstrap delete",
			"Use --force-recreate to replace it automatically",
		}
	case strings.Contains(lower, "port") && strings.Contains(lower, "already"):
		return []string{
			"Check for other services using ports 80/443",
			"Stop the conflicting services and retry",
		}
	case strings.Contains(lower, "docker"):
		return []string{
			"Ensure the Docker daemon is running",
			"Check Docker status: docker ps",
			"Restart Docker if needed",
		}
	default:
		return []string{
			"Verify Docker is running: docker ps",
			"Check system resources (memory, disk)",
			"Export cluster logs for details: kind export logs",
		}
	}
}

// runKind executes kind with the given arguments. Progress output on stderr
// is streamed to the logger line by line while still being captured for
// error mapping.
func (c *Client) runKind(ctx context.Context, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, "kind", args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = io.MultiWriter(&stderr, logging.NewWriter(c.logger, "kind"))

	err := cmd.Run()
	if err != nil && stderr.Len() > 0 {
		err = fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), stderr.String(), err
}
