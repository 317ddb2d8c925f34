// Package kubectl provides low-level integration with Kubernetes via the kubectl CLI.
package kubectl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"gopkg.in/yaml.v3"
)

// runner executes a kubectl invocation and returns stdout and stderr.
type runner func(ctx context.Context, stdin []byte, args ...string) (string, string, error)

// Client wraps kubectl execution with optional kubeconfig and context selection.
type Client struct {
	kubeconfig string
	context    string
	logger     *slog.Logger
	run        runner
}

// NewClient constructs a kubectl client bound to a kubeconfig path and context.
// Empty values fall back to kubectl's own defaults.
func NewClient(logger *slog.Logger, kubeconfig, kubeContext string) *Client {
	c := &Client{kubeconfig: kubeconfig, context: kubeContext, logger: logger}
	c.run = c.runKubectl
	return c
}

// ApplyYAML applies the given multi-document YAML via kubectl apply -f -.
func (c *Client) ApplyYAML(ctx context.Context, manifest []byte) error {
	if _, stderr, err := c.run(ctx, manifest, "apply", "-f", "-"); err != nil {
		return fmt.Errorf("kubectl apply failed: %s: %w", strings.TrimSpace(stderr), err)
	}
	return nil
}

// DeleteResource deletes a named resource, ignoring absence when requested.
func (c *Client) DeleteResource(ctx context.Context, resourceType, name, namespace string, ignoreNotFound bool) error {
	args := []string{"delete", resourceType, name}
	if namespace != "" {
		args = append(args, "-n", namespace)
	}
	if ignoreNotFound {
		args = append(args, "--ignore-not-found")
	}
	if _, stderr, err := c.run(ctx, nil, args...); err != nil {
		return fmt.Errorf("kubectl delete %s/%s failed: %s: %w", resourceType, name, strings.TrimSpace(stderr), err)
	}
	return nil
}

// ResourceExists reports whether a named resource exists. A NotFound outcome
// is not an error.
func (c *Client) ResourceExists(ctx context.Context, resourceType, name, namespace string) (bool, error) {
	args := []string{"get", resourceType, name, "-o", "name"}
	if namespace != "" {
		args = append(args, "-n", namespace)
	}
	_, stderr, err := c.run(ctx, nil, args...)
	if err != nil {
		if strings.Contains(stderr, "NotFound") || strings.Contains(stderr, "not found") {
			return false, nil
		}
		return false, fmt.Errorf("kubectl get %s/%s failed: %s: %w", resourceType, name, strings.TrimSpace(stderr), err)
	}
	return true, nil
}

// GetResourceJSON fetches a named resource and decodes its JSON representation
// into a generic map. Used for CRD status inspection where no typed client
// exists.
func (c *Client) GetResourceJSON(ctx context.Context, resourceType, name, namespace string) (map[string]any, error) {
	args := []string{"get", resourceType, name, "-o", "json"}
	if namespace != "" {
		args = append(args, "-n", namespace)
	}
	stdout, stderr, err := c.run(ctx, nil, args...)
	if err != nil {
		return nil, fmt.Errorf("kubectl get %s/%s failed: %s: %w", resourceType, name, strings.TrimSpace(stderr), err)
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		return nil, fmt.Errorf("decode %s/%s output: %w", resourceType, name, err)
	}
	return out, nil
}

// secretManifest is the rendered Secret applied by CreateSecret.
type secretManifest struct {
	APIVersion string            `yaml:"apiVersion"`
	Kind       string            `yaml:"kind"`
	Metadata   secretMetadata    `yaml:"metadata"`
	Type       string            `yaml:"type"`
	StringData map[string]string `yaml:"stringData"`
}

type secretMetadata struct {
	Name      string `yaml:"name"`
	Namespace string `yaml:"namespace"`
}

// CreateSecret creates or updates an Opaque secret. The manifest goes through
// stdin so secret material never appears in the process argument list.
func (c *Client) CreateSecret(ctx context.Context, name, namespace string, data map[string]string) error {
	manifest, err := yaml.Marshal(secretManifest{
		APIVersion: "v1",
		Kind:       "Secret",
		Metadata:   secretMetadata{Name: name, Namespace: namespace},
		Type:       "Opaque",
		StringData: data,
	})
	if err != nil {
		return fmt.Errorf("render secret %s: %w", name, err)
	}
	return c.ApplyYAML(ctx, manifest)
}

// DeleteNamespace deletes a namespace, tolerating its absence.
func (c *Client) DeleteNamespace(ctx context.Context, name string) error {
	if _, stderr, err := c.run(ctx, nil, "delete", "namespace", name, "--ignore-not-found"); err != nil {
		return fmt.Errorf("kubectl delete namespace %s failed: %s: %w", name, strings.TrimSpace(stderr), err)
	}
	return nil
}

// runKubectl executes kubectl with context and kubeconfig selection applied.
func (c *Client) runKubectl(ctx context.Context, stdin []byte, args ...string) (string, string, error) {
	cmdArgs := make([]string, 0, len(args)+2)
	if c.context != "" {
		cmdArgs = append(cmdArgs, "--context", c.context)
	}
	cmdArgs = append(cmdArgs, args...)

	cmd := exec.CommandContext(ctx, "kubectl", cmdArgs...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	if c.kubeconfig != "" {
		cmd.Env = append(os.Environ(), "KUBECONFIG="+c.kubeconfig)
	}

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}
