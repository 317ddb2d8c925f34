// Package prereq checks the external tools mk8 shells out to.
package prereq

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/lago-morph/mk8/internal/errdef"
)

// Tool names as they appear on PATH.
const (
	ToolDocker  = "docker"
	ToolKind    = "kind"
	ToolKubectl = "kubectl"
	ToolHelm    = "helm"
)

// Status is the result of checking a single tool.
type Status struct {
	Name          string
	Installed     bool
	Path          string
	DaemonRunning bool
	Err           error
}

// OK reports whether the tool is usable.
func (s Status) OK() bool {
	if !s.Installed {
		return false
	}
	if s.Name == ToolDocker {
		return s.DaemonRunning
	}
	return true
}

// Checker locates prerequisite tools and probes the Docker daemon.
type Checker struct {
	logger *slog.Logger

	lookPath func(file string) (string, error)
	probe    func(ctx context.Context, name string, args ...string) error
}

// NewChecker constructs a Checker using the real PATH and subprocesses.
func NewChecker(logger *slog.Logger) *Checker {
	return &Checker{
		logger:   logger,
		lookPath: exec.LookPath,
		probe: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

// CheckDocker verifies the docker binary exists and the daemon answers.
func (c *Checker) CheckDocker(ctx context.Context) Status {
	status := c.checkBinary(ToolDocker)
	if !status.Installed {
		return status
	}
	if err := c.probe(ctx, ToolDocker, "info"); err != nil {
		status.Err = fmt.Errorf("docker daemon not responding: %w", err)
		return status
	}
	status.DaemonRunning = true
	return status
}

// CheckKind verifies the kind binary exists.
func (c *Checker) CheckKind(ctx context.Context) Status {
	return c.checkBinary(ToolKind)
}

// CheckKubectl verifies the kubectl binary exists.
func (c *Checker) CheckKubectl(ctx context.Context) Status {
	return c.checkBinary(ToolKubectl)
}

// CheckHelm verifies the helm binary exists.
func (c *Checker) CheckHelm(ctx context.Context) Status {
	return c.checkBinary(ToolHelm)
}

// CheckAll checks every tool and returns one Status per tool.
func (c *Checker) CheckAll(ctx context.Context) []Status {
	return []Status{
		c.CheckDocker(ctx),
		c.CheckKind(ctx),
		c.CheckKubectl(ctx),
		c.CheckHelm(ctx),
	}
}

// Validate checks the named tools and returns a prerequisite error listing
// everything missing or broken. A nil error means all tools are usable.
func (c *Checker) Validate(ctx context.Context, tools ...string) error {
	var failed []Status
	for _, tool := range tools {
		status := c.check(ctx, tool)
		if !status.OK() {
			failed = append(failed, status)
		}
		c.logger.Debug("prerequisite checked", "tool", status.Name, "ok", status.OK())
	}
	if len(failed) == 0 {
		return nil
	}

	names := make([]string, 0, len(failed))
	var suggestions []string
	for _, status := range failed {
		names = append(names, status.Name)
		suggestions = append(suggestions, Instructions(status.Name)...)
	}
	return errdef.New(
		fmt.Sprintf("missing or unusable prerequisites: %s", strings.Join(names, ", ")),
		suggestions...,
	).WithCode(errdef.ExitPrerequisite)
}

func (c *Checker) check(ctx context.Context, tool string) Status {
	switch tool {
	case ToolDocker:
		return c.CheckDocker(ctx)
	case ToolKind:
		return c.CheckKind(ctx)
	case ToolKubectl:
		return c.CheckKubectl(ctx)
	case ToolHelm:
		return c.CheckHelm(ctx)
	default:
		return Status{Name: tool, Err: fmt.Errorf("unknown tool %q", tool)}
	}
}

func (c *Checker) checkBinary(name string) Status {
	path, err := c.lookPath(name)
	if err != nil {
		return Status{Name: name, Err: fmt.Errorf("%s not found on PATH: %w", name, err)}
	}
	return Status{Name: name, Installed: true, Path: path}
}

// Instructions returns installation hints for a missing tool.
func Instructions(tool string) []string {
	switch tool {
	case ToolDocker:
		return []string{
			"Install Docker Desktop or Docker Engine: https://docs.docker.com/get-docker/",
			"If Docker is installed, start the daemon and retry",
		}
	case ToolKind:
		return []string{
			"Install kind: https://kind.sigs.k8s.io/docs/user/quick-start/#installation",
			"On macOS: 'brew install kind'",
		}
	case ToolKubectl:
		return []string{
			"Install kubectl: https://kubernetes.io/docs/tasks/tools/",
			"On macOS: 'brew install kubectl'",
		}
	case ToolHelm:
		return []string{
			"Install helm: https://helm.sh/docs/intro/install/",
			"On macOS: 'brew install helm'",
		}
	default:
		return nil
	}
}
