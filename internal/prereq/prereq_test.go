package prereq

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lago-morph/mk8/internal/errdef"
)

func fakeChecker(installed map[string]string, daemonErr error) *Checker {
	return &Checker{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		lookPath: func(file string) (string, error) {
			if path, ok := installed[file]; ok {
				return path, nil
			}
			return "", errors.New("executable file not found in $PATH")
		},
		probe: func(ctx context.Context, name string, args ...string) error {
			return daemonErr
		},
	}
}

func allInstalled() map[string]string {
	return map[string]string{
		"docker":  "/usr/bin/docker",
		"kind":    "/usr/local/bin/kind",
		"kubectl": "/usr/local/bin/kubectl",
		"helm":    "/usr/local/bin/helm",
	}
}

func TestCheckDocker(t *testing.T) {
	t.Run("daemon running", func(t *testing.T) {
		status := fakeChecker(allInstalled(), nil).CheckDocker(context.Background())
		assert.True(t, status.Installed)
		assert.True(t, status.DaemonRunning)
		assert.True(t, status.OK())
		assert.Equal(t, "/usr/bin/docker", status.Path)
	})

	t.Run("daemon down", func(t *testing.T) {
		status := fakeChecker(allInstalled(), errors.New("exit status 1")).CheckDocker(context.Background())
		assert.True(t, status.Installed)
		assert.False(t, status.DaemonRunning)
		assert.False(t, status.OK())
		assert.ErrorContains(t, status.Err, "daemon not responding")
	})

	t.Run("not installed", func(t *testing.T) {
		status := fakeChecker(nil, nil).CheckDocker(context.Background())
		assert.False(t, status.Installed)
		assert.False(t, status.OK())
	})
}

func TestCheckAll(t *testing.T) {
	statuses := fakeChecker(allInstalled(), nil).CheckAll(context.Background())
	require.Len(t, statuses, 4)

	names := make([]string, 0, len(statuses))
	for _, status := range statuses {
		names = append(names, status.Name)
		assert.True(t, status.OK(), "%s should be usable", status.Name)
	}
	assert.Equal(t, []string{"docker", "kind", "kubectl", "helm"}, names)
}

func TestValidateAllPresent(t *testing.T) {
	err := fakeChecker(allInstalled(), nil).Validate(context.Background(), ToolDocker, ToolKind, ToolKubectl)
	assert.NoError(t, err)
}

func TestValidateMissingTools(t *testing.T) {
	installed := allInstalled()
	delete(installed, "kind")
	delete(installed, "helm")

	err := fakeChecker(installed, nil).Validate(context.Background(), ToolDocker, ToolKind, ToolHelm)
	require.Error(t, err)

	var mk8Err *errdef.Error
	require.ErrorAs(t, err, &mk8Err)
	assert.Contains(t, mk8Err.Message, "kind, helm")
	assert.Equal(t, errdef.ExitPrerequisite, mk8Err.Code)
	assert.NotEmpty(t, mk8Err.Suggestions)
}

func TestValidateDockerDaemonDown(t *testing.T) {
	err := fakeChecker(allInstalled(), errors.New("cannot connect")).Validate(context.Background(), ToolDocker)
	require.Error(t, err)

	var mk8Err *errdef.Error
	require.ErrorAs(t, err, &mk8Err)
	assert.Contains(t, mk8Err.Message, "docker")
}

func TestInstructionsCoverAllTools(t *testing.T) {
	for _, tool := range []string{ToolDocker, ToolKind, ToolKubectl, ToolHelm} {
		assert.NotEmpty(t, Instructions(tool), tool)
	}
	assert.Nil(t, Instructions("terraform"))
}
