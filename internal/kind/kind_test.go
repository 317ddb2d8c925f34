package kind

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/lago-morph/mk8/internal/errdef"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fakeClient(run runner) *Client {
	return &Client{logger: discardLogger(), run: run}
}

func TestExists(t *testing.T) {
	tests := []struct {
		name   string
		stdout string
		err    error
		want   bool
	}{
		{name: "cluster listed", stdout: "other\nmk8-bootstrap\n", want: true},
		{name: "cluster absent", stdout: "other\n", want: false},
		{name: "no clusters", stdout: "", want: false},
		{name: "kind fails", err: errors.New("boom"), want: false},
		{name: "prefix is not a match", stdout: "mk8-bootstrap-2\n", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := fakeClient(func(_ context.Context, _ ...string) (string, string, error) {
				return tt.stdout, "", tt.err
			})
			assert.Equal(t, tt.want, client.Exists(context.Background()))
		})
	}
}

func TestCreateArguments(t *testing.T) {
	var captured []string
	client := fakeClient(func(_ context.Context, args ...string) (string, string, error) {
		captured = args
		return "", "", nil
	})

	require.NoError(t, client.Create(context.Background(), "v1.31.0"))

	assert.Equal(t, "create", captured[0])
	assert.Contains(t, captured, "--name")
	assert.Contains(t, captured, ClusterName)
	assert.Contains(t, captured, "--config")
	assert.Contains(t, captured, "--image")
	assert.Contains(t, captured, "kindest/node:v1.31.0")
}

func TestCreateRejectsMalformedVersions(t *testing.T) {
	client := fakeClient(func(_ context.Context, _ ...string) (string, string, error) {
		t.Fatal("kind must not run for an invalid version")
		return "", "", nil
	})

	for _, version := range []string{"1.31.0", "v1", "latest", "v1.x"} {
		err := client.Create(context.Background(), version)
		require.Error(t, err, version)
		assert.Equal(t, errdef.ExitValidation, errdef.ExitCode(err))
	}
}

func TestCreateAcceptsVersionWithoutPatch(t *testing.T) {
	client := fakeClient(func(_ context.Context, _ ...string) (string, string, error) {
		return "", "", nil
	})
	assert.NoError(t, client.Create(context.Background(), "v1.31"))
}

func TestCreateErrorSuggestions(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		want   string
	}{
		{
			name:   "existing cluster",
			stderr: `ERROR: node(s) already exist for a cluster with the name "mk8-bootstrap"`,
			want:   "mk8 bootstrap delete",
		},
		{
			name:   "port conflict",
			stderr: "ERROR: port 80 is already allocated",
			want:   "ports 80/443",
		},
		{
			name:   "docker down",
			stderr: "ERROR: failed to list clusters: command \"docker ps\" failed",
			want:   "Docker daemon",
		},
		{
			name:   "unknown failure",
			stderr: "ERROR: something unexpected",
			want:   "kind export logs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := fakeClient(func(_ context.Context, _ ...string) (string, string, error) {
				return "", tt.stderr, errors.New("exit status 1")
			})

			err := client.Create(context.Background(), "")
			require.Error(t, err)

			var e *errdef.Error
			require.ErrorAs(t, err, &e)
			assert.True(t, suggestionsContain(e.Suggestions, tt.want),
				"suggestions %v should mention %q", e.Suggestions, tt.want)
		})
	}
}

func TestKubeconfig(t *testing.T) {
	client := fakeClient(func(_ context.Context, args ...string) (string, string, error) {
		assert.Equal(t, []string{"get", "kubeconfig", "--name", ClusterName}, args)
		return "apiVersion: v1\nkind: Config\n", "", nil
	})

	out, err := client.Kubeconfig(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out, "kind: Config")
}

func TestDefaultConfigShape(t *testing.T) {
	path, err := writeDefaultConfig()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Remove(path) })

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var cfg clusterConfig
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, "Cluster", cfg.Kind)
	assert.Equal(t, "kind.x-k8s.io/v1alpha4", cfg.APIVersion)
	require.Len(t, cfg.Nodes, 1)
	assert.Equal(t, "control-plane", cfg.Nodes[0].Role)
	require.Len(t, cfg.Nodes[0].ExtraPortMappings, 2)
	assert.Equal(t, 80, cfg.Nodes[0].ExtraPortMappings[0].ContainerPort)
	assert.Equal(t, 443, cfg.Nodes[0].ExtraPortMappings[1].ContainerPort)
}

func suggestionsContain(suggestions []string, fragment string) bool {
	for _, s := range suggestions {
		if strings.Contains(s, fragment) {
			return true
		}
	}
	return false
}
