// Package bootstrap orchestrates the local bootstrap cluster lifecycle:
// prerequisite checks, kind cluster provisioning, readiness, and kubeconfig
// registration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"k8s.io/client-go/kubernetes"

	"github.com/lago-morph/mk8/internal/errdef"
	"github.com/lago-morph/mk8/internal/k8s"
	"github.com/lago-morph/mk8/internal/kind"
	"github.com/lago-morph/mk8/internal/kubeconfig"
	"github.com/lago-morph/mk8/internal/prereq"
	"github.com/lago-morph/mk8/internal/readiness"
	"github.com/lago-morph/mk8/internal/teardown"
)

const (
	nodeReadyTimeout  = 300 * time.Second
	nodeReadyInterval = 5 * time.Second
)

// kindClient is the kind operation surface the orchestrator needs.
type kindClient interface {
	Exists(ctx context.Context) bool
	Create(ctx context.Context, kubernetesVersion string) error
	Delete(ctx context.Context) error
	Kubeconfig(ctx context.Context) (string, error)
}

// configStore is the kubeconfig registration surface.
type configStore interface {
	AddCluster(name string, payload map[string]any, setCurrent bool) (string, error)
	RemoveCluster(name string, restorePrevious bool) error
	HasCluster(name string) (bool, error)
}

// prereqValidator checks external tools before any cluster operation.
type prereqValidator interface {
	Validate(ctx context.Context, tools ...string) error
}

// Orchestrator drives bootstrap cluster create, delete and status.
type Orchestrator struct {
	logger  *slog.Logger
	kind    kindClient
	store   configStore
	prereqs prereqValidator

	// newClientset builds a clientset from raw kubeconfig bytes; replaced
	// in tests.
	newClientset func(raw string) (kubernetes.Interface, error)

	waitTimeout  time.Duration
	waitInterval time.Duration
}

// New constructs an Orchestrator with real collaborators. kubeconfigPath
// selects the kubeconfig file to register clusters in; empty means the
// default resolution.
func New(logger *slog.Logger, kubeconfigPath string) *Orchestrator {
	return &Orchestrator{
		logger:       logger,
		kind:         kind.NewClient(logger),
		store:        kubeconfig.NewStore(kubeconfigPath),
		prereqs:      prereq.NewChecker(logger),
		newClientset: clientsetFromRaw,
		waitTimeout:  nodeReadyTimeout,
		waitInterval: nodeReadyInterval,
	}
}

// Create provisions the bootstrap cluster, waits for its node to become
// ready, and registers it in the kubeconfig as the current context.
// kubernetesVersion is optional; forceRecreate tears down an existing
// cluster first instead of failing.
func (o *Orchestrator) Create(ctx context.Context, kubernetesVersion string, forceRecreate bool) error {
	if err := o.prereqs.Validate(ctx, prereq.ToolDocker, prereq.ToolKind, prereq.ToolKubectl); err != nil {
		return err
	}

	if o.kind.Exists(ctx) {
		if !forceRecreate {
			return errdef.New(
				fmt.Sprintf("bootstrap cluster %q already exists", kind.ClusterName),
				"Pass --force-recreate to replace it",
				"Run 'mk8 bootstrap delete' to remove it first",
				"Run 'mk8 bootstrap status' to inspect it",
			)
		}
		o.logger.Info("replacing existing bootstrap cluster", "name", kind.ClusterName)
		if report := o.Delete(ctx); !report.OK() {
			return report.Err()
		}
	}

	if err := o.kind.Create(ctx, kubernetesVersion); err != nil {
		return err
	}
	o.logger.Info("bootstrap cluster created", "name", kind.ClusterName)

	raw, err := o.kind.Kubeconfig(ctx)
	if err != nil {
		return err
	}

	client, err := o.newClientset(raw)
	if err != nil {
		return fmt.Errorf("building cluster client: %w", err)
	}
	o.logger.Info("waiting for node readiness", "timeout", o.waitTimeout)
	if err := readiness.Wait(readiness.NodesReady(ctx, client), o.waitTimeout, o.waitInterval); err != nil {
		return errdef.Wrap(err, "bootstrap cluster did not become ready",
			"Check cluster state: kubectl get nodes --context "+kind.ContextName,
			"Export cluster logs: kind export logs --name "+kind.ClusterName,
		)
	}

	payload, err := clusterPayload(raw)
	if err != nil {
		return err
	}
	resolved, err := o.store.AddCluster(kind.ContextName, payload, true)
	if err != nil {
		// The cluster is up at this point; a registration failure is not
		// worth tearing it down over. The user can wire kubectl up manually.
		o.logger.Warn("cluster created but kubeconfig registration failed",
			"error", err,
			"hint", "configure kubectl access manually, e.g. kind export kubeconfig --name "+kind.ClusterName,
		)
		return nil
	}
	o.logger.Info("cluster registered in kubeconfig", "name", resolved)
	return nil
}

// Delete tears the bootstrap cluster down and unregisters it from the
// kubeconfig. Steps run to completion even when earlier ones fail; the
// report lists what was attempted and what failed.
func (o *Orchestrator) Delete(ctx context.Context) *teardown.Report {
	return teardown.Run(o.logger, []teardown.Step{
		{
			Label: "delete kind cluster",
			Run:   func() error { return o.kind.Delete(ctx) },
		},
		{
			Label: "remove kubeconfig entry",
			Run: func() error {
				err := o.store.RemoveCluster(kind.ContextName, true)
				var notFound *kubeconfig.NotFoundError
				if errors.As(err, &notFound) {
					o.logger.Debug("kubeconfig entry already absent", "name", kind.ContextName)
					return nil
				}
				return err
			},
		},
	})
}

// Status describes the bootstrap cluster's current state.
type Status struct {
	Exists        bool
	Registered    bool
	ServerVersion string
	NodeSummary   string
	Ready         bool
	Issues        []string
}

// Status reports cluster existence, kubeconfig registration, server version
// and node readiness.
func (o *Orchestrator) Status(ctx context.Context) (Status, error) {
	var status Status

	status.Exists = o.kind.Exists(ctx)
	if !status.Exists {
		status.Issues = append(status.Issues, "bootstrap cluster does not exist; run 'mk8 bootstrap create'")
		return status, nil
	}

	registered, err := o.store.HasCluster(kind.ContextName)
	if err != nil {
		return status, err
	}
	status.Registered = registered
	if !registered {
		status.Issues = append(status.Issues, "cluster is not registered in the kubeconfig")
	}

	raw, err := o.kind.Kubeconfig(ctx)
	if err != nil {
		status.Issues = append(status.Issues, "could not read cluster kubeconfig: "+err.Error())
		return status, nil
	}
	client, err := o.newClientset(raw)
	if err != nil {
		status.Issues = append(status.Issues, "could not build cluster client: "+err.Error())
		return status, nil
	}

	if version, err := client.Discovery().ServerVersion(); err == nil {
		status.ServerVersion = version.GitVersion
	} else {
		status.Issues = append(status.Issues, "could not query server version: "+err.Error())
	}

	ready, diagnostic := readiness.NodesReady(ctx, client)()
	status.Ready = ready
	if ready {
		status.NodeSummary = "all nodes ready"
	} else {
		status.NodeSummary = diagnostic
		status.Issues = append(status.Issues, "nodes not ready: "+diagnostic)
	}
	return status, nil
}

// clusterPayload extracts the first cluster entry's connection payload from
// raw kubeconfig YAML.
func clusterPayload(raw string) (map[string]any, error) {
	var doc kubeconfig.Document
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("parsing kind kubeconfig output: %w", err)
	}
	if len(doc.Clusters) == 0 {
		return nil, errors.New("kind kubeconfig output contains no clusters")
	}
	return doc.Clusters[0].Cluster, nil
}

// clientsetFromRaw materializes raw kubeconfig bytes into a temp file and
// builds a clientset against it.
func clientsetFromRaw(raw string) (kubernetes.Interface, error) {
	tmp, err := os.CreateTemp("", "mk8-kubeconfig-*.yaml")
	if err != nil {
		return nil, fmt.Errorf("creating temp kubeconfig: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(raw); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("writing temp kubeconfig: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("closing temp kubeconfig: %w", err)
	}
	return k8s.BuildClientset(tmp.Name(), kind.ContextName)
}
