// Package crossplane installs and manages Crossplane with the AWS provider
// on the bootstrap cluster.
package crossplane

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"k8s.io/client-go/kubernetes"

	"github.com/lago-morph/mk8/internal/creds"
	"github.com/lago-morph/mk8/internal/errdef"
	"github.com/lago-morph/mk8/internal/helm"
	"github.com/lago-morph/mk8/internal/k8s"
	"github.com/lago-morph/mk8/internal/kind"
	"github.com/lago-morph/mk8/internal/kubectl"
	"github.com/lago-morph/mk8/internal/readiness"
	"github.com/lago-morph/mk8/internal/teardown"
)

const (
	// Namespace is where the Crossplane control plane runs.
	Namespace = "crossplane-system"
	// Release is the helm release name.
	Release = "crossplane"

	repoName = "crossplane-stable"
	repoURL  = "https://charts.crossplane.io/stable"
	chart    = "crossplane-stable/crossplane"

	// ProviderName is the AWS provider package resource name.
	ProviderName = "provider-aws"
	providerPkg  = "xpkg.upbound.io/upbound/provider-aws-s3:v1.14.0"

	// SecretName holds the AWS credentials consumed by the provider.
	SecretName = "aws-credentials"
	secretKey  = "creds"

	// ProviderConfigName is the default ProviderConfig consumed by managed
	// resources that do not name one explicitly.
	ProviderConfigName = "default"

	podReadyTimeout      = 120 * time.Second
	podReadyInterval     = 5 * time.Second
	providerReadyTimeout = 300 * time.Second
	providerInterval     = 10 * time.Second
	configExistsTimeout  = 60 * time.Second
)

// helmClient is the helm surface the installer needs.
type helmClient interface {
	AddRepo(ctx context.Context, name, url string, force bool) error
	UpdateRepos(ctx context.Context) error
	Install(ctx context.Context, opts helm.InstallOptions) error
	Uninstall(ctx context.Context, release, namespace string, wait bool) error
	Status(ctx context.Context, release, namespace string) (*helm.ReleaseStatus, error)
	ReleaseExists(ctx context.Context, release, namespace string) bool
}

// kubectlClient is the kubectl surface the installer needs.
type kubectlClient interface {
	ApplyYAML(ctx context.Context, manifest []byte) error
	DeleteResource(ctx context.Context, resourceType, name, namespace string, ignoreNotFound bool) error
	ResourceExists(ctx context.Context, resourceType, name, namespace string) (bool, error)
	GetResourceJSON(ctx context.Context, resourceType, name, namespace string) (map[string]any, error)
	CreateSecret(ctx context.Context, name, namespace string, data map[string]string) error
	DeleteNamespace(ctx context.Context, name string) error
}

// Installer drives Crossplane install, provider setup, configuration,
// uninstall and status against the bootstrap cluster.
type Installer struct {
	logger  *slog.Logger
	helm    helmClient
	kubectl kubectlClient

	// newClientset builds a clientset for readiness checks; replaced in
	// tests.
	newClientset func() (kubernetes.Interface, error)

	podTimeout      time.Duration
	podInterval     time.Duration
	providerTimeout time.Duration
	configTimeout   time.Duration
}

// NewInstaller constructs an Installer targeting the bootstrap cluster
// context in the given kubeconfig. Empty kubeconfigPath selects the default
// file.
func NewInstaller(logger *slog.Logger, kubeconfigPath string) *Installer {
	return &Installer{
		logger:  logger,
		helm:    helm.NewClient(logger, kubeconfigPath, kind.ContextName),
		kubectl: kubectl.NewClient(logger, kubeconfigPath, kind.ContextName),
		newClientset: func() (kubernetes.Interface, error) {
			return k8s.BuildClientset(kubeconfigPath, kind.ContextName)
		},
		podTimeout:      podReadyTimeout,
		podInterval:     podReadyInterval,
		providerTimeout: providerReadyTimeout,
		configTimeout:   configExistsTimeout,
	}
}

// chartValues pins the control plane to a minimal footprint suitable for a
// local cluster.
func chartValues() map[string]any {
	return map[string]any{
		"replicas": 1,
		"resourcesCrossplane": map[string]any{
			"requests": map[string]any{"cpu": "100m", "memory": "256Mi"},
			"limits":   map[string]any{"cpu": "500m", "memory": "768Mi"},
		},
	}
}

// Install adds the Crossplane chart repository and installs the release,
// then waits until every pod in the Crossplane namespace is ready. version
// pins the chart version; empty installs the latest. A zero timeout uses the
// default.
func (i *Installer) Install(ctx context.Context, version string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = i.podTimeout
	}

	if i.helm.ReleaseExists(ctx, Release, Namespace) {
		return errdef.New(
			fmt.Sprintf("helm release %q already installed in %s", Release, Namespace),
			"Run 'mk8 crossplane status' to inspect it",
			"Run 'mk8 crossplane uninstall' to remove it first",
		)
	}

	if err := i.helm.AddRepo(ctx, repoName, repoURL, true); err != nil {
		return err
	}
	if err := i.helm.UpdateRepos(ctx); err != nil {
		return err
	}

	i.logger.Info("installing crossplane", "chart", chart, "version", version, "namespace", Namespace)
	err := i.helm.Install(ctx, helm.InstallOptions{
		Release:         Release,
		Chart:           chart,
		Namespace:       Namespace,
		Version:         version,
		Values:          chartValues(),
		CreateNamespace: true,
		Wait:            true,
		Timeout:         timeout,
	})
	if err != nil {
		return err
	}

	client, err := i.newClientset()
	if err != nil {
		return fmt.Errorf("building cluster client: %w", err)
	}
	if err := readiness.Wait(readiness.PodsReady(ctx, client, Namespace), timeout, i.podInterval); err != nil {
		return errdef.Wrap(err, "crossplane pods did not become ready",
			"Inspect pod state: kubectl get pods -n "+Namespace,
			"Check pod logs: kubectl logs -n "+Namespace+" -l app=crossplane",
		)
	}
	i.logger.Info("crossplane installed", "namespace", Namespace)
	return nil
}

// providerManifest is the AWS provider package declaration.
func providerManifest() []byte {
	return fmt.Appendf(nil, `apiVersion: pkg.crossplane.io/v1
kind: Provider
metadata:
  name: %s
spec:
  package: %s
`, ProviderName, providerPkg)
}

// InstallProvider applies the AWS provider package and waits until the
// provider reports a healthy condition. A zero timeout uses the default.
func (i *Installer) InstallProvider(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = i.providerTimeout
	}

	if err := i.kubectl.ApplyYAML(ctx, providerManifest()); err != nil {
		return err
	}

	i.logger.Info("waiting for provider", "name", ProviderName, "timeout", timeout)
	check := i.providerHealthy(ctx)
	if err := readiness.Wait(check, timeout, providerInterval); err != nil {
		return errdef.Wrap(err, "provider did not become healthy",
			"Inspect the provider: kubectl describe provider "+ProviderName,
			"Check provider pod logs in "+Namespace,
		)
	}
	i.logger.Info("provider ready", "name", ProviderName)
	return nil
}

// providerHealthy is a readiness check over the provider's first status
// condition. Providers are CRDs, so this goes through kubectl JSON output
// rather than a typed client.
func (i *Installer) providerHealthy(ctx context.Context) readiness.Check {
	return func() (bool, string) {
		resource, err := i.kubectl.GetResourceJSON(ctx, "provider.pkg.crossplane.io", ProviderName, "")
		if err != nil {
			return false, fmt.Sprintf("reading provider %s: %v", ProviderName, err)
		}
		return firstConditionTrue(resource)
	}
}

// firstConditionTrue inspects .status.conditions[0].status of a resource map.
func firstConditionTrue(resource map[string]any) (bool, string) {
	status, ok := resource["status"].(map[string]any)
	if !ok {
		return false, "no status reported yet"
	}
	conditions, ok := status["conditions"].([]any)
	if !ok || len(conditions) == 0 {
		return false, "no conditions reported yet"
	}
	first, ok := conditions[0].(map[string]any)
	if !ok {
		return false, "malformed condition"
	}
	if first["status"] == "True" {
		return true, ""
	}
	return false, fmt.Sprintf("condition %v is %v", first["type"], first["status"])
}

// providerConfigManifest binds the provider to the credentials secret.
func providerConfigManifest() []byte {
	return fmt.Appendf(nil, `apiVersion: aws.upbound.io/v1beta1
kind: ProviderConfig
metadata:
  name: %s
spec:
  credentials:
    source: Secret
    secretRef:
      namespace: %s
      name: %s
      key: %s
`, ProviderConfigName, Namespace, SecretName, secretKey)
}

// credentialsINI renders the AWS shared-credentials file format the provider
// expects inside the secret.
func credentialsINI(set creds.Credentials) string {
	return fmt.Sprintf("[default]\naws_access_key_id = %s\naws_secret_access_key = %s\n",
		set.AccessKeyID, set.SecretAccessKey)
}

// Configure stores AWS credentials in the cluster and applies the default
// ProviderConfig, waiting until it is visible.
func (i *Installer) Configure(ctx context.Context, set creds.Credentials) error {
	if !set.Complete() {
		return errdef.New("incomplete AWS credentials",
			"Run 'mk8 config' to configure credentials",
		).WithCode(errdef.ExitConfiguration)
	}

	if err := i.kubectl.CreateSecret(ctx, SecretName, Namespace, map[string]string{
		secretKey: credentialsINI(set),
	}); err != nil {
		return err
	}
	i.logger.Info("credentials secret created", "name", SecretName, "namespace", Namespace)

	if err := i.kubectl.ApplyYAML(ctx, providerConfigManifest()); err != nil {
		return err
	}

	check := func() (bool, string) {
		exists, err := i.kubectl.ResourceExists(ctx, "providerconfig.aws.upbound.io", ProviderConfigName, "")
		if err != nil {
			return false, fmt.Sprintf("checking providerconfig: %v", err)
		}
		if !exists {
			return false, "providerconfig not visible yet"
		}
		return true, ""
	}
	if err := readiness.Wait(check, i.configTimeout, providerInterval); err != nil {
		return errdef.Wrap(err, "providerconfig did not appear",
			"Inspect it: kubectl describe providerconfig "+ProviderConfigName,
		)
	}
	i.logger.Info("provider configured", "providerconfig", ProviderConfigName)
	return nil
}

// Uninstall removes the ProviderConfig, provider, helm release and namespace.
// Steps run to completion even when earlier ones fail; the report lists what
// was attempted and what failed.
func (i *Installer) Uninstall(ctx context.Context) *teardown.Report {
	return teardown.Run(i.logger, []teardown.Step{
		{
			Label: "delete providerconfig",
			Run: func() error {
				return i.kubectl.DeleteResource(ctx, "providerconfig.aws.upbound.io", ProviderConfigName, "", true)
			},
		},
		{
			Label: "delete provider",
			Run: func() error {
				return i.kubectl.DeleteResource(ctx, "provider.pkg.crossplane.io", ProviderName, "", true)
			},
		},
		{
			Label: "uninstall helm release",
			Run:   func() error { return i.helm.Uninstall(ctx, Release, Namespace, true) },
		},
		{
			Label: "delete namespace",
			Run:   func() error { return i.kubectl.DeleteNamespace(ctx, Namespace) },
		},
	})
}

// Status describes the Crossplane installation state.
type Status struct {
	ReleaseInstalled     bool
	ChartVersion         string
	PodSummary           string
	PodsReady            bool
	ProviderInstalled    bool
	ProviderReady        bool
	ProviderConfigExists bool
	Issues               []string
}

// Status reports the release, pod, provider and providerconfig state.
func (i *Installer) Status(ctx context.Context) (Status, error) {
	var status Status

	release, err := i.helm.Status(ctx, Release, Namespace)
	if err != nil || release == nil {
		status.Issues = append(status.Issues, "crossplane is not installed; run 'mk8 crossplane install'")
		return status, nil
	}
	status.ReleaseInstalled = true
	status.ChartVersion = release.Chart.Metadata.Version

	client, err := i.newClientset()
	if err != nil {
		status.Issues = append(status.Issues, "could not build cluster client: "+err.Error())
		return status, nil
	}
	ready, diagnostic := readiness.PodsReady(ctx, client, Namespace)()
	status.PodsReady = ready
	if ready {
		status.PodSummary = "all pods ready"
	} else {
		status.PodSummary = diagnostic
		status.Issues = append(status.Issues, "pods not ready: "+diagnostic)
	}

	installed, err := i.kubectl.ResourceExists(ctx, "provider.pkg.crossplane.io", ProviderName, "")
	if err != nil {
		status.Issues = append(status.Issues, "could not check provider: "+err.Error())
		return status, nil
	}
	status.ProviderInstalled = installed
	if installed {
		healthy, _ := i.providerHealthy(ctx)()
		status.ProviderReady = healthy
		if !healthy {
			status.Issues = append(status.Issues, "provider is not healthy")
		}
	} else {
		status.Issues = append(status.Issues, "provider is not installed; run 'mk8 crossplane install'")
	}

	exists, err := i.kubectl.ResourceExists(ctx, "providerconfig.aws.upbound.io", ProviderConfigName, "")
	if err != nil {
		status.Issues = append(status.Issues, "could not check providerconfig: "+err.Error())
		return status, nil
	}
	status.ProviderConfigExists = exists
	if !exists {
		status.Issues = append(status.Issues, "providerconfig is missing; run 'mk8 config'")
	}
	return status, nil
}
