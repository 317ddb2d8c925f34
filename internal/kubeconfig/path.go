package kubeconfig

import (
	"os"
	"path/filepath"
	"strings"
)

// EnvVar is the environment variable that overrides the kubeconfig location.
const EnvVar = "KUBECONFIG"

// ResolvePath returns the kubeconfig path to use: the KUBECONFIG environment
// variable when set, otherwise ~/.kube/config. When KUBECONFIG holds a
// colon-delimited list only the first path is used; multi-path search and
// merge across entries is not implemented.
func ResolvePath() string {
	if value := strings.TrimSpace(os.Getenv(EnvVar)); value != "" {
		first, _, _ := strings.Cut(value, ":")
		if first != "" {
			return first
		}
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".kube", "config")
}
