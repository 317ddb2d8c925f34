// Package kubeconfig implements the local kubeconfig synchronization engine:
// an atomically persisted document store with timestamped backups, cascading
// cluster/context/user entries, and current-context restoration.
package kubeconfig

import (
	"gopkg.in/yaml.v3"
)

// Document is the persisted kubeconfig structure. The shape stays compatible
// with kubectl's own reader, which consumes the same file.
type Document struct {
	// APIVersion and Kind are opaque passthrough values; the store requires
	// them to exist but never interprets them.
	APIVersion string `yaml:"apiVersion"`
	Kind       string `yaml:"kind"`
	// Clusters, Contexts and Users are ordered entry lists.
	Clusters []NamedCluster `yaml:"clusters"`
	Contexts []NamedContext `yaml:"contexts"`
	Users    []NamedUser    `yaml:"users"`
	// CurrentContext names the active context; empty means unset.
	CurrentContext string `yaml:"current-context"`
	// Preferences is a free-form blob preserved across writes.
	Preferences map[string]any `yaml:"preferences"`
	// Extra captures top-level keys this store does not model, such as
	// extensions. They round-trip through every load/persist cycle untouched.
	Extra map[string]any `yaml:",inline"`
}

// NamedCluster is a cluster entry. The payload holds connection data (server
// URL, certificate material) supplied by callers and is never interpreted here.
type NamedCluster struct {
	Name    string         `yaml:"name"`
	Cluster map[string]any `yaml:"cluster"`
	Extra   map[string]any `yaml:",inline"`
}

// NamedContext is a context entry binding one cluster to one user. Entries
// created through this store use the same name for the cluster and user keys;
// foreign entries may carry additional keys (namespace, extensions) which the
// free-form body preserves verbatim.
type NamedContext struct {
	Name    string         `yaml:"name"`
	Context map[string]any `yaml:"context"`
	Extra   map[string]any `yaml:",inline"`
}

// NamedUser is a credential entry. It is created empty and populated later by
// collaborators that write credential material.
type NamedUser struct {
	Name  string         `yaml:"name"`
	User  map[string]any `yaml:"user"`
	Extra map[string]any `yaml:",inline"`
}

// requiredFields are the structural keys that must exist after a successful
// load. Absence signals corruption, not an empty default.
var requiredFields = []string{"apiVersion", "kind", "clusters", "contexts", "users"}

// newDocument returns the fresh default document used when no file exists yet.
func newDocument() *Document {
	return &Document{
		APIVersion:  "v1",
		Kind:        "Config",
		Clusters:    []NamedCluster{},
		Contexts:    []NamedContext{},
		Users:       []NamedUser{},
		Preferences: map[string]any{},
	}
}

// parseDocument decodes raw kubeconfig bytes, validating the structural
// invariant before committing to the typed model. Dangling context references
// are deliberately not validated; documents edited by other tools are taken
// as-is.
func parseDocument(path string, data []byte) (*Document, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &CorruptError{Path: path, Reason: "invalid YAML", cause: err}
	}
	if raw == nil {
		return nil, &CorruptError{Path: path, Reason: "document is not a mapping"}
	}
	for _, field := range requiredFields {
		if _, ok := raw[field]; !ok {
			return nil, &CorruptError{Path: path, Reason: "missing required field " + field}
		}
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &CorruptError{Path: path, Reason: "unexpected field types", cause: err}
	}
	return &doc, nil
}

// clusterNames returns the names of all cluster entries in list order.
func (d *Document) clusterNames() []string {
	names := make([]string, 0, len(d.Clusters))
	for _, c := range d.Clusters {
		names = append(names, c.Name)
	}
	return names
}

// hasCluster reports whether a cluster entry with the given name exists.
func (d *Document) hasCluster(name string) bool {
	for _, c := range d.Clusters {
		if c.Name == name {
			return true
		}
	}
	return false
}

// hasContext reports whether a context entry with the given name exists.
func (d *Document) hasContext(name string) bool {
	for _, c := range d.Contexts {
		if c.Name == name {
			return true
		}
	}
	return false
}
