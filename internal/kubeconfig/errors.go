package kubeconfig

import "fmt"

// CorruptError reports a kubeconfig file that exists but cannot be trusted:
// malformed YAML, a non-mapping document, or a missing structural field.
type CorruptError struct {
	Path   string
	Reason string
	cause  error
}

// Error implements the error interface.
func (e *CorruptError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("kubeconfig %s is corrupt: %s: %v", e.Path, e.Reason, e.cause)
	}
	return fmt.Sprintf("kubeconfig %s is corrupt: %s", e.Path, e.Reason)
}

// Unwrap exposes the underlying parse error, if any.
func (e *CorruptError) Unwrap() error { return e.cause }

// Suggestions returns remediation hints for a corrupt kubeconfig.
func (e *CorruptError) Suggestions() []string {
	return []string{
		"Validate YAML syntax: yamllint " + e.Path,
		"Restore from a backup in " + backupDirFor(e.Path),
		"Recreate the kubeconfig file from scratch",
	}
}

// NotFoundError reports a removal of a cluster name that has no entry.
type NotFoundError struct {
	Name string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("cluster %q not found in kubeconfig", e.Name)
}

// Suggestions returns remediation hints for an unknown cluster name.
func (e *NotFoundError) Suggestions() []string {
	return []string{
		"List known clusters: kubectl config get-clusters",
		"Check the cluster name spelling",
	}
}

// PersistError reports an I/O failure during the atomic write sequence. The
// destination file is guaranteed to hold either its previous content or the
// fully written new content.
type PersistError struct {
	Path  string
	Op    string
	cause error
}

// Error implements the error interface.
func (e *PersistError) Error() string {
	return fmt.Sprintf("persist kubeconfig %s: %s: %v", e.Path, e.Op, e.cause)
}

// Unwrap exposes the underlying I/O error.
func (e *PersistError) Unwrap() error { return e.cause }

// Suggestions returns remediation hints for a failed write.
func (e *PersistError) Suggestions() []string {
	return []string{
		"Check directory permissions",
		"Verify you can write to " + e.Path,
		"Ensure sufficient disk space",
	}
}
