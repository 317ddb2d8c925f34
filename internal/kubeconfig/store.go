package kubeconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultMaxBackups is the number of backup snapshots retained by default.
	DefaultMaxBackups = 5

	fileMode = os.FileMode(0o600)
	dirMode  = os.FileMode(0o700)
)

// Store owns read-modify-write access to one kubeconfig file. Every operation
// loads the document, mutates it in memory and persists it within the same
// call; no document state survives across calls.
//
// Two processes writing the same file are not coordinated: the atomic rename
// protects readers from torn files, but racing writers clobber each other
// (last write wins).
type Store struct {
	path       string
	maxBackups int

	// previousContext remembers the current-context that was displaced by the
	// last context-changing mutation on this instance. It is consulted only
	// when the then-current entry is later removed. Instance state on purpose:
	// a fresh store starts with no memory.
	previousContext string

	// verify re-parses the freshly written temp file before it replaces the
	// destination. Defaults to parseDocument; tests swap it to exercise the
	// failure path.
	verify func(path string, data []byte) (*Document, error)
}

// NewStore constructs a store for the given kubeconfig path. An empty path
// resolves via ResolvePath.
func NewStore(path string) *Store {
	if path == "" {
		path = ResolvePath()
	}
	return &Store{path: path, maxBackups: DefaultMaxBackups, verify: parseDocument}
}

// SetMaxBackups overrides the backup retention count.
func (s *Store) SetMaxBackups(n int) {
	if n >= 0 {
		s.maxBackups = n
	}
}

// Path returns the kubeconfig file path this store operates on.
func (s *Store) Path() string { return s.path }

// Load reads and parses the kubeconfig file. An absent file is not an error:
// it yields a fresh default document. A present but unparsable file, or one
// missing a required structural field, yields a *CorruptError.
func (s *Store) Load() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return newDocument(), nil
	}
	if err != nil {
		return nil, &CorruptError{Path: s.path, Reason: "unreadable", cause: err}
	}
	return parseDocument(s.path, data)
}

// AddCluster registers a cluster in the kubeconfig. When the desired name is
// already taken, name-2, name-3, ... are probed and the first unused suffix
// wins. A cluster, context and empty user entry are appended under the
// resolved name. With setCurrent the displaced current-context is remembered
// before the new one is set. Returns the resolved name so callers can
// reconcile identifiers.
func (s *Store) AddCluster(name string, payload map[string]any, setCurrent bool) (string, error) {
	doc, err := s.Load()
	if err != nil {
		return "", err
	}

	resolved := resolveNameConflict(name, doc.clusterNames())

	doc.Clusters = append(doc.Clusters, NamedCluster{Name: resolved, Cluster: payload})
	doc.Contexts = append(doc.Contexts, NamedContext{
		Name:    resolved,
		Context: map[string]any{"cluster": resolved, "user": resolved},
	})
	doc.Users = append(doc.Users, NamedUser{Name: resolved, User: map[string]any{}})

	if setCurrent {
		s.previousContext = doc.CurrentContext
		doc.CurrentContext = resolved
	}

	if err := s.persist(doc); err != nil {
		return "", err
	}
	return resolved, nil
}

// RemoveCluster removes every cluster, context and user entry named name,
// leaving differently named entries untouched. When the removed name was the
// current context, the remembered previous context is restored if
// restorePrevious is set and that context still exists; otherwise the first
// remaining context is selected, or the current context is cleared when none
// remain.
func (s *Store) RemoveCluster(name string, restorePrevious bool) error {
	doc, err := s.Load()
	if err != nil {
		return err
	}
	if !doc.hasCluster(name) {
		return &NotFoundError{Name: name}
	}

	doc.Clusters = filterClusters(doc.Clusters, name)
	doc.Contexts = filterContexts(doc.Contexts, name)
	doc.Users = filterUsers(doc.Users, name)

	if doc.CurrentContext == name {
		doc.CurrentContext = s.nextContext(doc, restorePrevious)
	}

	return s.persist(doc)
}

// nextContext picks the current-context replacement after a removal.
func (s *Store) nextContext(doc *Document, restorePrevious bool) string {
	if restorePrevious && s.previousContext != "" && doc.hasContext(s.previousContext) {
		return s.previousContext
	}
	if len(doc.Contexts) > 0 {
		return doc.Contexts[0].Name
	}
	return ""
}

// CurrentContext returns the active context name, or empty when unset.
func (s *Store) CurrentContext() (string, error) {
	doc, err := s.Load()
	if err != nil {
		return "", err
	}
	return doc.CurrentContext, nil
}

// SetCurrentContext switches the active context, remembering the displaced one.
func (s *Store) SetCurrentContext(name string) error {
	doc, err := s.Load()
	if err != nil {
		return err
	}
	s.previousContext = doc.CurrentContext
	doc.CurrentContext = name
	return s.persist(doc)
}

// ListClusters returns the names of all cluster entries in list order.
func (s *Store) ListClusters() ([]string, error) {
	doc, err := s.Load()
	if err != nil {
		return nil, err
	}
	return doc.clusterNames(), nil
}

// HasCluster reports whether a cluster entry with the given name exists.
func (s *Store) HasCluster(name string) (bool, error) {
	doc, err := s.Load()
	if err != nil {
		return false, err
	}
	return doc.hasCluster(name), nil
}

// persist writes the candidate document using the atomic-write contract:
// backup the existing file, serialize into a sibling temp file, confirm the
// temp file round-trips, rename it over the destination, tighten permissions
// and prune old backups. On any failure the destination keeps either its
// previous content or the fully written new content, and the temp file is
// removed.
func (s *Store) persist(doc *Document) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return &PersistError{Path: s.path, Op: "create directory", cause: err}
	}

	if _, err := os.Stat(s.path); err == nil {
		if err := s.backup(); err != nil {
			return err
		}
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return &PersistError{Path: s.path, Op: "serialize", cause: err}
	}

	tmp := s.path + ".tmp"
	defer func() { _ = os.Remove(tmp) }()

	if err := os.WriteFile(tmp, data, fileMode); err != nil {
		return &PersistError{Path: s.path, Op: "write temp file", cause: err}
	}

	// Paranoia check before committing: the bytes on disk must parse back
	// into a valid document. A failure here aborts with the destination
	// untouched.
	written, err := os.ReadFile(tmp)
	if err != nil {
		return &PersistError{Path: s.path, Op: "verify temp file", cause: err}
	}
	if _, err := s.verify(tmp, written); err != nil {
		return &PersistError{Path: s.path, Op: "verify temp file", cause: err}
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return &PersistError{Path: s.path, Op: "rename", cause: err}
	}
	if err := os.Chmod(s.path, fileMode); err != nil {
		return &PersistError{Path: s.path, Op: "chmod", cause: err}
	}

	// Retention pruning is best effort; a failed cleanup never fails the write.
	s.pruneBackups()
	return nil
}

// resolveNameConflict returns desired unchanged when unused, otherwise the
// first free desired-N suffix starting at 2.
func resolveNameConflict(desired string, existing []string) string {
	taken := make(map[string]struct{}, len(existing))
	for _, name := range existing {
		taken[name] = struct{}{}
	}
	if _, ok := taken[desired]; !ok {
		return desired
	}
	for suffix := 2; ; suffix++ {
		candidate := fmt.Sprintf("%s-%d", desired, suffix)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}

func filterClusters(entries []NamedCluster, name string) []NamedCluster {
	out := entries[:0]
	for _, e := range entries {
		if e.Name != name {
			out = append(out, e)
		}
	}
	return out
}

func filterContexts(entries []NamedContext, name string) []NamedContext {
	out := entries[:0]
	for _, e := range entries {
		if e.Name != name {
			out = append(out, e)
		}
	}
	return out
}

func filterUsers(entries []NamedUser, name string) []NamedUser {
	out := entries[:0]
	for _, e := range entries {
		if e.Name != name {
			out = append(out, e)
		}
	}
	return out
}
