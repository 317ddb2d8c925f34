package kubeconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "config"))
}

func payload(server string) map[string]any {
	return map[string]any{"server": server}
}

func TestLoadAbsentFileReturnsDefault(t *testing.T) {
	store := newTestStore(t)

	doc, err := store.Load()
	require.NoError(t, err)

	assert.Equal(t, "v1", doc.APIVersion)
	assert.Equal(t, "Config", doc.Kind)
	assert.Empty(t, doc.Clusters)
	assert.Empty(t, doc.Contexts)
	assert.Empty(t, doc.Users)
	assert.Empty(t, doc.CurrentContext)
}

func TestLoadCorruptDocuments(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "invalid yaml", content: "clusters: [\n"},
		{name: "not a mapping", content: "- just\n- a\n- list\n"},
		{
			name:    "missing users field",
			content: "apiVersion: v1\nkind: Config\nclusters: []\ncontexts: []\n",
		},
		{
			name:    "missing kind field",
			content: "apiVersion: v1\nclusters: []\ncontexts: []\nusers: []\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			require.NoError(t, os.WriteFile(store.Path(), []byte(tt.content), 0o600))

			_, err := store.Load()
			var corrupt *CorruptError
			require.ErrorAs(t, err, &corrupt)
			assert.NotEmpty(t, corrupt.Suggestions())
		})
	}
}

func TestLoadPreservesForeignEntries(t *testing.T) {
	// Dangling context references are left alone: the store never validates
	// or repairs documents edited by other tools.
	content := `apiVersion: v1
kind: Config
clusters: []
contexts:
  - name: dangling
    context:
      cluster: gone
      user: gone
users: []
current-context: dangling
preferences: {}
`
	store := newTestStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte(content), 0o600))

	doc, err := store.Load()
	require.NoError(t, err)
	require.Len(t, doc.Contexts, 1)
	assert.Equal(t, "gone", doc.Contexts[0].Context["cluster"])
	assert.Equal(t, "dangling", doc.CurrentContext)
}

func TestAddClusterToEmptyConfig(t *testing.T) {
	store := newTestStore(t)

	resolved, err := store.AddCluster("demo", payload("https://127.0.0.1:6443"), true)
	require.NoError(t, err)
	assert.Equal(t, "demo", resolved)

	doc, err := store.Load()
	require.NoError(t, err)
	require.Len(t, doc.Clusters, 1)
	require.Len(t, doc.Contexts, 1)
	require.Len(t, doc.Users, 1)
	assert.Equal(t, "demo", doc.Clusters[0].Name)
	assert.Equal(t, "demo", doc.Contexts[0].Context["cluster"])
	assert.Equal(t, "demo", doc.Contexts[0].Context["user"])
	assert.Empty(t, doc.Users[0].User)
	assert.Equal(t, "demo", doc.CurrentContext)
}

func TestAddClusterResolvesNameCollisions(t *testing.T) {
	store := newTestStore(t)

	first, err := store.AddCluster("demo", payload("https://a"), false)
	require.NoError(t, err)
	second, err := store.AddCluster("demo", payload("https://b"), false)
	require.NoError(t, err)
	third, err := store.AddCluster("demo", payload("https://c"), false)
	require.NoError(t, err)

	assert.Equal(t, "demo", first)
	assert.Equal(t, "demo-2", second)
	assert.Equal(t, "demo-3", third)

	names, err := store.ListClusters()
	require.NoError(t, err)
	assert.Equal(t, []string{"demo", "demo-2", "demo-3"}, names)
}

func TestAddClusterWithoutSetCurrentLeavesContextAlone(t *testing.T) {
	store := newTestStore(t)

	_, err := store.AddCluster("base", payload("https://a"), true)
	require.NoError(t, err)
	_, err = store.AddCluster("extra", payload("https://b"), false)
	require.NoError(t, err)

	current, err := store.CurrentContext()
	require.NoError(t, err)
	assert.Equal(t, "base", current)
}

func TestRemoveClusterCascades(t *testing.T) {
	store := newTestStore(t)
	_, err := store.AddCluster("demo", payload("https://a"), true)
	require.NoError(t, err)
	_, err = store.AddCluster("other", payload("https://b"), false)
	require.NoError(t, err)

	require.NoError(t, store.RemoveCluster("demo", false))

	doc, err := store.Load()
	require.NoError(t, err)
	require.Len(t, doc.Clusters, 1)
	require.Len(t, doc.Contexts, 1)
	require.Len(t, doc.Users, 1)
	assert.Equal(t, "other", doc.Clusters[0].Name)
	assert.Equal(t, "other", doc.Contexts[0].Name)
	assert.Equal(t, "other", doc.Users[0].Name)
}

func TestRemoveClusterUnknownName(t *testing.T) {
	store := newTestStore(t)
	_, err := store.AddCluster("demo", payload("https://a"), true)
	require.NoError(t, err)

	err = store.RemoveCluster("missing", false)
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.Name)
}

func TestRemoveCurrentClusterRestoresRememberedContext(t *testing.T) {
	store := newTestStore(t)
	_, err := store.AddCluster("old", payload("https://a"), true)
	require.NoError(t, err)
	// Adding "demo" as current displaces "old" into the store's memory.
	_, err = store.AddCluster("demo", payload("https://b"), true)
	require.NoError(t, err)

	require.NoError(t, store.RemoveCluster("demo", true))

	current, err := store.CurrentContext()
	require.NoError(t, err)
	assert.Equal(t, "old", current)
}

func TestRemoveCurrentClusterFallsBackToFirstContext(t *testing.T) {
	store := newTestStore(t)
	// Empty previous-context memory: a brand new store instance.
	_, err := store.AddCluster("demo", payload("https://a"), true)
	require.NoError(t, err)
	_, err = store.AddCluster("other", payload("https://b"), false)
	require.NoError(t, err)

	fresh := NewStore(store.Path())
	require.NoError(t, fresh.RemoveCluster("demo", true))

	current, err := fresh.CurrentContext()
	require.NoError(t, err)
	assert.Equal(t, "other", current)
}

func TestRemoveLastClusterClearsCurrentContext(t *testing.T) {
	store := newTestStore(t)
	_, err := store.AddCluster("demo", payload("https://a"), true)
	require.NoError(t, err)

	require.NoError(t, store.RemoveCluster("demo", true))

	current, err := store.CurrentContext()
	require.NoError(t, err)
	assert.Empty(t, current)
}

func TestRemoveStaleMemoryFallsBackToFirstContext(t *testing.T) {
	store := newTestStore(t)
	_, err := store.AddCluster("old", payload("https://a"), true)
	require.NoError(t, err)
	_, err = store.AddCluster("demo", payload("https://b"), true)
	require.NoError(t, err)
	_, err = store.AddCluster("survivor", payload("https://c"), false)
	require.NoError(t, err)

	// The remembered context disappears before the current one is removed.
	require.NoError(t, store.RemoveCluster("old", false))
	require.NoError(t, store.RemoveCluster("demo", true))

	current, err := store.CurrentContext()
	require.NoError(t, err)
	assert.Equal(t, "survivor", current)
}

func TestPreviousContextMemoryIsPerInstance(t *testing.T) {
	store := newTestStore(t)
	_, err := store.AddCluster("old", payload("https://a"), true)
	require.NoError(t, err)
	_, err = store.AddCluster("demo", payload("https://b"), true)
	require.NoError(t, err)

	// A second store over the same file has no memory of "old".
	other := NewStore(store.Path())
	require.NoError(t, other.RemoveCluster("demo", true))

	current, err := other.CurrentContext()
	require.NoError(t, err)
	assert.Equal(t, "old", current) // first remaining context, not memory
}

func TestSetCurrentContext(t *testing.T) {
	store := newTestStore(t)
	_, err := store.AddCluster("a", payload("https://a"), true)
	require.NoError(t, err)
	_, err = store.AddCluster("b", payload("https://b"), false)
	require.NoError(t, err)

	require.NoError(t, store.SetCurrentContext("b"))

	current, err := store.CurrentContext()
	require.NoError(t, err)
	assert.Equal(t, "b", current)
}

func TestHasCluster(t *testing.T) {
	store := newTestStore(t)
	_, err := store.AddCluster("demo", payload("https://a"), false)
	require.NoError(t, err)

	ok, err := store.HasCluster("demo")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.HasCluster("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPersistRoundTrip(t *testing.T) {
	store := newTestStore(t)
	clusterPayload := map[string]any{
		"server":                     "https://127.0.0.1:6443",
		"certificate-authority-data": "Zm9vYmFy",
		"extensions":                 []any{map[string]any{"name": "x"}},
	}

	_, err := store.AddCluster("demo", clusterPayload, true)
	require.NoError(t, err)

	doc, err := store.Load()
	require.NoError(t, err)
	require.Len(t, doc.Clusters, 1)
	assert.Equal(t, "https://127.0.0.1:6443", doc.Clusters[0].Cluster["server"])
	assert.Equal(t, "Zm9vYmFy", doc.Clusters[0].Cluster["certificate-authority-data"])
	assert.Contains(t, doc.Clusters[0].Cluster, "extensions")
}

func TestPersistedFileIsKubectlShaped(t *testing.T) {
	store := newTestStore(t)
	_, err := store.AddCluster("demo", payload("https://127.0.0.1:6443"), true)
	require.NoError(t, err)

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, yaml.Unmarshal(data, &raw))
	for _, key := range []string{"apiVersion", "kind", "clusters", "contexts", "users", "current-context", "preferences"} {
		assert.Contains(t, raw, key)
	}
}

func TestPersistFailureLeavesDestinationUntouched(t *testing.T) {
	store := newTestStore(t)
	_, err := store.AddCluster("demo", payload("https://a"), true)
	require.NoError(t, err)

	before, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	// Functions cannot be serialized, so the write aborts before the rename.
	_, err = store.AddCluster("bad", map[string]any{"fn": func() {}}, true)
	var persistErr *PersistError
	require.ErrorAs(t, err, &persistErr)

	after, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, err = os.Stat(store.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must be cleaned up")
}

func TestPersistVerifyFailureLeavesDestinationUntouched(t *testing.T) {
	store := newTestStore(t)
	_, err := store.AddCluster("demo", payload("https://a"), true)
	require.NoError(t, err)

	before, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	// The written temp file no longer parses back; the rename must not happen.
	store.verify = func(path string, data []byte) (*Document, error) {
		return nil, &CorruptError{Path: path, Reason: "mangled on disk"}
	}

	_, err = store.AddCluster("next", payload("https://b"), true)
	var persistErr *PersistError
	require.ErrorAs(t, err, &persistErr)
	assert.Equal(t, "verify temp file", persistErr.Op)

	after, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, err = os.Stat(store.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must be cleaned up")
}

func TestMutationsPreserveForeignDocumentFields(t *testing.T) {
	// Fields this store does not model, such as top-level extensions and a
	// context namespace set by another tool, must survive every mutation.
	content := `apiVersion: v1
kind: Config
clusters:
  - name: prod
    cluster:
      server: https://prod.example.com
contexts:
  - name: prod
    context:
      cluster: prod
      user: prod
      namespace: team-a
users:
  - name: prod
    user:
      token: shh
current-context: prod
preferences: {}
extensions:
  - name: audit
    extension:
      owner: platform
`
	store := newTestStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte(content), 0o600))

	_, err := store.AddCluster("demo", payload("https://127.0.0.1:6443"), true)
	require.NoError(t, err)
	assertForeignFieldsIntact(t, store.Path())

	require.NoError(t, store.RemoveCluster("demo", true))
	assertForeignFieldsIntact(t, store.Path())
}

// assertForeignFieldsIntact re-reads the file raw and checks the unmanaged
// fields planted by TestMutationsPreserveForeignDocumentFields are still there.
func assertForeignFieldsIntact(t *testing.T, path string) {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, yaml.Unmarshal(data, &raw))

	assert.Contains(t, raw, "extensions")

	contexts, ok := raw["contexts"].([]any)
	require.True(t, ok)
	for _, entry := range contexts {
		m, ok := entry.(map[string]any)
		require.True(t, ok)
		if m["name"] != "prod" {
			continue
		}
		body, ok := m["context"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "team-a", body["namespace"])
		return
	}
	t.Fatalf("context entry %q missing after mutation", "prod")
}

func TestPersistSetsOwnerOnlyPermissions(t *testing.T) {
	store := newTestStore(t)
	_, err := store.AddCluster("demo", payload("https://a"), true)
	require.NoError(t, err)

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestBackupRetention(t *testing.T) {
	store := newTestStore(t)

	// Six writes over an existing file create five surviving backups: the
	// first write has no prior file to back up, and the oldest snapshot of
	// the remaining six is pruned.
	_, err := store.AddCluster("seed", payload("https://seed"), true)
	require.NoError(t, err)

	backupDir := backupDirFor(store.Path())
	for i := 0; i < 6; i++ {
		_, err := store.AddCluster("demo", payload("https://x"), false)
		require.NoError(t, err)
		staggerBackupTimes(t, backupDir)
	}

	entries, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}

func TestBackupPrunesOldestFirst(t *testing.T) {
	store := newTestStore(t)
	_, err := store.AddCluster("seed", payload("https://seed"), true)
	require.NoError(t, err)

	backupDir := backupDirFor(store.Path())
	require.NoError(t, os.MkdirAll(backupDir, 0o700))

	// Pre-seed stale backups with well-known ages.
	base := time.Now().Add(-time.Hour)
	stale := []string{"config.backup.ancient", "config.backup.older", "config.backup.old"}
	for i, name := range stale {
		p := filepath.Join(backupDir, name)
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
		require.NoError(t, os.Chtimes(p, base.Add(time.Duration(i)*time.Minute), base.Add(time.Duration(i)*time.Minute)))
	}

	store.SetMaxBackups(3)
	_, err = store.AddCluster("demo", payload("https://x"), false)
	require.NoError(t, err)

	entries, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.NotContains(t, names, "config.backup.ancient")
}

func TestBackupIsByteForByteCopy(t *testing.T) {
	store := newTestStore(t)
	_, err := store.AddCluster("demo", payload("https://a"), true)
	require.NoError(t, err)

	before, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	_, err = store.AddCluster("second", payload("https://b"), false)
	require.NoError(t, err)

	entries, err := os.ReadDir(backupDirFor(store.Path()))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	snapshot, err := os.ReadFile(filepath.Join(backupDirFor(store.Path()), entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, before, snapshot)
}

// staggerBackupTimes spreads backup modification times apart so that
// oldest-first pruning is deterministic on filesystems with coarse mtime
// resolution.
func staggerBackupTimes(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	base := time.Now().Add(-time.Duration(len(entries)) * time.Minute)
	for i, e := range entries {
		p := filepath.Join(dir, e.Name())
		ts := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(p, ts, ts))
	}
}
