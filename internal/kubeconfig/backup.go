package kubeconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	backupDirName   = "backups"
	backupPrefix    = "config.backup."
	backupTimestamp = "2006-01-02T15-04-05"
)

// backupDirFor returns the backup directory for a given kubeconfig path.
func backupDirFor(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), backupDirName)
}

// backup copies the current kubeconfig file byte-for-byte into the backups
// directory under a second-resolution timestamp name.
func (s *Store) backup() error {
	dir := backupDirFor(s.path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return &PersistError{Path: s.path, Op: "create backup directory", cause: err}
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return &PersistError{Path: s.path, Op: "read for backup", cause: err}
	}

	target := nextBackupPath(dir, time.Now())
	if err := os.WriteFile(target, data, fileMode); err != nil {
		return &PersistError{Path: s.path, Op: "write backup", cause: err}
	}
	return nil
}

// nextBackupPath returns an unused backup path for the given time. Timestamps
// have second resolution, so consecutive writes within one second get a
// numeric suffix instead of silently overwriting the previous snapshot.
func nextBackupPath(dir string, now time.Time) string {
	base := filepath.Join(dir, backupPrefix+now.Format(backupTimestamp))
	candidate := base
	for suffix := 2; ; suffix++ {
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d", base, suffix)
	}
}

// pruneBackups removes backup files beyond the retention count, oldest by
// modification time first. Errors are swallowed: a failed cleanup must never
// fail the write that triggered it.
func (s *Store) pruneBackups() {
	dir := backupDirFor(s.path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	type backupFile struct {
		path    string
		modTime time.Time
	}
	var backups []backupFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), backupPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, backupFile{
			path:    filepath.Join(dir, entry.Name()),
			modTime: info.ModTime(),
		})
	}

	if len(backups) <= s.maxBackups {
		return
	}

	// Newest first; everything past the retention count goes.
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].modTime.After(backups[j].modTime)
	})
	for _, old := range backups[s.maxBackups:] {
		_ = os.Remove(old.path)
	}
}
