// Package buildmeta carries build-time version information.
package buildmeta

import "fmt"

// Populated at build time via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String renders the version line printed by 'mk8 version'.
func String() string {
	return fmt.Sprintf("mk8 %s (commit %s, built %s)", Version, Commit, Date)
}
