// Package version holds build information for pagegen.
// These variables are set at build time via ldflags by goreleaser.
package version

import "fmt"

// Build information variables - set by goreleaser via ldflags.
// Example: go build -ldflags "-X pagegen/pkg/version.Version=v1.2.3".
//
//nolint:gochecknoglobals // These must be package-level vars for ldflags injection.
var (
	// Version is the semantic version, or "dev" for development builds.
	Version = "dev"
	// Commit is the git commit SHA of the build.
	Commit = "none"
	// Date is the build date in ISO format.
	Date = "unknown"
)

// String renders the multi-line banner printed by `pagegen version`.
func String() string {
	return fmt.Sprintf("pagegen %s\n  commit: %s\n  built:  %s\n", Version, Commit, Date)
}
