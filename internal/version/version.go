// Package version holds build metadata injected by the linker.
package version

// Set via -ldflags "-X github.com/mj1618/tab-bridge/internal/version.Version=...".
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)
