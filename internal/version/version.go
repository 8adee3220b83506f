// Package version holds sonicweb build metadata, injected via ldflags:
//
//	go build -ldflags "-X github.com/kailas-cloud/sonicweb/internal/version.Version=v0.3.0"
package version

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String formats the build metadata for logs and the CLI.
func String() string {
	return Version + " (" + Commit + ", " + Date + ")"
}
