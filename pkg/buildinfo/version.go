// Package buildinfo exposes the version stamped into satie binaries.
//
// Release builds set the variables with ldflags:
//
//	go build -ldflags "-X github.com/jocelyn-stericker/satie-sub004/pkg/buildinfo.Version=v0.4.0 \
//	    -X github.com/jocelyn-stericker/satie-sub004/pkg/buildinfo.Commit=$(git rev-parse --short HEAD) \
//	    -X github.com/jocelyn-stericker/satie-sub004/pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/satie
package buildinfo

import "fmt"

var (
	// Version is the semantic version, or "dev" for local builds.
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// String returns the formatted build information.
func String() string {
	return fmt.Sprintf("version: %s\ncommit: %s\nbuilt: %s", Version, Commit, Date)
}

// Template returns the version template string for cobra.
func Template() string {
	return fmt.Sprintf("{{.Name}} %s\ncommit: %s\nbuilt: %s\n", Version, Commit, Date)
}

// ServerHeader is the value of the Server header sent by satie serve.
func ServerHeader() string {
	return "satie/" + Version
}
