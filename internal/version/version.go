// Package version carries build metadata, overridable at link time:
//
//	go build -ldflags "-X github.com/aristath/esgrade/internal/version.Version=v1.2.0"
package version

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)
