// Package version holds build metadata injected at link time:
//
//	go build -ldflags "-X github.com/chaptermill/chaptermill/version.GitRelease=v0.1.0"
package version

import "runtime"

var (
	// GitRelease is the release tag or "dev" for local builds.
	GitRelease = "dev"
	// GitCommit is the commit hash the binary was built from.
	GitCommit = "unknown"
	// GitCommitDate is the commit timestamp.
	GitCommitDate = "unknown"
	// GoInfo is the toolchain that built the binary.
	GoInfo = runtime.Version()
)
