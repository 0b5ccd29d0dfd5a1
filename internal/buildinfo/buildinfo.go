// Package buildinfo carries the version stamped at build time via ldflags:
//
//	-X github.com/goodtune/smsgate/internal/buildinfo.version=v1.2.3
//	-X github.com/goodtune/smsgate/internal/buildinfo.gitHash=abc1234
package buildinfo

var (
	version = "dev"
	gitHash = "unknown"
)

// Version returns the release version, or "dev" for unstamped builds.
func Version() string {
	return version
}

// GitHash returns the short commit hash the binary was built from.
func GitHash() string {
	return gitHash
}
