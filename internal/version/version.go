// Package version holds the module's build-time version string,
// following the teacher's pkg/version convention: a package-level
// variable overridable via -ldflags at build time, defaulting to
// "dev" for local builds.
package version

// Version is overridden at release build time via:
//
//	-ldflags "-X github.com/duckhq/duckwatch/internal/version.Version=1.2.3"
var Version = "dev"
