// Package version holds the build version string.
package version

// Version is the formwatch release version. Overridden at build time via
// -ldflags "-X github.com/formwatch/formwatch/internal/version.Version=...".
var Version = "0.1.0-dev"
