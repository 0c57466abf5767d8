// Package version reports streamkit build metadata.
//
// Release builds stamp the values with -ldflags:
//
//	go build -ldflags "-X github.com/kbukum/streamkit/version.Version=1.0.0" ./cmd/streamkit
//
// Unstamped builds fall back to the VCS settings recorded by the Go
// toolchain.
package version
