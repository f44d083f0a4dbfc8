// Package version exposes build metadata for the smart-office binaries.
//
// Version, Commit and BuildTime are injected via ldflags. When Commit is not
// injected, the VCS revision recorded by the Go toolchain is used instead.
package version
