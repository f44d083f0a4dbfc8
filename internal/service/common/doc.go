// Package common holds helpers shared by several services.
//
// It opens the configured realtime store backend and identifies the local
// actor (hostname/username) for audit logging.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
