// Package client implements the office-store get and set commands.
//
// Both commands connect to the configured store backend. set keeps pushing
// the value until the store reads it back, so it survives a store restart.
package client
