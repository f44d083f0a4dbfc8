// Package memory is an in-process remote.Backend.
package memory
