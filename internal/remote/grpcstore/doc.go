// Package grpcstore is a remote.Backend talking to office-store over gRPC.
package grpcstore
