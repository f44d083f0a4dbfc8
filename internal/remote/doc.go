// Package remote is the realtime key/value channel between the dashboard and
// the office store.
//
// A Channel keeps at most one subscription per key on top of a Backend and
// wraps every failure in office.NetworkError. Backends live in subpackages:
// memory, grpcstore and redisstore.
package remote
