// Package redisstore is a remote.Backend on top of Redis.
//
// Every key is stored as a protojson-encoded value under prefix+key and each
// write is also published on the channel of the same name, so watchers see
// changes without polling.
package redisstore
