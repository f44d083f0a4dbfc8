// Package store runs the office-store process: the realtime key/value server
// the dashboard subscribes to, with file persistence and an optional sensor
// simulator.
package store
