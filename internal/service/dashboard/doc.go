// Package dashboard runs the office-dashboard process.
//
// It wires the remote channel into the state mirror, the alert tracker and
// the notifier, exposes actuation and face verification, archives readings
// and serves the HTTP API.
package dashboard
