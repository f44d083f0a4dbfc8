// Package events fans dashboard events out to push subscribers such as websocket clients.
package events
