// Package actuation turns user intents into writes to the remote store.
//
// The Gateway publishes door and light changes without waiting for
// confirmation: the new state arrives later through the mirror like any other
// remote update. The Unlocker drives the face-verification flow whose only
// side effect on success is a single door unlock.
package actuation
