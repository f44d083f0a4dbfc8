// Package mirror holds the in-process copy of the office state.
//
// The Mirror is the single owner of office.SensorState. Remote store values are
// merged one field at a time, local-only fields (fan, gas alarm) are changed
// through ApplyLocal, and after every mutation each subscriber receives the
// complete state as a value.
package mirror
