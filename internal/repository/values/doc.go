// Package values persists the realtime store contents.
//
// The FileRepository keeps every key in one protojson document so the store
// server survives restarts with its last values.
package values
