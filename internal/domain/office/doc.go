// Package office contains the core domain types of the smart office.
//
// It defines the mirrored SensorState with its remote keys and defaults, the
// gas alarm state machine, the biometric AuthResult, the ActuationIntent issued
// to the remote store, and the error taxonomy shared by every component.
package office
