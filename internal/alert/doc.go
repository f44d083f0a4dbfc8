// Package alert derives alert levels from the mirrored office state.
//
// Evaluate is a pure function of office.SensorState. Tracker sits on the
// mirror's changed-events, remembers the previous evaluation and reports only
// level crossings, notifying when a level becomes non-normal.
package alert
