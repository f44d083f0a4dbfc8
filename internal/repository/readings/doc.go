// Package readings archives sensor snapshots to MongoDB.
package readings
