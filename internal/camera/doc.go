// Package camera captures single still frames for face verification.
//
// A Source opens a Stream; the Capturer reads exactly one frame from it,
// normalizes the frame to a bounded-width JPEG and always closes the stream.
package camera
