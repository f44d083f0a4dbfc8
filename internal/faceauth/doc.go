// Package faceauth is the HTTP client of the face recognition service.
//
// Authenticate submits one image and reports whether a registered user was
// recognized. Calls are never retried; any unreachable service or non-2xx
// answer becomes an office.TransportError.
package faceauth
