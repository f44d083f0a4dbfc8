// Package dashboard exposes the office over HTTP for the presentation layer.
//
// Commands and queries are plain JSON endpoints under /api; state changes,
// alerts, notifications and verification phases are pushed over /ws.
package dashboard
