// Package notify delivers short-lived messages to the presentation layer.
//
// Each notification is shown for a fixed time, then exits, then is removed.
// There is no deduplication, no cap on simultaneous notifications and no
// ordering between severities.
package notify
