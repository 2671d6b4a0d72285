// Package audit records who changed the printer registry and when.
//
// Entries are append-only. They are written by an event sink after each
// registry change commits, so a failed write never undoes the change it
// describes. The acting user travels in the request context (see WithActor).
package audit
