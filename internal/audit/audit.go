package audit

import (
	"context"
	"time"
)

// Actions recorded in the trail. They match the printer event kinds
// without the "printer." prefix.
const (
	ActionCreated      = "created"
	ActionUpdated      = "updated"
	ActionDeleted      = "deleted"
	ActionConnected    = "connected"
	ActionDisconnected = "disconnected"
)

// Entry is a single audit trail record.
type Entry struct {
	ID          string         `json:"id"`
	Action      string         `json:"action"`
	PrinterID   string         `json:"printer_id,omitempty"`
	PrinterName string         `json:"printer_name,omitempty"`
	Actor       string         `json:"actor,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Filter controls which entries List returns.
type Filter struct {
	Action    string // optional
	PrinterID string // optional
	Limit     int    // default 50, max 200
	Offset    int
}

// ListResult is one page of entries, newest first.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository stores and queries audit entries.
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

type ctxKey struct{}

// WithActor returns a copy of ctx carrying the acting user.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ctxKey{}, actor)
}

// ActorFromContext returns the actor set by WithActor, or "".
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(ctxKey{}).(string) //nolint:errcheck // "" when unset
	return actor
}
