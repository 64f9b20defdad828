package events

import (
	"context"
	"log/slog"
)

// Publisher delivers events to the subscribers of a tenant. Delivery is best
// effort: there is no acknowledgement and missed events are not replayed.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Emit hands an event to the publisher after a commit. Failures are logged and
// swallowed; the write they describe has already happened.
func Emit(ctx context.Context, p Publisher, event Event) {
	if p == nil {
		return
	}
	if err := p.Publish(context.WithoutCancel(ctx), event); err != nil {
		slog.Warn("event publish failed",
			"event_id", event.ID,
			"tenant_id", event.TenantID,
			"topic", event.Topic,
			"action", event.Action,
			"error", err)
	}
}

// Compile-time verification of the publishers
var (
	_ Publisher = (*Hub)(nil)
	_ Publisher = (*PostgresRelay)(nil)
)
