package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const (
	DefaultNotifyChannel = "crm_events"

	// postgres rejects NOTIFY payloads of 8000 bytes or more
	maxNotifyPayload = 7999

	listenerMinReconnect = 10 * time.Second
	listenerMaxReconnect = time.Minute
	listenerPingInterval = 90 * time.Second
)

var ErrPayloadTooLarge = errors.New("event payload exceeds NOTIFY limit")

// envelope is the wire form of an Event on the postgres channel.
type envelope struct {
	ID        uuid.UUID       `json:"id"`
	TenantID  uint            `json:"tenantId"`
	Topic     Topic           `json:"topic"`
	Action    Action          `json:"action"`
	Entity    json.RawMessage `json:"entity"`
	Timestamp time.Time       `json:"timestamp"`
}

// PostgresRelay shares events between server instances over LISTEN/NOTIFY.
// Published events go out with pg_notify; Run feeds every notification it
// hears, including our own, into the local hub.
type PostgresRelay struct {
	db       *gorm.DB
	dsn      string
	channel  string
	local    *Hub
	listener *pq.Listener
}

func NewPostgresRelay(db *gorm.DB, dsn string, local *Hub) *PostgresRelay {
	return &PostgresRelay{
		db:      db,
		dsn:     dsn,
		channel: DefaultNotifyChannel,
		local:   local,
	}
}

func (r *PostgresRelay) Publish(ctx context.Context, event Event) error {
	entity, err := json.Marshal(event.Entity)
	if err != nil {
		return fmt.Errorf("failed to encode event entity: %w", err)
	}
	payload, err := json.Marshal(envelope{
		ID:        event.ID,
		TenantID:  event.TenantID,
		Topic:     event.Topic,
		Action:    event.Action,
		Entity:    entity,
		Timestamp: event.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if len(payload) > maxNotifyPayload {
		// other instances miss it, local subscribers still get it
		_ = r.local.Publish(ctx, event)
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}

	return r.db.WithContext(ctx).Exec("SELECT pg_notify(?, ?)", r.channel, string(payload)).Error
}

// Run listens until ctx is cancelled.
func (r *PostgresRelay) Run(ctx context.Context) error {
	r.listener = pq.NewListener(r.dsn, listenerMinReconnect, listenerMaxReconnect, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			slog.Warn("notify listener event", "event", ev, "error", err)
		}
	})
	defer func() {
		if err := r.listener.Close(); err != nil {
			slog.Warn("failed to close notify listener", "error", err)
		}
	}()

	if err := r.listener.Listen(r.channel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", r.channel, err)
	}
	slog.Info("relaying events over postgres", "channel", r.channel)

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-r.listener.Notify:
			// nil after a reconnect
			if n == nil {
				continue
			}
			r.relay(ctx, n.Extra)
		case <-time.After(listenerPingInterval):
			if err := r.listener.Ping(); err != nil {
				slog.Warn("notify listener ping failed", "error", err)
			}
		}
	}
}

func (r *PostgresRelay) relay(ctx context.Context, payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		slog.Warn("dropping malformed notification", "error", err)
		return
	}
	_ = r.local.Publish(ctx, Event{
		ID:        env.ID,
		TenantID:  env.TenantID,
		Topic:     env.Topic,
		Action:    env.Action,
		Entity:    env.Entity,
		Timestamp: env.Timestamp,
	})
}
