package handlers

import (
	"context"
	"log/slog"
	"time"

	"crm-pipeline/internal/events"

	"github.com/gin-gonic/gin"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const liveWriteTimeout = 5 * time.Second

type liveMessage struct {
	Topic  events.Topic  `json:"topic"`
	Action events.Action `json:"action"`
	Entity any           `json:"entity"`
}

// Live streams the caller's tenant channel over a websocket until either
// side goes away. Clients only listen; anything they send is discarded.
func (h *Handler) Live(c *gin.Context) {
	user := currentUser(c)

	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.CloseNow()

	sub := h.hub.Subscribe(user.TenantID)
	defer sub.Close()

	ctx := conn.CloseRead(c.Request.Context())
	slog.Debug("live subscriber connected", "tenant_id", user.TenantID, "user_id", user.ID)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := writeEvent(ctx, conn, ev); err != nil {
				slog.Debug("live subscriber gone", "tenant_id", user.TenantID, "error", err)
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, ev events.Event) error {
	ctx, cancel := context.WithTimeout(ctx, liveWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, liveMessage{
		Topic:  ev.Topic,
		Action: ev.Action,
		Entity: ev.Entity,
	})
}
