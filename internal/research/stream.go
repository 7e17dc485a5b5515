package research

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/reseich/reseich-api/internal/events"
	"github.com/reseich/reseich-api/internal/logger"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Stream handles GET /api/research/status/:id/stream. It sends the current
// status, then every status event until the item reaches a terminal state.
func (h *Handler) Stream(c *gin.Context) {
	ctx := logger.WithResearchID(c.Request.Context(), c.Param("id"))
	log := h.logger.WithContext(ctx).WithComponent("research-stream")

	row, err := h.service.Get(ctx, c.Param("id"))
	if err != nil {
		h.abortLookup(c, err)
		return
	}
	if h.service.bus == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "status streaming unavailable"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("failed to upgrade connection to websocket", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	updates := make(chan events.StatusEvent, 16)
	unsubscribe, err := h.service.bus.Subscribe(row.ID.String(), func(ev events.StatusEvent) {
		select {
		case updates <- ev:
		default:
			// Slow reader: the next event carries the full state anyway.
		}
	})
	if err != nil {
		log.Error("failed to subscribe to status events", slog.String("error", err.Error()))
		return
	}
	defer unsubscribe()

	// Detect client disconnects; we never expect inbound messages.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	current := statusEvent(row)
	if err := writeEvent(conn, current); err != nil || current.Terminal() {
		return
	}

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case ev := <-updates:
			if err := writeEvent(conn, ev); err != nil {
				log.Debug("status stream write failed", slog.String("error", err.Error()))
				return
			}
			if ev.Terminal() {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ev.Status),
					time.Now().Add(streamWriteWait))
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		case <-closed:
			return
		case <-ctx.Done():
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, ev events.StatusEvent) error {
	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(ev)
}
