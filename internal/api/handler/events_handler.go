package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/content-orchestrator/internal/api/httperr"
	"github.com/cuongbtq/content-orchestrator/internal/events"
)

const keepAliveInterval = 15 * time.Second

// EventsHandler streams bus events to HTTP clients
type EventsHandler struct {
	logger *slog.Logger
	bus    *events.Bus
}

// NewEventsHandler creates a new EventsHandler instance
func NewEventsHandler(deps *Dependencies) *EventsHandler {
	return &EventsHandler{logger: deps.Logger, bus: deps.Bus}
}

// Stream handles GET /api/v1/events as server-sent events.
// ?types=a,b limits the stream; ?user_id filters by owner.
func (h *EventsHandler) Stream(c *gin.Context) {
	if h.bus == nil {
		httperr.AbortWithError(c, http.StatusServiceUnavailable, nil, "Event stream is not available", nil)
		return
	}

	var types []events.Type
	if raw := c.Query("types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, events.Type(t))
			}
		}
	}
	userID := c.Query("user_id")

	sub := h.bus.Subscribe(types...)
	defer sub.Close()

	h.logger.Info("Event stream opened",
		slog.String("user_id", userID),
		slog.Int("types", len(types)),
	)

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case <-keepAlive.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			return true
		case e, ok := <-sub.C:
			if !ok {
				return false
			}
			if userID != "" && e.UserID != userID {
				return true
			}
			c.SSEvent(string(e.Type), e)
			return true
		}
	})

	h.logger.Info("Event stream closed", slog.String("user_id", userID))
}
