package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/campaignops/campo/pkg/domain"
	"github.com/campaignops/campo/pkg/ports"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Topic carrying pipeline lifecycle events
	eventsTopic = "pipeline.events"

	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second

	// Per-connection event buffer; slow clients drop events rather
	// than blocking the bus
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS is handled at the HTTP layer
		return true
	},
}

// Handler streams pipeline events to WebSocket clients
type Handler struct {
	eventBus ports.EventBus
	logger   *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(eventBus ports.EventBus, logger *zap.Logger) *Handler {
	return &Handler{
		eventBus: eventBus,
		logger:   logger,
	}
}

// HandlePipelineStream upgrades the connection and forwards events for
// the requested pipeline until the client disconnects.
func (h *Handler) HandlePipelineStream(c *gin.Context) {
	pipelineID := c.Param("id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection",
			zap.String("pipeline_id", pipelineID),
			zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Info("websocket client connected",
		zap.String("pipeline_id", pipelineID))

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events := make(chan domain.Event, sendBuffer)

	err = h.eventBus.Subscribe(ctx, eventsTopic, func(_ context.Context, event domain.Event) error {
		if event.PipelineID != pipelineID {
			return nil
		}
		select {
		case events <- event:
		default:
			h.logger.Warn("dropping event for slow websocket client",
				zap.String("pipeline_id", pipelineID),
				zap.String("event_type", string(event.Type)))
		}
		return nil
	})
	if err != nil {
		h.logger.Error("failed to subscribe to events",
			zap.String("pipeline_id", pipelineID),
			zap.Error(err))
		return
	}

	// Reader goroutine detects client disconnect
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("websocket client disconnected",
				zap.String("pipeline_id", pipelineID))
			return

		case event := <-events:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Warn("failed to write event",
					zap.String("pipeline_id", pipelineID),
					zap.Error(err))
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
