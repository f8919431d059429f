package ingest

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"callcenter-backend/internal/calls"
	"callcenter-backend/internal/queue"
	"callcenter-backend/internal/shared/metrics"
	"callcenter-backend/internal/shared/server/respond"
	"callcenter-backend/internal/shared/telemetry"
)

const maxRelayBodySize = 2 << 20

// Handler relays ingest requests onto the queue for producers that cannot
// reach SQS themselves.
type Handler struct {
	Queue queue.Client
}

func NewHandler(q queue.Client) *Handler {
	return &Handler{Queue: q}
}

// RegisterRoutes attaches the relay to the internal group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/calls/async", h.enqueue)
}

func (h *Handler) enqueue(c *gin.Context) {
	if h.Queue == nil {
		respond.Error(c, http.StatusServiceUnavailable, "queue_unavailable", "ingest queue is not configured", nil)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRelayBodySize)

	var in calls.IngestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.BadRequest(c, "invalid request body")
		return
	}
	if strings.TrimSpace(in.RequestID) == "" {
		respond.BadRequest(c, "requestId is required")
		return
	}
	c.Set("analysisRequestId", in.RequestID)

	if err := h.Queue.Send(c.Request.Context(), FromInput(in)); err != nil {
		respond.Error(c, http.StatusBadGateway, "queue_error", "failed to enqueue call", nil)
		return
	}
	metrics.IncIngestEnqueued()
	telemetry.Info("ingest.enqueued", map[string]any{"request_id": in.RequestID})
	respond.JSON(c, http.StatusAccepted, gin.H{"requestId": in.RequestID, "status": "queued"})
}
