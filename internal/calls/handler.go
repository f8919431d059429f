package calls

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"callcenter-backend/internal/shared/server/middleware"
	"callcenter-backend/internal/shared/server/respond"
)

const maxIngestBodySize = 2 << 20

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches call routes to a group that already requires a session.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/calls", h.list)
	rg.GET("/calls/recent", h.recent)
	rg.GET("/calls/by-request/:requestId", h.byRequest)
	rg.GET("/calls/:id", h.get)
	rg.DELETE("/calls/:id", middleware.RequireManager(), h.delete)
	rg.GET("/stats", h.stats)
}

// RegisterInternalRoutes attaches the ingest route used by the analysis job.
func (h *Handler) RegisterInternalRoutes(rg *gin.RouterGroup) {
	rg.POST("/calls", h.ingest)
}

func viewerFromContext(c *gin.Context) Viewer {
	sess, _ := middleware.SessionFromContext(c)
	return Viewer{PersonnelID: sess.PersonnelID, Manager: sess.Manager}
}

func (h *Handler) list(c *gin.Context) {
	f := ListFilter{
		Status: Status(c.Query("status")),
		Limit:  DefaultListLimit,
	}
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			respond.BadRequest(c, "limit must be a positive integer")
			return
		}
		f.Limit = parsed
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if v := c.Query("offset"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			respond.BadRequest(c, "offset must be a non-negative integer")
			return
		}
		f.Offset = parsed
	}
	if v := c.Query("personnelId"); v != "" {
		f.PersonnelID = v
	}

	items, err := h.Svc.List(c.Request.Context(), viewerFromContext(c), f)
	if err != nil {
		writeError(c, err, "failed to list calls")
		return
	}
	respond.Paged(c, items, f.Limit, f.Offset)
}

func (h *Handler) recent(c *gin.Context) {
	items, err := h.Svc.Recent(c.Request.Context(), viewerFromContext(c))
	if err != nil {
		writeError(c, err, "failed to list recent calls")
		return
	}
	respond.OK(c, items)
}

func (h *Handler) get(c *gin.Context) {
	id := c.Param("id")
	c.Set("callId", id)
	call, err := h.Svc.Get(c.Request.Context(), viewerFromContext(c), id)
	if err != nil {
		writeError(c, err, "failed to fetch call")
		return
	}
	respond.OK(c, call)
}

func (h *Handler) byRequest(c *gin.Context) {
	requestID := c.Param("requestId")
	c.Set("analysisRequestId", requestID)
	call, err := h.Svc.FindByRequestID(c.Request.Context(), viewerFromContext(c), requestID)
	if err != nil {
		writeError(c, err, "failed to fetch call")
		return
	}
	c.Set("callId", call.ID)
	respond.OK(c, call)
}

func (h *Handler) delete(c *gin.Context) {
	id := c.Param("id")
	c.Set("callId", id)
	if err := h.Svc.Delete(c.Request.Context(), viewerFromContext(c), id); err != nil {
		writeError(c, err, "failed to delete call")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) stats(c *gin.Context) {
	st, err := h.Svc.Stats(c.Request.Context(), viewerFromContext(c))
	if err != nil {
		writeError(c, err, "failed to compute stats")
		return
	}
	respond.OK(c, st)
}

func (h *Handler) ingest(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxIngestBodySize)

	var in IngestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.BadRequest(c, "invalid request body")
		return
	}
	in.Source = "http"
	c.Set("analysisRequestId", in.RequestID)

	call, created, err := h.Svc.Ingest(c.Request.Context(), in)
	if err != nil {
		writeError(c, err, "failed to store call")
		return
	}
	c.Set("callId", call.ID)
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respond.JSON(c, status, call)
}

func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "call not found", nil)
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidAnalysis):
		respond.BadRequest(c, err.Error())
	case errors.Is(err, ErrForbidden):
		respond.Error(c, http.StatusForbidden, "forbidden", "manager role required", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
