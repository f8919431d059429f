package personnel

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"callcenter-backend/internal/shared/server/middleware"
	"callcenter-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches personnel routes to a group that already requires a session.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/personnel/me", h.me)
	rg.PATCH("/personnel/me", h.updateMe)
	rg.GET("/personnel", middleware.RequireManager(), h.list)
}

func (h *Handler) me(c *gin.Context) {
	p, err := h.Svc.GetByAccountID(c.Request.Context(), middleware.AccountIDFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, p)
}

func (h *Handler) updateMe(c *gin.Context) {
	var req ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid request body")
		return
	}
	sess, _ := middleware.SessionFromContext(c)
	if sess.PersonnelID == "" {
		respond.Error(c, http.StatusNotFound, "not_found", "personnel profile not found", nil)
		return
	}
	p, err := h.Svc.UpdateProfile(c.Request.Context(), sess.PersonnelID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, p)
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.Svc.ListActive(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, items)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "personnel profile not found", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.BadRequest(c, err.Error())
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load personnel", nil)
	}
}
