package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"callcenter-backend/internal/shared/server/middleware"
	"callcenter-backend/internal/shared/server/respond"
)

const maxAuthBodySize = 16 << 10

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches the password auth routes. Session retrieval works
// anonymously; sign-out needs a verified session.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/signup", h.signUp)
	rg.POST("/auth/signin", h.signIn)
	rg.POST("/auth/signout", middleware.RequireSession(), h.signOut)
	rg.GET("/auth/session", h.session)
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func clientMeta(c *gin.Context) ClientMeta {
	return ClientMeta{UserAgent: c.Request.UserAgent(), ClientIP: c.ClientIP()}
}

func (h *Handler) signUp(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxAuthBodySize)
	var req SignUpInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid request body")
		return
	}
	res, err := h.Svc.SignUp(c.Request.Context(), req, clientMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Created(c, res)
}

func (h *Handler) signIn(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxAuthBodySize)
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid request body")
		return
	}
	res, err := h.Svc.SignIn(c.Request.Context(), req.Email, req.Password, clientMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, res)
}

func (h *Handler) signOut(c *gin.Context) {
	sess, _ := middleware.SessionFromContext(c)
	if err := h.Svc.SignOut(c.Request.Context(), sess); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) session(c *gin.Context) {
	sess, ok := middleware.SessionFromContext(c)
	if !ok {
		respond.OK(c, gin.H{"authenticated": false})
		return
	}
	respond.OK(c, gin.H{
		"authenticated": true,
		"accountId":     sess.AccountID,
		"sessionId":     sess.SessionID,
		"email":         sess.Email,
		"name":          sess.Name,
		"personnelId":   sess.PersonnelID,
		"manager":       sess.Manager,
	})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.BadRequest(c, err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		respond.Error(c, http.StatusUnauthorized, "invalid_credentials", "invalid email or password", nil)
	case errors.Is(err, ErrEmailTaken):
		respond.Error(c, http.StatusConflict, "email_taken", "email already registered", nil)
	case errors.Is(err, ErrSessionNotFound):
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "session is not active", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "authentication failed", nil)
	}
}
