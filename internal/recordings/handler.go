package recordings

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"callcenter-backend/internal/shared/server/middleware"
	"callcenter-backend/internal/shared/server/respond"
	"callcenter-backend/internal/shared/util"
)

// multipart framing allowance on top of the file limit.
const formOverhead = 1 << 20

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches recording routes to a group that already requires a session.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/recordings", h.upload)
	rg.POST("/recordings/presign", h.presign)
}

func (h *Handler) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.Svc.MaxBytes+formOverhead)

	fileHeader, err := c.FormFile("audio_file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "too_large", ErrTooLarge.Error(), nil)
			return
		}
		respond.BadRequest(c, "audio_file is required")
		return
	}
	if fileHeader.Size > h.Svc.MaxBytes {
		respond.Error(c, http.StatusRequestEntityTooLarge, "too_large", ErrTooLarge.Error(), nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.BadRequest(c, "unable to read file")
		return
	}
	defer file.Close()

	obj, err := h.Svc.Upload(c.Request.Context(), ownerKey(c), fileHeader.Filename, fileHeader.Header.Get("Content-Type"), file)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Created(c, obj)
}

type presignRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
}

type presignResponse struct {
	UploadURL        string `json:"uploadUrl"`
	Key              string `json:"key"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
}

func (h *Handler) presign(c *gin.Context) {
	var req presignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid request body")
		return
	}
	url, key, expires, err := h.Svc.PresignUpload(c.Request.Context(), ownerKey(c),
		strings.TrimSpace(req.FileName), strings.TrimSpace(req.ContentType), req.SizeBytes)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, presignResponse{UploadURL: url, Key: key, ExpiresInSeconds: int64(expires.Seconds())})
}

// ownerKey namespaces recordings by personnel, falling back to the account.
func ownerKey(c *gin.Context) string {
	sess, _ := middleware.SessionFromContext(c)
	if sess.PersonnelID != "" {
		return sess.PersonnelID
	}
	return "acct-" + util.ShortHash(sess.AccountID, 16)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.BadRequest(c, err.Error())
	case errors.Is(err, ErrTooLarge):
		respond.Error(c, http.StatusRequestEntityTooLarge, "too_large", err.Error(), nil)
	case errors.Is(err, ErrPresignUnsupported):
		respond.Error(c, http.StatusNotImplemented, "not_supported", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to store recording", nil)
	}
}
