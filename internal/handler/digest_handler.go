package handler

import (
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/news-api/internal/service"
	appErrors "github.com/noah-isme/news-api/pkg/errors"
	"github.com/noah-isme/news-api/pkg/response"
)

// DigestHandler serves weekly digest artifacts.
type DigestHandler struct {
	service *service.DigestService
}

// NewDigestHandler creates a digest handler.
func NewDigestHandler(svc *service.DigestService) *DigestHandler {
	return &DigestHandler{service: svc}
}

// Latest godoc
// @Summary Latest weekly digest
// @Description Signed download links for the most recent digest files. Admin only.
// @Tags Digests
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/digests/latest [get]
func (h *DigestHandler) Latest(c *gin.Context) {
	links, err := h.service.Latest(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, links, nil)
}

// Download godoc
// @Summary Download digest file
// @Tags Digests
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /digests/download [get]
func (h *DigestHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	f, name, err := h.service.Open(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer f.Close()

	contentType := "text/csv"
	if filepath.Ext(name) == ".pdf" {
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", "attachment; filename=\""+filepath.Base(name)+"\"")
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, f)
}
