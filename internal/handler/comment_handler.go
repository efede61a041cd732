package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/news-api/internal/models"
	"github.com/noah-isme/news-api/internal/service"
	appErrors "github.com/noah-isme/news-api/pkg/errors"
	"github.com/noah-isme/news-api/pkg/response"
)

// CommentHandler wires comment endpoints.
type CommentHandler struct {
	service *service.CommentService
}

// NewCommentHandler creates a comment handler.
func NewCommentHandler(svc *service.CommentService) *CommentHandler {
	return &CommentHandler{service: svc}
}

// List godoc
// @Summary List comments
// @Tags Comments
// @Produce json
// @Param skip query int false "Offset"
// @Param limit query int false "Page size (max 100)"
// @Success 200 {object} response.Envelope
// @Router /comments [get]
func (h *CommentHandler) List(c *gin.Context) {
	skip, limit := pageParams(c)
	items, err := h.service.List(c.Request.Context(), skip, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// ListByNews godoc
// @Summary List comments of an article
// @Tags Comments
// @Produce json
// @Param id path int true "News ID"
// @Success 200 {object} response.Envelope
// @Router /news/{id}/comments [get]
func (h *CommentHandler) ListByNews(c *gin.Context) {
	newsID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	skip, limit := pageParams(c)
	items, err := h.service.ListByNews(c.Request.Context(), newsID, skip, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Create godoc
// @Summary Comment on an article
// @Tags Comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "News ID"
// @Param payload body models.CommentRequest true "Comment"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /news/{id}/comments [post]
func (h *CommentHandler) Create(c *gin.Context) {
	newsID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req models.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid comment payload"))
		return
	}
	item, err := h.service.Create(c.Request.Context(), currentUser(c), newsID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Edit comment
// @Description Author or admin only
// @Tags Comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Comment ID"
// @Param payload body models.CommentRequest true "Comment"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /comments/{id} [put]
func (h *CommentHandler) Update(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req models.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid comment payload"))
		return
	}
	item, err := h.service.Update(c.Request.Context(), currentUser(c), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete comment
// @Description Author or admin only
// @Tags Comments
// @Security BearerAuth
// @Param id path int true "Comment ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /comments/{id} [delete]
func (h *CommentHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.Delete(c.Request.Context(), currentUser(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
