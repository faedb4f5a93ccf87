package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/scms-api/internal/dto"
	"github.com/noah-isme/scms-api/internal/models"
	appErrors "github.com/noah-isme/scms-api/pkg/errors"
	"github.com/noah-isme/scms-api/pkg/response"
)

type commentService interface {
	Add(ctx context.Context, complaintID string, req dto.CreateCommentRequest, actor *models.User) (*models.ComplaintComment, error)
	List(ctx context.Context, complaintID string, actor *models.User, limit, offset int) ([]models.ComplaintComment, error)
}

// CommentHandler exposes complaint comment endpoints.
type CommentHandler struct {
	service commentService
}

// NewCommentHandler constructs the handler.
func NewCommentHandler(service commentService) *CommentHandler {
	return &CommentHandler{service: service}
}

// Add godoc
// @Summary Add a comment to a complaint
// @Tags Comments
// @Accept json
// @Produce json
// @Param id path string true "Complaint ID"
// @Param payload body dto.CreateCommentRequest true "Comment payload"
// @Success 201 {object} response.Envelope
// @Router /complaints/{id}/comments [post]
func (h *CommentHandler) Add(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "comment service not configured"))
		return
	}
	var req dto.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid comment payload"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	comment, err := h.service.Add(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, comment, nil)
}

// List godoc
// @Summary List comments for a complaint
// @Tags Comments
// @Produce json
// @Param id path string true "Complaint ID"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /complaints/{id}/comments [get]
func (h *CommentHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "comment service not configured"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	limit, offset := parseLimitOffset(c, 50)
	comments, err := h.service.List(c.Request.Context(), c.Param("id"), actor, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, comments, nil)
}
