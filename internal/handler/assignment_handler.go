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

type assignmentService interface {
	Assign(ctx context.Context, complaintID string, req dto.AssignRequest, actor *models.User) (*models.Complaint, error)
	Reassign(ctx context.Context, complaintID string, req dto.ReassignRequest, actor *models.User) (*models.Complaint, error)
	Unassign(ctx context.Context, complaintID string, actor *models.User) (*models.Complaint, error)
	AutoAssign(ctx context.Context, complaintID string) (*models.Complaint, error)
	AssignableUsers(ctx context.Context, departmentID string, actor *models.User) ([]models.AssignableUser, error)
}

// AssignmentHandler exposes assignment endpoints.
type AssignmentHandler struct {
	service assignmentService
}

// NewAssignmentHandler constructs the handler.
func NewAssignmentHandler(service assignmentService) *AssignmentHandler {
	return &AssignmentHandler{service: service}
}

// Assign godoc
// @Summary Assign a complaint to a handler
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Complaint ID"
// @Param payload body dto.AssignRequest true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Router /complaints/{id}/assign [post]
func (h *AssignmentHandler) Assign(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "assignment service not configured"))
		return
	}
	var req dto.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid assignment payload"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	complaint, err := h.service.Assign(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, complaint, nil)
}

// Reassign godoc
// @Summary Move an assignment to another handler
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Complaint ID"
// @Param payload body dto.ReassignRequest true "Reassignment payload"
// @Success 200 {object} response.Envelope
// @Router /complaints/{id}/reassign [post]
func (h *AssignmentHandler) Reassign(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "assignment service not configured"))
		return
	}
	var req dto.ReassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid reassignment payload"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	complaint, err := h.service.Reassign(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, complaint, nil)
}

// Unassign godoc
// @Summary Remove the current assignee
// @Tags Assignments
// @Produce json
// @Param id path string true "Complaint ID"
// @Success 200 {object} response.Envelope
// @Router /complaints/{id}/assign [delete]
func (h *AssignmentHandler) Unassign(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "assignment service not configured"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	complaint, err := h.service.Unassign(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, complaint, nil)
}

// AutoAssign godoc
// @Summary Run the automatic assignment rules
// @Tags Assignments
// @Produce json
// @Param id path string true "Complaint ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /complaints/{id}/auto-assign [post]
func (h *AssignmentHandler) AutoAssign(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "assignment service not configured"))
		return
	}
	complaint, err := h.service.AutoAssign(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, complaint, nil)
}

// AssignableUsers godoc
// @Summary List users a complaint can be assigned to
// @Tags Assignments
// @Produce json
// @Param department_id query string false "Department ID"
// @Success 200 {object} response.Envelope
// @Router /assignments/users [get]
func (h *AssignmentHandler) AssignableUsers(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "assignment service not configured"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	users, err := h.service.AssignableUsers(c.Request.Context(), c.Query("department_id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, nil)
}
