package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/scms-api/internal/dto"
	"github.com/noah-isme/scms-api/internal/models"
	appErrors "github.com/noah-isme/scms-api/pkg/errors"
	"github.com/noah-isme/scms-api/pkg/response"
)

type complaintService interface {
	Create(ctx context.Context, req dto.CreateComplaintRequest, actor *models.User) (*models.Complaint, error)
	Get(ctx context.Context, id string, actor *models.User) (*models.Complaint, error)
	List(ctx context.Context, query dto.ComplaintQuery, actor *models.User) ([]models.Complaint, *models.Pagination, error)
	Update(ctx context.Context, id string, req dto.UpdateComplaintRequest, actor *models.User) (*models.Complaint, error)
	Delete(ctx context.Context, id string, actor *models.User) error
	Timeline(ctx context.Context, complaintID string, actor *models.User, limit, offset int) ([]models.ComplaintHistory, error)
}

// ComplaintHandler exposes REST endpoints for complaint CRUD.
type ComplaintHandler struct {
	service complaintService
}

// NewComplaintHandler constructs the handler.
func NewComplaintHandler(service complaintService) *ComplaintHandler {
	return &ComplaintHandler{service: service}
}

// Create godoc
// @Summary File a new complaint
// @Tags Complaints
// @Accept json
// @Produce json
// @Param payload body dto.CreateComplaintRequest true "Complaint payload"
// @Success 201 {object} response.Envelope
// @Router /complaints [post]
func (h *ComplaintHandler) Create(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "complaint service not configured"))
		return
	}
	var req dto.CreateComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid complaint payload"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	complaint, err := h.service.Create(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, complaint, nil)
}

// List godoc
// @Summary List complaints visible to the caller
// @Tags Complaints
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param priority query string false "Comma separated priorities"
// @Param category_id query string false "Category ID"
// @Param department_id query string false "Department ID"
// @Param created_by query string false "Creator user ID"
// @Param assigned_to query string false "Assignee user ID"
// @Param search query string false "Search in title and number"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /complaints [get]
func (h *ComplaintHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "complaint service not configured"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query := parseComplaintQuery(c)
	complaints, pagination, err := h.service.List(c.Request.Context(), query, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, complaints, pagination)
}

// Get godoc
// @Summary Get complaint detail
// @Tags Complaints
// @Produce json
// @Param id path string true "Complaint ID"
// @Success 200 {object} response.Envelope
// @Router /complaints/{id} [get]
func (h *ComplaintHandler) Get(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "complaint service not configured"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	complaint, err := h.service.Get(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, complaint, nil)
}

// Update godoc
// @Summary Edit complaint fields
// @Tags Complaints
// @Accept json
// @Produce json
// @Param id path string true "Complaint ID"
// @Param payload body dto.UpdateComplaintRequest true "Fields to update"
// @Success 200 {object} response.Envelope
// @Router /complaints/{id} [patch]
func (h *ComplaintHandler) Update(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "complaint service not configured"))
		return
	}
	var req dto.UpdateComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid update payload"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	complaint, err := h.service.Update(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, complaint, nil)
}

// Delete godoc
// @Summary Soft delete a complaint
// @Tags Complaints
// @Produce json
// @Param id path string true "Complaint ID"
// @Success 204 {object} response.Envelope
// @Router /complaints/{id} [delete]
func (h *ComplaintHandler) Delete(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "complaint service not configured"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), actor); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Timeline godoc
// @Summary Complaint history entries
// @Tags Complaints
// @Produce json
// @Param id path string true "Complaint ID"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /complaints/{id}/timeline [get]
func (h *ComplaintHandler) Timeline(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "complaint service not configured"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	limit, offset := parseLimitOffset(c, 50)
	entries, err := h.service.Timeline(c.Request.Context(), c.Param("id"), actor, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

func parseComplaintQuery(c *gin.Context) dto.ComplaintQuery {
	query := dto.ComplaintQuery{
		CategoryID:   strings.TrimSpace(c.Query("category_id")),
		DepartmentID: strings.TrimSpace(c.Query("department_id")),
		CreatedBy:    strings.TrimSpace(c.Query("created_by")),
		AssignedTo:   strings.TrimSpace(c.Query("assigned_to")),
		Search:       strings.TrimSpace(c.Query("search")),
		SortBy:       strings.TrimSpace(c.Query("sort_by")),
		SortOrder:    strings.TrimSpace(c.Query("sort_order")),
	}
	if rawStatus := c.Query("status"); rawStatus != "" {
		parts := strings.Split(rawStatus, ",")
		statuses := make([]models.ComplaintStatus, 0, len(parts))
		for _, part := range parts {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			statuses = append(statuses, models.ComplaintStatus(part))
		}
		query.Status = statuses
	}
	if rawPriority := c.Query("priority"); rawPriority != "" {
		parts := strings.Split(rawPriority, ",")
		priorities := make([]models.ComplaintPriority, 0, len(parts))
		for _, part := range parts {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			priorities = append(priorities, models.ComplaintPriority(part))
		}
		query.Priority = priorities
	}
	if page, err := strconv.Atoi(c.Query("page")); err == nil && page > 0 {
		query.Page = page
	}
	if size, err := strconv.Atoi(c.Query("page_size")); err == nil && size > 0 {
		query.PageSize = size
	}
	return query
}

func parseLimitOffset(c *gin.Context, defaultLimit int) (int, int) {
	limit := defaultLimit
	offset := 0
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
