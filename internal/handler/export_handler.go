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

type exportService interface {
	CSV(ctx context.Context, query dto.ComplaintQuery, actor *models.User) ([]byte, string, error)
	PDF(ctx context.Context, query dto.ComplaintQuery, actor *models.User) ([]byte, string, error)
}

// ExportHandler exposes complaint export endpoints.
type ExportHandler struct {
	service exportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(service exportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// CSV godoc
// @Summary Export complaints as CSV
// @Tags Exports
// @Produce text/csv
// @Param status query string false "Comma separated statuses"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /exports/complaints.csv [get]
func (h *ExportHandler) CSV(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "export service not configured"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	data, filename, err := h.service.CSV(c.Request.Context(), parseComplaintQuery(c), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv", data)
}

// PDF godoc
// @Summary Export complaints as PDF
// @Tags Exports
// @Produce application/pdf
// @Param status query string false "Comma separated statuses"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /exports/complaints.pdf [get]
func (h *ExportHandler) PDF(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "export service not configured"))
		return
	}
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	data, filename, err := h.service.PDF(c.Request.Context(), parseComplaintQuery(c), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", data)
}
