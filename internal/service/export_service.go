package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/scms-api/internal/dto"
	"github.com/noah-isme/scms-api/internal/models"
	"github.com/noah-isme/scms-api/pkg/config"
	appErrors "github.com/noah-isme/scms-api/pkg/errors"
	"github.com/noah-isme/scms-api/pkg/export"
)

type exportComplaintStore interface {
	List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, int, error)
}

// ExportService renders complaint listings as CSV or PDF downloads.
type ExportService struct {
	complaints exportComplaintStore
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	cfg        config.ExportsConfig
	logger     *zap.Logger
}

// NewExportService constructs the service.
func NewExportService(complaints exportComplaintStore, cfg config.ExportsConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		complaints: complaints,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		cfg:        cfg,
		logger:     logger,
	}
}

var exportHeaders = []string{
	"Number", "Title", "Status", "Priority", "Created By", "Assigned To", "Created At", "Resolved At",
}

func (s *ExportService) dataset(ctx context.Context, query dto.ComplaintQuery, actor *models.User) (export.Dataset, error) {
	if actor == nil {
		return export.Dataset{}, appErrors.ErrUnauthorized
	}
	if !actor.Role.IsAdminEquivalent() &&
		actor.Role != models.RoleVicePrincipal && actor.Role != models.RolePrincipal {
		return export.Dataset{}, appErrors.ErrForbidden
	}

	maxRows := s.cfg.MaxRows
	if maxRows <= 0 {
		maxRows = 5000
	}
	pageSize := query.PageSize
	if pageSize <= 0 || pageSize > maxRows {
		pageSize = maxRows
	}
	filter := models.ComplaintFilter{
		Status:       query.Status,
		Priority:     query.Priority,
		CategoryID:   query.CategoryID,
		DepartmentID: query.DepartmentID,
		CreatedBy:    query.CreatedBy,
		AssignedTo:   query.AssignedTo,
		Search:       query.Search,
		Page:         1,
		PageSize:     pageSize,
		SortBy:       "created_at",
		SortOrder:    "desc",
	}
	complaints, _, err := s.complaints.List(ctx, filter)
	if err != nil {
		return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load complaints for export")
	}

	rows := make([]map[string]string, 0, len(complaints))
	for _, c := range complaints {
		row := map[string]string{
			"Number":     c.ComplaintNumber,
			"Title":      c.Title,
			"Status":     c.Status.Label(),
			"Priority":   string(c.Priority),
			"Created By": c.CreatedBy,
			"Created At": c.CreatedAt.Format(time.RFC3339),
		}
		if c.AssignedTo != nil {
			row["Assigned To"] = *c.AssignedTo
		}
		if c.ResolvedAt != nil {
			row["Resolved At"] = c.ResolvedAt.Format(time.RFC3339)
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: exportHeaders, Rows: rows}, nil
}

// CSV renders the filtered complaint list as CSV bytes.
func (s *ExportService) CSV(ctx context.Context, query dto.ComplaintQuery, actor *models.User) ([]byte, string, error) {
	data, err := s.dataset(ctx, query, actor)
	if err != nil {
		return nil, "", err
	}
	out, err := s.csv.Render(data)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
	}
	return out, exportFilename("csv"), nil
}

// PDF renders the filtered complaint list as a PDF report.
func (s *ExportService) PDF(ctx context.Context, query dto.ComplaintQuery, actor *models.User) ([]byte, string, error) {
	data, err := s.dataset(ctx, query, actor)
	if err != nil {
		return nil, "", err
	}
	out, err := s.pdf.Render(data, "Complaint Report")
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
	}
	return out, exportFilename("pdf"), nil
}

func exportFilename(ext string) string {
	return fmt.Sprintf("complaints_%s.%s", time.Now().UTC().Format("20060102_150405"), ext)
}
