package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/scms-api/internal/authz"
	"github.com/noah-isme/scms-api/internal/dto"
	"github.com/noah-isme/scms-api/internal/models"
	"github.com/noah-isme/scms-api/internal/repository"
	appErrors "github.com/noah-isme/scms-api/pkg/errors"
)

type complaintStore interface {
	Create(ctx context.Context, complaint *models.Complaint) error
	GetByID(ctx context.Context, id string) (*models.Complaint, error)
	List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, int, error)
	UpdateDetails(ctx context.Context, params repository.UpdateDetailsParams, entry *models.ComplaintHistory) error
	SoftDelete(ctx context.Context, complaintID string, now time.Time, entry *models.ComplaintHistory) error
}

type historyStore interface {
	ListByComplaint(ctx context.Context, filter models.HistoryFilter) ([]models.ComplaintHistory, error)
}

// ComplaintService owns complaint CRUD and the read side of the history
// timeline. Status and assignment mutations live in their own services.
type ComplaintService struct {
	complaints complaintStore
	history    historyStore
	validate   *validator.Validate
	logger     *zap.Logger
}

// NewComplaintService constructs the service.
func NewComplaintService(complaints complaintStore, history historyStore, logger *zap.Logger) *ComplaintService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ComplaintService{
		complaints: complaints,
		history:    history,
		validate:   validator.New(),
		logger:     logger,
	}
}

// Create files a new complaint for the actor. The complaint number is
// issued by the store inside the insert transaction.
func (s *ComplaintService) Create(ctx context.Context, req dto.CreateComplaintRequest, actor *models.User) (*models.Complaint, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid complaint payload")
	}
	if req.Priority != "" && !req.Priority.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown priority")
	}

	complaint := &models.Complaint{
		Title:        req.Title,
		Description:  req.Description,
		Priority:     req.Priority,
		CategoryID:   req.CategoryID,
		DepartmentID: req.DepartmentID,
		StudentID:    req.StudentID,
		IsPublic:     req.IsPublic,
		DueDate:      req.DueDate,
		CreatedBy:    actor.ID,
	}
	if err := s.complaints.Create(ctx, complaint); err != nil {
		s.logger.Error("complaint create failed", zap.String("actor_id", actor.ID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create complaint")
	}
	s.logger.Info("complaint filed",
		zap.String("complaint_id", complaint.ID),
		zap.String("complaint_number", complaint.ComplaintNumber),
		zap.String("created_by", actor.ID))
	return complaint, nil
}

// Get loads a single complaint the actor is allowed to see.
func (s *ComplaintService) Get(ctx context.Context, id string, actor *models.User) (*models.Complaint, error) {
	complaint, err := s.complaints.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load complaint")
	}
	if !authz.CanView(actor, complaint) {
		return nil, appErrors.ErrForbidden
	}
	return complaint, nil
}

// List returns complaints visible to the actor, filtered and paginated.
func (s *ComplaintService) List(ctx context.Context, query dto.ComplaintQuery, actor *models.User) ([]models.Complaint, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	filter := models.ComplaintFilter{
		Status:       query.Status,
		Priority:     query.Priority,
		CategoryID:   query.CategoryID,
		DepartmentID: query.DepartmentID,
		CreatedBy:    query.CreatedBy,
		AssignedTo:   query.AssignedTo,
		Search:       query.Search,
		Page:         query.Page,
		PageSize:     query.PageSize,
		SortBy:       query.SortBy,
		SortOrder:    query.SortOrder,
		Viewer:       actor,
	}
	complaints, total, err := s.complaints.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list complaints")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 20
	}
	return complaints, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Update edits complaint fields. Creators may edit only while the complaint
// is pending or in progress; the edit itself lands with one history entry.
func (s *ComplaintService) Update(ctx context.Context, id string, req dto.UpdateComplaintRequest, actor *models.User) (*models.Complaint, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	complaint, err := s.complaints.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load complaint")
	}
	if !authz.CanUpdate(actor, complaint) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to edit this complaint")
	}
	if req.Priority != nil && !req.Priority.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown priority")
	}

	changed := changedFields(req)
	if len(changed) == 0 {
		return complaint, nil
	}
	actorID := actor.ID
	meta, _ := json.Marshal(map[string]interface{}{
		"fields":     changed,
		"actor_name": actor.FullName,
	})
	entry := &models.ComplaintHistory{
		ComplaintID: complaint.ID,
		Action:      models.HistoryActionUpdated,
		Description: "Complaint details updated",
		ActorID:     &actorID,
		Metadata:    meta,
		CreatedAt:   time.Now().UTC(),
	}
	params := repository.UpdateDetailsParams{
		ComplaintID: complaint.ID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		CategoryID:  req.CategoryID,
		IsPublic:    req.IsPublic,
		DueDate:     req.DueDate,
	}
	if err := s.complaints.UpdateDetails(ctx, params, entry); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update complaint")
	}
	return s.complaints.GetByID(ctx, id)
}

// Delete soft-deletes the complaint so its history trail survives.
// Complaints being worked on or already resolved cannot be deleted by
// anyone; close or cancel them instead.
func (s *ComplaintService) Delete(ctx context.Context, id string, actor *models.User) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	complaint, err := s.complaints.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load complaint")
	}
	if complaint.Status == models.ComplaintStatusInProgress || complaint.Status == models.ComplaintStatusResolved {
		return appErrors.Clone(appErrors.ErrDeleteBlocked,
			"complaints in progress or resolved cannot be deleted")
	}
	if !authz.CanDelete(actor, complaint) {
		return appErrors.Clone(appErrors.ErrForbidden, "not allowed to delete this complaint")
	}

	actorID := actor.ID
	meta, _ := json.Marshal(map[string]interface{}{
		"status_at_delete": complaint.Status,
		"actor_name":       actor.FullName,
	})
	entry := &models.ComplaintHistory{
		ComplaintID: complaint.ID,
		Action:      models.HistoryActionDeleted,
		Description: "Complaint deleted",
		ActorID:     &actorID,
		Metadata:    meta,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.complaints.SoftDelete(ctx, id, time.Time{}, entry); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete complaint")
	}
	return nil
}

// Timeline returns the complaint's history, newest first.
func (s *ComplaintService) Timeline(ctx context.Context, complaintID string, actor *models.User, limit, offset int) ([]models.ComplaintHistory, error) {
	complaint, err := s.complaints.GetByID(ctx, complaintID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load complaint")
	}
	if !authz.CanView(actor, complaint) {
		return nil, appErrors.ErrForbidden
	}
	entries, err := s.history.ListByComplaint(ctx, models.HistoryFilter{
		ComplaintID: complaintID,
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load complaint history")
	}
	return entries, nil
}

func changedFields(req dto.UpdateComplaintRequest) []string {
	fields := make([]string, 0, 6)
	if req.Title != nil {
		fields = append(fields, "title")
	}
	if req.Description != nil {
		fields = append(fields, "description")
	}
	if req.Priority != nil {
		fields = append(fields, "priority")
	}
	if req.CategoryID != nil {
		fields = append(fields, "category_id")
	}
	if req.IsPublic != nil {
		fields = append(fields, "is_public")
	}
	if req.DueDate != nil {
		fields = append(fields, "due_date")
	}
	return fields
}
