package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/scms-api/internal/authz"
	"github.com/noah-isme/scms-api/internal/dto"
	"github.com/noah-isme/scms-api/internal/models"
	appErrors "github.com/noah-isme/scms-api/pkg/errors"
)

type commentStore interface {
	Create(ctx context.Context, comment *models.ComplaintComment) error
	ListByComplaint(ctx context.Context, filter models.CommentFilter) ([]models.ComplaintComment, error)
}

type commentComplaintStore interface {
	GetByID(ctx context.Context, id string) (*models.Complaint, error)
}

// CommentService manages the discussion thread on a complaint. Internal
// comments are visible to staff only.
type CommentService struct {
	comments   commentStore
	complaints commentComplaintStore
	notifier   WorkflowNotifier
	logger     *zap.Logger
}

// CommentServiceOption configures the service.
type CommentServiceOption func(*CommentService)

// WithCommentNotifier attaches the workflow notifier.
func WithCommentNotifier(notifier WorkflowNotifier) CommentServiceOption {
	return func(s *CommentService) { s.notifier = notifier }
}

// NewCommentService constructs the service.
func NewCommentService(comments commentStore, complaints commentComplaintStore, logger *zap.Logger, opts ...CommentServiceOption) *CommentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &CommentService{comments: comments, complaints: complaints, logger: logger}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// staffVisibility reports whether the actor may read and write internal
// comments on the complaint.
func staffVisibility(actor *models.User, complaint *models.Complaint) bool {
	if actor.Role.IsAdminEquivalent() {
		return true
	}
	if complaint.AssignedTo != nil && *complaint.AssignedTo == actor.ID {
		return true
	}
	switch actor.Role {
	case models.RoleTeacher, models.RoleStaff, models.RoleDepartmentHead,
		models.RoleVicePrincipal, models.RolePrincipal,
		models.RoleSecurityStaff, models.RoleOpsStaff:
		return true
	}
	return false
}

// Add posts a comment on the complaint.
func (s *CommentService) Add(ctx context.Context, complaintID string, req dto.CreateCommentRequest, actor *models.User) (*models.ComplaintComment, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if strings.TrimSpace(req.Body) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "comment body must not be empty")
	}

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
	if req.Internal && !staffVisibility(actor, complaint) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "internal comments are restricted to staff")
	}

	comment := &models.ComplaintComment{
		ComplaintID: complaint.ID,
		AuthorID:    actor.ID,
		Body:        req.Body,
		Internal:    req.Internal,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create comment")
	}
	if s.notifier != nil {
		s.notifier.CommentAdded(complaint, comment, actor)
	}
	return comment, nil
}

// List returns the complaint's comments oldest first. Internal comments are
// included only for staff viewers.
func (s *CommentService) List(ctx context.Context, complaintID string, actor *models.User, limit, offset int) ([]models.ComplaintComment, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
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

	comments, err := s.comments.ListByComplaint(ctx, models.CommentFilter{
		ComplaintID:     complaintID,
		IncludeInternal: staffVisibility(actor, complaint),
		Limit:           limit,
		Offset:          offset,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list comments")
	}
	return comments, nil
}
