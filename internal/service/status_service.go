package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/scms-api/internal/authz"
	"github.com/noah-isme/scms-api/internal/dto"
	"github.com/noah-isme/scms-api/internal/models"
	"github.com/noah-isme/scms-api/internal/repository"
	appErrors "github.com/noah-isme/scms-api/pkg/errors"
)

type statusComplaintStore interface {
	GetByID(ctx context.Context, id string) (*models.Complaint, error)
	ApplyStatusUpdate(ctx context.Context, params repository.StatusUpdateParams, entry *models.ComplaintHistory) error
}

// WorkflowNotifier receives fire-and-forget workflow events. Implementations
// must never fail the calling operation: delivery problems are logged and
// swallowed.
type WorkflowNotifier interface {
	ComplaintStatusChanged(complaint *models.Complaint, actor *models.User, from, to models.ComplaintStatus)
	ComplaintAssigned(complaint *models.Complaint, assignee, assigner *models.User)
	CommentAdded(complaint *models.Complaint, comment *models.ComplaintComment, author *models.User)
	ScheduleSatisfactionSurvey(complaint *models.Complaint)
	ScheduleFollowUp(complaint *models.Complaint)
}

// transitionRecorder counts workflow outcomes for observability.
type transitionRecorder interface {
	ObserveStatusTransition(from, to models.ComplaintStatus)
}

// conflictRetries bounds re-validation attempts when a concurrent writer
// moves the complaint between our read and the locked update.
const conflictRetries = 3

// StatusService owns the complaint status value and enforces legal
// transitions. Every successful transition writes its side-effect stamps
// and exactly one history entry in a single transaction.
type StatusService struct {
	complaints statusComplaintStore
	notifier   WorkflowNotifier
	metrics    transitionRecorder
	logger     *zap.Logger
}

// StatusServiceOption configures the service.
type StatusServiceOption func(*StatusService)

// WithStatusNotifier attaches the workflow notifier.
func WithStatusNotifier(notifier WorkflowNotifier) StatusServiceOption {
	return func(s *StatusService) { s.notifier = notifier }
}

// WithTransitionRecorder attaches a metrics recorder.
func WithTransitionRecorder(recorder transitionRecorder) StatusServiceOption {
	return func(s *StatusService) { s.metrics = recorder }
}

// NewStatusService constructs the service.
func NewStatusService(complaints statusComplaintStore, logger *zap.Logger, opts ...StatusServiceOption) *StatusService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &StatusService{complaints: complaints, logger: logger}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// UpdateStatus transitions the complaint to the requested status on behalf
// of the actor. Authorization, transition legality and required fields are
// all validated before anything is written; a failed validation leaves the
// complaint and its history untouched.
func (s *StatusService) UpdateStatus(ctx context.Context, complaintID string, req dto.UpdateStatusRequest, actor *models.User) (*models.Complaint, error) {
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

	for attempt := 0; ; attempt++ {
		from := complaint.Status

		if !authz.CanUpdateStatus(actor, complaint, req.Status) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to change complaint status")
		}
		if !models.CanTransition(from, req.Status) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
				fmt.Sprintf("cannot move complaint from %s to %s", from.Label(), req.Status.Label()))
		}
		if err := validateRequiredFields(req); err != nil {
			return nil, err
		}

		entry := s.buildHistoryEntry(complaint, req, actor, from)
		params := repository.StatusUpdateParams{
			ComplaintID:        complaint.ID,
			From:               from,
			To:                 req.Status,
			ActorID:            actor.ID,
			ResolutionNote:     req.ResolutionNote,
			ResolutionCategory: req.ResolutionCategory,
			CancellationReason: req.Reason,
		}

		err = s.complaints.ApplyStatusUpdate(ctx, params, entry)
		if err == nil {
			break
		}
		if errors.Is(err, repository.ErrStatusConflict) && attempt < conflictRetries {
			// Another writer moved the complaint; re-validate against the
			// fresh state instead of failing on a stale read.
			complaint, err = s.complaints.GetByID(ctx, complaintID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, appErrors.ErrNotFound
				}
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload complaint")
			}
			continue
		}
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "complaint is being modified concurrently")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		s.logger.Error("status update failed",
			zap.String("complaint_id", complaintID),
			zap.String("actor_id", actor.ID),
			zap.String("from", string(complaint.Status)),
			zap.String("to", string(req.Status)),
			zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update complaint status")
	}

	from := complaint.Status
	updated, err := s.complaints.GetByID(ctx, complaintID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload complaint")
	}

	if s.metrics != nil {
		s.metrics.ObserveStatusTransition(from, req.Status)
	}
	if s.notifier != nil {
		s.notifier.ComplaintStatusChanged(updated, actor, from, req.Status)
		if req.Status == models.ComplaintStatusResolved && req.SatisfactionSurvey {
			s.notifier.ScheduleSatisfactionSurvey(updated)
		}
		if req.FollowUpRequired {
			s.notifier.ScheduleFollowUp(updated)
		}
	}

	return updated, nil
}

// AllowedTransitions exposes the legal next statuses for UI consumption.
func (s *StatusService) AllowedTransitions(ctx context.Context, complaintID string, actor *models.User) ([]models.ComplaintStatus, error) {
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
	allowed := make([]models.ComplaintStatus, 0, 3)
	for _, next := range models.AllowedTransitions(complaint.Status) {
		if authz.CanUpdateStatus(actor, complaint, next) {
			allowed = append(allowed, next)
		}
	}
	return allowed, nil
}

func validateRequiredFields(req dto.UpdateStatusRequest) error {
	for _, field := range models.RequiredFieldsFor(req.Status) {
		switch field {
		case "resolution_note":
			if req.ResolutionNote == nil || strings.TrimSpace(*req.ResolutionNote) == "" {
				return appErrors.Clone(appErrors.ErrMissingField, "resolution_note is required to resolve a complaint")
			}
		case "reason":
			if req.Reason == nil || strings.TrimSpace(*req.Reason) == "" {
				return appErrors.Clone(appErrors.ErrMissingField, "reason is required to cancel a complaint")
			}
		}
	}
	return nil
}

func (s *StatusService) buildHistoryEntry(complaint *models.Complaint, req dto.UpdateStatusRequest, actor *models.User, from models.ComplaintStatus) *models.ComplaintHistory {
	description := fmt.Sprintf("Status changed from %s to %s", from.Label(), req.Status.Label())
	meta := map[string]interface{}{
		"old_status": from,
		"new_status": req.Status,
		"old_label":  from.Label(),
		"new_label":  req.Status.Label(),
		"actor_name": actor.FullName,
	}
	if req.Reason != nil && *req.Reason != "" {
		meta["reason"] = *req.Reason
		description += ": " + *req.Reason
	}
	if req.ResolutionNote != nil && *req.ResolutionNote != "" {
		meta["resolution_note"] = *req.ResolutionNote
	}
	payload, err := json.Marshal(meta)
	if err != nil {
		payload = []byte("{}")
	}
	actorID := actor.ID
	return &models.ComplaintHistory{
		ComplaintID: complaint.ID,
		Action:      models.HistoryActionStatusChanged,
		Description: description,
		ActorID:     &actorID,
		Metadata:    payload,
		CreatedAt:   time.Now().UTC(),
	}
}
