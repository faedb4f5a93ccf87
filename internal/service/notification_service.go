package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/scms-api/internal/models"
	"github.com/noah-isme/scms-api/pkg/config"
	appErrors "github.com/noah-isme/scms-api/pkg/errors"
	"github.com/noah-isme/scms-api/pkg/jobs"
)

type notificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
}

// NotificationService fans workflow events out to affected users through an
// in-memory job queue. Delivery is best effort: enqueue failures are logged
// and never surface to the operation that triggered them.
//
// It implements WorkflowNotifier.
type NotificationService struct {
	store   notificationStore
	queue   *jobs.Queue
	metrics queueDepthRecorder
	logger  *zap.Logger
}

type queueDepthRecorder interface {
	SetQueueDepth(depth int)
}

// NotificationServiceOption configures the service.
type NotificationServiceOption func(*NotificationService)

// WithQueueDepthRecorder attaches a gauge recorder for the dispatch buffer.
func WithQueueDepthRecorder(recorder queueDepthRecorder) NotificationServiceOption {
	return func(s *NotificationService) { s.metrics = recorder }
}

// NewNotificationService builds the service and its dispatch queue. Call
// Start before use and Stop on shutdown.
func NewNotificationService(store notificationStore, cfg config.NotificationsConfig, logger *zap.Logger, opts ...NotificationServiceOption) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &NotificationService{store: store, logger: logger}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	svc.queue = jobs.NewQueue("notifications", svc.deliver, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return svc
}

// Start launches the dispatch workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the dispatch workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	notification, ok := job.Payload.(*models.Notification)
	if !ok {
		s.logger.Error("notification job carried unexpected payload", zap.String("job_id", job.ID))
		return nil
	}
	return s.store.Create(ctx, notification)
}

// enqueue pushes one notification per recipient, skipping the actor who
// caused the event.
func (s *NotificationService) enqueue(event models.NotificationEvent, complaint *models.Complaint, title, body, skipUserID string) {
	recipients := make(map[string]struct{}, 2)
	if complaint.CreatedBy != "" {
		recipients[complaint.CreatedBy] = struct{}{}
	}
	if complaint.AssignedTo != nil {
		recipients[*complaint.AssignedTo] = struct{}{}
	}
	delete(recipients, skipUserID)

	for userID := range recipients {
		complaintID := complaint.ID
		notification := &models.Notification{
			ID:          uuid.NewString(),
			UserID:      userID,
			ComplaintID: &complaintID,
			Event:       event,
			Title:       title,
			Body:        body,
		}
		job := jobs.Job{ID: notification.ID, Type: string(event), Payload: notification}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Warn("dropping notification, queue unavailable",
				zap.String("event", string(event)),
				zap.String("user_id", userID),
				zap.String("complaint_id", complaint.ID),
				zap.Error(err))
		}
	}
	if s.metrics != nil {
		s.metrics.SetQueueDepth(s.queue.Depth())
	}
}

// ComplaintStatusChanged notifies the creator and assignee of a transition.
func (s *NotificationService) ComplaintStatusChanged(complaint *models.Complaint, actor *models.User, from, to models.ComplaintStatus) {
	title := fmt.Sprintf("Complaint %s is now %s", complaint.ComplaintNumber, to.Label())
	body := fmt.Sprintf("%s moved complaint %q from %s to %s.", actor.FullName, complaint.Title, from.Label(), to.Label())
	s.enqueue(models.NotificationStatusChanged, complaint, title, body, actor.ID)
}

// ComplaintAssigned notifies the parties of a new assignment.
func (s *NotificationService) ComplaintAssigned(complaint *models.Complaint, assignee, assigner *models.User) {
	title := fmt.Sprintf("Complaint %s assigned", complaint.ComplaintNumber)
	body := fmt.Sprintf("%s assigned complaint %q to %s.", assigner.FullName, complaint.Title, assignee.FullName)
	s.enqueue(models.NotificationAssigned, complaint, title, body, assigner.ID)
}

// CommentAdded notifies the parties of a new public comment.
func (s *NotificationService) CommentAdded(complaint *models.Complaint, comment *models.ComplaintComment, author *models.User) {
	if comment.Internal {
		return
	}
	title := fmt.Sprintf("New comment on complaint %s", complaint.ComplaintNumber)
	body := fmt.Sprintf("%s commented on complaint %q.", author.FullName, complaint.Title)
	s.enqueue(models.NotificationCommentAdded, complaint, title, body, author.ID)
}

// ScheduleSatisfactionSurvey asks the creator how the resolution went.
func (s *NotificationService) ScheduleSatisfactionSurvey(complaint *models.Complaint) {
	title := fmt.Sprintf("How did we handle complaint %s?", complaint.ComplaintNumber)
	body := fmt.Sprintf("Complaint %q has been resolved. Please rate your experience.", complaint.Title)
	s.enqueue(models.NotificationSatisfactionSurvey, complaint, title, body, "")
}

// ScheduleFollowUp reminds the assignee that a follow up was requested.
func (s *NotificationService) ScheduleFollowUp(complaint *models.Complaint) {
	title := fmt.Sprintf("Follow up requested on complaint %s", complaint.ComplaintNumber)
	body := fmt.Sprintf("A follow up was requested for complaint %q.", complaint.Title)
	s.enqueue(models.NotificationFollowUp, complaint, title, body, "")
}

// ListForUser returns the user's notifications, newest first.
func (s *NotificationService) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	notifications, err := s.store.ListByUser(ctx, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return notifications, nil
}

// MarkRead flags one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	if err := s.store.MarkRead(ctx, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}
