package models

import "time"

// NotificationEvent tags the trigger for a notification.
type NotificationEvent string

const (
	NotificationStatusChanged      NotificationEvent = "STATUS_CHANGED"
	NotificationAssigned           NotificationEvent = "ASSIGNED"
	NotificationCommentAdded       NotificationEvent = "COMMENT_ADDED"
	NotificationSatisfactionSurvey NotificationEvent = "SATISFACTION_SURVEY"
	NotificationFollowUp           NotificationEvent = "FOLLOW_UP"
)

// Notification is a persisted per-user notification record.
type Notification struct {
	ID          string            `db:"id" json:"id"`
	UserID      string            `db:"user_id" json:"user_id"`
	ComplaintID *string           `db:"complaint_id" json:"complaint_id,omitempty"`
	Event       NotificationEvent `db:"event" json:"event"`
	Title       string            `db:"title" json:"title"`
	Body        string            `db:"body" json:"body"`
	Read        bool              `db:"read" json:"read"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
}
