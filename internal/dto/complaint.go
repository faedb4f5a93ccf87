package dto

import (
	"time"

	"github.com/noah-isme/scms-api/internal/models"
)

// CreateComplaintRequest payload for filing a new complaint.
type CreateComplaintRequest struct {
	Title        string                   `json:"title" binding:"required,max=200" validate:"required,max=200"`
	Description  string                   `json:"description" binding:"required" validate:"required"`
	Priority     models.ComplaintPriority `json:"priority"`
	CategoryID   *string                  `json:"category_id"`
	DepartmentID *string                  `json:"department_id"`
	StudentID    *string                  `json:"student_id"`
	IsPublic     bool                     `json:"is_public"`
	DueDate      *time.Time               `json:"due_date"`
}

// UpdateComplaintRequest payload for editing complaint fields. Nil fields
// are left unchanged.
type UpdateComplaintRequest struct {
	Title       *string                   `json:"title"`
	Description *string                   `json:"description"`
	Priority    *models.ComplaintPriority `json:"priority"`
	CategoryID  *string                   `json:"category_id"`
	IsPublic    *bool                     `json:"is_public"`
	DueDate     *time.Time                `json:"due_date"`
}

// UpdateStatusRequest payload for a workflow transition. ResolutionNote is
// required when moving to RESOLVED; Reason is required when moving to
// CANCELLED.
type UpdateStatusRequest struct {
	Status             models.ComplaintStatus `json:"status" binding:"required"`
	ResolutionNote     *string                `json:"resolution_note"`
	ResolutionCategory *string                `json:"resolution_category"`
	Reason             *string                `json:"reason"`
	SatisfactionSurvey bool                   `json:"satisfaction_survey"`
	FollowUpRequired   bool                   `json:"follow_up_required"`
}

// ComplaintQuery mirrors supported listing filters.
type ComplaintQuery struct {
	Status       []models.ComplaintStatus
	Priority     []models.ComplaintPriority
	CategoryID   string
	DepartmentID string
	CreatedBy    string
	AssignedTo   string
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
