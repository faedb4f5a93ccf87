package dto

import (
	"time"

	"github.com/noah-isme/scms-api/internal/models"
)

// AssignRequest payload for manual assignment.
type AssignRequest struct {
	AssigneeID   string                    `json:"assignee_id" binding:"required"`
	DepartmentID *string                   `json:"department_id"`
	Priority     *models.ComplaintPriority `json:"priority"`
	DueDate      *time.Time                `json:"due_date"`
	Note         *string                   `json:"note"`
}

// ReassignRequest payload for redirecting an existing assignment.
type ReassignRequest struct {
	AssigneeID string  `json:"assignee_id" binding:"required"`
	Note       *string `json:"note"`
}
