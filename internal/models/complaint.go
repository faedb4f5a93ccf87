package models

import "time"

// ComplaintStatus captures workflow states for complaints.
type ComplaintStatus string

const (
	ComplaintStatusPending    ComplaintStatus = "PENDING"
	ComplaintStatusAssigned   ComplaintStatus = "ASSIGNED"
	ComplaintStatusInProgress ComplaintStatus = "IN_PROGRESS"
	ComplaintStatusResolved   ComplaintStatus = "RESOLVED"
	ComplaintStatusClosed     ComplaintStatus = "CLOSED"
	ComplaintStatusCancelled  ComplaintStatus = "CANCELLED"
)

// ComplaintPriority enumerates urgency levels. Priority is freely mutable
// and not gated by the status workflow.
type ComplaintPriority string

const (
	PriorityLow    ComplaintPriority = "LOW"
	PriorityNormal ComplaintPriority = "NORMAL"
	PriorityHigh   ComplaintPriority = "HIGH"
	PriorityUrgent ComplaintPriority = "URGENT"
)

// Valid reports whether the priority is a known value.
func (p ComplaintPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Valid reports whether the status is a known value.
func (s ComplaintStatus) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// statusTransitions is the allowed-next table for the complaint workflow.
// CLOSED and CANCELLED both have outward transitions: any complaint can be
// reopened.
var statusTransitions = map[ComplaintStatus][]ComplaintStatus{
	ComplaintStatusPending:    {ComplaintStatusAssigned, ComplaintStatusInProgress, ComplaintStatusCancelled},
	ComplaintStatusAssigned:   {ComplaintStatusInProgress, ComplaintStatusPending, ComplaintStatusCancelled},
	ComplaintStatusInProgress: {ComplaintStatusResolved, ComplaintStatusAssigned, ComplaintStatusCancelled},
	ComplaintStatusResolved:   {ComplaintStatusClosed, ComplaintStatusInProgress},
	ComplaintStatusClosed:     {ComplaintStatusInProgress},
	ComplaintStatusCancelled:  {ComplaintStatusPending},
}

// CanTransition reports whether moving from one status to another is legal.
// Self-loops are not implicitly legal.
func CanTransition(from, to ComplaintStatus) bool {
	for _, allowed := range statusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the legal next statuses for the given status.
func AllowedTransitions(from ComplaintStatus) []ComplaintStatus {
	allowed, ok := statusTransitions[from]
	if !ok {
		return nil
	}
	out := make([]ComplaintStatus, len(allowed))
	copy(out, allowed)
	return out
}

// requiredStatusFields maps target statuses to payload fields that must be
// present before the transition is applied.
var requiredStatusFields = map[ComplaintStatus][]string{
	ComplaintStatusResolved:  {"resolution_note"},
	ComplaintStatusCancelled: {"reason"},
}

// RequiredFieldsFor returns the payload fields mandated for a target status.
func RequiredFieldsFor(status ComplaintStatus) []string {
	return requiredStatusFields[status]
}

var statusLabels = map[ComplaintStatus]string{
	ComplaintStatusPending:    "Pending",
	ComplaintStatusAssigned:   "Assigned",
	ComplaintStatusInProgress: "In Progress",
	ComplaintStatusResolved:   "Resolved",
	ComplaintStatusClosed:     "Closed",
	ComplaintStatusCancelled:  "Cancelled",
}

// Label returns a human-readable label for history descriptions.
func (s ComplaintStatus) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// OpenStatuses are the statuses counted as an active workload for an
// assignee.
func OpenStatuses() []ComplaintStatus {
	return []ComplaintStatus{ComplaintStatusPending, ComplaintStatusAssigned, ComplaintStatusInProgress}
}

// Complaint is the aggregate root of the complaint workflow.
type Complaint struct {
	ID              string            `db:"id" json:"id"`
	ComplaintNumber string            `db:"complaint_number" json:"complaint_number"`
	Title           string            `db:"title" json:"title"`
	Description     string            `db:"description" json:"description"`
	Status          ComplaintStatus   `db:"status" json:"status"`
	Priority        ComplaintPriority `db:"priority" json:"priority"`
	CategoryID      *string           `db:"category_id" json:"category_id,omitempty"`
	DepartmentID    *string           `db:"department_id" json:"department_id,omitempty"`
	StudentID       *string           `db:"student_id" json:"student_id,omitempty"`
	IsPublic        bool              `db:"is_public" json:"is_public"`

	CreatedBy string `db:"created_by" json:"created_by"`

	AssignedTo *string    `db:"assigned_to" json:"assigned_to,omitempty"`
	AssignedBy *string    `db:"assigned_by" json:"assigned_by,omitempty"`
	AssignedAt *time.Time `db:"assigned_at" json:"assigned_at,omitempty"`

	StartedAt   *time.Time `db:"started_at" json:"started_at,omitempty"`
	StartedBy   *string    `db:"started_by" json:"started_by,omitempty"`
	ResolvedAt  *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	ResolvedBy  *string    `db:"resolved_by" json:"resolved_by,omitempty"`
	ClosedAt    *time.Time `db:"closed_at" json:"closed_at,omitempty"`
	ClosedBy    *string    `db:"closed_by" json:"closed_by,omitempty"`
	CancelledAt *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancelledBy *string    `db:"cancelled_by" json:"cancelled_by,omitempty"`

	ResolutionNote     *string `db:"resolution_note" json:"resolution_note,omitempty"`
	ResolutionCategory *string `db:"resolution_category" json:"resolution_category,omitempty"`
	CancellationReason *string `db:"cancellation_reason" json:"cancellation_reason,omitempty"`

	AssignmentNote   *string    `db:"assignment_note" json:"assignment_note,omitempty"`
	EscalationLevel  int        `db:"escalation_level" json:"escalation_level"`
	RequiresApproval bool       `db:"requires_approval" json:"requires_approval"`
	AutoAssigned     bool       `db:"auto_assigned" json:"auto_assigned"`
	DueDate          *time.Time `db:"due_date" json:"due_date,omitempty"`

	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// ComplaintFilter constrains listing queries.
type ComplaintFilter struct {
	Status       []ComplaintStatus
	Priority     []ComplaintPriority
	CategoryID   string
	DepartmentID string
	CreatedBy    string
	AssignedTo   string
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string

	// Viewer, when set, restricts results to complaints the viewer is
	// allowed to see. Admin-equivalent and leadership viewers are not
	// restricted.
	Viewer *User
}

// ComplaintCategory groups complaints and optionally names a default
// assignee for auto-assignment.
type ComplaintCategory struct {
	ID                string    `db:"id" json:"id"`
	Name              string    `db:"name" json:"name"`
	Description       string    `db:"description" json:"description"`
	DefaultAssigneeID *string   `db:"default_assignee_id" json:"default_assignee_id,omitempty"`
	Active            bool      `db:"active" json:"active"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// Department groups staff; its head is the auto-assignment fallback.
type Department struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	HeadID    *string   `db:"head_id" json:"head_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
