package models

import "time"

// StatusCount pairs a status with its complaint count.
type StatusCount struct {
	Status ComplaintStatus `db:"status" json:"status"`
	Count  int             `db:"count" json:"count"`
}

// PriorityCount pairs a priority with its complaint count.
type PriorityCount struct {
	Priority ComplaintPriority `db:"priority" json:"priority"`
	Count    int               `db:"count" json:"count"`
}

// DepartmentCount pairs a department with its complaint count.
type DepartmentCount struct {
	DepartmentID   string `db:"department_id" json:"department_id"`
	DepartmentName string `db:"department_name" json:"department_name"`
	Count          int    `db:"count" json:"count"`
}

// DashboardSummary aggregates complaint statistics for the admin dashboard.
type DashboardSummary struct {
	Total              int               `json:"total"`
	ByStatus           []StatusCount     `json:"by_status"`
	ByPriority         []PriorityCount   `json:"by_priority"`
	ByDepartment       []DepartmentCount `json:"by_department"`
	OpenOverSevenDays  int               `json:"open_over_seven_days"`
	ResolvedLastThirty int               `json:"resolved_last_thirty_days"`
	GeneratedAt        time.Time         `json:"generated_at"`
}
