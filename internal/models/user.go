package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin     UserRole = "SUPER_ADMIN"
	RoleAdmin          UserRole = "ADMIN"
	RoleTeacher        UserRole = "TEACHER"
	RoleParent         UserRole = "PARENT"
	RoleStaff          UserRole = "STAFF"
	RoleDepartmentHead UserRole = "DEPARTMENT_HEAD"
	RoleVicePrincipal  UserRole = "VICE_PRINCIPAL"
	RolePrincipal      UserRole = "PRINCIPAL"
	RoleStudent        UserRole = "STUDENT"
	RoleSecurityStaff  UserRole = "SECURITY_STAFF"
	RoleOpsStaff       UserRole = "OPS_STAFF"
)

// IsAdminEquivalent reports whether the role carries blanket authorization.
func (r UserRole) IsAdminEquivalent() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	DepartmentID *string    `db:"department_id" json:"department_id,omitempty"`
	StudentID    *string    `db:"student_id" json:"student_id,omitempty"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role         *UserRole
	Roles        []UserRole
	DepartmentID string
	Active       *bool
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// AssignableUser is a user annotated with current workload availability.
type AssignableUser struct {
	User
	OpenAssignments int  `json:"open_assignments"`
	IsAvailable     bool `json:"is_available"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
