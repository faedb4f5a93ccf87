// Package authz holds the pure authorization predicates shared by the
// status and assignment engines and the HTTP handlers. Predicates perform
// no I/O: every decision is a function of the actor, the complaint and an
// optional target status.
package authz

import "github.com/noah-isme/scms-api/internal/models"

// leadership roles carry the same blanket standing as admins for workflow
// mutations.
func isLeadership(role models.UserRole) bool {
	return role == models.RoleVicePrincipal || role == models.RolePrincipal
}

func isAssignee(actor *models.User, complaint *models.Complaint) bool {
	return complaint.AssignedTo != nil && *complaint.AssignedTo == actor.ID
}

func isCreator(actor *models.User, complaint *models.Complaint) bool {
	return complaint.CreatedBy == actor.ID
}

func departmentMatches(actor *models.User, complaint *models.Complaint) bool {
	return actor.DepartmentID != nil && complaint.DepartmentID != nil &&
		*actor.DepartmentID == *complaint.DepartmentID
}

func isDepartmentHeadFor(actor *models.User, complaint *models.Complaint) bool {
	return actor.Role == models.RoleDepartmentHead && departmentMatches(actor, complaint)
}

func isSchoolStaff(role models.UserRole) bool {
	switch role {
	case models.RoleTeacher, models.RoleStaff, models.RoleDepartmentHead,
		models.RoleSecurityStaff, models.RoleOpsStaff:
		return true
	}
	return false
}

// CanView decides read access to a complaint.
func CanView(actor *models.User, complaint *models.Complaint) bool {
	if actor == nil || complaint == nil {
		return false
	}
	if actor.Role.IsAdminEquivalent() || isLeadership(actor.Role) {
		return true
	}
	if isAssignee(actor, complaint) || isCreator(actor, complaint) {
		return true
	}
	if !complaint.IsPublic {
		return false
	}
	if isSchoolStaff(actor.Role) && departmentMatches(actor, complaint) {
		return true
	}
	if complaint.StudentID != nil && actor.StudentID != nil && *actor.StudentID == *complaint.StudentID {
		return actor.Role == models.RoleParent || actor.Role == models.RoleStudent
	}
	return false
}

// CanUpdate decides whether the actor may edit complaint fields.
func CanUpdate(actor *models.User, complaint *models.Complaint) bool {
	if actor == nil || complaint == nil {
		return false
	}
	if actor.Role.IsAdminEquivalent() {
		return true
	}
	if isAssignee(actor, complaint) {
		return true
	}
	if isCreator(actor, complaint) {
		return complaint.Status == models.ComplaintStatusPending ||
			complaint.Status == models.ComplaintStatusInProgress
	}
	return false
}

// CanDelete decides whether the actor may delete the complaint. The
// status-based hard block for IN_PROGRESS/RESOLVED complaints is a separate
// precondition enforced by the service, independent of this permission.
func CanDelete(actor *models.User, complaint *models.Complaint) bool {
	if actor == nil || complaint == nil {
		return false
	}
	if actor.Role.IsAdminEquivalent() {
		return true
	}
	return isCreator(actor, complaint) && complaint.Status == models.ComplaintStatusPending
}

// CanUpdateStatus decides whether the actor may move the complaint to the
// target status. Transition legality is checked separately by the status
// engine.
func CanUpdateStatus(actor *models.User, complaint *models.Complaint, target models.ComplaintStatus) bool {
	if actor == nil || complaint == nil {
		return false
	}
	if actor.Role.IsAdminEquivalent() || isLeadership(actor.Role) {
		return true
	}
	if isAssignee(actor, complaint) {
		return true
	}
	if isDepartmentHeadFor(actor, complaint) {
		return true
	}
	return isCreator(actor, complaint) && target == models.ComplaintStatusCancelled
}

// CanAssign decides whether the actor may assign, reassign or unassign the
// complaint. The current assignee may redirect their own assignment.
func CanAssign(actor *models.User, complaint *models.Complaint) bool {
	if actor == nil || complaint == nil {
		return false
	}
	if actor.Role.IsAdminEquivalent() || isLeadership(actor.Role) {
		return true
	}
	if isDepartmentHeadFor(actor, complaint) {
		return true
	}
	return isAssignee(actor, complaint)
}
