package authz

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/scms-api/internal/models"
)

func strPtr(s string) *string { return &s }

func testComplaint() *models.Complaint {
	return &models.Complaint{
		ID:           "complaint-1",
		Status:       models.ComplaintStatusPending,
		CreatedBy:    "parent-1",
		DepartmentID: strPtr("dept-1"),
		StudentID:    strPtr("student-1"),
	}
}

func userWith(id string, role models.UserRole) *models.User {
	return &models.User{ID: id, Role: role, Active: true}
}

func TestCanViewMatrix(t *testing.T) {
	complaint := testComplaint()
	complaint.AssignedTo = strPtr("staff-1")

	cases := []struct {
		name  string
		actor *models.User
		want  bool
	}{
		{"admin", userWith("u1", models.RoleAdmin), true},
		{"super admin", userWith("u2", models.RoleSuperAdmin), true},
		{"principal", userWith("u3", models.RolePrincipal), true},
		{"assignee", userWith("staff-1", models.RoleStaff), true},
		{"creator", userWith("parent-1", models.RoleParent), true},
		{"unrelated teacher, private complaint", userWith("t1", models.RoleTeacher), false},
		{"unrelated parent", userWith("p2", models.RoleParent), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, CanView(tc.actor, complaint))
		})
	}
}

func TestCanViewPublicComplaint(t *testing.T) {
	complaint := testComplaint()
	complaint.IsPublic = true

	sameDeptStaff := userWith("s1", models.RoleStaff)
	sameDeptStaff.DepartmentID = strPtr("dept-1")
	require.True(t, CanView(sameDeptStaff, complaint))

	otherDeptStaff := userWith("s2", models.RoleStaff)
	otherDeptStaff.DepartmentID = strPtr("dept-2")
	require.False(t, CanView(otherDeptStaff, complaint))

	parentOfStudent := userWith("p1", models.RoleParent)
	parentOfStudent.StudentID = strPtr("student-1")
	require.True(t, CanView(parentOfStudent, complaint))

	matchingStudent := userWith("st1", models.RoleStudent)
	matchingStudent.StudentID = strPtr("student-1")
	require.True(t, CanView(matchingStudent, complaint))

	otherStudent := userWith("st2", models.RoleStudent)
	otherStudent.StudentID = strPtr("student-2")
	require.False(t, CanView(otherStudent, complaint))
}

func TestCanUpdateByStatus(t *testing.T) {
	creator := userWith("parent-1", models.RoleParent)

	for _, status := range []models.ComplaintStatus{
		models.ComplaintStatusPending,
		models.ComplaintStatusInProgress,
	} {
		complaint := testComplaint()
		complaint.Status = status
		require.True(t, CanUpdate(creator, complaint), "creator should update in %s", status)
	}

	for _, status := range []models.ComplaintStatus{
		models.ComplaintStatusAssigned,
		models.ComplaintStatusResolved,
		models.ComplaintStatusClosed,
		models.ComplaintStatusCancelled,
	} {
		complaint := testComplaint()
		complaint.Status = status
		require.False(t, CanUpdate(creator, complaint), "creator should not update in %s", status)
	}

	complaint := testComplaint()
	complaint.Status = models.ComplaintStatusClosed
	require.True(t, CanUpdate(userWith("a1", models.RoleAdmin), complaint))
}

func TestCanDelete(t *testing.T) {
	complaint := testComplaint()
	creator := userWith("parent-1", models.RoleParent)
	require.True(t, CanDelete(creator, complaint))

	complaint.Status = models.ComplaintStatusAssigned
	require.False(t, CanDelete(creator, complaint))
	require.True(t, CanDelete(userWith("a1", models.RoleAdmin), complaint))

	require.False(t, CanDelete(userWith("t1", models.RoleTeacher), complaint))
}

func TestCanUpdateStatusMatrix(t *testing.T) {
	complaint := testComplaint()
	complaint.AssignedTo = strPtr("staff-1")

	deptHead := userWith("dh1", models.RoleDepartmentHead)
	deptHead.DepartmentID = strPtr("dept-1")

	otherDeptHead := userWith("dh2", models.RoleDepartmentHead)
	otherDeptHead.DepartmentID = strPtr("dept-2")

	cases := []struct {
		name   string
		actor  *models.User
		target models.ComplaintStatus
		want   bool
	}{
		{"admin", userWith("a1", models.RoleAdmin), models.ComplaintStatusAssigned, true},
		{"vice principal", userWith("vp1", models.RoleVicePrincipal), models.ComplaintStatusInProgress, true},
		{"assignee", userWith("staff-1", models.RoleStaff), models.ComplaintStatusInProgress, true},
		{"matching department head", deptHead, models.ComplaintStatusInProgress, true},
		{"other department head", otherDeptHead, models.ComplaintStatusInProgress, false},
		{"creator cancelling", userWith("parent-1", models.RoleParent), models.ComplaintStatusCancelled, true},
		{"creator resolving", userWith("parent-1", models.RoleParent), models.ComplaintStatusResolved, false},
		{"unrelated teacher", userWith("t1", models.RoleTeacher), models.ComplaintStatusInProgress, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, CanUpdateStatus(tc.actor, complaint, tc.target))
		})
	}
}

func TestCanAssignMatrix(t *testing.T) {
	complaint := testComplaint()
	complaint.AssignedTo = strPtr("staff-1")

	deptHead := userWith("dh1", models.RoleDepartmentHead)
	deptHead.DepartmentID = strPtr("dept-1")

	require.True(t, CanAssign(userWith("a1", models.RoleSuperAdmin), complaint))
	require.True(t, CanAssign(userWith("p1", models.RolePrincipal), complaint))
	require.True(t, CanAssign(deptHead, complaint))
	require.True(t, CanAssign(userWith("staff-1", models.RoleStaff), complaint), "assignee may redirect own assignment")
	require.False(t, CanAssign(userWith("parent-1", models.RoleParent), complaint), "creator has no assign standing")
	require.False(t, CanAssign(userWith("t1", models.RoleTeacher), complaint))
}
