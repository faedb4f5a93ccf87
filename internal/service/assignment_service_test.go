package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/scms-api/internal/dto"
	"github.com/noah-isme/scms-api/internal/models"
	"github.com/noah-isme/scms-api/internal/repository"
	"github.com/noah-isme/scms-api/pkg/config"
	appErrors "github.com/noah-isme/scms-api/pkg/errors"
)

type assignmentStoreStub struct {
	complaints map[string]*models.Complaint
	openCounts map[string]int
	history    []*models.ComplaintHistory
}

func newAssignmentStoreStub() *assignmentStoreStub {
	return &assignmentStoreStub{
		complaints: make(map[string]*models.Complaint),
		openCounts: make(map[string]int),
	}
}

func (s *assignmentStoreStub) GetByID(ctx context.Context, id string) (*models.Complaint, error) {
	c, ok := s.complaints[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *c
	return &copy, nil
}

func (s *assignmentStoreStub) ApplyAssignment(ctx context.Context, params repository.AssignmentParams, entry *models.ComplaintHistory) error {
	c, ok := s.complaints[params.ComplaintID]
	if !ok {
		return sql.ErrNoRows
	}
	now := time.Now().UTC()
	c.AssignedTo = &params.AssigneeID
	c.AssignedBy = &params.AssignerID
	c.AssignedAt = &now
	c.AutoAssigned = params.AutoAssigned
	if params.DepartmentID != nil {
		c.DepartmentID = params.DepartmentID
	}
	if params.Priority != nil {
		c.Priority = *params.Priority
	}
	if c.Status == models.ComplaintStatusPending {
		c.Status = models.ComplaintStatusAssigned
	}
	s.history = append(s.history, entry)
	return nil
}

func (s *assignmentStoreStub) ClearAssignment(ctx context.Context, complaintID string, now time.Time, entry *models.ComplaintHistory) error {
	c, ok := s.complaints[complaintID]
	if !ok {
		return sql.ErrNoRows
	}
	c.AssignedTo = nil
	c.AssignedBy = nil
	c.AssignedAt = nil
	c.AutoAssigned = false
	c.Status = models.ComplaintStatusPending
	s.history = append(s.history, entry)
	return nil
}

func (s *assignmentStoreStub) CountOpenByAssignee(ctx context.Context, userID string) (int, error) {
	return s.openCounts[userID], nil
}

type userStoreStub struct {
	users      map[string]*models.User
	byDept     map[string][]models.User
	roster     []models.User
	firstAdmin *models.User
}

func newUserStoreStub() *userStoreStub {
	return &userStoreStub{
		users:  make(map[string]*models.User),
		byDept: make(map[string][]models.User),
	}
}

func (s *userStoreStub) add(u *models.User) {
	s.users[u.ID] = u
}

func (s *userStoreStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *u
	return &copy, nil
}

func (s *userStoreStub) ListByDepartmentAndRoles(ctx context.Context, departmentID string, roles []models.UserRole) ([]models.User, error) {
	return s.byDept[departmentID], nil
}

func (s *userStoreStub) ListByRoles(ctx context.Context, roles []models.UserRole, preferDepartmentID string) ([]models.User, error) {
	return s.roster, nil
}

func (s *userStoreStub) FindFirstActiveByRole(ctx context.Context, role models.UserRole) (*models.User, error) {
	if s.firstAdmin == nil {
		return nil, sql.ErrNoRows
	}
	copy := *s.firstAdmin
	return &copy, nil
}

type categoryStoreStub struct {
	categories map[string]*models.ComplaintCategory
}

func (s *categoryStoreStub) GetByID(ctx context.Context, id string) (*models.ComplaintCategory, error) {
	if c, ok := s.categories[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

type departmentStoreStub struct {
	departments map[string]*models.Department
}

func (s *departmentStoreStub) GetByID(ctx context.Context, id string) (*models.Department, error) {
	if d, ok := s.departments[id]; ok {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

func testAssignmentConfig() config.AssignmentConfig {
	return config.AssignmentConfig{
		SystemActorID:  "system-1",
		AdminOpenCap:   50,
		DefaultOpenCap: 20,
	}
}

func newAssignmentFixture() (*assignmentStoreStub, *userStoreStub, *categoryStoreStub, *departmentStoreStub, *AssignmentService, *notifierStub) {
	store := newAssignmentStoreStub()
	users := newUserStoreStub()
	users.add(&models.User{ID: "system-1", FullName: "Workflow Bot", Role: models.RoleAdmin, Active: true})
	categories := &categoryStoreStub{categories: make(map[string]*models.ComplaintCategory)}
	departments := &departmentStoreStub{departments: make(map[string]*models.Department)}
	notifier := &notifierStub{}
	svc := NewAssignmentService(store, users, categories, departments, testAssignmentConfig(), nil,
		WithAssignmentNotifier(notifier))
	return store, users, categories, departments, svc, notifier
}

func TestAssignFlipsPendingToAssigned(t *testing.T) {
	store, users, _, _, svc, notifier := newAssignmentFixture()
	store.complaints["c-1"] = testComplaint("c-1", models.ComplaintStatusPending)
	assignee := testUser("teacher-1", models.RoleTeacher)
	users.add(assignee)
	admin := testUser("admin-1", models.RoleAdmin)

	updated, err := svc.Assign(context.Background(), "c-1", dto.AssignRequest{AssigneeID: "teacher-1"}, admin)
	require.NoError(t, err)
	require.Equal(t, models.ComplaintStatusAssigned, updated.Status)
	require.Equal(t, "teacher-1", *updated.AssignedTo)
	require.Equal(t, "admin-1", *updated.AssignedBy)
	require.False(t, updated.AutoAssigned)

	require.Len(t, store.history, 1)
	require.Equal(t, models.HistoryActionAssigned, store.history[0].Action)
	require.Equal(t, 1, notifier.assignments)
}

func TestAssignKeepsInProgressStatus(t *testing.T) {
	store, users, _, _, svc, _ := newAssignmentFixture()
	c := testComplaint("c-1", models.ComplaintStatusInProgress)
	prev := "teacher-0"
	c.AssignedTo = &prev
	store.complaints["c-1"] = c
	users.add(testUser("teacher-1", models.RoleTeacher))
	admin := testUser("admin-1", models.RoleAdmin)

	updated, err := svc.Assign(context.Background(), "c-1", dto.AssignRequest{AssigneeID: "teacher-1"}, admin)
	require.NoError(t, err)
	require.Equal(t, models.ComplaintStatusInProgress, updated.Status)
	require.Equal(t, "teacher-1", *updated.AssignedTo)
}

func TestAssignSelfAssignmentAllowed(t *testing.T) {
	store, users, _, _, svc, _ := newAssignmentFixture()
	store.complaints["c-1"] = testComplaint("c-1", models.ComplaintStatusPending)
	admin := testUser("admin-1", models.RoleAdmin)
	users.add(admin)

	updated, err := svc.Assign(context.Background(), "c-1", dto.AssignRequest{AssigneeID: "admin-1"}, admin)
	require.NoError(t, err)
	require.Equal(t, "admin-1", *updated.AssignedTo)
	require.Equal(t, "admin-1", *updated.AssignedBy)
}

func TestAssignDepartmentFollowsAssignee(t *testing.T) {
	store, users, _, _, svc, _ := newAssignmentFixture()
	store.complaints["c-1"] = testComplaint("c-1", models.ComplaintStatusPending)
	assignee := testUser("staff-1", models.RoleStaff)
	dept := "dept-42"
	assignee.DepartmentID = &dept
	users.add(assignee)
	admin := testUser("admin-1", models.RoleAdmin)

	// No department in the request, so the complaint picks up the
	// assignee's department.
	updated, err := svc.Assign(context.Background(), "c-1", dto.AssignRequest{AssigneeID: "staff-1"}, admin)
	require.NoError(t, err)
	require.NotNil(t, updated.DepartmentID)
	require.Equal(t, "dept-42", *updated.DepartmentID)

	// An explicit department in the request wins over the assignee's.
	explicit := "dept-7"
	store.complaints["c-2"] = testComplaint("c-2", models.ComplaintStatusPending)
	updated, err = svc.Assign(context.Background(), "c-2",
		dto.AssignRequest{AssigneeID: "staff-1", DepartmentID: &explicit}, admin)
	require.NoError(t, err)
	require.Equal(t, "dept-7", *updated.DepartmentID)
}

func TestAssignRejectsInactiveAssignee(t *testing.T) {
	store, users, _, _, svc, _ := newAssignmentFixture()
	store.complaints["c-1"] = testComplaint("c-1", models.ComplaintStatusPending)
	inactive := testUser("teacher-1", models.RoleTeacher)
	inactive.Active = false
	users.add(inactive)
	admin := testUser("admin-1", models.RoleAdmin)

	_, err := svc.Assign(context.Background(), "c-1", dto.AssignRequest{AssigneeID: "teacher-1"}, admin)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	require.Empty(t, store.history)
}

func TestAssignAllowsOverloadedAssignee(t *testing.T) {
	// The workload cap only gates auto-assignment; a manual assigner can load
	// someone past it on purpose.
	store, users, _, _, svc, _ := newAssignmentFixture()
	store.complaints["c-1"] = testComplaint("c-1", models.ComplaintStatusPending)
	users.add(testUser("teacher-1", models.RoleTeacher))
	store.openCounts["teacher-1"] = 20
	admin := testUser("admin-1", models.RoleAdmin)

	updated, err := svc.Assign(context.Background(), "c-1", dto.AssignRequest{AssigneeID: "teacher-1"}, admin)
	require.NoError(t, err)
	require.Equal(t, "teacher-1", *updated.AssignedTo)
	require.Len(t, store.history, 1)
}

func TestAssignableUsersAdminCapIsHigher(t *testing.T) {
	store, users, _, _, svc, _ := newAssignmentFixture()
	staff := testUser("staff-1", models.RoleStaff)
	admin2 := testUser("admin-2", models.RoleAdmin)
	users.roster = []models.User{*staff, *admin2}
	store.openCounts["staff-1"] = 20
	store.openCounts["admin-2"] = 20

	admin := testUser("admin-1", models.RoleAdmin)
	result, err := svc.AssignableUsers(context.Background(), "", admin)
	require.NoError(t, err)
	require.Len(t, result, 2)
	require.False(t, result[0].IsAvailable)
	require.True(t, result[1].IsAvailable)

	store.openCounts["admin-2"] = 50
	result, err = svc.AssignableUsers(context.Background(), "", admin)
	require.NoError(t, err)
	require.False(t, result[1].IsAvailable)
}

func TestAssignForbiddenForUnrelatedStaff(t *testing.T) {
	store, users, _, _, svc, _ := newAssignmentFixture()
	store.complaints["c-1"] = testComplaint("c-1", models.ComplaintStatusPending)
	users.add(testUser("teacher-1", models.RoleTeacher))
	outsider := testUser("teacher-9", models.RoleTeacher)

	_, err := svc.Assign(context.Background(), "c-1", dto.AssignRequest{AssigneeID: "teacher-1"}, outsider)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestUnassignForcesPending(t *testing.T) {
	store, _, _, _, svc, _ := newAssignmentFixture()
	c := testComplaint("c-1", models.ComplaintStatusInProgress)
	assignee := "teacher-1"
	c.AssignedTo = &assignee
	store.complaints["c-1"] = c
	admin := testUser("admin-1", models.RoleAdmin)

	updated, err := svc.Unassign(context.Background(), "c-1", admin)
	require.NoError(t, err)
	require.Equal(t, models.ComplaintStatusPending, updated.Status)
	require.Nil(t, updated.AssignedTo)
	require.Len(t, store.history, 1)
	require.Equal(t, models.HistoryActionUnassigned, store.history[0].Action)
}

func TestUnassignWithoutAssignee(t *testing.T) {
	store, _, _, _, svc, _ := newAssignmentFixture()
	store.complaints["c-1"] = testComplaint("c-1", models.ComplaintStatusPending)
	admin := testUser("admin-1", models.RoleAdmin)

	_, err := svc.Unassign(context.Background(), "c-1", admin)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAutoAssignCategoryDefault(t *testing.T) {
	store, users, categories, _, svc, _ := newAssignmentFixture()
	c := testComplaint("c-1", models.ComplaintStatusPending)
	cat := "cat-1"
	c.CategoryID = &cat
	store.complaints["c-1"] = c

	defaultAssignee := testUser("default-1", models.RoleStaff)
	users.add(defaultAssignee)
	categories.categories["cat-1"] = &models.ComplaintCategory{
		ID: "cat-1", Name: "Facilities", DefaultAssigneeID: &defaultAssignee.ID, Active: true,
	}

	updated, err := svc.AutoAssign(context.Background(), "c-1")
	require.NoError(t, err)
	require.Equal(t, "default-1", *updated.AssignedTo)
	require.Equal(t, "system-1", *updated.AssignedBy)
	require.True(t, updated.AutoAssigned)
	require.Equal(t, models.ComplaintStatusAssigned, updated.Status)
}

func TestAutoAssignNoFallthrough(t *testing.T) {
	// The category names a default assignee who cannot take the complaint.
	// The chain must stop there, not slide down to the department head.
	store, users, categories, departments, svc, _ := newAssignmentFixture()
	c := testComplaint("c-1", models.ComplaintStatusPending)
	cat, dept := "cat-1", "dept-1"
	c.CategoryID = &cat
	c.DepartmentID = &dept
	store.complaints["c-1"] = c

	unavailable := testUser("default-1", models.RoleStaff)
	unavailable.Active = false
	users.add(unavailable)
	categories.categories["cat-1"] = &models.ComplaintCategory{
		ID: "cat-1", DefaultAssigneeID: &unavailable.ID,
	}

	head := testUser("head-1", models.RoleDepartmentHead)
	users.add(head)
	departments.departments["dept-1"] = &models.Department{ID: "dept-1", HeadID: &head.ID}

	_, err := svc.AutoAssign(context.Background(), "c-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	c2, _ := store.GetByID(context.Background(), "c-1")
	require.Nil(t, c2.AssignedTo)
	require.Equal(t, models.ComplaintStatusPending, c2.Status)
}

func TestAutoAssignDepartmentHead(t *testing.T) {
	store, users, _, departments, svc, _ := newAssignmentFixture()
	c := testComplaint("c-1", models.ComplaintStatusPending)
	dept := "dept-1"
	c.DepartmentID = &dept
	store.complaints["c-1"] = c

	head := testUser("head-1", models.RoleDepartmentHead)
	users.add(head)
	departments.departments["dept-1"] = &models.Department{ID: "dept-1", HeadID: &head.ID}

	updated, err := svc.AutoAssign(context.Background(), "c-1")
	require.NoError(t, err)
	require.Equal(t, "head-1", *updated.AssignedTo)
}

func TestAutoAssignUrgentGoesToAdmin(t *testing.T) {
	store, users, _, _, svc, _ := newAssignmentFixture()
	c := testComplaint("c-1", models.ComplaintStatusPending)
	c.Priority = models.PriorityUrgent
	store.complaints["c-1"] = c

	admin := testUser("admin-7", models.RoleAdmin)
	users.add(admin)
	users.firstAdmin = admin

	updated, err := svc.AutoAssign(context.Background(), "c-1")
	require.NoError(t, err)
	require.Equal(t, "admin-7", *updated.AssignedTo)
}

func TestAutoAssignUrgentOverloadedAdminStops(t *testing.T) {
	store, users, _, departments, svc, _ := newAssignmentFixture()
	c := testComplaint("c-1", models.ComplaintStatusPending)
	c.Priority = models.PriorityUrgent
	dept := "dept-1"
	c.DepartmentID = &dept
	store.complaints["c-1"] = c

	admin := testUser("admin-7", models.RoleAdmin)
	users.add(admin)
	users.firstAdmin = admin
	store.openCounts["admin-7"] = 50

	staff := testUser("staff-1", models.RoleStaff)
	users.add(staff)
	departments.departments["dept-1"] = &models.Department{ID: "dept-1"}
	users.byDept["dept-1"] = []models.User{*staff}

	_, err := svc.AutoAssign(context.Background(), "c-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAutoAssignLeastLoadedStaffer(t *testing.T) {
	store, users, _, departments, svc, _ := newAssignmentFixture()
	c := testComplaint("c-1", models.ComplaintStatusPending)
	dept := "dept-1"
	c.DepartmentID = &dept
	store.complaints["c-1"] = c

	departments.departments["dept-1"] = &models.Department{ID: "dept-1"}

	a := testUser("staff-a", models.RoleStaff)
	b := testUser("staff-b", models.RoleTeacher)
	d := testUser("staff-d", models.RoleStaff)
	users.add(a)
	users.add(b)
	users.add(d)
	users.byDept["dept-1"] = []models.User{*a, *b, *d}
	store.openCounts["staff-a"] = 5
	store.openCounts["staff-b"] = 2
	store.openCounts["staff-d"] = 2

	updated, err := svc.AutoAssign(context.Background(), "c-1")
	require.NoError(t, err)
	// staff-b and staff-d tie on two open assignments; the earlier
	// candidate wins because only a strictly smaller count replaces the
	// current leader.
	require.Equal(t, "staff-b", *updated.AssignedTo)
}

func TestAutoAssignSkipsUnavailableStaffers(t *testing.T) {
	store, users, _, departments, svc, _ := newAssignmentFixture()
	c := testComplaint("c-1", models.ComplaintStatusPending)
	dept := "dept-1"
	c.DepartmentID = &dept
	store.complaints["c-1"] = c

	departments.departments["dept-1"] = &models.Department{ID: "dept-1"}

	inactive := testUser("staff-a", models.RoleStaff)
	inactive.Active = false
	overloaded := testUser("staff-b", models.RoleStaff)
	free := testUser("staff-d", models.RoleStaff)
	users.add(inactive)
	users.add(overloaded)
	users.add(free)
	users.byDept["dept-1"] = []models.User{*inactive, *overloaded, *free}
	store.openCounts["staff-b"] = 20
	store.openCounts["staff-d"] = 19

	updated, err := svc.AutoAssign(context.Background(), "c-1")
	require.NoError(t, err)
	require.Equal(t, "staff-d", *updated.AssignedTo)
}

func TestAutoAssignRequiresPendingStatus(t *testing.T) {
	store, _, _, _, svc, _ := newAssignmentFixture()
	store.complaints["c-1"] = testComplaint("c-1", models.ComplaintStatusInProgress)

	_, err := svc.AutoAssign(context.Background(), "c-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAutoAssignWithoutSystemActorConfigured(t *testing.T) {
	store := newAssignmentStoreStub()
	store.complaints["c-1"] = testComplaint("c-1", models.ComplaintStatusPending)
	users := newUserStoreStub()
	svc := NewAssignmentService(store, users, &categoryStoreStub{}, &departmentStoreStub{},
		config.AssignmentConfig{AdminOpenCap: 50, DefaultOpenCap: 20}, nil)

	_, err := svc.AutoAssign(context.Background(), "c-1")
	require.Error(t, err)
}

func TestAssignableUsersReportsWorkload(t *testing.T) {
	store, users, _, _, svc, _ := newAssignmentFixture()
	a := testUser("staff-a", models.RoleStaff)
	b := testUser("staff-b", models.RoleStaff)
	users.roster = []models.User{*a, *b}
	store.openCounts["staff-a"] = 3
	store.openCounts["staff-b"] = 20

	admin := testUser("admin-1", models.RoleAdmin)
	result, err := svc.AssignableUsers(context.Background(), "dept-1", admin)
	require.NoError(t, err)
	require.Len(t, result, 2)
	require.Equal(t, 3, result[0].OpenAssignments)
	require.True(t, result[0].IsAvailable)
	require.False(t, result[1].IsAvailable)

	_, err = svc.AssignableUsers(context.Background(), "dept-1", testUser("parent-1", models.RoleParent))
	require.Error(t, err)
}
