package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/scms-api/internal/authz"
	"github.com/noah-isme/scms-api/internal/dto"
	"github.com/noah-isme/scms-api/internal/models"
	"github.com/noah-isme/scms-api/internal/repository"
	"github.com/noah-isme/scms-api/pkg/config"
	appErrors "github.com/noah-isme/scms-api/pkg/errors"
)

type assignmentComplaintStore interface {
	GetByID(ctx context.Context, id string) (*models.Complaint, error)
	ApplyAssignment(ctx context.Context, params repository.AssignmentParams, entry *models.ComplaintHistory) error
	ClearAssignment(ctx context.Context, complaintID string, now time.Time, entry *models.ComplaintHistory) error
	CountOpenByAssignee(ctx context.Context, userID string) (int, error)
}

type assignmentUserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListByDepartmentAndRoles(ctx context.Context, departmentID string, roles []models.UserRole) ([]models.User, error)
	ListByRoles(ctx context.Context, roles []models.UserRole, preferDepartmentID string) ([]models.User, error)
	FindFirstActiveByRole(ctx context.Context, role models.UserRole) (*models.User, error)
}

type categoryStore interface {
	GetByID(ctx context.Context, id string) (*models.ComplaintCategory, error)
}

type departmentStore interface {
	GetByID(ctx context.Context, id string) (*models.Department, error)
}

// assignableRoles are the department roles eligible for workload-based
// auto-assignment.
var assignableRoles = []models.UserRole{
	models.RoleTeacher,
	models.RoleStaff,
	models.RoleDepartmentHead,
}

// AssignmentService routes complaints to handlers, either on an explicit
// request or through the auto-assignment rule chain.
type AssignmentService struct {
	complaints  assignmentComplaintStore
	users       assignmentUserStore
	categories  categoryStore
	departments departmentStore
	notifier    WorkflowNotifier
	metrics     assignmentRecorder
	cfg         config.AssignmentConfig
	logger      *zap.Logger
}

type assignmentRecorder interface {
	ObserveAssignment(mode string)
}

// AssignmentServiceOption configures the service.
type AssignmentServiceOption func(*AssignmentService)

// WithAssignmentNotifier attaches the workflow notifier.
func WithAssignmentNotifier(notifier WorkflowNotifier) AssignmentServiceOption {
	return func(s *AssignmentService) { s.notifier = notifier }
}

// WithAssignmentRecorder attaches the assignment counter.
func WithAssignmentRecorder(recorder assignmentRecorder) AssignmentServiceOption {
	return func(s *AssignmentService) { s.metrics = recorder }
}

// NewAssignmentService constructs the service.
func NewAssignmentService(
	complaints assignmentComplaintStore,
	users assignmentUserStore,
	categories categoryStore,
	departments departmentStore,
	cfg config.AssignmentConfig,
	logger *zap.Logger,
	opts ...AssignmentServiceOption,
) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AssignmentService{
		complaints:  complaints,
		users:       users,
		categories:  categories,
		departments: departments,
		cfg:         cfg,
		logger:      logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// openCapFor returns the maximum open assignments a user may carry before
// being considered unavailable.
func (s *AssignmentService) openCapFor(user *models.User) int {
	if user.Role.IsAdminEquivalent() {
		return s.cfg.AdminOpenCap
	}
	return s.cfg.DefaultOpenCap
}

// isAvailable reports whether a user can take on another complaint.
func (s *AssignmentService) isAvailable(ctx context.Context, user *models.User) (bool, int, error) {
	if !user.Active {
		return false, 0, nil
	}
	count, err := s.complaints.CountOpenByAssignee(ctx, user.ID)
	if err != nil {
		return false, 0, err
	}
	return count < s.openCapFor(user), count, nil
}

// Assign places the complaint on the requested assignee. Pending complaints
// flip to ASSIGNED; complaints already in flight keep their status.
func (s *AssignmentService) Assign(ctx context.Context, complaintID string, req dto.AssignRequest, actor *models.User) (*models.Complaint, error) {
	return s.assign(ctx, complaintID, req, actor, false)
}

// Reassign redirects an already assigned complaint to a new handler.
func (s *AssignmentService) Reassign(ctx context.Context, complaintID string, req dto.ReassignRequest, actor *models.User) (*models.Complaint, error) {
	return s.assign(ctx, complaintID, dto.AssignRequest{AssigneeID: req.AssigneeID, Note: req.Note}, actor, true)
}

func (s *AssignmentService) assign(ctx context.Context, complaintID string, req dto.AssignRequest, actor *models.User, reassignment bool) (*models.Complaint, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	complaint, err := s.complaints.GetByID(ctx, complaintID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load complaint")
	}
	if !authz.CanAssign(actor, complaint) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to assign this complaint")
	}
	if complaint.Status == models.ComplaintStatusClosed || complaint.Status == models.ComplaintStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "complaint is no longer open for assignment")
	}

	assignee, err := s.users.FindByID(ctx, req.AssigneeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignee")
	}

	if !assignee.Active {
		return nil, appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("%s's account is deactivated", assignee.FullName))
	}
	// The workload cap gates auto-assignment only; a manual assigner may
	// knowingly load someone past it.
	available, count, err := s.isAvailable(ctx, assignee)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check assignee workload")
	}
	if !available {
		s.logger.Warn("assigning past workload cap",
			zap.String("complaint_id", complaintID),
			zap.String("assignee_id", assignee.ID),
			zap.Int("open_assignments", count))
	}

	// An explicit department wins; otherwise the complaint follows its new
	// assignee's department so department-scoped rules keep applying.
	departmentID := req.DepartmentID
	if departmentID == nil {
		departmentID = assignee.DepartmentID
	}

	entry := s.assignmentHistoryEntry(complaint, assignee, actor, reassignment, false, req.Note)
	params := repository.AssignmentParams{
		ComplaintID:  complaint.ID,
		AssigneeID:   assignee.ID,
		AssignerID:   actor.ID,
		DepartmentID: departmentID,
		Priority:     req.Priority,
		DueDate:      req.DueDate,
		Note:         req.Note,
		Reassignment: reassignment,
	}
	if err := s.complaints.ApplyAssignment(ctx, params, entry); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		s.logger.Error("assignment failed",
			zap.String("complaint_id", complaintID),
			zap.String("assignee_id", assignee.ID),
			zap.Int("open_assignments", count),
			zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign complaint")
	}

	updated, err := s.complaints.GetByID(ctx, complaintID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload complaint")
	}
	if s.metrics != nil {
		mode := "manual"
		if reassignment {
			mode = "reassign"
		}
		s.metrics.ObserveAssignment(mode)
	}
	if s.notifier != nil {
		s.notifier.ComplaintAssigned(updated, assignee, actor)
	}
	return updated, nil
}

// Unassign removes the current assignee and forces the complaint back to
// PENDING regardless of its current open status.
func (s *AssignmentService) Unassign(ctx context.Context, complaintID string, actor *models.User) (*models.Complaint, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	complaint, err := s.complaints.GetByID(ctx, complaintID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load complaint")
	}
	if !authz.CanAssign(actor, complaint) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to unassign this complaint")
	}
	if complaint.AssignedTo == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "complaint has no assignee")
	}

	actorID := actor.ID
	previous := *complaint.AssignedTo
	meta, _ := json.Marshal(map[string]interface{}{
		"previous_assignee": previous,
		"actor_name":        actor.FullName,
	})
	entry := &models.ComplaintHistory{
		ComplaintID: complaint.ID,
		Action:      models.HistoryActionUnassigned,
		Description: "Assignment removed, complaint returned to the queue",
		ActorID:     &actorID,
		Metadata:    meta,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.complaints.ClearAssignment(ctx, complaintID, time.Time{}, entry); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unassign complaint")
	}
	if s.metrics != nil {
		s.metrics.ObserveAssignment("unassign")
	}
	return s.complaints.GetByID(ctx, complaintID)
}

// AutoAssign picks an assignee through the rule chain and assigns on behalf
// of the configured system actor. Rules one through three each name a
// single candidate: when that candidate exists but is unavailable the chain
// stops without assigning rather than sliding to the next rule.
func (s *AssignmentService) AutoAssign(ctx context.Context, complaintID string) (*models.Complaint, error) {
	if s.cfg.SystemActorID == "" {
		return nil, appErrors.Wrap(errors.New("assignment system actor not configured"),
			appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "auto-assignment is not configured")
	}
	systemActor, err := s.users.FindByID(ctx, s.cfg.SystemActorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load system actor")
	}

	complaint, err := s.complaints.GetByID(ctx, complaintID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load complaint")
	}
	if complaint.Status != models.ComplaintStatusPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only pending complaints can be auto-assigned")
	}

	assignee, err := s.pickAssignee(ctx, complaint)
	if err != nil {
		return nil, err
	}
	if assignee == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no available assignee found")
	}

	entry := s.assignmentHistoryEntry(complaint, assignee, systemActor, false, true, nil)
	params := repository.AssignmentParams{
		ComplaintID:  complaint.ID,
		AssigneeID:   assignee.ID,
		AssignerID:   systemActor.ID,
		AutoAssigned: true,
	}
	if err := s.complaints.ApplyAssignment(ctx, params, entry); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to auto-assign complaint")
	}

	updated, err := s.complaints.GetByID(ctx, complaintID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload complaint")
	}
	if s.metrics != nil {
		s.metrics.ObserveAssignment("auto")
	}
	if s.notifier != nil {
		s.notifier.ComplaintAssigned(updated, assignee, systemActor)
	}
	return updated, nil
}

// pickAssignee walks the rule chain. A nil result with a nil error means no
// candidate could take the complaint.
func (s *AssignmentService) pickAssignee(ctx context.Context, complaint *models.Complaint) (*models.User, error) {
	// Rule 1: category default assignee.
	if complaint.CategoryID != nil {
		category, err := s.categories.GetByID(ctx, *complaint.CategoryID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category")
		}
		if category != nil && category.DefaultAssigneeID != nil {
			return s.candidateIfAvailable(ctx, *category.DefaultAssigneeID)
		}
	}

	// Rule 2: department head.
	if complaint.DepartmentID != nil {
		department, err := s.departments.GetByID(ctx, *complaint.DepartmentID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
		}
		if department != nil && department.HeadID != nil {
			return s.candidateIfAvailable(ctx, *department.HeadID)
		}
	}

	// Rule 3: urgent complaints go to the first active admin.
	if complaint.Priority == models.PriorityUrgent {
		admin, err := s.users.FindFirstActiveByRole(ctx, models.RoleAdmin)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to find admin")
		}
		available, _, err := s.isAvailable(ctx, admin)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check admin workload")
		}
		if !available {
			return nil, nil
		}
		return admin, nil
	}

	// Rule 4: least loaded department staffer. Ties keep the earlier
	// candidate, so only a strictly smaller count replaces the leader.
	if complaint.DepartmentID == nil {
		return nil, nil
	}
	candidates, err := s.users.ListByDepartmentAndRoles(ctx, *complaint.DepartmentID, assignableRoles)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list department staff")
	}
	var best *models.User
	bestCount := 0
	for i := range candidates {
		candidate := &candidates[i]
		available, count, err := s.isAvailable(ctx, candidate)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check candidate workload")
		}
		if !available {
			continue
		}
		if best == nil || count < bestCount {
			best = candidate
			bestCount = count
		}
	}
	return best, nil
}

func (s *AssignmentService) candidateIfAvailable(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate")
	}
	available, _, err := s.isAvailable(ctx, user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check candidate workload")
	}
	if !available {
		return nil, nil
	}
	return user, nil
}

// AssignableUsers lists candidate handlers with their current workload so a
// manual assigner can choose. A department id only influences ordering, not
// membership.
func (s *AssignmentService) AssignableUsers(ctx context.Context, departmentID string, actor *models.User) ([]models.AssignableUser, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.Role.IsAdminEquivalent() && actor.Role != models.RoleDepartmentHead &&
		actor.Role != models.RoleVicePrincipal && actor.Role != models.RolePrincipal {
		return nil, appErrors.ErrForbidden
	}

	roles := append([]models.UserRole{models.RoleAdmin, models.RoleSuperAdmin}, assignableRoles...)
	users, err := s.users.ListByRoles(ctx, roles, departmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignable users")
	}
	result := make([]models.AssignableUser, 0, len(users))
	for i := range users {
		user := users[i]
		available, count, err := s.isAvailable(ctx, &user)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check workload")
		}
		result = append(result, models.AssignableUser{
			User:            user,
			OpenAssignments: count,
			IsAvailable:     available,
		})
	}
	return result, nil
}

func (s *AssignmentService) assignmentHistoryEntry(complaint *models.Complaint, assignee, assigner *models.User, reassignment, auto bool, note *string) *models.ComplaintHistory {
	description := fmt.Sprintf("Assigned to %s", assignee.FullName)
	if reassignment {
		description = fmt.Sprintf("Reassigned to %s", assignee.FullName)
	}
	if auto {
		description = fmt.Sprintf("Automatically assigned to %s", assignee.FullName)
	}
	meta := map[string]interface{}{
		"assignee_id":   assignee.ID,
		"assignee_name": assignee.FullName,
		"assigner_id":   assigner.ID,
		"auto_assigned": auto,
	}
	if complaint.AssignedTo != nil {
		meta["previous_assignee"] = *complaint.AssignedTo
	}
	if note != nil && *note != "" {
		meta["note"] = *note
	}
	payload, err := json.Marshal(meta)
	if err != nil {
		payload = []byte("{}")
	}
	assignerID := assigner.ID
	return &models.ComplaintHistory{
		ComplaintID: complaint.ID,
		Action:      models.HistoryActionAssigned,
		Description: description,
		ActorID:     &assignerID,
		Metadata:    payload,
		CreatedAt:   time.Now().UTC(),
	}
}
