package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/scms-api/internal/models"
)

// ErrStatusConflict is returned when a guarded status update observes a row
// whose status no longer matches the expected value.
var ErrStatusConflict = errors.New("complaint status changed concurrently")

const complaintColumns = `id, complaint_number, title, description, status, priority, category_id, department_id,
       student_id, is_public, created_by, assigned_to, assigned_by, assigned_at, started_at, started_by,
       resolved_at, resolved_by, closed_at, closed_by, cancelled_at, cancelled_by, resolution_note,
       resolution_category, cancellation_reason, assignment_note, escalation_level, requires_approval,
       auto_assigned, due_date, created_at, updated_at, deleted_at`

// ComplaintRepository persists complaint workflow data.
type ComplaintRepository struct {
	db *sqlx.DB
}

// NewComplaintRepository constructs the repository.
func NewComplaintRepository(db *sqlx.DB) *ComplaintRepository {
	return &ComplaintRepository{db: db}
}

// NextComplaintNumber computes the next daily sequence number for the given
// prefix based on the highest existing number sharing that prefix. Callers
// issuing new complaints should use Create, which runs the lookup and the
// insert in one transaction.
func nextComplaintNumber(last, prefix string) string {
	seq := 1
	// The suffix is at least four digits but grows past 9999 on busy days,
	// so accept any digit run after the prefix.
	if strings.HasPrefix(last, prefix) && len(last) >= len(prefix)+4 {
		if n, err := strconv.Atoi(last[len(prefix):]); err == nil && n > 0 {
			seq = n + 1
		}
	}
	return fmt.Sprintf("%s%04d", prefix, seq)
}

// ComplaintNumberPrefix formats the daily prefix for the given time.
func ComplaintNumberPrefix(t time.Time) string {
	return "C" + t.Format("20060102")
}

// GetLastComplaintNumber returns the highest complaint number sharing the
// prefix, or empty string if none exists yet. Longer suffixes sort after
// shorter ones, so ordering by length first keeps the lookup correct once a
// day's sequence outgrows four digits.
func (r *ComplaintRepository) GetLastComplaintNumber(ctx context.Context, prefix string) (string, error) {
	const query = `SELECT complaint_number FROM complaints WHERE complaint_number LIKE $1 ORDER BY LENGTH(complaint_number) DESC, complaint_number DESC LIMIT 1`
	var last string
	if err := r.db.GetContext(ctx, &last, query, prefix+"%"); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("get last complaint number: %w", err)
	}
	return last, nil
}

// Create inserts a new complaint, issuing its daily complaint number inside
// the same transaction so concurrent filers cannot take the same sequence.
func (r *ComplaintRepository) Create(ctx context.Context, complaint *models.Complaint) (err error) {
	if complaint.ID == "" {
		complaint.ID = uuid.NewString()
	}
	if complaint.Status == "" {
		complaint.Status = models.ComplaintStatusPending
	}
	if complaint.Priority == "" {
		complaint.Priority = models.PriorityNormal
	}
	if complaint.EscalationLevel == 0 {
		complaint.EscalationLevel = 1
	}
	now := time.Now().UTC()
	if complaint.CreatedAt.IsZero() {
		complaint.CreatedAt = now
	}
	complaint.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create complaint tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	prefix := ComplaintNumberPrefix(complaint.CreatedAt)
	var last string
	lockQuery := `SELECT complaint_number FROM complaints WHERE complaint_number LIKE $1 ORDER BY LENGTH(complaint_number) DESC, complaint_number DESC LIMIT 1 FOR UPDATE`
	if err = tx.GetContext(ctx, &last, lockQuery, prefix+"%"); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("lock last complaint number: %w", err)
		}
		err = nil
	}
	complaint.ComplaintNumber = nextComplaintNumber(last, prefix)

	const insert = `INSERT INTO complaints
	(id, complaint_number, title, description, status, priority, category_id, department_id, student_id,
	 is_public, created_by, escalation_level, requires_approval, auto_assigned, due_date, created_at, updated_at)
	VALUES (:id, :complaint_number, :title, :description, :status, :priority, :category_id, :department_id, :student_id,
	 :is_public, :created_by, :escalation_level, :requires_approval, :auto_assigned, :due_date, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insert, complaint); err != nil {
		return fmt.Errorf("insert complaint: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create complaint: %w", err)
	}
	return nil
}

// GetByID fetches a complaint by identifier, excluding soft-deleted rows.
func (r *ComplaintRepository) GetByID(ctx context.Context, id string) (*models.Complaint, error) {
	query := `SELECT ` + complaintColumns + ` FROM complaints WHERE id = $1 AND deleted_at IS NULL`
	var complaint models.Complaint
	if err := r.db.GetContext(ctx, &complaint, query, id); err != nil {
		return nil, err
	}
	return &complaint, nil
}

// List returns complaints matching the filter with a total count.
func (r *ComplaintRepository) List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, int, error) {
	conditions := []string{"deleted_at IS NULL"}
	args := make([]interface{}, 0, 8)

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priority) > 0 {
		placeholders := make([]string, len(filter.Priority))
		for i, priority := range filter.Priority {
			args = append(args, priority)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CategoryID != "" {
		args = append(args, filter.CategoryID)
		conditions = append(conditions, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if filter.DepartmentID != "" {
		args = append(args, filter.DepartmentID)
		conditions = append(conditions, fmt.Sprintf("department_id = $%d", len(args)))
	}
	if filter.CreatedBy != "" {
		args = append(args, filter.CreatedBy)
		conditions = append(conditions, fmt.Sprintf("created_by = $%d", len(args)))
	}
	if filter.AssignedTo != "" {
		args = append(args, filter.AssignedTo)
		conditions = append(conditions, fmt.Sprintf("assigned_to = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(complaint_number) LIKE $%d)", len(args), len(args)))
	}

	if scope, scopeArgs := viewerScope(filter.Viewer, len(args)); scope != "" {
		conditions = append(conditions, scope)
		args = append(args, scopeArgs...)
	}

	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM complaints"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count complaints: %w", err)
	}

	sortBy := "created_at"
	switch filter.SortBy {
	case "priority", "status", "updated_at", "complaint_number", "due_date":
		sortBy = filter.SortBy
	}
	sortOrder := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		sortOrder = "ASC"
	}

	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 20
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}

	query := fmt.Sprintf("SELECT %s FROM complaints%s ORDER BY %s %s LIMIT %d OFFSET %d",
		complaintColumns, where, sortBy, sortOrder, pageSize, (page-1)*pageSize)

	var complaints []models.Complaint
	if err := r.db.SelectContext(ctx, &complaints, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list complaints: %w", err)
	}
	return complaints, total, nil
}

// viewerScope builds the visibility condition for a restricted viewer. The
// clauses mirror the read-access rules: own complaints, own assignments,
// and public complaints in the viewer's department or about their student.
func viewerScope(viewer *models.User, argOffset int) (string, []interface{}) {
	if viewer == nil || viewer.Role.IsAdminEquivalent() ||
		viewer.Role == models.RoleVicePrincipal || viewer.Role == models.RolePrincipal {
		return "", nil
	}

	args := make([]interface{}, 0, 4)
	parts := make([]string, 0, 4)

	args = append(args, viewer.ID)
	parts = append(parts, fmt.Sprintf("created_by = $%d", argOffset+len(args)))
	args = append(args, viewer.ID)
	parts = append(parts, fmt.Sprintf("assigned_to = $%d", argOffset+len(args)))

	switch viewer.Role {
	case models.RoleTeacher, models.RoleStaff, models.RoleDepartmentHead,
		models.RoleSecurityStaff, models.RoleOpsStaff:
		if viewer.DepartmentID != nil {
			args = append(args, *viewer.DepartmentID)
			parts = append(parts, fmt.Sprintf("(is_public AND department_id = $%d)", argOffset+len(args)))
		}
	case models.RoleParent, models.RoleStudent:
		if viewer.StudentID != nil {
			args = append(args, *viewer.StudentID)
			parts = append(parts, fmt.Sprintf("(is_public AND student_id = $%d)", argOffset+len(args)))
		}
	}

	return "(" + strings.Join(parts, " OR ") + ")", args
}

// StatusUpdateParams groups the columns written by a status transition.
type StatusUpdateParams struct {
	ComplaintID string
	From        models.ComplaintStatus
	To          models.ComplaintStatus
	ActorID     string
	Now         time.Time

	ResolutionNote     *string
	ResolutionCategory *string
	CancellationReason *string
}

// ApplyStatusUpdate performs a transition as one atomic unit: the complaint
// row is locked, the expected status is re-checked against the locked row,
// the status plus its side-effect stamps are written, and exactly one
// history entry is inserted. Returns ErrStatusConflict when the locked row
// no longer holds the expected status.
func (r *ComplaintRepository) ApplyStatusUpdate(ctx context.Context, params StatusUpdateParams, entry *models.ComplaintHistory) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin status update tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.ComplaintStatus
	if err = tx.GetContext(ctx, &current, `SELECT status FROM complaints WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, params.ComplaintID); err != nil {
		return err
	}
	if current != params.From {
		err = ErrStatusConflict
		return err
	}

	now := params.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	setParts := []string{"status = :status", "updated_at = :updated_at"}
	namedArgs := map[string]interface{}{
		"id":         params.ComplaintID,
		"expected":   params.From,
		"status":     params.To,
		"updated_at": now,
		"actor":      params.ActorID,
		"now":        now,
	}

	switch params.To {
	case models.ComplaintStatusAssigned:
		setParts = append(setParts, "assigned_at = :now")
	case models.ComplaintStatusInProgress:
		setParts = append(setParts, "started_at = :now", "started_by = :actor")
	case models.ComplaintStatusResolved:
		setParts = append(setParts, "resolved_at = :now", "resolved_by = :actor")
		if params.ResolutionNote != nil {
			setParts = append(setParts, "resolution_note = :resolution_note")
			namedArgs["resolution_note"] = params.ResolutionNote
		}
		if params.ResolutionCategory != nil {
			setParts = append(setParts, "resolution_category = :resolution_category")
			namedArgs["resolution_category"] = params.ResolutionCategory
		}
	case models.ComplaintStatusClosed:
		setParts = append(setParts, "closed_at = :now", "closed_by = :actor")
	case models.ComplaintStatusCancelled:
		setParts = append(setParts, "cancelled_at = :now", "cancelled_by = :actor")
		if params.CancellationReason != nil {
			setParts = append(setParts, "cancellation_reason = :cancellation_reason")
			namedArgs["cancellation_reason"] = params.CancellationReason
		}
	}

	query := fmt.Sprintf("UPDATE complaints SET %s WHERE id = :id AND status = :expected", strings.Join(setParts, ", "))
	result, err := tx.NamedExecContext(ctx, query, namedArgs)
	if err != nil {
		return fmt.Errorf("update complaint status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check status update rows: %w", err)
	}
	if rows == 0 {
		err = ErrStatusConflict
		return err
	}

	if err = insertHistoryTx(ctx, tx, entry); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit status update: %w", err)
	}
	return nil
}

// AssignmentParams groups the columns written when assigning a complaint.
type AssignmentParams struct {
	ComplaintID  string
	AssigneeID   string
	AssignerID   string
	DepartmentID *string
	Priority     *models.ComplaintPriority
	DueDate      *time.Time
	Note         *string
	AutoAssigned bool
	Reassignment bool
	Now          time.Time
}

// ApplyAssignment sets the assignee atomically. The status flips from
// PENDING to ASSIGNED only when the locked row is still pending; any other
// status is left untouched. Exactly one history entry is written.
func (r *ComplaintRepository) ApplyAssignment(ctx context.Context, params AssignmentParams, entry *models.ComplaintHistory) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assignment tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.ComplaintStatus
	if err = tx.GetContext(ctx, &current, `SELECT status FROM complaints WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, params.ComplaintID); err != nil {
		return err
	}

	now := params.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	setParts := []string{
		"assigned_to = :assignee",
		"assigned_by = :assigner",
		"assigned_at = :now",
		"auto_assigned = :auto_assigned",
		"updated_at = :now",
	}
	namedArgs := map[string]interface{}{
		"id":            params.ComplaintID,
		"assignee":      params.AssigneeID,
		"assigner":      params.AssignerID,
		"now":           now,
		"auto_assigned": params.AutoAssigned,
	}

	if current == models.ComplaintStatusPending {
		setParts = append(setParts, "status = :status")
		namedArgs["status"] = models.ComplaintStatusAssigned
	}
	if params.DepartmentID != nil {
		setParts = append(setParts, "department_id = :department_id")
		namedArgs["department_id"] = params.DepartmentID
	}
	if params.Priority != nil {
		setParts = append(setParts, "priority = :priority")
		namedArgs["priority"] = params.Priority
	}
	if params.DueDate != nil {
		setParts = append(setParts, "due_date = :due_date")
		namedArgs["due_date"] = params.DueDate
	}
	if params.Note != nil {
		setParts = append(setParts, "assignment_note = :assignment_note")
		namedArgs["assignment_note"] = params.Note
	}

	query := fmt.Sprintf("UPDATE complaints SET %s WHERE id = :id", strings.Join(setParts, ", "))
	if _, err = tx.NamedExecContext(ctx, query, namedArgs); err != nil {
		return fmt.Errorf("update complaint assignment: %w", err)
	}

	if err = insertHistoryTx(ctx, tx, entry); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit assignment: %w", err)
	}
	return nil
}

// ClearAssignment removes the assignee and forces the complaint back to
// PENDING unconditionally, writing one history entry in the same
// transaction.
func (r *ComplaintRepository) ClearAssignment(ctx context.Context, complaintID string, now time.Time, entry *models.ComplaintHistory) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin unassign tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if now.IsZero() {
		now = time.Now().UTC()
	}

	const query = `UPDATE complaints SET assigned_to = NULL, assigned_by = NULL, assigned_at = NULL,
		assignment_note = NULL, auto_assigned = FALSE, status = $2, updated_at = $3
		WHERE id = $1 AND deleted_at IS NULL`
	result, err := tx.ExecContext(ctx, query, complaintID, models.ComplaintStatusPending, now)
	if err != nil {
		return fmt.Errorf("clear complaint assignment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check unassign rows: %w", err)
	}
	if rows == 0 {
		err = sql.ErrNoRows
		return err
	}

	if err = insertHistoryTx(ctx, tx, entry); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit unassign: %w", err)
	}
	return nil
}

// UpdateDetailsParams groups the freely editable complaint columns.
type UpdateDetailsParams struct {
	ComplaintID string
	Title       *string
	Description *string
	Priority    *models.ComplaintPriority
	CategoryID  *string
	IsPublic    *bool
	DueDate     *time.Time
	Now         time.Time
}

// UpdateDetails edits complaint fields and writes one UPDATED history entry
// in the same transaction.
func (r *ComplaintRepository) UpdateDetails(ctx context.Context, params UpdateDetailsParams, entry *models.ComplaintHistory) (err error) {
	setParts := make([]string, 0, 6)
	namedArgs := map[string]interface{}{"id": params.ComplaintID}

	if params.Title != nil {
		setParts = append(setParts, "title = :title")
		namedArgs["title"] = params.Title
	}
	if params.Description != nil {
		setParts = append(setParts, "description = :description")
		namedArgs["description"] = params.Description
	}
	if params.Priority != nil {
		setParts = append(setParts, "priority = :priority")
		namedArgs["priority"] = params.Priority
	}
	if params.CategoryID != nil {
		setParts = append(setParts, "category_id = :category_id")
		namedArgs["category_id"] = params.CategoryID
	}
	if params.IsPublic != nil {
		setParts = append(setParts, "is_public = :is_public")
		namedArgs["is_public"] = params.IsPublic
	}
	if params.DueDate != nil {
		setParts = append(setParts, "due_date = :due_date")
		namedArgs["due_date"] = params.DueDate
	}
	if len(setParts) == 0 {
		return nil
	}

	now := params.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	setParts = append(setParts, "updated_at = :updated_at")
	namedArgs["updated_at"] = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update details tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := fmt.Sprintf("UPDATE complaints SET %s WHERE id = :id AND deleted_at IS NULL", strings.Join(setParts, ", "))
	result, err := tx.NamedExecContext(ctx, query, namedArgs)
	if err != nil {
		return fmt.Errorf("update complaint details: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check update details rows: %w", err)
	}
	if rows == 0 {
		err = sql.ErrNoRows
		return err
	}

	if err = insertHistoryTx(ctx, tx, entry); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update details: %w", err)
	}
	return nil
}

// SoftDelete marks the complaint deleted, keeping the row so the history
// trail survives, and writes one DELETED history entry.
func (r *ComplaintRepository) SoftDelete(ctx context.Context, complaintID string, now time.Time, entry *models.ComplaintHistory) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if now.IsZero() {
		now = time.Now().UTC()
	}

	result, err := tx.ExecContext(ctx, `UPDATE complaints SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`, complaintID, now)
	if err != nil {
		return fmt.Errorf("soft delete complaint: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check delete rows: %w", err)
	}
	if rows == 0 {
		err = sql.ErrNoRows
		return err
	}

	if err = insertHistoryTx(ctx, tx, entry); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

// CountOpenByAssignee returns the number of open complaints currently
// assigned to the user. PENDING, ASSIGNED and IN_PROGRESS count as open.
func (r *ComplaintRepository) CountOpenByAssignee(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM complaints WHERE assigned_to = $1 AND status IN ($2, $3, $4) AND deleted_at IS NULL`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID,
		models.ComplaintStatusPending, models.ComplaintStatusAssigned, models.ComplaintStatusInProgress); err != nil {
		return 0, fmt.Errorf("count open assignments: %w", err)
	}
	return count, nil
}
