package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/scms-api/internal/models"
)

func newComplaintRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestNextComplaintNumber(t *testing.T) {
	prefix := "C20240708"

	require.Equal(t, "C202407080001", nextComplaintNumber("", prefix))
	require.Equal(t, "C202407080002", nextComplaintNumber("C202407080001", prefix))
	require.Equal(t, "C202407080100", nextComplaintNumber("C202407080099", prefix))
	require.Equal(t, "C202407081000", nextComplaintNumber("C202407080999", prefix))

	// The suffix widens past four digits instead of wrapping back to 0001.
	require.Equal(t, "C2024070810000", nextComplaintNumber("C202407089999", prefix))
	require.Equal(t, "C2024070810001", nextComplaintNumber("C2024070810000", prefix))

	// A different day's number does not carry its sequence over.
	require.Equal(t, "C202407090001", nextComplaintNumber("C202407080042", "C20240709"))
	// Malformed input falls back to the first sequence.
	require.Equal(t, "C202407080001", nextComplaintNumber("C20240708XYZW", prefix))
}

func TestComplaintNumberPrefix(t *testing.T) {
	ts := time.Date(2024, 7, 8, 15, 4, 5, 0, time.UTC)
	require.Equal(t, "C20240708", ComplaintNumberPrefix(ts))
}

func TestComplaintRepositoryCreateIssuesNumber(t *testing.T) {
	db, mock, cleanup := newComplaintRepoMock(t)
	defer cleanup()

	repo := NewComplaintRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT complaint_number FROM complaints WHERE complaint_number LIKE $1 ORDER BY LENGTH(complaint_number) DESC, complaint_number DESC LIMIT 1 FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"complaint_number"}).AddRow("C202407080007"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO complaints")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	complaint := &models.Complaint{
		Title:       "Leaking roof",
		Description: "Water drips into the hallway",
		CreatedBy:   "user-1",
		CreatedAt:   time.Date(2024, 7, 8, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Create(context.Background(), complaint))
	require.Equal(t, "C202407080008", complaint.ComplaintNumber)
	require.Equal(t, models.ComplaintStatusPending, complaint.Status)
	require.Equal(t, models.PriorityNormal, complaint.Priority)
	require.Equal(t, 1, complaint.EscalationLevel)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestComplaintRepositoryCreateFirstOfDay(t *testing.T) {
	db, mock, cleanup := newComplaintRepoMock(t)
	defer cleanup()

	repo := NewComplaintRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT complaint_number FROM complaints")).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO complaints")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	complaint := &models.Complaint{
		Title:       "First of the day",
		Description: "d",
		CreatedBy:   "user-1",
		CreatedAt:   time.Date(2024, 7, 9, 8, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Create(context.Background(), complaint))
	require.Equal(t, "C202407090001", complaint.ComplaintNumber)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestComplaintRepositoryApplyStatusUpdate(t *testing.T) {
	db, mock, cleanup := newComplaintRepoMock(t)
	defer cleanup()

	repo := NewComplaintRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM complaints WHERE id = $1 AND deleted_at IS NULL FOR UPDATE")).
		WithArgs("c-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("IN_PROGRESS"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE complaints SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO complaint_history")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	note := "fixed"
	actorID := "admin-1"
	err := repo.ApplyStatusUpdate(context.Background(), StatusUpdateParams{
		ComplaintID:    "c-1",
		From:           models.ComplaintStatusInProgress,
		To:             models.ComplaintStatusResolved,
		ActorID:        actorID,
		ResolutionNote: &note,
	}, &models.ComplaintHistory{
		ComplaintID: "c-1",
		Action:      models.HistoryActionStatusChanged,
		Description: "Status changed from In Progress to Resolved",
		ActorID:     &actorID,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestComplaintRepositoryApplyStatusUpdateConflictOnRead(t *testing.T) {
	db, mock, cleanup := newComplaintRepoMock(t)
	defer cleanup()

	repo := NewComplaintRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM complaints")).
		WithArgs("c-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("RESOLVED"))
	mock.ExpectRollback()

	actorID := "admin-1"
	err := repo.ApplyStatusUpdate(context.Background(), StatusUpdateParams{
		ComplaintID: "c-1",
		From:        models.ComplaintStatusInProgress,
		To:          models.ComplaintStatusResolved,
		ActorID:     actorID,
	}, &models.ComplaintHistory{ComplaintID: "c-1", Action: models.HistoryActionStatusChanged, ActorID: &actorID})
	require.ErrorIs(t, err, ErrStatusConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestComplaintRepositoryApplyStatusUpdateConflictOnWrite(t *testing.T) {
	db, mock, cleanup := newComplaintRepoMock(t)
	defer cleanup()

	repo := NewComplaintRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM complaints")).
		WithArgs("c-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("IN_PROGRESS"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE complaints SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	actorID := "admin-1"
	note := "fixed"
	err := repo.ApplyStatusUpdate(context.Background(), StatusUpdateParams{
		ComplaintID:    "c-1",
		From:           models.ComplaintStatusInProgress,
		To:             models.ComplaintStatusResolved,
		ActorID:        actorID,
		ResolutionNote: &note,
	}, &models.ComplaintHistory{ComplaintID: "c-1", Action: models.HistoryActionStatusChanged, ActorID: &actorID})
	require.ErrorIs(t, err, ErrStatusConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestComplaintRepositoryApplyAssignment(t *testing.T) {
	db, mock, cleanup := newComplaintRepoMock(t)
	defer cleanup()

	repo := NewComplaintRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM complaints")).
		WithArgs("c-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("PENDING"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE complaints SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO complaint_history")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	assignerID := "admin-1"
	err := repo.ApplyAssignment(context.Background(), AssignmentParams{
		ComplaintID: "c-1",
		AssigneeID:  "teacher-1",
		AssignerID:  assignerID,
	}, &models.ComplaintHistory{
		ComplaintID: "c-1",
		Action:      models.HistoryActionAssigned,
		Description: "Assigned to Teacher One",
		ActorID:     &assignerID,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestComplaintRepositoryListViewerScope(t *testing.T) {
	db, mock, cleanup := newComplaintRepoMock(t)
	defer cleanup()

	repo := NewComplaintRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM complaints")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("created_by = $1 OR assigned_to = $2 OR (is_public AND department_id = $3)")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	dept := "dept-1"
	viewer := &models.User{ID: "teacher-1", Role: models.RoleTeacher, DepartmentID: &dept}
	_, total, err := repo.List(context.Background(), models.ComplaintFilter{Viewer: viewer})
	require.NoError(t, err)
	require.Equal(t, 0, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestComplaintRepositoryCountOpenByAssignee(t *testing.T) {
	db, mock, cleanup := newComplaintRepoMock(t)
	defer cleanup()

	repo := NewComplaintRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM complaints WHERE assigned_to = $1 AND status IN ($2, $3, $4)")).
		WithArgs("teacher-1", "PENDING", "ASSIGNED", "IN_PROGRESS").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountOpenByAssignee(context.Background(), "teacher-1")
	require.NoError(t, err)
	require.Equal(t, 4, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
