package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/scms-api/internal/models"
)

func newHistoryRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestHistoryRepositoryCreateFillsDefaults(t *testing.T) {
	db, mock, cleanup := newHistoryRepoMock(t)
	defer cleanup()

	repo := NewHistoryRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO complaint_history")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.ComplaintHistory{
		ComplaintID: "c-1",
		Action:      models.HistoryActionStatusChanged,
		Description: "Status changed from Pending to Assigned",
	}
	require.NoError(t, repo.Create(context.Background(), entry))
	require.NotEmpty(t, entry.ID)
	require.False(t, entry.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRepositoryListByComplaint(t *testing.T) {
	db, mock, cleanup := newHistoryRepoMock(t)
	defer cleanup()

	repo := NewHistoryRepository(db)
	rows := sqlmock.NewRows([]string{"id", "complaint_id", "action", "description", "actor_id", "metadata", "created_at"}).
		AddRow("h-2", "c-1", "STATUS_CHANGED", "Status changed", "user-1", []byte(`{}`), time.Now()).
		AddRow("h-1", "c-1", "ASSIGNED", "Assigned", "admin-1", []byte(`{}`), time.Now().Add(-time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta("FROM complaint_history WHERE complaint_id = $1")).
		WithArgs("c-1").
		WillReturnRows(rows)

	entries, err := repo.ListByComplaint(context.Background(), models.HistoryFilter{ComplaintID: "c-1"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "h-2", entries[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRepositoryListFiltersByAction(t *testing.T) {
	db, mock, cleanup := newHistoryRepoMock(t)
	defer cleanup()

	repo := NewHistoryRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("AND action = $2")).
		WithArgs("c-1", "ASSIGNED").
		WillReturnRows(sqlmock.NewRows([]string{"id", "complaint_id", "action", "description", "actor_id", "metadata", "created_at"}))

	_, err := repo.ListByComplaint(context.Background(), models.HistoryFilter{
		ComplaintID: "c-1",
		Action:      models.HistoryActionAssigned,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
