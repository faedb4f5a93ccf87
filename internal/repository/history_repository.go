package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/scms-api/internal/models"
)

const historyInsert = `INSERT INTO complaint_history (id, complaint_id, action, description, actor_id, metadata, created_at)
	VALUES (:id, :complaint_id, :action, :description, :actor_id, :metadata, :created_at)`

// insertHistoryTx appends a history entry inside an existing transaction.
// Used by the complaint repository so a mutation and its history row commit
// or roll back together.
func insertHistoryTx(ctx context.Context, tx *sqlx.Tx, entry *models.ComplaintHistory) error {
	if entry == nil {
		return fmt.Errorf("history entry required")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if _, err := tx.NamedExecContext(ctx, historyInsert, entry); err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

// HistoryRepository reads the append-only complaint audit trail. There is
// deliberately no update or delete operation.
type HistoryRepository struct {
	db *sqlx.DB
}

// NewHistoryRepository constructs the repository.
func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Create appends a standalone history entry outside any transaction.
func (r *HistoryRepository) Create(ctx context.Context, entry *models.ComplaintHistory) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if _, err := r.db.NamedExecContext(ctx, historyInsert, entry); err != nil {
		return fmt.Errorf("create history entry: %w", err)
	}
	return nil
}

// ListByComplaint returns the timeline for a complaint, newest first.
func (r *HistoryRepository) ListByComplaint(ctx context.Context, filter models.HistoryFilter) ([]models.ComplaintHistory, error) {
	query := `SELECT id, complaint_id, action, description, actor_id, metadata, created_at
	FROM complaint_history WHERE complaint_id = $1`
	args := []interface{}{filter.ComplaintID}

	if filter.Action != "" {
		args = append(args, filter.Action)
		query += fmt.Sprintf(" AND action = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	var entries []models.ComplaintHistory
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list history entries: %w", err)
	}
	return entries, nil
}
