package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/scms-api/internal/models"
)

// CommentRepository persists complaint comments.
type CommentRepository struct {
	db *sqlx.DB
}

// NewCommentRepository constructs the repository.
func NewCommentRepository(db *sqlx.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// Create inserts a new comment row.
func (r *CommentRepository) Create(ctx context.Context, comment *models.ComplaintComment) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO complaint_comments (id, complaint_id, author_id, body, internal, created_at)
	VALUES (:id, :complaint_id, :author_id, :body, :internal, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, comment); err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

// ListByComplaint returns comments for a complaint, oldest first.
func (r *CommentRepository) ListByComplaint(ctx context.Context, filter models.CommentFilter) ([]models.ComplaintComment, error) {
	query := `SELECT id, complaint_id, author_id, body, internal, created_at FROM complaint_comments WHERE complaint_id = $1`
	if !filter.IncludeInternal {
		query += " AND internal = FALSE"
	}
	query += " ORDER BY created_at ASC"

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	var comments []models.ComplaintComment
	if err := r.db.SelectContext(ctx, &comments, query, filter.ComplaintID); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}
