package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/scms-api/internal/models"
)

// AttachmentRepository persists complaint attachment metadata.
type AttachmentRepository struct {
	db *sqlx.DB
}

// NewAttachmentRepository constructs the repository.
func NewAttachmentRepository(db *sqlx.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

// Create inserts an attachment record.
func (r *AttachmentRepository) Create(ctx context.Context, attachment *models.ComplaintAttachment) error {
	if attachment.ID == "" {
		attachment.ID = uuid.NewString()
	}
	if attachment.CreatedAt.IsZero() {
		attachment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO complaint_attachments (id, complaint_id, uploaded_by, file_name, storage_path, mime_type, size_bytes, created_at)
	VALUES (:id, :complaint_id, :uploaded_by, :file_name, :storage_path, :mime_type, :size_bytes, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, attachment); err != nil {
		return fmt.Errorf("create attachment: %w", err)
	}
	return nil
}

// GetByID returns an attachment by identifier.
func (r *AttachmentRepository) GetByID(ctx context.Context, id string) (*models.ComplaintAttachment, error) {
	const query = `SELECT id, complaint_id, uploaded_by, file_name, storage_path, mime_type, size_bytes, created_at
	FROM complaint_attachments WHERE id = $1`
	var attachment models.ComplaintAttachment
	if err := r.db.GetContext(ctx, &attachment, query, id); err != nil {
		return nil, err
	}
	return &attachment, nil
}

// ListByComplaint returns attachments for a complaint, oldest first.
func (r *AttachmentRepository) ListByComplaint(ctx context.Context, complaintID string) ([]models.ComplaintAttachment, error) {
	const query = `SELECT id, complaint_id, uploaded_by, file_name, storage_path, mime_type, size_bytes, created_at
	FROM complaint_attachments WHERE complaint_id = $1 ORDER BY created_at ASC`
	var attachments []models.ComplaintAttachment
	if err := r.db.SelectContext(ctx, &attachments, query, complaintID); err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	return attachments, nil
}

// Delete removes an attachment record.
func (r *AttachmentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM complaint_attachments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete attachment: %w", err)
	}
	return nil
}
