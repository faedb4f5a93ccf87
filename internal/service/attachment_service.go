package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/scms-api/internal/authz"
	"github.com/noah-isme/scms-api/internal/models"
	"github.com/noah-isme/scms-api/pkg/config"
	appErrors "github.com/noah-isme/scms-api/pkg/errors"
	"github.com/noah-isme/scms-api/pkg/storage"
)

type attachmentStore interface {
	Create(ctx context.Context, attachment *models.ComplaintAttachment) error
	GetByID(ctx context.Context, id string) (*models.ComplaintAttachment, error)
	ListByComplaint(ctx context.Context, complaintID string) ([]models.ComplaintAttachment, error)
	Delete(ctx context.Context, id string) error
}

type attachmentComplaintStore interface {
	GetByID(ctx context.Context, id string) (*models.Complaint, error)
}

// AttachmentService stores complaint files on local disk and hands out
// signed, expiring download URLs.
type AttachmentService struct {
	attachments attachmentStore
	complaints  attachmentComplaintStore
	files       *storage.LocalStorage
	signer      *storage.SignedURLSigner
	cfg         config.AttachmentsConfig
	logger      *zap.Logger
}

// NewAttachmentService constructs the service, creating the storage
// directory when missing.
func NewAttachmentService(attachments attachmentStore, complaints attachmentComplaintStore, cfg config.AttachmentsConfig, logger *zap.Logger) (*AttachmentService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	files, err := storage.NewLocalStorage(cfg.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("init attachment storage: %w", err)
	}
	return &AttachmentService{
		attachments: attachments,
		complaints:  complaints,
		files:       files,
		signer:      storage.NewSignedURLSigner(cfg.SignedURLSecret, cfg.SignedURLTTL),
		cfg:         cfg,
		logger:      logger,
	}, nil
}

func (s *AttachmentService) mimeAllowed(mime string) bool {
	if len(s.cfg.AllowedMIMEs) == 0 {
		return true
	}
	for _, allowed := range s.cfg.AllowedMIMEs {
		if allowed == mime {
			return true
		}
	}
	return false
}

// Upload validates and stores a file against a complaint the actor can see.
func (s *AttachmentService) Upload(ctx context.Context, complaintID, fileName, mimeType string, size int64, r io.Reader, actor *models.User) (*models.ComplaintAttachment, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if size > s.cfg.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("file exceeds the %d byte limit", s.cfg.MaxFileSizeBytes))
	}
	if !s.mimeAllowed(mimeType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file type not allowed")
	}

	complaint, err := s.complaints.GetByID(ctx, complaintID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load complaint")
	}
	if !authz.CanView(actor, complaint) {
		return nil, appErrors.ErrForbidden
	}

	id := uuid.NewString()
	storedName := id + filepath.Ext(fileName)
	path, err := s.files.SaveStream(storedName, io.LimitReader(r, s.cfg.MaxFileSizeBytes+1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	attachment := &models.ComplaintAttachment{
		ID:          id,
		ComplaintID: complaint.ID,
		UploadedBy:  actor.ID,
		FileName:    fileName,
		StoragePath: path,
		MIMEType:    mimeType,
		SizeBytes:   size,
	}
	if err := s.attachments.Create(ctx, attachment); err != nil {
		if removeErr := s.files.Delete(storedName); removeErr != nil {
			s.logger.Warn("orphaned attachment file left on disk",
				zap.String("file", storedName), zap.Error(removeErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attachment")
	}
	return attachment, nil
}

// List returns the complaint's attachments for a permitted viewer.
func (s *AttachmentService) List(ctx context.Context, complaintID string, actor *models.User) ([]models.ComplaintAttachment, error) {
	complaint, err := s.complaints.GetByID(ctx, complaintID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load complaint")
	}
	if !authz.CanView(actor, complaint) {
		return nil, appErrors.ErrForbidden
	}
	attachments, err := s.attachments.ListByComplaint(ctx, complaintID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attachments")
	}
	return attachments, nil
}

// DownloadURL returns a signed token link for the attachment.
func (s *AttachmentService) DownloadURL(ctx context.Context, attachmentID string, actor *models.User) (string, time.Time, error) {
	attachment, err := s.attachments.GetByID(ctx, attachmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", time.Time{}, appErrors.ErrNotFound
		}
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attachment")
	}
	complaint, err := s.complaints.GetByID(ctx, attachment.ComplaintID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", time.Time{}, appErrors.ErrNotFound
		}
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load complaint")
	}
	if !authz.CanView(actor, complaint) {
		return "", time.Time{}, appErrors.ErrForbidden
	}
	token, expiresAt, err := s.signer.Generate(attachment.ID, filepath.Base(attachment.StoragePath))
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}
	return token, expiresAt, nil
}

// Resolve validates a signed token and opens the underlying file.
func (s *AttachmentService) Resolve(ctx context.Context, token string) (*models.ComplaintAttachment, *os.File, error) {
	attachmentID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "download link is invalid or expired")
	}
	attachment, err := s.attachments.GetByID(ctx, attachmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.ErrNotFound
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attachment")
	}
	file, err := s.files.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open stored file")
	}
	return attachment, file, nil
}

// Delete removes the attachment record and its stored file. Uploaders may
// remove their own files; admins may remove any.
func (s *AttachmentService) Delete(ctx context.Context, attachmentID string, actor *models.User) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	attachment, err := s.attachments.GetByID(ctx, attachmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attachment")
	}
	if !actor.Role.IsAdminEquivalent() && attachment.UploadedBy != actor.ID {
		return appErrors.ErrForbidden
	}
	if err := s.attachments.Delete(ctx, attachmentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete attachment")
	}
	if err := s.files.Delete(filepath.Base(attachment.StoragePath)); err != nil {
		s.logger.Warn("attachment file removal failed",
			zap.String("attachment_id", attachmentID), zap.Error(err))
	}
	return nil
}
