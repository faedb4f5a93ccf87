package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/scms-api/internal/models"
)

// CategoryRepository persists complaint categories.
type CategoryRepository struct {
	db *sqlx.DB
}

// NewCategoryRepository constructs the repository.
func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// GetByID returns a category by identifier.
func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*models.ComplaintCategory, error) {
	const query = `SELECT id, name, description, default_assignee_id, active, created_at FROM complaint_categories WHERE id = $1`
	var category models.ComplaintCategory
	if err := r.db.GetContext(ctx, &category, query, id); err != nil {
		return nil, err
	}
	return &category, nil
}

// List returns active categories in name order.
func (r *CategoryRepository) List(ctx context.Context) ([]models.ComplaintCategory, error) {
	const query = `SELECT id, name, description, default_assignee_id, active, created_at FROM complaint_categories WHERE active = TRUE ORDER BY name ASC`
	var categories []models.ComplaintCategory
	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// Create inserts a category.
func (r *CategoryRepository) Create(ctx context.Context, category *models.ComplaintCategory) error {
	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO complaint_categories (id, name, description, default_assignee_id, active, created_at)
	VALUES (:id, :name, :description, :default_assignee_id, :active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, category); err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}
