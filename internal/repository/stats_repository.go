package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/scms-api/internal/models"
)

// StatsRepository runs the aggregate queries backing the dashboard.
type StatsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository constructs the repository.
func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// CountTotal returns the number of non-deleted complaints.
func (r *StatsRepository) CountTotal(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM complaints WHERE deleted_at IS NULL`); err != nil {
		return 0, fmt.Errorf("count complaints: %w", err)
	}
	return total, nil
}

// CountByStatus groups complaint counts by status.
func (r *StatsRepository) CountByStatus(ctx context.Context) ([]models.StatusCount, error) {
	const query = `SELECT status, COUNT(*) AS count FROM complaints WHERE deleted_at IS NULL GROUP BY status ORDER BY status`
	var counts []models.StatusCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	return counts, nil
}

// CountByPriority groups complaint counts by priority.
func (r *StatsRepository) CountByPriority(ctx context.Context) ([]models.PriorityCount, error) {
	const query = `SELECT priority, COUNT(*) AS count FROM complaints WHERE deleted_at IS NULL GROUP BY priority ORDER BY priority`
	var counts []models.PriorityCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count by priority: %w", err)
	}
	return counts, nil
}

// CountByDepartment groups complaint counts by department.
func (r *StatsRepository) CountByDepartment(ctx context.Context) ([]models.DepartmentCount, error) {
	const query = `SELECT c.department_id, d.name AS department_name, COUNT(*) AS count
	FROM complaints c JOIN departments d ON d.id = c.department_id
	WHERE c.deleted_at IS NULL AND c.department_id IS NOT NULL
	GROUP BY c.department_id, d.name ORDER BY count DESC`
	var counts []models.DepartmentCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count by department: %w", err)
	}
	return counts, nil
}

// CountOpenOlderThan counts open complaints created before the cutoff.
func (r *StatsRepository) CountOpenOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM complaints WHERE deleted_at IS NULL AND created_at < $1 AND status IN ($2, $3, $4)`
	var count int
	if err := r.db.GetContext(ctx, &count, query, cutoff,
		models.ComplaintStatusPending, models.ComplaintStatusAssigned, models.ComplaintStatusInProgress); err != nil {
		return 0, fmt.Errorf("count open older than: %w", err)
	}
	return count, nil
}

// CountResolvedSince counts complaints resolved after the cutoff.
func (r *StatsRepository) CountResolvedSince(ctx context.Context, cutoff time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM complaints WHERE deleted_at IS NULL AND resolved_at >= $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, cutoff); err != nil {
		return 0, fmt.Errorf("count resolved since: %w", err)
	}
	return count, nil
}
