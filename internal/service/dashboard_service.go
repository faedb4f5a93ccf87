package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/scms-api/internal/models"
	"github.com/noah-isme/scms-api/pkg/config"
	appErrors "github.com/noah-isme/scms-api/pkg/errors"
)

const dashboardCacheKey = "dashboard:summary"

type statsStore interface {
	CountTotal(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context) ([]models.StatusCount, error)
	CountByPriority(ctx context.Context) ([]models.PriorityCount, error)
	CountByDepartment(ctx context.Context) ([]models.DepartmentCount, error)
	CountOpenOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	CountResolvedSince(ctx context.Context, cutoff time.Time) (int, error)
}

type summaryCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// DashboardService aggregates complaint statistics for admins, caching the
// result in Redis so dashboard refreshes stay cheap.
type DashboardService struct {
	stats   statsStore
	cache   summaryCache
	metrics cacheRecorder
	cfg     config.DashboardConfig
	logger  *zap.Logger
}

type cacheRecorder interface {
	RecordCacheOperation(hit bool)
}

// DashboardServiceOption configures the service.
type DashboardServiceOption func(*DashboardService)

// WithCacheRecorder attaches cache hit/miss counters.
func WithCacheRecorder(recorder cacheRecorder) DashboardServiceOption {
	return func(s *DashboardService) { s.metrics = recorder }
}

// NewDashboardService constructs the service. The cache may be nil; every
// request then hits the database.
func NewDashboardService(stats statsStore, cache summaryCache, cfg config.DashboardConfig, logger *zap.Logger, opts ...DashboardServiceOption) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &DashboardService{stats: stats, cache: cache, cfg: cfg, logger: logger}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Summary builds the dashboard aggregate, serving from cache when fresh.
// The boolean reports whether the response came from cache.
func (s *DashboardService) Summary(ctx context.Context, actor *models.User) (*models.DashboardSummary, bool, error) {
	if actor == nil {
		return nil, false, appErrors.ErrUnauthorized
	}
	if !actor.Role.IsAdminEquivalent() &&
		actor.Role != models.RoleVicePrincipal && actor.Role != models.RolePrincipal {
		return nil, false, appErrors.ErrForbidden
	}

	if s.cache != nil {
		var cached models.DashboardSummary
		err := s.cache.Get(ctx, dashboardCacheKey, &cached)
		if err == nil {
			if s.metrics != nil {
				s.metrics.RecordCacheOperation(true)
			}
			return &cached, true, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		}
		if s.metrics != nil {
			s.metrics.RecordCacheOperation(false)
		}
	}

	summary, err := s.build(ctx)
	if err != nil {
		return nil, false, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, dashboardCacheKey, summary, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return summary, false, nil
}

// Invalidate drops the cached summary so the next read rebuilds it.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, dashboardCacheKey); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}

func (s *DashboardService) build(ctx context.Context) (*models.DashboardSummary, error) {
	now := time.Now().UTC()

	total, err := s.stats.CountTotal(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count complaints")
	}
	byStatus, err := s.stats.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count by status")
	}
	byPriority, err := s.stats.CountByPriority(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count by priority")
	}
	byDepartment, err := s.stats.CountByDepartment(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count by department")
	}
	stale, err := s.stats.CountOpenOlderThan(ctx, now.AddDate(0, 0, -7))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count stale complaints")
	}
	resolved, err := s.stats.CountResolvedSince(ctx, now.AddDate(0, 0, -30))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count resolved complaints")
	}

	return &models.DashboardSummary{
		Total:              total,
		ByStatus:           byStatus,
		ByPriority:         byPriority,
		ByDepartment:       byDepartment,
		OpenOverSevenDays:  stale,
		ResolvedLastThirty: resolved,
		GeneratedAt:        now,
	}, nil
}
