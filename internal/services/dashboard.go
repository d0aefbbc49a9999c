package services

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/nsmonitor/apiserver/types"
	"github.com/sirupsen/logrus"
)

const (
	dashboardStatsKey  = "dashboard:stats"
	dashboardTopLgas   = 10
	dashboardRecentMax = 10
)

// DashboardRepository provides the aggregate queries behind the dashboard.
type DashboardRepository interface {
	Overview(ctx context.Context, today time.Time) (types.DashboardOverview, error)
	LgaStats(ctx context.Context, limit int) ([]types.LgaStat, error)
	ZoneStats(ctx context.Context) ([]types.ZoneStat, error)
	StatusCounts(ctx context.Context) (map[types.ProjectStatus]int, error)
	SectorStats(ctx context.Context) ([]types.SectorStat, error)
	RecentActivity(ctx context.Context, limit int) ([]types.RecentActivity, error)
	ScheduleCounts(ctx context.Context, today time.Time) (onTime, behind int, err error)
	AlertCounts(ctx context.Context) (lowProgress, highBudget int, err error)
}

// StatsCache is satisfied by *cache.StatsCache.
type StatsCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

var statusOrder = []types.ProjectStatus{
	types.ProjectNotStarted,
	types.ProjectInProgress,
	types.ProjectOnHold,
	types.ProjectCompleted,
	types.ProjectCancelled,
}

type DashboardService struct {
	repo   DashboardRepository
	cache  StatsCache
	ttl    time.Duration
	logger *logrus.Logger
	now    func() time.Time
}

// NewDashboardService builds the service. A nil cache or a zero ttl
// computes stats on every call.
func NewDashboardService(repo DashboardRepository, cache StatsCache, ttl time.Duration, logger *logrus.Logger) *DashboardService {
	return &DashboardService{
		repo:   repo,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

func (s *DashboardService) Stats(ctx context.Context) (types.DashboardStats, error) {
	if s.cache != nil && s.ttl > 0 {
		raw, ok, err := s.cache.Get(ctx, dashboardStatsKey)
		if err != nil {
			s.logger.WithError(err).Warn("read cached dashboard stats")
		} else if ok {
			var stats types.DashboardStats
			if err := json.Unmarshal(raw, &stats); err == nil {
				return stats, nil
			}
		}
	}

	stats, err := s.compute(ctx)
	if err != nil {
		return types.DashboardStats{}, err
	}

	if s.cache != nil && s.ttl > 0 {
		if raw, err := json.Marshal(stats); err == nil {
			if err := s.cache.Set(ctx, dashboardStatsKey, raw, s.ttl); err != nil {
				s.logger.WithError(err).Warn("cache dashboard stats")
			}
		}
	}
	return stats, nil
}

func (s *DashboardService) compute(ctx context.Context) (types.DashboardStats, error) {
	now := s.now()
	today := types.NewDate(now).Time

	overview, err := s.repo.Overview(ctx, today)
	if err != nil {
		return types.DashboardStats{}, err
	}
	if overview.TotalBudget > 0 {
		overview.BudgetUtilization = round2(overview.TotalExpenditure / overview.TotalBudget * 100)
	}
	overview.AverageProgress = round2(overview.AverageProgress)

	lgas, err := s.repo.LgaStats(ctx, dashboardTopLgas)
	if err != nil {
		return types.DashboardStats{}, err
	}
	zones, err := s.repo.ZoneStats(ctx)
	if err != nil {
		return types.DashboardStats{}, err
	}
	counts, err := s.repo.StatusCounts(ctx)
	if err != nil {
		return types.DashboardStats{}, err
	}
	sectors, err := s.repo.SectorStats(ctx)
	if err != nil {
		return types.DashboardStats{}, err
	}
	recent, err := s.repo.RecentActivity(ctx, dashboardRecentMax)
	if err != nil {
		return types.DashboardStats{}, err
	}
	onTime, behind, err := s.repo.ScheduleCounts(ctx, today)
	if err != nil {
		return types.DashboardStats{}, err
	}
	lowProgress, highBudget, err := s.repo.AlertCounts(ctx)
	if err != nil {
		return types.DashboardStats{}, err
	}

	statuses := make([]types.StatusStat, 0, len(statusOrder))
	for _, status := range statusOrder {
		count, ok := counts[status]
		if !ok {
			continue
		}
		statuses = append(statuses, types.StatusStat{
			Status: status,
			Count:  count,
			Label:  status.Label(),
			Color:  status.Color(),
		})
	}

	var completionRate float64
	if overview.TotalProjects > 0 {
		completionRate = round2(float64(overview.CompletedProjects) / float64(overview.TotalProjects) * 100)
	}

	return types.DashboardStats{
		Overview:       overview,
		LgaStats:       lgas,
		ZoneStats:      zones,
		StatusStats:    statuses,
		SectorStats:    sectors,
		RecentActivity: recent,
		PerformanceMetrics: types.PerformanceMetrics{
			OnTimeProjects: onTime,
			BehindSchedule: behind,
			// Positive means over budget.
			BudgetVariance: round2(overview.BudgetUtilization - 100),
			CompletionRate: completionRate,
		},
		Alerts: types.DashboardAlerts{
			OverdueProjects:       overview.OverdueProjects,
			LowProgressProjects:   lowProgress,
			HighBudgetUtilization: highBudget,
		},
		GeneratedAt: now.UTC(),
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
