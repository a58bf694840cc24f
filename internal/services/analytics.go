package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/hostel-tracker/apiserver/internal/policy"
	"github.com/hostel-tracker/apiserver/types"
)

const (
	defaultTrendDays = 30
	maxTrendDays     = 365
	defaultTopLimit  = 10
	maxTopLimit      = 100
)

// AnalyticsRepository defines the read-only rollups over issues.
type AnalyticsRepository interface {
	CountIssues(ctx context.Context, filter types.AnalyticsFilter) (int, error)
	CountBy(ctx context.Context, column string, filter types.AnalyticsFilter) ([]types.KeyCount, error)
	CountByHostel(ctx context.Context, filter types.AnalyticsFilter) ([]types.HostelCount, error)
	CountByBlock(ctx context.Context, filter types.AnalyticsFilter) ([]types.BlockCount, error)
	ResolutionSamples(ctx context.Context, filter types.AnalyticsFilter) ([]types.ResolutionSample, error)
	DailyCounts(ctx context.Context, start time.Time, hostel string) ([]types.TrendPoint, error)
	MostUpvoted(ctx context.Context, limit int) ([]types.RankedIssue, error)
	MostCommented(ctx context.Context, limit int) ([]types.RankedIssue, error)
}

// AnalyticsService computes management dashboards.
type AnalyticsService struct {
	repo AnalyticsRepository
	now  func() time.Time
}

func NewAnalyticsService(repo AnalyticsRepository) *AnalyticsService {
	return &AnalyticsService{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Overview returns issue counts and resolution time. The per-hostel counts
// honour only the date range of filter.
func (s *AnalyticsService) Overview(ctx context.Context, actor policy.Actor, filter types.AnalyticsFilter) (types.Overview, error) {
	if decision := policy.CanViewAnalytics(actor); !decision.Allowed {
		return types.Overview{}, ErrForbidden(decision, "only management can view analytics")
	}
	if filter.Start != nil && filter.End != nil && filter.End.Before(*filter.Start) {
		return types.Overview{}, ErrValidation("endDate must not be before startDate")
	}

	total, err := s.repo.CountIssues(ctx, filter)
	if err != nil {
		return types.Overview{}, ErrUpstream("failed to count issues", err)
	}
	byStatus, err := s.repo.CountBy(ctx, "status", filter)
	if err != nil {
		return types.Overview{}, ErrUpstream("failed to count issues by status", err)
	}
	byCategory, err := s.repo.CountBy(ctx, "category", filter)
	if err != nil {
		return types.Overview{}, ErrUpstream("failed to count issues by category", err)
	}
	byPriority, err := s.repo.CountBy(ctx, "priority", filter)
	if err != nil {
		return types.Overview{}, ErrUpstream("failed to count issues by priority", err)
	}
	byHostel, err := s.repo.CountByHostel(ctx, filter)
	if err != nil {
		return types.Overview{}, ErrUpstream("failed to count issues by hostel", err)
	}
	byBlock, err := s.repo.CountByBlock(ctx, filter)
	if err != nil {
		return types.Overview{}, ErrUpstream("failed to count issues by block", err)
	}
	samples, err := s.repo.ResolutionSamples(ctx, filter)
	if err != nil {
		return types.Overview{}, ErrUpstream("failed to load resolution times", err)
	}

	overview := types.Overview{
		TotalIssues:      total,
		IssuesByStatus:   make(map[string]int, len(byStatus)),
		IssuesByCategory: make([]types.CategoryCount, 0, len(byCategory)),
		IssuesByPriority: make([]types.PriorityCount, 0, len(byPriority)),
		IssuesByHostel:   byHostel,
		IssuesByBlock:    byBlock,
	}
	for _, row := range byStatus {
		overview.IssuesByStatus[row.Key] = row.Count
	}
	for _, row := range byCategory {
		overview.IssuesByCategory = append(overview.IssuesByCategory, types.CategoryCount{Category: row.Key, Count: row.Count})
	}
	for _, row := range byPriority {
		overview.IssuesByPriority = append(overview.IssuesByPriority, types.PriorityCount{Priority: row.Key, Count: row.Count})
	}
	overview.AvgResolutionTimeHours, overview.ResolvedCount = averageResolution(samples)
	return overview, nil
}

// averageResolution returns the mean hours from creation to the first
// resolved or closed entry, rounded to one decimal, and the number of
// issues that have such an entry.
func averageResolution(samples []types.ResolutionSample) (float64, int) {
	var total time.Duration
	var count int
	for _, sample := range samples {
		resolvedAt, ok := types.FirstResolution(sample.StatusHistory)
		if !ok {
			continue
		}
		total += resolvedAt.Sub(sample.CreatedAt)
		count++
	}
	if count == 0 {
		return 0, 0
	}
	hours := total.Hours() / float64(count)
	return math.Round(hours*10) / 10, count
}

// Trends returns daily issue counts over the trailing days window.
func (s *AnalyticsService) Trends(ctx context.Context, actor policy.Actor, days int, hostel string) (types.Trends, error) {
	if decision := policy.CanViewAnalytics(actor); !decision.Allowed {
		return types.Trends{}, ErrForbidden(decision, "only management can view analytics")
	}
	if days <= 0 {
		days = defaultTrendDays
	}
	if days > maxTrendDays {
		return types.Trends{}, ErrValidation("days must be at most 365")
	}

	start := s.now().AddDate(0, 0, -days)
	points, err := s.repo.DailyCounts(ctx, start, hostel)
	if err != nil {
		return types.Trends{}, ErrUpstream("failed to load trends", err)
	}
	return types.Trends{
		Period: fmt.Sprintf("%d days", days),
		Trends: points,
	}, nil
}

// TopIssues ranks public issues by upvotes and by comments independently.
func (s *AnalyticsService) TopIssues(ctx context.Context, actor policy.Actor, limit int) (types.TopIssues, error) {
	if decision := policy.CanViewAnalytics(actor); !decision.Allowed {
		return types.TopIssues{}, ErrForbidden(decision, "only management can view analytics")
	}
	if limit <= 0 {
		limit = defaultTopLimit
	}
	if limit > maxTopLimit {
		limit = maxTopLimit
	}

	upvoted, err := s.repo.MostUpvoted(ctx, limit)
	if err != nil {
		return types.TopIssues{}, ErrUpstream("failed to rank issues by upvotes", err)
	}
	commented, err := s.repo.MostCommented(ctx, limit)
	if err != nil {
		return types.TopIssues{}, ErrUpstream("failed to rank issues by comments", err)
	}
	return types.TopIssues{
		MostUpvoted:   upvoted,
		MostCommented: commented,
	}, nil
}
