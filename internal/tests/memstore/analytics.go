package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hostel-tracker/apiserver/types"
)

// Analytics computes rollups over an Issues repository.
type Analytics struct {
	issues *Issues
}

func NewAnalytics(issues *Issues) *Analytics {
	return &Analytics{issues: issues}
}

func (a *Analytics) filtered(filter types.AnalyticsFilter) []types.Issue {
	out := make([]types.Issue, 0)
	for _, issue := range a.issues.snapshot() {
		switch {
		case filter.Start != nil && issue.CreatedAt.Before(*filter.Start),
			filter.End != nil && issue.CreatedAt.After(*filter.End),
			filter.Hostel != "" && issue.Hostel != filter.Hostel:
			continue
		}
		out = append(out, issue)
	}
	return out
}

func (a *Analytics) CountIssues(_ context.Context, filter types.AnalyticsFilter) (int, error) {
	return len(a.filtered(filter)), nil
}

func (a *Analytics) CountBy(_ context.Context, column string, filter types.AnalyticsFilter) ([]types.KeyCount, error) {
	var key func(types.Issue) string
	switch column {
	case "status":
		key = func(i types.Issue) string { return string(i.Status) }
	case "category":
		key = func(i types.Issue) string { return string(i.Category) }
	case "priority":
		key = func(i types.Issue) string { return string(i.Priority) }
	default:
		return nil, fmt.Errorf("unsupported group column %q", column)
	}

	counts := make(map[string]int)
	for _, issue := range a.filtered(filter) {
		counts[key(issue)]++
	}
	rows := make([]types.KeyCount, 0, len(counts))
	for k, n := range counts {
		rows = append(rows, types.KeyCount{Key: k, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Key < rows[j].Key
	})
	return rows, nil
}

func (a *Analytics) CountByHostel(_ context.Context, filter types.AnalyticsFilter) ([]types.HostelCount, error) {
	filter.Hostel = ""
	counts := make(map[string]int)
	for _, issue := range a.filtered(filter) {
		counts[issue.Hostel]++
	}
	rows := make([]types.HostelCount, 0, len(counts))
	for hostel, n := range counts {
		rows = append(rows, types.HostelCount{Hostel: hostel, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Hostel < rows[j].Hostel
	})
	return rows, nil
}

func (a *Analytics) CountByBlock(_ context.Context, filter types.AnalyticsFilter) ([]types.BlockCount, error) {
	type hostelBlock struct{ hostel, block string }
	counts := make(map[hostelBlock]int)
	for _, issue := range a.filtered(filter) {
		counts[hostelBlock{issue.Hostel, issue.Block}]++
	}
	rows := make([]types.BlockCount, 0, len(counts))
	for k, n := range counts {
		rows = append(rows, types.BlockCount{Hostel: k.hostel, Block: k.block, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Hostel != rows[j].Hostel {
			return rows[i].Hostel < rows[j].Hostel
		}
		return rows[i].Block < rows[j].Block
	})
	return rows, nil
}

func (a *Analytics) ResolutionSamples(_ context.Context, filter types.AnalyticsFilter) ([]types.ResolutionSample, error) {
	samples := make([]types.ResolutionSample, 0)
	for _, issue := range a.filtered(filter) {
		if _, ok := issue.ResolvedAt(); !ok {
			continue
		}
		samples = append(samples, types.ResolutionSample{CreatedAt: issue.CreatedAt, StatusHistory: issue.StatusHistory})
	}
	return samples, nil
}

func (a *Analytics) DailyCounts(_ context.Context, start time.Time, hostel string) ([]types.TrendPoint, error) {
	counts := make(map[string]int)
	for _, issue := range a.filtered(types.AnalyticsFilter{Start: &start, Hostel: hostel}) {
		counts[issue.CreatedAt.UTC().Format(time.DateOnly)]++
	}
	points := make([]types.TrendPoint, 0, len(counts))
	for date, n := range counts {
		points = append(points, types.TrendPoint{Date: date, Count: n})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points, nil
}

func (a *Analytics) MostUpvoted(_ context.Context, limit int) ([]types.RankedIssue, error) {
	return a.ranked(limit, func(i types.Issue) int { return len(i.Upvotes) }, true), nil
}

func (a *Analytics) MostCommented(_ context.Context, limit int) ([]types.RankedIssue, error) {
	return a.ranked(limit, func(i types.Issue) int { return len(i.Comments) }, false), nil
}

func (a *Analytics) ranked(limit int, score func(types.Issue) int, upvotes bool) []types.RankedIssue {
	public := make([]types.Issue, 0)
	for _, issue := range a.issues.snapshot() {
		if issue.IsPublic {
			public = append(public, issue)
		}
	}
	sort.SliceStable(public, func(i, j int) bool {
		if si, sj := score(public[i]), score(public[j]); si != sj {
			return si > sj
		}
		return public[i].CreatedAt.After(public[j].CreatedAt)
	})
	if len(public) > limit {
		public = public[:limit]
	}

	rows := make([]types.RankedIssue, 0, len(public))
	for _, issue := range public {
		n := score(issue)
		row := types.RankedIssue{
			ID:        issue.ID,
			Title:     issue.Title,
			Category:  string(issue.Category),
			Priority:  string(issue.Priority),
			Hostel:    issue.Hostel,
			CreatedAt: issue.CreatedAt,
		}
		if upvotes {
			row.Upvotes = &n
		} else {
			row.Comments = &n
		}
		rows = append(rows, row)
	}
	return rows
}
