package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hostel-tracker/apiserver/types"
	"github.com/jmoiron/sqlx"
)

// AnalyticsRepository runs read-only rollups over the issues table.
type AnalyticsRepository struct {
	db *sqlx.DB
}

func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

func analyticsWhere(filter types.AnalyticsFilter, withHostel bool) whereClause {
	var where whereClause
	if filter.Start != nil {
		where.add("created_at >= " + where.arg(*filter.Start))
	}
	if filter.End != nil {
		where.add("created_at <= " + where.arg(*filter.End))
	}
	if withHostel && filter.Hostel != "" {
		where.eq("hostel", filter.Hostel)
	}
	return where
}

func (r *AnalyticsRepository) CountIssues(ctx context.Context, filter types.AnalyticsFilter) (int, error) {
	where := analyticsWhere(filter, true)
	var total int
	err := r.db.GetContext(ctx, &total, `SELECT COUNT(1) FROM issues`+where.String(), where.args...)
	return total, err
}

// CountBy groups issues by one of status, category or priority.
func (r *AnalyticsRepository) CountBy(ctx context.Context, column string, filter types.AnalyticsFilter) ([]types.KeyCount, error) {
	switch column {
	case "status", "category", "priority":
	default:
		return nil, fmt.Errorf("unsupported group column %q", column)
	}
	where := analyticsWhere(filter, true)
	query := `SELECT ` + column + ` AS key, COUNT(1) AS count FROM issues` + where.String() +
		` GROUP BY ` + column + ` ORDER BY count DESC, key`
	rows := make([]types.KeyCount, 0)
	if err := r.db.SelectContext(ctx, &rows, query, where.args...); err != nil {
		return nil, err
	}
	return rows, nil
}

// CountByHostel applies only the date range of filter.
func (r *AnalyticsRepository) CountByHostel(ctx context.Context, filter types.AnalyticsFilter) ([]types.HostelCount, error) {
	where := analyticsWhere(filter, false)
	query := `SELECT hostel, COUNT(1) AS count FROM issues` + where.String() + ` GROUP BY hostel ORDER BY count DESC, hostel`
	rows := make([]types.HostelCount, 0)
	if err := r.db.SelectContext(ctx, &rows, query, where.args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AnalyticsRepository) CountByBlock(ctx context.Context, filter types.AnalyticsFilter) ([]types.BlockCount, error) {
	where := analyticsWhere(filter, true)
	query := `SELECT hostel, block, COUNT(1) AS count FROM issues` + where.String() +
		` GROUP BY hostel, block ORDER BY hostel, block`
	rows := make([]types.BlockCount, 0)
	if err := r.db.SelectContext(ctx, &rows, query, where.args...); err != nil {
		return nil, err
	}
	return rows, nil
}

// ResolutionSamples returns creation time and history of issues whose
// history records a resolution.
func (r *AnalyticsRepository) ResolutionSamples(ctx context.Context, filter types.AnalyticsFilter) ([]types.ResolutionSample, error) {
	where := analyticsWhere(filter, true)
	where.add(`(status_history @> '[{"status":"resolved"}]' OR status_history @> '[{"status":"closed"}]')`)

	var rows []struct {
		CreatedAt time.Time `db:"created_at"`
		History   []byte    `db:"status_history"`
	}
	query := `SELECT created_at, status_history FROM issues` + where.String()
	if err := r.db.SelectContext(ctx, &rows, query, where.args...); err != nil {
		return nil, err
	}

	samples := make([]types.ResolutionSample, 0, len(rows))
	for _, row := range rows {
		sample := types.ResolutionSample{CreatedAt: row.CreatedAt}
		if err := json.Unmarshal(row.History, &sample.StatusHistory); err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

// DailyCounts buckets issues created since start by UTC day.
func (r *AnalyticsRepository) DailyCounts(ctx context.Context, start time.Time, hostel string) ([]types.TrendPoint, error) {
	where := analyticsWhere(types.AnalyticsFilter{Start: &start, Hostel: hostel}, true)
	query := `SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS date, COUNT(1) AS count FROM issues` +
		where.String() + ` GROUP BY 1 ORDER BY 1`
	rows := make([]types.TrendPoint, 0)
	if err := r.db.SelectContext(ctx, &rows, query, where.args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AnalyticsRepository) MostUpvoted(ctx context.Context, limit int) ([]types.RankedIssue, error) {
	const query = `
		SELECT id, title, category, priority, hostel, cardinality(upvotes) AS upvotes, created_at
		FROM issues
		WHERE is_public
		ORDER BY cardinality(upvotes) DESC, created_at DESC
		LIMIT $1`
	rows := make([]types.RankedIssue, 0)
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AnalyticsRepository) MostCommented(ctx context.Context, limit int) ([]types.RankedIssue, error) {
	const query = `
		SELECT id, title, category, priority, hostel, jsonb_array_length(comments) AS comments, created_at
		FROM issues
		WHERE is_public
		ORDER BY jsonb_array_length(comments) DESC, created_at DESC
		LIMIT $1`
	rows := make([]types.RankedIssue, 0)
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, err
	}
	return rows, nil
}
