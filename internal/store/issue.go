package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/hostel-tracker/apiserver/types"
	"github.com/lib/pq"
)

const issueColumns = `id, title, description, category, priority, status, is_public, reporter_id, assignee_id,
	hostel, block, room, media, status_history, comments, upvotes, created_at, updated_at`

// IssueRepository handles persistence for issues. Status history, comments
// and upvotes live on the issue row and are only written together with it.
type IssueRepository struct {
	db *sql.DB
}

func NewIssueRepository(db *sql.DB) *IssueRepository {
	return &IssueRepository{db: db}
}

func (r *IssueRepository) List(ctx context.Context, scope types.IssueScope, filter types.IssueFilter) ([]types.Issue, error) {
	var where whereClause
	if scope.ReporterOrPublicHostel {
		where.add("(reporter_id = " + where.arg(scope.ReporterID) +
			" OR (is_public AND hostel = " + where.arg(scope.PublicHostel) + "))")
	}
	if scope.AssigneeID != "" {
		where.eq("assignee_id", scope.AssigneeID)
	}
	if filter.Status != "" {
		where.eq("status", filter.Status)
	}
	if filter.Category != "" {
		where.eq("category", filter.Category)
	}
	if filter.Priority != "" {
		where.eq("priority", filter.Priority)
	}
	if filter.Hostel != "" {
		where.eq("hostel", filter.Hostel)
	}
	if filter.Block != "" {
		where.eq("block", filter.Block)
	}
	if filter.Search != "" {
		where.search(filter.Search, "title", "description")
	}

	query := `SELECT ` + issueColumns + ` FROM issues` + where.String() + ` ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	issues := make([]types.Issue, 0)
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return issues, nil
}

func (r *IssueRepository) Get(ctx context.Context, id string) (types.Issue, error) {
	const query = `SELECT ` + issueColumns + ` FROM issues WHERE id = $1`
	return scanIssue(r.db.QueryRowContext(ctx, query, id))
}

func (r *IssueRepository) Create(ctx context.Context, issue types.Issue) (types.Issue, error) {
	if issue.ID == "" {
		issue.ID = uuid.NewString()
	}

	historyJSON, err := json.Marshal(nonNilHistory(issue.StatusHistory))
	if err != nil {
		return types.Issue{}, err
	}
	commentsJSON, err := json.Marshal(nonNilComments(issue.Comments))
	if err != nil {
		return types.Issue{}, err
	}

	const query = `
		INSERT INTO issues (id, title, description, category, priority, status, is_public, reporter_id, assignee_id,
			hostel, block, room, media, status_history, comments, upvotes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	_, err = r.db.ExecContext(
		ctx,
		query,
		issue.ID,
		issue.Title,
		issue.Description,
		issue.Category,
		issue.Priority,
		issue.Status,
		issue.IsPublic,
		issue.ReporterID,
		nullString(issue.AssigneeID),
		issue.Hostel,
		issue.Block,
		issue.Room,
		pq.Array(nonNilStrings(issue.Media)),
		string(historyJSON),
		string(commentsJSON),
		pq.Array(nonNilStrings(issue.Upvotes)),
		issue.CreatedAt,
		issue.UpdatedAt,
	)
	if err != nil {
		return types.Issue{}, err
	}
	return issue, nil
}

// Mutate locks the issue row, applies fn to it and writes the result back in
// the same transaction. If fn returns an error nothing is written.
func (r *IssueRepository) Mutate(ctx context.Context, id string, fn func(issue *types.Issue) error) (types.Issue, error) {
	var issue types.Issue
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		const query = `SELECT ` + issueColumns + ` FROM issues WHERE id = $1 FOR UPDATE`
		locked, err := scanIssue(tx.QueryRowContext(ctx, query, id))
		if err != nil {
			return err
		}
		if err := fn(&locked); err != nil {
			return err
		}
		issue = locked
		return updateIssue(ctx, tx, locked)
	})
	if err != nil {
		return types.Issue{}, err
	}
	return issue, nil
}

func (r *IssueRepository) Delete(ctx context.Context, id string) error {
	return execAffected(ctx, r.db, `DELETE FROM issues WHERE id = $1`, id)
}

func updateIssue(ctx context.Context, tx *sql.Tx, issue types.Issue) error {
	historyJSON, err := json.Marshal(nonNilHistory(issue.StatusHistory))
	if err != nil {
		return err
	}
	commentsJSON, err := json.Marshal(nonNilComments(issue.Comments))
	if err != nil {
		return err
	}

	const query = `
		UPDATE issues
		SET status = $1,
			assignee_id = $2,
			status_history = $3,
			comments = $4,
			upvotes = $5,
			updated_at = $6
		WHERE id = $7`
	result, err := tx.ExecContext(
		ctx,
		query,
		issue.Status,
		nullString(issue.AssigneeID),
		string(historyJSON),
		string(commentsJSON),
		pq.Array(nonNilStrings(issue.Upvotes)),
		issue.UpdatedAt,
		issue.ID,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanIssue(row rowScanner) (types.Issue, error) {
	var issue types.Issue
	var assignee sql.NullString
	var historyJSON, commentsJSON []byte
	err := row.Scan(
		&issue.ID,
		&issue.Title,
		&issue.Description,
		&issue.Category,
		&issue.Priority,
		&issue.Status,
		&issue.IsPublic,
		&issue.ReporterID,
		&assignee,
		&issue.Hostel,
		&issue.Block,
		&issue.Room,
		pq.Array(&issue.Media),
		&historyJSON,
		&commentsJSON,
		pq.Array(&issue.Upvotes),
		&issue.CreatedAt,
		&issue.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Issue{}, ErrNotFound
		}
		return types.Issue{}, err
	}

	if assignee.Valid {
		issue.AssigneeID = &assignee.String
	}
	if err := json.Unmarshal(historyJSON, &issue.StatusHistory); err != nil {
		return types.Issue{}, err
	}
	if err := json.Unmarshal(commentsJSON, &issue.Comments); err != nil {
		return types.Issue{}, err
	}
	issue.Media = nonNilStrings(issue.Media)
	issue.Upvotes = nonNilStrings(issue.Upvotes)
	issue.Comments = nonNilComments(issue.Comments)
	return issue, nil
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nonNilHistory(values []types.StatusChange) []types.StatusChange {
	if values == nil {
		return []types.StatusChange{}
	}
	return values
}

func nonNilComments(values []types.Comment) []types.Comment {
	if values == nil {
		return []types.Comment{}
	}
	return values
}
