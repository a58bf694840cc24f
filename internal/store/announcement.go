package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/hostel-tracker/apiserver/types"
	"github.com/lib/pq"
)

const announcementColumns = `id, title, content, target_hostels, target_blocks, target_roles, author_id, is_active,
	created_at, updated_at`

// AnnouncementRepository handles persistence for announcements.
type AnnouncementRepository struct {
	db *sql.DB
}

func NewAnnouncementRepository(db *sql.DB) *AnnouncementRepository {
	return &AnnouncementRepository{db: db}
}

// List returns announcements newest first. When activeOnly is set inactive
// announcements are skipped.
func (r *AnnouncementRepository) List(ctx context.Context, activeOnly bool) ([]types.Announcement, error) {
	query := `SELECT ` + announcementColumns + ` FROM announcements`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	announcements := make([]types.Announcement, 0)
	for rows.Next() {
		announcement, err := scanAnnouncement(rows)
		if err != nil {
			return nil, err
		}
		announcements = append(announcements, announcement)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return announcements, nil
}

func (r *AnnouncementRepository) Get(ctx context.Context, id string) (types.Announcement, error) {
	const query = `SELECT ` + announcementColumns + ` FROM announcements WHERE id = $1`
	return scanAnnouncement(r.db.QueryRowContext(ctx, query, id))
}

func (r *AnnouncementRepository) Create(ctx context.Context, a types.Announcement) (types.Announcement, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	const query = `
		INSERT INTO announcements (id, title, content, target_hostels, target_blocks, target_roles, author_id,
			is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		a.ID,
		a.Title,
		a.Content,
		pq.Array(nonNilStrings(a.TargetHostels)),
		pq.Array(nonNilStrings(a.TargetBlocks)),
		pq.Array(rolesToStrings(a.TargetRoles)),
		a.AuthorID,
		a.IsActive,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return types.Announcement{}, err
	}
	return a, nil
}

// Mutate locks the announcement row, applies fn and writes it back.
func (r *AnnouncementRepository) Mutate(ctx context.Context, id string, fn func(a *types.Announcement) error) (types.Announcement, error) {
	var announcement types.Announcement
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		const query = `SELECT ` + announcementColumns + ` FROM announcements WHERE id = $1 FOR UPDATE`
		locked, err := scanAnnouncement(tx.QueryRowContext(ctx, query, id))
		if err != nil {
			return err
		}
		if err := fn(&locked); err != nil {
			return err
		}
		announcement = locked

		const update = `
			UPDATE announcements
			SET title = $1,
				content = $2,
				target_hostels = $3,
				target_blocks = $4,
				target_roles = $5,
				is_active = $6,
				updated_at = $7
			WHERE id = $8`
		_, err = tx.ExecContext(
			ctx,
			update,
			locked.Title,
			locked.Content,
			pq.Array(nonNilStrings(locked.TargetHostels)),
			pq.Array(nonNilStrings(locked.TargetBlocks)),
			pq.Array(rolesToStrings(locked.TargetRoles)),
			locked.IsActive,
			locked.UpdatedAt,
			locked.ID,
		)
		return err
	})
	if err != nil {
		return types.Announcement{}, err
	}
	return announcement, nil
}

func (r *AnnouncementRepository) Delete(ctx context.Context, id string) error {
	return execAffected(ctx, r.db, `DELETE FROM announcements WHERE id = $1`, id)
}

func scanAnnouncement(row rowScanner) (types.Announcement, error) {
	var a types.Announcement
	var roles []string
	err := row.Scan(
		&a.ID,
		&a.Title,
		&a.Content,
		pq.Array(&a.TargetHostels),
		pq.Array(&a.TargetBlocks),
		pq.Array(&roles),
		&a.AuthorID,
		&a.IsActive,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Announcement{}, ErrNotFound
		}
		return types.Announcement{}, err
	}
	a.TargetHostels = nonNilStrings(a.TargetHostels)
	a.TargetBlocks = nonNilStrings(a.TargetBlocks)
	a.TargetRoles = make([]types.Role, 0, len(roles))
	for _, role := range roles {
		a.TargetRoles = append(a.TargetRoles, types.Role(role))
	}
	return a, nil
}

func rolesToStrings(roles []types.Role) []string {
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		out = append(out, string(role))
	}
	return out
}
