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

const itemColumns = `id, item_name, description, location, status, reporter_id, images, hostel, contact_info,
	claim_requests, created_at, updated_at`

// LostFoundRepository handles persistence for lost and found items. Claim
// requests are stored on the item row.
type LostFoundRepository struct {
	db *sql.DB
}

func NewLostFoundRepository(db *sql.DB) *LostFoundRepository {
	return &LostFoundRepository{db: db}
}

func (r *LostFoundRepository) List(ctx context.Context, filter types.ItemFilter) ([]types.LostFoundItem, error) {
	var where whereClause
	if filter.Status != "" {
		where.eq("status", filter.Status)
	}
	if filter.Hostel != "" {
		where.eq("hostel", filter.Hostel)
	}
	if filter.Search != "" {
		where.search(filter.Search, "item_name", "description", "location")
	}

	query := `SELECT ` + itemColumns + ` FROM lost_found_items` + where.String() + ` ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]types.LostFoundItem, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *LostFoundRepository) Get(ctx context.Context, id string) (types.LostFoundItem, error) {
	const query = `SELECT ` + itemColumns + ` FROM lost_found_items WHERE id = $1`
	return scanItem(r.db.QueryRowContext(ctx, query, id))
}

func (r *LostFoundRepository) Create(ctx context.Context, item types.LostFoundItem) (types.LostFoundItem, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	claimsJSON, err := json.Marshal(nonNilClaims(item.ClaimRequests))
	if err != nil {
		return types.LostFoundItem{}, err
	}

	const query = `
		INSERT INTO lost_found_items (id, item_name, description, location, status, reporter_id, images, hostel,
			contact_info, claim_requests, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err = r.db.ExecContext(
		ctx,
		query,
		item.ID,
		item.ItemName,
		item.Description,
		item.Location,
		item.Status,
		item.ReporterID,
		pq.Array(nonNilStrings(item.Images)),
		item.Hostel,
		item.ContactInfo,
		string(claimsJSON),
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		return types.LostFoundItem{}, err
	}
	return item, nil
}

// Mutate locks the item row, applies fn and writes the result back in the
// same transaction.
func (r *LostFoundRepository) Mutate(ctx context.Context, id string, fn func(item *types.LostFoundItem) error) (types.LostFoundItem, error) {
	var item types.LostFoundItem
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		const query = `SELECT ` + itemColumns + ` FROM lost_found_items WHERE id = $1 FOR UPDATE`
		locked, err := scanItem(tx.QueryRowContext(ctx, query, id))
		if err != nil {
			return err
		}
		if err := fn(&locked); err != nil {
			return err
		}
		item = locked
		return updateItem(ctx, tx, locked)
	})
	if err != nil {
		return types.LostFoundItem{}, err
	}
	return item, nil
}

func (r *LostFoundRepository) Delete(ctx context.Context, id string) error {
	return execAffected(ctx, r.db, `DELETE FROM lost_found_items WHERE id = $1`, id)
}

func updateItem(ctx context.Context, tx *sql.Tx, item types.LostFoundItem) error {
	claimsJSON, err := json.Marshal(nonNilClaims(item.ClaimRequests))
	if err != nil {
		return err
	}

	const query = `
		UPDATE lost_found_items
		SET item_name = $1,
			description = $2,
			location = $3,
			status = $4,
			contact_info = $5,
			claim_requests = $6,
			updated_at = $7
		WHERE id = $8`
	result, err := tx.ExecContext(
		ctx,
		query,
		item.ItemName,
		item.Description,
		item.Location,
		item.Status,
		item.ContactInfo,
		string(claimsJSON),
		item.UpdatedAt,
		item.ID,
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

func scanItem(row rowScanner) (types.LostFoundItem, error) {
	var item types.LostFoundItem
	var claimsJSON []byte
	err := row.Scan(
		&item.ID,
		&item.ItemName,
		&item.Description,
		&item.Location,
		&item.Status,
		&item.ReporterID,
		pq.Array(&item.Images),
		&item.Hostel,
		&item.ContactInfo,
		&claimsJSON,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.LostFoundItem{}, ErrNotFound
		}
		return types.LostFoundItem{}, err
	}
	if err := json.Unmarshal(claimsJSON, &item.ClaimRequests); err != nil {
		return types.LostFoundItem{}, err
	}
	item.Images = nonNilStrings(item.Images)
	item.ClaimRequests = nonNilClaims(item.ClaimRequests)
	return item, nil
}

func nonNilClaims(values []types.ClaimRequest) []types.ClaimRequest {
	if values == nil {
		return []types.ClaimRequest{}
	}
	return values
}
