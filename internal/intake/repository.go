package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrItemNotFound indicates the unmapped item id does not exist.
var ErrItemNotFound = errors.New("intake: unmapped item not found")

// Repository persists unmapped items in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores an unmapped item for triage.
func (r *Repository) Insert(ctx context.Context, item UnmappedItem) error {
	props, err := json.Marshal(item.Properties)
	if err != nil {
		return fmt.Errorf("intake: marshal properties: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO unmapped_items
			(ts, order_id, line_id, product_name, properties, suggested_sku, error_type, resolution)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, item.Timestamp, item.OrderID, item.LineID, item.ProductName, props,
		item.SuggestedSKU, item.ErrorType, item.Resolution)
	if err != nil {
		return fmt.Errorf("intake: insert unmapped item: %w", err)
	}
	return nil
}

// ListPending returns unresolved items, newest first.
func (r *Repository) ListPending(ctx context.Context, limit int) ([]UnmappedItem, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, ts, order_id, line_id, product_name, properties, suggested_sku, error_type, resolution
		FROM unmapped_items
		WHERE resolution = 'pending'
		ORDER BY ts DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("intake: list unmapped items: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// Resolve marks an item as handled by an operator.
func (r *Repository) Resolve(ctx context.Context, id int64, resolution string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE unmapped_items SET resolution = $2, resolved_at = NOW()
		WHERE id = $1
	`, id, resolution)
	if err != nil {
		return fmt.Errorf("intake: resolve unmapped item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// DeleteResolvedBefore removes resolved items older than the cutoff.
// Pending items are never deleted.
func (r *Repository) DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM unmapped_items
		WHERE resolution <> 'pending' AND ts < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("intake: delete resolved items: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanItems(rows pgx.Rows) ([]UnmappedItem, error) {
	var items []UnmappedItem
	for rows.Next() {
		var item UnmappedItem
		var props []byte
		if err := rows.Scan(&item.ID, &item.Timestamp, &item.OrderID, &item.LineID,
			&item.ProductName, &props, &item.SuggestedSKU, &item.ErrorType, &item.Resolution); err != nil {
			return nil, fmt.Errorf("intake: scan unmapped item: %w", err)
		}
		if len(props) > 0 {
			if err := json.Unmarshal(props, &item.Properties); err != nil {
				return nil, fmt.Errorf("intake: unmarshal properties: %w", err)
			}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
