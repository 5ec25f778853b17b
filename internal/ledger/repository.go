package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/timosh-design/blankstock/internal/shared"
)

// Repository persists movements and balances in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations used by the service.
// InsertMovement relies on the unique index over dedup_key: a concurrent
// duplicate insert surfaces as ErrDuplicateMovement, which makes the
// existence check and the append atomic at the storage layer.
type TxRepository interface {
	InsertMovement(ctx context.Context, m Movement) error
	GetBalanceForUpdate(ctx context.Context, sku string) (Balance, error)
	UpsertBalance(ctx context.Context, b Balance) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return storageErr(err)
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return storageErr(tx.Commit(ctx))
}

// storageErr tags transient connectivity and resource failures so the
// intake boundary can retry them; everything else passes through as-is.
func storageErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 53 insufficient resources, 57 operator intervention,
		// 58 system error.
		if strings.HasPrefix(pgErr.Code, "53") || strings.HasPrefix(pgErr.Code, "57") || strings.HasPrefix(pgErr.Code, "58") {
			return fmt.Errorf("postgres %s: %w", pgErr.Code, shared.ErrStorageUnavailable)
		}
		return err
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return fmt.Errorf("%v: %w", err, shared.ErrStorageUnavailable)
	}
	return err
}

// Exists reports whether a movement with the dedup key was already appended.
func (r *Repository) Exists(ctx context.Context, dedupKey string) (bool, error) {
	var found bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM movements WHERE dedup_key=$1)`, dedupKey).Scan(&found)
	if err != nil {
		return false, storageErr(err)
	}
	return found, nil
}

const movementColumns = `id, ts, kind, source_type, source_id, sku, qty, balance_after, actor, note, dedup_key`

// ListBySKU returns movements for one SKU ordered newest-first.
func (r *Repository) ListBySKU(ctx context.Context, sku string, limit int) ([]Movement, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT `+movementColumns+` FROM movements WHERE sku=$1 ORDER BY ts DESC, id DESC LIMIT $2`, sku, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMovements(rows)
}

// ListSince returns movements at or after the cutoff, oldest-first.
func (r *Repository) ListSince(ctx context.Context, since time.Time) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+movementColumns+` FROM movements WHERE ts >= $1 ORDER BY ts ASC, id ASC`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMovements(rows)
}

// ListAll returns the full ledger oldest-first, for projection rebuilds.
func (r *Repository) ListAll(ctx context.Context) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+movementColumns+` FROM movements ORDER BY ts ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMovements(rows)
}

// GetBalance reads one balance outside any transaction (snapshot read).
func (r *Repository) GetBalance(ctx context.Context, sku string) (Balance, error) {
	return scanBalance(r.pool.QueryRow(ctx, `SELECT sku, on_hand, reserved, available, last_receipt_date, last_order_date, avg_daily_usage, updated_at
FROM balances WHERE sku=$1`, sku), sku)
}

// ListBalances returns all balance rows.
func (r *Repository) ListBalances(ctx context.Context) ([]Balance, error) {
	rows, err := r.pool.Query(ctx, `SELECT sku, on_hand, reserved, available, last_receipt_date, last_order_date, avg_daily_usage, updated_at
FROM balances ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	balances := []Balance{}
	for rows.Next() {
		var b Balance
		var lastReceipt, lastOrder *time.Time
		if err := rows.Scan(&b.SKU, &b.OnHand, &b.Reserved, &b.Available, &lastReceipt, &lastOrder, &b.AvgDailyUsage, &b.UpdatedAt); err != nil {
			return nil, err
		}
		if lastReceipt != nil {
			b.LastReceiptDate = *lastReceipt
		}
		if lastOrder != nil {
			b.LastOrderDate = *lastOrder
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO movements (id, ts, kind, source_type, source_id, sku, qty, balance_after, actor, note, dedup_key)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		m.ID, m.Timestamp, string(m.Kind), string(m.SourceType), m.SourceID, m.SKU, m.Qty, m.BalanceAfter, m.Actor, m.Note, m.DedupKey)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateMovement
		}
		return storageErr(err)
	}
	return nil
}

func (r *txRepository) GetBalanceForUpdate(ctx context.Context, sku string) (Balance, error) {
	return scanBalance(r.tx.QueryRow(ctx, `SELECT sku, on_hand, reserved, available, last_receipt_date, last_order_date, avg_daily_usage, updated_at
FROM balances WHERE sku=$1 FOR UPDATE`, sku), sku)
}

func (r *txRepository) UpsertBalance(ctx context.Context, b Balance) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO balances (sku, on_hand, reserved, available, last_receipt_date, last_order_date, avg_daily_usage, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())
ON CONFLICT (sku) DO UPDATE SET on_hand=EXCLUDED.on_hand, reserved=EXCLUDED.reserved, available=EXCLUDED.available,
last_receipt_date=EXCLUDED.last_receipt_date, last_order_date=EXCLUDED.last_order_date, avg_daily_usage=EXCLUDED.avg_daily_usage, updated_at=NOW()`,
		b.SKU, b.OnHand, b.Reserved, b.Available, nullTime(b.LastReceiptDate), nullTime(b.LastOrderDate), b.AvgDailyUsage)
	return err
}

func scanMovements(rows pgx.Rows) ([]Movement, error) {
	movements := []Movement{}
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.Timestamp, &m.Kind, &m.SourceType, &m.SourceID, &m.SKU, &m.Qty, &m.BalanceAfter, &m.Actor, &m.Note, &m.DedupKey); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func scanBalance(row pgx.Row, sku string) (Balance, error) {
	var b Balance
	var lastReceipt, lastOrder *time.Time
	err := row.Scan(&b.SKU, &b.OnHand, &b.Reserved, &b.Available, &lastReceipt, &lastOrder, &b.AvgDailyUsage, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Balance{SKU: sku}, ErrBalanceNotFound
		}
		return Balance{}, err
	}
	if lastReceipt != nil {
		b.LastReceiptDate = *lastReceipt
	}
	if lastOrder != nil {
		b.LastOrderDate = *lastOrder
	}
	return b, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
