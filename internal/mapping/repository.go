package mapping

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrRuleNotFound indicates an unknown rule id.
var ErrRuleNotFound = errors.New("mapping: rule not found")

// Repository persists mapping rules in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const ruleColumns = `id, product_name, size_property, color_property, sku, qty_per_unit, priority, active, created_at`

// List returns all rules in first-seen order; RowOrder is assigned from
// that ordering so resolver tie-breaks stay stable across reloads.
func (r *Repository) List(ctx context.Context) ([]Rule, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+ruleColumns+` FROM mapping_rules ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

// ListActive returns only active rules, in first-seen order.
func (r *Repository) ListActive(ctx context.Context) ([]Rule, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+ruleColumns+` FROM mapping_rules WHERE active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

// Insert stores a new rule and returns it with its assigned id.
func (r *Repository) Insert(ctx context.Context, rule Rule) (Rule, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO mapping_rules (product_name, size_property, color_property, sku, qty_per_unit, priority, active, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW()) RETURNING id, created_at`,
		rule.ProductName, rule.SizeProperty, rule.ColorProperty, rule.SKU, rule.QtyPerUnit, rule.Priority, rule.Active).
		Scan(&rule.ID, &rule.CreatedAt)
	if err != nil {
		return Rule{}, err
	}
	return rule, nil
}

// Update edits an existing rule in place.
func (r *Repository) Update(ctx context.Context, rule Rule) error {
	tag, err := r.pool.Exec(ctx, `UPDATE mapping_rules SET product_name=$2, size_property=$3, color_property=$4, sku=$5, qty_per_unit=$6, priority=$7, active=$8 WHERE id=$1`,
		rule.ID, rule.ProductName, rule.SizeProperty, rule.ColorProperty, rule.SKU, rule.QtyPerUnit, rule.Priority, rule.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// SetActive toggles a rule without losing its row order.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE mapping_rules SET active=$2 WHERE id=$1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func scanRules(rows pgx.Rows) ([]Rule, error) {
	rules := []Rule{}
	order := 0
	for rows.Next() {
		var rule Rule
		if err := rows.Scan(&rule.ID, &rule.ProductName, &rule.SizeProperty, &rule.ColorProperty, &rule.SKU, &rule.QtyPerUnit, &rule.Priority, &rule.Active, &rule.CreatedAt); err != nil {
			return nil, err
		}
		rule.RowOrder = order
		order++
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}
