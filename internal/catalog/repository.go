package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists the SKU catalog in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) List(ctx context.Context, onlyActive bool) ([]SKU, error) {
	if r == nil {
		return nil, errors.New("catalog repository not initialised")
	}
	query := `SELECT code, blank_type, size_mm, color, name, min_level, target_level, active, created_at, updated_at
FROM catalog_skus`
	if onlyActive {
		query += ` WHERE active`
	}
	query += ` ORDER BY code`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	skus := []SKU{}
	for rows.Next() {
		var s SKU
		if err := rows.Scan(&s.Code, &s.Type, &s.SizeMM, &s.Color, &s.Name, &s.MinLevel, &s.TargetLevel, &s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		skus = append(skus, s)
	}
	return skus, rows.Err()
}

func (r *Repository) Get(ctx context.Context, code string) (SKU, error) {
	var s SKU
	err := r.pool.QueryRow(ctx, `SELECT code, blank_type, size_mm, color, name, min_level, target_level, active, created_at, updated_at
FROM catalog_skus WHERE code=$1`, code).
		Scan(&s.Code, &s.Type, &s.SizeMM, &s.Color, &s.Name, &s.MinLevel, &s.TargetLevel, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SKU{}, ErrNotFound
		}
		return SKU{}, err
	}
	return s, nil
}

func (r *Repository) Insert(ctx context.Context, s SKU) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO catalog_skus (code, blank_type, size_mm, color, name, min_level, target_level, active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW(),NOW())`, s.Code, string(s.Type), s.SizeMM, string(s.Color), s.Name, s.MinLevel, s.TargetLevel, s.Active)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrCodeTaken
		}
		return err
	}
	return nil
}

func (r *Repository) UpdateLevels(ctx context.Context, code string, minLevel, targetLevel int) error {
	tag, err := r.pool.Exec(ctx, `UPDATE catalog_skus SET min_level=$2, target_level=$3, updated_at=NOW() WHERE code=$1`, code, minLevel, targetLevel)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) SetActive(ctx context.Context, code string, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE catalog_skus SET active=$2, updated_at=NOW() WHERE code=$1`, code, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
