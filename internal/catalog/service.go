package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/timosh-design/blankstock/internal/shared"
)

// RepositoryPort abstracts catalog persistence for the service.
type RepositoryPort interface {
	List(ctx context.Context, onlyActive bool) ([]SKU, error)
	Get(ctx context.Context, code string) (SKU, error)
	Insert(ctx context.Context, s SKU) error
	UpdateLevels(ctx context.Context, code string, minLevel, targetLevel int) error
	SetActive(ctx context.Context, code string, active bool) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates catalog operations.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	validate *validator.Validate
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, validate: validator.New()}
}

// CreateInput describes a new SKU.
type CreateInput struct {
	Type        BlankType  `validate:"required"`
	SizeMM      int        `validate:"required,gt=0"`
	Color       BlankColor `validate:"required"`
	Name        string     `validate:"required"`
	MinLevel    int        `validate:"required,gt=0"`
	TargetLevel int        `validate:"required,gt=0"`
	Actor       string     `validate:"required"`
}

// Create registers a new SKU with its control levels.
func (s *Service) Create(ctx context.Context, input CreateInput) (SKU, error) {
	if err := s.validate.Struct(input); err != nil {
		return SKU{}, fmt.Errorf("catalog: invalid input: %w", err)
	}
	if !validTypes[input.Type] {
		return SKU{}, fmt.Errorf("%w: unknown type %q", ErrInvalidCode, input.Type)
	}
	if !validColors[input.Color] {
		return SKU{}, fmt.Errorf("%w: unknown color %q", ErrInvalidCode, input.Color)
	}
	if err := ValidateLevels(input.MinLevel, input.TargetLevel); err != nil {
		return SKU{}, err
	}
	sku := SKU{
		Code:        BuildCode(input.Type, input.SizeMM, input.Color),
		Type:        input.Type,
		SizeMM:      input.SizeMM,
		Color:       input.Color,
		Name:        input.Name,
		MinLevel:    input.MinLevel,
		TargetLevel: input.TargetLevel,
		Active:      true,
	}
	if err := s.repo.Insert(ctx, sku); err != nil {
		return SKU{}, err
	}
	s.recordAudit(ctx, input.Actor, "catalog:create", sku.Code, map[string]any{
		"min_level":    sku.MinLevel,
		"target_level": sku.TargetLevel,
	})
	return sku, nil
}

// UpdateLevels edits the control levels of an existing SKU.
func (s *Service) UpdateLevels(ctx context.Context, code string, minLevel, targetLevel int, actor string) (SKU, error) {
	if err := ValidateLevels(minLevel, targetLevel); err != nil {
		return SKU{}, err
	}
	prev, err := s.repo.Get(ctx, code)
	if err != nil {
		return SKU{}, err
	}
	if err := s.repo.UpdateLevels(ctx, code, minLevel, targetLevel); err != nil {
		return SKU{}, err
	}
	s.recordAudit(ctx, actor, "catalog:update_levels", code, map[string]any{
		"old_min":    prev.MinLevel,
		"old_target": prev.TargetLevel,
		"new_min":    minLevel,
		"new_target": targetLevel,
	})
	prev.MinLevel = minLevel
	prev.TargetLevel = targetLevel
	return prev, nil
}

// Deactivate retires a SKU without deleting it.
func (s *Service) Deactivate(ctx context.Context, code, actor string) error {
	if err := s.repo.SetActive(ctx, code, false); err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "catalog:deactivate", code, nil)
	return nil
}

// List returns catalog entries, optionally only the active ones.
func (s *Service) List(ctx context.Context, onlyActive bool) ([]SKU, error) {
	return s.repo.List(ctx, onlyActive)
}

// ListActive returns only active catalog entries.
func (s *Service) ListActive(ctx context.Context) ([]SKU, error) {
	return s.repo.List(ctx, true)
}

// Get fetches a single SKU by code.
func (s *Service) Get(ctx context.Context, code string) (SKU, error) {
	if code == "" {
		return SKU{}, errors.New("catalog: code required")
	}
	return s.repo.Get(ctx, code)
}

func (s *Service) recordAudit(ctx context.Context, actor, action, code string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   "catalog_sku",
		EntityID: code,
		Meta:     meta,
	})
}
