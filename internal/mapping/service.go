package mapping

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/timosh-design/blankstock/internal/shared"
)

// RepositoryPort abstracts rule persistence for the service.
type RepositoryPort interface {
	List(ctx context.Context) ([]Rule, error)
	ListActive(ctx context.Context) ([]Rule, error)
	Insert(ctx context.Context, rule Rule) (Rule, error)
	Update(ctx context.Context, rule Rule) error
	SetActive(ctx context.Context, id int64, active bool) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates operator edits to the rule store and keeps the
// cache coherent with them.
type Service struct {
	repo     RepositoryPort
	cache    *Cache
	audit    AuditPort
	validate *validator.Validate
}

// NewService builds Service.
func NewService(repo RepositoryPort, cache *Cache, audit AuditPort) *Service {
	return &Service{repo: repo, cache: cache, audit: audit, validate: validator.New()}
}

// RuleInput describes an operator-submitted rule.
type RuleInput struct {
	ProductName   string `json:"product_name" validate:"required"`
	SizeProperty  string `json:"size_property"`
	ColorProperty string `json:"color_property"`
	SKU           string `json:"sku" validate:"required"`
	QtyPerUnit    int    `json:"qty_per_unit" validate:"gte=1"`
	Priority      int    `json:"priority" validate:"gte=1,lte=100"`
	Active        bool   `json:"active"`
	Actor         string `json:"-"`
}

// Create stores a new rule and invalidates the cache.
func (s *Service) Create(ctx context.Context, input RuleInput) (Rule, error) {
	if err := s.validate.Struct(input); err != nil {
		return Rule{}, fmt.Errorf("mapping: invalid rule: %w", err)
	}
	rule, err := s.repo.Insert(ctx, Rule{
		ProductName:   input.ProductName,
		SizeProperty:  input.SizeProperty,
		ColorProperty: input.ColorProperty,
		SKU:           input.SKU,
		QtyPerUnit:    input.QtyPerUnit,
		Priority:      input.Priority,
		Active:        input.Active,
	})
	if err != nil {
		return Rule{}, err
	}
	_ = s.cache.Invalidate(ctx)
	s.recordAudit(ctx, input.Actor, "mapping:create", rule)
	return rule, nil
}

// Update edits a rule and invalidates the cache.
func (s *Service) Update(ctx context.Context, id int64, input RuleInput) (Rule, error) {
	if err := s.validate.Struct(input); err != nil {
		return Rule{}, fmt.Errorf("mapping: invalid rule: %w", err)
	}
	rule := Rule{
		ID:            id,
		ProductName:   input.ProductName,
		SizeProperty:  input.SizeProperty,
		ColorProperty: input.ColorProperty,
		SKU:           input.SKU,
		QtyPerUnit:    input.QtyPerUnit,
		Priority:      input.Priority,
		Active:        input.Active,
	}
	if err := s.repo.Update(ctx, rule); err != nil {
		return Rule{}, err
	}
	_ = s.cache.Invalidate(ctx)
	s.recordAudit(ctx, input.Actor, "mapping:update", rule)
	return rule, nil
}

// Deactivate retires a rule without deleting it.
func (s *Service) Deactivate(ctx context.Context, id int64, actor string) error {
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return err
	}
	_ = s.cache.Invalidate(ctx)
	s.recordAudit(ctx, actor, "mapping:deactivate", Rule{ID: id})
	return nil
}

// List returns all rules for the operator surface.
func (s *Service) List(ctx context.Context) ([]Rule, error) {
	return s.repo.List(ctx)
}

func (s *Service) recordAudit(ctx context.Context, actor, action string, rule Rule) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   "mapping_rule",
		EntityID: fmt.Sprintf("%d", rule.ID),
		Meta: map[string]any{
			"product_name": rule.ProductName,
			"sku":          rule.SKU,
			"priority":     rule.Priority,
		},
	})
}
