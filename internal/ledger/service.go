package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/timosh-design/blankstock/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Exists(ctx context.Context, dedupKey string) (bool, error)
	ListBySKU(ctx context.Context, sku string, limit int) ([]Movement, error)
	ListSince(ctx context.Context, since time.Time) ([]Movement, error)
	ListAll(ctx context.Context) ([]Movement, error)
	GetBalance(ctx context.Context, sku string) (Balance, error)
	ListBalances(ctx context.Context) ([]Balance, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Observer receives ledger events for metrics. All methods must be
// cheap and non-blocking.
type Observer interface {
	MovementRecorded(kind string)
	ShortfallClamped(sku string, shortfall int)
}

// Service owns the movement ledger and its balance projection. Writers
// for a given SKU are serialised through a keyed mutex, so the
// read-modify-write on the projection never interleaves.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	locks    *shared.KeyedMutex
	logger   *slog.Logger
	observer Observer
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger, observer Observer) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		audit:    audit,
		locks:    shared.NewKeyedMutex(),
		logger:   logger,
		observer: observer,
	}
}

// PostInput describes one movement to append.
type PostInput struct {
	SKU        string
	Qty        int // signed: positive inbound, negative outbound
	Kind       Kind
	SourceType SourceType
	SourceID   string
	Actor      string
	Note       string
	Timestamp  time.Time
}

// PostResult reports the appended movement, the updated balance and any
// shortfall absorbed by the zero clamp.
type PostResult struct {
	Movement  Movement
	Balance   Balance
	Shortfall int
}

// Post appends a movement and folds it into the balance projection in a
// single transaction. The projection never advances before the movement
// is durable. An outbound quantity larger than on-hand is clamped so the
// balance lands on zero; the shortfall is logged and reported, never
// persisted as a negative balance.
func (s *Service) Post(ctx context.Context, in PostInput) (PostResult, error) {
	if in.SKU == "" {
		return PostResult{}, ErrInvalidSKU
	}
	if in.Qty == 0 {
		return PostResult{}, ErrInvalidQuantity
	}
	switch in.Kind {
	case KindReceipt:
		if in.Qty < 0 {
			return PostResult{}, fmt.Errorf("%w: receipt must be positive", ErrInvalidQuantity)
		}
	case KindOrder:
		if in.Qty > 0 {
			return PostResult{}, fmt.Errorf("%w: order consumption must be negative", ErrInvalidQuantity)
		}
	case KindCorrection:
	default:
		return PostResult{}, fmt.Errorf("ledger: unknown movement kind %q", in.Kind)
	}
	ts := in.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	// The dedup key fingerprints the requested quantity, before any clamp,
	// so a redelivered webhook hashes identically regardless of the balance
	// it happens to meet. It hashes the caller's timestamp, not the
	// substituted wall clock: an input with no timestamp must produce the
	// same key no matter when it is processed.
	dedupKey := ComputeDedupKey(in.SourceID, in.SKU, in.Qty, in.Kind, in.Timestamp)

	unlock := s.locks.Lock(in.SKU)
	defer unlock()

	var result PostResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		balance, err := tx.GetBalanceForUpdate(ctx, in.SKU)
		if err != nil && !errors.Is(err, ErrBalanceNotFound) {
			return err
		}
		if errors.Is(err, ErrBalanceNotFound) {
			balance = Balance{SKU: in.SKU}
		}

		qty := in.Qty
		newOnHand := balance.OnHand + qty
		if newOnHand < 0 {
			result.Shortfall = -newOnHand
			qty = -balance.OnHand
			newOnHand = 0
		}

		movement := Movement{
			ID:           uuid.New(),
			Timestamp:    ts,
			Kind:         in.Kind,
			SourceType:   in.SourceType,
			SourceID:     in.SourceID,
			SKU:          in.SKU,
			Qty:          qty,
			BalanceAfter: newOnHand,
			Actor:        in.Actor,
			Note:         in.Note,
			DedupKey:     dedupKey,
		}
		if err := tx.InsertMovement(ctx, movement); err != nil {
			return err
		}

		balance.OnHand = newOnHand
		balance.Available = balance.OnHand - balance.Reserved
		switch in.Kind {
		case KindReceipt:
			balance.LastReceiptDate = ts
		case KindOrder:
			balance.LastOrderDate = ts
		}
		balance.UpdatedAt = time.Now().UTC()
		if err := tx.UpsertBalance(ctx, balance); err != nil {
			return err
		}

		result.Movement = movement
		result.Balance = balance
		return nil
	})
	if err != nil {
		return PostResult{}, err
	}

	if result.Shortfall > 0 {
		s.logger.Warn("stock shortfall clamped to zero",
			slog.String("sku", in.SKU),
			slog.Int("requested", -in.Qty),
			slog.Int("shortfall", result.Shortfall),
			slog.String("source_id", in.SourceID))
		if s.observer != nil {
			s.observer.ShortfallClamped(in.SKU, result.Shortfall)
		}
	}
	if s.observer != nil {
		s.observer.MovementRecorded(string(in.Kind))
	}
	if s.audit != nil && in.SourceType != SourceWebhook {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:    in.Actor,
			Action:   fmt.Sprintf("ledger:%s", in.Kind),
			Entity:   "movement",
			EntityID: result.Movement.ID.String(),
			Meta: map[string]any{
				"sku":           in.SKU,
				"qty":           result.Movement.Qty,
				"balance_after": result.Movement.BalanceAfter,
				"note":          in.Note,
			},
		})
	}
	return result, nil
}

// Exists reports whether a dedup key was already appended.
func (s *Service) Exists(ctx context.Context, dedupKey string) (bool, error) {
	return s.repo.Exists(ctx, dedupKey)
}

// ListBySKU returns movements for one SKU ordered newest-first.
func (s *Service) ListBySKU(ctx context.Context, sku string, limit int) ([]Movement, error) {
	if sku == "" {
		return nil, ErrInvalidSKU
	}
	return s.repo.ListBySKU(ctx, sku, limit)
}

// GetBalance returns the current balance, a zeroed record when the SKU
// has no movements yet. Reads are snapshot reads and never block writers.
func (s *Service) GetBalance(ctx context.Context, sku string) (Balance, error) {
	if sku == "" {
		return Balance{}, ErrInvalidSKU
	}
	balance, err := s.repo.GetBalance(ctx, sku)
	if errors.Is(err, ErrBalanceNotFound) {
		return Balance{SKU: sku}, nil
	}
	return balance, err
}

// ListBalances returns all balance projections.
func (s *Service) ListBalances(ctx context.Context) ([]Balance, error) {
	return s.repo.ListBalances(ctx)
}
