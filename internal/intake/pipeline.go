package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/timosh-design/blankstock/internal/ledger"
	"github.com/timosh-design/blankstock/internal/mapping"
	"github.com/timosh-design/blankstock/internal/shared"
)

// RulesSource supplies the active mapping rules, typically the TTL cache.
type RulesSource interface {
	Rules(ctx context.Context) ([]mapping.Rule, error)
}

// LedgerPort is the slice of the ledger service the pipeline needs.
type LedgerPort interface {
	Exists(ctx context.Context, dedupKey string) (bool, error)
	Post(ctx context.Context, in ledger.PostInput) (ledger.PostResult, error)
}

// UnmappedStore persists lines that matched no rule, for operator triage.
type UnmappedStore interface {
	Insert(ctx context.Context, item UnmappedItem) error
}

// Observer receives intake events for metrics.
type Observer interface {
	LineProcessed(status string)
}

// Pipeline turns order events into ledger movements. Each line is
// resolved, deduplicated and posted independently: a failure on one line
// never rolls back movements already committed for earlier lines.
type Pipeline struct {
	rules    RulesSource
	ledger   LedgerPort
	unmapped UnmappedStore
	logger   *slog.Logger
	observer Observer
	retry    shared.RetryPolicy
}

// NewPipeline builds Pipeline.
func NewPipeline(rules RulesSource, ledgerPort LedgerPort, unmapped UnmappedStore, logger *slog.Logger, observer Observer) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		rules:    rules,
		ledger:   ledgerPort,
		unmapped: unmapped,
		logger:   logger,
		observer: observer,
		retry:    shared.DefaultRetryPolicy(),
	}
}

// ProcessOrder runs the intake pipeline over every line of the event.
// The returned error is non-nil only for order-level failures (rule
// store unreachable, cancellation); per-line failures are isolated into
// the line results. On cancellation, lines already committed stand and
// the rest are safe to retry from scratch thanks to dedup keys.
func (p *Pipeline) ProcessOrder(ctx context.Context, event OrderEvent) (Result, error) {
	result := Result{OrderID: event.OrderID}
	if event.OrderID == "" {
		return result, errors.New("intake: order id required")
	}

	var rules []mapping.Rule
	err := shared.Retry(ctx, p.retry, func(ctx context.Context) error {
		var err error
		rules, err = p.rules.Rules(ctx)
		return err
	})
	if err != nil {
		return result, fmt.Errorf("intake: load mapping rules: %w", err)
	}

	storageDown := false
	for _, line := range event.Lines {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		lineResult := p.processLine(ctx, event, line, rules)
		result.Lines = append(result.Lines, lineResult)
		if lineResult.retryable {
			storageDown = true
		}
		if p.observer != nil {
			p.observer.LineProcessed(string(lineResult.Status))
		}
	}
	if storageDown {
		// Committed lines stand; the caller should trigger a redelivery
		// and the dedup keys will sort out the rest.
		return result, fmt.Errorf("intake: order %s partially deferred: %w", event.OrderID, shared.ErrStorageUnavailable)
	}

	p.logger.Info("order processed",
		slog.String("order_id", event.OrderID),
		slog.Int("lines", len(event.Lines)),
		slog.Int("movements", result.Count(StatusProcessed)+result.Count(StatusFallback)),
		slog.Int("duplicates", result.Count(StatusDuplicate)),
		slog.Int("unmapped", result.Count(StatusUnmapped)),
		slog.Int("skipped", result.Count(StatusSkipped)))
	return result, nil
}

func (p *Pipeline) processLine(ctx context.Context, event OrderEvent, line OrderLine, rules []mapping.Rule) LineResult {
	result := LineResult{LineID: line.LineID}

	if line.Quantity <= 0 {
		result.Status = StatusFailed
		result.Error = "quantity must be positive"
		return result
	}
	if !isAddressTag(line.ProductName) {
		result.Status = StatusSkipped
		p.logger.Debug("line skipped, not an address tag",
			slog.String("order_id", event.OrderID),
			slog.String("product_name", line.ProductName))
		return result
	}

	rule, err := mapping.Resolve(rules, mapping.Line{ProductName: line.ProductName, Properties: line.Properties})
	fallback := false
	if errors.Is(err, mapping.ErrNoMatch) {
		// Degraded name-only match. This can mis-attribute a size/color
		// variant, so it is logged distinctly and never silent.
		rule, err = mapping.ResolveByName(rules, line.ProductName)
		if err == nil {
			fallback = true
			p.logger.Warn("name-only mapping fallback",
				slog.String("order_id", event.OrderID),
				slog.String("line_id", line.LineID),
				slog.String("product_name", line.ProductName),
				slog.String("sku", rule.SKU),
				slog.Int("priority", rule.Priority))
		}
	}
	if err != nil {
		return p.recordUnmapped(ctx, event, line)
	}

	qty := -line.Quantity * rule.QtyPerUnit
	sourceID := fmt.Sprintf("%s_%s", event.OrderID, line.LineID)
	dedupKey := ledger.ComputeDedupKey(sourceID, rule.SKU, qty, ledger.KindOrder, event.Timestamp)

	exists, err := p.ledger.Exists(ctx, dedupKey)
	if err != nil {
		result.Status = StatusFailed
		result.Error = err.Error()
		result.retryable = errors.Is(err, shared.ErrStorageUnavailable)
		return result
	}
	if exists {
		p.logger.Warn("duplicate movement skipped",
			slog.String("order_id", event.OrderID),
			slog.String("line_id", line.LineID),
			slog.String("dedup_key", dedupKey))
		result.Status = StatusDuplicate
		result.SKU = rule.SKU
		return result
	}

	var posted ledger.PostResult
	err = shared.Retry(ctx, p.retry, func(ctx context.Context) error {
		var err error
		posted, err = p.ledger.Post(ctx, ledger.PostInput{
			SKU:        rule.SKU,
			Qty:        qty,
			Kind:       ledger.KindOrder,
			SourceType: ledger.SourceWebhook,
			SourceID:   sourceID,
			Actor:      fmt.Sprintf("order #%s", event.OrderID),
			Note:       fmt.Sprintf("Order item: %s x%d", line.ProductName, line.Quantity),
			Timestamp:  event.Timestamp,
		})
		return err
	})
	if errors.Is(err, ledger.ErrDuplicateMovement) {
		// Lost the race against a concurrent delivery of the same webhook;
		// the storage-level insert-if-absent makes this outcome safe.
		result.Status = StatusDuplicate
		result.SKU = rule.SKU
		return result
	}
	if err != nil {
		result.Status = StatusFailed
		result.Error = err.Error()
		result.retryable = errors.Is(err, shared.ErrStorageUnavailable)
		return result
	}

	if fallback {
		result.Status = StatusFallback
	} else {
		result.Status = StatusProcessed
	}
	result.SKU = rule.SKU
	result.Qty = posted.Movement.Qty
	result.BalanceAfter = posted.Movement.BalanceAfter
	result.Shortfall = posted.Shortfall
	return result
}

func (p *Pipeline) recordUnmapped(ctx context.Context, event OrderEvent, line OrderLine) LineResult {
	item := UnmappedItem{
		Timestamp:    time.Now().UTC(),
		OrderID:      event.OrderID,
		LineID:       line.LineID,
		ProductName:  line.ProductName,
		Properties:   line.Properties,
		SuggestedSKU: suggestSKU(line),
		ErrorType:    "no_mapping",
		Resolution:   "pending",
	}
	if p.unmapped != nil {
		if err := p.unmapped.Insert(ctx, item); err != nil {
			p.logger.Error("record unmapped item",
				slog.String("order_id", event.OrderID),
				slog.String("line_id", line.LineID),
				slog.Any("error", err))
		}
	}
	p.logger.Warn("no mapping for line",
		slog.String("order_id", event.OrderID),
		slog.String("line_id", line.LineID),
		slog.String("product_name", line.ProductName),
		slog.String("suggested_sku", item.SuggestedSKU))
	return LineResult{LineID: line.LineID, Status: StatusUnmapped, SKU: item.SuggestedSKU}
}
