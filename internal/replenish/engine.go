package replenish

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/timosh-design/blankstock/internal/catalog"
	"github.com/timosh-design/blankstock/internal/ledger"
)

// CatalogPort supplies active SKUs with their control levels.
type CatalogPort interface {
	ListActive(ctx context.Context) ([]catalog.SKU, error)
}

// BalancePort supplies current balances.
type BalancePort interface {
	ListBalances(ctx context.Context) ([]ledger.Balance, error)
}

// Engine computes replenishment suggestions from control levels and
// current balances. The computation itself is pure; Report only gathers
// inputs and delegates to Compute.
type Engine struct {
	catalog  CatalogPort
	balances BalancePort
	params   Params
}

// NewEngine builds Engine.
func NewEngine(catalogPort CatalogPort, balances BalancePort, params Params) *Engine {
	return &Engine{catalog: catalogPort, balances: balances, params: params.normalize()}
}

// Report builds a full replenishment report for all active SKUs.
func (e *Engine) Report(ctx context.Context) (Report, error) {
	skus, err := e.catalog.ListActive(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("replenish: list skus: %w", err)
	}
	balances, err := e.balances.ListBalances(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("replenish: list balances: %w", err)
	}
	return Compute(skus, balances, e.params), nil
}

// Compute derives one suggestion per SKU. SKUs above their minimum
// level come out as low urgency with a zero suggested quantity, so the
// report always covers the whole active catalog. A SKU with no balance
// row counts as zero on hand. Inactive SKUs never appear here because
// the caller lists active ones only.
func Compute(skus []catalog.SKU, balances []ledger.Balance, params Params) Report {
	params = params.normalize()
	now := params.Now().UTC()

	byCode := make(map[string]ledger.Balance, len(balances))
	for _, b := range balances {
		byCode[b.SKU] = b
	}

	report := Report{GeneratedAt: now}
	for _, sku := range skus {
		balance := byCode[sku.Code]
		urgency := classify(balance.OnHand, sku.MinLevel)
		suggestion := Suggestion{
			SKU:           sku.Code,
			Name:          sku.Name,
			OnHand:        balance.OnHand,
			MinLevel:      sku.MinLevel,
			TargetLevel:   sku.TargetLevel,
			Urgency:       urgency,
			AvgDailyUsage: balance.AvgDailyUsage,
		}
		// Ordering triggers only at or below the minimum; low-urgency
		// SKUs are reported for visibility with nothing to order.
		if urgency != UrgencyLow {
			suggestion.SuggestedQty = orderQty(balance.OnHand, sku.TargetLevel, params.ScrapPct)
		}
		if balance.AvgDailyUsage > 0 {
			days := float64(balance.OnHand) / balance.AvgDailyUsage
			suggestion.DaysUntilEmpty = days
			suggestion.StockoutDate = now.AddDate(0, 0, int(days))
		}
		report.Suggestions = append(report.Suggestions, suggestion)
	}

	sort.SliceStable(report.Suggestions, func(i, j int) bool {
		a, b := report.Suggestions[i], report.Suggestions[j]
		if a.Urgency != b.Urgency {
			return a.Urgency.rank() < b.Urgency.rank()
		}
		return a.OnHand < b.OnHand
	})

	for _, s := range report.Suggestions {
		report.Summary.TotalUnits += s.SuggestedQty
		switch s.Urgency {
		case UrgencyCritical:
			report.Summary.Critical++
		case UrgencyHigh:
			report.Summary.High++
		case UrgencyMedium:
			report.Summary.Medium++
		}
		if s.Urgency != UrgencyLow {
			report.Summary.SKUsBelowMin++
		}
	}
	return report
}

// classify maps on-hand against the minimum level to an urgency tier.
// Above the minimum the SKU is low urgency and nothing is reordered.
func classify(onHand, minLevel int) Urgency {
	if minLevel <= 0 || onHand > minLevel {
		return UrgencyLow
	}
	min := decimal.NewFromInt(int64(minLevel))
	hand := decimal.NewFromInt(int64(onHand))
	switch {
	case hand.LessThanOrEqual(min.Mul(decimal.NewFromFloat(0.5))):
		return UrgencyCritical
	case hand.LessThanOrEqual(min.Mul(decimal.NewFromFloat(0.7))):
		return UrgencyHigh
	default:
		return UrgencyMedium
	}
}

// orderQty fills back to the target level padded by the scrap rate,
// rounded up so a fractional unit never leaves the SKU short.
func orderQty(onHand, targetLevel int, scrapPct float64) int {
	deficit := decimal.NewFromInt(int64(targetLevel - onHand))
	if deficit.IsNegative() {
		return 0
	}
	padded := deficit.Mul(decimal.NewFromFloat(1).Add(decimal.NewFromFloat(scrapPct)))
	return int(padded.Ceil().IntPart())
}

// AtRisk returns suggestions whose projected stockout falls inside the
// supplier lead time, for alerting.
func AtRisk(report Report, leadTimeDays int) []Suggestion {
	if leadTimeDays <= 0 {
		leadTimeDays = defaultLeadTimeDays
	}
	horizon := report.GeneratedAt.Add(time.Duration(leadTimeDays) * 24 * time.Hour)
	var out []Suggestion
	for _, s := range report.Suggestions {
		if !s.StockoutDate.IsZero() && s.StockoutDate.Before(horizon) {
			out = append(out, s)
		}
	}
	return out
}
