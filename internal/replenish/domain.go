package replenish

import (
	"time"
)

// Urgency tiers order replenishment suggestions for the operator.
type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyHigh     Urgency = "high"
	UrgencyMedium   Urgency = "medium"
	UrgencyLow      Urgency = "low"
)

// rank maps urgency to sort order, most urgent first.
func (u Urgency) rank() int {
	switch u {
	case UrgencyCritical:
		return 0
	case UrgencyHigh:
		return 1
	case UrgencyMedium:
		return 2
	default:
		return 3
	}
}

// Suggestion is one SKU the engine recommends reordering.
type Suggestion struct {
	SKU            string    `json:"sku"`
	Name           string    `json:"name"`
	OnHand         int       `json:"on_hand"`
	MinLevel       int       `json:"min_level"`
	TargetLevel    int       `json:"target_level"`
	SuggestedQty   int       `json:"suggested_qty"`
	Urgency        Urgency   `json:"urgency"`
	AvgDailyUsage  float64   `json:"avg_daily_usage"`
	DaysUntilEmpty float64   `json:"days_until_empty,omitempty"`
	StockoutDate   time.Time `json:"stockout_date,omitzero"`
}

// Report is the full replenishment picture at one point in time.
type Report struct {
	GeneratedAt time.Time    `json:"generated_at"`
	Suggestions []Suggestion `json:"suggestions"`
	Summary     Summary      `json:"summary"`
}

// Summary aggregates the report for dashboards and alerts.
type Summary struct {
	SKUsBelowMin int `json:"skus_below_min"`
	Critical     int `json:"critical"`
	High         int `json:"high"`
	Medium       int `json:"medium"`
	TotalUnits   int `json:"total_units"`
}

// Params tunes the engine. Zero values take the defaults.
type Params struct {
	// ScrapPct pads ordered quantities for engraving scrap. Default 0.05.
	ScrapPct float64
	// LeadTimeDays is the supplier lead time used for stockout warnings.
	LeadTimeDays int
	// Now overrides the report clock in tests.
	Now func() time.Time
}

const (
	defaultScrapPct     = 0.05
	defaultLeadTimeDays = 14
)

func (p Params) normalize() Params {
	if p.ScrapPct <= 0 {
		p.ScrapPct = defaultScrapPct
	}
	if p.LeadTimeDays <= 0 {
		p.LeadTimeDays = defaultLeadTimeDays
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return p
}
