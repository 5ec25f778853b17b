package replenish

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/timosh-design/blankstock/internal/catalog"
	"github.com/timosh-design/blankstock/internal/ledger"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)
}

func sku(code string, min, target int) catalog.SKU {
	return catalog.SKU{Code: code, Name: code, MinLevel: min, TargetLevel: target, Active: true}
}

func testParams() Params {
	return Params{ScrapPct: 0.05, LeadTimeDays: 14, Now: fixedNow}
}

func TestComputeUrgencyBoundaries(t *testing.T) {
	skus := []catalog.SKU{sku("A", 100, 300)}
	cases := []struct {
		onHand  int
		urgency Urgency
	}{
		{0, UrgencyCritical},
		{50, UrgencyCritical},
		{51, UrgencyHigh},
		{70, UrgencyHigh},
		{71, UrgencyMedium},
		{100, UrgencyMedium},
		{101, UrgencyLow},
	}
	for _, tc := range cases {
		report := Compute(skus, []ledger.Balance{{SKU: "A", OnHand: tc.onHand}}, testParams())
		require.Len(t, report.Suggestions, 1, "on_hand %d", tc.onHand)
		require.Equal(t, tc.urgency, report.Suggestions[0].Urgency, "on_hand %d", tc.onHand)
	}
}

func TestComputeAboveMinIsLowWithNothingToOrder(t *testing.T) {
	report := Compute(
		[]catalog.SKU{sku("A", 100, 300)},
		[]ledger.Balance{{SKU: "A", OnHand: 101}},
		testParams(),
	)
	require.Len(t, report.Suggestions, 1)
	s := report.Suggestions[0]
	require.Equal(t, UrgencyLow, s.Urgency)
	// Above the minimum nothing is ordered, even with on-hand below target.
	require.Zero(t, s.SuggestedQty)
	require.Zero(t, report.Summary.SKUsBelowMin)
	require.Zero(t, report.Summary.TotalUnits)
}

func TestComputeQuantityPadsScrap(t *testing.T) {
	report := Compute(
		[]catalog.SKU{sku("A", 100, 300)},
		[]ledger.Balance{{SKU: "A", OnHand: 79}},
		testParams(),
	)
	require.Len(t, report.Suggestions, 1)
	s := report.Suggestions[0]
	require.Equal(t, UrgencyMedium, s.Urgency)
	// (300-79) * 1.05 = 232.05, rounded up.
	require.Equal(t, 233, s.SuggestedQty)
}

func TestComputeMissingBalanceCountsAsZero(t *testing.T) {
	report := Compute([]catalog.SKU{sku("A", 100, 300)}, nil, testParams())
	require.Len(t, report.Suggestions, 1)
	require.Equal(t, UrgencyCritical, report.Suggestions[0].Urgency)
	// 300 * 1.05
	require.Equal(t, 315, report.Suggestions[0].SuggestedQty)
}

func TestComputeSortsByUrgencyThenOnHand(t *testing.T) {
	skus := []catalog.SKU{
		sku("LOW", 100, 300),
		sku("MED", 100, 300),
		sku("CRIT-B", 100, 300),
		sku("HIGH", 100, 300),
		sku("CRIT-A", 100, 300),
	}
	balances := []ledger.Balance{
		{SKU: "LOW", OnHand: 250},
		{SKU: "MED", OnHand: 90},
		{SKU: "CRIT-B", OnHand: 40},
		{SKU: "HIGH", OnHand: 60},
		{SKU: "CRIT-A", OnHand: 10},
	}
	report := Compute(skus, balances, testParams())
	var order []string
	for _, s := range report.Suggestions {
		order = append(order, s.SKU)
	}
	require.Equal(t, []string{"CRIT-A", "CRIT-B", "HIGH", "MED", "LOW"}, order)
}

func TestComputeStockoutProjection(t *testing.T) {
	report := Compute(
		[]catalog.SKU{sku("A", 100, 300)},
		[]ledger.Balance{{SKU: "A", OnHand: 40, AvgDailyUsage: 4}},
		testParams(),
	)
	require.Len(t, report.Suggestions, 1)
	s := report.Suggestions[0]
	require.InDelta(t, 10.0, s.DaysUntilEmpty, 0.001)
	require.Equal(t, fixedNow().AddDate(0, 0, 10), s.StockoutDate)

	// No usage history means no projection.
	report = Compute(
		[]catalog.SKU{sku("A", 100, 300)},
		[]ledger.Balance{{SKU: "A", OnHand: 40}},
		testParams(),
	)
	require.True(t, report.Suggestions[0].StockoutDate.IsZero())
}

func TestComputeStockoutFloorsFractionalDays(t *testing.T) {
	report := Compute(
		[]catalog.SKU{sku("A", 100, 300)},
		[]ledger.Balance{{SKU: "A", OnHand: 5, AvgDailyUsage: 2}},
		testParams(),
	)
	require.Len(t, report.Suggestions, 1)
	s := report.Suggestions[0]
	require.InDelta(t, 2.5, s.DaysUntilEmpty, 0.001)
	// A partial day of cover does not move the stockout date.
	require.Equal(t, fixedNow().AddDate(0, 0, 2), s.StockoutDate)
}

func TestComputeSummary(t *testing.T) {
	skus := []catalog.SKU{
		sku("A", 100, 300),
		sku("B", 100, 300),
		sku("C", 100, 300),
		sku("D", 100, 300),
	}
	balances := []ledger.Balance{
		{SKU: "A", OnHand: 10},
		{SKU: "B", OnHand: 60},
		{SKU: "C", OnHand: 90},
		{SKU: "D", OnHand: 150},
	}
	report := Compute(skus, balances, testParams())
	require.Len(t, report.Suggestions, 4)
	require.Equal(t, 3, report.Summary.SKUsBelowMin)
	require.Equal(t, 1, report.Summary.Critical)
	require.Equal(t, 1, report.Summary.High)
	require.Equal(t, 1, report.Summary.Medium)
	total := 0
	for _, s := range report.Suggestions {
		total += s.SuggestedQty
	}
	require.Equal(t, total, report.Summary.TotalUnits)
}

func TestAtRiskFiltersByLeadTime(t *testing.T) {
	report := Compute(
		[]catalog.SKU{sku("SOON", 100, 300), sku("LATER", 100, 300)},
		[]ledger.Balance{
			{SKU: "SOON", OnHand: 20, AvgDailyUsage: 4},  // 5 days left
			{SKU: "LATER", OnHand: 90, AvgDailyUsage: 1}, // 90 days left
		},
		testParams(),
	)
	atRisk := AtRisk(report, 14)
	require.Len(t, atRisk, 1)
	require.Equal(t, "SOON", atRisk[0].SKU)
}
