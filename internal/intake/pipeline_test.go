package intake

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/timosh-design/blankstock/internal/ledger"
	"github.com/timosh-design/blankstock/internal/mapping"
	"github.com/timosh-design/blankstock/internal/shared"
)

type staticRules struct {
	rules []mapping.Rule
	err   error
}

func (s *staticRules) Rules(ctx context.Context) ([]mapping.Rule, error) {
	return s.rules, s.err
}

// fakeLedger mimics the ledger service's dedup and clamp behavior.
type fakeLedger struct {
	dedup    map[string]bool
	balances map[string]int
	posts    []ledger.PostInput
	postErr  error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{dedup: make(map[string]bool), balances: make(map[string]int)}
}

func (f *fakeLedger) Exists(ctx context.Context, dedupKey string) (bool, error) {
	return f.dedup[dedupKey], nil
}

func (f *fakeLedger) Post(ctx context.Context, in ledger.PostInput) (ledger.PostResult, error) {
	if f.postErr != nil {
		return ledger.PostResult{}, f.postErr
	}
	key := ledger.ComputeDedupKey(in.SourceID, in.SKU, in.Qty, in.Kind, in.Timestamp)
	if f.dedup[key] {
		return ledger.PostResult{}, ledger.ErrDuplicateMovement
	}
	f.dedup[key] = true

	qty := in.Qty
	shortfall := 0
	newOnHand := f.balances[in.SKU] + qty
	if newOnHand < 0 {
		shortfall = -newOnHand
		qty = -f.balances[in.SKU]
		newOnHand = 0
	}
	f.balances[in.SKU] = newOnHand
	f.posts = append(f.posts, in)
	return ledger.PostResult{
		Movement:  ledger.Movement{SKU: in.SKU, Qty: qty, BalanceAfter: newOnHand, Kind: in.Kind},
		Shortfall: shortfall,
	}, nil
}

type memoryUnmapped struct {
	items []UnmappedItem
}

func (m *memoryUnmapped) Insert(ctx context.Context, item UnmappedItem) error {
	m.items = append(m.items, item)
	return nil
}

func testRules() []mapping.Rule {
	return []mapping.Rule{
		{ID: 1, RowOrder: 1, ProductName: "Адресник кістка", SizeProperty: "25 мм", ColorProperty: "золото", SKU: "BLK-BONE-25-GLD", QtyPerUnit: 1, Priority: 80, Active: true},
		{ID: 2, RowOrder: 2, ProductName: "Адресник кістка", SKU: "BLK-BONE-25-GLD", QtyPerUnit: 1, Priority: 20, Active: true},
		{ID: 3, RowOrder: 3, ProductName: "Набір адресників", SKU: "BLK-ROUND-25-GLD", QtyPerUnit: 2, Priority: 10, Active: true},
	}
}

func newTestPipeline(rules []mapping.Rule, ld *fakeLedger, store *memoryUnmapped) *Pipeline {
	return NewPipeline(&staticRules{rules: rules}, ld, store, slog.Default(), nil)
}

func event(lines ...OrderLine) OrderEvent {
	return OrderEvent{
		OrderID:   "1001",
		Timestamp: time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC),
		Lines:     lines,
	}
}

func TestProcessOrderFullMatch(t *testing.T) {
	ld := newFakeLedger()
	ld.balances["BLK-BONE-25-GLD"] = 50
	p := newTestPipeline(testRules(), ld, &memoryUnmapped{})

	result, err := p.ProcessOrder(context.Background(), event(OrderLine{
		LineID: "1", ProductName: "Адресник кістка", Quantity: 2,
		Properties: map[string]string{"Розмір": "25 мм", "Колір": "золото"},
	}))
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)
	require.Equal(t, StatusProcessed, result.Lines[0].Status)
	require.Equal(t, "BLK-BONE-25-GLD", result.Lines[0].SKU)
	require.Equal(t, -2, result.Lines[0].Qty)
	require.Equal(t, 48, result.Lines[0].BalanceAfter)
	require.Equal(t, "processed", result.Action())
	require.Equal(t, ledger.SourceWebhook, ld.posts[0].SourceType)
	require.Equal(t, "1001_1", ld.posts[0].SourceID)
}

func TestProcessOrderMultiUnitRule(t *testing.T) {
	ld := newFakeLedger()
	ld.balances["BLK-ROUND-25-GLD"] = 20
	p := newTestPipeline(testRules(), ld, &memoryUnmapped{})

	result, err := p.ProcessOrder(context.Background(), event(OrderLine{
		LineID: "1", ProductName: "Набір адресників", Quantity: 3,
	}))
	require.NoError(t, err)
	require.Equal(t, -6, result.Lines[0].Qty)
	require.Equal(t, 14, ld.balances["BLK-ROUND-25-GLD"])
}

func TestProcessOrderNameOnlyFallback(t *testing.T) {
	ld := newFakeLedger()
	ld.balances["BLK-BONE-25-GLD"] = 10
	p := newTestPipeline(testRules(), ld, &memoryUnmapped{})

	// Size matches no specific rule; the wildcard rule catches it via
	// the degraded name-only path only when the full triple fails.
	result, err := p.ProcessOrder(context.Background(), event(OrderLine{
		LineID: "1", ProductName: "Адресник кістка", Quantity: 1,
		Properties: map[string]string{"Розмір": "40 мм", "Колір": "золото"},
	}))
	require.NoError(t, err)
	// The wildcard rule still full-matches (empty properties accept any
	// value), so this is a processed line, not a fallback.
	require.Equal(t, StatusProcessed, result.Lines[0].Status)

	// With only the specific rule present, the full match fails and the
	// name-only fallback kicks in.
	specific := testRules()[:1]
	result, err = newTestPipeline(specific, ld, &memoryUnmapped{}).ProcessOrder(context.Background(), OrderEvent{
		OrderID:   "1002",
		Timestamp: time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC),
		Lines: []OrderLine{{
			LineID: "1", ProductName: "Адресник кістка", Quantity: 1,
			Properties: map[string]string{"Розмір": "40 мм", "Колір": "золото"},
		}},
	})
	require.NoError(t, err)
	require.Equal(t, StatusFallback, result.Lines[0].Status)
	require.Equal(t, "BLK-BONE-25-GLD", result.Lines[0].SKU)
}

func TestProcessOrderSkipsNonTags(t *testing.T) {
	ld := newFakeLedger()
	p := newTestPipeline(testRules(), ld, &memoryUnmapped{})

	result, err := p.ProcessOrder(context.Background(), event(
		OrderLine{LineID: "1", ProductName: "Повідець шкіряний", Quantity: 1},
		OrderLine{LineID: "2", ProductName: "Гравіювання", Quantity: 1},
	))
	require.NoError(t, err)
	require.Equal(t, StatusSkipped, result.Lines[0].Status)
	require.Equal(t, StatusSkipped, result.Lines[1].Status)
	require.Equal(t, "skipped", result.Action())
	require.Empty(t, ld.posts)
}

func TestProcessOrderUnmappedRecordsSuggestion(t *testing.T) {
	ld := newFakeLedger()
	store := &memoryUnmapped{}
	p := newTestPipeline(testRules(), ld, store)

	result, err := p.ProcessOrder(context.Background(), event(OrderLine{
		LineID: "1", ProductName: "Адресник хмарка", Quantity: 1,
		Properties: map[string]string{"Розмір": "30 мм", "Колір": "срібло"},
	}))
	require.NoError(t, err)
	require.Equal(t, StatusUnmapped, result.Lines[0].Status)
	require.Len(t, store.items, 1)
	require.Equal(t, "1001", store.items[0].OrderID)
	require.Equal(t, "BLK-CLOUD-30-SIL", store.items[0].SuggestedSKU)
	require.Equal(t, "pending", store.items[0].Resolution)
	require.Empty(t, ld.posts)
}

func TestProcessOrderDuplicateRedelivery(t *testing.T) {
	ld := newFakeLedger()
	ld.balances["BLK-BONE-25-GLD"] = 50
	p := newTestPipeline(testRules(), ld, &memoryUnmapped{})
	ev := event(OrderLine{
		LineID: "1", ProductName: "Адресник кістка", Quantity: 2,
		Properties: map[string]string{"Розмір": "25 мм", "Колір": "золото"},
	})

	first, err := p.ProcessOrder(context.Background(), ev)
	require.NoError(t, err)
	require.Equal(t, "processed", first.Action())

	second, err := p.ProcessOrder(context.Background(), ev)
	require.NoError(t, err)
	require.Equal(t, StatusDuplicate, second.Lines[0].Status)
	require.Equal(t, "duplicate", second.Action())
	require.Equal(t, 48, ld.balances["BLK-BONE-25-GLD"])
}

func TestProcessOrderPartialSuccess(t *testing.T) {
	ld := newFakeLedger()
	ld.balances["BLK-BONE-25-GLD"] = 50
	store := &memoryUnmapped{}
	p := newTestPipeline(testRules(), ld, store)

	result, err := p.ProcessOrder(context.Background(), event(
		OrderLine{LineID: "1", ProductName: "Адресник кістка", Quantity: 1, Properties: map[string]string{"Розмір": "25 мм", "Колір": "золото"}},
		OrderLine{LineID: "2", ProductName: "Адресник невідомий", Quantity: 1},
	))
	require.NoError(t, err)
	require.Equal(t, StatusProcessed, result.Lines[0].Status)
	require.Equal(t, StatusUnmapped, result.Lines[1].Status)
	require.Equal(t, "partial", result.Action())
	// The committed movement stands despite the unmapped sibling.
	require.Equal(t, 49, ld.balances["BLK-BONE-25-GLD"])
}

func TestProcessOrderLineFailureIsolated(t *testing.T) {
	ld := newFakeLedger()
	p := newTestPipeline(testRules(), ld, &memoryUnmapped{})

	result, err := p.ProcessOrder(context.Background(), event(
		OrderLine{LineID: "1", ProductName: "Адресник кістка", Quantity: 0},
		OrderLine{LineID: "2", ProductName: "Адресник кістка", Quantity: 1, Properties: map[string]string{"Розмір": "25 мм", "Колір": "золото"}},
	))
	require.NoError(t, err)
	require.Equal(t, StatusFailed, result.Lines[0].Status)
	require.Equal(t, StatusProcessed, result.Lines[1].Status)
}

func TestProcessOrderStorageDownSignalsRedelivery(t *testing.T) {
	ld := newFakeLedger()
	ld.postErr = shared.ErrStorageUnavailable
	p := newTestPipeline(testRules(), ld, &memoryUnmapped{})
	p.retry = shared.RetryPolicy{Attempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}

	result, err := p.ProcessOrder(context.Background(), event(OrderLine{
		LineID: "1", ProductName: "Адресник кістка", Quantity: 1,
		Properties: map[string]string{"Розмір": "25 мм", "Колір": "золото"},
	}))
	require.ErrorIs(t, err, shared.ErrStorageUnavailable)
	require.Equal(t, StatusFailed, result.Lines[0].Status)
}

func TestProcessOrderRuleStoreDown(t *testing.T) {
	p := NewPipeline(&staticRules{err: errors.New("store down")}, newFakeLedger(), &memoryUnmapped{}, slog.Default(), nil)
	_, err := p.ProcessOrder(context.Background(), event(OrderLine{LineID: "1", ProductName: "Адресник", Quantity: 1}))
	require.Error(t, err)
}

func TestProcessOrderRequiresOrderID(t *testing.T) {
	p := newTestPipeline(testRules(), newFakeLedger(), &memoryUnmapped{})
	_, err := p.ProcessOrder(context.Background(), OrderEvent{})
	require.Error(t, err)
}

func TestIsAddressTag(t *testing.T) {
	require.True(t, isAddressTag("Адресник кістка 25мм"))
	require.True(t, isAddressTag("ЖЕТОН круглий"))
	require.True(t, isAddressTag("Медальон для собаки"))
	require.False(t, isAddressTag("Повідець"))
	require.False(t, isAddressTag(""))
}

func TestSuggestSKU(t *testing.T) {
	sku := suggestSKU(OrderLine{
		ProductName: "Адресник кістка",
		Properties:  map[string]string{"Розмір": "20 мм", "Колір": "срібло"},
	})
	require.Equal(t, "BLK-BONE-20-SIL", sku)

	sku = suggestSKU(OrderLine{ProductName: "Адресник фігурний"})
	require.Equal(t, "BLK-HEART-25-GLD", sku)

	require.Empty(t, suggestSKU(OrderLine{ProductName: "Адресник загадковий"}))
}
