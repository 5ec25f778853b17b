package ledger

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	movements []Movement
	dedup     map[string]bool
	balances  map[string]Balance
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{dedup: make(map[string]bool), balances: make(map[string]Balance)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) Exists(ctx context.Context, dedupKey string) (bool, error) {
	return r.dedup[dedupKey], nil
}

func (r *memoryRepo) ListBySKU(ctx context.Context, sku string, limit int) ([]Movement, error) {
	var out []Movement
	for i := len(r.movements) - 1; i >= 0; i-- {
		if r.movements[i].SKU == sku {
			out = append(out, r.movements[i])
		}
	}
	return out, nil
}

func (r *memoryRepo) ListSince(ctx context.Context, since time.Time) ([]Movement, error) {
	var out []Movement
	for _, m := range r.movements {
		if !m.Timestamp.Before(since) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListAll(ctx context.Context) ([]Movement, error) {
	out := make([]Movement, len(r.movements))
	copy(out, r.movements)
	return out, nil
}

func (r *memoryRepo) GetBalance(ctx context.Context, sku string) (Balance, error) {
	if b, ok := r.balances[sku]; ok {
		return b, nil
	}
	return Balance{}, ErrBalanceNotFound
}

func (r *memoryRepo) ListBalances(ctx context.Context) ([]Balance, error) {
	var out []Balance
	for _, b := range r.balances {
		out = append(out, b)
	}
	return out, nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, m Movement) error {
	if tx.repo.dedup[m.DedupKey] {
		return ErrDuplicateMovement
	}
	tx.repo.dedup[m.DedupKey] = true
	tx.repo.movements = append(tx.repo.movements, m)
	return nil
}

func (tx *memoryTx) GetBalanceForUpdate(ctx context.Context, sku string) (Balance, error) {
	if b, ok := tx.repo.balances[sku]; ok {
		return b, nil
	}
	return Balance{}, ErrBalanceNotFound
}

func (tx *memoryTx) UpsertBalance(ctx context.Context, b Balance) error {
	tx.repo.balances[b.SKU] = b
	return nil
}

type recordingObserver struct {
	movements  []string
	shortfalls []int
}

func (o *recordingObserver) MovementRecorded(kind string) { o.movements = append(o.movements, kind) }

func (o *recordingObserver) ShortfallClamped(sku string, qty int) {
	o.shortfalls = append(o.shortfalls, qty)
}

func newTestService(repo *memoryRepo) (*Service, *recordingObserver) {
	obs := &recordingObserver{}
	return NewService(repo, nil, slog.Default(), obs), obs
}

func TestPostReceiptCreatesBalance(t *testing.T) {
	repo := newMemoryRepo()
	svc, obs := newTestService(repo)
	ctx := context.Background()

	result, err := svc.Post(ctx, PostInput{
		SKU: "BLK-BONE-25-GLD", Qty: 100, Kind: KindReceipt,
		SourceType: SourceManual, SourceID: "delivery-1", Actor: "olena",
	})
	require.NoError(t, err)
	require.Equal(t, 100, result.Balance.OnHand)
	require.Equal(t, 100, result.Balance.Available)
	require.Equal(t, 100, result.Movement.BalanceAfter)
	require.False(t, result.Balance.LastReceiptDate.IsZero())
	require.Equal(t, []string{"receipt"}, obs.movements)
}

func TestPostOrderConsumesStock(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Post(ctx, PostInput{SKU: "BLK-BONE-25-GLD", Qty: 100, Kind: KindReceipt, SourceType: SourceManual, SourceID: "d1"})
	require.NoError(t, err)

	result, err := svc.Post(ctx, PostInput{SKU: "BLK-BONE-25-GLD", Qty: -3, Kind: KindOrder, SourceType: SourceWebhook, SourceID: "1001_1"})
	require.NoError(t, err)
	require.Equal(t, 97, result.Balance.OnHand)
	require.Zero(t, result.Shortfall)
	require.False(t, result.Balance.LastOrderDate.IsZero())
}

func TestPostReplaySameEventRejected(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()
	ts := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

	in := PostInput{SKU: "BLK-BONE-25-GLD", Qty: -2, Kind: KindOrder, SourceType: SourceWebhook, SourceID: "1001_1", Timestamp: ts}
	_, err := svc.Post(ctx, PostInput{SKU: "BLK-BONE-25-GLD", Qty: 10, Kind: KindReceipt, SourceType: SourceManual, SourceID: "d1"})
	require.NoError(t, err)
	_, err = svc.Post(ctx, in)
	require.NoError(t, err)

	for range 3 {
		_, err = svc.Post(ctx, in)
		require.ErrorIs(t, err, ErrDuplicateMovement)
	}

	balance, err := svc.GetBalance(ctx, "BLK-BONE-25-GLD")
	require.NoError(t, err)
	require.Equal(t, 8, balance.OnHand)
	require.Len(t, repo.movements, 2)
}

func TestPostClampsShortfallToZero(t *testing.T) {
	repo := newMemoryRepo()
	svc, obs := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Post(ctx, PostInput{SKU: "BLK-HEART-25-GLD", Qty: 5, Kind: KindReceipt, SourceType: SourceManual, SourceID: "d1"})
	require.NoError(t, err)

	result, err := svc.Post(ctx, PostInput{SKU: "BLK-HEART-25-GLD", Qty: -8, Kind: KindOrder, SourceType: SourceWebhook, SourceID: "1002_1"})
	require.NoError(t, err)
	require.Equal(t, 0, result.Balance.OnHand)
	require.Equal(t, -5, result.Movement.Qty)
	require.Equal(t, 3, result.Shortfall)
	require.Equal(t, []int{3}, obs.shortfalls)
}

func TestPostClampedRetryHashesIdentically(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()
	ts := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	_, err := svc.Post(ctx, PostInput{SKU: "BLK-HEART-25-GLD", Qty: 5, Kind: KindReceipt, SourceType: SourceManual, SourceID: "d1"})
	require.NoError(t, err)

	in := PostInput{SKU: "BLK-HEART-25-GLD", Qty: -8, Kind: KindOrder, SourceType: SourceWebhook, SourceID: "1002_1", Timestamp: ts}
	_, err = svc.Post(ctx, in)
	require.NoError(t, err)

	// The stored movement carries the clamped quantity, but a redelivery
	// still fingerprints on the requested one and must be rejected.
	_, err = svc.Post(ctx, in)
	require.ErrorIs(t, err, ErrDuplicateMovement)
}

func TestPostZeroTimestampReplayRejected(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Post(ctx, PostInput{SKU: "BLK-BONE-25-GLD", Qty: 10, Kind: KindReceipt, SourceType: SourceManual, SourceID: "d1"})
	require.NoError(t, err)

	in := PostInput{SKU: "BLK-BONE-25-GLD", Qty: -2, Kind: KindOrder, SourceType: SourceWebhook, SourceID: "1001_1"}
	first, err := svc.Post(ctx, in)
	require.NoError(t, err)
	// The stored movement gets a processing time, but the dedup key must
	// not depend on the wall clock: a redelivery with no timestamp
	// processed at any later moment still collides.
	require.False(t, first.Movement.Timestamp.IsZero())

	_, err = svc.Post(ctx, in)
	require.ErrorIs(t, err, ErrDuplicateMovement)
	require.Len(t, repo.movements, 2)
}

func TestPostValidatesInput(t *testing.T) {
	svc, _ := newTestService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.Post(ctx, PostInput{Qty: 1, Kind: KindReceipt})
	require.ErrorIs(t, err, ErrInvalidSKU)

	_, err = svc.Post(ctx, PostInput{SKU: "X", Qty: 0, Kind: KindReceipt})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.Post(ctx, PostInput{SKU: "X", Qty: -1, Kind: KindReceipt, SourceID: "d"})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.Post(ctx, PostInput{SKU: "X", Qty: 1, Kind: KindOrder, SourceID: "o"})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.Post(ctx, PostInput{SKU: "X", Qty: 1, Kind: Kind("transfer"), SourceID: "t"})
	require.Error(t, err)
}

func TestCorrectionMayBeNegative(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Post(ctx, PostInput{SKU: "BLK-RING-30-SIL", Qty: 10, Kind: KindReceipt, SourceType: SourceManual, SourceID: "d1"})
	require.NoError(t, err)

	result, err := svc.Post(ctx, PostInput{SKU: "BLK-RING-30-SIL", Qty: -4, Kind: KindCorrection, SourceType: SourceManual, SourceID: "c1", Note: "damaged in engraving"})
	require.NoError(t, err)
	require.Equal(t, 6, result.Balance.OnHand)
}

func TestGetBalanceUnknownSKUReturnsZeroRecord(t *testing.T) {
	svc, _ := newTestService(newMemoryRepo())
	balance, err := svc.GetBalance(context.Background(), "BLK-CLOUD-25-SIL")
	require.NoError(t, err)
	require.Equal(t, "BLK-CLOUD-25-SIL", balance.SKU)
	require.Zero(t, balance.OnHand)
}

func TestComputeDedupKeyDeterministic(t *testing.T) {
	ts := time.Date(2026, 3, 10, 14, 30, 0, 123456789, time.UTC)
	a := ComputeDedupKey("1001_1", "BLK-BONE-25-GLD", -2, KindOrder, ts)
	b := ComputeDedupKey("1001_1", "BLK-BONE-25-GLD", -2, KindOrder, ts.Truncate(time.Second))
	require.Equal(t, a, b)

	c := ComputeDedupKey("1001_1", "BLK-BONE-25-GLD", -3, KindOrder, ts)
	require.NotEqual(t, a, c)

	d := ComputeDedupKey("1001_2", "BLK-BONE-25-GLD", -2, KindOrder, ts)
	require.NotEqual(t, a, d)
}
