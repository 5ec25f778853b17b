package ledger

import (
	"context"
	"log/slog"
	"math"
	"time"
)

// DriftEntry reports one SKU whose projection disagreed with the ledger.
type DriftEntry struct {
	SKU          string `json:"sku"`
	ProjectedQty int    `json:"projected_qty"`
	LedgerQty    int    `json:"ledger_qty"`
	Corrected    bool   `json:"corrected"`
}

// RebuildReport summarises an offline projection rebuild.
type RebuildReport struct {
	SKUsChecked int          `json:"skus_checked"`
	Drift       []DriftEntry `json:"drift"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
}

// Rebuild refolds the entire ledger and repairs any balance rows that
// drifted from it. The projection is normally maintained incrementally;
// this is the consistency backstop for a crash between movement append
// and projection update observed from the outside (they commit in one
// transaction here, but a restored ledger backup or manual DB surgery
// can still leave the two apart).
func (s *Service) Rebuild(ctx context.Context, repair bool) (RebuildReport, error) {
	report := RebuildReport{StartedAt: time.Now().UTC()}

	movements, err := s.repo.ListAll(ctx)
	if err != nil {
		return report, err
	}
	folded := make(map[string]Balance)
	for _, m := range movements {
		b := folded[m.SKU]
		b.SKU = m.SKU
		b.OnHand += m.Qty
		if b.OnHand < 0 {
			b.OnHand = 0
		}
		switch m.Kind {
		case KindReceipt:
			if m.Timestamp.After(b.LastReceiptDate) {
				b.LastReceiptDate = m.Timestamp
			}
		case KindOrder:
			if m.Timestamp.After(b.LastOrderDate) {
				b.LastOrderDate = m.Timestamp
			}
		}
		folded[m.SKU] = b
	}

	current, err := s.repo.ListBalances(ctx)
	if err != nil {
		return report, err
	}
	projected := make(map[string]Balance, len(current))
	for _, b := range current {
		projected[b.SKU] = b
	}

	for sku, want := range folded {
		report.SKUsChecked++
		have := projected[sku]
		if have.OnHand == want.OnHand {
			continue
		}
		entry := DriftEntry{SKU: sku, ProjectedQty: have.OnHand, LedgerQty: want.OnHand}
		s.logger.Warn("projection drift detected",
			slog.String("sku", sku),
			slog.Int("projected", have.OnHand),
			slog.Int("ledger", want.OnHand))
		if repair {
			if err := s.overwriteBalance(ctx, have, want); err != nil {
				return report, err
			}
			entry.Corrected = true
		}
		report.Drift = append(report.Drift, entry)
	}

	report.FinishedAt = time.Now().UTC()
	return report, nil
}

func (s *Service) overwriteBalance(ctx context.Context, have, want Balance) error {
	unlock := s.locks.Lock(want.SKU)
	defer unlock()
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		// Reserved and usage stats are not derivable from the ledger; keep them.
		want.Reserved = have.Reserved
		want.AvgDailyUsage = have.AvgDailyUsage
		want.Available = want.OnHand - want.Reserved
		want.UpdatedAt = time.Now().UTC()
		return tx.UpsertBalance(ctx, want)
	})
}

// UsageWindowDays is the trailing window for the rolling average daily usage.
const UsageWindowDays = 30

// RefreshUsageStats recomputes the rolling average daily usage and the
// last receipt/order dates for every SKU from the trailing window.
// Returns the number of balances updated.
func (s *Service) RefreshUsageStats(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.AddDate(0, 0, -UsageWindowDays)
	movements, err := s.repo.ListSince(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	type skuStats struct {
		outbound    int
		lastOrder   time.Time
		lastReceipt time.Time
	}
	stats := make(map[string]skuStats)
	for _, m := range movements {
		st := stats[m.SKU]
		switch {
		case m.Kind == KindOrder && m.Qty < 0:
			st.outbound += -m.Qty
			if m.Timestamp.After(st.lastOrder) {
				st.lastOrder = m.Timestamp
			}
		case m.Kind == KindReceipt && m.Qty > 0:
			if m.Timestamp.After(st.lastReceipt) {
				st.lastReceipt = m.Timestamp
			}
		}
		stats[m.SKU] = st
	}

	balances, err := s.repo.ListBalances(ctx)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, b := range balances {
		st := stats[b.SKU]
		avg := math.Round(float64(st.outbound)/UsageWindowDays*100) / 100
		if avg == b.AvgDailyUsage && st.lastOrder.IsZero() && st.lastReceipt.IsZero() {
			continue
		}
		b.AvgDailyUsage = avg
		if st.lastOrder.After(b.LastOrderDate) {
			b.LastOrderDate = st.lastOrder
		}
		if st.lastReceipt.After(b.LastReceiptDate) {
			b.LastReceiptDate = st.lastReceipt
		}
		b.Available = b.OnHand - b.Reserved
		b.UpdatedAt = time.Now().UTC()

		unlock := s.locks.Lock(b.SKU)
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			return tx.UpsertBalance(ctx, b)
		})
		unlock()
		if err != nil {
			return updated, err
		}
		updated++
	}
	s.logger.Info("usage statistics refreshed",
		slog.Int("updated", updated),
		slog.Int("movements_analyzed", len(movements)))
	return updated, nil
}
