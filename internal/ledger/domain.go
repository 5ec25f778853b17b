package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind enumerates supported stock movements.
type Kind string

const (
	// KindReceipt represents an inbound delivery of blanks.
	KindReceipt Kind = "receipt"
	// KindOrder represents consumption by a sold order line.
	KindOrder Kind = "order"
	// KindCorrection indicates a manual stock correction.
	KindCorrection Kind = "correction"
)

// SourceType identifies where a movement originated.
type SourceType string

const (
	SourceWebhook SourceType = "webhook"
	SourceManual  SourceType = "manual"
	SourceSystem  SourceType = "system"
)

// Movement is one immutable signed quantity change recorded against a SKU.
// Movements are append-only; nothing updates or deletes them.
type Movement struct {
	ID           uuid.UUID  `json:"id"`
	Timestamp    time.Time  `json:"timestamp"`
	Kind         Kind       `json:"kind"`
	SourceType   SourceType `json:"source_type"`
	SourceID     string     `json:"source_id"`
	SKU          string     `json:"sku"`
	Qty          int        `json:"qty"`
	BalanceAfter int        `json:"balance_after"`
	Actor        string     `json:"actor,omitempty"`
	Note         string     `json:"note,omitempty"`
	DedupKey     string     `json:"dedup_key"`
}

// Balance is the current projection for one SKU, maintained by folding
// movements. Invariant: Available == OnHand - Reserved and OnHand >= 0.
type Balance struct {
	SKU             string    `json:"sku"`
	OnHand          int       `json:"on_hand"`
	Reserved        int       `json:"reserved"`
	Available       int       `json:"available"`
	LastReceiptDate time.Time `json:"last_receipt_date,omitzero"`
	LastOrderDate   time.Time `json:"last_order_date,omitzero"`
	AvgDailyUsage   float64   `json:"avg_daily_usage"`
	UpdatedAt       time.Time `json:"updated_at"`
}

var (
	// ErrDuplicateMovement indicates a dedup key already present in the ledger.
	ErrDuplicateMovement = errors.New("ledger: movement already recorded")
	// ErrBalanceNotFound indicates a missing balance row.
	ErrBalanceNotFound = errors.New("ledger: balance not found")
	// ErrInvalidQuantity indicates a zero or mis-signed quantity.
	ErrInvalidQuantity = errors.New("ledger: quantity must be non zero")
	// ErrInvalidSKU indicates a missing or malformed SKU code.
	ErrInvalidSKU = errors.New("ledger: sku required")
)

// ComputeDedupKey derives the deterministic fingerprint of a movement's
// origin. The timestamp is bucketed to the second in UTC so retried webhook
// deliveries, which carry the same order timestamp, always hash identically.
// The quantity is the requested signed quantity, before any shortfall clamp.
func ComputeDedupKey(sourceID, sku string, qty int, kind Kind, ts time.Time) string {
	bucket := ts.UTC().Truncate(time.Second).Format(time.RFC3339)
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%d|%s|%s", sourceID, sku, qty, kind, bucket))
	return hex.EncodeToString(sum[:])
}
