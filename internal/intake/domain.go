package intake

import (
	"time"
)

// OrderLine is one line of an incoming order event.
type OrderLine struct {
	LineID      string            `json:"line_id"`
	ProductName string            `json:"product_name"`
	Quantity    int               `json:"quantity"`
	Properties  map[string]string `json:"properties"`
}

// OrderEvent is the already-deserialized order the pipeline consumes.
type OrderEvent struct {
	OrderID   string      `json:"order_id"`
	Timestamp time.Time   `json:"timestamp"`
	Lines     []OrderLine `json:"lines"`
}

// LineStatus classifies the outcome of processing one line.
type LineStatus string

const (
	// StatusProcessed means a movement was appended from a full rule match.
	StatusProcessed LineStatus = "processed"
	// StatusFallback means the degraded name-only match was used.
	StatusFallback LineStatus = "fallback"
	// StatusDuplicate means the dedup key was already in the ledger.
	StatusDuplicate LineStatus = "duplicate"
	// StatusUnmapped means no rule matched; an UnmappedItem was recorded.
	StatusUnmapped LineStatus = "unmapped"
	// StatusSkipped means the product is not an address tag.
	StatusSkipped LineStatus = "skipped"
	// StatusFailed means a non-recoverable error isolated to this line.
	StatusFailed LineStatus = "failed"
)

// LineResult reports the outcome of one line.
type LineResult struct {
	LineID       string     `json:"line_id"`
	Status       LineStatus `json:"status"`
	SKU          string     `json:"sku,omitempty"`
	Qty          int        `json:"qty,omitempty"`
	BalanceAfter int        `json:"balance_after,omitempty"`
	Shortfall    int        `json:"shortfall,omitempty"`
	Error        string     `json:"error,omitempty"`

	// retryable marks a failure worth a webhook redelivery.
	retryable bool
}

// Result aggregates line outcomes for one order. Lines are processed
// independently; committed movements stand even when later lines fail.
type Result struct {
	OrderID string       `json:"order_id"`
	Lines   []LineResult `json:"lines"`
}

// Count returns how many lines finished with the given status.
func (r Result) Count(status LineStatus) int {
	n := 0
	for _, line := range r.Lines {
		if line.Status == status {
			n++
		}
	}
	return n
}

// Action summarises the order outcome for the webhook response.
func (r Result) Action() string {
	processed := r.Count(StatusProcessed) + r.Count(StatusFallback)
	switch {
	case processed == len(r.Lines) && processed > 0:
		return "processed"
	case processed > 0:
		return "partial"
	case r.Count(StatusDuplicate) > 0:
		return "duplicate"
	default:
		return "skipped"
	}
}

// UnmappedItem records an order line that matched no mapping rule. Items
// are retained for operator triage and never auto-resolved.
type UnmappedItem struct {
	ID           int64             `json:"id"`
	Timestamp    time.Time         `json:"timestamp"`
	OrderID      string            `json:"order_id"`
	LineID       string            `json:"line_id"`
	ProductName  string            `json:"product_name"`
	Properties   map[string]string `json:"properties"`
	SuggestedSKU string            `json:"suggested_sku,omitempty"`
	ErrorType    string            `json:"error_type"`
	Resolution   string            `json:"resolution"`
}
