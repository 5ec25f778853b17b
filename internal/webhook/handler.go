package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/timosh-design/blankstock/internal/intake"
	"github.com/timosh-design/blankstock/internal/platform/httpx"
	"github.com/timosh-design/blankstock/internal/shared"
)

const maxBodySize = 1 << 20

// orderEventName is the only platform event that moves stock.
const orderEventName = "order.change_order_status"

// Processor runs the intake pipeline for one order event.
type Processor interface {
	ProcessOrder(ctx context.Context, event intake.OrderEvent) (intake.Result, error)
}

// Observer counts webhook outcomes for metrics.
type Observer interface {
	WebhookHandled(action string)
}

// Handler receives order webhooks from the sales platform.
type Handler struct {
	processor Processor
	secret    string
	statuses  map[string]bool
	logger    *slog.Logger
	observer  Observer
}

// NewHandler builds Handler. statuses lists the order statuses that
// trigger stock consumption; others are acknowledged and skipped.
func NewHandler(processor Processor, secret string, statuses []string, logger *slog.Logger, observer Observer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	set := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		set[s] = true
	}
	if len(set) == 0 {
		set["confirmed"] = true
	}
	return &Handler{processor: processor, secret: secret, statuses: set, logger: logger, observer: observer}
}

// Receive handles POST /webhooks/orders. Storage failures answer 503 so
// the platform redelivers; dedup keys make the redelivery harmless.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "unreadable body")
		return
	}
	if !VerifySignature(r.Header, body, h.secret) {
		h.logger.Warn("webhook signature rejected", slog.String("remote", r.RemoteAddr))
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid signature")
		return
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed payload")
		return
	}

	if payload.Event != orderEventName {
		h.respond(w, payload.Context.ID, "ignored", nil)
		return
	}
	if !h.statuses[payload.Context.Status] {
		h.logger.Debug("order status not tracked",
			slog.Int64("order_id", payload.Context.ID),
			slog.String("status", payload.Context.Status))
		h.respond(w, payload.Context.ID, "ignored", nil)
		return
	}

	result, err := h.processor.ProcessOrder(r.Context(), payload.ToEvent())
	if err != nil {
		if errors.Is(err, shared.ErrStorageUnavailable) {
			h.logger.Error("order processing deferred", slog.Any("error", err))
			httpx.Problem(w, http.StatusServiceUnavailable, "Temporarily Unavailable", "retry later")
			return
		}
		h.logger.Error("order processing failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	h.respond(w, payload.Context.ID, result.Action(), &result)
}

func (h *Handler) respond(w http.ResponseWriter, orderID int64, action string, result *intake.Result) {
	if h.observer != nil {
		h.observer.WebhookHandled(action)
	}
	resp := map[string]any{"order_id": orderID, "action": action}
	if result != nil {
		resp["lines"] = result.Lines
	}
	httpx.JSON(w, http.StatusOK, resp)
}
