package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/timosh-design/blankstock/internal/platform/httpx"
	"github.com/timosh-design/blankstock/internal/shared"
)

// Handler wires HTTP endpoints for manual stock operations and reads.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs ledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/stock/receipts", h.handleReceipt)
	r.Post("/stock/corrections", h.handleCorrection)
	r.Get("/stock/balances", h.handleBalances)
	r.Get("/stock/balances/{sku}", h.handleBalance)
	r.Get("/stock/movements/{sku}", h.handleMovements)
	r.Post("/stock/verify", h.handleVerify)
}

type receiptRequest struct {
	SKU      string `json:"sku"`
	Qty      int    `json:"qty"`
	SourceID string `json:"source_id"`
	Note     string `json:"note"`
}

type correctionRequest struct {
	SKU    string `json:"sku"`
	Qty    int    `json:"qty"`
	Reason string `json:"reason"`
}

func (h *Handler) handleReceipt(w http.ResponseWriter, r *http.Request) {
	var req receiptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if req.SourceID == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "source_id required for idempotency")
		return
	}
	result, err := h.service.Post(r.Context(), PostInput{
		SKU:        req.SKU,
		Qty:        req.Qty,
		Kind:       KindReceipt,
		SourceType: SourceManual,
		SourceID:   req.SourceID,
		Actor:      actorFrom(r),
		Note:       req.Note,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) handleCorrection(w http.ResponseWriter, r *http.Request) {
	var req correctionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if req.Reason == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "reason required for corrections")
		return
	}
	result, err := h.service.Post(r.Context(), PostInput{
		SKU:        req.SKU,
		Qty:        req.Qty,
		Kind:       KindCorrection,
		SourceType: SourceManual,
		SourceID:   fmt.Sprintf("correction_%d", time.Now().UnixNano()),
		Actor:      actorFrom(r),
		Note:       req.Reason,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) handleBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.service.ListBalances(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, balances)
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.service.GetBalance(r.Context(), chi.URLParam(r, "sku"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, balance)
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	movements, err := h.service.ListBySKU(r.Context(), chi.URLParam(r, "sku"), limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, movements)
}

// handleVerify triggers a projection consistency check. With
// repair=true drifted balances are overwritten from the ledger.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	repair := r.URL.Query().Get("repair") == "true"
	report, err := h.service.Rebuild(r.Context(), repair)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrDuplicateMovement):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrDuplicate, err))
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidSKU):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
	case errors.Is(err, shared.ErrStorageUnavailable):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrRetryable, err))
	default:
		h.logger.Error("stock request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func actorFrom(r *http.Request) string {
	if actor := r.Header.Get("X-Operator"); actor != "" {
		return actor
	}
	return "api"
}
