package replenish

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/timosh-design/blankstock/internal/platform/httpx"
)

// Handler wires HTTP endpoints for replenishment reports.
type Handler struct {
	logger *slog.Logger
	engine *Engine
}

// NewHandler constructs replenish handler.
func NewHandler(logger *slog.Logger, engine *Engine) *Handler {
	return &Handler{logger: logger, engine: engine}
}

// MountRoutes registers replenishment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/replenishment", h.handleReport)
	r.Get("/replenishment/at-risk", h.handleAtRisk)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.Report(r.Context())
	if err != nil {
		h.logger.Error("replenishment report failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleAtRisk(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.Report(r.Context())
	if err != nil {
		h.logger.Error("replenishment report failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	leadTime, _ := strconv.Atoi(r.URL.Query().Get("lead_time_days"))
	if leadTime <= 0 {
		leadTime = h.engine.params.LeadTimeDays
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"generated_at":   report.GeneratedAt,
		"lead_time_days": leadTime,
		"at_risk":        AtRisk(report, leadTime),
	})
}
