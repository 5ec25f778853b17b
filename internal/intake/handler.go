package intake

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/timosh-design/blankstock/internal/platform/httpx"
)

// Handler wires HTTP endpoints for unmapped item triage.
type Handler struct {
	logger *slog.Logger
	repo   *Repository
}

// NewHandler constructs intake handler.
func NewHandler(logger *slog.Logger, repo *Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers triage routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/unmapped-items", h.handleList)
	r.Post("/unmapped-items/{id}/resolve", h.handleResolve)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.repo.ListPending(r.Context(), limit)
	if err != nil {
		h.logger.Error("list unmapped items failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

type resolveRequest struct {
	Resolution string `json:"resolution"`
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid item id")
		return
	}
	var req resolveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if req.Resolution == "" || req.Resolution == "pending" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "resolution required")
		return
	}
	if err := h.repo.Resolve(r.Context(), id, req.Resolution); err != nil {
		if errors.Is(err, ErrItemNotFound) {
			httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrNotFound, err))
			return
		}
		h.logger.Error("resolve unmapped item failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id, "resolution": req.Resolution})
}
