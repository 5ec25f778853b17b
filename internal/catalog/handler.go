package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/timosh-design/blankstock/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the SKU catalog.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs catalog handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/skus", h.handleList)
	r.Post("/skus", h.handleCreate)
	r.Get("/skus/{code}", h.handleGet)
	r.Put("/skus/{code}/levels", h.handleUpdateLevels)
	r.Delete("/skus/{code}", h.handleDeactivate)
}

type createRequest struct {
	Type        string `json:"type"`
	SizeMM      int    `json:"size_mm"`
	Color       string `json:"color"`
	Name        string `json:"name"`
	MinLevel    int    `json:"min_level"`
	TargetLevel int    `json:"target_level"`
}

type levelsRequest struct {
	MinLevel    int `json:"min_level"`
	TargetLevel int `json:"target_level"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	onlyActive := r.URL.Query().Get("active") == "true"
	skus, err := h.service.List(r.Context(), onlyActive)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, skus)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	sku, err := h.service.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sku)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	sku, err := h.service.Create(r.Context(), CreateInput{
		Type:        BlankType(req.Type),
		SizeMM:      req.SizeMM,
		Color:       BlankColor(req.Color),
		Name:        req.Name,
		MinLevel:    req.MinLevel,
		TargetLevel: req.TargetLevel,
		Actor:       actorFrom(r),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sku)
}

func (h *Handler) handleUpdateLevels(w http.ResponseWriter, r *http.Request) {
	var req levelsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	sku, err := h.service.UpdateLevels(r.Context(), chi.URLParam(r, "code"), req.MinLevel, req.TargetLevel, actorFrom(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sku)
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if err := h.service.Deactivate(r.Context(), code, actorFrom(r)); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"code": code, "active": false})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var verr validator.ValidationErrors
	switch {
	case errors.As(err, &verr):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrNotFound, err))
	case errors.Is(err, ErrCodeTaken):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrDuplicate, err))
	case errors.Is(err, ErrLevelBounds), errors.Is(err, ErrInvalidCode):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
	default:
		h.logger.Error("catalog request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

// actorFrom reads the operator identity header set by the gateway.
func actorFrom(r *http.Request) string {
	if actor := r.Header.Get("X-Operator"); actor != "" {
		return actor
	}
	return "api"
}
