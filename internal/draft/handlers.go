package draft

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-laundry/internal/common"
	"github.com/noah-isme/backend-laundry/internal/pricing"
)

// Handler exposes draft sessions over HTTP.
type Handler struct {
	Store     Store
	Engine    *pricing.Engine
	Validator *validator.Validate
	// Idem guards draft creation against client retries when set.
	Idem   *common.Idem
	Logger zerolog.Logger
}

type calculation struct {
	Draft  Draft              `json:"draft"`
	Result pricing.CartResult `json:"result"`
}

// Routes mounts the draft endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/drafts", func(r chi.Router) {
		create := http.Handler(http.HandlerFunc(h.Create))
		if h.Idem != nil {
			create = h.Idem.Middleware(create)
		}
		r.Method(http.MethodPost, "/", create)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Post("/{id}/calculate", h.Calculate)
	})
}

// Create handles POST /api/v1/drafts.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var cart pricing.CartRequest
	if err := common.DecodeJSON(r, h.Validator, &cart); err != nil {
		common.WriteError(w, err)
		return
	}
	d, err := h.Store.Create(r.Context(), cart)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": d})
}

// Get handles GET /api/v1/drafts/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": d})
}

// Update handles PUT /api/v1/drafts/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var cart pricing.CartRequest
	if err := common.DecodeJSON(r, h.Validator, &cart); err != nil {
		common.WriteError(w, err)
		return
	}
	d, err := h.Store.Update(r.Context(), chi.URLParam(r, "id"), cart)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": d})
}

// Delete handles DELETE /api/v1/drafts/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Calculate handles POST /api/v1/drafts/{id}/calculate.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	d, err := h.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	res, err := h.Engine.CalculateCart(r.Context(), d.Cart)
	if err != nil {
		pricing.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": calculation{Draft: d, Result: res}})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		common.WriteError(w, common.NotFoundError("draft not found", err))
		return
	}
	h.Logger.Error().Err(err).Msg("draft store failure")
	common.WriteError(w, common.NewAppError(common.CodeUnavailable, "draft store unavailable", http.StatusServiceUnavailable, err))
}
