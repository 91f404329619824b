package pricing

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-laundry/internal/catalog"
	"github.com/noah-isme/backend-laundry/internal/common"
)

// Handler exposes the pricing operations over HTTP.
type Handler struct {
	Engine    *Engine
	Validator *validator.Validate
}

type batchRequest struct {
	Items []ItemRequest `json:"items" validate:"required,max=500"`
}

type batchResponse struct {
	Items []CalculatedItem `json:"items"`
	Stats BatchStats       `json:"stats"`
}

// Routes mounts the pricing endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/items", h.Item)
	r.Post("/items/batch", h.Batch)
	r.Post("/items/preview", h.Preview)
	r.Post("/cart", h.Cart)
	r.Get("/modifiers", h.Modifiers)
	r.Get("/urgency-tiers", h.UrgencyTiers)
	r.Get("/discount-types", h.DiscountTypes)
}

// Item handles POST /api/v1/pricing/items.
func (h *Handler) Item(w http.ResponseWriter, r *http.Request) {
	var req ItemRequest
	if err := common.DecodeJSON(r, h.Validator, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	item, err := h.Engine.CalculateItem(r.Context(), req)
	if err != nil {
		WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": item})
}

// Batch handles POST /api/v1/pricing/items/batch. Item failures are reported
// inline so the response is 200 whenever the payload itself is well formed.
func (h *Handler) Batch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := common.DecodeJSON(r, h.Validator, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	items, stats := h.Engine.CalculateItems(r.Context(), req.Items)
	common.JSON(w, http.StatusOK, map[string]any{"data": batchResponse{Items: items, Stats: stats}})
}

// Preview handles POST /api/v1/pricing/items/preview.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var req ItemRequest
	if err := common.DecodeJSON(r, h.Validator, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	preview, err := h.Engine.PreviewItem(r.Context(), req)
	if err != nil {
		WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": preview})
}

// Cart handles POST /api/v1/pricing/cart.
func (h *Handler) Cart(w http.ResponseWriter, r *http.Request) {
	var req CartRequest
	if err := common.DecodeJSON(r, h.Validator, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	res, err := h.Engine.CalculateCart(r.Context(), req)
	if err != nil {
		WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": res})
}

// Modifiers handles GET /api/v1/pricing/modifiers?category=CODE.
func (h *Handler) Modifiers(w http.ResponseWriter, r *http.Request) {
	code, err := catalog.ParseCategoryCode(r.URL.Query().Get("category"))
	if err != nil {
		common.WriteError(w, common.ValidationError(err.Error(), map[string]string{"category": "oneof"}))
		return
	}
	mods, err := h.Engine.ApplicableModifiers(r.Context(), code)
	if err != nil {
		if errors.Is(err, ErrListingUnsupported) {
			common.JSONError(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", err.Error(), nil)
			return
		}
		common.WriteError(w, common.NewAppError(common.CodeUnavailable, "catalog unavailable", http.StatusServiceUnavailable, err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": mods,
		"meta": map[string]any{"category": code, "discountEligible": DiscountApplies(code)},
	})
}

// UrgencyTiers handles GET /api/v1/pricing/urgency-tiers.
func (h *Handler) UrgencyTiers(w http.ResponseWriter, _ *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{"data": UrgencyTiers()})
}

// DiscountTypes handles GET /api/v1/pricing/discount-types.
func (h *Handler) DiscountTypes(w http.ResponseWriter, _ *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{"data": DiscountTypes()})
}

// StatusFor maps a pricing failure to its HTTP status.
func StatusFor(err error) int {
	var ie *ItemError
	if !errors.As(err, &ie) {
		return http.StatusInternalServerError
	}
	switch {
	case ie.Validation():
		return http.StatusUnprocessableEntity
	case ie.Code == CodeCatalogItemNotFound:
		return http.StatusNotFound
	case ie.Code == CodeCatalogUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders a pricing failure with its stable code.
func WriteError(w http.ResponseWriter, err error) {
	var ie *ItemError
	if !errors.As(err, &ie) {
		common.WriteError(w, err)
		return
	}
	common.WriteError(w, &common.AppError{
		Code:       string(ie.Code),
		Message:    ie.Message,
		HTTPStatus: StatusFor(ie),
		Err:        ie,
	})
}
