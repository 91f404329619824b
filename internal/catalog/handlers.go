package catalog

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-laundry/internal/common"
)

// Handler exposes read-only catalog endpoints.
type Handler struct {
	lookup Lookup
}

// NewHandler constructs a Handler.
func NewHandler(lookup Lookup) *Handler {
	return &Handler{lookup: lookup}
}

// Routes mounts the catalog endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/catalog/items/{id}", h.Item)
	r.Get("/categories/{code}", h.Category)
}

// Item handles GET /api/v1/catalog/items/{id}.
func (h *Handler) Item(w http.ResponseWriter, r *http.Request) {
	item, err := h.lookup.GetCatalogItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "catalog item not found")
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": item})
}

// Category handles GET /api/v1/categories/{code}.
func (h *Handler) Category(w http.ResponseWriter, r *http.Request) {
	code, err := ParseCategoryCode(chi.URLParam(r, "code"))
	if err != nil {
		common.WriteError(w, common.ValidationError(err.Error(), nil))
		return
	}
	category, err := h.lookup.GetCategory(r.Context(), code)
	if err != nil {
		writeError(w, err, "category not found")
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": category})
}

func writeError(w http.ResponseWriter, err error, notFound string) {
	if errors.Is(err, ErrNotFound) {
		common.WriteError(w, common.NotFoundError(notFound, err))
		return
	}
	common.WriteError(w, common.NewAppError(common.CodeUnavailable, "catalog unavailable", http.StatusServiceUnavailable, err))
}
