package pricing

import (
	"context"
	"errors"

	"github.com/noah-isme/backend-laundry/internal/catalog"
	"github.com/noah-isme/backend-laundry/internal/discount"
)

// ErrListingUnsupported is returned when the lookup cannot enumerate modifiers.
var ErrListingUnsupported = errors.New("pricing: catalog lookup cannot list modifiers")

// ApplicableModifiers returns the active modifiers usable for category, in
// application order.
func (e *Engine) ApplicableModifiers(ctx context.Context, category catalog.CategoryCode) ([]catalog.Modifier, error) {
	lister, ok := e.lookup.(catalog.ModifierLister)
	if !ok {
		return nil, ErrListingUnsupported
	}
	all, err := lister.ListModifiers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]catalog.Modifier, 0, len(all))
	for _, m := range all {
		if m.Active && m.AppliesTo(category) {
			out = append(out, m)
		}
	}
	catalog.SortModifiers(out)
	return out, nil
}

// DiscountTypes lists the discount programmes accepted by CalculateCart.
func DiscountTypes() []discount.Option {
	return discount.Options()
}

// DiscountApplies reports whether global discounts reach the category.
func DiscountApplies(category catalog.CategoryCode) bool {
	return discount.AppliesTo(category)
}
