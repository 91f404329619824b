package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-laundry/internal/catalog"
	"github.com/noah-isme/backend-laundry/internal/money"
)

type baseAmount struct {
	variant   catalog.Variant
	unitPrice money.Money
	subtotal  money.Money
	warning   *Warning
}

// computeBase resolves the unit price for the requested colour and scales it
// by qty. A variant without a dedicated price falls back to the BASE column
// with a warning; InvalidVariant is returned when BASE is missing too.
func computeBase(item catalog.CatalogItem, color string, qty decimal.Decimal) (baseAmount, error) {
	requested := catalog.VariantForColor(color)
	out := baseAmount{variant: requested}

	price, ok := item.Price(requested)
	if !ok && requested != catalog.VariantBase {
		price, ok = item.Price(catalog.VariantBase)
		if ok {
			out.variant = catalog.VariantBase
			out.warning = &Warning{
				Kind:    WarnVariantFallback,
				Message: fmt.Sprintf("no %s price for %s, using %s price", requested, item.ID, catalog.VariantBase),
			}
		}
	}
	if !ok {
		return baseAmount{}, newError(CodeInvalidVariant, nil, "catalog item %q has no price for variant %s", item.ID, requested)
	}
	out.unitPrice = price
	out.subtotal = money.MulQuantity(price, qty)
	return out, nil
}
