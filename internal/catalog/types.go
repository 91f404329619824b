package catalog

import (
	"fmt"
	"strings"

	"github.com/noah-isme/backend-laundry/internal/money"
)

// CategoryCode identifies a service category of the price list.
type CategoryCode string

// Known service categories.
const (
	CategoryClothing   CategoryCode = "CLOTHING"
	CategoryLaundry    CategoryCode = "LAUNDRY"
	CategoryIroning    CategoryCode = "IRONING"
	CategoryLeather    CategoryCode = "LEATHER"
	CategoryPadding    CategoryCode = "PADDING"
	CategoryFur        CategoryCode = "FUR"
	CategoryDyeing     CategoryCode = "DYEING"
	CategoryAdditional CategoryCode = "ADDITIONAL"
)

// Categories lists every known category code in display order.
var Categories = []CategoryCode{
	CategoryClothing,
	CategoryLaundry,
	CategoryIroning,
	CategoryLeather,
	CategoryPadding,
	CategoryFur,
	CategoryDyeing,
	CategoryAdditional,
}

// Valid reports whether c is one of the known category codes.
func (c CategoryCode) Valid() bool {
	switch c {
	case CategoryClothing, CategoryLaundry, CategoryIroning, CategoryLeather,
		CategoryPadding, CategoryFur, CategoryDyeing, CategoryAdditional:
		return true
	default:
		return false
	}
}

// ParseCategoryCode normalises raw input into a known category code.
func ParseCategoryCode(raw string) (CategoryCode, error) {
	code := CategoryCode(strings.ToUpper(strings.TrimSpace(raw)))
	if !code.Valid() {
		return "", fmt.Errorf("unknown category code %q", raw)
	}
	return code, nil
}

// DiscountEligible applies the static business rule for global discounts.
// Ironing, laundry and dyeing never take a discount.
func DiscountEligible(code CategoryCode) bool {
	switch code {
	case CategoryIroning, CategoryLaundry, CategoryDyeing:
		return false
	case CategoryClothing, CategoryLeather, CategoryPadding, CategoryFur, CategoryAdditional:
		return true
	default:
		return true
	}
}

// SupportsUrgency reports whether express turnaround can be sold for the category.
func SupportsUrgency(code CategoryCode) bool {
	switch code {
	case CategoryIroning, CategoryLaundry, CategoryDyeing:
		return false
	case CategoryClothing, CategoryLeather, CategoryPadding, CategoryFur, CategoryAdditional:
		return true
	default:
		return true
	}
}

// Variant selects which price column of a catalog item applies.
type Variant string

// Price variants. VariantBase is the documented fallback for every item.
const (
	VariantBase  Variant = "BASE"
	VariantBlack Variant = "BLACK"
	VariantColor Variant = "COLOR"
)

// Valid reports whether v is a known variant.
func (v Variant) Valid() bool {
	switch v {
	case VariantBase, VariantBlack, VariantColor:
		return true
	default:
		return false
	}
}

// VariantForColor maps a requested colour to its price variant. Black garments
// use the black column, white/natural (or unspecified) use the base column and
// every other colour uses the colour column.
func VariantForColor(color string) Variant {
	normalized := strings.ToLower(strings.TrimSpace(color))
	switch normalized {
	case "", "base", "white", "natural":
		return VariantBase
	case "black":
		return VariantBlack
	case "color", "colour":
		return VariantColor
	default:
		return VariantColor
	}
}

// UnitOfMeasure is the pricing unit of a catalog item.
type UnitOfMeasure string

// Units of measure.
const (
	UnitPiece  UnitOfMeasure = "PIECE"
	UnitKg     UnitOfMeasure = "KG"
	UnitPair   UnitOfMeasure = "PAIR"
	UnitSquare UnitOfMeasure = "SQ_M"
)

// Valid reports whether u is a known unit.
func (u UnitOfMeasure) Valid() bool {
	switch u {
	case UnitPiece, UnitKg, UnitPair, UnitSquare:
		return true
	default:
		return false
	}
}

// CatalogItem is an immutable snapshot of a price list line.
type CatalogItem struct {
	ID                    string                  `json:"id"`
	Name                  string                  `json:"name"`
	CategoryCode          CategoryCode            `json:"categoryCode"`
	Prices                map[Variant]money.Money `json:"prices"`
	Unit                  UnitOfMeasure           `json:"unit"`
	StandardExecutionDays int                     `json:"standardExecutionDays"`
}

// Price returns the dedicated unit price for v, if any.
func (c CatalogItem) Price(v Variant) (money.Money, bool) {
	p, ok := c.Prices[v]
	return p, ok
}

// Category carries the pricing rules attached to a service category.
type Category struct {
	Code                  CategoryCode `json:"code"`
	Name                  string       `json:"name"`
	DiscountEligible      bool         `json:"discountEligible"`
	StandardExecutionDays int          `json:"standardExecutionDays"`
}

// ModifierType decides how a modifier value is applied to a running subtotal.
type ModifierType string

// Modifier types.
const (
	// ModifierPercentage values are basis points of the running subtotal.
	ModifierPercentage ModifierType = "PERCENTAGE"
	// ModifierFixed values are minor units added per unit of quantity.
	ModifierFixed ModifierType = "FIXED"
	// ModifierReplace values are minor units per unit that replace the subtotal.
	ModifierReplace ModifierType = "REPLACE"
)

// Valid reports whether t is a known modifier type.
func (t ModifierType) Valid() bool {
	switch t {
	case ModifierPercentage, ModifierFixed, ModifierReplace:
		return true
	default:
		return false
	}
}

// Modifier is immutable reference data describing a price adjustment.
type Modifier struct {
	Code       string         `json:"code"`
	Name       string         `json:"name"`
	Type       ModifierType   `json:"type"`
	Value      int64          `json:"value"`
	Priority   int            `json:"priority"`
	Categories []CategoryCode `json:"categories,omitempty"`
	Active     bool           `json:"active"`
}

// Global reports whether the modifier applies to every category.
func (m Modifier) Global() bool {
	return len(m.Categories) == 0
}

// AppliesTo reports whether the modifier may be used for the category.
func (m Modifier) AppliesTo(code CategoryCode) bool {
	if m.Global() {
		return true
	}
	for _, c := range m.Categories {
		if c == code {
			return true
		}
	}
	return false
}
