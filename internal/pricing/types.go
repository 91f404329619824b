package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-laundry/internal/catalog"
	"github.com/noah-isme/backend-laundry/internal/discount"
	"github.com/noah-isme/backend-laundry/internal/money"
)

// ItemRequest asks for the price of one catalog item.
type ItemRequest struct {
	CatalogItemID string          `json:"catalogItemId" validate:"required,max=128"`
	Quantity      decimal.Decimal `json:"quantity"`
	Color         string          `json:"color,omitempty" validate:"max=32"`
	ModifierCodes []string        `json:"modifierCodes,omitempty" validate:"max=32,dive,max=64"`
	UrgencyTier   string          `json:"urgencyTier,omitempty" validate:"max=32"`
	Material      string          `json:"material,omitempty" validate:"max=64"`
}

// AppliedModifier records one modifier applied to the running subtotal.
type AppliedModifier struct {
	Code          string               `json:"code"`
	Name          string               `json:"name"`
	Type          catalog.ModifierType `json:"type"`
	Value         int64                `json:"value"`
	Delta         money.Money          `json:"delta"`
	SubtotalAfter money.Money          `json:"subtotalAfter"`
}

// Stage identifies a pipeline step in the breakdown.
type Stage string

// Pipeline stages in execution order.
const (
	StageResolve  Stage = "RESOLVE"
	StageBase     Stage = "BASE"
	StageModifier Stage = "MODIFIER"
	StageReplace  Stage = "REPLACE"
	StageAddOn    Stage = "ADD_ON"
	StageUrgency  Stage = "URGENCY"
	StageDiscount Stage = "DISCOUNT"
	StageFinal    Stage = "FINAL"
)

// Step is one line of the human-readable breakdown.
type Step struct {
	Stage  Stage       `json:"stage"`
	Title  string      `json:"title"`
	Detail string      `json:"detail,omitempty"`
	Code   string      `json:"code,omitempty"`
	Before money.Money `json:"before"`
	After  money.Money `json:"after"`
	Delta  money.Money `json:"delta"`
}

// WarningKind classifies a soft mismatch.
type WarningKind string

// Warning kinds.
const (
	WarnModifierNotFound      WarningKind = "modifier_not_found"
	WarnModifierNotApplicable WarningKind = "modifier_not_applicable"
	WarnModifierInactive      WarningKind = "modifier_inactive"
	WarnVariantFallback       WarningKind = "variant_fallback"
	WarnUrgencyUnsupported    WarningKind = "urgency_unsupported"
	WarnCategoryNotFound      WarningKind = "category_not_found"
	WarnPriceClamped          WarningKind = "price_clamped"
)

// Warning is a non-fatal note attached to a result.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
}

// CalculatedItem is the priced result of one ItemRequest. Failed items in a
// batch are zero-priced placeholders with Error set.
type CalculatedItem struct {
	CatalogItemID          string                `json:"catalogItemId"`
	Name                   string                `json:"name,omitempty"`
	CategoryCode           catalog.CategoryCode  `json:"categoryCode,omitempty"`
	Unit                   catalog.UnitOfMeasure `json:"unit,omitempty"`
	Quantity               decimal.Decimal       `json:"quantity"`
	Color                  string                `json:"color,omitempty"`
	Variant                catalog.Variant       `json:"variant"`
	Material               string                `json:"material,omitempty"`
	BasePrice              money.Money           `json:"basePrice"`
	SubtotalAfterQuantity  money.Money           `json:"subtotalAfterQuantity"`
	AppliedModifiers       []AppliedModifier     `json:"appliedModifiers"`
	SubtotalAfterModifiers money.Money           `json:"subtotalAfterModifiers"`
	UrgencyTier            TierCode              `json:"urgencyTier"`
	UrgencySurcharge       money.Money           `json:"urgencySurcharge"`
	DiscountEligible       bool                  `json:"discountEligible"`
	FinalPrice             money.Money           `json:"finalPrice"`
	ExecutionDays          int                   `json:"executionDays"`
	Steps                  []Step                `json:"steps"`
	Formula                string                `json:"formula"`
	Warnings               []Warning             `json:"warnings"`
	Error                  *ItemError            `json:"error,omitempty"`

	categoryKnown bool
}

// Failed reports whether the item is a placeholder for a failed calculation.
func (c CalculatedItem) Failed() bool {
	return c.Error != nil
}

// DiscountRequest selects a global cart discount. Percent is only read for
// CUSTOM discounts or when Type is empty.
type DiscountRequest struct {
	Type    string          `json:"type,omitempty" validate:"max=32"`
	Percent decimal.Decimal `json:"percent"`
}

// CartRequest asks for the aggregate price of several items.
type CartRequest struct {
	Items       []ItemRequest    `json:"items" validate:"max=500"`
	UrgencyTier string           `json:"urgencyTier,omitempty" validate:"max=32"`
	Discount    *DiscountRequest `json:"discount,omitempty"`
}

// AppliedDiscount records the cart-level discount.
type AppliedDiscount struct {
	Type                discount.Type   `json:"type"`
	Percent             decimal.Decimal `json:"percent"`
	EligibleAmount      money.Money     `json:"eligibleAmount"`
	ApplicableItemCount int             `json:"applicableItemCount"`
	Amount              money.Money     `json:"amount"`
}

// Summary aggregates counts over every cart line, failed placeholders
// included. FailedCount says how many of them are placeholders.
type Summary struct {
	ItemCount        int             `json:"itemCount"`
	FailedCount      int             `json:"failedCount"`
	TotalQuantity    decimal.Decimal `json:"totalQuantity"`
	AverageItemPrice money.Money     `json:"averageItemPrice"`
}

// CartResult is the outcome of CalculateCart.
type CartResult struct {
	Items                 []CalculatedItem `json:"items"`
	Subtotal              money.Money      `json:"subtotal"`
	UrgencyTier           TierCode         `json:"urgencyTier"`
	UrgencySurcharge      money.Money      `json:"urgencySurcharge"`
	Discount              *AppliedDiscount `json:"discount,omitempty"`
	Total                 money.Money      `json:"total"`
	Summary               Summary          `json:"summary"`
	EstimatedCompletionAt time.Time        `json:"estimatedCompletionAt"`
	Warnings              []Warning        `json:"warnings"`
}

// Preview is the read-only projection returned to interactive clients.
type Preview struct {
	BasePrice  money.Money `json:"basePrice"`
	FinalPrice money.Money `json:"finalPrice"`
	Breakdown  []Step      `json:"breakdown"`
	Formula    string      `json:"formula"`
	Warnings   []Warning   `json:"warnings"`
}

// BatchStats counts the outcomes of a batch.
type BatchStats struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}
