package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/backend-laundry/internal/catalog"
	"github.com/noah-isme/backend-laundry/internal/discount"
	"github.com/noah-isme/backend-laundry/internal/money"
	"github.com/noah-isme/backend-laundry/internal/obs"
)

// CalculateCart prices all items, then applies one cart-level urgency
// surcharge and one global discount over the discount-eligible items.
// Item failures never fail the cart; an invalid cart urgency tier or discount
// does.
func (e *Engine) CalculateCart(ctx context.Context, req CartRequest) (CartResult, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "pricing.CalculateCart",
		trace.WithAttributes(attribute.Int("pricing.item_count", len(req.Items))))
	defer span.End()

	tier, err := ResolveTier(req.UrgencyTier)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return CartResult{}, err
	}
	rule, err := resolveDiscount(req.Discount)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return CartResult{}, err
	}

	items, stats := e.CalculateItems(ctx, req.Items)
	res := CartResult{
		Items:       items,
		UrgencyTier: tier.Code,
		// Placeholders count towards the summary with a zero price.
		Summary:     Summary{ItemCount: len(items), FailedCount: stats.Failed, TotalQuantity: decimal.Zero},
	}

	lines := make([]discount.Line, 0, len(items))
	for _, it := range items {
		res.Subtotal += it.FinalPrice
		res.Summary.TotalQuantity = res.Summary.TotalQuantity.Add(it.Quantity)
		if it.Failed() || !it.DiscountEligible {
			continue
		}
		lines = append(lines, discount.Line{Category: it.CategoryCode, Amount: it.FinalPrice})
	}

	if tier.Expedited() {
		res.UrgencySurcharge = tier.Surcharge(res.Subtotal)
		for _, it := range items {
			if !it.Failed() && !catalog.SupportsUrgency(it.CategoryCode) {
				res.Warnings = append(res.Warnings, Warning{
					Kind:    WarnUrgencyUnsupported,
					Message: fmt.Sprintf("category %s of %s is not normally expedited", it.CategoryCode, it.CatalogItemID),
				})
			}
		}
	}

	var discountAmount money.Money
	if rule.Active() {
		eligible, count := discount.EligibleSubtotal(lines)
		discountAmount = discount.Compute(eligible, rule)
		res.Discount = &AppliedDiscount{
			Type:                rule.Type,
			Percent:             rule.Percent,
			EligibleAmount:      eligible,
			ApplicableItemCount: count,
			Amount:              discountAmount,
		}
	}

	res.Total = res.Subtotal + res.UrgencySurcharge - discountAmount
	res.Summary.AverageItemPrice = money.DivRound(res.Subtotal, res.Summary.ItemCount)
	res.EstimatedCompletionAt = e.estimateCompletion(tier, items, &res.Warnings)

	span.SetAttributes(
		attribute.Int64("pricing.total", res.Total),
		attribute.Int("pricing.failed_items", stats.Failed),
	)
	if obs.PricingCartDuration != nil {
		obs.PricingCartDuration.Observe(obs.DurationMillis(time.Since(start)))
	}
	e.logger.Debug().
		Int64("subtotal", res.Subtotal).
		Int64("urgency", res.UrgencySurcharge).
		Int64("discount", discountAmount).
		Int64("total", res.Total).
		Msg("pricing cart calculated")
	return res, nil
}

// estimateCompletion uses the tier SLA when there is one, otherwise the
// longest category turnaround of the items with a floor of the default days.
func (e *Engine) estimateCompletion(tier UrgencyTier, items []CalculatedItem, warnings *[]Warning) time.Time {
	now := e.now()
	if tier.HoursToComplete > 0 {
		return now.Add(time.Duration(tier.HoursToComplete) * time.Hour)
	}
	days := e.defaultDays
	for _, it := range items {
		if it.Failed() {
			continue
		}
		if !it.categoryKnown {
			*warnings = append(*warnings, Warning{
				Kind:    WarnCategoryNotFound,
				Message: fmt.Sprintf("turnaround of %s unknown, assuming %d days", it.CatalogItemID, e.defaultDays),
			})
			e.logger.Warn().Str("catalog_item_id", it.CatalogItemID).Str("category", string(it.CategoryCode)).Msg("pricing turnaround unknown, using default")
			continue
		}
		if it.ExecutionDays > days {
			days = it.ExecutionDays
		}
	}
	return now.AddDate(0, 0, days)
}

func resolveDiscount(req *DiscountRequest) (discount.Rule, error) {
	if req == nil {
		return discount.Rule{Type: discount.None}, nil
	}
	rule, err := discount.Resolve(req.Type, req.Percent)
	if err != nil {
		return discount.Rule{}, newError(CodeInvalidDiscount, err, "%v", err)
	}
	return rule, nil
}
