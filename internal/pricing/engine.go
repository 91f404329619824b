// Package pricing turns catalog data and order parameters into deterministic,
// auditable prices for single items, batches and carts.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/backend-laundry/internal/catalog"
	"github.com/noah-isme/backend-laundry/internal/money"
	"github.com/noah-isme/backend-laundry/internal/obs"
)

const (
	defaultWorkers       = 8
	defaultExecutionDays = 2
)

// MaxQuantity is the largest quantity a single line may carry.
const MaxQuantity = 10_000

var maxQuantity = decimal.NewFromInt(MaxQuantity)

// Config wires the engine collaborators.
type Config struct {
	Lookup catalog.Lookup
	// Workers bounds batch concurrency.
	Workers int
	// DefaultExecutionDays is the minimum turnaround in days for carts
	// without an urgency SLA.
	DefaultExecutionDays int
	Now                  func() time.Time
	Logger               zerolog.Logger
}

// Engine prices items and carts. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	lookup      catalog.Lookup
	workers     int
	defaultDays int
	now         func() time.Time
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewEngine validates cfg and constructs an Engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Lookup == nil {
		return nil, errors.New("pricing: catalog lookup is required")
	}
	e := &Engine{
		lookup:      cfg.Lookup,
		workers:     cfg.Workers,
		defaultDays: cfg.DefaultExecutionDays,
		now:         cfg.Now,
		logger:      cfg.Logger,
		tracer:      otel.Tracer("pricing"),
	}
	if e.workers <= 0 {
		e.workers = defaultWorkers
	}
	if e.defaultDays <= 0 {
		e.defaultDays = defaultExecutionDays
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e, nil
}

// CalculateItem prices a single item. Validation and catalog item lookup
// failures are returned as *ItemError; soft mismatches end up in Warnings.
func (e *Engine) CalculateItem(ctx context.Context, req ItemRequest) (CalculatedItem, error) {
	ctx, span := e.tracer.Start(ctx, "pricing.CalculateItem",
		trace.WithAttributes(attribute.String("pricing.catalog_item_id", req.CatalogItemID)))
	defer span.End()

	item, err := e.calculate(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordItem("failed", nil)
		return CalculatedItem{}, err
	}
	span.SetAttributes(attribute.Int64("pricing.final_price", item.FinalPrice))
	recordItem("ok", item.Warnings)
	return item, nil
}

// PreviewItem is a read-only projection of CalculateItem for interactive UIs.
func (e *Engine) PreviewItem(ctx context.Context, req ItemRequest) (Preview, error) {
	item, err := e.CalculateItem(ctx, req)
	if err != nil {
		return Preview{}, err
	}
	return Preview{
		BasePrice:  item.BasePrice,
		FinalPrice: item.FinalPrice,
		Breakdown:  item.Steps,
		Formula:    item.Formula,
		Warnings:   item.Warnings,
	}, nil
}

// calculate runs the fixed pipeline: resolve, base, modifiers (including
// replacing and fixed add-on modifiers), urgency, discount tag, seal.
func (e *Engine) calculate(ctx context.Context, req ItemRequest) (CalculatedItem, error) {
	id := strings.TrimSpace(req.CatalogItemID)
	if id == "" {
		return CalculatedItem{}, newError(CodeInvalidRequest, nil, "catalogItemId is required")
	}
	if !req.Quantity.IsPositive() {
		return CalculatedItem{}, newError(CodeInvalidQuantity, nil, "quantity must be greater than zero, got %s", req.Quantity)
	}
	if req.Quantity.GreaterThan(maxQuantity) {
		return CalculatedItem{}, newError(CodeInvalidQuantity, nil, "quantity must not exceed %s, got %s", maxQuantity, req.Quantity)
	}
	tier, err := ResolveTier(req.UrgencyTier)
	if err != nil {
		return CalculatedItem{}, err
	}

	// 1. resolve
	catItem, err := e.lookup.GetCatalogItem(ctx, id)
	if err != nil {
		return CalculatedItem{}, lookupError(id, err)
	}
	res := CalculatedItem{
		CatalogItemID: catItem.ID,
		Name:          catItem.Name,
		CategoryCode:  catItem.CategoryCode,
		Unit:          catItem.Unit,
		Quantity:      req.Quantity,
		Color:         req.Color,
		Material:      req.Material,
		UrgencyTier:   tier.Code,
	}
	warn := func(w Warning) { res.Warnings = append(res.Warnings, w) }

	// Turnaround and discount eligibility are category rules; the item's own
	// execution days are catalog metadata only.
	res.DiscountEligible = catalog.DiscountEligible(catItem.CategoryCode)
	category, err := e.lookup.GetCategory(ctx, catItem.CategoryCode)
	if err != nil {
		warn(Warning{Kind: WarnCategoryNotFound, Message: fmt.Sprintf("category %s unavailable, defaults applied", catItem.CategoryCode)})
		e.logger.Warn().Err(err).Str("category", string(catItem.CategoryCode)).Msg("pricing category lookup failed")
	} else {
		res.categoryKnown = true
		res.ExecutionDays = category.StandardExecutionDays
		res.DiscountEligible = category.DiscountEligible
	}

	mods, modWarnings, err := e.resolveModifiers(ctx, req.ModifierCodes)
	if err != nil {
		return CalculatedItem{}, err
	}
	res.Warnings = append(res.Warnings, modWarnings...)
	res.Steps = append(res.Steps, Step{
		Stage:  StageResolve,
		Title:  "Resolve catalog data",
		Detail: fmt.Sprintf("%s (%s), %d modifier(s) resolved", catItem.Name, catItem.CategoryCode, len(mods)),
	})

	// 2. base x quantity
	base, err := computeBase(catItem, req.Color, req.Quantity)
	if err != nil {
		return CalculatedItem{}, err
	}
	if base.warning != nil {
		warn(*base.warning)
	}
	res.Variant = base.variant
	res.BasePrice = base.unitPrice
	res.SubtotalAfterQuantity = base.subtotal
	res.Steps = append(res.Steps, Step{
		Stage:  StageBase,
		Title:  "Base price x quantity",
		Detail: fmt.Sprintf("%s (%s) * %s", money.Format(base.unitPrice), base.variant, req.Quantity),
		After:  base.subtotal,
		Delta:  base.subtotal,
	})

	// 3-5. modifiers, replacing modifiers and fixed add-ons
	applied := applyModifiers(mods, catItem.CategoryCode, req.Quantity, base.subtotal)
	res.AppliedModifiers = applied.applied
	res.SubtotalAfterModifiers = applied.subtotal
	res.Steps = append(res.Steps, applied.steps...)
	res.Warnings = append(res.Warnings, applied.warnings...)

	sealed := applied.subtotal
	if sealed < 0 {
		warn(Warning{Kind: WarnPriceClamped, Message: fmt.Sprintf("subtotal %s below zero, clamped to 0.00", money.Format(sealed))})
		sealed = 0
	}

	// 6. urgency, reported only; carts apply urgency once on the subtotal
	if tier.Expedited() {
		if catalog.SupportsUrgency(catItem.CategoryCode) {
			res.UrgencySurcharge = tier.Surcharge(sealed)
		} else {
			warn(Warning{Kind: WarnUrgencyUnsupported, Message: fmt.Sprintf("urgency %s not supported for category %s", tier.Code, catItem.CategoryCode)})
		}
		res.Steps = append(res.Steps, Step{
			Stage:  StageUrgency,
			Title:  tier.Name,
			Detail: fmt.Sprintf("+%d%% surcharge, applied at cart level", tier.SurchargePercent),
			Code:   string(tier.Code),
			Before: sealed,
			After:  sealed,
			Delta:  res.UrgencySurcharge,
		})
	}

	// 7. discount eligibility
	detail := "category excluded from global discounts"
	if res.DiscountEligible {
		detail = "eligible for global discounts at cart level"
	}
	res.Steps = append(res.Steps, Step{Stage: StageDiscount, Title: "Discount eligibility", Detail: detail, Before: sealed, After: sealed})

	// 8. seal
	res.FinalPrice = sealed
	res.Steps = append(res.Steps, Step{
		Stage:  StageFinal,
		Title:  "Final price",
		Before: applied.subtotal,
		After:  sealed,
		Delta:  sealed - applied.subtotal,
	})
	res.Formula = formula(base.unitPrice, req.Quantity, applied.terms, sealed)
	return res, nil
}

// resolveModifiers looks up the requested codes once each. Unknown codes are
// warnings; any other lookup failure fails the item.
func (e *Engine) resolveModifiers(ctx context.Context, codes []string) ([]catalog.Modifier, []Warning, error) {
	var (
		mods     []catalog.Modifier
		warnings []Warning
	)
	seen := make(map[string]struct{}, len(codes))
	for _, raw := range codes {
		code := strings.TrimSpace(raw)
		key := strings.ToLower(code)
		if code == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		m, err := e.lookup.GetModifier(ctx, code)
		switch {
		case err == nil:
			mods = append(mods, m)
		case errors.Is(err, catalog.ErrNotFound):
			warnings = append(warnings, Warning{Kind: WarnModifierNotFound, Message: fmt.Sprintf("modifier %s not found", code)})
			e.logger.Debug().Str("modifier", code).Msg("pricing modifier not found")
		default:
			return nil, nil, newError(CodeCatalogUnavailable, err, "modifier lookup for %q failed", code)
		}
	}
	return mods, warnings, nil
}

func formula(unit money.Money, qty fmt.Stringer, terms []string, final money.Money) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (base) * %s (qty)", money.Format(unit), qty)
	for _, t := range terms {
		b.WriteByte(' ')
		b.WriteString(t)
	}
	fmt.Fprintf(&b, " = %s", money.Format(final))
	return b.String()
}

func recordItem(result string, warnings []Warning) {
	if obs.PricingItemsTotal != nil {
		obs.PricingItemsTotal.WithLabelValues(result).Inc()
	}
	if obs.PricingWarningsTotal != nil {
		for _, w := range warnings {
			obs.PricingWarningsTotal.WithLabelValues(string(w.Kind)).Inc()
		}
	}
}
