package pricing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-laundry/internal/catalog"
	"github.com/noah-isme/backend-laundry/internal/pricing"
)

var fixedNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func fixtureStore() *catalog.MemoryStore {
	items := []catalog.CatalogItem{
		{ID: "shirt", Name: "Shirt", CategoryCode: catalog.CategoryClothing, Unit: catalog.UnitPiece,
			Prices: map[catalog.Variant]int64{catalog.VariantBase: 10_000}},
		{ID: "coat", Name: "Coat", CategoryCode: catalog.CategoryClothing, Unit: catalog.UnitPiece, StandardExecutionDays: 5,
			Prices: map[catalog.Variant]int64{catalog.VariantBase: 10_000, catalog.VariantBlack: 12_000}},
		{ID: "laundry", Name: "Laundry", CategoryCode: catalog.CategoryLaundry, Unit: catalog.UnitKg,
			Prices: map[catalog.Variant]int64{catalog.VariantBase: 5_000}},
		{ID: "leather", Name: "Leather jacket", CategoryCode: catalog.CategoryLeather, Unit: catalog.UnitPiece, StandardExecutionDays: 1,
			Prices: map[catalog.Variant]int64{catalog.VariantBase: 40_000}},
		{ID: "black-only", Name: "Black only", CategoryCode: catalog.CategoryClothing, Unit: catalog.UnitPiece,
			Prices: map[catalog.Variant]int64{catalog.VariantBlack: 9_000}},
		{ID: "sock", Name: "Sock", CategoryCode: catalog.CategoryAdditional, Unit: catalog.UnitPair,
			Prices: map[catalog.Variant]int64{catalog.VariantBase: 333}},
		{ID: "orphan", Name: "Fur hat", CategoryCode: catalog.CategoryFur, Unit: catalog.UnitPiece,
			Prices: map[catalog.Variant]int64{catalog.VariantBase: 7_000}},
	}
	categories := []catalog.Category{
		{Code: catalog.CategoryClothing, Name: "Clothing", StandardExecutionDays: 3},
		{Code: catalog.CategoryLaundry, Name: "Laundry", StandardExecutionDays: 2},
		{Code: catalog.CategoryLeather, Name: "Leather", StandardExecutionDays: 14},
		{Code: catalog.CategoryAdditional, Name: "Additional", StandardExecutionDays: 1},
	}
	clothing := []catalog.CategoryCode{catalog.CategoryClothing}
	modifiers := []catalog.Modifier{
		{Code: "tax-surcharge", Name: "Surcharge", Type: catalog.ModifierPercentage, Value: 1500, Priority: 1, Active: true},
		{Code: "child", Name: "Child size", Type: catalog.ModifierPercentage, Value: -3000, Priority: 10, Categories: clothing, Active: true},
		{Code: "manual", Name: "Manual cleaning", Type: catalog.ModifierPercentage, Value: 2000, Priority: 20, Categories: clothing, Active: true},
		{Code: "buttons", Name: "Buttons", Type: catalog.ModifierFixed, Value: 150, Priority: 50, Active: true},
		{Code: "recolor", Name: "Recolour", Type: catalog.ModifierReplace, Value: 30_000, Priority: 5,
			Categories: []catalog.CategoryCode{catalog.CategoryLeather}, Active: true},
		{Code: "legacy", Name: "Legacy", Type: catalog.ModifierPercentage, Value: 10_000, Priority: 1, Active: false},
		{Code: "big-credit", Name: "Credit", Type: catalog.ModifierFixed, Value: -20_000, Priority: 99, Active: true},
	}
	return catalog.NewMemoryStore(items, categories, modifiers)
}

var errFlaky = errors.New("catalog backend timeout")

// flakyLookup fails every lookup of the "boom" item with a transient error.
type flakyLookup struct {
	*catalog.MemoryStore
}

func (f flakyLookup) GetCatalogItem(ctx context.Context, id string) (catalog.CatalogItem, error) {
	if id == "boom" {
		return catalog.CatalogItem{}, errFlaky
	}
	return f.MemoryStore.GetCatalogItem(ctx, id)
}

func newEngine(t *testing.T) *pricing.Engine {
	t.Helper()
	return newEngineWith(t, flakyLookup{MemoryStore: fixtureStore()})
}

func newEngineWith(t *testing.T, lookup catalog.Lookup) *pricing.Engine {
	t.Helper()
	engine, err := pricing.NewEngine(pricing.Config{
		Lookup:  lookup,
		Workers: 3,
		Now:     func() time.Time { return fixedNow },
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	return engine
}

func qty(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func warningKinds(ws []pricing.Warning) []pricing.WarningKind {
	out := make([]pricing.WarningKind, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Kind)
	}
	return out
}

func TestScenarioASingleItemNoModifiers(t *testing.T) {
	item, err := newEngine(t).CalculateItem(context.Background(), pricing.ItemRequest{CatalogItemID: "shirt", Quantity: qty("1")})
	require.NoError(t, err)
	require.EqualValues(t, 10_000, item.BasePrice)
	require.EqualValues(t, 10_000, item.SubtotalAfterQuantity)
	require.EqualValues(t, 10_000, item.FinalPrice)
	require.Empty(t, item.AppliedModifiers)
	require.Empty(t, item.Warnings)
	require.True(t, item.DiscountEligible)
	require.Equal(t, "100.00 (base) * 1 (qty) = 100.00", item.Formula)
}

func TestScenarioBPercentageModifierAndUrgency(t *testing.T) {
	item, err := newEngine(t).CalculateItem(context.Background(), pricing.ItemRequest{
		CatalogItemID: "shirt",
		Quantity:      qty("2"),
		ModifierCodes: []string{"tax-surcharge"},
		UrgencyTier:   "EXPRESS_48H",
	})
	require.NoError(t, err)
	require.EqualValues(t, 20_000, item.SubtotalAfterQuantity)
	require.Len(t, item.AppliedModifiers, 1)
	require.EqualValues(t, 3_000, item.AppliedModifiers[0].Delta)
	require.EqualValues(t, 23_000, item.AppliedModifiers[0].SubtotalAfter)
	require.EqualValues(t, 23_000, item.SubtotalAfterModifiers)
	require.EqualValues(t, 11_500, item.UrgencySurcharge)
	require.EqualValues(t, 23_000, item.FinalPrice, "item urgency is not part of the item price")
	require.Equal(t, pricing.TierExpress48H, item.UrgencyTier)
	require.Equal(t, "100.00 (base) * 2 (qty) * (1 + 0.1500) [tax-surcharge] = 230.00", item.Formula)
}

func TestScenarioCCartDiscountOnEligibleItemsOnly(t *testing.T) {
	res, err := newEngine(t).CalculateCart(context.Background(), pricing.CartRequest{
		Items: []pricing.ItemRequest{
			{CatalogItemID: "shirt", Quantity: qty("2"), ModifierCodes: []string{"tax-surcharge"}},
			{CatalogItemID: "laundry", Quantity: qty("1")},
		},
		Discount: &pricing.DiscountRequest{Percent: qty("10")},
	})
	require.NoError(t, err)
	require.EqualValues(t, 28_000, res.Subtotal)
	require.NotNil(t, res.Discount)
	require.EqualValues(t, 23_000, res.Discount.EligibleAmount)
	require.EqualValues(t, 2_300, res.Discount.Amount)
	require.Equal(t, 1, res.Discount.ApplicableItemCount)
	require.EqualValues(t, 0, res.UrgencySurcharge)
	require.EqualValues(t, 25_700, res.Total)
	require.Equal(t, 2, res.Summary.ItemCount)
	require.True(t, qty("3").Equal(res.Summary.TotalQuantity))
	require.EqualValues(t, 14_000, res.Summary.AverageItemPrice)
}

func TestScenarioDBatchFaultIsolation(t *testing.T) {
	items, stats := newEngine(t).CalculateItems(context.Background(), []pricing.ItemRequest{
		{CatalogItemID: "shirt", Quantity: qty("1")},
		{CatalogItemID: "ghost", Quantity: qty("2"), Color: "black"},
		{CatalogItemID: "laundry", Quantity: qty("1")},
	})
	require.Len(t, items, 3)
	require.Equal(t, pricing.BatchStats{Total: 3, Succeeded: 2, Failed: 1}, stats)

	require.EqualValues(t, 10_000, items[0].FinalPrice)
	require.Nil(t, items[0].Error)

	ph := items[1]
	require.True(t, ph.Failed())
	require.Equal(t, "ghost", ph.CatalogItemID)
	require.True(t, qty("2").Equal(ph.Quantity))
	require.Equal(t, catalog.VariantBlack, ph.Variant)
	require.EqualValues(t, 0, ph.FinalPrice)
	require.Equal(t, pricing.CodeCatalogItemNotFound, ph.Error.Code)

	require.EqualValues(t, 5_000, items[2].FinalPrice)
}

func TestPercentageModifiersCompoundOnRunningSubtotal(t *testing.T) {
	item, err := newEngine(t).CalculateItem(context.Background(), pricing.ItemRequest{
		CatalogItemID: "shirt",
		Quantity:      qty("1"),
		ModifierCodes: []string{"manual", "child"},
	})
	require.NoError(t, err)
	require.Len(t, item.AppliedModifiers, 2)
	// priority order: child (-30%) then manual (+20% of 7000)
	require.Equal(t, "child", item.AppliedModifiers[0].Code)
	require.EqualValues(t, -3_000, item.AppliedModifiers[0].Delta)
	require.EqualValues(t, 7_000, item.AppliedModifiers[0].SubtotalAfter)
	require.Equal(t, "manual", item.AppliedModifiers[1].Code)
	require.EqualValues(t, 1_400, item.AppliedModifiers[1].Delta)
	require.EqualValues(t, 8_400, item.FinalPrice)
	require.Equal(t, "100.00 (base) * 1 (qty) * (1 - 0.3000) [child] * (1 + 0.2000) [manual] = 84.00", item.Formula)
}

func TestFixedAndReplaceModifiers(t *testing.T) {
	engine := newEngine(t)
	ctx := context.Background()

	item, err := engine.CalculateItem(ctx, pricing.ItemRequest{CatalogItemID: "shirt", Quantity: qty("2"), ModifierCodes: []string{"buttons"}})
	require.NoError(t, err)
	require.EqualValues(t, 20_300, item.FinalPrice)
	require.Equal(t, "100.00 (base) * 2 (qty) + 1.50 * 2 [buttons] = 203.00", item.Formula)

	item, err = engine.CalculateItem(ctx, pricing.ItemRequest{CatalogItemID: "leather", Quantity: qty("2"), ModifierCodes: []string{"recolor", "buttons"}})
	require.NoError(t, err)
	require.Equal(t, "recolor", item.AppliedModifiers[0].Code)
	require.EqualValues(t, -20_000, item.AppliedModifiers[0].Delta)
	require.EqualValues(t, 60_300, item.FinalPrice)
	require.Equal(t, "400.00 (base) * 2 (qty) => 300.00 * 2 [recolor] + 1.50 * 2 [buttons] = 603.00", item.Formula)
}

func TestNegativeSubtotalIsClampedToZero(t *testing.T) {
	item, err := newEngine(t).CalculateItem(context.Background(), pricing.ItemRequest{CatalogItemID: "shirt", Quantity: qty("1"), ModifierCodes: []string{"big-credit"}})
	require.NoError(t, err)
	require.EqualValues(t, -10_000, item.SubtotalAfterModifiers)
	require.EqualValues(t, 0, item.FinalPrice)
	require.Contains(t, warningKinds(item.Warnings), pricing.WarnPriceClamped)
}

func TestSoftMismatchesBecomeWarnings(t *testing.T) {
	item, err := newEngine(t).CalculateItem(context.Background(), pricing.ItemRequest{
		CatalogItemID: "laundry",
		Quantity:      qty("1"),
		ModifierCodes: []string{"manual", "ghost-mod", "legacy", "MANUAL"},
		UrgencyTier:   "express_24h",
	})
	require.NoError(t, err)
	require.EqualValues(t, 5_000, item.FinalPrice)
	require.EqualValues(t, 0, item.UrgencySurcharge)
	require.False(t, item.DiscountEligible)
	require.ElementsMatch(t, []pricing.WarningKind{
		pricing.WarnModifierNotFound,
		pricing.WarnModifierInactive,
		pricing.WarnModifierNotApplicable,
		pricing.WarnUrgencyUnsupported,
	}, warningKinds(item.Warnings))
}

func TestVariantResolution(t *testing.T) {
	engine := newEngine(t)
	ctx := context.Background()

	item, err := engine.CalculateItem(ctx, pricing.ItemRequest{CatalogItemID: "coat", Quantity: qty("1"), Color: "black"})
	require.NoError(t, err)
	require.Equal(t, catalog.VariantBlack, item.Variant)
	require.EqualValues(t, 12_000, item.FinalPrice)

	item, err = engine.CalculateItem(ctx, pricing.ItemRequest{CatalogItemID: "shirt", Quantity: qty("1"), Color: "black"})
	require.NoError(t, err)
	require.Equal(t, catalog.VariantBase, item.Variant)
	require.Equal(t, []pricing.WarningKind{pricing.WarnVariantFallback}, warningKinds(item.Warnings))

	_, err = engine.CalculateItem(ctx, pricing.ItemRequest{CatalogItemID: "black-only", Quantity: qty("1")})
	require.ErrorIs(t, err, pricing.ErrInvalidVariant)
}

func TestValidationErrors(t *testing.T) {
	engine := newEngine(t)
	ctx := context.Background()

	for _, q := range []string{"0", "-1", "10000.01", "1e16"} {
		_, err := engine.CalculateItem(ctx, pricing.ItemRequest{CatalogItemID: "shirt", Quantity: qty(q)})
		require.ErrorIs(t, err, pricing.ErrInvalidQuantity)
	}
	_, err := engine.CalculateItem(ctx, pricing.ItemRequest{CatalogItemID: " ", Quantity: qty("1")})
	require.ErrorIs(t, err, pricing.ErrInvalidRequest)

	_, err = engine.CalculateItem(ctx, pricing.ItemRequest{CatalogItemID: "shirt", Quantity: qty("1"), UrgencyTier: "SUPERFAST"})
	require.ErrorIs(t, err, pricing.ErrUnknownUrgencyTier)

	_, err = engine.CalculateItem(ctx, pricing.ItemRequest{CatalogItemID: "ghost", Quantity: qty("1")})
	require.ErrorIs(t, err, pricing.ErrCatalogItemNotFound)
	require.ErrorIs(t, err, catalog.ErrNotFound)

	_, err = engine.CalculateItem(ctx, pricing.ItemRequest{CatalogItemID: "boom", Quantity: qty("1")})
	require.ErrorIs(t, err, pricing.ErrCatalogUnavailable)
	require.ErrorIs(t, err, errFlaky)
}

func TestMissingCategoryFallsBackToDefaults(t *testing.T) {
	engine := newEngine(t)
	item, err := engine.CalculateItem(context.Background(), pricing.ItemRequest{CatalogItemID: "orphan", Quantity: qty("1")})
	require.NoError(t, err)
	require.EqualValues(t, 7_000, item.FinalPrice)
	require.True(t, item.DiscountEligible)
	require.Equal(t, []pricing.WarningKind{pricing.WarnCategoryNotFound}, warningKinds(item.Warnings))

	res, err := engine.CalculateCart(context.Background(), pricing.CartRequest{Items: []pricing.ItemRequest{{CatalogItemID: "orphan", Quantity: qty("1")}}})
	require.NoError(t, err)
	require.Equal(t, fixedNow.AddDate(0, 0, 2), res.EstimatedCompletionAt)
	require.Contains(t, warningKinds(res.Warnings), pricing.WarnCategoryNotFound)
}

func TestFractionalQuantitiesRoundHalfUp(t *testing.T) {
	engine := newEngine(t)
	item, err := engine.CalculateItem(context.Background(), pricing.ItemRequest{CatalogItemID: "laundry", Quantity: qty("1.5")})
	require.NoError(t, err)
	require.EqualValues(t, 7_500, item.FinalPrice)

	item, err = engine.CalculateItem(context.Background(), pricing.ItemRequest{CatalogItemID: "sock", Quantity: qty("1.5")})
	require.NoError(t, err)
	require.EqualValues(t, 500, item.FinalPrice)
}

func TestCalculateItemIsDeterministic(t *testing.T) {
	engine := newEngine(t)
	req := pricing.ItemRequest{CatalogItemID: "coat", Quantity: qty("3"), Color: "red", ModifierCodes: []string{"manual", "child", "buttons"}, UrgencyTier: "EXPRESS_24H"}
	first, err := engine.CalculateItem(context.Background(), req)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := engine.CalculateItem(context.Background(), req)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestFinalPriceIsMonotonicInQuantity(t *testing.T) {
	engine := newEngine(t)
	var prev int64 = -1
	for q := 1; q <= 12; q++ {
		item, err := engine.CalculateItem(context.Background(), pricing.ItemRequest{
			CatalogItemID: "sock",
			Quantity:      decimal.NewFromInt(int64(q)).Div(decimal.NewFromInt(4)),
			ModifierCodes: []string{"tax-surcharge", "buttons"},
		})
		require.NoError(t, err)
		require.GreaterOrEqual(t, item.FinalPrice, prev)
		prev = item.FinalPrice
	}
}

func TestDiscountEligibilityFollowsCategory(t *testing.T) {
	for _, code := range catalog.Categories {
		excluded := code == catalog.CategoryIroning || code == catalog.CategoryLaundry || code == catalog.CategoryDyeing
		require.Equal(t, !excluded, pricing.DiscountApplies(code), code)
	}
}

func TestBatchPreservesOrderAndLength(t *testing.T) {
	ids := []string{"shirt", "", "coat", "ghost", "laundry", "boom", "leather", "sock", "black-only", "orphan"}
	reqs := make([]pricing.ItemRequest, 0, len(ids)*3)
	for i := 0; i < 3; i++ {
		for _, id := range ids {
			reqs = append(reqs, pricing.ItemRequest{CatalogItemID: id, Quantity: qty("1")})
		}
	}
	items, stats := newEngine(t).CalculateItems(context.Background(), reqs)
	require.Len(t, items, len(reqs))
	require.Equal(t, len(reqs), stats.Succeeded+stats.Failed)
	for i, it := range items {
		require.Equal(t, reqs[i].CatalogItemID, it.CatalogItemID, "index %d", i)
	}
	require.Equal(t, pricing.CodeInvalidRequest, items[1].Error.Code)
	require.Equal(t, pricing.CodeCatalogUnavailable, items[5].Error.Code)
	require.Equal(t, pricing.CodeInvalidVariant, items[8].Error.Code)
	require.Equal(t, 12, stats.Failed)
}

func TestBatchOfNothing(t *testing.T) {
	items, stats := newEngine(t).CalculateItems(context.Background(), nil)
	require.Empty(t, items)
	require.Equal(t, pricing.BatchStats{}, stats)
}

func TestPreviewProjectsCalculatedItem(t *testing.T) {
	preview, err := newEngine(t).PreviewItem(context.Background(), pricing.ItemRequest{CatalogItemID: "shirt", Quantity: qty("2"), ModifierCodes: []string{"tax-surcharge"}})
	require.NoError(t, err)
	require.EqualValues(t, 10_000, preview.BasePrice)
	require.EqualValues(t, 23_000, preview.FinalPrice)
	require.NotEmpty(t, preview.Breakdown)
	require.Equal(t, pricing.StageResolve, preview.Breakdown[0].Stage)
	require.Equal(t, pricing.StageFinal, preview.Breakdown[len(preview.Breakdown)-1].Stage)
}

func TestNewEngineRequiresLookup(t *testing.T) {
	_, err := pricing.NewEngine(pricing.Config{})
	require.Error(t, err)
}
