package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-laundry/internal/pricing"
)

const catalogPath = "../../configs/catalog.yaml"

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp(strings.NewReader(stdin), &out)
	err := app.Run(append([]string{"pricecalc", "--catalog", catalogPath}, args...))
	return out.String(), err
}

func TestItemJSON(t *testing.T) {
	out, err := run(t, "", "--output", "json", "item", "--id", "coat-wool", "--qty", "2", "--color", "black", "--modifier", "manual_cleaning")
	require.NoError(t, err)

	var item pricing.CalculatedItem
	require.NoError(t, json.Unmarshal([]byte(out), &item))
	require.EqualValues(t, 11_000, item.BasePrice)
	require.EqualValues(t, 22_000, item.SubtotalAfterQuantity)
	require.EqualValues(t, 26_400, item.FinalPrice)
	require.Len(t, item.AppliedModifiers, 1)
}

func TestItemText(t *testing.T) {
	out, err := run(t, "", "item", "--id", "laundry-kg", "--qty", "1.5")
	require.NoError(t, err)
	require.Contains(t, out, "Laundry per kilogram")
	require.Contains(t, out, "75.00")
}

func TestItemErrors(t *testing.T) {
	_, err := run(t, "", "item", "--id", "coat-wool", "--qty", "two")
	require.ErrorContains(t, err, "invalid quantity")

	_, err = run(t, "", "item", "--id", "missing")
	require.ErrorIs(t, err, pricing.ErrCatalogItemNotFound)

	_, err = run(t, "", "item")
	require.Error(t, err)
}

func TestCartFromStdin(t *testing.T) {
	cart := `{"items":[{"catalogItemId":"dress-evening","quantity":1},{"catalogItemId":"laundry-kg","quantity":"2"}],"urgencyTier":"EXPRESS_48H"}`
	out, err := run(t, cart, "--output", "json", "cart", "--now", "2024-05-01T09:00:00Z")
	require.NoError(t, err)

	var res pricing.CartResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.EqualValues(t, 25_000, res.Subtotal)
	require.EqualValues(t, 12_500, res.UrgencySurcharge)
	require.EqualValues(t, 37_500, res.Total)
	require.Equal(t, time.Date(2024, 5, 3, 9, 0, 0, 0, time.UTC), res.EstimatedCompletionAt.UTC())
}

func TestCartText(t *testing.T) {
	cart := `{"items":[{"catalogItemId":"dress-evening","quantity":1}],"discount":{"type":"EVERCARD"}}`
	out, err := run(t, cart, "cart")
	require.NoError(t, err)
	require.Contains(t, out, "Discount EVERCARD")
	require.Contains(t, out, "135.00")
}

func TestCartRejectsUnknownFields(t *testing.T) {
	_, err := run(t, `{"items":[],"coupon":"X"}`, "cart")
	require.ErrorContains(t, err, "decode cart")
}

func TestModifiersForCategory(t *testing.T) {
	out, err := run(t, "", "modifiers", "--category", "leather")
	require.NoError(t, err)
	require.Contains(t, out, "leather_coloring_after_other_cleaning")
	require.Contains(t, out, "button_sewing")
	require.NotContains(t, out, "lining_repair")
	require.NotContains(t, out, "wedding_express_legacy")

	_, err = run(t, "", "modifiers", "--category", "SHOES")
	require.Error(t, err)
}

func TestTiersAndOutputValidation(t *testing.T) {
	out, err := run(t, "", "--output", "json", "tiers")
	require.NoError(t, err)
	var tiers []pricing.UrgencyTier
	require.NoError(t, json.Unmarshal([]byte(out), &tiers))
	require.Len(t, tiers, 3)

	_, err = run(t, "", "--output", "yaml", "tiers")
	require.ErrorContains(t, err, "unsupported output")
}
