package pricing

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/backend-laundry/internal/catalog"
)

// itemOutcome is the per-item result of a batch: exactly one of item or err.
type itemOutcome struct {
	item CalculatedItem
	err  error
}

// CalculateItems prices every request with bounded concurrency. The result has
// one entry per request in request order; failed requests become zero-priced
// placeholders carrying Error. The batch itself never fails.
func (e *Engine) CalculateItems(ctx context.Context, reqs []ItemRequest) ([]CalculatedItem, BatchStats) {
	start := time.Now()
	outcomes := make([]itemOutcome, len(reqs))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i := range reqs {
		g.Go(func() error {
			item, err := e.CalculateItem(ctx, reqs[i])
			outcomes[i] = itemOutcome{item: item, err: err}
			return nil
		})
	}
	// Closures never return an error; failures are kept per item in outcomes.
	_ = g.Wait()

	stats := BatchStats{Total: len(reqs)}
	items := make([]CalculatedItem, len(reqs))
	for i, o := range outcomes {
		if o.err != nil {
			stats.Failed++
			items[i] = placeholder(reqs[i], o.err)
			e.logger.Warn().Err(o.err).Int("index", i).Str("catalog_item_id", reqs[i].CatalogItemID).Msg("pricing item failed")
			continue
		}
		stats.Succeeded++
		items[i] = o.item
	}

	e.logger.Info().
		Int("total", stats.Total).
		Int("succeeded", stats.Succeeded).
		Int("failed", stats.Failed).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("pricing batch completed")
	return items, stats
}

func placeholder(req ItemRequest, err error) CalculatedItem {
	tier, terr := ResolveTier(req.UrgencyTier)
	if terr != nil {
		tier = UrgencyTier{Code: TierNormal}
	}
	return CalculatedItem{
		CatalogItemID: req.CatalogItemID,
		Quantity:      req.Quantity,
		Color:         req.Color,
		Variant:       catalog.VariantForColor(req.Color),
		Material:      req.Material,
		UrgencyTier:   tier.Code,
		Error:         asItemError(err),
	}
}
