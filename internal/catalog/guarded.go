package catalog

import (
	"context"
	"errors"

	"github.com/noah-isme/backend-laundry/internal/resilience"
)

// GuardedLookup retries transient lookup failures and trips a breaker when the
// backing store keeps failing. Not-found answers pass straight through.
type GuardedLookup struct {
	inner Lookup
	guard resilience.Guard
}

// NewGuardedLookup wraps inner with g. g.Permanent is set to recognise ErrNotFound.
func NewGuardedLookup(inner Lookup, g resilience.Guard) *GuardedLookup {
	g.Permanent = func(err error) bool {
		return errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled)
	}
	if g.Target == "" {
		g.Target = "catalog"
	}
	return &GuardedLookup{inner: inner, guard: g}
}

// GetCatalogItem implements Lookup.
func (g *GuardedLookup) GetCatalogItem(ctx context.Context, id string) (CatalogItem, error) {
	return resilience.Call(ctx, g.guard, func(ctx context.Context) (CatalogItem, error) {
		return g.inner.GetCatalogItem(ctx, id)
	})
}

// GetModifier implements Lookup.
func (g *GuardedLookup) GetModifier(ctx context.Context, code string) (Modifier, error) {
	return resilience.Call(ctx, g.guard, func(ctx context.Context) (Modifier, error) {
		return g.inner.GetModifier(ctx, code)
	})
}

// GetCategory implements Lookup.
func (g *GuardedLookup) GetCategory(ctx context.Context, code CategoryCode) (Category, error) {
	return resilience.Call(ctx, g.guard, func(ctx context.Context) (Category, error) {
		return g.inner.GetCategory(ctx, code)
	})
}

// ListModifiers implements ModifierLister when the inner lookup does.
func (g *GuardedLookup) ListModifiers(ctx context.Context) ([]Modifier, error) {
	lister, ok := g.inner.(ModifierLister)
	if !ok {
		return nil, errors.New("catalog: modifier listing not supported")
	}
	return resilience.Call(ctx, g.guard, lister.ListModifiers)
}
