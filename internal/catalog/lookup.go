// Package catalog provides the read-only price list collaborators consumed by
// the pricing engine: catalog items, categories and modifiers.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrNotFound indicates the requested catalog entity does not exist.
var ErrNotFound = errors.New("catalog: not found")

// Lookup resolves reference data by identifier. Implementations must be safe
// for concurrent use and return errors wrapping ErrNotFound for unknown ids.
type Lookup interface {
	GetCatalogItem(ctx context.Context, id string) (CatalogItem, error)
	GetModifier(ctx context.Context, code string) (Modifier, error)
	GetCategory(ctx context.Context, code CategoryCode) (Category, error)
}

// ModifierLister is implemented by lookups able to enumerate modifiers.
type ModifierLister interface {
	ListModifiers(ctx context.Context) ([]Modifier, error)
}

func itemNotFound(id string) error {
	return fmt.Errorf("catalog item %q: %w", id, ErrNotFound)
}

func modifierNotFound(code string) error {
	return fmt.Errorf("modifier %q: %w", code, ErrNotFound)
}

func categoryNotFound(code CategoryCode) error {
	return fmt.Errorf("category %q: %w", code, ErrNotFound)
}

// SortModifiers orders modifiers by priority ascending, then code.
func SortModifiers(mods []Modifier) {
	sort.SliceStable(mods, func(i, j int) bool {
		if mods[i].Priority != mods[j].Priority {
			return mods[i].Priority < mods[j].Priority
		}
		return mods[i].Code < mods[j].Code
	})
}
