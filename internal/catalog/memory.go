package catalog

import (
	"context"
	"strings"
)

// MemoryStore serves an immutable in-process snapshot of the price list.
type MemoryStore struct {
	items      map[string]CatalogItem
	modifiers  map[string]Modifier
	categories map[CategoryCode]Category
}

// NewMemoryStore copies the provided reference data into a new store.
func NewMemoryStore(items []CatalogItem, categories []Category, modifiers []Modifier) *MemoryStore {
	s := &MemoryStore{
		items:      make(map[string]CatalogItem, len(items)),
		modifiers:  make(map[string]Modifier, len(modifiers)),
		categories: make(map[CategoryCode]Category, len(categories)),
	}
	for _, it := range items {
		s.items[it.ID] = cloneItem(it)
	}
	for _, c := range categories {
		c.DiscountEligible = DiscountEligible(c.Code)
		s.categories[c.Code] = c
	}
	for _, m := range modifiers {
		s.modifiers[normalizeCode(m.Code)] = cloneModifier(m)
	}
	return s
}

// GetCatalogItem implements Lookup.
func (s *MemoryStore) GetCatalogItem(_ context.Context, id string) (CatalogItem, error) {
	it, ok := s.items[strings.TrimSpace(id)]
	if !ok {
		return CatalogItem{}, itemNotFound(id)
	}
	return cloneItem(it), nil
}

// GetModifier implements Lookup.
func (s *MemoryStore) GetModifier(_ context.Context, code string) (Modifier, error) {
	m, ok := s.modifiers[normalizeCode(code)]
	if !ok {
		return Modifier{}, modifierNotFound(code)
	}
	return cloneModifier(m), nil
}

// GetCategory implements Lookup.
func (s *MemoryStore) GetCategory(_ context.Context, code CategoryCode) (Category, error) {
	c, ok := s.categories[code]
	if !ok {
		return Category{}, categoryNotFound(code)
	}
	return c, nil
}

// ListModifiers implements ModifierLister.
func (s *MemoryStore) ListModifiers(_ context.Context) ([]Modifier, error) {
	out := make([]Modifier, 0, len(s.modifiers))
	for _, m := range s.modifiers {
		out = append(out, cloneModifier(m))
	}
	SortModifiers(out)
	return out, nil
}

// ListCategories returns every category ordered by the canonical category list.
func (s *MemoryStore) ListCategories(_ context.Context) ([]Category, error) {
	out := make([]Category, 0, len(s.categories))
	for _, code := range Categories {
		if c, ok := s.categories[code]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func normalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

func cloneItem(it CatalogItem) CatalogItem {
	prices := make(map[Variant]int64, len(it.Prices))
	for k, v := range it.Prices {
		prices[k] = v
	}
	it.Prices = prices
	return it
}

func cloneModifier(m Modifier) Modifier {
	if m.Categories != nil {
		m.Categories = append([]CategoryCode(nil), m.Categories...)
	}
	return m
}
