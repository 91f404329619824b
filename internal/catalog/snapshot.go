package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Snapshot is the on-disk representation of a price list.
type Snapshot struct {
	Categories []SnapshotCategory `yaml:"categories"`
	Items      []SnapshotItem     `yaml:"items"`
	Modifiers  []SnapshotModifier `yaml:"modifiers"`
}

// SnapshotCategory is a category entry of a snapshot file.
type SnapshotCategory struct {
	Code          string `yaml:"code"`
	Name          string `yaml:"name"`
	ExecutionDays int    `yaml:"executionDays"`
}

// SnapshotItem is a catalog item entry of a snapshot file. Prices are minor units.
type SnapshotItem struct {
	ID            string           `yaml:"id"`
	Name          string           `yaml:"name"`
	Category      string           `yaml:"category"`
	Unit          string           `yaml:"unit"`
	ExecutionDays int              `yaml:"executionDays"`
	Prices        map[string]int64 `yaml:"prices"`
}

// SnapshotModifier is a modifier entry of a snapshot file.
type SnapshotModifier struct {
	Code       string   `yaml:"code"`
	Name       string   `yaml:"name"`
	Type       string   `yaml:"type"`
	Value      int64    `yaml:"value"`
	Priority   int      `yaml:"priority"`
	Categories []string `yaml:"categories"`
	Inactive   bool     `yaml:"inactive"`
}

// LoadSnapshotFile reads and validates a YAML snapshot from path.
func LoadSnapshotFile(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("open snapshot: %w", err)
	}
	defer func() { _ = f.Close() }()
	return DecodeSnapshot(f)
}

// DecodeSnapshot parses a YAML snapshot and validates its reference data.
func DecodeSnapshot(r io.Reader) (Snapshot, error) {
	var snap Snapshot
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if _, _, _, err := snap.Build(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Build converts the snapshot into domain values.
func (s Snapshot) Build() ([]CatalogItem, []Category, []Modifier, error) {
	var errs []error

	categories := make([]Category, 0, len(s.Categories))
	for _, c := range s.Categories {
		code, err := ParseCategoryCode(c.Code)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		categories = append(categories, Category{
			Code:                  code,
			Name:                  c.Name,
			DiscountEligible:      DiscountEligible(code),
			StandardExecutionDays: c.ExecutionDays,
		})
	}

	seen := make(map[string]struct{}, len(s.Items))
	items := make([]CatalogItem, 0, len(s.Items))
	for _, it := range s.Items {
		id := strings.TrimSpace(it.ID)
		if id == "" {
			errs = append(errs, errors.New("catalog item without id"))
			continue
		}
		if _, dup := seen[id]; dup {
			errs = append(errs, fmt.Errorf("duplicate catalog item %q", id))
			continue
		}
		seen[id] = struct{}{}
		code, err := ParseCategoryCode(it.Category)
		if err != nil {
			errs = append(errs, fmt.Errorf("item %q: %w", id, err))
			continue
		}
		unit := UnitOfMeasure(strings.ToUpper(strings.TrimSpace(it.Unit)))
		if unit == "" {
			unit = UnitPiece
		}
		if !unit.Valid() {
			errs = append(errs, fmt.Errorf("item %q: unknown unit %q", id, it.Unit))
			continue
		}
		prices := make(map[Variant]int64, len(it.Prices))
		for rawVariant, price := range it.Prices {
			v := Variant(strings.ToUpper(strings.TrimSpace(rawVariant)))
			if !v.Valid() {
				errs = append(errs, fmt.Errorf("item %q: unknown price variant %q", id, rawVariant))
				continue
			}
			if price < 0 {
				errs = append(errs, fmt.Errorf("item %q: negative %s price", id, v))
				continue
			}
			prices[v] = price
		}
		items = append(items, CatalogItem{
			ID:                    id,
			Name:                  it.Name,
			CategoryCode:          code,
			Prices:                prices,
			Unit:                  unit,
			StandardExecutionDays: it.ExecutionDays,
		})
	}

	modifiers := make([]Modifier, 0, len(s.Modifiers))
	for _, m := range s.Modifiers {
		code := strings.TrimSpace(m.Code)
		if code == "" {
			errs = append(errs, errors.New("modifier without code"))
			continue
		}
		typ := ModifierType(strings.ToUpper(strings.TrimSpace(m.Type)))
		if !typ.Valid() {
			errs = append(errs, fmt.Errorf("modifier %q: unknown type %q", code, m.Type))
			continue
		}
		var cats []CategoryCode
		for _, raw := range m.Categories {
			c, err := ParseCategoryCode(raw)
			if err != nil {
				errs = append(errs, fmt.Errorf("modifier %q: %w", code, err))
				continue
			}
			cats = append(cats, c)
		}
		modifiers = append(modifiers, Modifier{
			Code:       code,
			Name:       m.Name,
			Type:       typ,
			Value:      m.Value,
			Priority:   m.Priority,
			Categories: cats,
			Active:     !m.Inactive,
		})
	}

	if len(errs) > 0 {
		return nil, nil, nil, fmt.Errorf("invalid snapshot: %w", errors.Join(errs...))
	}
	return items, categories, modifiers, nil
}

// Store builds a MemoryStore from the snapshot.
func (s Snapshot) Store() (*MemoryStore, error) {
	items, categories, modifiers, err := s.Build()
	if err != nil {
		return nil, err
	}
	return NewMemoryStore(items, categories, modifiers), nil
}
