package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ErrStoreUnavailable indicates the database dependency is not configured.
var ErrStoreUnavailable = errors.New("catalog: store unavailable")

// DB is the subset of *pgxpool.Pool used by PostgresStore.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore reads the price list from Postgres.
type PostgresStore struct {
	db DB
}

// NewPostgresStore constructs a store backed by db.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const itemQuery = `SELECT i.id, i.name, i.category_code, i.unit, i.execution_days,
       COALESCE(jsonb_object_agg(p.variant, p.price) FILTER (WHERE p.variant IS NOT NULL), '{}'::jsonb)
FROM catalog_items i
LEFT JOIN catalog_item_prices p ON p.item_id = i.id
WHERE i.id = $1
GROUP BY i.id`

const modifierColumns = `SELECT m.code, m.name, m.type, m.value, m.priority, m.active,
       COALESCE(array_agg(mc.category_code ORDER BY mc.category_code) FILTER (WHERE mc.category_code IS NOT NULL), '{}')
FROM modifiers m
LEFT JOIN modifier_categories mc ON mc.modifier_code = m.code`

// GetCatalogItem implements Lookup.
func (s *PostgresStore) GetCatalogItem(ctx context.Context, id string) (CatalogItem, error) {
	if s == nil || s.db == nil {
		return CatalogItem{}, ErrStoreUnavailable
	}
	id = strings.TrimSpace(id)
	var (
		item     CatalogItem
		category string
		unit     string
		rawPrice []byte
	)
	err := s.db.QueryRow(ctx, itemQuery, id).Scan(&item.ID, &item.Name, &category, &unit, &item.StandardExecutionDays, &rawPrice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CatalogItem{}, itemNotFound(id)
		}
		return CatalogItem{}, fmt.Errorf("query catalog item %q: %w", id, err)
	}
	item.CategoryCode = CategoryCode(category)
	item.Unit = UnitOfMeasure(unit)

	var prices map[string]int64
	if err := json.Unmarshal(rawPrice, &prices); err != nil {
		return CatalogItem{}, fmt.Errorf("decode prices of %q: %w", id, err)
	}
	item.Prices = make(map[Variant]int64, len(prices))
	for variant, price := range prices {
		item.Prices[Variant(variant)] = price
	}
	return item, nil
}

// GetModifier implements Lookup.
func (s *PostgresStore) GetModifier(ctx context.Context, code string) (Modifier, error) {
	if s == nil || s.db == nil {
		return Modifier{}, ErrStoreUnavailable
	}
	row := s.db.QueryRow(ctx, modifierColumns+` WHERE lower(m.code) = $1 GROUP BY m.code`, normalizeCode(code))
	m, err := scanModifier(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Modifier{}, modifierNotFound(code)
		}
		return Modifier{}, fmt.Errorf("query modifier %q: %w", code, err)
	}
	return m, nil
}

// GetCategory implements Lookup.
func (s *PostgresStore) GetCategory(ctx context.Context, code CategoryCode) (Category, error) {
	if s == nil || s.db == nil {
		return Category{}, ErrStoreUnavailable
	}
	c := Category{Code: code}
	err := s.db.QueryRow(ctx, `SELECT name, execution_days FROM categories WHERE code = $1`, string(code)).
		Scan(&c.Name, &c.StandardExecutionDays)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Category{}, categoryNotFound(code)
		}
		return Category{}, fmt.Errorf("query category %q: %w", code, err)
	}
	c.DiscountEligible = DiscountEligible(code)
	return c, nil
}

// ListModifiers implements ModifierLister.
func (s *PostgresStore) ListModifiers(ctx context.Context) ([]Modifier, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.db.Query(ctx, modifierColumns+` GROUP BY m.code ORDER BY m.priority, m.code`)
	if err != nil {
		return nil, fmt.Errorf("list modifiers: %w", err)
	}
	defer rows.Close()

	var out []Modifier
	for rows.Next() {
		m, err := scanModifier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	SortModifiers(out)
	return out, nil
}

func scanModifier(row pgx.Row) (Modifier, error) {
	var (
		m    Modifier
		typ  string
		cats []string
	)
	if err := row.Scan(&m.Code, &m.Name, &typ, &m.Value, &m.Priority, &m.Active, &cats); err != nil {
		return Modifier{}, err
	}
	m.Type = ModifierType(typ)
	for _, c := range cats {
		m.Categories = append(m.Categories, CategoryCode(c))
	}
	return m, nil
}

// Seed upserts the snapshot inside a single transaction. Prices and modifier
// category lists are replaced wholesale for every entry in the snapshot.
func (s *PostgresStore) Seed(ctx context.Context, snap Snapshot) error {
	if s == nil || s.db == nil {
		return ErrStoreUnavailable
	}
	items, categories, modifiers, err := snap.Build()
	if err != nil {
		return err
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	exec := func(sql string, args ...any) error {
		_, err := tx.Exec(ctx, sql, args...)
		return err
	}

	for _, c := range categories {
		if err := exec(`INSERT INTO categories (code, name, execution_days) VALUES ($1, $2, $3)
ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, execution_days = EXCLUDED.execution_days`,
			string(c.Code), c.Name, c.StandardExecutionDays); err != nil {
			return fmt.Errorf("seed category %s: %w", c.Code, err)
		}
	}
	for _, it := range items {
		if err := exec(`INSERT INTO catalog_items (id, name, category_code, unit, execution_days) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, category_code = EXCLUDED.category_code,
    unit = EXCLUDED.unit, execution_days = EXCLUDED.execution_days, updated_at = now()`,
			it.ID, it.Name, string(it.CategoryCode), string(it.Unit), it.StandardExecutionDays); err != nil {
			return fmt.Errorf("seed item %s: %w", it.ID, err)
		}
		if err := exec(`DELETE FROM catalog_item_prices WHERE item_id = $1`, it.ID); err != nil {
			return fmt.Errorf("clear prices of %s: %w", it.ID, err)
		}
		for variant, price := range it.Prices {
			if err := exec(`INSERT INTO catalog_item_prices (item_id, variant, price) VALUES ($1, $2, $3)`,
				it.ID, string(variant), price); err != nil {
				return fmt.Errorf("seed price %s/%s: %w", it.ID, variant, err)
			}
		}
	}
	for _, m := range modifiers {
		if err := exec(`INSERT INTO modifiers (code, name, type, value, priority, active) VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, type = EXCLUDED.type, value = EXCLUDED.value,
    priority = EXCLUDED.priority, active = EXCLUDED.active`,
			m.Code, m.Name, string(m.Type), m.Value, m.Priority, m.Active); err != nil {
			return fmt.Errorf("seed modifier %s: %w", m.Code, err)
		}
		if err := exec(`DELETE FROM modifier_categories WHERE modifier_code = $1`, m.Code); err != nil {
			return fmt.Errorf("clear categories of %s: %w", m.Code, err)
		}
		for _, c := range m.Categories {
			if err := exec(`INSERT INTO modifier_categories (modifier_code, category_code) VALUES ($1, $2)`,
				m.Code, string(c)); err != nil {
				return fmt.Errorf("seed modifier category %s/%s: %w", m.Code, c, err)
			}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}
