// Package draft keeps in-progress carts between requests so clients can edit
// an order and re-price it without resending every line.
package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-laundry/internal/lock"
	"github.com/noah-isme/backend-laundry/internal/obs"
	"github.com/noah-isme/backend-laundry/internal/pricing"
)

const (
	keyPrefix  = "draft:v1:"
	defaultTTL = 24 * time.Hour
)

// ErrNotFound indicates the draft does not exist or has expired.
var ErrNotFound = errors.New("draft not found")

// Draft is a saved cart.
type Draft struct {
	ID        string              `json:"id"`
	Cart      pricing.CartRequest `json:"cart"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
	ExpiresAt time.Time           `json:"expiresAt"`
}

// Store persists drafts.
type Store interface {
	Create(ctx context.Context, cart pricing.CartRequest) (Draft, error)
	Get(ctx context.Context, id string) (Draft, error)
	Update(ctx context.Context, id string, cart pricing.CartRequest) (Draft, error)
	Delete(ctx context.Context, id string) error
}

// RedisStore keeps drafts as JSON documents with a sliding TTL.
type RedisStore struct {
	R      redis.UniversalClient
	TTL    time.Duration
	Now    func() time.Time
	Locker lock.Locker
}

// NewRedisStore constructs a store on client. Updates are serialised per draft.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{R: client, TTL: ttl, Locker: lock.Locker{R: client}}
}

func (s *RedisStore) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return defaultTTL
	}
	return s.TTL
}

func (s *RedisStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func key(id string) string { return keyPrefix + id }

// normalizeID accepts only canonical UUIDs so arbitrary input never reaches
// the keyspace.
func normalizeID(id string) (string, bool) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}

// Create implements Store.
func (s *RedisStore) Create(ctx context.Context, cart pricing.CartRequest) (d Draft, err error) {
	defer func() { record("create", err) }()
	if s == nil || s.R == nil {
		return Draft{}, errors.New("draft store not configured")
	}
	now := s.now()
	d = Draft{
		ID:        uuid.NewString(),
		Cart:      cart,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.ttl()),
	}
	if err := s.save(ctx, d); err != nil {
		return Draft{}, err
	}
	return d, nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, id string) (d Draft, err error) {
	defer func() { record("get", err) }()
	if s == nil || s.R == nil {
		return Draft{}, errors.New("draft store not configured")
	}
	return s.load(ctx, id)
}

// Update replaces the cart of an existing draft and refreshes its TTL.
func (s *RedisStore) Update(ctx context.Context, id string, cart pricing.CartRequest) (d Draft, err error) {
	defer func() { record("update", err) }()
	if s == nil || s.R == nil {
		return Draft{}, errors.New("draft store not configured")
	}
	norm, ok := normalizeID(id)
	if !ok {
		return Draft{}, ErrNotFound
	}
	err = s.Locker.WithLock(ctx, key(norm), 5*time.Second, func(ctx context.Context) error {
		current, err := s.load(ctx, norm)
		if err != nil {
			return err
		}
		now := s.now()
		current.Cart = cart
		current.UpdatedAt = now
		current.ExpiresAt = now.Add(s.ttl())
		if err := s.save(ctx, current); err != nil {
			return err
		}
		d = current
		return nil
	})
	if err != nil {
		return Draft{}, err
	}
	return d, nil
}

// Delete implements Store. Deleting a missing draft returns ErrNotFound.
func (s *RedisStore) Delete(ctx context.Context, id string) (err error) {
	defer func() { record("delete", err) }()
	if s == nil || s.R == nil {
		return errors.New("draft store not configured")
	}
	norm, ok := normalizeID(id)
	if !ok {
		return ErrNotFound
	}
	n, err := s.R.Del(ctx, key(norm)).Result()
	if err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) load(ctx context.Context, id string) (Draft, error) {
	norm, ok := normalizeID(id)
	if !ok {
		return Draft{}, ErrNotFound
	}
	raw, err := s.R.Get(ctx, key(norm)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Draft{}, ErrNotFound
		}
		return Draft{}, fmt.Errorf("load draft: %w", err)
	}
	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return Draft{}, fmt.Errorf("decode draft %s: %w", norm, err)
	}
	return d, nil
}

func (s *RedisStore) save(ctx context.Context, d Draft) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	if err := s.R.Set(ctx, key(d.ID), payload, s.ttl()).Err(); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

func record(op string, err error) {
	if obs.DraftOperationsTotal == nil {
		return
	}
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		result = "not_found"
	default:
		result = "error"
	}
	obs.DraftOperationsTotal.WithLabelValues(op, result).Inc()
}
