package draft_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-laundry/internal/catalog"
	"github.com/noah-isme/backend-laundry/internal/common"
	"github.com/noah-isme/backend-laundry/internal/draft"
	"github.com/noah-isme/backend-laundry/internal/pricing"
)

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func newStore(t *testing.T) (*draft.RedisStore, *miniredis.Miniredis, *time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	now := t0
	store := draft.NewRedisStore(client, time.Hour)
	store.Now = func() time.Time { return now }
	return store, mr, &now
}

func sampleCart() pricing.CartRequest {
	return pricing.CartRequest{
		Items: []pricing.ItemRequest{
			{CatalogItemID: "shirt", Quantity: decimal.NewFromInt(2), ModifierCodes: []string{"starch"}},
		},
		UrgencyTier: "EXPRESS_24H",
	}
}

func TestRedisStoreLifecycle(t *testing.T) {
	store, mr, now := newStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, sampleCart())
	require.NoError(t, err)
	_, err = uuid.Parse(created.ID)
	require.NoError(t, err)
	require.Equal(t, t0, created.CreatedAt)
	require.Equal(t, t0.Add(time.Hour), created.ExpiresAt)
	require.Equal(t, time.Hour, mr.TTL("draft:v1:"+created.ID))

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)
	require.Len(t, got.Cart.Items, 1)
	require.True(t, decimal.NewFromInt(2).Equal(got.Cart.Items[0].Quantity))
	require.Equal(t, "EXPRESS_24H", got.Cart.UrgencyTier)

	*now = t0.Add(10 * time.Minute)
	mr.FastForward(10 * time.Minute)
	updated, err := store.Update(ctx, created.ID, pricing.CartRequest{
		Items: []pricing.ItemRequest{{CatalogItemID: "coat", Quantity: decimal.NewFromInt(1)}},
	})
	require.NoError(t, err)
	require.Equal(t, t0, updated.CreatedAt)
	require.Equal(t, *now, updated.UpdatedAt)
	require.Equal(t, "coat", updated.Cart.Items[0].CatalogItemID)
	require.Equal(t, time.Hour, mr.TTL("draft:v1:"+created.ID), "update slides the expiry")
	require.False(t, mr.Exists("lock:draft:v1:"+created.ID))

	require.NoError(t, store.Delete(ctx, created.ID))
	_, err = store.Get(ctx, created.ID)
	require.ErrorIs(t, err, draft.ErrNotFound)
	require.ErrorIs(t, store.Delete(ctx, created.ID), draft.ErrNotFound)
}

func TestRedisStoreExpiry(t *testing.T) {
	store, mr, _ := newStore(t)
	created, err := store.Create(context.Background(), sampleCart())
	require.NoError(t, err)

	mr.FastForward(time.Hour + time.Second)
	_, err = store.Get(context.Background(), created.ID)
	require.ErrorIs(t, err, draft.ErrNotFound)
}

func TestRedisStoreRejectsMalformedIDs(t *testing.T) {
	store, _, _ := newStore(t)
	ctx := context.Background()

	for _, id := range []string{"", "not-a-uuid", "draft:v1:*"} {
		_, err := store.Get(ctx, id)
		require.ErrorIs(t, err, draft.ErrNotFound, id)
		_, err = store.Update(ctx, id, sampleCart())
		require.ErrorIs(t, err, draft.ErrNotFound, id)
		require.ErrorIs(t, store.Delete(ctx, id), draft.ErrNotFound, id)
	}
}

func TestRedisStoreBackendDown(t *testing.T) {
	store, mr, _ := newStore(t)
	mr.Close()

	_, err := store.Create(context.Background(), sampleCart())
	require.Error(t, err)
	require.NotErrorIs(t, err, draft.ErrNotFound)
}

func newEngine(t *testing.T) *pricing.Engine {
	t.Helper()
	store := catalog.NewMemoryStore(
		[]catalog.CatalogItem{
			{ID: "shirt", Name: "Shirt", CategoryCode: catalog.CategoryClothing, Unit: catalog.UnitPiece,
				Prices: map[catalog.Variant]int64{catalog.VariantBase: 10_000}},
		},
		[]catalog.Category{{Code: catalog.CategoryClothing, Name: "Clothing", StandardExecutionDays: 3}},
		nil,
	)
	engine, err := pricing.NewEngine(pricing.Config{Lookup: store, Now: func() time.Time { return t0 }})
	require.NoError(t, err)
	return engine
}

func newRouter(t *testing.T) (http.Handler, *miniredis.Miniredis) {
	t.Helper()
	store, mr, _ := newStore(t)
	h := &draft.Handler{
		Store:     store,
		Engine:    newEngine(t),
		Validator: validator.New(),
		Idem:      &common.Idem{R: store.R, TTL: time.Minute},
		Logger:    zerolog.Nop(),
	}
	r := chi.NewRouter()
	r.Route("/api/v1", h.Routes)
	return r, mr
}

func send(t *testing.T, router http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestDraftHandlers(t *testing.T) {
	router, _ := newRouter(t)

	rec := send(t, router, http.MethodPost, "/api/v1/drafts",
		`{"items":[{"catalogItemId":"shirt","quantity":2}],"urgencyTier":"EXPRESS_24H"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Data draft.Draft `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created.Data.ID
	require.NotEmpty(t, id)

	rec = send(t, router, http.MethodGet, "/api/v1/drafts/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = send(t, router, http.MethodPost, "/api/v1/drafts/"+id+"/calculate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var calc struct {
		Data struct {
			Draft  draft.Draft        `json:"draft"`
			Result pricing.CartResult `json:"result"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &calc))
	require.EqualValues(t, 20_000, calc.Data.Result.Subtotal)
	require.EqualValues(t, 20_000, calc.Data.Result.UrgencySurcharge)
	require.EqualValues(t, 40_000, calc.Data.Result.Total)
	require.Equal(t, t0.Add(24*time.Hour), calc.Data.Result.EstimatedCompletionAt)

	rec = send(t, router, http.MethodPut, "/api/v1/drafts/"+id, `{"items":[{"catalogItemId":"shirt","quantity":1}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = send(t, router, http.MethodPost, "/api/v1/drafts/"+id+"/calculate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &calc))
	require.EqualValues(t, 10_000, calc.Data.Result.Total)

	rec = send(t, router, http.MethodDelete, "/api/v1/drafts/"+id, "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = send(t, router, http.MethodGet, "/api/v1/drafts/"+id, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDraftCalculateSurfacesPricingErrors(t *testing.T) {
	router, _ := newRouter(t)
	rec := send(t, router, http.MethodPost, "/api/v1/drafts", `{"items":[{"catalogItemId":"shirt","quantity":1}],"urgencyTier":"TOMORROW"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Data draft.Draft `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = send(t, router, http.MethodPost, "/api/v1/drafts/"+created.Data.ID+"/calculate", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), string(pricing.CodeUnknownUrgencyTier))
}

func TestDraftCreateIsIdempotent(t *testing.T) {
	router, _ := newRouter(t)
	body := `{"items":[{"catalogItemId":"shirt","quantity":1}]}`

	first := send(t, router, http.MethodPost, "/api/v1/drafts", body, "Idempotency-Key", "abc")
	require.Equal(t, http.StatusCreated, first.Code)
	second := send(t, router, http.MethodPost, "/api/v1/drafts", body, "Idempotency-Key", "abc")
	require.Equal(t, http.StatusCreated, second.Code)
	require.Equal(t, "true", second.Header().Get("Idempotent-Replay"))
	require.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestDraftHandlersRejectBadPayloads(t *testing.T) {
	router, _ := newRouter(t)

	rec := send(t, router, http.MethodPost, "/api/v1/drafts", `{"items":[],"bogus":true}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(t, router, http.MethodPut, "/api/v1/drafts/"+uuid.NewString(), `{"items":[]}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
