package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partslane/vendord/internal/product"
	"github.com/partslane/vendord/internal/scrape"
	"github.com/partslane/vendord/internal/search"
	"github.com/partslane/vendord/internal/vendors"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubRegistry struct {
	vendors map[string]*product.Vendor
}

func (r *stubRegistry) GetByHostname(_ context.Context, hostname string) (*product.Vendor, error) {
	return r.vendors[hostname], nil
}

func (r *stubRegistry) ListAll(_ context.Context) ([]product.Vendor, error) {
	var out []product.Vendor
	for _, v := range r.vendors {
		out = append(out, *v)
	}
	return out, nil
}

type stubCache struct {
	entries map[string]*product.CacheEntry
}

func (c *stubCache) Get(_ context.Context, id string) (*product.CacheEntry, error) {
	return c.entries[id], nil
}

func (c *stubCache) Upsert(_ context.Context, e *product.CacheEntry) error {
	c.entries[e.ID] = e
	return nil
}

func (c *stubCache) ListAll(context.Context) ([]product.CacheEntry, error) {
	var out []product.CacheEntry
	for _, e := range c.entries {
		out = append(out, *e)
	}
	return out, nil
}

type stubLocker struct{ held bool }

func (l *stubLocker) Acquire(context.Context, time.Duration) (func(context.Context) error, bool, error) {
	if l.held {
		return nil, false, nil
	}
	return func(context.Context) error { return nil }, true, nil
}

type stubEngine struct{ added int }

func (e *stubEngine) EnsureIndex(context.Context, string) error { return nil }

func (e *stubEngine) ApplySettings(context.Context, string, []string, []string, []string) error {
	return nil
}

func (e *stubEngine) AddDocuments(_ context.Context, _ string, docs []search.Document) (int64, error) {
	e.added += len(docs)
	return 7, nil
}

func (e *stubEngine) WaitForTask(context.Context, int64) error { return nil }

func healthyPing(context.Context) error { return nil }

func newTestHandlers(registry *stubRegistry, cache *stubCache, locker *stubLocker) *Handlers {
	logger := discardLogger()
	router := vendors.NewRouter(registry, &http.Client{Timeout: 5 * time.Second}, logger)
	lookup := scrape.NewService(router, cache, logger)
	sync := search.NewSync(cache, registry, &stubEngine{}, "products", logger)
	bulk := scrape.NewBulk(registry, cache, router, locker, scrape.SyncerFunc(func(context.Context) error {
		return nil
	}), logger, scrape.BulkOptions{})
	return NewHandlers(lookup, bulk, sync, PingFunc(healthyPing), PingFunc(healthyPing), logger)
}

func serve(h *Handlers, req *http.Request) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	h.Routes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestVendorLookupMissingURL(t *testing.T) {
	h := newTestHandlers(&stubRegistry{}, &stubCache{entries: map[string]*product.CacheEntry{}}, &stubLocker{})

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/vendor-lookup", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVendorLookupInvalidURL(t *testing.T) {
	h := newTestHandlers(&stubRegistry{}, &stubCache{entries: map[string]*product.CacheEntry{}}, &stubLocker{})

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/vendor-lookup?url=not-a-url", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVendorLookupCacheHit(t *testing.T) {
	vendor := &product.Vendor{ID: "v1", Name: "Shop", Type: product.TypeShopify, Hostname: "shop.example.com"}
	cached := []byte(`{"id":1,"title":"Widget","handle":"widget"}`)
	cache := &stubCache{entries: map[string]*product.CacheEntry{
		"shop.example.com:widget": {
			ID:          "shop.example.com:widget",
			ProductJSON: cached,
			VendorID:    "v1",
			UpdatedAt:   time.Now(),
		},
	}}
	h := newTestHandlers(&stubRegistry{vendors: map[string]*product.Vendor{"shop.example.com": vendor}}, cache, &stubLocker{})

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/vendor-lookup?url=https%3A%2F%2Fshop.example.com%2Fproducts%2Fwidget", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LookupResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Cached)
	assert.Equal(t, "v1", resp.Vendor.ID)
	assert.JSONEq(t, string(cached), string(resp.ProductData.Product))
}

func TestVendorLookupNotFound(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer upstream.Close()

	host := upstream.Listener.Addr().String()
	vendor := &product.Vendor{ID: "v1", Type: product.TypeShopify, Hostname: host}
	h := newTestHandlers(
		&stubRegistry{vendors: map[string]*product.Vendor{"127.0.0.1": vendor}},
		&stubCache{entries: map[string]*product.CacheEntry{}},
		&stubLocker{},
	)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/vendor-lookup?url="+upstream.URL+"/products/gone", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTriggerScrapeAccepted(t *testing.T) {
	h := newTestHandlers(&stubRegistry{}, &stubCache{entries: map[string]*product.CacheEntry{}}, &stubLocker{})

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/tasks/scrape", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp TriggerScrapeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, "started", resp.Status)
}

func TestTriggerScrapeConflict(t *testing.T) {
	h := newTestHandlers(&stubRegistry{}, &stubCache{entries: map[string]*product.CacheEntry{}}, &stubLocker{held: true})

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/tasks/scrape", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTriggerSearchSync(t *testing.T) {
	vendor := &product.Vendor{ID: "v1", Name: "Shop", Type: product.TypeShopify, Hostname: "shop.example.com"}
	cache := &stubCache{entries: map[string]*product.CacheEntry{
		"shop.example.com:widget": {
			ID:          "shop.example.com:widget",
			ProductJSON: []byte(`{"title":"Widget"}`),
			VendorID:    "v1",
			UpdatedAt:   time.Now(),
		},
	}}
	h := newTestHandlers(&stubRegistry{vendors: map[string]*product.Vendor{"shop.example.com": vendor}}, cache, &stubLocker{})

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/tasks/search-sync", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var summary search.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.True(t, summary.Success)
	assert.Equal(t, 1, summary.Indexed)
}

func TestHealth(t *testing.T) {
	h := newTestHandlers(&stubRegistry{}, &stubCache{entries: map[string]*product.CacheEntry{}}, &stubLocker{})

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestHealthDegraded(t *testing.T) {
	logger := discardLogger()
	registry := &stubRegistry{}
	cache := &stubCache{entries: map[string]*product.CacheEntry{}}
	router := vendors.NewRouter(registry, http.DefaultClient, logger)
	lookup := scrape.NewService(router, cache, logger)
	sync := search.NewSync(cache, registry, &stubEngine{}, "products", logger)
	bulk := scrape.NewBulk(registry, cache, router, &stubLocker{}, scrape.SyncerFunc(func(context.Context) error {
		return nil
	}), logger, scrape.BulkOptions{})
	failing := PingFunc(func(context.Context) error { return errors.New("connection refused") })
	h := NewHandlers(lookup, bulk, sync, failing, PingFunc(healthyPing), logger)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}
