// Package scrape orchestrates the two ingestion call patterns: on-demand
// single-URL lookup and the scheduled full-catalog bulk scrape.
package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/partslane/vendord/internal/product"
	"github.com/partslane/vendord/internal/vendors"
)

var (
	// ErrInvalidURL: the caller's url query parameter is missing or malformed.
	ErrInvalidURL = errors.New("invalid product url")

	// ErrRunInProgress: another bulk scrape holds the single-flight lock.
	ErrRunInProgress = errors.New("a scrape run is already in progress")
)

// Cache is the read/write contract the lookup path needs from the product
// cache.
type Cache interface {
	Get(ctx context.Context, id string) (*product.CacheEntry, error)
	Upsert(ctx context.Context, e *product.CacheEntry) error
}

// Result is one resolved lookup. Product carries the cached payload verbatim:
// vendor-native JSON for Shopify, the unified product otherwise.
type Result struct {
	Vendor    *product.Vendor
	Product   json.RawMessage
	VariantID string
	Cached    bool
}

// Service answers on-demand lookups: cache first, scrape on miss, generic
// extraction for unregistered hostnames.
type Service struct {
	router *vendors.Router
	cache  Cache
	logger *slog.Logger
}

func NewService(router *vendors.Router, cache Cache, logger *slog.Logger) *Service {
	return &Service{
		router: router,
		cache:  cache,
		logger: logger.With("component", "lookup"),
	}
}

func (s *Service) Lookup(ctx context.Context, rawURL string, forward http.Header) (*Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	variantID := u.Query().Get("variant")

	vendor, err := s.router.Resolve(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vendor: %w", err)
	}

	typ := product.TypeGeneric
	if vendor != nil {
		typ = vendor.Type
	}
	id := product.CanonicalID(u, typ)

	// The cache only ever holds entries for registered vendors; a cached id
	// must not trigger any outbound request.
	if vendor != nil {
		entry, err := s.cache.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to read cache: %w", err)
		}
		if entry != nil {
			s.logger.Debug("cache hit", "id", id)
			return &Result{
				Vendor:    vendor,
				Product:   json.RawMessage(entry.ProductJSON),
				VariantID: variantID,
				Cached:    true,
			}, nil
		}
	}

	adapter, err := s.router.Adapter(typ)
	if err != nil {
		return nil, err
	}

	res, err := adapter.Lookup(ctx, vendors.LookupRequest{
		URL:     u,
		Vendor:  vendor,
		Forward: forward,
	})
	if err != nil {
		// no partial cache write on failure
		return nil, err
	}

	// Only registered vendors are cached. A generic lookup has no vendors
	// row, so caching it would write the dangling vendor_id the search sync
	// treats as corruption, and the schema's foreign key rejects it anyway.
	respVendor := vendor
	if respVendor == nil {
		respVendor = vendors.PseudoVendor(u.Hostname())
	} else {
		if err := s.cache.Upsert(ctx, &product.CacheEntry{
			ID:          id,
			ProductJSON: res.Payload,
			VendorID:    vendor.ID,
			UpdatedAt:   time.Now().UTC(),
		}); err != nil {
			return nil, fmt.Errorf("failed to cache product: %w", err)
		}
	}

	s.logger.Info("product scraped", "id", id, "vendor_type", typ)
	return &Result{
		Vendor:    respVendor,
		Product:   res.Payload,
		VariantID: variantID,
		Cached:    false,
	}, nil
}
