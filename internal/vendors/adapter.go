// Package vendors holds the per-vendor fetch/normalize adapters and the
// router that picks one for a request URL.
package vendors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/partslane/vendord/internal/product"
	"github.com/partslane/vendord/internal/ratelimit"
)

// catalogRetries bounds per-page retries of transient upstream failures
// during catalog pagination.
const catalogRetries = 3

// browserUserAgent is sent wherever a storefront blocks default library user
// agents.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// LookupRequest carries everything an adapter needs for a single-product
// fetch.
type LookupRequest struct {
	URL    *url.URL
	Vendor *product.Vendor // nil on the generic fallback path

	// Forward holds the original caller's headers; the Amazon adapter replays
	// a subset of them to reduce bot-detection friction.
	Forward http.Header
}

// Result is one normalized lookup. Payload is exactly what gets cached and
// returned to the caller: the vendor-native product JSON for Shopify, the
// unified product for everything else.
type Result struct {
	Product product.Product
	Payload json.RawMessage
}

type Adapter interface {
	Lookup(ctx context.Context, req LookupRequest) (*Result, error)
}

// Registry is the read side of the vendor registry this package needs.
type Registry interface {
	// GetByHostname returns (nil, nil) when no vendor matches; an unknown
	// hostname selects the generic path, it is not an error.
	GetByHostname(ctx context.Context, hostname string) (*product.Vendor, error)
}

// Router resolves a request URL to a registered vendor and the adapter for
// its type.
type Router struct {
	registry    Registry
	shopify     *Shopify
	bigcommerce *BigCommerce
	amazon      *Amazon
	generic     *Generic
}

func NewRouter(registry Registry, client *http.Client, logger *slog.Logger) *Router {
	return &Router{
		registry:    registry,
		shopify:     NewShopify(client),
		bigcommerce: NewBigCommerce(client, logger),
		amazon:      NewAmazon(client),
		generic:     NewGeneric(client),
	}
}

// Resolve looks the URL's hostname up in the registry. A nil vendor with a
// nil error means "unregistered": the caller should fall back to the generic
// adapter.
func (r *Router) Resolve(ctx context.Context, u *url.URL) (*product.Vendor, error) {
	return r.registry.GetByHostname(ctx, u.Hostname())
}

// Adapter dispatches on the closed vendor type set.
func (r *Router) Adapter(t product.VendorType) (Adapter, error) {
	switch t {
	case product.TypeShopify:
		return r.shopify, nil
	case product.TypeBigCommerce:
		return r.bigcommerce, nil
	case product.TypeAmazon:
		return r.amazon, nil
	case product.TypeGeneric:
		return r.generic, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedVendor, t)
}

// adaptive is implemented by limiters that adjust their gap based on
// upstream outcomes.
type adaptive interface {
	RecordSuccess()
	RecordFailure()
}

// fetchWithRetry retries transient upstream failures (rate limits, bot
// walls, outages all surface as ErrUpstreamUnavailable), stretching the
// limiter's gap when it is adaptive. Anything else fails immediately;
// a 404 in particular is never retried.
func fetchWithRetry[T any](ctx context.Context, limiter ratelimit.Limiter, fetch func() (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		v, err := fetch()
		if err == nil {
			if a, ok := limiter.(adaptive); ok {
				a.RecordSuccess()
			}
			return v, nil
		}

		if a, ok := limiter.(adaptive); ok {
			a.RecordFailure()
		}
		if attempt >= catalogRetries || !errors.Is(err, ErrUpstreamUnavailable) {
			return zero, err
		}
		if werr := limiter.Wait(ctx); werr != nil {
			return zero, werr
		}
	}
}

// Shopify returns the typed Shopify adapter for catalog pagination.
func (r *Router) Shopify() *Shopify { return r.shopify }

// BigCommerce returns the typed BigCommerce adapter for catalog pagination.
func (r *Router) BigCommerce() *BigCommerce { return r.bigcommerce }
