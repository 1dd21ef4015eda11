package vendors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/partslane/vendord/internal/extract"
	"github.com/partslane/vendord/internal/product"
	"github.com/partslane/vendord/internal/ratelimit"
)

// shopifyPageSize is the maximum page size products.json accepts; a shorter
// page signals the end of the catalog.
const shopifyPageSize = 250

type Shopify struct {
	http *http.Client
}

func NewShopify(client *http.Client) *Shopify {
	return &Shopify{http: client}
}

// ShopifyProduct is the vendor-native product shape from products.json /
// products/<handle>.json.
type ShopifyProduct struct {
	ID        int64            `json:"id"`
	Title     string           `json:"title"`
	Handle    string           `json:"handle"`
	BodyHTML  string           `json:"body_html"`
	UpdatedAt time.Time        `json:"updated_at"`
	Images    []ShopifyImage   `json:"images"`
	Variants  []ShopifyVariant `json:"variants"`
}

type ShopifyImage struct {
	Src string `json:"src"`
}

type ShopifyVariant struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Price string `json:"price"`
}

// Lookup fetches {origin}/products/{handle}.json and returns the
// vendor-native product payload; Shopify's shape is already close to the
// unified one, so no reshaping is done to what gets cached.
func (s *Shopify) Lookup(ctx context.Context, req LookupRequest) (*Result, error) {
	handle, ok := product.ShopifyHandle(req.URL)
	if !ok {
		return nil, fmt.Errorf("%w: no products segment in %q", ErrProductNotFound, req.URL.Path)
	}

	endpoint := origin(req.URL) + "/products/" + handle + ".json"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := s.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d from %s", ErrProductNotFound, resp.StatusCode, endpoint)
	}

	var envelope struct {
		Product json.RawMessage `json:"product"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: decoding product json: %v", ErrExtractionFailed, err)
	}
	if len(envelope.Product) == 0 {
		return nil, fmt.Errorf("%w: empty product payload", ErrProductNotFound)
	}

	var sp ShopifyProduct
	if err := json.Unmarshal(envelope.Product, &sp); err != nil {
		return nil, fmt.Errorf("%w: product shape: %v", ErrExtractionFailed, err)
	}

	return &Result{
		Product: mapShopifyProduct(sp),
		Payload: envelope.Product,
	}, nil
}

// CatalogPage is one raw product plus its decoded form, as emitted during
// full-catalog pagination.
type CatalogPage struct {
	Raw     json.RawMessage
	Product ShopifyProduct
}

// Catalog pages through {origin}/products.json?limit=250&page=N and emits
// every product. Pages are fetched strictly in order; the limiter throttles
// between page requests.
func (s *Shopify) Catalog(ctx context.Context, storeOrigin string, limiter ratelimit.Limiter, emit func(CatalogPage) error) error {
	for page := 1; ; page++ {
		products, err := fetchWithRetry(ctx, limiter, func() ([]json.RawMessage, error) {
			return s.fetchCatalogPage(ctx, storeOrigin, page)
		})
		if err != nil {
			return err
		}

		for _, raw := range products {
			var sp ShopifyProduct
			if err := json.Unmarshal(raw, &sp); err != nil {
				return fmt.Errorf("%w: product shape on page %d: %v", ErrExtractionFailed, page, err)
			}
			if err := emit(CatalogPage{Raw: raw, Product: sp}); err != nil {
				return err
			}
		}

		if len(products) < shopifyPageSize {
			return nil
		}
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
	}
}

func (s *Shopify) fetchCatalogPage(ctx context.Context, storeOrigin string, page int) ([]json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/products.json?limit=%d&page=%d", storeOrigin, shopifyPageSize, page)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := s.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d fetching page %d", ErrUpstreamUnavailable, resp.StatusCode, page)
	}

	var body struct {
		Products []json.RawMessage `json:"products"`
	}
	err = json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: decoding page %d: %v", ErrExtractionFailed, page, err)
	}
	return body.Products, nil
}

func mapShopifyProduct(sp ShopifyProduct) product.Product {
	p := product.Product{
		Title:       sp.Title,
		Handle:      sp.Handle,
		Description: sp.BodyHTML,
	}
	if len(sp.Images) > 0 {
		p.Image = sp.Images[0].Src
	}
	for _, v := range sp.Variants {
		pv := product.Variant{
			ID:    strconv.FormatInt(v.ID, 10),
			Title: v.Title,
		}
		if price, ok := extract.ParsePrice(v.Price); ok {
			pv.Price = &price
		}
		p.Variants = append(p.Variants, pv)
	}
	if len(p.Variants) > 0 && p.Variants[0].Price != nil {
		p.Price = p.Variants[0].Price
	}
	return p
}

func origin(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}
