package vendors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/partslane/vendord/internal/extract"
	"github.com/partslane/vendord/internal/product"
)

// Generic is the fallback adapter for unregistered hostnames: fetch the page
// and run the selector-fallback extractor over it.
type Generic struct {
	http *http.Client
}

func NewGeneric(client *http.Client) *Generic {
	return &Generic{http: client}
}

func (g *Generic) Lookup(ctx context.Context, req LookupRequest) (*Result, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("User-Agent", browserUserAgent)

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d fetching page", ErrUpstreamUnavailable, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing page: %v", ErrExtractionFailed, err)
	}

	data := extract.Extract(doc)
	if data.Title == "" {
		return nil, fmt.Errorf("%w: no title found by any selector", ErrExtractionFailed)
	}

	unified := product.Product{
		Title:       data.Title,
		Description: data.Description,
		Image:       data.Image,
		Currency:    data.Currency,
	}
	if price, ok := extract.ParsePrice(data.PriceText); ok {
		unified.Price = &price
	}

	// a synthetic variant only makes sense when there is something to hang
	// off it: a price or an explicit variant id in the URL
	variantID := req.URL.Query().Get("variant")
	if unified.Price != nil || variantID != "" {
		v := product.Variant{ID: "default", Title: "Default", Price: unified.Price}
		if variantID != "" {
			v.ID = variantID
		}
		unified.Variants = []product.Variant{v}
	}

	payload, err := json.Marshal(unified)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal product: %w", err)
	}
	return &Result{Product: unified, Payload: payload}, nil
}

// PseudoVendor synthesizes a vendor record for an unregistered hostname:
// strip the TLD label and title-case what remains, so "widget-store.com"
// shows up as "Widget-Store".
func PseudoVendor(hostname string) *product.Vendor {
	name := hostname
	if i := strings.LastIndex(hostname, "."); i > 0 {
		name = hostname[:i]
	}
	return &product.Vendor{
		ID:       hostname,
		Name:     titleCase(strings.ReplaceAll(name, ".", " ")),
		Type:     product.TypeGeneric,
		Hostname: hostname,
	}
}

func titleCase(s string) string {
	var b strings.Builder
	upperNext := true
	for _, r := range s {
		switch {
		case r == ' ' || r == '-' || r == '_':
			upperNext = true
			b.WriteRune(r)
		case upperNext:
			b.WriteRune(unicode.ToUpper(r))
			upperNext = false
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
