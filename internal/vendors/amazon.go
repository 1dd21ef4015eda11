package vendors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/partslane/vendord/internal/product"
)

type Amazon struct {
	http *http.Client
}

func NewAmazon(client *http.Client) *Amazon {
	return &Amazon{http: client}
}

// forwardedHeaders are replayed from the original caller so the request looks
// like the user's own browser. Accept-Encoding is deliberately left to the
// transport, which only advertises encodings it can decode.
var forwardedHeaders = []string{"User-Agent", "Accept-Language", "Accept"}

// Lookup fetches the raw product page and parses the title and price
// fragments out of it. Amazon renders heavily dynamic pages, so only the
// stable selectors are trusted.
func (a *Amazon) Lookup(ctx context.Context, req LookupRequest) (*Result, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for _, h := range forwardedHeaders {
		if req.Forward != nil {
			if v := req.Forward.Get(h); v != "" {
				httpReq.Header.Set(h, v)
			}
		}
	}

	resp, err := a.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d fetching product page", ErrProductNotFound, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing page: %v", ErrExtractionFailed, err)
	}

	title := strings.TrimSpace(doc.Find("#productTitle").First().Text())
	whole := digitsOnly(doc.Find(".a-price-whole").First().Text())
	if title == "" || whole == "" {
		return nil, fmt.Errorf("%w: productTitle or price-whole selector missing", ErrExtractionFailed)
	}

	fraction := digitsOnly(doc.Find(".a-price-fraction").First().Text())
	if fraction == "" {
		fraction = "00"
	}

	price, err := strconv.ParseFloat(whole+"."+fraction, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: price %q.%q: %v", ErrExtractionFailed, whole, fraction, err)
	}

	unified := product.Product{
		Title: title,
		Price: &price,
		Variants: []product.Variant{
			{ID: "default", Title: "Default", Price: &price},
		},
	}

	payload, err := json.Marshal(unified)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal product: %w", err)
	}
	return &Result{Product: unified, Payload: payload}, nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
