// Package search rebuilds the Meilisearch product index from the product
// cache.
package search

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/partslane/vendord/internal/product"
)

// Document is the search index document shape. The full document set is
// regenerated from the cache on every sync pass and upserted wholesale, never
// partially patched.
type Document struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Image          string   `json:"image,omitempty"`
	Price          *float64 `json:"price,omitempty"`
	Currency       string   `json:"currency,omitempty"`
	VendorID       string   `json:"vendorId"`
	VendorName     string   `json:"vendorName"`
	VendorHostname string   `json:"vendorHostname"`
	VendorType     string   `json:"vendorType"`
	VariantID      string   `json:"variantId,omitempty"`
	VariantTitle   string   `json:"variantTitle,omitempty"`
	OriginalURL    string   `json:"originalUrl"`
	UpdatedAt      int64    `json:"updatedAt"`
}

// DocumentID encodes a canonical cache id into something Meilisearch accepts
// as a primary key (alphanumerics, hyphens, underscores only; ':' and '.' in
// hostnames are out). Padding is dropped because '=' is also rejected.
func DocumentID(cacheID string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(cacheID))
}

// cachedProduct tolerates both payload shapes the cache holds: Shopify's
// native product JSON (body_html, images[], string prices) and the unified
// product written by every other adapter.
type cachedProduct struct {
	Title       string     `json:"title"`
	Handle      string     `json:"handle"`
	Description string     `json:"description"`
	BodyHTML    string     `json:"body_html"`
	Image       string     `json:"image"`
	Images      []struct {
		Src string `json:"src"`
	} `json:"images"`
	Price    *flexFloat `json:"price"`
	Currency string     `json:"currency"`
	Variants []struct {
		ID    flexString `json:"id"`
		Title string     `json:"title"`
		Price *flexFloat `json:"price"`
	} `json:"variants"`
}

// flexFloat unmarshals from a JSON number or a numeric string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid price %q: %w", s, err)
	}
	*f = flexFloat(v)
	return nil
}

// flexString unmarshals from a JSON string or number.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = flexString(data)
	return nil
}

// BuildDocument joins one cache entry with its vendor record and maps both
// into a Document.
func BuildDocument(e product.CacheEntry, v product.Vendor) (Document, error) {
	var p cachedProduct
	if err := json.Unmarshal(e.ProductJSON, &p); err != nil {
		return Document{}, fmt.Errorf("failed to decode cached product %s: %w", e.ID, err)
	}

	doc := Document{
		ID:             DocumentID(e.ID),
		Title:          p.Title,
		Description:    p.Description,
		Image:          p.Image,
		Currency:       p.Currency,
		VendorID:       v.ID,
		VendorName:     v.Name,
		VendorHostname: v.Hostname,
		VendorType:     string(v.Type),
		UpdatedAt:      e.UpdatedAt.UTC().Unix(),
	}
	if doc.Title == "" {
		doc.Title = "Unknown Product"
	}
	if doc.Description == "" {
		doc.Description = p.BodyHTML
	}
	if doc.Description == "" {
		doc.Description = "No description"
	}
	if doc.Image == "" && len(p.Images) > 0 {
		doc.Image = p.Images[0].Src
	}
	if p.Price != nil {
		price := float64(*p.Price)
		doc.Price = &price
	}
	if len(p.Variants) > 0 {
		first := p.Variants[0]
		doc.VariantID = string(first.ID)
		doc.VariantTitle = first.Title
		if doc.Price == nil && first.Price != nil {
			price := float64(*first.Price)
			doc.Price = &price
		}
	}
	doc.OriginalURL = originalURL(v, p.Handle, e.ID)

	return doc, nil
}

// originalURL reconstructs a browsable product URL from the vendor and
// handle. The cache id carries the path when the payload has no handle.
func originalURL(v product.Vendor, handle, cacheID string) string {
	if handle == "" {
		if i := strings.Index(cacheID, ":"); i >= 0 {
			handle = cacheID[i+1:]
		}
	}
	if v.Type == product.TypeShopify {
		return "https://" + v.Hostname + "/products/" + handle
	}
	return "https://" + v.Hostname + "/" + strings.TrimPrefix(handle, "/")
}
