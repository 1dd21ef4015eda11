package product

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
)

// VendorType is the closed set of vendor backends the service can talk to.
type VendorType string

const (
	TypeShopify     VendorType = "shopify"
	TypeBigCommerce VendorType = "bigcommerce"
	TypeAmazon      VendorType = "amazon"
	TypeGeneric     VendorType = "generic"
)

func ParseVendorType(s string) (VendorType, error) {
	switch VendorType(s) {
	case TypeShopify, TypeBigCommerce, TypeAmazon, TypeGeneric:
		return VendorType(s), nil
	}
	return "", fmt.Errorf("unknown vendor type %q", s)
}

// Vendor is a registered vendor record. It is created by the vendor-management
// flow and read-only to this service; hostname is the join key the router uses.
type Vendor struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Type     VendorType `json:"type"`
	Hostname string     `json:"hostname"`
	Config   string     `json:"config,omitempty"`
}

// Product is the unified shape every adapter produces, regardless of the
// vendor-specific source. Title is always present; everything else is
// best-effort.
type Product struct {
	Title       string    `json:"title"`
	Handle      string    `json:"handle,omitempty"`
	Description string    `json:"description,omitempty"`
	Image       string    `json:"image,omitempty"`
	Price       *float64  `json:"price,omitempty"`
	Currency    string    `json:"currency,omitempty"`
	Variants    []Variant `json:"variants,omitempty"`
}

type Variant struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Price *float64 `json:"price,omitempty"`
}

// CacheEntry is one row of the product cache. Writes are full replaces keyed
// by ID, so concurrent writers never merge partial state.
type CacheEntry struct {
	ID          string
	ProductJSON []byte
	VendorID    string
	UpdatedAt   time.Time
}

// ShopifyHandle extracts the product handle from a Shopify product URL path:
// everything after the first "products" segment. A collections prefix is
// stripped, so /collections/sale/products/widget yields "widget".
func ShopifyHandle(u *url.URL) (string, bool) {
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, p := range parts {
		if p == "products" && i+1 < len(parts) {
			return strings.Join(parts[i+1:], "/"), true
		}
	}
	return "", false
}

// CanonicalID derives the stable cache/index key for a product URL. Shopify
// URLs key on the product handle; everything else keys on the cleaned path.
func CanonicalID(u *url.URL, t VendorType) string {
	if t == TypeShopify {
		if handle, ok := ShopifyHandle(u); ok {
			return u.Hostname() + ":" + handle
		}
	}
	p := path.Clean("/" + u.Path)
	return u.Hostname() + ":" + strings.Trim(p, "/")
}

// HandleID builds the canonical id for a catalog product whose handle is
// already known, as the bulk scraper does.
func HandleID(hostname, handle string) string {
	return hostname + ":" + strings.Trim(handle, "/")
}
