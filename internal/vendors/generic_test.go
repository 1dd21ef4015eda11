package vendors

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partslane/vendord/internal/product"
)

func TestGenericLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head>
			<meta property="og:title" content="Hand Tool"/>
			<meta property="og:description" content="A sturdy tool"/>
			<meta property="og:image" content="https://cdn.example.com/t.png"/>
			<meta property="og:price:amount" content="24.50"/>
			<meta property="og:price:currency" content="EUR"/>
		</head><body></body></html>`)
	}))
	defer srv.Close()

	g := NewGeneric(srv.Client())
	res, err := g.Lookup(context.Background(), LookupRequest{
		URL: mustParse(t, srv.URL+"/items/hand-tool"),
	})
	require.NoError(t, err)

	p := res.Product
	assert.Equal(t, "Hand Tool", p.Title)
	assert.Equal(t, "A sturdy tool", p.Description)
	assert.Equal(t, "EUR", p.Currency)
	require.NotNil(t, p.Price)
	assert.InDelta(t, 24.50, *p.Price, 0.001)
	require.Len(t, p.Variants, 1)
	assert.Equal(t, "default", p.Variants[0].ID)
}

func TestGenericLookupNoPriceNoVariant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Just a Page</title></head><body></body></html>`)
	}))
	defer srv.Close()

	g := NewGeneric(srv.Client())
	res, err := g.Lookup(context.Background(), LookupRequest{
		URL: mustParse(t, srv.URL+"/page"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Just a Page", res.Product.Title)
	assert.Empty(t, res.Product.Variants)
}

func TestGenericLookupVariantFromQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Configurable</title></head><body></body></html>`)
	}))
	defer srv.Close()

	g := NewGeneric(srv.Client())
	res, err := g.Lookup(context.Background(), LookupRequest{
		URL: mustParse(t, srv.URL+"/page?variant=37"),
	})
	require.NoError(t, err)
	require.Len(t, res.Product.Variants, 1)
	assert.Equal(t, "37", res.Product.Variants[0].ID)
}

func TestGenericLookupNoTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>bare page</p></body></html>`)
	}))
	defer srv.Close()

	g := NewGeneric(srv.Client())
	_, err := g.Lookup(context.Background(), LookupRequest{
		URL: mustParse(t, srv.URL+"/page"),
	})
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

func TestPseudoVendor(t *testing.T) {
	tests := []struct {
		hostname string
		name     string
	}{
		{"widget-store.com", "Widget-Store"},
		{"shop.example.com", "Shop Example"},
		{"localhost", "Localhost"},
	}

	for _, tt := range tests {
		t.Run(tt.hostname, func(t *testing.T) {
			v := PseudoVendor(tt.hostname)
			assert.Equal(t, tt.name, v.Name)
			assert.Equal(t, tt.hostname, v.Hostname)
			assert.Equal(t, product.TypeGeneric, v.Type)
		})
	}
}
