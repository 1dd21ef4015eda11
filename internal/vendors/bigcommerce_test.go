package vendors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partslane/vendord/internal/product"
	"github.com/partslane/vendord/internal/ratelimit"
)

const bcStorefrontHTML = `<html><head><script>
window.stencilBootstrap = JSON.parse("{\"graphQLToken\":\"tok-abc-123\",\"other\":1}");
</script></head><body></body></html>`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bcProductNode(entityID int, name string) map[string]any {
	return map[string]any{
		"entityId": entityID,
		"name":     name,
		"path":     fmt.Sprintf("/%s/", strings.ToLower(name)),
		"defaultImage": map[string]any{
			"url": "https://cdn.example.com/img.png",
		},
		"prices": map[string]any{
			"price":     map[string]any{"value": 10.5, "currencyCode": "USD"},
			"basePrice": map[string]any{"value": 12.0, "currencyCode": "USD"},
		},
		"variants": map[string]any{
			"edges": []any{
				map[string]any{"node": map[string]any{
					"id":       "gid://1",
					"entityId": 901,
					"sku":      "SKU-1",
					"prices": map[string]any{
						"price": map[string]any{"value": 10.5, "currencyCode": "USD"},
					},
					"productOptions": map[string]any{
						"edges": []any{
							map[string]any{"node": map[string]any{
								"entityId":    5,
								"displayName": "Color",
								"values": map[string]any{
									"edges": []any{
										map[string]any{"node": map[string]any{"entityId": 51, "label": "Blue"}},
									},
								},
							}},
						},
					},
				}},
			},
		},
	}
}

func newBigCommerceTestServer(t *testing.T, graphql func(w http.ResponseWriter, body map[string]any)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/graphql":
			assert.Equal(t, "Bearer tok-abc-123", r.Header.Get("Authorization"))
			assert.Contains(t, r.Header.Get("Cookie"), "SHOP_SESSION_TOKEN=sess1")
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			graphql(w, body)
		case r.URL.Path == "/":
			// session bootstrap page
			if r.Header.Get("User-Agent") == "" || strings.HasPrefix(r.Header.Get("User-Agent"), "Go-http-client") {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.Header().Add("Set-Cookie", "SHOP_SESSION_TOKEN=sess1; Path=/; HttpOnly")
			w.Header().Add("Set-Cookie", "fornax_anonymousId=anon1; Path=/")
			fmt.Fprint(w, bcStorefrontHTML)
		default:
			// rendered product page with the hidden product_id input
			fmt.Fprint(w, `<html><body><form>
				<input type="hidden" name="product_id" value="626"/>
			</form></body></html>`)
		}
	}))
}

func TestBigCommerceSession(t *testing.T) {
	srv := newBigCommerceTestServer(t, func(w http.ResponseWriter, _ map[string]any) {})
	defer srv.Close()

	b := NewBigCommerce(srv.Client(), discardLogger())
	sess, err := b.acquireSession(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "tok-abc-123", sess.Token)
	assert.Equal(t, "SHOP_SESSION_TOKEN=sess1; fornax_anonymousId=anon1", sess.CookieHeader)
}

func TestBigCommerceSessionTokenMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>no token here</body></html>")
	}))
	defer srv.Close()

	b := NewBigCommerce(srv.Client(), discardLogger())
	_, err := b.acquireSession(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrTokenExtraction)
}

func TestBigCommerceSessionUpstreamDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	b := NewBigCommerce(srv.Client(), discardLogger())
	_, err := b.acquireSession(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestBigCommerceLookup(t *testing.T) {
	srv := newBigCommerceTestServer(t, func(w http.ResponseWriter, body map[string]any) {
		vars := body["variables"].(map[string]any)
		assert.EqualValues(t, 626, vars["entityId"])
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"site": map[string]any{"product": bcProductNode(626, "Gadget")},
			},
		})
	})
	defer srv.Close()

	b := NewBigCommerce(srv.Client(), discardLogger())
	res, err := b.Lookup(context.Background(), LookupRequest{
		URL: mustParse(t, srv.URL+"/gadget/"),
	})
	require.NoError(t, err)

	p := res.Product
	assert.Equal(t, "Gadget", p.Title)
	assert.Equal(t, "gadget", strings.Trim(p.Handle, "/"))
	assert.Equal(t, "no description", p.Description)
	require.NotNil(t, p.Price)
	assert.InDelta(t, 12.0, *p.Price, 0.001) // basePrice preferred over price
	assert.Equal(t, "USD", p.Currency)

	require.Len(t, p.Variants, 1)
	assert.Equal(t, "SKU-1", p.Variants[0].ID)
	assert.Equal(t, "Blue", p.Variants[0].Title)
	require.NotNil(t, p.Variants[0].Price)
	assert.InDelta(t, 10.5, *p.Variants[0].Price, 0.001)
}

func TestBigCommerceLookupNoProduct(t *testing.T) {
	srv := newBigCommerceTestServer(t, func(w http.ResponseWriter, _ map[string]any) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"site": map[string]any{"product": nil}},
		})
	})
	defer srv.Close()

	b := NewBigCommerce(srv.Client(), discardLogger())
	_, err := b.Lookup(context.Background(), LookupRequest{
		URL: mustParse(t, srv.URL+"/gadget/"),
	})
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestBigCommerceLookupProductIDMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>no hidden input</body></html>")
	}))
	defer srv.Close()

	b := NewBigCommerce(srv.Client(), discardLogger())
	_, err := b.Lookup(context.Background(), LookupRequest{
		URL: mustParse(t, srv.URL+"/gadget/"),
	})
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

func TestBigCommerceCatalogCursorPagination(t *testing.T) {
	var cursors []any
	srv := newBigCommerceTestServer(t, func(w http.ResponseWriter, body map[string]any) {
		vars := body["variables"].(map[string]any)
		cursors = append(cursors, vars["cursor"])

		page := map[string]any{
			"pageInfo": map[string]any{"endCursor": "cur-1", "hasNextPage": true},
			"edges": []any{
				map[string]any{"node": bcProductNode(1, "One")},
				map[string]any{"node": bcProductNode(2, "Two")},
			},
		}
		if vars["cursor"] == "cur-1" {
			page = map[string]any{
				"pageInfo": map[string]any{"endCursor": "", "hasNextPage": false},
				"edges": []any{
					map[string]any{"node": bcProductNode(3, "Three")},
				},
			}
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"site": map[string]any{"products": page}},
		})
	})
	defer srv.Close()

	b := NewBigCommerce(srv.Client(), discardLogger())
	var titles []string
	err := b.Catalog(context.Background(), srv.URL, ratelimit.NewFixed(0), func(p product.Product) error {
		titles = append(titles, p.Title)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"One", "Two", "Three"}, titles)
	assert.Equal(t, []any{nil, "cur-1"}, cursors)
}
