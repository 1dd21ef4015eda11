package vendors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/partslane/vendord/internal/product"
	"github.com/partslane/vendord/internal/ratelimit"
)

const bcCatalogPageSize = 50

var productIDPattern = regexp.MustCompile(`<input type="hidden" name="product_id" value="(\d+)"`)

const bcProductFields = `
  entityId
  name
  plainTextDescription
  path
  defaultImage {
    url(width: 80, height: 80)
  }
  availabilityV2 {
    status
  }
  prices(includeTax: false, currencyCode: USD) {
    price { value currencyCode }
    salePrice { value currencyCode }
    basePrice { value currencyCode }
    retailPrice { value currencyCode }
    mapPrice { value currencyCode }
  }
  productOptions(first: 50) {
    edges {
      node {
        entityId
        displayName
        ... on MultipleChoiceOption {
          values {
            edges {
              node { entityId label }
            }
          }
        }
      }
    }
  }
  variants(first: 50) {
    edges {
      node {
        id
        entityId
        sku
        prices {
          price { value currencyCode }
        }
        productOptions(first: 5) {
          edges {
            node {
              entityId
              displayName
              ... on MultipleChoiceOption {
                values {
                  edges {
                    node { entityId label }
                  }
                }
              }
            }
          }
        }
      }
    }
  }`

var bcProductQuery = `query productById($entityId: Int!) {
  site {
    product(entityId: $entityId) {` + bcProductFields + `
    }
  }
}`

var bcCatalogQuery = `query paginateProducts($pageSize: Int!, $cursor: String) {
  site {
    products(first: $pageSize, after: $cursor) {
      pageInfo {
        endCursor
        hasNextPage
      }
      edges {
        node {` + bcProductFields + `
        }
      }
    }
  }
}`

type BigCommerce struct {
	http   *http.Client
	logger *slog.Logger
}

func NewBigCommerce(client *http.Client, logger *slog.Logger) *BigCommerce {
	return &BigCommerce{http: client, logger: logger.With("component", "bigcommerce")}
}

// GraphQL response shapes, decoded strictly into typed structs so a missing
// field surfaces here instead of propagating into cached data.
type bcMoney struct {
	Value        float64 `json:"value"`
	CurrencyCode string  `json:"currencyCode"`
}

type bcPrices struct {
	Price       *bcMoney `json:"price"`
	SalePrice   *bcMoney `json:"salePrice"`
	BasePrice   *bcMoney `json:"basePrice"`
	RetailPrice *bcMoney `json:"retailPrice"`
	MapPrice    *bcMoney `json:"mapPrice"`
}

type bcOptionValue struct {
	EntityID int64  `json:"entityId"`
	Label    string `json:"label"`
}

type bcOption struct {
	EntityID    int64  `json:"entityId"`
	DisplayName string `json:"displayName"`
	Values      struct {
		Edges []struct {
			Node bcOptionValue `json:"node"`
		} `json:"edges"`
	} `json:"values"`
}

type bcOptionConnection struct {
	Edges []struct {
		Node bcOption `json:"node"`
	} `json:"edges"`
}

type bcVariant struct {
	ID       string `json:"id"`
	EntityID int64  `json:"entityId"`
	SKU      string `json:"sku"`
	Prices   *struct {
		Price *bcMoney `json:"price"`
	} `json:"prices"`
	ProductOptions bcOptionConnection `json:"productOptions"`
}

type bcProduct struct {
	EntityID             int64  `json:"entityId"`
	Name                 string `json:"name"`
	PlainTextDescription string `json:"plainTextDescription"`
	Path                 string `json:"path"`
	DefaultImage         *struct {
		URL string `json:"url"`
	} `json:"defaultImage"`
	Prices         *bcPrices          `json:"prices"`
	ProductOptions bcOptionConnection `json:"productOptions"`
	Variants       struct {
		Edges []struct {
			Node bcVariant `json:"node"`
		} `json:"edges"`
	} `json:"variants"`
}

type bcResponse struct {
	Data struct {
		Site struct {
			Product  *bcProduct `json:"product"`
			Products *struct {
				PageInfo struct {
					EndCursor   string `json:"endCursor"`
					HasNextPage bool   `json:"hasNextPage"`
				} `json:"pageInfo"`
				Edges []struct {
					Node bcProduct `json:"node"`
				} `json:"edges"`
			} `json:"products"`
		} `json:"site"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Lookup fetches the rendered product page to find the numeric product id,
// bootstraps a storefront session, and queries the GraphQL API for the
// product.
func (b *BigCommerce) Lookup(ctx context.Context, req LookupRequest) (*Result, error) {
	pageReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	pageReq.Header.Set("User-Agent", browserUserAgent)

	resp, err := b.http.Do(pageReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	body, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d fetching product page", ErrProductNotFound, resp.StatusCode)
	}
	if readErr != nil {
		return nil, fmt.Errorf("%w: reading product page: %v", ErrUpstreamUnavailable, readErr)
	}

	idMatch := productIDPattern.FindSubmatch(body)
	if idMatch == nil {
		return nil, fmt.Errorf("%w: no product_id input in page", ErrExtractionFailed)
	}
	entityID, err := strconv.ParseInt(string(idMatch[1]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: product_id %q: %v", ErrExtractionFailed, idMatch[1], err)
	}

	session, err := b.acquireSession(ctx, origin(req.URL))
	if err != nil {
		return nil, err
	}

	var gql bcResponse
	if err := b.query(ctx, origin(req.URL), session, bcProductQuery, map[string]any{"entityId": entityID}, &gql); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProductNotFound, err)
	}
	if gql.Data.Site.Product == nil {
		return nil, fmt.Errorf("%w: graphql returned no product for entity %d", ErrProductNotFound, entityID)
	}

	unified := mapBigCommerceProduct(*gql.Data.Site.Product)
	payload, err := json.Marshal(unified)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal product: %w", err)
	}

	return &Result{Product: unified, Payload: payload}, nil
}

// Catalog acquires one session for the whole store and pages through the
// product list with cursor pagination, emitting each product in unified form.
func (b *BigCommerce) Catalog(ctx context.Context, storeOrigin string, limiter ratelimit.Limiter, emit func(product.Product) error) error {
	session, err := b.acquireSession(ctx, storeOrigin)
	if err != nil {
		return err
	}

	var cursor *string
	for {
		vars := map[string]any{"pageSize": bcCatalogPageSize}
		if cursor != nil {
			vars["cursor"] = *cursor
		}

		gql, err := fetchWithRetry(ctx, limiter, func() (*bcResponse, error) {
			var page bcResponse
			if err := b.query(ctx, storeOrigin, session, bcCatalogQuery, vars, &page); err != nil {
				return nil, err
			}
			return &page, nil
		})
		if err != nil {
			return err
		}

		conn := gql.Data.Site.Products
		if conn == nil {
			return nil
		}
		b.logger.Debug("catalog page fetched", "products", len(conn.Edges), "has_next", conn.PageInfo.HasNextPage)

		for _, edge := range conn.Edges {
			if err := emit(mapBigCommerceProduct(edge.Node)); err != nil {
				return err
			}
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}

		if !conn.PageInfo.HasNextPage {
			return nil
		}
		next := conn.PageInfo.EndCursor
		cursor = &next
	}
}

func (b *BigCommerce) query(ctx context.Context, storeOrigin string, session *Session, query string, vars map[string]any, out *bcResponse) error {
	payload, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": vars,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, storeOrigin+"/graphql", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+session.Token)
	req.Header.Set("Cookie", session.CookieHeader)

	resp, err := b.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: graphql status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding graphql response: %v", ErrExtractionFailed, err)
	}
	if len(out.Errors) > 0 {
		return fmt.Errorf("graphql errors: %s", out.Errors[0].Message)
	}
	return nil
}

// mapBigCommerceProduct converts the GraphQL shape into the unified product.
// basePrice wins over price; a variant keys on its SKU, falling back to the
// numeric entity id; a variant's title is the first option value label,
// defaulting to "Default".
func mapBigCommerceProduct(p bcProduct) product.Product {
	unified := product.Product{
		Title:       p.Name,
		Handle:      strings.TrimPrefix(p.Path, "/"),
		Description: p.PlainTextDescription,
	}
	if unified.Handle == "" {
		unified.Handle = strconv.FormatInt(p.EntityID, 10)
	}
	if unified.Description == "" {
		unified.Description = "no description"
	}
	if p.DefaultImage != nil {
		unified.Image = p.DefaultImage.URL
	}

	if p.Prices != nil {
		switch {
		case p.Prices.BasePrice != nil:
			v := p.Prices.BasePrice.Value
			unified.Price = &v
			unified.Currency = p.Prices.BasePrice.CurrencyCode
		case p.Prices.Price != nil:
			v := p.Prices.Price.Value
			unified.Price = &v
			unified.Currency = p.Prices.Price.CurrencyCode
		}
	}

	for _, edge := range p.Variants.Edges {
		v := edge.Node
		pv := product.Variant{
			ID:    v.SKU,
			Title: "Default",
		}
		if pv.ID == "" {
			pv.ID = strconv.FormatInt(v.EntityID, 10)
		}
		if opts := v.ProductOptions.Edges; len(opts) > 0 {
			if vals := opts[0].Node.Values.Edges; len(vals) > 0 {
				pv.Title = vals[0].Node.Label
			}
		}
		if v.Prices != nil && v.Prices.Price != nil {
			price := v.Prices.Price.Value
			pv.Price = &price
		}
		unified.Variants = append(unified.Variants, pv)
	}

	return unified
}
