package vendors

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/partslane/vendord/internal/cookie"
)

// Session is a transient BigCommerce storefront credential: a bearer token
// scraped from the rendered page plus the anti-bot cookies that were set with
// it. Tokens are short-lived and tied to the cookie session, so results are
// never cached.
type Session struct {
	Token        string
	CookieHeader string
}

// The token sits JSON-escaped inside an inline script, so the quotes around
// it are backslash-escaped in the page source.
var graphQLTokenPattern = regexp.MustCompile(`"graphQLToken\\":\\"([^"]+)\\"`)

// acquireSession fetches the storefront root with a realistic desktop user
// agent (the default library agent is blocked) and extracts the GraphQL
// bearer token and session cookies.
func (b *BigCommerce) acquireSession(ctx context.Context, storeOrigin string) (*Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, storeOrigin+"/", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d fetching storefront", ErrUpstreamUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading storefront page: %v", ErrUpstreamUnavailable, err)
	}

	m := graphQLTokenPattern.FindSubmatch(body)
	if m == nil {
		return nil, fmt.Errorf("%w: no graphQLToken in storefront page", ErrTokenExtraction)
	}

	cookies := cookie.Parse(resp.Header.Values("Set-Cookie"))
	return &Session{
		Token:        string(m[1]),
		CookieHeader: cookie.Header(cookies),
	}, nil
}
