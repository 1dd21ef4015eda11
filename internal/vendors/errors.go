package vendors

import "errors"

// Error taxonomy for vendor ingestion. The API layer maps these to HTTP
// status codes; the bulk scraper treats all of them as skip-and-continue.
var (
	// ErrProductNotFound: the upstream answered but had no such product.
	ErrProductNotFound = errors.New("product not found on vendor site")

	// ErrExtractionFailed: the upstream answered successfully but an expected
	// selector or pattern was absent.
	ErrExtractionFailed = errors.New("could not extract product data from page")

	// ErrUpstreamUnavailable: the vendor site could not be reached, or
	// answered with a blocking or rate-limit style status.
	ErrUpstreamUnavailable = errors.New("vendor site unavailable")

	// ErrTokenExtraction: the BigCommerce storefront page did not contain a
	// GraphQL token.
	ErrTokenExtraction = errors.New("could not extract storefront token")

	// ErrUnsupportedVendor: a registry record carries a type no adapter
	// handles.
	ErrUnsupportedVendor = errors.New("unsupported vendor type")
)
