// Package api exposes the HTTP surface: the on-demand lookup endpoint, the
// task triggers, and the health check.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/partslane/vendord/internal/product"
	"github.com/partslane/vendord/internal/scrape"
	"github.com/partslane/vendord/internal/search"
	"github.com/partslane/vendord/internal/vendors"
)

// Pinger is a dependency whose liveness the health check reports.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a plain function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type Handlers struct {
	lookup *scrape.Service
	bulk   *scrape.Bulk
	sync   *search.Sync
	db     Pinger
	redis  Pinger
	logger *slog.Logger
}

func NewHandlers(lookup *scrape.Service, bulk *scrape.Bulk, sync *search.Sync, db, redis Pinger, logger *slog.Logger) *Handlers {
	return &Handlers{
		lookup: lookup,
		bulk:   bulk,
		sync:   sync,
		db:     db,
		redis:  redis,
		logger: logger,
	}
}

// Routes mounts every handler on the given router.
func (h *Handlers) Routes(r chi.Router) {
	r.Get("/vendor-lookup", h.VendorLookup)
	r.Route("/tasks", func(r chi.Router) {
		r.Post("/scrape", h.TriggerScrape)
		r.Post("/search-sync", h.TriggerSearchSync)
	})
	r.Get("/health", h.Health)
}

// LookupResponse mirrors what storefront clients expect from the lookup
// endpoint.
type LookupResponse struct {
	Vendor      *product.Vendor `json:"vendor"`
	ProductData ProductData     `json:"productData"`
	VariantID   string          `json:"variantId,omitempty"`
	Cached      bool            `json:"cached"`
}

type ProductData struct {
	Product json.RawMessage `json:"product"`
}

// VendorLookup handles GET /vendor-lookup?url=<product URL>.
func (h *Handlers) VendorLookup(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		h.respondError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}

	res, err := h.lookup.Lookup(r.Context(), rawURL, r.Header)
	if err != nil {
		h.respondLookupError(w, rawURL, err)
		return
	}

	h.respondJSON(w, http.StatusOK, LookupResponse{
		Vendor:      res.Vendor,
		ProductData: ProductData{Product: res.Product},
		VariantID:   res.VariantID,
		Cached:      res.Cached,
	})
}

func (h *Handlers) respondLookupError(w http.ResponseWriter, rawURL string, err error) {
	switch {
	case errors.Is(err, scrape.ErrInvalidURL):
		h.respondError(w, http.StatusBadRequest, "invalid product url")
	case errors.Is(err, vendors.ErrProductNotFound), errors.Is(err, vendors.ErrUpstreamUnavailable):
		h.respondError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, vendors.ErrUnsupportedVendor):
		h.respondError(w, http.StatusBadRequest, "unsupported vendor type")
	default:
		h.logger.Error("lookup failed", "url", rawURL, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to extract product data")
	}
}

// TriggerScrapeResponse acknowledges a started run.
type TriggerScrapeResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// TriggerScrape handles POST /tasks/scrape: starts a full-catalog run in the
// background and returns immediately.
func (h *Handlers) TriggerScrape(w http.ResponseWriter, r *http.Request) {
	runID, err := h.bulk.Start(r.Context())
	if err != nil {
		if errors.Is(err, scrape.ErrRunInProgress) {
			h.respondError(w, http.StatusConflict, "a scrape run is already in progress")
			return
		}
		h.logger.Error("failed to start scrape run", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to start scrape run")
		return
	}

	h.respondJSON(w, http.StatusAccepted, TriggerScrapeResponse{
		RunID:  runID,
		Status: "started",
	})
}

// TriggerSearchSync handles POST /tasks/search-sync: rebuilds the search
// index synchronously and reports the summary.
func (h *Handlers) TriggerSearchSync(w http.ResponseWriter, r *http.Request) {
	summary, err := h.sync.Run(r.Context())
	if err != nil {
		h.logger.Error("search sync failed", "error", err)
		h.respondError(w, http.StatusInternalServerError, "search sync failed")
		return
	}

	h.respondJSON(w, http.StatusOK, summary)
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{
		"database": "ok",
		"redis":    "ok",
	}
	status := http.StatusOK

	if err := h.db.Ping(r.Context()); err != nil {
		checks["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if err := h.redis.Ping(r.Context()); err != nil {
		checks["redis"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}

	h.respondJSON(w, status, map[string]interface{}{
		"status": overall,
		"checks": checks,
	})
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
