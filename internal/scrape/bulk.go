package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/partslane/vendord/internal/product"
	"github.com/partslane/vendord/internal/ratelimit"
	"github.com/partslane/vendord/internal/vendors"
)

// Registry is the read side of the vendor registry the bulk task iterates.
type Registry interface {
	ListAll(ctx context.Context) ([]product.Vendor, error)
}

// Locker is the single-flight guard around a run. Acquire reports ok=false
// when another run holds the lock.
type Locker interface {
	Acquire(ctx context.Context, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// Syncer is invoked synchronously as the final step of a completed run.
type Syncer interface {
	Sync(ctx context.Context) error
}

type SyncerFunc func(ctx context.Context) error

func (f SyncerFunc) Sync(ctx context.Context) error { return f(ctx) }

// Ceilings for the adaptive catalog limiters: a vendor serving block pages
// slows the loop down to these gaps at worst.
const (
	pageDelayCeiling   = 5 * time.Second
	insertDelayCeiling = time.Second
)

type BulkOptions struct {
	// PageDelay throttles Shopify page requests; InsertDelay throttles
	// BigCommerce per-product inserts.
	PageDelay   time.Duration
	InsertDelay time.Duration

	// VendorTimeout bounds one vendor's whole catalog pull so a stalled host
	// cannot wedge the run.
	VendorTimeout time.Duration

	LockTTL time.Duration

	// Scheme for outbound catalog requests; defaults to https.
	Scheme string
}

func (o *BulkOptions) withDefaults() {
	if o.PageDelay == 0 {
		o.PageDelay = 100 * time.Millisecond
	}
	if o.InsertDelay == 0 {
		o.InsertDelay = 10 * time.Millisecond
	}
	if o.VendorTimeout == 0 {
		o.VendorTimeout = 30 * time.Minute
	}
	if o.LockTTL == 0 {
		o.LockTTL = 2 * time.Hour
	}
	if o.Scheme == "" {
		o.Scheme = "https"
	}
}

// RunSummary reports one bulk scrape run. Individual vendor failures are
// recorded, not fatal.
type RunSummary struct {
	RunID    string   `json:"run_id"`
	Vendors  int      `json:"vendors"`
	Products int      `json:"products"`
	Failed   []string `json:"failed,omitempty"`
	Synced   bool     `json:"synced"`
}

// Bulk pulls every registered vendor's full catalog into the product cache,
// then triggers the search sync.
type Bulk struct {
	registry Registry
	cache    Cache
	router   *vendors.Router
	locker   Locker
	syncer   Syncer
	events   RunSink
	logger   *slog.Logger
	opts     BulkOptions
}

func NewBulk(registry Registry, cache Cache, router *vendors.Router, locker Locker, syncer Syncer, logger *slog.Logger, opts BulkOptions) *Bulk {
	opts.withDefaults()
	return &Bulk{
		registry: registry,
		cache:    cache,
		router:   router,
		locker:   locker,
		syncer:   syncer,
		logger:   logger.With("component", "bulk_scrape"),
		opts:     opts,
	}
}

// WithEvents attaches a sink that receives every finished run's summary.
func (b *Bulk) WithEvents(sink RunSink) *Bulk {
	b.events = sink
	return b
}

// Run executes one full scrape pass. Vendors are processed sequentially;
// within one vendor, pagination is strictly ordered because cursors are
// stateful.
func (b *Bulk) Run(ctx context.Context) (*RunSummary, error) {
	release, summary, err := b.begin(ctx)
	if err != nil {
		return nil, err
	}
	return b.finish(ctx, release, summary)
}

// Start acquires the run lock synchronously so lock conflicts surface to the
// caller, then runs the scrape in the background. Used by the HTTP trigger.
func (b *Bulk) Start(ctx context.Context) (string, error) {
	release, summary, err := b.begin(ctx)
	if err != nil {
		return "", err
	}

	go func() {
		bg := context.WithoutCancel(ctx)
		if _, err := b.finish(bg, release, summary); err != nil {
			b.logger.Error("background scrape run failed", "run_id", summary.RunID, "error", err)
		}
	}()
	return summary.RunID, nil
}

func (b *Bulk) begin(ctx context.Context) (func(context.Context) error, *RunSummary, error) {
	release, ok, err := b.locker.Acquire(ctx, b.opts.LockTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !ok {
		return nil, nil, ErrRunInProgress
	}

	summary := &RunSummary{RunID: uuid.New().String()}
	b.logger.Info("bulk scrape started", "run_id", summary.RunID)
	return release, summary, nil
}

func (b *Bulk) finish(ctx context.Context, release func(context.Context) error, summary *RunSummary) (*RunSummary, error) {
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			b.logger.Error("failed to release run lock", "error", err)
		}
	}()

	vendorList, err := b.registry.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list vendors: %w", err)
	}
	summary.Vendors = len(vendorList)

	for _, v := range vendorList {
		vctx, cancel := context.WithTimeout(ctx, b.opts.VendorTimeout)
		count, err := b.scrapeVendor(vctx, v)
		cancel()

		if err != nil {
			// one vendor's failure never aborts the run for the others
			b.logger.Error("vendor scrape failed", "run_id", summary.RunID,
				"vendor", v.ID, "hostname", v.Hostname, "error", err)
			summary.Failed = append(summary.Failed, v.ID)
			continue
		}

		summary.Products += count
		b.logger.Info("vendor scraped", "run_id", summary.RunID,
			"vendor", v.ID, "hostname", v.Hostname, "products", count)
	}

	if err := b.syncer.Sync(ctx); err != nil {
		b.publish(ctx, summary)
		return summary, fmt.Errorf("search sync failed: %w", err)
	}
	summary.Synced = true

	b.logger.Info("bulk scrape finished", "run_id", summary.RunID,
		"products", summary.Products, "failed_vendors", len(summary.Failed))
	b.publish(ctx, summary)
	return summary, nil
}

func (b *Bulk) publish(ctx context.Context, summary *RunSummary) {
	if b.events == nil {
		return
	}
	if err := b.events.RunCompleted(ctx, summary); err != nil {
		b.logger.Error("failed to publish run summary", "run_id", summary.RunID, "error", err)
	}
}

func (b *Bulk) scrapeVendor(ctx context.Context, v product.Vendor) (int, error) {
	origin := b.opts.Scheme + "://" + v.Hostname

	switch v.Type {
	case product.TypeShopify:
		return b.scrapeShopify(ctx, v, origin)
	case product.TypeBigCommerce:
		return b.scrapeBigCommerce(ctx, v, origin)
	case product.TypeAmazon, product.TypeGeneric:
		// no full-catalog surface; on-demand lookup still works
		b.logger.Debug("vendor type has no catalog scrape", "vendor", v.ID, "type", v.Type)
		return 0, nil
	}
	return 0, fmt.Errorf("%w: %q", vendors.ErrUnsupportedVendor, v.Type)
}

func (b *Bulk) scrapeShopify(ctx context.Context, v product.Vendor, origin string) (int, error) {
	count := 0
	limiter := ratelimit.NewBackoff(b.opts.PageDelay, pageDelayCeiling)

	err := b.router.Shopify().Catalog(ctx, origin, limiter, func(cp vendors.CatalogPage) error {
		updatedAt := cp.Product.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = time.Now().UTC()
		}
		if err := b.cache.Upsert(ctx, &product.CacheEntry{
			ID:          product.HandleID(v.Hostname, cp.Product.Handle),
			ProductJSON: cp.Raw,
			VendorID:    v.ID,
			UpdatedAt:   updatedAt,
		}); err != nil {
			return err
		}
		count++
		return nil
	})
	return count, err
}

func (b *Bulk) scrapeBigCommerce(ctx context.Context, v product.Vendor, origin string) (int, error) {
	count := 0
	limiter := ratelimit.NewBackoff(b.opts.InsertDelay, insertDelayCeiling)

	err := b.router.BigCommerce().Catalog(ctx, origin, limiter, func(p product.Product) error {
		payload, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to marshal product: %w", err)
		}
		if err := b.cache.Upsert(ctx, &product.CacheEntry{
			ID:          product.HandleID(v.Hostname, p.Handle),
			ProductJSON: payload,
			VendorID:    v.ID,
			UpdatedAt:   time.Now().UTC(),
		}); err != nil {
			return err
		}
		count++
		return nil
	})
	return count, err
}
