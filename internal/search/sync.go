package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/partslane/vendord/internal/product"
)

// ErrVendorRecordMissing: a cache entry references a vendor id that no longer
// resolves. The dataset is presumed corrupt and the whole sync run aborts
// rather than silently indexing a partial set.
var ErrVendorRecordMissing = errors.New("cache entry references unknown vendor")

// Settings used when (re)applying index configuration on every run.
var (
	searchableAttributes = []string{"title", "description", "vendorName"}
	filterableAttributes = []string{"vendorId", "vendorType", "currency"}
	sortableAttributes   = []string{"price", "updatedAt", "title"}
)

// Engine is the slice of the search engine client the sync task consumes.
type Engine interface {
	// EnsureIndex creates the index when it does not exist yet.
	EnsureIndex(ctx context.Context, index string) error

	// ApplySettings reapplies searchable/filterable/sortable attributes.
	ApplySettings(ctx context.Context, index string, searchable, filterable, sortable []string) error

	// AddDocuments submits a bulk upsert keyed by document id and returns the
	// engine's task uid.
	AddDocuments(ctx context.Context, index string, docs []Document) (int64, error)

	// WaitForTask blocks until the engine reports the task finished.
	WaitForTask(ctx context.Context, taskUID int64) error
}

// CacheReader is the bulk export side of the product cache.
type CacheReader interface {
	ListAll(ctx context.Context) ([]product.CacheEntry, error)
}

// VendorReader lists the vendor registry for the join.
type VendorReader interface {
	ListAll(ctx context.Context) ([]product.Vendor, error)
}

// Summary reports one sync run.
type Summary struct {
	Indexed int   `json:"indexed"`
	TaskUID int64 `json:"task_uid,omitempty"`
	Success bool  `json:"success"`
}

// Sync rebuilds the search index from the product cache.
type Sync struct {
	cache   CacheReader
	vendors VendorReader
	engine  Engine
	index   string
	logger  *slog.Logger
}

func NewSync(cache CacheReader, vendors VendorReader, engine Engine, index string, logger *slog.Logger) *Sync {
	return &Sync{
		cache:   cache,
		vendors: vendors,
		engine:  engine,
		index:   index,
		logger:  logger.With("component", "search_sync"),
	}
}

// Run reads every cache entry, joins it with its vendor record, and upserts
// the resulting documents, blocking until the index build completes.
func (s *Sync) Run(ctx context.Context) (*Summary, error) {
	entries, err := s.cache.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}
	if len(entries) == 0 {
		s.logger.Info("product cache is empty, nothing to sync")
		return &Summary{Success: true}, nil
	}

	vendorList, err := s.vendors.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list vendors: %w", err)
	}
	byID := make(map[string]product.Vendor, len(vendorList))
	for _, v := range vendorList {
		byID[v.ID] = v
	}

	docs := make([]Document, 0, len(entries))
	for _, e := range entries {
		vendor, ok := byID[e.VendorID]
		if !ok {
			return nil, fmt.Errorf("%w: entry %q -> vendor %q", ErrVendorRecordMissing, e.ID, e.VendorID)
		}
		doc, err := BuildDocument(e, vendor)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	if err := s.engine.EnsureIndex(ctx, s.index); err != nil {
		return nil, fmt.Errorf("failed to ensure index: %w", err)
	}
	if err := s.engine.ApplySettings(ctx, s.index, searchableAttributes, filterableAttributes, sortableAttributes); err != nil {
		return nil, fmt.Errorf("failed to apply index settings: %w", err)
	}

	taskUID, err := s.engine.AddDocuments(ctx, s.index, docs)
	if err != nil {
		return nil, fmt.Errorf("failed to add documents: %w", err)
	}

	s.logger.Info("documents submitted", "index", s.index, "documents", len(docs), "task_uid", taskUID)

	if err := s.engine.WaitForTask(ctx, taskUID); err != nil {
		return nil, fmt.Errorf("indexing task %d failed: %w", taskUID, err)
	}

	s.logger.Info("search sync finished", "index", s.index, "indexed", len(docs))
	return &Summary{Indexed: len(docs), TaskUID: taskUID, Success: true}, nil
}
