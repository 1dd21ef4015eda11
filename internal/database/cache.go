package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/partslane/vendord/internal/product"
)

// CacheStore is the content-addressed product cache. Every write is a full
// replace keyed by canonical id, so it is idempotent and safe under
// concurrent writers racing on the same id (last write wins).
type CacheStore struct {
	db *DB
}

func NewCacheStore(db *DB) *CacheStore {
	return &CacheStore{db: db}
}

// Get returns (nil, nil) on a cache miss.
func (s *CacheStore) Get(ctx context.Context, id string) (*product.CacheEntry, error) {
	query := `
		SELECT id, product_json, vendor_id, updated_at
		FROM product_cache
		WHERE id = $1`

	e := &product.CacheEntry{}
	err := s.db.QueryRow(ctx, query, id).Scan(&e.ID, &e.ProductJSON, &e.VendorID, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}
	return e, nil
}

// Upsert inserts or fully replaces the entry, refreshing updated_at.
func (s *CacheStore) Upsert(ctx context.Context, e *product.CacheEntry) error {
	query := `
		INSERT INTO product_cache (id, product_json, vendor_id, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			product_json = EXCLUDED.product_json,
			vendor_id = EXCLUDED.vendor_id,
			updated_at = EXCLUDED.updated_at`

	_, err := s.db.Exec(ctx, query, e.ID, e.ProductJSON, e.VendorID, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert cache entry: %w", err)
	}
	return nil
}

// ListAll returns every cache entry for bulk export. The result is a
// point-in-time-ish snapshot; writes racing the read may or may not be
// visible, and callers must tolerate either.
func (s *CacheStore) ListAll(ctx context.Context) ([]product.CacheEntry, error) {
	query := `
		SELECT id, product_json, vendor_id, updated_at
		FROM product_cache
		ORDER BY id`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}
	defer rows.Close()

	var entries []product.CacheEntry
	for rows.Next() {
		var e product.CacheEntry
		if err := rows.Scan(&e.ID, &e.ProductJSON, &e.VendorID, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
