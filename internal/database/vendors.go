package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/partslane/vendord/internal/product"
)

// VendorStore reads the vendor registry. Records are created by the external
// vendor-management flow; this service never writes them.
type VendorStore struct {
	db *DB
}

func NewVendorStore(db *DB) *VendorStore {
	return &VendorStore{db: db}
}

// GetByHostname returns (nil, nil) when no vendor matches the hostname.
func (s *VendorStore) GetByHostname(ctx context.Context, hostname string) (*product.Vendor, error) {
	query := `
		SELECT id, name, type, hostname, config
		FROM vendors
		WHERE hostname = $1`

	v, err := scanVendor(s.db.QueryRow(ctx, query, hostname))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vendor by hostname: %w", err)
	}
	return v, nil
}

// GetByID returns (nil, nil) when the id is unknown.
func (s *VendorStore) GetByID(ctx context.Context, id string) (*product.Vendor, error) {
	query := `
		SELECT id, name, type, hostname, config
		FROM vendors
		WHERE id = $1`

	v, err := scanVendor(s.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vendor: %w", err)
	}
	return v, nil
}

func (s *VendorStore) ListAll(ctx context.Context) ([]product.Vendor, error) {
	query := `
		SELECT id, name, type, hostname, config
		FROM vendors
		ORDER BY id`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list vendors: %w", err)
	}
	defer rows.Close()

	var vendors []product.Vendor
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vendor: %w", err)
		}
		vendors = append(vendors, *v)
	}
	return vendors, rows.Err()
}

func scanVendor(row pgx.Row) (*product.Vendor, error) {
	var (
		v   product.Vendor
		typ string
	)
	if err := row.Scan(&v.ID, &v.Name, &typ, &v.Hostname, &v.Config); err != nil {
		return nil, err
	}
	t, err := product.ParseVendorType(typ)
	if err != nil {
		return nil, err
	}
	v.Type = t
	return &v, nil
}
