package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/models"
)

const vendorColumns = `id, name, code, contact_email, sheet_id, sheet_range, price_markup,
              active, last_sync_at, created_at, updated_at`

func scanVendor(sc rowScanner) (*models.Vendor, error) {
	var v models.Vendor
	err := sc.Scan(
		&v.ID, &v.Name, &v.Code, &v.ContactEmail, &v.SheetID, &v.SheetRange, &v.PriceMarkup,
		&v.Active, &v.LastSyncAt, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (db *DB) CreateVendor(ctx context.Context, v *models.Vendor) error {
	query := `INSERT INTO vendors (name, code, contact_email, sheet_id, sheet_range, price_markup,
              active, last_sync_at, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		v.Name, v.Code, v.ContactEmail, v.SheetID, v.SheetRange, v.PriceMarkup,
		v.Active, v.LastSyncAt, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create vendor: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	v.ID = id
	v.CreatedAt = now
	v.UpdatedAt = now
	return nil
}

func (db *DB) UpdateVendor(ctx context.Context, v *models.Vendor) error {
	query := `UPDATE vendors SET name = ?, code = ?, contact_email = ?, sheet_id = ?,
              sheet_range = ?, price_markup = ?, active = ?, updated_at = ? WHERE id = ?`
	now := time.Now()
	_, err := db.ExecContext(ctx, query,
		v.Name, v.Code, v.ContactEmail, v.SheetID, v.SheetRange, v.PriceMarkup, v.Active, now, v.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update vendor: %w", err)
	}
	v.UpdatedAt = now
	return nil
}

func (db *DB) GetVendorByID(ctx context.Context, id int64) (*models.Vendor, error) {
	query := `SELECT ` + vendorColumns + ` FROM vendors WHERE id = ?`
	v, err := scanVendor(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("vendor %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vendor: %w", err)
	}
	return v, nil
}

func (db *DB) GetVendorByCode(ctx context.Context, code string) (*models.Vendor, error) {
	query := `SELECT ` + vendorColumns + ` FROM vendors WHERE code = ?`
	v, err := scanVendor(db.QueryRowContext(ctx, query, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("vendor %q: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vendor by code: %w", err)
	}
	return v, nil
}

func (db *DB) GetActiveVendors(ctx context.Context) ([]*models.Vendor, error) {
	query := `SELECT ` + vendorColumns + ` FROM vendors WHERE active = 1 ORDER BY name`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get active vendors: %w", err)
	}
	defer rows.Close()

	var vendors []*models.Vendor
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vendor: %w", err)
		}
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}

// TouchVendorSynced stamps the vendor's last successful feed import.
func (db *DB) TouchVendorSynced(ctx context.Context, id int64, syncedAt time.Time) error {
	query := `UPDATE vendors SET last_sync_at = ?, updated_at = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query, syncedAt, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to touch vendor sync time: %w", err)
	}
	return nil
}
