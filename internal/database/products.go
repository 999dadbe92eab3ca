package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/models"
)

const productColumns = `id, vendor_id, store_id, sku, name, description, price, compare_at_price,
              inventory, barcode, category, image_url, status, remote_id, needs_sync,
              conflict_state, edited_fields, pending_fields, last_modified_by, vendor_synced_at,
              local_edited_at, remote_synced_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(sc rowScanner) (*models.Product, error) {
	var p models.Product
	var edited, pending string
	err := sc.Scan(
		&p.ID, &p.VendorID, &p.StoreID, &p.SKU, &p.Name, &p.Description, &p.Price, &p.CompareAtPrice,
		&p.Inventory, &p.Barcode, &p.Category, &p.ImageURL, &p.Status, &p.RemoteID, &p.NeedsSync,
		&p.ConflictState, &edited, &pending, &p.LastModifiedBy, &p.VendorSyncedAt,
		&p.LocalEditedAt, &p.RemoteSyncedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.EditedFields = unpackFieldList(edited)
	p.PendingFields = unpackFieldList(pending)
	return &p, nil
}

func packFieldList(fields []string) string {
	if len(fields) == 0 {
		return "[]"
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func unpackFieldList(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

func (db *DB) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `INSERT INTO products (vendor_id, store_id, sku, name, description, price, compare_at_price,
              inventory, barcode, category, image_url, status, remote_id, needs_sync,
              conflict_state, edited_fields, pending_fields, last_modified_by, vendor_synced_at,
              local_edited_at, remote_synced_at, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	if p.Status == "" {
		p.Status = models.ProductStatusDraft
	}
	if p.ConflictState == "" {
		p.ConflictState = models.ConflictStateNone
	}
	result, err := db.ExecContext(ctx, query,
		p.VendorID, p.StoreID, p.SKU, p.Name, p.Description, p.Price, p.CompareAtPrice,
		p.Inventory, p.Barcode, p.Category, p.ImageURL, p.Status, p.RemoteID, p.NeedsSync,
		p.ConflictState, packFieldList(p.EditedFields), packFieldList(p.PendingFields), p.LastModifiedBy, p.VendorSyncedAt,
		p.LocalEditedAt, p.RemoteSyncedAt, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	p.ID = id
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

func (db *DB) UpdateProduct(ctx context.Context, p *models.Product) error {
	query := `UPDATE products SET name = ?, description = ?, price = ?, compare_at_price = ?,
              inventory = ?, barcode = ?, category = ?, image_url = ?, status = ?, remote_id = ?,
              needs_sync = ?, conflict_state = ?, edited_fields = ?, pending_fields = ?, last_modified_by = ?,
              vendor_synced_at = ?, local_edited_at = ?, remote_synced_at = ?, updated_at = ?
              WHERE id = ?`
	now := time.Now()
	_, err := db.ExecContext(ctx, query,
		p.Name, p.Description, p.Price, p.CompareAtPrice,
		p.Inventory, p.Barcode, p.Category, p.ImageURL, p.Status, p.RemoteID,
		p.NeedsSync, p.ConflictState, packFieldList(p.EditedFields), packFieldList(p.PendingFields), p.LastModifiedBy,
		p.VendorSyncedAt, p.LocalEditedAt, p.RemoteSyncedAt, now, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	p.UpdatedAt = now
	return nil
}

func (db *DB) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ?`
	p, err := scanProduct(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

func (db *DB) GetProductBySKU(ctx context.Context, storeID int64, sku string) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE store_id = ? AND sku = ?`
	p, err := scanProduct(db.QueryRowContext(ctx, query, storeID, sku))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %q: %w", sku, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product by sku: %w", err)
	}
	return p, nil
}

func (db *DB) ListProductsByVendor(ctx context.Context, vendorID int64) ([]*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE vendor_id = ? ORDER BY sku`
	return db.listProducts(ctx, query, vendorID)
}

// ListProductsNeedingSync returns products queued for a push, skipping
// anything stuck in conflict resolution. A non-positive limit returns
// all of them.
func (db *DB) ListProductsNeedingSync(ctx context.Context, storeID int64, limit int) ([]*models.Product, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT ` + productColumns + ` FROM products
              WHERE store_id = ? AND needs_sync = 1 AND conflict_state = ?
              ORDER BY updated_at ASC LIMIT ?`
	return db.listProducts(ctx, query, storeID, models.ConflictStateNone, limit)
}

func (db *DB) ListConflictedProducts(ctx context.Context, storeID int64) ([]*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products
              WHERE store_id = ? AND conflict_state = ?
              ORDER BY updated_at DESC`
	return db.listProducts(ctx, query, storeID, models.ConflictStatePending)
}

func (db *DB) listProducts(ctx context.Context, query string, args ...interface{}) ([]*models.Product, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

// MarkProductSynced records a successful push of the product to the
// storefront.
func (db *DB) MarkProductSynced(ctx context.Context, id int64, remoteID string, syncedAt time.Time) error {
	query := `UPDATE products SET remote_id = ?, needs_sync = 0, remote_synced_at = ?, updated_at = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query, remoteID, syncedAt, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark product synced: %w", err)
	}
	return nil
}

func (db *DB) CountProductsByVendor(ctx context.Context, vendorID int64) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products WHERE vendor_id = ?`, vendorID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return count, nil
}
