package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/models"
)

const storeColumns = `id, name, base_url, access_token, currency, rate_capacity,
              rate_refill_per_sec, active, created_at, updated_at`

func scanStore(sc rowScanner) (*models.Store, error) {
	var s models.Store
	err := sc.Scan(
		&s.ID, &s.Name, &s.BaseURL, &s.AccessToken, &s.Currency, &s.RateCapacity,
		&s.RateRefillPerSec, &s.Active, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (db *DB) CreateStore(ctx context.Context, s *models.Store) error {
	query := `INSERT INTO stores (name, base_url, access_token, currency, rate_capacity,
              rate_refill_per_sec, active, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		s.Name, s.BaseURL, s.AccessToken, s.Currency, s.RateCapacity,
		s.RateRefillPerSec, s.Active, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	s.ID = id
	s.CreatedAt = now
	s.UpdatedAt = now
	return nil
}

func (db *DB) UpdateStore(ctx context.Context, s *models.Store) error {
	query := `UPDATE stores SET name = ?, base_url = ?, access_token = ?, currency = ?,
              rate_capacity = ?, rate_refill_per_sec = ?, active = ?, updated_at = ? WHERE id = ?`
	now := time.Now()
	_, err := db.ExecContext(ctx, query,
		s.Name, s.BaseURL, s.AccessToken, s.Currency,
		s.RateCapacity, s.RateRefillPerSec, s.Active, now, s.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update store: %w", err)
	}
	s.UpdatedAt = now
	return nil
}

func (db *DB) GetStoreByID(ctx context.Context, id int64) (*models.Store, error) {
	query := `SELECT ` + storeColumns + ` FROM stores WHERE id = ?`
	s, err := scanStore(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get store: %w", err)
	}
	return s, nil
}

// GetStoreByName looks a store up by its display name, the key the
// seed catalog uses.
func (db *DB) GetStoreByName(ctx context.Context, name string) (*models.Store, error) {
	query := `SELECT ` + storeColumns + ` FROM stores WHERE name = ?`
	s, err := scanStore(db.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get store: %w", err)
	}
	return s, nil
}

func (db *DB) GetActiveStores(ctx context.Context) ([]*models.Store, error) {
	query := `SELECT ` + storeColumns + ` FROM stores WHERE active = 1 ORDER BY name`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get active stores: %w", err)
	}
	defer rows.Close()

	var stores []*models.Store
	for rows.Next() {
		s, err := scanStore(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan store: %w", err)
		}
		stores = append(stores, s)
	}
	return stores, rows.Err()
}
