package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/models"
)

const uploadedRecordColumns = `id, vendor_id, sku, name, description, price, compare_at_price,
              inventory, barcode, category, image_url, status, source_file, row_num, created_at`

func scanUploadedRecord(sc rowScanner) (*models.UploadedRecord, error) {
	var r models.UploadedRecord
	err := sc.Scan(
		&r.ID, &r.VendorID, &r.SKU, &r.Name, &r.Description, &r.Price, &r.CompareAtPrice,
		&r.Inventory, &r.Barcode, &r.Category, &r.ImageURL, &r.Status, &r.SourceFile, &r.RowNum, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateUploadedRecords stages a parsed sheet's rows in one transaction.
// Records without an id are assigned one.
func (db *DB) CreateUploadedRecords(ctx context.Context, records []*models.UploadedRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO uploaded_records (` + uploadedRecordColumns + `)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, r := range records {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		r.CreatedAt = now
		_, err := stmt.ExecContext(ctx,
			r.ID, r.VendorID, r.SKU, r.Name, r.Description, r.Price, r.CompareAtPrice,
			r.Inventory, r.Barcode, r.Category, r.ImageURL, r.Status, r.SourceFile, r.RowNum, r.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert uploaded record %s: %w", r.SKU, err)
		}
	}
	return tx.Commit()
}

func (db *DB) GetUploadedRecord(ctx context.Context, id string) (*models.UploadedRecord, error) {
	query := `SELECT ` + uploadedRecordColumns + ` FROM uploaded_records WHERE id = ?`
	r, err := scanUploadedRecord(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("uploaded record %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get uploaded record: %w", err)
	}
	return r, nil
}

// ListUploadedRecords returns the records for the given ids in the
// requested order. Unknown ids are skipped.
func (db *DB) ListUploadedRecords(ctx context.Context, ids []string) ([]*models.UploadedRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := `SELECT ` + uploadedRecordColumns + ` FROM uploaded_records WHERE id IN (` + placeholders + `)`
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list uploaded records: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*models.UploadedRecord, len(ids))
	for rows.Next() {
		r, err := scanUploadedRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan uploaded record: %w", err)
		}
		byID[r.ID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*models.UploadedRecord, 0, len(ids))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}
