package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/models"
)

func (db *DB) CreateActivity(ctx context.Context, entry *models.Activity) error {
	query := `INSERT INTO activities (action, entity, entity_id, details, created_at)
              VALUES (?, ?, ?, ?, ?)`
	now := time.Now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	result, err := db.ExecContext(ctx, query,
		entry.Action, entry.Entity, entry.EntityID, entry.Details, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create activity: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	entry.ID = id
	return nil
}

func (db *DB) ListRecentActivities(ctx context.Context, limit int) ([]*models.Activity, error) {
	query := `SELECT id, action, entity, entity_id, details, created_at
              FROM activities ORDER BY created_at DESC, id DESC LIMIT ?`
	rows, err := db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	var activities []*models.Activity
	for rows.Next() {
		var a models.Activity
		if err := rows.Scan(&a.ID, &a.Action, &a.Entity, &a.EntityID, &a.Details, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, &a)
	}
	return activities, rows.Err()
}
