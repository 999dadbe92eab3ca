package models

import "time"

// Vendor is a supplier whose catalog is fed in through spreadsheet
// uploads or a shared Google Sheet.
type Vendor struct {
	ID           int64     `yaml:"id" json:"id"`
	Name         string    `yaml:"name" json:"name"`
	Code         string    `yaml:"code" json:"code"`
	ContactEmail string    `yaml:"contact_email" json:"contact_email,omitempty"`
	SheetID      string    `yaml:"sheet_id" json:"sheet_id,omitempty"`
	SheetRange   string    `yaml:"sheet_range" json:"sheet_range,omitempty"`
	PriceMarkup  float64   `yaml:"price_markup" json:"price_markup,omitempty"`
	Active       bool      `yaml:"active" json:"active"`
	LastSyncAt   time.Time `yaml:"-" json:"last_sync_at,omitempty"`
	CreatedAt    time.Time `yaml:"-" json:"created_at"`
	UpdatedAt    time.Time `yaml:"-" json:"updated_at"`
}
