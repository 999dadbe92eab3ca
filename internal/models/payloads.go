package models

import (
	"encoding/json"
	"fmt"
)

// SyncPayload parameterizes a catalog sync job.
type SyncPayload struct {
	VendorID         int64  `json:"vendor_id"`
	StoreID          int64  `json:"store_id"`
	Direction        string `json:"direction"`
	SyncPrices       bool   `json:"sync_prices"`
	SyncInventory    bool   `json:"sync_inventory"`
	SyncDescriptions bool   `json:"sync_descriptions"`
	SyncImages       bool   `json:"sync_images"`
	BatchSize        int    `json:"batch_size,omitempty"`
}

// Validate checks the payload before it is accepted into the queue.
func (p *SyncPayload) Validate() error {
	if p.VendorID <= 0 {
		return fmt.Errorf("sync payload: vendor_id is required")
	}
	if p.StoreID <= 0 {
		return fmt.Errorf("sync payload: store_id is required")
	}
	switch p.Direction {
	case DirectionPull, DirectionPush, DirectionBidirectional:
	case "":
		return fmt.Errorf("sync payload: direction is required")
	default:
		return fmt.Errorf("sync payload: unknown direction %q", p.Direction)
	}
	if p.BatchSize < 0 {
		return fmt.Errorf("sync payload: batch_size must not be negative")
	}
	return nil
}

// FileImportPayload parameterizes an uploaded vendor file import job.
type FileImportPayload struct {
	VendorID   int64    `json:"vendor_id"`
	StoreID    int64    `json:"store_id"`
	UploadIDs  []string `json:"upload_ids"`
	ImportMode string   `json:"import_mode"`
}

// Validate checks the payload before it is accepted into the queue.
func (p *FileImportPayload) Validate() error {
	if p.VendorID <= 0 {
		return fmt.Errorf("file import payload: vendor_id is required")
	}
	if len(p.UploadIDs) == 0 {
		return fmt.Errorf("file import payload: at least one upload id is required")
	}
	switch p.ImportMode {
	case ImportModeNewOnly, ImportModeUpdateExisting, ImportModeBoth:
	case "":
		return fmt.Errorf("file import payload: import_mode is required")
	default:
		return fmt.Errorf("file import payload: unknown import_mode %q", p.ImportMode)
	}
	return nil
}

// PricingUpdatePayload parameterizes a bulk price adjustment job. When
// ProductIDs is empty the adjustment applies to the whole vendor catalog.
type PricingUpdatePayload struct {
	VendorID   int64   `json:"vendor_id"`
	StoreID    int64   `json:"store_id"`
	ProductIDs []int64 `json:"product_ids,omitempty"`
	Multiplier float64 `json:"multiplier"`
}

// Validate checks the payload before it is accepted into the queue.
func (p *PricingUpdatePayload) Validate() error {
	if p.VendorID <= 0 {
		return fmt.Errorf("pricing payload: vendor_id is required")
	}
	if p.Multiplier <= 0 {
		return fmt.Errorf("pricing payload: multiplier must be positive")
	}
	return nil
}

// ParsePayload decodes and validates the payload for the given job kind.
// It is the single gate between raw enqueue input and typed job
// parameters.
func ParsePayload(kind string, raw json.RawMessage) (any, error) {
	switch kind {
	case JobKindSync:
		var p SyncPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode sync payload: %w", err)
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		return &p, nil
	case JobKindFileImport:
		var p FileImportPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode file import payload: %w", err)
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		return &p, nil
	case JobKindPricingUpdate:
		var p PricingUpdatePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode pricing payload: %w", err)
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		return &p, nil
	default:
		return nil, fmt.Errorf("unknown job kind %q", kind)
	}
}
