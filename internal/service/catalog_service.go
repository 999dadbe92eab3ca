package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/clock"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/domain"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/models"
)

// FieldDecision is one human choice for a conflicted field. A nil Value
// keeps the current catalog value; Source records which side won and
// defaults to local_edit.
type FieldDecision struct {
	Field  string `json:"field"`
	Value  any    `json:"value,omitempty"`
	Source string `json:"source,omitempty"`
}

// CatalogService covers the human-facing catalog operations: manual
// field edits, conflict review and explicit conflict resolution.
type CatalogService struct {
	repo   domain.Repository
	clk    clock.Clock
	logger *zerolog.Logger
}

func NewCatalogService(repo domain.Repository, clk clock.Clock, logger *zerolog.Logger) *CatalogService {
	return &CatalogService{repo: repo, clk: clk, logger: logger}
}

// EditProduct applies manual edits to a product's sync fields, marking
// each touched field as user-edited so later vendor imports treat it as
// a disagreement signal.
func (s *CatalogService) EditProduct(ctx context.Context, id int64, changes map[string]any) (*models.Product, error) {
	if len(changes) == 0 {
		return nil, fmt.Errorf("no changes supplied")
	}
	normalized := make(map[string]any, len(changes))
	for name, value := range changes {
		if !isSyncField(name) {
			return nil, fmt.Errorf("unknown field %q", name)
		}
		v, err := normalizeFieldValue(name, value)
		if err != nil {
			return nil, err
		}
		normalized[name] = v
	}

	p, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	for name, value := range normalized {
		p.SetSyncField(name, value)
		p.MarkEdited(name)
	}
	p.LocalEditedAt = s.clk.Now()
	p.LastModifiedBy = models.SourceLocalEdit
	p.NeedsSync = true
	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(normalized))
	for name := range normalized {
		names = append(names, name)
	}
	s.recordActivity(ctx, "product_edited", "product", fmt.Sprint(p.ID), map[string]any{
		"sku":    p.SKU,
		"fields": names,
	})
	return p, nil
}

// PendingConflicts lists the store's products awaiting human conflict
// resolution.
func (s *CatalogService) PendingConflicts(ctx context.Context, storeID int64) ([]*models.Product, error) {
	return s.repo.ListConflictedProducts(ctx, storeID)
}

// ResolveConflict applies explicit human decisions to a product stuck
// in pending_resolution. The product becomes syncable again once no
// pending fields remain; partial resolution leaves it pending.
func (s *CatalogService) ResolveConflict(ctx context.Context, productID int64, decisions []FieldDecision) (*models.Product, error) {
	if len(decisions) == 0 {
		return nil, fmt.Errorf("no decisions supplied")
	}

	p, err := s.repo.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p.ConflictState != models.ConflictStatePending {
		return nil, fmt.Errorf("product %d has no pending conflicts", productID)
	}

	for _, d := range decisions {
		if !p.FieldPending(d.Field) {
			return nil, fmt.Errorf("field %q is not pending resolution", d.Field)
		}
		switch d.Source {
		case "", models.SourceLocalEdit, models.SourceVendorImport, models.SourceRemoteSync:
		default:
			return nil, fmt.Errorf("unknown source %q for field %q", d.Source, d.Field)
		}
		if d.Value != nil {
			value, err := normalizeFieldValue(d.Field, d.Value)
			if err != nil {
				return nil, err
			}
			p.SetSyncField(d.Field, value)
		}
		p.ClearPending(d.Field)
		switch d.Source {
		case models.SourceVendorImport, models.SourceRemoteSync:
			// The winning side supersedes whatever the user had typed.
			p.ClearEdited(d.Field)
		default:
			p.MarkEdited(d.Field)
		}
	}

	if p.ConflictState == models.ConflictStateNone {
		p.NeedsSync = true
	}
	p.LocalEditedAt = s.clk.Now()
	p.LastModifiedBy = models.SourceLocalEdit
	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		return nil, err
	}

	fields := make([]string, 0, len(decisions))
	for _, d := range decisions {
		fields = append(fields, d.Field)
	}
	s.recordActivity(ctx, "conflict_resolved", "product", fmt.Sprint(p.ID), map[string]any{
		"sku":       p.SKU,
		"fields":    fields,
		"remaining": len(p.PendingFields),
	})
	s.logger.Info().
		Str("sku", p.SKU).
		Int("resolved", len(decisions)).
		Int("remaining", len(p.PendingFields)).
		Msg("conflict resolved")
	return p, nil
}

func (s *CatalogService) recordActivity(ctx context.Context, action, entity, entityID string, details map[string]any) {
	raw, err := json.Marshal(details)
	if err != nil {
		raw = []byte("{}")
	}
	entry := &models.Activity{Action: action, Entity: entity, EntityID: entityID, Details: string(raw)}
	if err := s.repo.CreateActivity(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("action", action).Msg("record activity error")
	}
}
