package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/clock"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/conflict"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/database"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/domain"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/events"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/jobs"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/models"
)

// WorkbookParser reads an uploaded spreadsheet into normalized feed
// records.
type WorkbookParser interface {
	Read(path string) ([]*models.FeedRecord, error)
}

// Import outcomes per staged record.
const (
	outcomeCreated    = "created"
	outcomeUpdated    = "updated"
	outcomeSkipped    = "skipped"
	outcomeConflicted = "conflicted"
)

// ImportService stages uploaded vendor workbooks and runs the
// file_import job kind that applies staged records to the catalog.
type ImportService struct {
	repo   domain.Repository
	parser WorkbookParser
	engine *conflict.Engine
	bus    domain.Broadcaster
	clk    clock.Clock
	logger *zerolog.Logger
}

func NewImportService(repo domain.Repository, parser WorkbookParser, engine *conflict.Engine, bus domain.Broadcaster, clk clock.Clock, logger *zerolog.Logger) *ImportService {
	return &ImportService{
		repo:   repo,
		parser: parser,
		engine: engine,
		bus:    bus,
		clk:    clk,
		logger: logger,
	}
}

// StageWorkbook parses an uploaded .xlsx file and stages its rows as
// uploaded records for a later file_import job. It returns the staged
// record ids in sheet order.
func (s *ImportService) StageWorkbook(ctx context.Context, vendorID int64, path, sourceName string) ([]string, error) {
	vendor, err := s.repo.GetVendorByID(ctx, vendorID)
	if err != nil {
		return nil, fmt.Errorf("load vendor %d: %w", vendorID, err)
	}

	records, err := s.parser.Read(path)
	if err != nil {
		return nil, fmt.Errorf("parse workbook: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("workbook %s has no importable rows", sourceName)
	}

	staged := make([]*models.UploadedRecord, len(records))
	for i, rec := range records {
		staged[i] = models.UploadedRecordFromFeed(vendor.ID, sourceName, rec)
	}
	if err := s.repo.CreateUploadedRecords(ctx, staged); err != nil {
		return nil, fmt.Errorf("stage records: %w", err)
	}

	ids := make([]string, len(staged))
	for i, r := range staged {
		ids[i] = r.ID
	}

	s.publish(events.EventUploadReceived, events.UploadReceivedPayload{
		VendorID:   vendor.ID,
		SourceFile: sourceName,
		Records:    len(ids),
	})
	s.recordActivity(ctx, "upload_staged", "vendor", fmt.Sprint(vendor.ID), map[string]any{
		"source_file": sourceName,
		"records":     len(ids),
	})
	s.logger.Info().
		Str("vendor", vendor.Name).
		Str("file", sourceName).
		Int("records", len(ids)).
		Msg("workbook staged")
	return ids, nil
}

// HandleFileImport is the job handler for the file_import kind. It
// emits one progress broadcast per record, ending at 100.
func (s *ImportService) HandleFileImport(ctx context.Context, job *models.SyncJob, progress jobs.ProgressFunc) error {
	parsed, err := models.ParsePayload(models.JobKindFileImport, job.Payload)
	if err != nil {
		return err
	}
	payload := parsed.(*models.FileImportPayload)

	vendor, err := s.repo.GetVendorByID(ctx, payload.VendorID)
	if err != nil {
		return fmt.Errorf("load vendor %d: %w", payload.VendorID, err)
	}
	records, err := s.repo.ListUploadedRecords(ctx, payload.UploadIDs)
	if err != nil {
		return fmt.Errorf("load uploaded records: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("no staged records match the given upload ids")
	}

	importedAt := s.clk.Now()
	total := len(records)
	counts := map[string]int{}
	for i, rec := range records {
		outcome, err := s.applyRecord(ctx, vendor, payload.StoreID, payload.ImportMode, rec, importedAt)
		if err != nil {
			return fmt.Errorf("apply record %s: %w", rec.SKU, err)
		}
		counts[outcome]++
		progress((i+1)*100/total, fmt.Sprintf("record %d/%d", i+1, total))
	}

	s.recordActivity(ctx, "import_completed", "vendor", fmt.Sprint(vendor.ID), map[string]any{
		"job_id":     job.ID,
		"mode":       payload.ImportMode,
		"created":    counts[outcomeCreated],
		"updated":    counts[outcomeUpdated],
		"skipped":    counts[outcomeSkipped],
		"conflicted": counts[outcomeConflicted],
	})
	s.logger.Info().
		Str("vendor", vendor.Name).
		Int("created", counts[outcomeCreated]).
		Int("updated", counts[outcomeUpdated]).
		Int("skipped", counts[outcomeSkipped]).
		Int("conflicted", counts[outcomeConflicted]).
		Msg("file import finished")
	return nil
}

// applyRecord applies one staged record to the catalog honoring the
// import mode.
func (s *ImportService) applyRecord(ctx context.Context, vendor *models.Vendor, storeID int64, mode string, rec *models.UploadedRecord, importedAt time.Time) (string, error) {
	fields := rec.Fields()
	applyMarkup(fields, vendor.PriceMarkup)

	local, err := s.repo.GetProductBySKU(ctx, storeID, rec.SKU)
	if errors.Is(err, database.ErrNotFound) {
		if mode == models.ImportModeUpdateExisting {
			return outcomeSkipped, nil
		}
		p := &models.Product{
			VendorID:       vendor.ID,
			StoreID:        storeID,
			SKU:            rec.SKU,
			NeedsSync:      true,
			LastModifiedBy: models.SourceVendorImport,
			VendorSyncedAt: importedAt,
		}
		for name, value := range fields {
			p.SetSyncField(name, value)
		}
		if err := s.repo.CreateProduct(ctx, p); err != nil {
			return "", err
		}
		return outcomeCreated, nil
	}
	if err != nil {
		return "", err
	}
	if mode == models.ImportModeNewOnly {
		return outcomeSkipped, nil
	}

	// Uploaded rows carry no modification times; recency cannot claim
	// wins the sheet cannot prove.
	res := s.engine.Resolve(local, &conflict.Source{Fields: fields}, nil)
	out := res.Resolved
	out.VendorSyncedAt = importedAt
	if err := s.repo.UpdateProduct(ctx, out); err != nil {
		return "", err
	}
	if len(res.Conflicts) > 0 {
		names := make([]string, 0, len(res.Conflicts))
		for _, f := range res.Conflicts {
			names = append(names, f.Name)
		}
		s.publish(events.EventProductConflict, events.ConflictEventPayload{
			ProductID:         out.ID,
			SKU:               out.SKU,
			Fields:            len(res.Conflicts),
			RecommendedAction: conflict.ActionAskUser,
		})
		s.recordActivity(ctx, "conflict_detected", "product", fmt.Sprint(out.ID), map[string]any{
			"sku":    out.SKU,
			"fields": names,
		})
		return outcomeConflicted, nil
	}
	return outcomeUpdated, nil
}

func (s *ImportService) publish(eventType string, payload any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}

func (s *ImportService) recordActivity(ctx context.Context, action, entity, entityID string, details map[string]any) {
	raw, err := json.Marshal(details)
	if err != nil {
		raw = []byte("{}")
	}
	entry := &models.Activity{Action: action, Entity: entity, EntityID: entityID, Details: string(raw)}
	if err := s.repo.CreateActivity(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("action", action).Msg("record activity error")
	}
}
