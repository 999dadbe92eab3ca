package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/clock"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/conflict"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/database"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/domain"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/events"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/gateway"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/jobs"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/models"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/resilience"
)

// SyncService runs the sync and pricing_update job kinds. A sync
// reconciles the vendor feed, the local catalog and the storefront per
// SKU through the conflict engine, then pushes dirty products through
// the store's gateway under the retry/breaker wrapper.
type SyncService struct {
	repo     domain.Repository
	remote   domain.RemoteClient
	feed     domain.FeedSource
	gateways *gateway.Registry
	exec     *resilience.Executor
	engine   *conflict.Engine
	bus      domain.Broadcaster
	clk      clock.Clock
	logger   *zerolog.Logger
}

// NewSyncService wires the sync pipeline. feed may be nil when no
// Google Sheets credentials are configured; vendors with a bound sheet
// then sync storefront-only.
func NewSyncService(repo domain.Repository, remote domain.RemoteClient, feed domain.FeedSource, gateways *gateway.Registry, exec *resilience.Executor, engine *conflict.Engine, bus domain.Broadcaster, clk clock.Clock, logger *zerolog.Logger) *SyncService {
	return &SyncService{
		repo:     repo,
		remote:   remote,
		feed:     feed,
		gateways: gateways,
		exec:     exec,
		engine:   engine,
		bus:      bus,
		clk:      clk,
		logger:   logger,
	}
}

// HandleSync is the job handler for the sync kind.
func (s *SyncService) HandleSync(ctx context.Context, job *models.SyncJob, progress jobs.ProgressFunc) error {
	parsed, err := models.ParsePayload(models.JobKindSync, job.Payload)
	if err != nil {
		return err
	}
	payload := parsed.(*models.SyncPayload)

	vendor, store, err := s.loadTargets(ctx, payload.VendorID, payload.StoreID)
	if err != nil {
		return err
	}

	startedAt := s.clk.Now()
	switch payload.Direction {
	case models.DirectionPull:
		err = s.pull(ctx, vendor, store, payload, startedAt, progress)
	case models.DirectionPush:
		err = s.push(ctx, store, payload.BatchSize, gateway.PriorityNormal, progress)
	case models.DirectionBidirectional:
		if err = s.pull(ctx, vendor, store, payload, startedAt, window(progress, 0, 50)); err == nil {
			err = s.push(ctx, store, payload.BatchSize, gateway.PriorityNormal, window(progress, 50, 100))
		}
	default:
		return fmt.Errorf("unknown direction %q", payload.Direction)
	}
	if err != nil {
		return err
	}

	if err := s.repo.TouchVendorSynced(ctx, vendor.ID, startedAt); err != nil {
		s.logger.Error().Err(err).Int64("vendor_id", vendor.ID).Msg("touch vendor sync time error")
	}
	s.recordActivity(ctx, "sync_completed", "vendor", fmt.Sprint(vendor.ID), map[string]any{
		"job_id":    job.ID,
		"store_id":  store.ID,
		"direction": payload.Direction,
	})
	return nil
}

// HandlePricingUpdate is the job handler for the pricing_update kind:
// it scales prices for a vendor's products, marks them dirty and pushes
// them when the payload binds a store.
func (s *SyncService) HandlePricingUpdate(ctx context.Context, job *models.SyncJob, progress jobs.ProgressFunc) error {
	parsed, err := models.ParsePayload(models.JobKindPricingUpdate, job.Payload)
	if err != nil {
		return err
	}
	payload := parsed.(*models.PricingUpdatePayload)

	products, err := s.pricingTargets(ctx, payload)
	if err != nil {
		return err
	}
	total := len(products)
	if total == 0 {
		progress(100, "no products to update")
		return nil
	}

	ceiling := 100
	if payload.StoreID > 0 {
		ceiling = 50
	}
	now := s.clk.Now()
	updated := 0
	for i, p := range products {
		if p.Price == "" {
			continue
		}
		scaled, err := scalePrice(p.Price, payload.Multiplier)
		if err != nil {
			s.logger.Warn().Err(err).Str("sku", p.SKU).Msg("skipping product with bad price")
			continue
		}
		p.Price = scaled
		p.MarkEdited("price")
		p.LocalEditedAt = now
		p.LastModifiedBy = models.SourceLocalEdit
		p.NeedsSync = true
		if err := s.repo.UpdateProduct(ctx, p); err != nil {
			return fmt.Errorf("update price for %s: %w", p.SKU, err)
		}
		updated++
		progress((i+1)*ceiling/total, fmt.Sprintf("repriced %d/%d", i+1, total))
	}

	if payload.StoreID > 0 {
		store, err := s.repo.GetStoreByID(ctx, payload.StoreID)
		if err != nil {
			return fmt.Errorf("load store %d: %w", payload.StoreID, err)
		}
		if err := s.push(ctx, store, models.DefaultBatchSize, gateway.PriorityLow, window(progress, 50, 100)); err != nil {
			return err
		}
	}

	s.recordActivity(ctx, "pricing_updated", "vendor", fmt.Sprint(payload.VendorID), map[string]any{
		"job_id":     job.ID,
		"multiplier": payload.Multiplier,
		"updated":    updated,
	})
	return nil
}

func (s *SyncService) loadTargets(ctx context.Context, vendorID, storeID int64) (*models.Vendor, *models.Store, error) {
	vendor, err := s.repo.GetVendorByID(ctx, vendorID)
	if err != nil {
		return nil, nil, fmt.Errorf("load vendor %d: %w", vendorID, err)
	}
	if !vendor.Active {
		return nil, nil, fmt.Errorf("vendor %q is inactive", vendor.Name)
	}
	store, err := s.repo.GetStoreByID(ctx, storeID)
	if err != nil {
		return nil, nil, fmt.Errorf("load store %d: %w", storeID, err)
	}
	if !store.Active {
		return nil, nil, fmt.Errorf("store %q is inactive", store.Name)
	}
	return vendor, store, nil
}

func (s *SyncService) pricingTargets(ctx context.Context, payload *models.PricingUpdatePayload) ([]*models.Product, error) {
	if len(payload.ProductIDs) == 0 {
		return s.repo.ListProductsByVendor(ctx, payload.VendorID)
	}
	products := make([]*models.Product, 0, len(payload.ProductIDs))
	for _, id := range payload.ProductIDs {
		p, err := s.repo.GetProductByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load product %d: %w", id, err)
		}
		if p.VendorID != payload.VendorID {
			return nil, fmt.Errorf("product %d does not belong to vendor %d", id, payload.VendorID)
		}
		products = append(products, p)
	}
	return products, nil
}

// skuView is the per-SKU pair of authority views assembled for one pull.
type skuView struct {
	vendorSrc *conflict.Source
	remoteSrc *conflict.Source
	remoteID  string
}

// pull loads the vendor feed and the storefront's recent changes and
// reconciles every touched SKU into the local catalog.
func (s *SyncService) pull(ctx context.Context, vendor *models.Vendor, store *models.Store, payload *models.SyncPayload, startedAt time.Time, progress jobs.ProgressFunc) error {
	allowed := syncFieldSet(payload)

	records, err := s.vendorRecords(ctx, vendor)
	if err != nil {
		return err
	}
	remoteProducts, err := s.listRemote(ctx, store, vendor.LastSyncAt)
	if err != nil {
		return err
	}

	views := make(map[string]*skuView)
	view := func(sku string) *skuView {
		v, ok := views[sku]
		if !ok {
			v = &skuView{}
			views[sku] = v
		}
		return v
	}
	for _, rec := range records {
		fields := filterFields(rec.Fields, allowed)
		applyMarkup(fields, vendor.PriceMarkup)
		// Sheet rows carry no modification times; the zero ModifiedAt
		// keeps recency from claiming wins the feed cannot prove.
		view(rec.SKU).vendorSrc = &conflict.Source{Fields: fields}
	}
	for _, rp := range remoteProducts {
		if rp.SKU == "" {
			continue
		}
		v := view(rp.SKU)
		v.remoteSrc = &conflict.Source{
			Fields:     pruneEmpty(filterFields(rp.SyncFields(), allowed)),
			ModifiedAt: rp.RemoteSyncedAt,
		}
		v.remoteID = rp.RemoteID
	}

	skus := make([]string, 0, len(views))
	for sku := range views {
		skus = append(skus, sku)
	}
	sort.Strings(skus)

	total := len(skus)
	if total == 0 {
		progress(100, "nothing to reconcile")
		return nil
	}
	batch := payload.BatchSize
	if batch <= 0 {
		batch = models.DefaultBatchSize
	}
	conflicted := 0
	for i, sku := range skus {
		v := views[sku]
		pending, err := s.reconcile(ctx, vendor, store, sku, v, startedAt)
		if err != nil {
			return fmt.Errorf("reconcile %s: %w", sku, err)
		}
		if pending {
			conflicted++
		}
		if (i+1)%batch == 0 || i+1 == total {
			progress((i+1)*100/total, fmt.Sprintf("reconciled %d/%d", i+1, total))
		}
	}

	s.logger.Info().
		Str("vendor", vendor.Name).
		Int64("store_id", store.ID).
		Int("skus", total).
		Int("conflicted", conflicted).
		Msg("pull finished")
	return nil
}

// reconcile merges one SKU's views into the catalog. It reports whether
// the product was left pending human resolution.
func (s *SyncService) reconcile(ctx context.Context, vendor *models.Vendor, store *models.Store, sku string, v *skuView, startedAt time.Time) (bool, error) {
	local, err := s.repo.GetProductBySKU(ctx, store.ID, sku)
	if errors.Is(err, database.ErrNotFound) {
		return false, s.createFromViews(ctx, vendor, store, sku, v, startedAt)
	}
	if err != nil {
		return false, err
	}

	res := s.engine.Resolve(local, v.vendorSrc, v.remoteSrc)
	out := res.Resolved
	if v.remoteID != "" && out.RemoteID == "" {
		out.RemoteID = v.remoteID
	}
	if v.vendorSrc != nil {
		out.VendorSyncedAt = startedAt
	}
	if v.remoteSrc != nil {
		out.RemoteSyncedAt = v.remoteSrc.ModifiedAt
	}
	if err := s.repo.UpdateProduct(ctx, out); err != nil {
		return false, err
	}

	if len(res.Conflicts) > 0 {
		s.announceConflict(ctx, out, res.Conflicts)
		return true, nil
	}
	return false, nil
}

// createFromViews inserts a catalog row for a SKU seen only upstream.
// Vendor fields win over remote ones; a row known only to the
// storefront is recorded as already in sync.
func (s *SyncService) createFromViews(ctx context.Context, vendor *models.Vendor, store *models.Store, sku string, v *skuView, startedAt time.Time) error {
	p := &models.Product{
		VendorID: vendor.ID,
		StoreID:  store.ID,
		SKU:      sku,
	}
	if v.remoteSrc != nil {
		for name, value := range v.remoteSrc.Fields {
			p.SetSyncField(name, value)
		}
		p.RemoteID = v.remoteID
		p.RemoteSyncedAt = v.remoteSrc.ModifiedAt
		p.LastModifiedBy = models.SourceRemoteSync
	}
	if v.vendorSrc != nil {
		for name, value := range v.vendorSrc.Fields {
			p.SetSyncField(name, value)
		}
		p.VendorSyncedAt = startedAt
		p.LastModifiedBy = models.SourceVendorImport
		p.NeedsSync = true
	}
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return err
	}
	s.logger.Debug().Str("sku", sku).Int64("store_id", store.ID).Msg("product created from pull")
	return nil
}

func (s *SyncService) vendorRecords(ctx context.Context, vendor *models.Vendor) ([]*models.FeedRecord, error) {
	if s.feed == nil || vendor.SheetID == "" {
		return nil, nil
	}
	records, err := s.feed.Fetch(ctx, vendor)
	if err != nil {
		return nil, fmt.Errorf("fetch vendor feed: %w", err)
	}
	return records, nil
}

// listRemote pulls the storefront's products changed since the last
// sync, as a single high-priority gateway call.
func (s *SyncService) listRemote(ctx context.Context, store *models.Store, since time.Time) ([]*models.Product, error) {
	gw := s.gateways.ForStore(store)
	op := fmt.Sprintf("pull:store:%d", store.ID)

	var out []*models.Product
	err := s.exec.Execute(ctx, op, func(ctx context.Context) error {
		return gw.Do(ctx, "list_products", gateway.PriorityHigh, func(ctx context.Context) (*gateway.Usage, error) {
			products, usage, err := s.remote.ListProducts(ctx, store, since)
			if err != nil {
				return usage, err
			}
			out = products
			return usage, nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list remote products: %w", err)
	}
	return out, nil
}

// push upserts every product marked dirty for the store. Validation
// rejections skip the product and clear its dirty mark; any other
// failure aborts the job so the orchestrator can retry it.
func (s *SyncService) push(ctx context.Context, store *models.Store, batchSize int, prio gateway.Priority, progress jobs.ProgressFunc) error {
	products, err := s.repo.ListProductsNeedingSync(ctx, store.ID, 0)
	if err != nil {
		return fmt.Errorf("list products needing sync: %w", err)
	}
	total := len(products)
	if total == 0 {
		progress(100, "nothing to push")
		return nil
	}
	batch := batchSize
	if batch <= 0 {
		batch = models.DefaultBatchSize
	}

	gw := s.gateways.ForStore(store)
	op := fmt.Sprintf("push:store:%d", store.ID)
	pushed, rejected := 0, 0
	for i, p := range products {
		remoteID, err := s.pushOne(ctx, gw, op, prio, store, p)
		if err != nil {
			var serr *resilience.SyncError
			if errors.As(err, &serr) && serr.Kind == resilience.KindValidation {
				rejected++
				s.rejectProduct(ctx, p, serr)
				continue
			}
			return fmt.Errorf("push %s: %w", p.SKU, err)
		}

		if err := s.repo.MarkProductSynced(ctx, p.ID, remoteID, s.clk.Now()); err != nil {
			return fmt.Errorf("mark %s synced: %w", p.SKU, err)
		}
		pushed++
		s.publish(events.EventProductSynced, events.ProductSyncedPayload{
			ProductID: p.ID,
			SKU:       p.SKU,
			StoreID:   store.ID,
			RemoteID:  remoteID,
		})
		if (i+1)%batch == 0 || i+1 == total {
			progress((i+1)*100/total, fmt.Sprintf("pushed %d/%d", i+1, total))
		}
	}

	s.logger.Info().
		Int64("store_id", store.ID).
		Int("pushed", pushed).
		Int("rejected", rejected).
		Msg("push finished")
	return nil
}

func (s *SyncService) pushOne(ctx context.Context, gw *gateway.Gateway, op string, prio gateway.Priority, store *models.Store, p *models.Product) (string, error) {
	var remoteID string
	err := s.exec.Execute(ctx, op, func(ctx context.Context) error {
		return gw.Do(ctx, "push_product", prio, func(ctx context.Context) (*gateway.Usage, error) {
			id, usage, err := s.remote.PushProduct(ctx, store, p)
			if err != nil {
				return usage, err
			}
			remoteID = id
			return usage, nil
		})
	})
	return remoteID, err
}

// rejectProduct parks a product the storefront refuses so the push loop
// does not resubmit it verbatim forever.
func (s *SyncService) rejectProduct(ctx context.Context, p *models.Product, serr *resilience.SyncError) {
	p.NeedsSync = false
	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		s.logger.Error().Err(err).Str("sku", p.SKU).Msg("clear dirty mark error")
	}
	s.recordActivity(ctx, "push_rejected", "product", fmt.Sprint(p.ID), map[string]any{
		"sku":    p.SKU,
		"reason": serr.Message,
	})
	s.logger.Warn().Str("sku", p.SKU).Str("reason", serr.Message).Msg("product rejected by storefront")
}

func (s *SyncService) announceConflict(ctx context.Context, p *models.Product, fields []conflict.ConflictField) {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	s.publish(events.EventProductConflict, events.ConflictEventPayload{
		ProductID:         p.ID,
		SKU:               p.SKU,
		Fields:            len(fields),
		RecommendedAction: conflict.ActionAskUser,
	})
	s.recordActivity(ctx, "conflict_detected", "product", fmt.Sprint(p.ID), map[string]any{
		"sku":    p.SKU,
		"fields": names,
	})
}

func (s *SyncService) publish(eventType string, payload any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}

func (s *SyncService) recordActivity(ctx context.Context, action, entity, entityID string, details map[string]any) {
	raw, err := json.Marshal(details)
	if err != nil {
		raw = []byte("{}")
	}
	entry := &models.Activity{Action: action, Entity: entity, EntityID: entityID, Details: string(raw)}
	if err := s.repo.CreateActivity(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("action", action).Msg("record activity error")
	}
}

// window rescales a handler's progress reports into the [lo, hi] band,
// for jobs that run several phases.
func window(progress jobs.ProgressFunc, lo, hi int) jobs.ProgressFunc {
	return func(percent int, message string) {
		progress(lo+(hi-lo)*percent/100, message)
	}
}
