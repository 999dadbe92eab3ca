package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/clock"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/conflict"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/database"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/domain"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/events"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/gateway"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/models"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/resilience"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}
func (m *mockRepo) GetProductBySKU(ctx context.Context, storeID int64, sku string) (*models.Product, error) {
	args := m.Called(ctx, storeID, sku)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}
func (m *mockRepo) ListProductsByVendor(ctx context.Context, vendorID int64) ([]*models.Product, error) {
	args := m.Called(ctx, vendorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Product), args.Error(1)
}
func (m *mockRepo) ListProductsNeedingSync(ctx context.Context, storeID int64, limit int) ([]*models.Product, error) {
	args := m.Called(ctx, storeID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Product), args.Error(1)
}
func (m *mockRepo) ListConflictedProducts(ctx context.Context, storeID int64) ([]*models.Product, error) {
	args := m.Called(ctx, storeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Product), args.Error(1)
}
func (m *mockRepo) CreateProduct(ctx context.Context, p *models.Product) error {
	return m.Called(ctx, p).Error(0)
}
func (m *mockRepo) UpdateProduct(ctx context.Context, p *models.Product) error {
	return m.Called(ctx, p).Error(0)
}
func (m *mockRepo) MarkProductSynced(ctx context.Context, id int64, remoteID string, syncedAt time.Time) error {
	return m.Called(ctx, id, remoteID, syncedAt).Error(0)
}
func (m *mockRepo) CountProductsByVendor(ctx context.Context, vendorID int64) (int, error) {
	args := m.Called(ctx, vendorID)
	return args.Int(0), args.Error(1)
}
func (m *mockRepo) GetVendorByID(ctx context.Context, id int64) (*models.Vendor, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vendor), args.Error(1)
}
func (m *mockRepo) GetVendorByCode(ctx context.Context, code string) (*models.Vendor, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vendor), args.Error(1)
}
func (m *mockRepo) GetActiveVendors(ctx context.Context) ([]*models.Vendor, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Vendor), args.Error(1)
}
func (m *mockRepo) CreateVendor(ctx context.Context, v *models.Vendor) error {
	return m.Called(ctx, v).Error(0)
}
func (m *mockRepo) UpdateVendor(ctx context.Context, v *models.Vendor) error {
	return m.Called(ctx, v).Error(0)
}
func (m *mockRepo) TouchVendorSynced(ctx context.Context, id int64, syncedAt time.Time) error {
	return m.Called(ctx, id, syncedAt).Error(0)
}
func (m *mockRepo) GetStoreByID(ctx context.Context, id int64) (*models.Store, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Store), args.Error(1)
}
func (m *mockRepo) GetActiveStores(ctx context.Context) ([]*models.Store, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Store), args.Error(1)
}
func (m *mockRepo) CreateStore(ctx context.Context, s *models.Store) error {
	return m.Called(ctx, s).Error(0)
}
func (m *mockRepo) UpdateStore(ctx context.Context, s *models.Store) error {
	return m.Called(ctx, s).Error(0)
}
func (m *mockRepo) SaveSyncJob(ctx context.Context, job *models.SyncJob) error {
	return m.Called(ctx, job).Error(0)
}
func (m *mockRepo) GetSyncJob(ctx context.Context, id string) (*models.SyncJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncJob), args.Error(1)
}
func (m *mockRepo) ListSyncJobs(ctx context.Context, kind string, limit int) ([]*models.SyncJob, error) {
	args := m.Called(ctx, kind, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SyncJob), args.Error(1)
}
func (m *mockRepo) DeleteFinishedJobsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}
func (m *mockRepo) CreateUploadedRecords(ctx context.Context, records []*models.UploadedRecord) error {
	return m.Called(ctx, records).Error(0)
}
func (m *mockRepo) GetUploadedRecord(ctx context.Context, id string) (*models.UploadedRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UploadedRecord), args.Error(1)
}
func (m *mockRepo) ListUploadedRecords(ctx context.Context, ids []string) ([]*models.UploadedRecord, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.UploadedRecord), args.Error(1)
}
func (m *mockRepo) CreateActivity(ctx context.Context, entry *models.Activity) error {
	return m.Called(ctx, entry).Error(0)
}
func (m *mockRepo) ListRecentActivities(ctx context.Context, limit int) ([]*models.Activity, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Activity), args.Error(1)
}

type mockRemote struct {
	mock.Mock
}

func (m *mockRemote) ListProducts(ctx context.Context, store *models.Store, updatedSince time.Time) ([]*models.Product, *gateway.Usage, error) {
	args := m.Called(ctx, store, updatedSince)
	var products []*models.Product
	if args.Get(0) != nil {
		products = args.Get(0).([]*models.Product)
	}
	var usage *gateway.Usage
	if args.Get(1) != nil {
		usage = args.Get(1).(*gateway.Usage)
	}
	return products, usage, args.Error(2)
}
func (m *mockRemote) PushProduct(ctx context.Context, store *models.Store, p *models.Product) (string, *gateway.Usage, error) {
	args := m.Called(ctx, store, p)
	var usage *gateway.Usage
	if args.Get(1) != nil {
		usage = args.Get(1).(*gateway.Usage)
	}
	return args.String(0), usage, args.Error(2)
}

type mockFeed struct {
	mock.Mock
}

func (m *mockFeed) Fetch(ctx context.Context, vendor *models.Vendor) ([]*models.FeedRecord, error) {
	args := m.Called(ctx, vendor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.FeedRecord), args.Error(1)
}

type mockBus struct {
	mock.Mock
}

func (m *mockBus) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

// newTestSyncService wires a SyncService with a real gateway registry,
// executor and conflict engine but no pacing, retries or jitter so
// tests never sleep.
func newTestSyncService(repo *mockRepo, remote *mockRemote, feedSrc domain.FeedSource, bus domain.Broadcaster) *SyncService {
	logger := zerolog.New(io.Discard)
	clk := clock.New()
	gateways := gateway.NewRegistry(gateway.Options{RetryBase: time.Millisecond, MaxRetries: 1}, clk, logger)
	exec := resilience.NewExecutor(resilience.Config{
		Retry:            resilience.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1},
		FailureThreshold: 100,
		ResetTimeout:     time.Minute,
	}, clk, logger)
	engine := conflict.NewEngine(conflict.DefaultPolicy(), logger)
	return NewSyncService(repo, remote, feedSrc, gateways, exec, engine, bus, clk, &logger)
}

func syncJob(t *testing.T, payload models.SyncPayload) *models.SyncJob {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &models.SyncJob{ID: "job-1", Kind: models.JobKindSync, Payload: raw}
}

func TestSyncServicePush(t *testing.T) {
	ctx := context.Background()
	vendor := &models.Vendor{ID: 1, Name: "Acme", Code: "acme", Active: true}
	store := &models.Store{ID: 1, Name: "Main", BaseURL: "https://main.example.com", Active: true}

	t.Run("pushes dirty products", func(t *testing.T) {
		repo := new(mockRepo)
		remote := new(mockRemote)
		bus := new(mockBus)
		svc := newTestSyncService(repo, remote, nil, bus)

		p1 := &models.Product{ID: 10, VendorID: 1, StoreID: 1, SKU: "A-1", Name: "Widget", Price: "10.00", NeedsSync: true}
		p2 := &models.Product{ID: 11, VendorID: 1, StoreID: 1, SKU: "A-2", Name: "Gadget", Price: "4.00", NeedsSync: true}

		repo.On("GetVendorByID", mock.Anything, int64(1)).Return(vendor, nil).Once()
		repo.On("GetStoreByID", mock.Anything, int64(1)).Return(store, nil).Once()
		repo.On("ListProductsNeedingSync", mock.Anything, int64(1), 0).Return([]*models.Product{p1, p2}, nil).Once()
		remote.On("PushProduct", mock.Anything, store, p1).Return("r-10", nil, nil).Once()
		remote.On("PushProduct", mock.Anything, store, p2).Return("r-11", nil, nil).Once()
		repo.On("MarkProductSynced", mock.Anything, int64(10), "r-10", mock.AnythingOfType("time.Time")).Return(nil).Once()
		repo.On("MarkProductSynced", mock.Anything, int64(11), "r-11", mock.AnythingOfType("time.Time")).Return(nil).Once()
		repo.On("TouchVendorSynced", mock.Anything, int64(1), mock.AnythingOfType("time.Time")).Return(nil).Once()
		repo.On("CreateActivity", mock.Anything, mock.AnythingOfType("*models.Activity")).Return(nil)
		bus.On("PublishJSON", events.EventProductSynced, mock.Anything).Return(nil).Twice()

		var progressCalls []int
		err := svc.HandleSync(ctx, syncJob(t, models.SyncPayload{VendorID: 1, StoreID: 1, Direction: models.DirectionPush}), func(percent int, message string) {
			progressCalls = append(progressCalls, percent)
		})
		assert.NoError(t, err)
		assert.Equal(t, []int{100}, progressCalls)
		repo.AssertExpectations(t)
		remote.AssertExpectations(t)
		bus.AssertExpectations(t)
	})

	t.Run("parks storefront rejections", func(t *testing.T) {
		repo := new(mockRepo)
		remote := new(mockRemote)
		bus := new(mockBus)
		svc := newTestSyncService(repo, remote, nil, bus)

		bad := &models.Product{ID: 10, VendorID: 1, StoreID: 1, SKU: "A-1", Price: "-1", NeedsSync: true}
		good := &models.Product{ID: 11, VendorID: 1, StoreID: 1, SKU: "A-2", Price: "4.00", NeedsSync: true}

		repo.On("GetVendorByID", mock.Anything, int64(1)).Return(vendor, nil).Once()
		repo.On("GetStoreByID", mock.Anything, int64(1)).Return(store, nil).Once()
		repo.On("ListProductsNeedingSync", mock.Anything, int64(1), 0).Return([]*models.Product{bad, good}, nil).Once()
		remote.On("PushProduct", mock.Anything, store, bad).
			Return("", nil, &resilience.HTTPError{StatusCode: 422, Status: "422 Unprocessable Entity", Body: "price must be positive"}).Once()
		remote.On("PushProduct", mock.Anything, store, good).Return("r-11", nil, nil).Once()

		var parked *models.Product
		repo.On("UpdateProduct", mock.Anything, mock.AnythingOfType("*models.Product")).
			Run(func(args mock.Arguments) { parked = args.Get(1).(*models.Product) }).
			Return(nil).Once()
		repo.On("MarkProductSynced", mock.Anything, int64(11), "r-11", mock.AnythingOfType("time.Time")).Return(nil).Once()
		repo.On("TouchVendorSynced", mock.Anything, int64(1), mock.AnythingOfType("time.Time")).Return(nil).Once()
		repo.On("CreateActivity", mock.Anything, mock.AnythingOfType("*models.Activity")).Return(nil)
		bus.On("PublishJSON", events.EventProductSynced, mock.Anything).Return(nil).Once()

		err := svc.HandleSync(ctx, syncJob(t, models.SyncPayload{VendorID: 1, StoreID: 1, Direction: models.DirectionPush}), func(int, string) {})
		assert.NoError(t, err)
		if assert.NotNil(t, parked) {
			assert.Equal(t, "A-1", parked.SKU)
			assert.False(t, parked.NeedsSync, "rejected product must not be resubmitted verbatim")
		}
		repo.AssertExpectations(t)
		remote.AssertExpectations(t)
	})

	t.Run("aborts on auth failure", func(t *testing.T) {
		repo := new(mockRepo)
		remote := new(mockRemote)
		bus := new(mockBus)
		svc := newTestSyncService(repo, remote, nil, bus)

		p := &models.Product{ID: 10, VendorID: 1, StoreID: 1, SKU: "A-1", NeedsSync: true}

		repo.On("GetVendorByID", mock.Anything, int64(1)).Return(vendor, nil).Once()
		repo.On("GetStoreByID", mock.Anything, int64(1)).Return(store, nil).Once()
		repo.On("ListProductsNeedingSync", mock.Anything, int64(1), 0).Return([]*models.Product{p}, nil).Once()
		remote.On("PushProduct", mock.Anything, store, p).
			Return("", nil, &resilience.HTTPError{StatusCode: 401, Status: "401 Unauthorized"}).Once()

		err := svc.HandleSync(ctx, syncJob(t, models.SyncPayload{VendorID: 1, StoreID: 1, Direction: models.DirectionPush}), func(int, string) {})
		var serr *resilience.SyncError
		assert.Error(t, err)
		assert.True(t, errors.As(err, &serr))
		assert.Equal(t, resilience.KindAuth, serr.Kind)
		repo.AssertNotCalled(t, "MarkProductSynced", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "TouchVendorSynced", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects inactive vendor", func(t *testing.T) {
		repo := new(mockRepo)
		remote := new(mockRemote)
		bus := new(mockBus)
		svc := newTestSyncService(repo, remote, nil, bus)

		repo.On("GetVendorByID", mock.Anything, int64(1)).
			Return(&models.Vendor{ID: 1, Name: "Dormant", Active: false}, nil).Once()

		err := svc.HandleSync(ctx, syncJob(t, models.SyncPayload{VendorID: 1, StoreID: 1, Direction: models.DirectionPush}), func(int, string) {})
		assert.ErrorContains(t, err, "inactive")
	})
}

func TestSyncServicePull(t *testing.T) {
	ctx := context.Background()
	store := &models.Store{ID: 1, Name: "Main", BaseURL: "https://main.example.com", Active: true}

	t.Run("creates products from feed and storefront", func(t *testing.T) {
		repo := new(mockRepo)
		remote := new(mockRemote)
		feedSrc := new(mockFeed)
		bus := new(mockBus)
		svc := newTestSyncService(repo, remote, feedSrc, bus)

		vendor := &models.Vendor{ID: 1, Name: "Acme", Code: "acme", SheetID: "sheet-1", Active: true}
		repo.On("GetVendorByID", mock.Anything, int64(1)).Return(vendor, nil).Once()
		repo.On("GetStoreByID", mock.Anything, int64(1)).Return(store, nil).Once()
		feedSrc.On("Fetch", mock.Anything, vendor).Return([]*models.FeedRecord{
			{Row: 2, SKU: "A-1", Fields: map[string]any{"name": "Widget", "price": "10.00"}},
		}, nil).Once()
		remote.On("ListProducts", mock.Anything, store, vendor.LastSyncAt).Return([]*models.Product{
			{SKU: "B-1", Name: "Imported", Price: "6.00", Status: "active", RemoteID: "77", RemoteSyncedAt: time.Now()},
		}, nil, nil).Once()

		repo.On("GetProductBySKU", mock.Anything, int64(1), "A-1").Return(nil, database.ErrNotFound).Once()
		repo.On("GetProductBySKU", mock.Anything, int64(1), "B-1").Return(nil, database.ErrNotFound).Once()

		var created []*models.Product
		repo.On("CreateProduct", mock.Anything, mock.AnythingOfType("*models.Product")).
			Run(func(args mock.Arguments) { created = append(created, args.Get(1).(*models.Product)) }).
			Return(nil).Twice()
		repo.On("TouchVendorSynced", mock.Anything, int64(1), mock.AnythingOfType("time.Time")).Return(nil).Once()
		repo.On("CreateActivity", mock.Anything, mock.AnythingOfType("*models.Activity")).Return(nil)

		err := svc.HandleSync(ctx, syncJob(t, models.SyncPayload{VendorID: 1, StoreID: 1, Direction: models.DirectionPull, SyncPrices: true}), func(int, string) {})
		assert.NoError(t, err)
		if assert.Len(t, created, 2) {
			fromFeed, fromRemote := created[0], created[1]
			assert.Equal(t, "A-1", fromFeed.SKU)
			assert.Equal(t, "Widget", fromFeed.Name)
			assert.Equal(t, "10.00", fromFeed.Price)
			assert.True(t, fromFeed.NeedsSync, "vendor-sourced product needs a push")
			assert.Equal(t, models.SourceVendorImport, fromFeed.LastModifiedBy)

			assert.Equal(t, "B-1", fromRemote.SKU)
			assert.Equal(t, "77", fromRemote.RemoteID)
			assert.False(t, fromRemote.NeedsSync, "storefront-sourced product is already in sync")
			assert.Equal(t, models.SourceRemoteSync, fromRemote.LastModifiedBy)
		}
		repo.AssertExpectations(t)
	})

	t.Run("vendor authority wins price disagreements", func(t *testing.T) {
		repo := new(mockRepo)
		remote := new(mockRemote)
		feedSrc := new(mockFeed)
		bus := new(mockBus)
		svc := newTestSyncService(repo, remote, feedSrc, bus)

		vendor := &models.Vendor{ID: 1, Name: "Acme", SheetID: "sheet-1", Active: true}
		local := &models.Product{ID: 5, VendorID: 1, StoreID: 1, SKU: "A-1", Name: "Widget", Price: "5.50", Status: "active"}

		repo.On("GetVendorByID", mock.Anything, int64(1)).Return(vendor, nil).Once()
		repo.On("GetStoreByID", mock.Anything, int64(1)).Return(store, nil).Once()
		feedSrc.On("Fetch", mock.Anything, vendor).Return([]*models.FeedRecord{
			{Row: 2, SKU: "A-1", Fields: map[string]any{"name": "Widget", "price": "5.00"}},
		}, nil).Once()
		remote.On("ListProducts", mock.Anything, store, vendor.LastSyncAt).Return([]*models.Product{
			{SKU: "A-1", Name: "Widget", Price: "6.00", Status: "active", RemoteID: "77", RemoteSyncedAt: time.Now()},
		}, nil, nil).Once()
		repo.On("GetProductBySKU", mock.Anything, int64(1), "A-1").Return(local, nil).Once()

		var updated *models.Product
		repo.On("UpdateProduct", mock.Anything, mock.AnythingOfType("*models.Product")).
			Run(func(args mock.Arguments) { updated = args.Get(1).(*models.Product) }).
			Return(nil).Once()
		repo.On("TouchVendorSynced", mock.Anything, int64(1), mock.AnythingOfType("time.Time")).Return(nil).Once()
		repo.On("CreateActivity", mock.Anything, mock.AnythingOfType("*models.Activity")).Return(nil)

		err := svc.HandleSync(ctx, syncJob(t, models.SyncPayload{VendorID: 1, StoreID: 1, Direction: models.DirectionPull, SyncPrices: true}), func(int, string) {})
		assert.NoError(t, err)
		if assert.NotNil(t, updated) {
			assert.Equal(t, "5.00", updated.Price, "vendor is authoritative for price")
			assert.Equal(t, models.ConflictStateNone, updated.ConflictState)
			assert.True(t, updated.NeedsSync)
			assert.Equal(t, "77", updated.RemoteID)
		}
		repo.AssertExpectations(t)
	})

	t.Run("undecidable fields go to pending resolution", func(t *testing.T) {
		repo := new(mockRepo)
		remote := new(mockRemote)
		feedSrc := new(mockFeed)
		bus := new(mockBus)
		svc := newTestSyncService(repo, remote, feedSrc, bus)

		vendor := &models.Vendor{ID: 1, Name: "Acme", SheetID: "sheet-1", Active: true}
		// Never locally edited, and the storefront reported no
		// update time: nobody can prove recency for description.
		local := &models.Product{ID: 5, VendorID: 1, StoreID: 1, SKU: "A-1", Name: "Widget", Description: "local words", Status: "active"}

		repo.On("GetVendorByID", mock.Anything, int64(1)).Return(vendor, nil).Once()
		repo.On("GetStoreByID", mock.Anything, int64(1)).Return(store, nil).Once()
		feedSrc.On("Fetch", mock.Anything, vendor).Return([]*models.FeedRecord{
			{Row: 2, SKU: "A-1", Fields: map[string]any{"description": "vendor words"}},
		}, nil).Once()
		remote.On("ListProducts", mock.Anything, store, vendor.LastSyncAt).Return([]*models.Product{
			{SKU: "A-1", Name: "Widget", Description: "remote words", Status: "active"},
		}, nil, nil).Once()
		repo.On("GetProductBySKU", mock.Anything, int64(1), "A-1").Return(local, nil).Once()

		var updated *models.Product
		repo.On("UpdateProduct", mock.Anything, mock.AnythingOfType("*models.Product")).
			Run(func(args mock.Arguments) { updated = args.Get(1).(*models.Product) }).
			Return(nil).Once()
		repo.On("TouchVendorSynced", mock.Anything, int64(1), mock.AnythingOfType("time.Time")).Return(nil).Once()
		repo.On("CreateActivity", mock.Anything, mock.AnythingOfType("*models.Activity")).Return(nil)
		bus.On("PublishJSON", events.EventProductConflict, mock.Anything).Return(nil).Once()

		err := svc.HandleSync(ctx, syncJob(t, models.SyncPayload{VendorID: 1, StoreID: 1, Direction: models.DirectionPull, SyncDescriptions: true}), func(int, string) {})
		assert.NoError(t, err)
		if assert.NotNil(t, updated) {
			assert.Equal(t, models.ConflictStatePending, updated.ConflictState)
			assert.Equal(t, []string{"description"}, updated.PendingFields)
			assert.Equal(t, "local words", updated.Description, "conflicted field keeps the local value")
			assert.False(t, updated.NeedsSync, "pending products stay out of the push queue")
		}
		bus.AssertExpectations(t)
	})
}

func TestSyncServicePricingUpdate(t *testing.T) {
	ctx := context.Background()

	repo := new(mockRepo)
	remote := new(mockRemote)
	bus := new(mockBus)
	svc := newTestSyncService(repo, remote, nil, bus)

	products := []*models.Product{
		{ID: 1, VendorID: 1, StoreID: 1, SKU: "A-1", Price: "10.00"},
		{ID: 2, VendorID: 1, StoreID: 1, SKU: "A-2", Price: ""},
	}
	repo.On("ListProductsByVendor", mock.Anything, int64(1)).Return(products, nil).Once()

	var updated []*models.Product
	repo.On("UpdateProduct", mock.Anything, mock.AnythingOfType("*models.Product")).
		Run(func(args mock.Arguments) { updated = append(updated, args.Get(1).(*models.Product)) }).
		Return(nil).Once()
	repo.On("CreateActivity", mock.Anything, mock.AnythingOfType("*models.Activity")).Return(nil)

	raw, _ := json.Marshal(models.PricingUpdatePayload{VendorID: 1, Multiplier: 1.1})
	job := &models.SyncJob{ID: "job-2", Kind: models.JobKindPricingUpdate, Payload: raw}

	err := svc.HandlePricingUpdate(ctx, job, func(int, string) {})
	assert.NoError(t, err)
	if assert.Len(t, updated, 1) {
		assert.Equal(t, "11.00", updated[0].Price)
		assert.True(t, updated[0].NeedsSync)
		assert.True(t, updated[0].FieldEdited("price"))
		assert.Equal(t, models.SourceLocalEdit, updated[0].LastModifiedBy)
	}
	repo.AssertExpectations(t)
}
