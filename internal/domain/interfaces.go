package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/gateway"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/models"
)

type Repository interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetProductBySKU(ctx context.Context, storeID int64, sku string) (*models.Product, error)
	ListProductsByVendor(ctx context.Context, vendorID int64) ([]*models.Product, error)
	ListProductsNeedingSync(ctx context.Context, storeID int64, limit int) ([]*models.Product, error)
	ListConflictedProducts(ctx context.Context, storeID int64) ([]*models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	UpdateProduct(ctx context.Context, product *models.Product) error
	MarkProductSynced(ctx context.Context, id int64, remoteID string, syncedAt time.Time) error
	CountProductsByVendor(ctx context.Context, vendorID int64) (int, error)
	GetVendorByID(ctx context.Context, id int64) (*models.Vendor, error)
	GetVendorByCode(ctx context.Context, code string) (*models.Vendor, error)
	GetActiveVendors(ctx context.Context) ([]*models.Vendor, error)
	CreateVendor(ctx context.Context, vendor *models.Vendor) error
	UpdateVendor(ctx context.Context, vendor *models.Vendor) error
	TouchVendorSynced(ctx context.Context, id int64, syncedAt time.Time) error
	GetStoreByID(ctx context.Context, id int64) (*models.Store, error)
	GetActiveStores(ctx context.Context) ([]*models.Store, error)
	CreateStore(ctx context.Context, store *models.Store) error
	UpdateStore(ctx context.Context, store *models.Store) error
	SaveSyncJob(ctx context.Context, job *models.SyncJob) error
	GetSyncJob(ctx context.Context, id string) (*models.SyncJob, error)
	ListSyncJobs(ctx context.Context, kind string, limit int) ([]*models.SyncJob, error)
	DeleteFinishedJobsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CreateUploadedRecords(ctx context.Context, records []*models.UploadedRecord) error
	GetUploadedRecord(ctx context.Context, id string) (*models.UploadedRecord, error)
	ListUploadedRecords(ctx context.Context, ids []string) ([]*models.UploadedRecord, error)
	CreateActivity(ctx context.Context, entry *models.Activity) error
	ListRecentActivities(ctx context.Context, limit int) ([]*models.Activity, error)
}

type Broadcaster interface {
	PublishJSON(eventType string, payload interface{}) error
}

type RemoteClient interface {
	ListProducts(ctx context.Context, store *models.Store, updatedSince time.Time) ([]*models.Product, *gateway.Usage, error)
	PushProduct(ctx context.Context, store *models.Store, product *models.Product) (string, *gateway.Usage, error)
}

type FeedSource interface {
	Fetch(ctx context.Context, vendor *models.Vendor) ([]*models.FeedRecord, error)
}

type JobQueue interface {
	Enqueue(kind string, payload json.RawMessage) (string, error)
	Status(id string) (*models.SyncJob, bool)
}

type Notifier interface {
	Notify(ctx context.Context, message string) error
}
