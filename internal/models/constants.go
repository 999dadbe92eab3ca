package models

import "time"

// Job kinds accepted by the orchestrator. One job of each kind may be
// active at a time.
const (
	JobKindSync          = "sync"
	JobKindFileImport    = "file_import"
	JobKindPricingUpdate = "pricing_update"
)

// Job lifecycle statuses.
const (
	JobStatusPending   = "pending"
	JobStatusActive    = "active"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Sync directions.
const (
	DirectionPull          = "pull"
	DirectionPush          = "push"
	DirectionBidirectional = "bidirectional"
)

// Import modes for vendor file imports.
const (
	ImportModeNewOnly        = "new_only"
	ImportModeUpdateExisting = "update_existing"
	ImportModeBoth           = "both"
)

// Field provenance recorded on products when a sync, import or manual
// edit touches them.
const (
	SourceVendorImport = "vendor_import"
	SourceLocalEdit    = "local_edit"
	SourceRemoteSync   = "remote_sync"
)

// Conflict states a product can be in.
const (
	ConflictStateNone    = "none"
	ConflictStatePending = "pending_resolution"
)

// Product listing statuses mirrored from the storefront.
const (
	ProductStatusActive   = "active"
	ProductStatusDraft    = "draft"
	ProductStatusArchived = "archived"
)

const (
	// DefaultJobMaxAttempts is how many times a job is run before it is
	// marked failed.
	DefaultJobMaxAttempts = 3

	// DefaultJobRetention is how long finished jobs are kept before the
	// orchestrator sweeps them.
	DefaultJobRetention = 24 * time.Hour

	// DefaultBatchSize bounds how many products a sync handler pushes
	// per batch.
	DefaultBatchSize = 25

	// DefaultRateCapacity and DefaultRateRefillPerSec seed new store
	// gateways when the store record does not carry its own limits.
	DefaultRateCapacity     = 40
	DefaultRateRefillPerSec = 2.0

	// DefaultRecentEvents caps the event feed ring exposed over the API.
	DefaultRecentEvents = 100
)
