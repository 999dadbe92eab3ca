package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventJobQueued       = "job_queued"
	EventJobStarted      = "job_started"
	EventJobProgress     = "job_progress"
	EventJobCompleted    = "job_completed"
	EventJobFailed       = "job_failed"
	EventProductSynced   = "product_synced"
	EventProductConflict = "product_conflict"
	EventUploadReceived  = "upload_received"
)

// JobEventPayload is the job snapshot broadcast on every state change.
type JobEventPayload struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Message  string `json:"message,omitempty"`
}

// ConflictEventPayload announces a product that needs human review.
type ConflictEventPayload struct {
	ProductID         int64  `json:"product_id"`
	SKU               string `json:"sku"`
	Fields            int    `json:"fields"`
	RecommendedAction string `json:"recommended_action"`
}

// ProductSyncedPayload announces a product pushed to the storefront.
type ProductSyncedPayload struct {
	ProductID int64  `json:"product_id"`
	SKU       string `json:"sku"`
	StoreID   int64  `json:"store_id"`
	RemoteID  string `json:"remote_id,omitempty"`
}

// UploadReceivedPayload announces a staged vendor sheet.
type UploadReceivedPayload struct {
	VendorID   int64  `json:"vendor_id"`
	SourceFile string `json:"source_file"`
	Records    int    `json:"records"`
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
	Processed bool
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
