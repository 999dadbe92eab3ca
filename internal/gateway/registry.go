package gateway

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/clock"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/models"
)

// Registry owns one gateway per remote account. It is created once at
// startup and handed to whatever needs remote access; there is no
// process-global instance.
type Registry struct {
	opts Options
	clk  clock.Clock
	log  zerolog.Logger

	mu       sync.Mutex
	gateways map[string]*Gateway
}

// NewRegistry creates an empty registry using opts for every gateway it
// builds.
func NewRegistry(opts Options, clk clock.Clock, logger zerolog.Logger) *Registry {
	return &Registry{
		opts:     opts,
		clk:      clk,
		log:      logger,
		gateways: make(map[string]*Gateway),
	}
}

// For returns the gateway for an account key, creating it on first use.
func (r *Registry) For(account string, capacity int, refillPerSec float64) *Gateway {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.gateways[account]
	if !ok {
		g = New(account, capacity, refillPerSec, r.opts, r.clk, r.log)
		r.gateways[account] = g
	}
	return g
}

// ForStore returns the gateway for a store record using its configured
// rate limits.
func (r *Registry) ForStore(store *models.Store) *Gateway {
	capacity, refill := store.RateLimits()
	return r.For(StoreAccount(store.ID), capacity, refill)
}

// StoreAccount is the registry key for a store.
func StoreAccount(storeID int64) string {
	return fmt.Sprintf("store:%d", storeID)
}

// Close shuts down and removes one account's gateway, rejecting its
// pending calls.
func (r *Registry) Close(account string) {
	r.mu.Lock()
	g, ok := r.gateways[account]
	delete(r.gateways, account)
	r.mu.Unlock()

	if ok {
		g.Close()
	}
}

// CloseAll shuts down every gateway, typically at daemon shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	gateways := make([]*Gateway, 0, len(r.gateways))
	for _, g := range r.gateways {
		gateways = append(gateways, g)
	}
	r.gateways = make(map[string]*Gateway)
	r.mu.Unlock()

	for _, g := range gateways {
		g.Close()
	}
}

// Snapshots reports every known gateway sorted by account key.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.Lock()
	gateways := make([]*Gateway, 0, len(r.gateways))
	for _, g := range r.gateways {
		gateways = append(gateways, g)
	}
	r.mu.Unlock()

	out := make([]Snapshot, 0, len(gateways))
	for _, g := range gateways {
		out = append(out, g.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Account < out[j].Account })
	return out
}
