package models

import "time"

// Store is a connected storefront that products are pushed to. Rate
// limits are per store; zero values fall back to the package defaults.
type Store struct {
	ID               int64     `yaml:"id" json:"id"`
	Name             string    `yaml:"name" json:"name"`
	BaseURL          string    `yaml:"base_url" json:"base_url"`
	AccessToken      string    `yaml:"access_token" json:"-"`
	Currency         string    `yaml:"currency" json:"currency,omitempty"`
	RateCapacity     int       `yaml:"rate_capacity" json:"rate_capacity,omitempty"`
	RateRefillPerSec float64   `yaml:"rate_refill_per_sec" json:"rate_refill_per_sec,omitempty"`
	Active           bool      `yaml:"active" json:"active"`
	CreatedAt        time.Time `yaml:"-" json:"created_at"`
	UpdatedAt        time.Time `yaml:"-" json:"updated_at"`
}

// RateLimits returns the store's token bucket parameters, substituting
// defaults for unset values.
func (s *Store) RateLimits() (capacity int, refillPerSec float64) {
	capacity = s.RateCapacity
	if capacity <= 0 {
		capacity = DefaultRateCapacity
	}
	refillPerSec = s.RateRefillPerSec
	if refillPerSec <= 0 {
		refillPerSec = DefaultRateRefillPerSec
	}
	return capacity, refillPerSec
}
