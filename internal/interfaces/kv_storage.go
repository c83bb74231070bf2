package interfaces

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned when a key is absent or its TTL has elapsed.
var ErrKeyNotFound = errors.New("key not found")

// KeyValuePair is a single stored key/value with optional expiry.
type KeyValuePair struct {
	Key       string     `json:"key"`
	Value     string     `json:"value"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Expired reports whether the pair's TTL has elapsed.
func (p *KeyValuePair) Expired() bool {
	return p.ExpiresAt != nil && time.Now().After(*p.ExpiresAt)
}

// KeyValueStorage is a small key/value store. TTL'd keys back the purge
// mutex: an expired key reads as not found, which is exactly the "previous
// run finished or crashed, proceed" contract.
type KeyValueStorage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
