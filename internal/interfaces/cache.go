package interfaces

import (
	"context"
)

// CacheCapacity is a point-in-time snapshot of the online cache's disk.
type CacheCapacity struct {
	Capacity    int64   `json:"capacity"`
	Used        int64   `json:"used"`
	Available   int64   `json:"available"`
	PercentFree float64 `json:"percent_free"`
}

// OnlineCache is the disk-backed artifact store holding completed products.
type OnlineCache interface {
	// Delete removes every artifact belonging to the order.
	Delete(ctx context.Context, orderID string) error

	// List returns the artifact paths currently stored for the order.
	List(ctx context.Context, orderID string) ([]string, error)

	// Capacity reports the cache volume's current capacity.
	Capacity(ctx context.Context) (*CacheCapacity, error)

	// VerifyArtifact confirms an artifact exists and returns its size.
	VerifyArtifact(ctx context.Context, path string) (int64, error)
}
