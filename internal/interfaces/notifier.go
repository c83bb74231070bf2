package interfaces

import (
	"context"

	"github.com/ternarybob/orbiter/internal/models"
)

// Notifier delivers user- and operator-facing messages. All sends are
// best-effort from the engine's perspective; callers record idempotency
// stamps, they never roll back state when a send fails.
type Notifier interface {
	SendInitial(ctx context.Context, order *models.Order) error
	SendCompletion(ctx context.Context, order *models.Order) error
	SendPurgeReport(ctx context.Context, before, after *CacheCapacity, orderIDs []string) error
	SendCorruptInputAlert(ctx context.Context, sceneName string) error
}
