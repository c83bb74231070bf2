// -----------------------------------------------------------------------
// Storage contracts - the durable store is the single source of truth
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/orbiter/internal/models"
)

var (
	// ErrSceneNotFound is returned when a scene identity resolves to nothing.
	ErrSceneNotFound = errors.New("scene not found")

	// ErrOrderNotFound is returned when an order identity resolves to nothing.
	ErrOrderNotFound = errors.New("order not found")

	// ErrRetryLimitExceeded is returned when a retry would overrun the
	// scene's retry limit. The scene is not mutated.
	ErrRetryLimitExceeded = errors.New("retry limit exceeded")
)

// SceneFilter selects scenes by equality, set-membership and comparison
// criteria. Zero-valued fields are not applied.
type SceneFilter struct {
	OrderID          string
	Name             string
	Statuses         []models.SceneStatus
	SensorTypes      []models.SensorType
	RetryAfterBefore *time.Time
	FailedSyncOnly   bool
	SortBy           string
	Descending       bool
	Limit            int
}

// SceneStorage persists scenes. Bulk mutations are expressed as set-based
// updates keyed by filter so overlapping passes can safely re-run them.
type SceneStorage interface {
	InsertScenes(ctx context.Context, scenes []*models.Scene) error
	GetScene(ctx context.Context, orderID, name string) (*models.Scene, error)
	UpdateScene(ctx context.Context, scene *models.Scene) error
	ListScenes(ctx context.Context, filter *SceneFilter) ([]*models.Scene, error)

	// UpdateMatching applies mutate to every scene the filter selects and
	// persists the results, returning the number of scenes updated.
	UpdateMatching(ctx context.Context, filter *SceneFilter, mutate func(*models.Scene)) (int, error)
}

// OrderFilter selects orders.
type OrderFilter struct {
	OrderID             string
	Statuses            []models.OrderStatus
	Source              models.OrderSource
	CompletedBefore     *time.Time
	InitialEmailPending bool
	Limit               int
}

// OrderStorage persists orders.
type OrderStorage interface {
	InsertOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	UpdateOrder(ctx context.Context, order *models.Order) error
	ListOrders(ctx context.Context, filter *OrderFilter) ([]*models.Order, error)
}

// RequesterStorage resolves users by external identity.
type RequesterStorage interface {
	// GetOrCreate finds the requester for the given external identity,
	// creating the record when absent.
	GetOrCreate(ctx context.Context, email, contactID string) (*models.Requester, error)
}

// StorageManager is the composite handle over all storage concerns.
type StorageManager interface {
	Scenes() SceneStorage
	Orders() OrderStorage
	Requesters() RequesterStorage
	KV() KeyValueStorage
	Close() error
}
