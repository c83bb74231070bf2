package orchestrator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/orbiter/internal/common"
	"github.com/ternarybob/orbiter/internal/interfaces"
	"github.com/ternarybob/orbiter/internal/models"
	"github.com/ternarybob/orbiter/internal/services/disposition"
	"github.com/ternarybob/orbiter/internal/services/housekeeping"
	"github.com/ternarybob/orbiter/internal/services/production"
	"github.com/ternarybob/orbiter/internal/services/reconcile"
	badgerstore "github.com/ternarybob/orbiter/internal/storage/badger"
)

type fakeArchive struct {
	fetchErr error
}

func (f *fakeArchive) Verify(ctx context.Context, sceneIDs []string) (map[string]bool, error) {
	return map[string]bool{}, nil
}

func (f *fakeArchive) OrderScenes(ctx context.Context, sceneIDs []string, contactID, priority string) (*interfaces.OrderVerdict, error) {
	return &interfaces.OrderVerdict{}, nil
}

func (f *fakeArchive) PollStatus(ctx context.Context, ref string) ([]interfaces.UnitStatus, error) {
	return nil, nil
}

func (f *fakeArchive) PushStatus(ctx context.Context, ref string, unit int, code string) error {
	return nil
}

func (f *fakeArchive) FetchPendingOrders(ctx context.Context) (map[interfaces.ExternalOrderKey][]interfaces.ExternalUnit, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return nil, nil
}

type fakeModis struct{}

func (f *fakeModis) Exists(ctx context.Context, sceneID string) (bool, error) {
	return false, nil
}

type fakeGrid struct{}

func (f *fakeGrid) ActiveJobNames(ctx context.Context) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}

type fakeCache struct {
	interfaces.OnlineCache
	deleted []string
}

func (f *fakeCache) Delete(ctx context.Context, orderID string) error {
	f.deleted = append(f.deleted, orderID)
	return nil
}

func (f *fakeCache) Capacity(ctx context.Context) (*interfaces.CacheCapacity, error) {
	return &interfaces.CacheCapacity{Capacity: 100, Used: 50, Available: 50, PercentFree: 50}, nil
}

type fakeNotifier struct {
	interfaces.Notifier
}

func (f *fakeNotifier) SendInitial(ctx context.Context, order *models.Order) error {
	return nil
}

func (f *fakeNotifier) SendCompletion(ctx context.Context, order *models.Order) error {
	return nil
}

func (f *fakeNotifier) SendPurgeReport(ctx context.Context, before, after *interfaces.CacheCapacity, orderIDs []string) error {
	return nil
}

type testEnv struct {
	store   interfaces.StorageManager
	archive *fakeArchive
	cache   *fakeCache
	svc     *Service
	cfg     *common.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := arbor.NewLogger()
	store, err := badgerstore.NewManager(logger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := common.DefaultConfig()
	archive := &fakeArchive{}
	cache := &fakeCache{}
	notifier := &fakeNotifier{}

	prod := production.NewService(store, archive, cache, notifier, disposition.NewClassifier(cfg.Production), cfg, logger)
	rec := reconcile.NewService(store, archive, &fakeModis{}, prod, cfg, logger)
	hk := housekeeping.NewService(store, &fakeGrid{}, cache, notifier, cfg, logger)

	return &testEnv{
		store:   store,
		archive: archive,
		cache:   cache,
		cfg:     cfg,
		svc:     NewService(store, rec, hk, cfg, logger),
	}
}

func TestRunEmptySystem(t *testing.T) {
	env := newTestEnv(t)

	err := env.svc.Run(context.Background())
	assert.NoError(t, err)

	// An idle pass still takes the purge lock
	value, err := env.store.KV().Get(context.Background(), PurgeLockKey)
	require.NoError(t, err)
	assert.NotEmpty(t, value)
}

func TestRunSkipsPurgeWhileLockHeld(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	old := time.Now().Add(-2 * env.cfg.Production.PurgeRetention)
	order := models.NewOrder("order-old", "alice@example.com", models.ProductOptions{})
	order.Status = models.OrderStatusComplete
	order.CompletionDate = &old
	require.NoError(t, env.store.Orders().InsertOrder(ctx, order))

	require.NoError(t, env.store.KV().SetWithTTL(ctx, PurgeLockKey, "earlier-run", time.Hour))

	require.NoError(t, env.svc.Run(ctx))

	got, err := env.store.Orders().GetOrder(ctx, "order-old")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusComplete, got.Status)
	assert.Empty(t, env.cache.deleted)

	// Lock value is untouched, expiry stays on the earlier run's clock
	value, err := env.store.KV().Get(ctx, PurgeLockKey)
	require.NoError(t, err)
	assert.Equal(t, "earlier-run", value)
}

func TestRunPurgesWhenLockFree(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	old := time.Now().Add(-2 * env.cfg.Production.PurgeRetention)
	order := models.NewOrder("order-old", "alice@example.com", models.ProductOptions{})
	order.Status = models.OrderStatusComplete
	order.CompletionDate = &old
	require.NoError(t, env.store.Orders().InsertOrder(ctx, order))

	require.NoError(t, env.svc.Run(ctx))

	got, err := env.store.Orders().GetOrder(ctx, "order-old")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPurged, got.Status)
	assert.Equal(t, []string{"order-old"}, env.cache.deleted)
}

func TestRunContinuesPastFailingStep(t *testing.T) {
	env := newTestEnv(t)
	env.archive.fetchErr = fmt.Errorf("archive unreachable")

	err := env.svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "import_external_orders")

	// Later steps still ran
	_, lockErr := env.store.KV().Get(context.Background(), PurgeLockKey)
	assert.NoError(t, lockErr)
}

func TestRunHonorsCancelledContext(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := env.svc.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
