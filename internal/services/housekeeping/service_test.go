package housekeeping

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
	badgerstore "github.com/ternarybob/orbiter/internal/storage/badger"
)

type fakeGrid struct {
	jobs map[string]struct{}
	err  error
}

func (f *fakeGrid) ActiveJobNames(ctx context.Context) (map[string]struct{}, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.jobs, nil
}

type fakeCache struct {
	interfaces.OnlineCache
	deleted   []string
	failOrder string
	capacity  *interfaces.CacheCapacity
}

func (f *fakeCache) Delete(ctx context.Context, orderID string) error {
	if orderID == f.failOrder {
		return fmt.Errorf("device busy")
	}
	f.deleted = append(f.deleted, orderID)
	return nil
}

func (f *fakeCache) Capacity(ctx context.Context) (*interfaces.CacheCapacity, error) {
	if f.capacity == nil {
		return nil, fmt.Errorf("statfs failed")
	}
	return f.capacity, nil
}

type fakeNotifier struct {
	interfaces.Notifier
	initial      []string
	completions  []string
	purgeReports int
	failInitial  bool
	failComplete bool
}

func (f *fakeNotifier) SendInitial(ctx context.Context, order *models.Order) error {
	if f.failInitial {
		return fmt.Errorf("smtp unreachable")
	}
	f.initial = append(f.initial, order.OrderID)
	return nil
}

func (f *fakeNotifier) SendCompletion(ctx context.Context, order *models.Order) error {
	if f.failComplete {
		return fmt.Errorf("smtp unreachable")
	}
	f.completions = append(f.completions, order.OrderID)
	return nil
}

func (f *fakeNotifier) SendPurgeReport(ctx context.Context, before, after *interfaces.CacheCapacity, orderIDs []string) error {
	f.purgeReports++
	return nil
}

type testEnv struct {
	store    interfaces.StorageManager
	grid     *fakeGrid
	cache    *fakeCache
	notifier *fakeNotifier
	svc      *Service
	cfg      *common.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := arbor.NewLogger()
	store, err := badgerstore.NewManager(logger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := common.DefaultConfig()
	env := &testEnv{
		store:    store,
		grid:     &fakeGrid{jobs: map[string]struct{}{}},
		cache:    &fakeCache{capacity: &interfaces.CacheCapacity{Capacity: 100, Used: 60, Available: 40, PercentFree: 40}},
		notifier: &fakeNotifier{},
		cfg:      cfg,
	}
	env.svc = NewService(store, env.grid, env.cache, env.notifier, cfg, logger)
	return env
}

func (e *testEnv) seedScene(t *testing.T, scene *models.Scene) {
	t.Helper()
	require.NoError(t, e.store.Scenes().InsertScenes(context.Background(), []*models.Scene{scene}))
}

func (e *testEnv) seedOrder(t *testing.T, order *models.Order) {
	t.Helper()
	require.NoError(t, e.store.Orders().InsertOrder(context.Background(), order))
}

func (e *testEnv) getScene(t *testing.T, orderID, name string) *models.Scene {
	t.Helper()
	scene, err := e.store.Scenes().GetScene(context.Background(), orderID, name)
	require.NoError(t, err)
	return scene
}

func (e *testEnv) getOrder(t *testing.T, orderID string) *models.Order {
	t.Helper()
	order, err := e.store.Orders().GetOrder(context.Background(), orderID)
	require.NoError(t, err)
	return order
}

func TestPromoteRetries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)

	due := models.NewScene("order-1", "LT50290302005119PAC01", models.SensorTypeLandsat)
	due.Status = models.SceneStatusRetry
	due.RetryAfter = &past
	due.Note = "Network error, retrying"
	env.seedScene(t, due)

	notDue := models.NewScene("order-1", "LT50290312005119PAC01", models.SensorTypeLandsat)
	notDue.Status = models.SceneStatusRetry
	notDue.RetryAfter = &future
	env.seedScene(t, notDue)

	require.NoError(t, env.svc.PromoteRetries(ctx))

	promoted := env.getScene(t, "order-1", due.Name)
	assert.Equal(t, models.SceneStatusSubmitted, promoted.Status)
	assert.Empty(t, promoted.Note)

	waiting := env.getScene(t, "order-1", notDue.Name)
	assert.Equal(t, models.SceneStatusRetry, waiting.Status)
}

func TestAggregatePlotsWithCompletedInputs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	input := models.NewScene("order-1", "LT50290302005119PAC01", models.SensorTypeLandsat)
	input.Status = models.SceneStatusComplete
	env.seedScene(t, input)

	plot := models.NewScene("order-1", models.PlotSceneName, models.SensorTypePlot)
	env.seedScene(t, plot)

	require.NoError(t, env.svc.AggregatePlots(ctx))

	got := env.getScene(t, "order-1", models.PlotSceneName)
	assert.Equal(t, models.SceneStatusOnCache, got.Status)
}

func TestAggregatePlotsNoCompletedInputs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	input := models.NewScene("order-1", "LT50290302005119PAC01", models.SensorTypeLandsat)
	input.Status = models.SceneStatusUnavailable
	env.seedScene(t, input)

	plot := models.NewScene("order-1", models.PlotSceneName, models.SensorTypePlot)
	env.seedScene(t, plot)

	require.NoError(t, env.svc.AggregatePlots(ctx))

	got := env.getScene(t, "order-1", models.PlotSceneName)
	assert.Equal(t, models.SceneStatusUnavailable, got.Status)
	assert.Contains(t, got.Note, "no inputs available")
}

func TestAggregatePlotsWaitsForOutstandingInputs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	done := models.NewScene("order-1", "LT50290302005119PAC01", models.SensorTypeLandsat)
	done.Status = models.SceneStatusComplete
	env.seedScene(t, done)

	pending := models.NewScene("order-1", "LT50290312005119PAC01", models.SensorTypeLandsat)
	pending.Status = models.SceneStatusProcessing
	env.seedScene(t, pending)

	plot := models.NewScene("order-1", models.PlotSceneName, models.SensorTypePlot)
	env.seedScene(t, plot)

	require.NoError(t, env.svc.AggregatePlots(ctx))

	got := env.getScene(t, "order-1", models.PlotSceneName)
	assert.Equal(t, models.SceneStatusSubmitted, got.Status)
}

func TestDetectOrphansTwoPassConfirmation(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Production.OrphanThreshold = 0 // confirm on the second sighting
	ctx := context.Background()

	scene := models.NewScene("order-1", "LT50290302005119PAC01", models.SensorTypeLandsat)
	scene.Status = models.SceneStatusProcessing
	scene.JobName = "job-gone"
	env.seedScene(t, scene)

	// First pass stamps, does not flag.
	require.NoError(t, env.svc.DetectOrphans(ctx))
	got := env.getScene(t, "order-1", scene.Name)
	require.NotNil(t, got.ReportedOrphan)
	assert.False(t, got.Orphaned)

	// Second pass past the threshold confirms.
	require.NoError(t, env.svc.DetectOrphans(ctx))
	got = env.getScene(t, "order-1", scene.Name)
	assert.True(t, got.Orphaned)
	assert.Equal(t, models.SceneStatusProcessing, got.Status, "orphan flag is diagnostic, status untouched")
}

func TestDetectOrphansWithinThresholdStaysUnconfirmed(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Production.OrphanThreshold = 10 * time.Minute
	ctx := context.Background()

	scene := models.NewScene("order-1", "LT50290302005119PAC01", models.SensorTypeLandsat)
	scene.Status = models.SceneStatusProcessing
	scene.JobName = "job-gone"
	stamp := time.Now().Add(-time.Minute)
	scene.ReportedOrphan = &stamp
	env.seedScene(t, scene)

	require.NoError(t, env.svc.DetectOrphans(ctx))

	got := env.getScene(t, "order-1", scene.Name)
	assert.False(t, got.Orphaned, "stamp younger than the threshold must not confirm")
	require.NotNil(t, got.ReportedOrphan)
	assert.True(t, got.ReportedOrphan.Equal(stamp), "first-seen stamp is not refreshed")
}

func TestDetectOrphansClearsStampWhenJobReappears(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	scene := models.NewScene("order-1", "LT50290302005119PAC01", models.SensorTypeLandsat)
	scene.Status = models.SceneStatusQueued
	scene.JobName = "job-alive"
	stamp := time.Now().Add(-time.Minute)
	scene.ReportedOrphan = &stamp
	env.seedScene(t, scene)

	env.grid.jobs = map[string]struct{}{"job-alive": {}}

	require.NoError(t, env.svc.DetectOrphans(ctx))

	got := env.getScene(t, "order-1", scene.Name)
	assert.Nil(t, got.ReportedOrphan)
	assert.False(t, got.Orphaned)
}

func TestSendInitialEmailsStampsOnSuccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedOrder(t, models.NewOrder("order-1", "alice@example.com", models.ProductOptions{}))

	require.NoError(t, env.svc.SendInitialEmails(ctx))
	require.Len(t, env.notifier.initial, 1)

	order := env.getOrder(t, "order-1")
	require.NotNil(t, order.InitialEmailSent)

	// Second pass must not resend.
	require.NoError(t, env.svc.SendInitialEmails(ctx))
	assert.Len(t, env.notifier.initial, 1)
}

func TestSendInitialEmailsFailureLeavesStampUnset(t *testing.T) {
	env := newTestEnv(t)
	env.notifier.failInitial = true

	env.seedOrder(t, models.NewOrder("order-1", "alice@example.com", models.ProductOptions{}))

	require.NoError(t, env.svc.SendInitialEmails(context.Background()))

	order := env.getOrder(t, "order-1")
	assert.Nil(t, order.InitialEmailSent)
}

func TestFinalizeOrdersCompletesWhenAllTerminal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedOrder(t, models.NewOrder("order-1", "alice@example.com", models.ProductOptions{}))

	done := models.NewScene("order-1", "LT50290302005119PAC01", models.SensorTypeLandsat)
	done.Status = models.SceneStatusComplete
	env.seedScene(t, done)

	gone := models.NewScene("order-1", "LT50290312005119PAC01", models.SensorTypeLandsat)
	gone.Status = models.SceneStatusUnavailable
	env.seedScene(t, gone)

	require.NoError(t, env.svc.FinalizeOrders(ctx))

	order := env.getOrder(t, "order-1")
	assert.Equal(t, models.OrderStatusComplete, order.Status)
	require.NotNil(t, order.CompletionDate)
	require.NotNil(t, order.CompletionEmailSent)
	assert.Equal(t, []string{"order-1"}, env.notifier.completions)

	// Finalization is idempotent: a second pass leaves the stamps alone
	// and sends nothing.
	completedAt := *order.CompletionDate
	emailedAt := *order.CompletionEmailSent

	require.NoError(t, env.svc.FinalizeOrders(ctx))

	order = env.getOrder(t, "order-1")
	assert.Equal(t, models.OrderStatusComplete, order.Status)
	require.NotNil(t, order.CompletionDate)
	assert.True(t, order.CompletionDate.Equal(completedAt))
	require.NotNil(t, order.CompletionEmailSent)
	assert.True(t, order.CompletionEmailSent.Equal(emailedAt))
	assert.Equal(t, []string{"order-1"}, env.notifier.completions)
}

func TestFinalizeOrdersWaitsForOpenScenes(t *testing.T) {
	env := newTestEnv(t)

	env.seedOrder(t, models.NewOrder("order-1", "alice@example.com", models.ProductOptions{}))

	open := models.NewScene("order-1", "LT50290302005119PAC01", models.SensorTypeLandsat)
	open.Status = models.SceneStatusProcessing
	env.seedScene(t, open)

	require.NoError(t, env.svc.FinalizeOrders(context.Background()))

	order := env.getOrder(t, "order-1")
	assert.Equal(t, models.OrderStatusOrdered, order.Status)
	assert.Empty(t, env.notifier.completions)
}

func TestFinalizeOrdersExternalOrdersGetNoEmail(t *testing.T) {
	env := newTestEnv(t)

	env.seedOrder(t, models.NewExternalOrder("bob@example.com-ext-1", "ext-1", "bob@example.com", "c-1", models.ProductOptions{}))

	done := models.NewScene("bob@example.com-ext-1", "LT50290302005119PAC01", models.SensorTypeLandsat)
	done.Status = models.SceneStatusComplete
	env.seedScene(t, done)

	require.NoError(t, env.svc.FinalizeOrders(context.Background()))

	order := env.getOrder(t, "bob@example.com-ext-1")
	assert.Equal(t, models.OrderStatusComplete, order.Status)
	assert.Empty(t, env.notifier.completions)
}

func TestFinalizeOrdersEmailFailureDoesNotRollBack(t *testing.T) {
	env := newTestEnv(t)
	env.notifier.failComplete = true

	env.seedOrder(t, models.NewOrder("order-1", "alice@example.com", models.ProductOptions{}))

	done := models.NewScene("order-1", "LT50290302005119PAC01", models.SensorTypeLandsat)
	done.Status = models.SceneStatusComplete
	env.seedScene(t, done)

	require.NoError(t, env.svc.FinalizeOrders(context.Background()))

	order := env.getOrder(t, "order-1")
	assert.Equal(t, models.OrderStatusComplete, order.Status)
	assert.Nil(t, order.CompletionEmailSent)
}

func TestPurgeScrubsOldCompletedOrders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	old := models.NewOrder("order-old", "alice@example.com", models.ProductOptions{})
	old.Status = models.OrderStatusComplete
	past := time.Now().Add(-env.cfg.Production.PurgeRetention - time.Hour)
	old.CompletionDate = &past
	env.seedOrder(t, old)

	fresh := models.NewOrder("order-fresh", "alice@example.com", models.ProductOptions{})
	fresh.Status = models.OrderStatusComplete
	recent := time.Now().Add(-time.Hour)
	fresh.CompletionDate = &recent
	env.seedOrder(t, fresh)

	scene := models.NewScene("order-old", "LT50290302005119PAC01", models.SensorTypeLandsat)
	scene.Status = models.SceneStatusComplete
	scene.ProductDistroLocation = "/cache/order-old/a.tar.gz"
	scene.ProductDownloadURL = "http://dist/a.tar.gz"
	scene.LogContents = "log"
	env.seedScene(t, scene)

	require.NoError(t, env.svc.Purge(ctx))

	assert.Equal(t, []string{"order-old"}, env.cache.deleted)
	assert.Equal(t, models.OrderStatusPurged, env.getOrder(t, "order-old").Status)
	assert.Equal(t, models.OrderStatusComplete, env.getOrder(t, "order-fresh").Status)

	scrubbed := env.getScene(t, "order-old", scene.Name)
	assert.Equal(t, models.SceneStatusPurged, scrubbed.Status)
	assert.Empty(t, scrubbed.ProductDistroLocation)
	assert.Empty(t, scrubbed.ProductDownloadURL)
	assert.Empty(t, scrubbed.LogContents)

	assert.Equal(t, 1, env.notifier.purgeReports)
}

func TestPurgeCacheFailureLeavesOrderForNextPass(t *testing.T) {
	env := newTestEnv(t)
	env.cache.failOrder = "order-stuck"
	ctx := context.Background()

	stuck := models.NewOrder("order-stuck", "alice@example.com", models.ProductOptions{})
	stuck.Status = models.OrderStatusComplete
	past := time.Now().Add(-env.cfg.Production.PurgeRetention - time.Hour)
	stuck.CompletionDate = &past
	env.seedOrder(t, stuck)

	other := models.NewOrder("order-ok", "alice@example.com", models.ProductOptions{})
	other.Status = models.OrderStatusComplete
	other.CompletionDate = &past
	env.seedOrder(t, other)

	require.NoError(t, env.svc.Purge(ctx))

	assert.Equal(t, models.OrderStatusComplete, env.getOrder(t, "order-stuck").Status)
	assert.Equal(t, models.OrderStatusPurged, env.getOrder(t, "order-ok").Status)
}
