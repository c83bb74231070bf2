package badger

import (
	"context"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/orbiter/internal/common"
	"github.com/ternarybob/orbiter/internal/interfaces"
	"github.com/ternarybob/orbiter/internal/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	mgr, err := NewManager(arbor.NewLogger(), &common.BadgerConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

func TestSceneInsertGetUpdate(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	scene := models.NewScene("order-1", "LT50290302005119PAC01", models.SensorTypeLandsat)
	if err := mgr.Scenes().InsertScenes(ctx, []*models.Scene{scene}); err != nil {
		t.Fatalf("Failed to insert scene: %v", err)
	}

	got, err := mgr.Scenes().GetScene(ctx, "order-1", "LT50290302005119PAC01")
	if err != nil {
		t.Fatalf("Failed to get scene: %v", err)
	}
	if got.Status != models.SceneStatusSubmitted {
		t.Errorf("Expected submitted status, got %s", got.Status)
	}

	got.Status = models.SceneStatusOnCache
	if err := mgr.Scenes().UpdateScene(ctx, got); err != nil {
		t.Fatalf("Failed to update scene: %v", err)
	}

	got, err = mgr.Scenes().GetScene(ctx, "order-1", "LT50290302005119PAC01")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.SceneStatusOnCache {
		t.Errorf("Expected oncache status, got %s", got.Status)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("Expected UpdatedAt to be stamped")
	}
}

func TestSceneInsertDuplicateFails(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	scene := models.NewScene("order-1", "LT50290302005119PAC01", models.SensorTypeLandsat)
	if err := mgr.Scenes().InsertScenes(ctx, []*models.Scene{scene}); err != nil {
		t.Fatal(err)
	}

	dup := models.NewScene("order-1", "LT50290302005119PAC01", models.SensorTypeLandsat)
	if err := mgr.Scenes().InsertScenes(ctx, []*models.Scene{dup}); err == nil {
		t.Fatal("Expected duplicate insert to fail")
	}
}

func TestSceneSameNameDifferentOrders(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	a := models.NewScene("order-1", "LT50290302005119PAC01", models.SensorTypeLandsat)
	b := models.NewScene("order-2", "LT50290302005119PAC01", models.SensorTypeLandsat)
	if err := mgr.Scenes().InsertScenes(ctx, []*models.Scene{a, b}); err != nil {
		t.Fatalf("Scene identity is order-scoped, insert failed: %v", err)
	}

	b.Status = models.SceneStatusQueued
	if err := mgr.Scenes().UpdateScene(ctx, b); err != nil {
		t.Fatal(err)
	}

	got, err := mgr.Scenes().GetScene(ctx, "order-1", "LT50290302005119PAC01")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.SceneStatusSubmitted {
		t.Errorf("Update leaked across orders, got %s", got.Status)
	}
}

func TestSceneGetMissingReturnsSentinel(t *testing.T) {
	mgr := newTestManager(t)

	_, err := mgr.Scenes().GetScene(context.Background(), "order-x", "nothing")
	if err != interfaces.ErrSceneNotFound {
		t.Errorf("Expected ErrSceneNotFound, got %v", err)
	}
}

func TestListScenesFilters(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	submitted := models.NewScene("order-1", "LT50290302005119PAC01", models.SensorTypeLandsat)
	queued := models.NewScene("order-1", "LE70290302003123EDC00", models.SensorTypeLandsat)
	queued.Status = models.SceneStatusQueued
	modis := models.NewScene("order-2", "MOD09A1.A2006002.h08v05.005.2006012081643", models.SensorTypeModis)
	if err := mgr.Scenes().InsertScenes(ctx, []*models.Scene{submitted, queued, modis}); err != nil {
		t.Fatal(err)
	}

	byOrder, err := mgr.Scenes().ListScenes(ctx, &interfaces.SceneFilter{OrderID: "order-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(byOrder) != 2 {
		t.Errorf("Expected 2 scenes for order-1, got %d", len(byOrder))
	}

	byStatus, err := mgr.Scenes().ListScenes(ctx, &interfaces.SceneFilter{
		Statuses: []models.SceneStatus{models.SceneStatusSubmitted},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(byStatus) != 2 {
		t.Errorf("Expected 2 submitted scenes, got %d", len(byStatus))
	}

	bySensor, err := mgr.Scenes().ListScenes(ctx, &interfaces.SceneFilter{
		Statuses:    []models.SceneStatus{models.SceneStatusSubmitted},
		SensorTypes: []models.SensorType{models.SensorTypeModis},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(bySensor) != 1 {
		t.Errorf("Expected 1 submitted modis scene, got %d", len(bySensor))
	}
}

func TestListScenesRetryCutoffAndLimit(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)

	due := models.NewScene("order-1", "LT50290302005119PAC01", models.SensorTypeLandsat)
	due.Status = models.SceneStatusRetry
	due.RetryAfter = &past

	later := models.NewScene("order-1", "LE70290302003123EDC00", models.SensorTypeLandsat)
	later.Status = models.SceneStatusRetry
	later.RetryAfter = &future

	unset := models.NewScene("order-1", "LC80130292014100LGN00", models.SensorTypeLandsat)
	unset.Status = models.SceneStatusRetry

	if err := mgr.Scenes().InsertScenes(ctx, []*models.Scene{due, later, unset}); err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	got, err := mgr.Scenes().ListScenes(ctx, &interfaces.SceneFilter{
		Statuses:         []models.SceneStatus{models.SceneStatusRetry},
		RetryAfterBefore: &now,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != due.Name {
		t.Errorf("Expected only the due scene, got %d", len(got))
	}

	limited, err := mgr.Scenes().ListScenes(ctx, &interfaces.SceneFilter{
		Statuses: []models.SceneStatus{models.SceneStatusRetry},
		SortBy:   "Name",
		Limit:    2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Errorf("Expected limit of 2, got %d", len(limited))
	}
}

func TestListScenesSortByExternalOrderRef(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	second := models.NewScene("order-1", "LT50290302005119PAC01", models.SensorTypeLandsat)
	second.Status = models.SceneStatusOnOrder
	second.ExternalOrderRef = "batch-200"

	first := models.NewScene("order-1", "LE70290302003123EDC00", models.SensorTypeLandsat)
	first.Status = models.SceneStatusOnOrder
	first.ExternalOrderRef = "batch-100"

	if err := mgr.Scenes().InsertScenes(ctx, []*models.Scene{second, first}); err != nil {
		t.Fatal(err)
	}

	got, err := mgr.Scenes().ListScenes(ctx, &interfaces.SceneFilter{
		Statuses: []models.SceneStatus{models.SceneStatusOnOrder},
		SortBy:   "ExternalOrderRef",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ExternalOrderRef != "batch-100" {
		t.Errorf("Expected oldest batch first, got %+v", got)
	}
}

func TestUpdateMatching(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	a := models.NewScene("order-1", "LT50290302005119PAC01", models.SensorTypeLandsat)
	b := models.NewScene("order-1", "LE70290302003123EDC00", models.SensorTypeLandsat)
	other := models.NewScene("order-2", "LC80130292014100LGN00", models.SensorTypeLandsat)
	if err := mgr.Scenes().InsertScenes(ctx, []*models.Scene{a, b, other}); err != nil {
		t.Fatal(err)
	}

	updated, err := mgr.Scenes().UpdateMatching(ctx, &interfaces.SceneFilter{OrderID: "order-1"}, func(scene *models.Scene) {
		scene.Status = models.SceneStatusQueued
		scene.JobName = "job-7"
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated != 2 {
		t.Errorf("Expected 2 updates, got %d", updated)
	}

	untouched, err := mgr.Scenes().GetScene(ctx, "order-2", "LC80130292014100LGN00")
	if err != nil {
		t.Fatal(err)
	}
	if untouched.Status != models.SceneStatusSubmitted {
		t.Errorf("Bulk update leaked into order-2: %s", untouched.Status)
	}
}

func TestListScenesFailedSyncOnly(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	pending := models.NewScene("order-1", "LT50290302005119PAC01", models.SensorTypeLandsat)
	pending.Status = models.SceneStatusComplete
	pending.FailedExternalSync = "C"

	clean := models.NewScene("order-1", "LE70290302003123EDC00", models.SensorTypeLandsat)
	clean.Status = models.SceneStatusComplete

	if err := mgr.Scenes().InsertScenes(ctx, []*models.Scene{pending, clean}); err != nil {
		t.Fatal(err)
	}

	got, err := mgr.Scenes().ListScenes(ctx, &interfaces.SceneFilter{FailedSyncOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != pending.Name {
		t.Errorf("Expected only the pending-sync scene, got %d", len(got))
	}
}
