package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/orbiter/internal/common"
	"github.com/ternarybob/orbiter/internal/interfaces"
	"github.com/ternarybob/orbiter/internal/models"
)

// ImportExternalOrders pulls orders placed through the external archive's
// ordering surface into the local store. Imports are idempotent: an
// existing order is reconciled scene-by-scene, never recreated; insertion
// failures are isolated per scene so a partial batch still lands.
func (s *Service) ImportExternalOrders(ctx context.Context) error {
	pending, err := s.landsat.FetchPendingOrders(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch pending external orders: %w", err)
	}

	for key, units := range pending {
		if err := s.importOrderGroup(ctx, key, units); err != nil {
			// Archive partial failure is isolated per order group
			s.logger.Error().
				Err(err).
				Str("external_order_ref", key.OrderRef).
				Str("email", key.Email).
				Msg("Failed to import external order")
		}
	}
	return nil
}

func (s *Service) importOrderGroup(ctx context.Context, key interfaces.ExternalOrderKey, units []interfaces.ExternalUnit) error {
	orderID := common.ImportedOrderID(key.Email, key.OrderRef)

	order, err := s.store.Orders().GetOrder(ctx, orderID)
	switch {
	case err == nil:
		if err := s.reconcileMissingScenes(ctx, order, units); err != nil {
			return err
		}
	case errors.Is(err, interfaces.ErrOrderNotFound):
		order, err = s.createImportedOrder(ctx, orderID, key, units)
		if err != nil {
			return err
		}
	default:
		return err
	}

	return s.pushGroupStatuses(ctx, order, units)
}

// reconcileMissingScenes inserts scenes present upstream but absent
// locally. A failed insert is a non-fatal partial failure; the existing
// order is never deleted or rebuilt.
func (s *Service) reconcileMissingScenes(ctx context.Context, order *models.Order, units []interfaces.ExternalUnit) error {
	existing, err := s.store.Scenes().ListScenes(ctx, &interfaces.SceneFilter{OrderID: order.OrderID})
	if err != nil {
		return err
	}
	present := make(map[string]struct{}, len(existing))
	for _, scene := range existing {
		present[scene.Name] = struct{}{}
	}

	for _, unit := range units {
		if _, ok := present[unit.SceneID]; ok {
			continue
		}
		scene, err := s.buildImportedScene(order, unit)
		if err != nil {
			s.logger.Warn().Err(err).Str("scene", unit.SceneID).Str("order_id", order.OrderID).Msg("Skipping unimportable scene")
			continue
		}
		if err := s.store.Scenes().InsertScenes(ctx, []*models.Scene{scene}); err != nil {
			s.logger.Warn().Err(err).Str("scene", unit.SceneID).Str("order_id", order.OrderID).Msg("Failed to insert missing scene")
		}
	}
	return nil
}

// createImportedOrder finds or creates the requester, synthesizes default
// product selections from the unit sensor kinds, and creates the order and
// its scenes.
func (s *Service) createImportedOrder(ctx context.Context, orderID string, key interfaces.ExternalOrderKey, units []interfaces.ExternalUnit) (*models.Order, error) {
	requester, err := s.store.Requesters().GetOrCreate(ctx, key.Email, key.ContactID)
	if err != nil {
		return nil, err
	}

	opts := models.ProductOptions{Selections: make(map[models.SensorKind]models.ProductSelection)}
	for _, unit := range units {
		info, err := models.ClassifyProductID(unit.SceneID)
		if err != nil {
			continue
		}
		if _, ok := opts.Selections[info.Kind]; ok {
			continue
		}
		sel, err := models.DefaultSelection(info.Kind)
		if err != nil {
			continue
		}
		opts.Selections[info.Kind] = sel
	}

	order := models.NewExternalOrder(orderID, key.OrderRef, key.Email, requester.ContactID, opts)
	if order.ContactID == "" {
		order.ContactID = key.ContactID
	}
	if err := s.store.Orders().InsertOrder(ctx, order); err != nil {
		return nil, err
	}

	var scenes []*models.Scene
	for _, unit := range units {
		scene, err := s.buildImportedScene(order, unit)
		if err != nil {
			s.logger.Warn().Err(err).Str("scene", unit.SceneID).Str("order_id", orderID).Msg("Skipping unimportable scene")
			continue
		}
		scenes = append(scenes, scene)
	}
	if len(scenes) > 0 {
		if err := s.store.Scenes().InsertScenes(ctx, scenes); err != nil {
			// Partial failure: the order stays, remaining scenes arrive on
			// a later pass via reconcileMissingScenes
			s.logger.Warn().Err(err).Str("order_id", orderID).Msg("Partial scene insert for imported order")
		}
	}

	s.logger.Info().
		Str("order_id", orderID).
		Str("external_order_ref", key.OrderRef).
		Int("scenes", len(scenes)).
		Msg("Imported external order")
	return order, nil
}

// buildImportedScene creates the local scene for one external unit. Scenes
// whose default product is surface reflectance but whose acquisition
// predates the sensor's auxiliary data are inserted directly unavailable.
func (s *Service) buildImportedScene(order *models.Order, unit interfaces.ExternalUnit) (*models.Scene, error) {
	info, err := models.ClassifyProductID(unit.SceneID)
	if err != nil {
		return nil, err
	}

	scene := models.NewScene(order.OrderID, unit.SceneID, info.Type)
	scene.ExternalOrderRef = order.ExternalOrderRef
	scene.ExternalUnitRef = unit.UnitNumber
	scene.RetryLimit = s.cfg.Production.DefaultRetries

	sel, hasSel := order.ProductOpts.SelectionFor(info.Kind)
	if hasSel && sel.SurfaceReflectance && !srEligible(info, unit.SceneID) {
		now := time.Now()
		scene.Status = models.SceneStatusUnavailable
		scene.CompletionDate = &now
		if info.SRAuxStart != nil {
			scene.Note = "no auxiliary data for acquisitions before " + info.SRAuxStart.Format("2006-01-02")
		} else {
			// Kinds with no auxiliary data at all cannot produce SR
			scene.Note = "surface reflectance is not available for " + strings.ToUpper(string(info.Kind)) + " data"
		}
	}
	return scene, nil
}

func srEligible(info models.SensorInfo, sceneID string) bool {
	if info.SRAuxStart == nil {
		return false
	}
	acquired, err := models.AcquisitionDate(sceneID)
	if err != nil {
		// Cannot prove ineligibility; let processing decide
		return true
	}
	return !acquired.Before(*info.SRAuxStart)
}

// pushGroupStatuses translates every local scene status in the group back
// to the external vocabulary and pushes it. Push failures are recorded
// per-scene for the failed-sync retry pass, they never abort the batch.
func (s *Service) pushGroupStatuses(ctx context.Context, order *models.Order, units []interfaces.ExternalUnit) error {
	for _, unit := range units {
		scene, err := s.store.Scenes().GetScene(ctx, order.OrderID, unit.SceneID)
		if err != nil {
			continue
		}
		code := ExternalCode(scene.Status)
		if err := s.landsat.PushStatus(ctx, scene.ExternalOrderRef, scene.ExternalUnitRef, code); err != nil {
			s.logger.Warn().Err(err).Str("scene", scene.Key()).Str("code", code).Msg("Status push failed during import")
			scene.FailedExternalSync = code
		} else {
			scene.FailedExternalSync = ""
		}
		if err := s.store.Scenes().UpdateScene(ctx, scene); err != nil {
			return err
		}
	}
	return nil
}

// ExternalCode maps a local scene status to the archive's vocabulary.
func ExternalCode(status models.SceneStatus) string {
	switch status {
	case models.SceneStatusComplete:
		return interfaces.UnitStatusComplete
	case models.SceneStatusUnavailable:
		return interfaces.UnitStatusRejected
	default:
		return interfaces.UnitStatusInProcess
	}
}
