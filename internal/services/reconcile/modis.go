package reconcile

import (
	"context"
	"fmt"

	"github.com/ternarybob/orbiter/internal/interfaces"
	"github.com/ternarybob/orbiter/internal/models"
)

// CheckSubmittedModis probes the MODIS archive for every submitted
// modis-type scene. The archive holds everything it will ever hold for a
// given acquisition, so a miss is final: present scenes go oncache,
// missing scenes go unavailable.
func (s *Service) CheckSubmittedModis(ctx context.Context) error {
	scenes, err := s.store.Scenes().ListScenes(ctx, &interfaces.SceneFilter{
		Statuses:    []models.SceneStatus{models.SceneStatusSubmitted},
		SensorTypes: []models.SensorType{models.SensorTypeModis},
		SortBy:      "CreatedAt",
		Limit:       s.cfg.Production.BatchSize,
	})
	if err != nil {
		return fmt.Errorf("failed to list submitted modis scenes: %w", err)
	}

	var missing []*models.Scene
	for _, scene := range scenes {
		exists, err := s.modis.Exists(ctx, scene.Name)
		if err != nil {
			// Probe failure is transient; leave the scene submitted for
			// the next pass
			s.logger.Warn().Err(err).Str("scene", scene.Key()).Msg("MODIS availability probe failed")
			continue
		}
		if exists {
			scene.Status = models.SceneStatusOnCache
			scene.Note = ""
			if err := s.store.Scenes().UpdateScene(ctx, scene); err != nil {
				return err
			}
			continue
		}
		missing = append(missing, scene)
	}

	if len(missing) > 0 {
		if err := s.production.BulkMarkUnavailable(ctx, missing, ReasonNotFoundInArchive); err != nil {
			return err
		}
	}
	return nil
}
