package reconcile

import (
	"context"
	"fmt"

	"github.com/ternarybob/orbiter/internal/interfaces"
)

// RetryFailedSyncs re-pushes every scene whose last external status push
// failed. Success clears the pending code; failure leaves it for the next
// pass. There is no backoff on this path: the failure mode is archive
// unavailability, not a logical error, so the retry is unbounded.
func (s *Service) RetryFailedSyncs(ctx context.Context) error {
	scenes, err := s.store.Scenes().ListScenes(ctx, &interfaces.SceneFilter{FailedSyncOnly: true})
	if err != nil {
		return fmt.Errorf("failed to list failed-sync scenes: %w", err)
	}
	if len(scenes) == 0 {
		return nil
	}

	cleared := 0
	for _, scene := range scenes {
		code := scene.FailedExternalSync
		if err := s.landsat.PushStatus(ctx, scene.ExternalOrderRef, scene.ExternalUnitRef, code); err != nil {
			s.logger.Debug().Err(err).Str("scene", scene.Key()).Str("code", code).Msg("Sync retry still failing")
			continue
		}
		scene.FailedExternalSync = ""
		if err := s.store.Scenes().UpdateScene(ctx, scene); err != nil {
			return err
		}
		cleared++
	}

	s.logger.Info().
		Int("pending", len(scenes)).
		Int("cleared", cleared).
		Msg("Retried failed external syncs")
	return nil
}
