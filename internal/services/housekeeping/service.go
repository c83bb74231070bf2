// Package housekeeping runs the periodic maintenance actions: retry
// promotion, plot aggregation, orphan detection, order finalization and
// purge. Every action is a set-based pass over the store and is safe to
// re-run.
package housekeeping

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/orbiter/internal/common"
	"github.com/ternarybob/orbiter/internal/interfaces"
	"github.com/ternarybob/orbiter/internal/models"
)

// Service runs the housekeeping passes.
type Service struct {
	store    interfaces.StorageManager
	grid     interfaces.JobGrid
	cache    interfaces.OnlineCache
	notifier interfaces.Notifier
	cfg      *common.Config
	logger   arbor.ILogger
}

// NewService creates a new housekeeping service.
func NewService(store interfaces.StorageManager, grid interfaces.JobGrid, cache interfaces.OnlineCache, notifier interfaces.Notifier, cfg *common.Config, logger arbor.ILogger) *Service {
	return &Service{
		store:    store,
		grid:     grid,
		cache:    cache,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}
}

// PromoteRetries bulk-transitions every retry scene whose retry window has
// elapsed back to submitted, re-entering the front of the pipeline.
func (s *Service) PromoteRetries(ctx context.Context) error {
	now := time.Now()
	promoted, err := s.store.Scenes().UpdateMatching(ctx, &interfaces.SceneFilter{
		Statuses:         []models.SceneStatus{models.SceneStatusRetry},
		RetryAfterBefore: &now,
	}, func(scene *models.Scene) {
		scene.Status = models.SceneStatusSubmitted
		scene.Note = ""
	})
	if err != nil {
		return fmt.Errorf("failed to promote retry scenes: %w", err)
	}
	if promoted > 0 {
		s.logger.Info().Int("count", promoted).Msg("Promoted retry scenes to submitted")
	}
	return nil
}

// AggregatePlots readies the synthetic statistics scene of each order once
// every sibling has reached a terminal state: oncache when at least one
// sibling completed, unavailable when none did.
func (s *Service) AggregatePlots(ctx context.Context) error {
	plots, err := s.store.Scenes().ListScenes(ctx, &interfaces.SceneFilter{
		Statuses:    []models.SceneStatus{models.SceneStatusSubmitted},
		SensorTypes: []models.SensorType{models.SensorTypePlot},
	})
	if err != nil {
		return fmt.Errorf("failed to list submitted plot scenes: %w", err)
	}

	for _, plot := range plots {
		siblings, err := s.store.Scenes().ListScenes(ctx, &interfaces.SceneFilter{OrderID: plot.OrderID})
		if err != nil {
			return err
		}

		total := len(siblings)
		terminal := 0
		completed := 0
		for _, scene := range siblings {
			if scene.Status == models.SceneStatusComplete {
				completed++
			}
			if scene.IsTerminal() {
				terminal++
			}
		}

		// The plot itself is the one outstanding scene once every input
		// has settled
		if total-terminal != 1 {
			continue
		}

		if completed == 0 {
			now := time.Now()
			plot.Status = models.SceneStatusUnavailable
			plot.CompletionDate = &now
			plot.Note = "no inputs available for statistics"
		} else {
			plot.Status = models.SceneStatusOnCache
			plot.Note = ""
		}
		if err := s.store.Scenes().UpdateScene(ctx, plot); err != nil {
			return err
		}
		s.logger.Debug().
			Str("scene", plot.Key()).
			Str("status", string(plot.Status)).
			Int("completed_inputs", completed).
			Msg("Aggregated plot scene")
	}
	return nil
}

// DetectOrphans compares queued/processing scenes against the jobs the grid
// currently knows. A scene missing its job is stamped on first sight and
// flagged orphaned once the confirmation threshold elapses; disappearance
// can be transient, so the flag is diagnostic and never resubmits.
func (s *Service) DetectOrphans(ctx context.Context) error {
	active, err := s.grid.ActiveJobNames(ctx)
	if err != nil {
		return fmt.Errorf("failed to query active grid jobs: %w", err)
	}

	scenes, err := s.store.Scenes().ListScenes(ctx, &interfaces.SceneFilter{
		Statuses: []models.SceneStatus{models.SceneStatusQueued, models.SceneStatusProcessing},
	})
	if err != nil {
		return fmt.Errorf("failed to list in-flight scenes: %w", err)
	}

	now := time.Now()
	for _, scene := range scenes {
		_, present := active[scene.JobName]
		if present && scene.JobName != "" {
			if scene.ReportedOrphan != nil && !scene.Orphaned {
				// Job reappeared before confirmation
				scene.ReportedOrphan = nil
				if err := s.store.Scenes().UpdateScene(ctx, scene); err != nil {
					return err
				}
			}
			continue
		}

		if scene.ReportedOrphan == nil {
			scene.ReportedOrphan = &now
			if err := s.store.Scenes().UpdateScene(ctx, scene); err != nil {
				return err
			}
			continue
		}

		if !scene.Orphaned && now.Sub(*scene.ReportedOrphan) >= s.cfg.Production.OrphanThreshold {
			scene.Orphaned = true
			if err := s.store.Scenes().UpdateScene(ctx, scene); err != nil {
				return err
			}
			s.logger.Warn().
				Str("scene", scene.Key()).
				Str("job_name", scene.JobName).
				Msg("Scene confirmed orphaned")
		}
	}
	return nil
}

// SendInitialEmails sends the order-received email for orders that have not
// been acknowledged yet. The stamp guards against duplicates; a send
// failure leaves the stamp unset for the next pass.
func (s *Service) SendInitialEmails(ctx context.Context) error {
	orders, err := s.store.Orders().ListOrders(ctx, &interfaces.OrderFilter{
		Statuses:            []models.OrderStatus{models.OrderStatusOrdered},
		InitialEmailPending: true,
	})
	if err != nil {
		return fmt.Errorf("failed to list unacknowledged orders: %w", err)
	}

	for _, order := range orders {
		if err := s.notifier.SendInitial(ctx, order); err != nil {
			s.logger.Warn().Err(err).Str("order_id", order.OrderID).Msg("Failed to send initial email")
			continue
		}
		now := time.Now()
		order.InitialEmailSent = &now
		if err := s.store.Orders().UpdateOrder(ctx, order); err != nil {
			return err
		}
	}
	return nil
}

// FinalizeOrders completes every ordered order whose scenes have all
// reached a terminal state. Only internally-sourced orders get a completion
// email; a failed send does not roll back completion and is not retried.
// Re-running over an already-complete order is a no-op because only ordered
// orders are selected.
func (s *Service) FinalizeOrders(ctx context.Context) error {
	orders, err := s.store.Orders().ListOrders(ctx, &interfaces.OrderFilter{
		Statuses: []models.OrderStatus{models.OrderStatusOrdered},
	})
	if err != nil {
		return fmt.Errorf("failed to list open orders: %w", err)
	}

	for _, order := range orders {
		scenes, err := s.store.Scenes().ListScenes(ctx, &interfaces.SceneFilter{OrderID: order.OrderID})
		if err != nil {
			return err
		}
		if len(scenes) == 0 {
			continue
		}

		settled := true
		for _, scene := range scenes {
			if !scene.IsTerminal() {
				settled = false
				break
			}
		}
		if !settled {
			continue
		}

		now := time.Now()
		order.Status = models.OrderStatusComplete
		order.CompletionDate = &now

		if order.OrderSource == models.OrderSourceInternal && order.CompletionEmailSent == nil {
			if err := s.notifier.SendCompletion(ctx, order); err != nil {
				s.logger.Warn().Err(err).Str("order_id", order.OrderID).Msg("Completion email failed")
			} else {
				sent := time.Now()
				order.CompletionEmailSent = &sent
			}
		}

		if err := s.store.Orders().UpdateOrder(ctx, order); err != nil {
			return err
		}
		s.logger.Info().Str("order_id", order.OrderID).Msg("Order complete")
	}
	return nil
}

// Purge scrubs orders complete for longer than the retention period:
// on-disk artifacts are deleted, every owned scene has its artifact and log
// fields cleared and is set purged, and the order follows. A cache deletion
// failure skips that order so it is retried next pass; it never blocks the
// remaining orders.
func (s *Service) Purge(ctx context.Context) error {
	cutoff := time.Now().Add(-s.cfg.Production.PurgeRetention)
	orders, err := s.store.Orders().ListOrders(ctx, &interfaces.OrderFilter{
		Statuses:        []models.OrderStatus{models.OrderStatusComplete},
		CompletedBefore: &cutoff,
	})
	if err != nil {
		return fmt.Errorf("failed to list purgeable orders: %w", err)
	}
	if len(orders) == 0 {
		return nil
	}

	before, err := s.cache.Capacity(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to snapshot cache capacity before purge")
	}

	var purged []string
	for _, order := range orders {
		if err := s.cache.Delete(ctx, order.OrderID); err != nil {
			s.logger.Error().Err(err).Str("order_id", order.OrderID).Msg("Cache deletion failed, order left for next pass")
			continue
		}

		if _, err := s.store.Scenes().UpdateMatching(ctx, &interfaces.SceneFilter{OrderID: order.OrderID}, func(scene *models.Scene) {
			scene.Scrub()
		}); err != nil {
			return err
		}

		order.Status = models.OrderStatusPurged
		if err := s.store.Orders().UpdateOrder(ctx, order); err != nil {
			return err
		}
		purged = append(purged, order.OrderID)
	}

	after, err := s.cache.Capacity(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to snapshot cache capacity after purge")
	}

	s.logger.Info().Int("count", len(purged)).Msg("Purged orders")

	if s.cfg.Production.PurgeReport && len(purged) > 0 {
		if err := s.notifier.SendPurgeReport(ctx, before, after, purged); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to send purge report")
		}
	}
	return nil
}
