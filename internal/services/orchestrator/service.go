// Package orchestrator sequences one full production pass. Each step is
// independent: a failing step is logged and the pass continues, so a
// broken external dependency degrades one concern instead of stalling the
// whole pipeline.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/orbiter/internal/common"
	"github.com/ternarybob/orbiter/internal/interfaces"
	"github.com/ternarybob/orbiter/internal/services/housekeeping"
	"github.com/ternarybob/orbiter/internal/services/reconcile"
)

// PurgeLockKey is the storage key of the mutex that spaces out purge runs.
const PurgeLockKey = "purge_lock"

// Service drives the production pass.
type Service struct {
	store        interfaces.StorageManager
	reconcile    *reconcile.Service
	housekeeping *housekeeping.Service
	cfg          *common.Config
	logger       arbor.ILogger
}

// NewService creates a new orchestrator.
func NewService(store interfaces.StorageManager, rec *reconcile.Service, hk *housekeeping.Service, cfg *common.Config, logger arbor.ILogger) *Service {
	return &Service{
		store:        store,
		reconcile:    rec,
		housekeeping: hk,
		cfg:          cfg,
		logger:       logger,
	}
}

type step struct {
	name string
	run  func(context.Context) error
}

// Run executes one full production pass in fixed order. Every step runs
// even when earlier ones fail; the returned error joins the individual
// failures.
func (s *Service) Run(ctx context.Context) error {
	runID := common.NewRunID()
	log := s.logger.WithCorrelationId(runID)
	log.Info().Msg("Production pass started")

	steps := []step{
		{"send_initial_emails", s.housekeeping.SendInitialEmails},
		{"poll_onorder", s.reconcile.PollOnOrderScenes},
		{"promote_retries", s.housekeeping.PromoteRetries},
		{"import_external_orders", s.reconcile.ImportExternalOrders},
		{"retry_failed_syncs", s.reconcile.RetryFailedSyncs},
		{"order_submitted_landsat", s.reconcile.OrderSubmittedLandsat},
		{"check_submitted_modis", s.reconcile.CheckSubmittedModis},
		{"aggregate_plots", s.housekeeping.AggregatePlots},
		{"detect_orphans", s.housekeeping.DetectOrphans},
		{"finalize_orders", s.housekeeping.FinalizeOrders},
		{"purge", s.runPurge},
	}

	var failures []error
	for _, st := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := st.run(ctx); err != nil {
			log.Error().Err(err).Str("step", st.name).Msg("Production step failed")
			failures = append(failures, fmt.Errorf("%s: %w", st.name, err))
		}
	}

	log.Info().Int("failed_steps", len(failures)).Msg("Production pass finished")
	return errors.Join(failures...)
}

// runPurge runs the purge behind a TTL lock so deletion sweeps stay spaced
// out regardless of the pass cadence. The lock is never released
// explicitly; expiry is the release.
func (s *Service) runPurge(ctx context.Context) error {
	if _, err := s.store.KV().Get(ctx, PurgeLockKey); err == nil {
		s.logger.Debug().Msg("Purge lock held, skipping purge this pass")
		return nil
	} else if !errors.Is(err, interfaces.ErrKeyNotFound) {
		return fmt.Errorf("failed to check purge lock: %w", err)
	}

	if err := s.store.KV().SetWithTTL(ctx, PurgeLockKey, common.NewRunID(), s.cfg.Production.PurgeLockTTL); err != nil {
		return fmt.Errorf("failed to take purge lock: %w", err)
	}
	return s.housekeeping.Purge(ctx)
}
