// Package scheduler drives the production pass on a cron cadence. Passes
// never overlap: a tick that arrives while a pass is running is skipped.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
)

// Runner is the unit of work the scheduler drives.
type Runner interface {
	Run(ctx context.Context) error
}

// Service wraps a cron scheduler around a single runner.
type Service struct {
	runner       Runner
	cron         *cron.Cron
	logger       arbor.ILogger
	mu           sync.Mutex
	isProcessing bool
	running      bool
}

// NewService creates a new scheduler service.
func NewService(runner Runner, logger arbor.ILogger) *Service {
	return &Service{
		runner: runner,
		cron:   cron.New(),
		logger: logger,
	}
}

// Start begins scheduling passes on the given cron expression.
func (s *Service) Start(cronExpr string) error {
	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if cronExpr == "" {
		cronExpr = "*/7 * * * *"
	}

	if _, err := s.cron.AddFunc(cronExpr, s.tick); err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().Str("cron_expr", cronExpr).Msg("Scheduler started")
	return nil
}

// Stop halts the scheduler. A pass already running completes.
func (s *Service) Stop() error {
	if !s.running {
		return nil
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// IsRunning returns true if the scheduler is active.
func (s *Service) IsRunning() bool {
	return s.running
}

// TriggerNow runs a pass immediately, outside the cron cadence.
func (s *Service) TriggerNow() {
	go s.tick()
}

func (s *Service) tick() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("PANIC RECOVERED in production pass")
		}
	}()

	s.mu.Lock()
	if s.isProcessing {
		s.logger.Debug().Msg("Previous pass still running, skipping this cycle")
		s.mu.Unlock()
		return
	}
	s.isProcessing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isProcessing = false
		s.mu.Unlock()
	}()

	started := time.Now()
	if err := s.runner.Run(context.Background()); err != nil {
		s.logger.Error().
			Err(err).
			Dur("duration", time.Since(started)).
			Msg("Production pass completed with errors")
		return
	}
	s.logger.Info().
		Dur("duration", time.Since(started)).
		Msg("Production pass completed")
}
