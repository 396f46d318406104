// Package jobs runs the periodic maintenance tasks (cron).
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/iliyamo/garbage-collector/internal/config"
	"github.com/iliyamo/garbage-collector/internal/metrics"
)

// ResetTokenStore drops password reset tokens past their expiry.
type ResetTokenStore interface {
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

// ConsumedTokenStore forgets consumed single-use tokens.
type ConsumedTokenStore interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler owns the cron runner and the maintenance jobs.
type Scheduler struct {
	cron    *cron.Cron
	cfg     config.JobsConfig
	users   ResetTokenStore
	tokens  ConsumedTokenStore
	metrics *metrics.Metrics
	log     zerolog.Logger

	// Now is the clock; tests replace it.
	Now func() time.Time
}

// NewScheduler builds a UTC scheduler.  Jobs are registered by Start.
func NewScheduler(cfg config.JobsConfig, users ResetTokenStore, tokens ConsumedTokenStore, m *metrics.Metrics, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		cfg:     cfg,
		users:   users,
		tokens:  tokens,
		metrics: m,
		log:     log,
		Now:     time.Now,
	}
}

// Start registers the jobs and starts the runner.  ctx is handed to every
// job run; cancel it before Stop to abort in-flight queries.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.ResetPurgeSchedule, func() { _ = s.PurgeResetTokens(ctx) }); err != nil {
		return fmt.Errorf("schedule reset token purge: %w", err)
	}
	if _, err := s.cron.AddFunc(s.cfg.TokenPruneSchedule, func() { _ = s.PruneConsumedTokens(ctx) }); err != nil {
		return fmt.Errorf("schedule consumed token prune: %w", err)
	}
	s.cron.Start()
	s.log.Info().
		Str("reset_purge", s.cfg.ResetPurgeSchedule).
		Str("token_prune", s.cfg.TokenPruneSchedule).
		Msg("scheduler started")
	return nil
}

// Stop halts the runner and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// PurgeResetTokens clears expired password reset tokens.
func (s *Scheduler) PurgeResetTokens(ctx context.Context) error {
	return s.run(ctx, "purge_reset_tokens", func(ctx context.Context) (int64, error) {
		return s.users.ClearExpiredResetTokens(ctx, s.Now().UTC())
	})
}

// PruneConsumedTokens forgets consumed tokens older than the retention
// window.  After that, replaying such a link is treated as unknown.
func (s *Scheduler) PruneConsumedTokens(ctx context.Context) error {
	return s.run(ctx, "prune_consumed_tokens", func(ctx context.Context) (int64, error) {
		return s.tokens.PruneBefore(ctx, s.Now().UTC().Add(-s.cfg.ConsumedRetention))
	})
}

func (s *Scheduler) run(ctx context.Context, job string, fn func(context.Context) (int64, error)) error {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	n, err := fn(ctx)
	if s.metrics != nil {
		s.metrics.JobRuns.WithLabelValues(job, metrics.Outcome(err)).Inc()
	}
	if err != nil {
		s.log.Error().Err(err).Str("job", job).Msg("job failed")
		return err
	}
	s.log.Debug().Str("job", job).Int64("rows", n).Msg("job done")
	return nil
}
