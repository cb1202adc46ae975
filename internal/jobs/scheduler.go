package jobs

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"usergate/api/internal/config"
)

// SessionPruner deletes session rows whose expiry predates the cutoff.
type SessionPruner interface {
	DeleteSessionsExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

const sweepLockKey = "jobs:session_sweep"

// Scheduler periodically removes sessions that expired longer ago than the
// retention window. Sessions expired more recently stay visible so revoked
// logins remain inspectable alongside the audit trail.
type Scheduler struct {
	cron      *cron.Cron
	sessions  SessionPruner
	lock      *redis.Client
	retention time.Duration
	schedule  string
	log       zerolog.Logger
}

func NewScheduler(sessions SessionPruner, lock *redis.Client, cfg config.SessionsConfig, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithSeconds()),
		sessions:  sessions,
		lock:      lock,
		retention: cfg.Retention,
		schedule:  cfg.SweepSchedule,
		log:       log,
	}
}

func (s *Scheduler) Start() error {
	if s.sessions == nil {
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, s.sweepSessions); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts the cron loop and waits briefly for a running sweep to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
	}
}

func (s *Scheduler) sweepSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if !s.acquireLock(ctx) {
		s.log.Debug().Msg("session sweep already running elsewhere")
		return
	}

	cutoff := time.Now().Add(-s.retention)
	removed, err := s.sessions.DeleteSessionsExpiredBefore(ctx, cutoff)
	if err != nil {
		s.log.Error().Err(err).Msg("session sweep failed")
		return
	}
	s.log.Info().Int64("removed", removed).Time("cutoff", cutoff).Msg("session sweep done")
}

// acquireLock elects a single sweeper across replicas; when redis is absent
// the sweep runs unconditionally.
func (s *Scheduler) acquireLock(ctx context.Context) bool {
	if s.lock == nil {
		return true
	}
	ok, err := s.lock.SetNX(ctx, sweepLockKey, "1", time.Hour).Result()
	if err != nil {
		s.log.Warn().Err(err).Msg("sweep lock failed, proceeding")
		return true
	}
	return ok
}
