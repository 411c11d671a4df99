package main

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
	"github.com/rs/zerolog/log"
)

// every ten minutes, the rate the pipelines were compared at
const DefaultSchedule = "*/10 * * * *"

type Job func(ctx context.Context) error

// Scheduler stands in for the scheduled trigger when running locally. Runs
// never overlap; a failed run is logged and the next tick still fires.
type Scheduler struct {
	name       string
	cronExpr   string
	job        Job
	runOnStart bool
	now        func() time.Time
}

func NewScheduler(name, cronExpr string, job Job, runOnStart bool) (*Scheduler, error) {
	if cronExpr == "" {
		cronExpr = DefaultSchedule
	}
	if !gronx.IsValid(cronExpr) {
		return nil, fmt.Errorf("invalid cron expression: %s", cronExpr)
	}
	return &Scheduler{
		name:       name,
		cronExpr:   cronExpr,
		job:        job,
		runOnStart: runOnStart,
		now:        time.Now,
	}, nil
}

func (s *Scheduler) next(after time.Time) (time.Time, error) {
	return gronx.NextTickAfter(s.cronExpr, after.UTC(), false)
}

func (s *Scheduler) Run(ctx context.Context) error {
	log.Info().Str("job", s.name).Str("cron", s.cronExpr).Msg("Scheduler started")

	if s.runOnStart {
		s.runOnce(ctx)
	}

	for {
		now := s.now()
		next, err := s.next(now)
		if err != nil {
			return fmt.Errorf("failed to compute next tick: %w", err)
		}
		log.Debug().Str("job", s.name).Time("next", next).Msg("Waiting for next tick")

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info().Str("job", s.name).Msg("Scheduler stopping")
			return nil
		case <-timer.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	startTime := time.Now()
	if err := s.job(ctx); err != nil {
		log.Error().Err(err).Str("job", s.name).Dur("duration", time.Since(startTime)).Msg("Scheduled run failed")
		return
	}
	log.Debug().Str("job", s.name).Dur("duration", time.Since(startTime)).Msg("Scheduled run finished")
}
