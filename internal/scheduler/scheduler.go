package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/phuslu/log"
	"github.com/robfig/cron/v3"

	"FundLetter/internal/logging"
	"FundLetter/internal/model"
)

// Runner executes one newsletter cycle.
type Runner interface {
	Run(ctx context.Context, trigger Trigger, override string) (model.RunStats, error)
}

var parser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Scheduler triggers the pipeline on a cron schedule.
type Scheduler struct {
	Cron   *cron.Cron
	Runner Runner
	Logger *log.Logger
	// Grace is how late a firing may start and still run. Zero disables the check.
	Grace time.Duration
	Ctx   context.Context

	loc *time.Location
	now func() time.Time
}

// NewScheduler creates a scheduler evaluating cron specs in loc.
func NewScheduler(ctx context.Context, r Runner, loc *time.Location, grace time.Duration, logger *log.Logger) *Scheduler {
	cl := logging.CronLogger{Logger: logger}
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		Runner: r,
		Logger: logger,
		Grace:  grace,
		Ctx:    ctx,
		loc:    loc,
		now:    time.Now,
	}
}

// RegisterWeekly registers the weekly newsletter run.
func (s *Scheduler) RegisterWeekly(spec string) error {
	sched, err := parser.Parse(spec)
	if err != nil {
		return fmt.Errorf("register weekly task: %w", err)
	}
	s.Cron.Schedule(sched, cron.FuncJob(s.job(sched)))
	s.Logger.Info().Str("spec", spec).Str("timezone", s.loc.String()).
		Time("next", sched.Next(s.now().In(s.loc))).Msg("weekly task registered")
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Logger.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.Logger.Info().Msg("scheduler stopped")
}

// RunNow executes the pipeline immediately. The error is logged and returned.
func (s *Scheduler) RunNow(trigger Trigger, override string) error {
	if _, err := s.Runner.Run(s.Ctx, trigger, override); err != nil {
		s.Logger.Error().Err(err).Str("trigger", string(trigger)).Msg("run failed")
		return err
	}
	return nil
}

func (s *Scheduler) job(sched cron.Schedule) func() {
	return func() {
		now := s.now().In(s.loc)
		if !onTime(sched, now, s.Grace) {
			s.Logger.Warn().Time("now", now).Dur("grace", s.Grace).Msg("missed weekly run outside grace window, skipping")
			return
		}
		// scheduled failures are logged; the next firing retries
		_ = s.RunNow(TriggerSchedule, "")
	}
}

// onTime reports whether a scheduled instant lies in [now-grace, now].
func onTime(sched cron.Schedule, now time.Time, grace time.Duration) bool {
	if grace <= 0 {
		return true
	}
	// Next is strictly after its argument
	return !sched.Next(now.Add(-grace - time.Nanosecond)).After(now)
}
