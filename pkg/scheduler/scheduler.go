// Package scheduler triggers crawl runs on a recurring schedule
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"postcrawler/pkg/config"
	"postcrawler/pkg/logger"
)

// Job is one scheduled invocation; ctx is cancelled when the scheduler stops
type Job func(ctx context.Context)

// Scheduler runs a job on a cron schedule. Overlapping invocations are skipped.
type Scheduler struct {
	cron       *cron.Cron
	spec       string
	runOnStart bool
	job        Job
	logger     logger.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	running sync.Mutex
	started bool
	entryID cron.EntryID
}

// New creates a scheduler from the schedule configuration
func New(cfg config.ScheduleConfig, job Job, log logger.Logger) (*Scheduler, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	log = log.WithField("component", "scheduler")

	tz := cfg.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}

	spec, err := NormalizeSpec(cfg.Interval)
	if err != nil {
		return nil, err
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", cfg.Interval, err)
	}

	cl := cronLogger{log: log}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		spec:       spec,
		runOnStart: cfg.RunOnStart,
		job:        job,
		logger:     log,
	}
	return s, nil
}

// NormalizeSpec accepts a cron expression, a descriptor like "@every 6h" or
// "@daily", or a bare duration like "6h"
func NormalizeSpec(interval string) (string, error) {
	interval = strings.TrimSpace(interval)
	if interval == "" {
		return "", fmt.Errorf("schedule interval is empty")
	}
	if strings.HasPrefix(interval, "@") || strings.Contains(interval, " ") {
		return interval, nil
	}
	d, err := time.ParseDuration(interval)
	if err != nil {
		return "", fmt.Errorf("invalid schedule %q: %w", interval, err)
	}
	if d < time.Minute {
		return "", fmt.Errorf("schedule interval %s is shorter than a minute", d)
	}
	return "@every " + d.String(), nil
}

// Start registers the job and begins scheduling. With run-on-start the job
// also runs once immediately in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	id, err := s.cron.AddFunc(s.spec, s.invoke)
	if err != nil {
		s.cancel()
		return fmt.Errorf("add cron job: %w", err)
	}
	s.entryID = id
	s.cron.Start()
	s.started = true

	s.logger.InfoWithFields("Scheduler started", map[string]interface{}{
		"schedule":     s.spec,
		"next_run":     s.cron.Entry(id).Next,
		"run_on_start": s.runOnStart,
	})

	if s.runOnStart {
		go s.invoke()
	}
	return nil
}

// invoke runs the job unless another invocation is in progress
func (s *Scheduler) invoke() {
	if !s.running.TryLock() {
		s.logger.Warn("Previous run still in progress, skipping")
		return
	}
	defer s.running.Unlock()

	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	s.job(ctx)
}

// Next returns the next scheduled time, or zero when not started
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// Stop halts scheduling, cancels the running job and waits for it to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.cancel()
	stopCtx := s.cron.Stop()
	s.mu.Unlock()

	<-stopCtx.Done()
	// run-on-start invocations are not tracked by cron
	s.running.Lock()
	s.running.Unlock()
	s.logger.Info("Scheduler stopped")
}

// Run starts the scheduler and blocks until ctx is done
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}

// cronLogger adapts the pipeline logger to cron.Logger
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) fields(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.DebugWithFields("cron: "+msg, l.fields(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithError(err).ErrorWithFields("cron: "+msg, l.fields(keysAndValues))
}
