// Package scheduler runs the assistant's periodic maintenance jobs, such as
// pruning old dedup records and refreshing the status table from CSV.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultJobTimeout bounds one run of a scheduled job.
const DefaultJobTimeout = 5 * time.Minute

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

// NewScheduler creates a scheduler using the standard 5-field cron syntax
// (min, hour, dom, month, dow). Jobs receive a context derived from ctx.
func NewScheduler(ctx context.Context) *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	jobCtx, cancel := context.WithCancel(ctx)
	return &Scheduler{cron: c, ctx: jobCtx, cancel: cancel, timeout: DefaultJobTimeout}
}

// AddJob schedules job under name using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(name, expr string, job Job) error {
	_, err := s.cron.AddFunc(expr, func() { s.runJob(name, job) })
	if err != nil {
		return fmt.Errorf("schedule %s %q: %w", name, expr, err)
	}
	slog.Info("Scheduler job added", "job", name, "schedule", expr)
	return nil
}

func (s *Scheduler) runJob(name string, job Job) {
	if s.ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	if err := job(ctx); err != nil {
		slog.Error("Scheduler job failed", "error", err, "job", name)
		return
	}
	slog.Debug("Scheduler job finished", "job", name, "duration", time.Since(start))
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}
