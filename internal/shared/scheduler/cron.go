package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"callcenter-backend/internal/shared/telemetry"
)

// Cron runs named background jobs on cron expressions.
type Cron struct {
	c       *cron.Cron
	timeout time.Duration
}

// New builds a scheduler. Each run gets a context bounded by timeout.
func New(loc *time.Location, timeout time.Duration) *Cron {
	if loc == nil {
		loc = time.UTC
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	return &Cron{c: c, timeout: timeout}
}

// Add registers fn under name; errors are logged and do not stop the schedule.
func (s *Cron) Add(spec, name string, fn func(ctx context.Context) error) (cron.EntryID, error) {
	return s.c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		start := time.Now()
		if err := fn(ctx); err != nil {
			telemetry.Error("scheduler.job.failed", map[string]any{"job": name, "error": err.Error()})
			return
		}
		telemetry.Info("scheduler.job.completed", map[string]any{
			"job":         name,
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000.0,
		})
	})
}

func (s *Cron) Start() { s.c.Start() }

// Stop waits for running jobs to finish.
func (s *Cron) Stop() {
	<-s.c.Stop().Done()
}

func (s *Cron) Entries() []cron.Entry { return s.c.Entries() }
