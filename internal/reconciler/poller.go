package reconciler

import (
	"context"
	"errors"
	"time"

	"callcenter-backend/internal/calls"
	"callcenter-backend/internal/shared/telemetry"
)

const (
	DefaultMaxAttempts = 30
	DefaultInterval    = 10 * time.Second
)

// ErrExhausted is returned by Poll when every attempt missed.
var ErrExhausted = errors.New("result not found within attempt budget")

// Poller checks the call store for a request's record. The first check runs
// immediately; later checks wait Interval first. Checks never overlap.
type Poller struct {
	Finder      Finder
	MaxAttempts int
	Interval    time.Duration

	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnAttempt is called before each check with the 1-based attempt number.
	OnAttempt func(attempt int)
}

// Poll returns the record and the number of checks made. A lookup error
// counts as a spent attempt and polling continues.
func (p *Poller) Poll(ctx context.Context, requestID string) (*calls.Call, int, error) {
	limit := p.MaxAttempts
	if limit <= 0 {
		limit = DefaultMaxAttempts
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	for attempt := 1; attempt <= limit; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, interval); err != nil {
				return nil, attempt - 1, err
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, attempt - 1, err
		}
		if p.OnAttempt != nil {
			p.OnAttempt(attempt)
		}

		rec, err := p.Finder.FindByRequestID(ctx, requestID)
		switch {
		case err == nil && rec != nil:
			return rec, attempt, nil
		case err == nil, errors.Is(err, calls.ErrNotFound):
			telemetry.Info("reconciler.poll.miss", map[string]any{
				"request_id": requestID,
				"attempt":    attempt,
			})
		default:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, attempt, ctxErr
			}
			telemetry.Warn("reconciler.poll.error", map[string]any{
				"request_id": requestID,
				"attempt":    attempt,
				"error":      err.Error(),
			})
		}
	}
	return nil, limit, ErrExhausted
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
