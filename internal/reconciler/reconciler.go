package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"callcenter-backend/internal/shared/telemetry"
)

// State is where a run currently is.
type State string

const (
	StateCreated   State = "created"
	StateSubmitted State = "submitted"
	StatePolling   State = "polling"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateExhausted State = "exhausted"
	StateCanceled  State = "canceled"
)

// Terminal reports whether no further transitions follow.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateExhausted, StateCanceled:
		return true
	}
	return false
}

// Source records which path produced a completed result.
type Source string

const (
	SourceDirect Source = "direct"
	SourcePolled Source = "polled"
)

// ExhaustedNotice is shown when polling gives up. The job may still finish.
const ExhaustedNotice = "Analysis is taking longer than expected. It may still complete; check the calls list later."

// Outcome is the terminal report of one run.
type Outcome struct {
	RequestID string        `json:"requestId"`
	State     State         `json:"state"`
	Source    Source        `json:"source,omitempty"`
	Result    *Result       `json:"result,omitempty"`
	Attempts  int           `json:"attempts"`
	Elapsed   time.Duration `json:"elapsed"`
	Notice    string        `json:"notice,omitempty"`
	Err       error         `json:"-"`
}

// Event is a progress notification emitted on every state change and poll.
type Event struct {
	RequestID   string
	State       State
	Attempt     int
	MaxAttempts int
	Elapsed     time.Duration
}

// Presenter renders progress and the final outcome. Calls come from the
// goroutine running the job.
type Presenter interface {
	Progress(Event)
	Present(Outcome)
}

type nopPresenter struct{}

func (nopPresenter) Progress(Event)  {}
func (nopPresenter) Present(Outcome) {}

// Option configures a Reconciler.
type Option func(*Reconciler)

func WithPresenter(p Presenter) Option {
	return func(r *Reconciler) {
		if p != nil {
			r.presenter = p
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(r *Reconciler) { r.maxAttempts = n }
}

func WithInterval(d time.Duration) Option {
	return func(r *Reconciler) { r.interval = d }
}

// WithClock overrides time.Now for elapsed-time reporting.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// WithSleep overrides the wait between poll attempts.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Reconciler) { r.sleep = sleep }
}

type activeRun struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Reconciler drives one job at a time from submission to a terminal state.
// Starting a new run cancels the previous one and waits for it to stop, so
// a stale run never presents over a newer one.
type Reconciler struct {
	submitter   Submitter
	finder      Finder
	presenter   Presenter
	maxAttempts int
	interval    time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time

	mu     sync.Mutex
	active *activeRun
}

func New(sub Submitter, finder Finder, opts ...Option) *Reconciler {
	r := &Reconciler{
		submitter:   sub,
		finder:      finder,
		presenter:   nopPresenter{},
		maxAttempts: DefaultMaxAttempts,
		interval:    DefaultInterval,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run submits job and reconciles its result. Failed and canceled runs return
// an error; an exhausted run returns a nil error and an Outcome carrying
// ExhaustedNotice.
func (r *Reconciler) Run(ctx context.Context, job Job) (Outcome, error) {
	runCtx, run := r.begin(ctx)
	defer r.end(run)

	start := r.now()
	out := r.run(runCtx, job, start)
	out.Elapsed = r.now().Sub(start)
	r.presenter.Present(out)

	telemetry.Info("reconciler.run.finished", map[string]any{
		"request_id": out.RequestID,
		"state":      string(out.State),
		"source":     string(out.Source),
		"attempts":   out.Attempts,
		"elapsed":    out.Elapsed,
	})
	return out, out.Err
}

// Cancel stops the active run, if any, and waits for it.
func (r *Reconciler) Cancel() {
	r.mu.Lock()
	prev := r.active
	r.active = nil
	r.mu.Unlock()
	if prev != nil {
		prev.cancel()
		<-prev.done
	}
}

func (r *Reconciler) begin(ctx context.Context) (context.Context, *activeRun) {
	runCtx, cancel := context.WithCancel(ctx)
	run := &activeRun{cancel: cancel, done: make(chan struct{})}

	r.mu.Lock()
	prev := r.active
	r.active = run
	r.mu.Unlock()

	if prev != nil {
		prev.cancel()
		<-prev.done
	}
	return runCtx, run
}

func (r *Reconciler) end(run *activeRun) {
	run.cancel()
	r.mu.Lock()
	if r.active == run {
		r.active = nil
	}
	r.mu.Unlock()
	close(run.done)
}

func (r *Reconciler) run(ctx context.Context, job Job, start time.Time) Outcome {
	out := Outcome{RequestID: job.RequestID, State: StateCreated}
	r.progress(out, start, 0)

	if err := job.validate(); err != nil {
		return r.fail(out, err)
	}

	out.State = StateSubmitted
	r.progress(out, start, 0)

	res, err := r.submitter.Submit(ctx, job)
	if err == nil {
		if res == nil {
			return r.fail(out, &FatalError{Err: errors.New("empty analysis response")})
		}
		if res.RequestID == "" {
			res.RequestID = job.RequestID
		}
		out.State = StateCompleted
		out.Source = SourceDirect
		out.Result = res
		return out
	}

	// A canceled run stays canceled even if the transport reported
	// something else on the way down.
	if ctx.Err() != nil {
		return canceled(out, ctx.Err())
	}

	class := Classify(err)
	telemetry.Info("reconciler.submit.failed", map[string]any{
		"request_id": job.RequestID,
		"class":      class.String(),
		"error":      err.Error(),
	})
	switch class {
	case ClassCanceled:
		return canceled(out, err)
	case ClassFatal:
		return r.fail(out, err)
	}

	out.State = StatePolling
	r.progress(out, start, 0)
	poller := &Poller{
		Finder:      r.finder,
		MaxAttempts: r.maxAttempts,
		Interval:    r.interval,
		Sleep:       r.sleep,
		OnAttempt: func(attempt int) {
			r.progress(out, start, attempt)
		},
	}
	rec, attempts, perr := poller.Poll(ctx, job.RequestID)
	out.Attempts = attempts
	switch {
	case perr == nil:
		out.State = StateCompleted
		out.Source = SourcePolled
		out.Result = ResultFromRecord(rec)
		return out
	case errors.Is(perr, ErrExhausted):
		out.State = StateExhausted
		out.Notice = ExhaustedNotice
		return out
	default:
		return canceled(out, perr)
	}
}

func (r *Reconciler) fail(out Outcome, err error) Outcome {
	out.State = StateFailed
	out.Err = fmt.Errorf("analysis %s: %w", out.RequestID, err)
	return out
}

func canceled(out Outcome, err error) Outcome {
	out.State = StateCanceled
	out.Err = err
	return out
}

func (r *Reconciler) progress(out Outcome, start time.Time, attempt int) {
	r.presenter.Progress(Event{
		RequestID:   out.RequestID,
		State:       out.State,
		Attempt:     attempt,
		MaxAttempts: r.maxAttempts,
		Elapsed:     r.now().Sub(start),
	})
}
