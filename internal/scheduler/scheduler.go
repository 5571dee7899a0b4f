// Package scheduler runs named jobs on fixed intervals.
//
// LIFECYCLE:
// A Runner is created, jobs are registered with Every, and then Start
// launches one goroutine per job. Stop (or cancelling the context passed to
// Start) ends every loop and waits for running jobs to return. There is no
// global runner; the server owns one and ties it to its own lifetime.
//
// A job is never run twice at the same time: each loop calls its job
// synchronously, so a slow job delays its own next tick instead of piling up.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrStarted is returned by Every after Start has been called.
var ErrStarted = errors.New("scheduler: already started")

// Job is one unit of periodic work. It should return promptly once ctx is
// cancelled.
type Job func(ctx context.Context)

type entry struct {
	name     string
	interval time.Duration
	job      Job
}

// Runner owns a set of periodic jobs.
type Runner struct {
	logger *slog.Logger

	mu      sync.Mutex
	jobs    []entry
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	done    chan struct{}
	stopLog sync.Once

	// RunAtStart makes each job run once immediately instead of waiting a
	// full interval for the first tick.
	RunAtStart bool
}

// New creates an idle Runner.
func New(logger *slog.Logger) *Runner {
	return &Runner{
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Every registers job to run each interval. Non-positive intervals are
// rejected so a misconfigured value cannot spin a loop.
func (r *Runner) Every(name string, interval time.Duration, job Job) error {
	if interval <= 0 {
		return errors.New("scheduler: interval must be positive for " + name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return ErrStarted
	}
	r.jobs = append(r.jobs, entry{name: name, interval: interval, job: job})
	return nil
}

// Start launches the job loops and returns immediately. Calling Start twice
// is a no-op.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true

	ctx, r.cancel = context.WithCancel(ctx)
	for _, e := range r.jobs {
		r.wg.Add(1)
		go r.loop(ctx, e)
	}
	r.logger.Info("scheduler started", slog.Int("jobs", len(r.jobs)))

	go func() {
		r.wg.Wait()
		close(r.done)
	}()
}

// Stop cancels every loop and blocks until in-flight jobs have returned.
// Safe to call more than once, and before Start.
func (r *Runner) Stop() {
	r.mu.Lock()
	started := r.started
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()

	if !started {
		return
	}
	<-r.done
	r.stopLog.Do(func() { r.logger.Info("scheduler stopped") })
}

// Done is closed once every loop has exited after Start.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

func (r *Runner) loop(ctx context.Context, e entry) {
	defer r.wg.Done()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	if r.RunAtStart {
		r.run(ctx, e)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.run(ctx, e)
		}
	}
}

func (r *Runner) run(ctx context.Context, e entry) {
	if ctx.Err() != nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("scheduled job panicked",
				slog.String("job", e.name),
				slog.Any("panic", p),
			)
		}
	}()

	start := time.Now()
	e.job(ctx)
	r.logger.Debug("scheduled job finished",
		slog.String("job", e.name),
		slog.Duration("duration", time.Since(start)),
	)
}
