// Package worker drives job execution: a polling pool that claims pending
// jobs from the store up to a concurrency ceiling, and a sweeper that
// reclaims jobs whose worker died mid-processing.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"reelforge/backend/features/job"
	"reelforge/backend/internal/observability"
	"reelforge/backend/internal/processor"
)

// JobStore is the slice of the job service the pool needs. Every mutation
// carries the shared worker credential.
type JobStore interface {
	Claim(ctx context.Context, maxCount int, credential string) ([]job.Job, error)
	UpdateProgress(ctx context.Context, id string, p job.Progress, credential string) error
	Complete(ctx context.Context, id string, result json.RawMessage, credential string) error
	Fail(ctx context.Context, id string, errMsg string, credential string) error
	Requeue(ctx context.Context, id string, newRetryCount int, waitingFor []string, credential string) error
	MaxRetries() int
}

type PoolConfig struct {
	Credential      string
	MaxConcurrency  int
	PollInterval    time.Duration
	PollMaxInterval time.Duration
}

// Pool is a single worker process. Multiple pools may run against the same
// store; the claim query is the only cross-process synchronisation point.
type Pool struct {
	store    JobStore
	registry *processor.Registry
	cfg      PoolConfig
	logger   *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
	wg       sync.WaitGroup

	emptyFetches int
}

func NewPool(store JobStore, registry *processor.Registry, cfg PoolConfig, logger *slog.Logger) *Pool {
	return &Pool{
		store:    store,
		registry: registry,
		cfg:      cfg,
		logger:   logger,
		inflight: make(map[string]struct{}),
	}
}

// InflightCount reports the number of jobs currently executing.
func (p *Pool) InflightCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inflight)
}

// Run polls the store until ctx is cancelled, then drains in-flight jobs
// before returning. The loop never blocks on job execution: each claimed job
// runs in its own goroutine so one slow job cannot delay the next poll.
func (p *Pool) Run(ctx context.Context) {
	p.logger.Info("worker pool started",
		"max_concurrency", p.cfg.MaxConcurrency,
		"poll_interval", p.cfg.PollInterval)

	// In-flight jobs must survive the shutdown signal; they run on a context
	// detached from the loop's cancellation.
	execCtx := context.WithoutCancel(ctx)

	interval := p.cfg.PollInterval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.drain()
			return
		case <-timer.C:
			if p.fetch(ctx, execCtx) {
				p.emptyFetches = 0
				interval = p.cfg.PollInterval
			} else {
				p.emptyFetches++
				if p.emptyFetches >= 3 && interval < p.cfg.PollMaxInterval {
					interval *= 2
					if interval > p.cfg.PollMaxInterval {
						interval = p.cfg.PollMaxInterval
					}
					p.logger.Debug("idle, lengthening poll interval", "interval", interval)
				}
			}
			timer.Reset(interval)
		}
	}
}

// fetch claims up to the remaining concurrency budget and dispatches each
// claimed job. Returns true when any work was found.
func (p *Pool) fetch(ctx, execCtx context.Context) bool {
	slots := p.cfg.MaxConcurrency - p.InflightCount()
	if slots <= 0 {
		// Back-pressure: leave the work in the store for another cycle or
		// another worker process.
		return false
	}

	jobs, err := p.store.Claim(ctx, slots, p.cfg.Credential)
	if err != nil {
		p.logger.Error("failed to claim jobs", "error", err)
		return false
	}
	if len(jobs) == 0 {
		return false
	}

	for i := range jobs {
		j := jobs[i]
		if !p.track(j.ID) {
			// Already executing here; the claim query should make this
			// impossible, so surface it.
			p.logger.Error("claimed a job already in flight", "job_id", j.ID)
			continue
		}
		observability.JobsClaimed.Inc()
		observability.JobsInflight.Inc()
		p.wg.Add(1)
		go p.execute(execCtx, j)
	}
	return true
}

func (p *Pool) track(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.inflight[id]; exists {
		return false
	}
	p.inflight[id] = struct{}{}
	return true
}

// untrack releases the job's in-flight slot. Every settle path calls it
// before its store mutation: the moment the row can become pending again, a
// fresh claim must not find a stale entry and collide. It is never deferred;
// after a requeue the same id may legitimately be back in the map under a
// new claim.
func (p *Pool) untrack(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inflight, id)
}

// execute is the uniform envelope around every processor: validate, then
// authorize, then process, then exactly one store mutation. Nothing escapes
// unrecorded.
func (p *Pool) execute(ctx context.Context, j job.Job) {
	start := time.Now()
	defer func() {
		observability.JobsInflight.Dec()
		observability.JobDuration.WithLabelValues(string(j.Type)).Observe(time.Since(start).Seconds())
		p.wg.Done()
	}()

	log := p.logger.With("job_id", j.ID, "type", j.Type)

	proc, err := p.registry.Lookup(j.Type)
	if err != nil {
		log.Error("unregistered job type claimed", "error", err)
		p.fail(ctx, &j, err.Error())
		return
	}

	if err := proc.Validate(j.InputData); err != nil {
		log.Warn("job input failed validation", "error", err)
		p.fail(ctx, &j, err.Error())
		return
	}

	if err := proc.Authorize(ctx, &j); err != nil {
		log.Warn("job failed authorization", "error", err)
		p.fail(ctx, &j, err.Error())
		return
	}

	report := func(ctx context.Context, prog job.Progress) error {
		return p.store.UpdateProgress(ctx, j.ID, prog, p.cfg.Credential)
	}

	result, err := p.runProcess(ctx, proc, &j, report)
	if err != nil {
		var wait *processor.DependencyWait
		if errors.As(err, &wait) {
			p.requeueOrFail(ctx, &j, wait.WaitingFor)
			return
		}
		log.Error("job failed", "error", err)
		p.fail(ctx, &j, err.Error())
		return
	}

	p.untrack(j.ID)
	if err := p.store.Complete(ctx, j.ID, result, p.cfg.Credential); err != nil {
		// Cancelled or swept between the last progress report and now.
		// The terminal state wins; do not overwrite it.
		log.Warn("could not complete job, store state changed underneath", "error", err)
		return
	}
	observability.JobsProcessed.WithLabelValues(string(j.Type), "completed").Inc()
	log.Info("job completed", "duration", time.Since(start))
}

// runProcess isolates the processor call so a panicking processor still
// terminates in a recorded failure.
func (p *Pool) runProcess(ctx context.Context, proc processor.Processor, j *job.Job, report processor.ProgressFunc) (result json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processor panicked: %v", r)
		}
	}()
	return proc.Process(ctx, j, report)
}

// requeueOrFail applies the bounded dependency-retry policy: below the cap
// the job goes back to pending with the reported wait-list, at the cap it
// fails for good. An indefinitely stuck dependency must not retry forever.
func (p *Pool) requeueOrFail(ctx context.Context, j *job.Job, waitingFor []string) {
	log := p.logger.With("job_id", j.ID, "type", j.Type)

	if j.RetryCount >= p.store.MaxRetries() {
		log.Warn("dependency retry limit reached", "retry_count", j.RetryCount, "waiting_for", waitingFor)
		p.fail(ctx, j, fmt.Sprintf("dependency timeout: inputs never became ready after %d checks", j.RetryCount))
		return
	}

	p.untrack(j.ID)
	err := p.store.Requeue(ctx, j.ID, j.RetryCount+1, waitingFor, p.cfg.Credential)
	if errors.Is(err, job.ErrRetryExhausted) {
		p.fail(ctx, j, fmt.Sprintf("dependency timeout: inputs never became ready after %d checks", j.RetryCount))
		return
	}
	if errors.Is(err, job.ErrNotClaimable) {
		// Cancelled or swept while the dependency check ran; the terminal
		// state wins, abandon quietly.
		return
	}
	if err != nil {
		log.Error("failed to requeue job", "error", err)
		return
	}
	observability.JobsProcessed.WithLabelValues(string(j.Type), "requeued").Inc()
	log.Info("job requeued, waiting for dependencies", "retry_count", j.RetryCount+1, "waiting_for", waitingFor)
}

func (p *Pool) fail(ctx context.Context, j *job.Job, msg string) {
	p.untrack(j.ID)
	if err := p.store.Fail(ctx, j.ID, msg, p.cfg.Credential); err != nil {
		if errors.Is(err, job.ErrNotClaimable) {
			// Already terminal (cancelled or swept); abandon quietly.
			return
		}
		p.logger.Error("failed to record job failure", "job_id", j.ID, "error", err)
		return
	}
	observability.JobsProcessed.WithLabelValues(string(j.Type), "failed").Inc()
}

// drain blocks until every in-flight job settles, logging progress so a slow
// shutdown is visible rather than silent.
func (p *Pool) drain() {
	p.logger.Info("worker pool stopping, draining in-flight jobs", "inflight", p.InflightCount())

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			p.logger.Info("worker pool drained")
			return
		case <-ticker.C:
			p.logger.Info("still draining", "inflight", p.InflightCount())
		}
	}
}
