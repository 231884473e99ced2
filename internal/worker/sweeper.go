package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"reelforge/backend/features/job"
	"reelforge/backend/internal/observability"
)

// SweeperStore is the slice of the job service the sweeper needs.
type SweeperStore interface {
	ListProcessing(ctx context.Context) ([]job.Job, error)
	Fail(ctx context.Context, id string, errMsg string, credential string) error
}

// TimeoutTable maps a job type to its processing deadline.
type TimeoutTable interface {
	JobTimeout(jobType string) time.Duration
}

// Sweeper reclaims jobs stuck in processing past their type's deadline:
// crashed workers, lost heartbeats. It runs on its own longer period,
// independent of the pool.
type Sweeper struct {
	store      SweeperStore
	timeouts   TimeoutTable
	credential string
	interval   time.Duration
	logger     *slog.Logger
}

func NewSweeper(store SweeperStore, timeouts TimeoutTable, credential string, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:      store,
		timeouts:   timeouts,
		credential: credential,
		interval:   interval,
		logger:     logger,
	}
}

func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("timeout sweeper started", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("timeout sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("sweep cycle failed", "error", err)
			}
		}
	}
}

// Sweep force-fails every processing job past its deadline and returns how
// many it reclaimed. A processing job with no started_at is a zombie from a
// crash before timestamping and is treated as already expired. Fail is a
// compare-and-set, so racing with a finishing worker or a second sweep is a
// no-op, not an error.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	jobs, err := s.store.ListProcessing(ctx)
	if err != nil {
		return 0, err
	}

	reclaimed := 0
	for i := range jobs {
		j := &jobs[i]
		timeout := s.timeouts.JobTimeout(string(j.Type))

		var elapsed time.Duration
		zombie := j.StartedAt == nil
		if !zombie {
			elapsed = time.Since(*j.StartedAt)
			if elapsed <= timeout {
				continue
			}
		}

		msg := fmt.Sprintf("job timed out after %s in processing (limit %s)", elapsed.Round(time.Second), timeout)
		if zombie {
			msg = "job stuck in processing with no start time"
		}

		err := s.store.Fail(ctx, j.ID, msg, s.credential)
		if errors.Is(err, job.ErrNotClaimable) {
			continue
		}
		if err != nil {
			s.logger.Error("failed to reclaim timed-out job", "job_id", j.ID, "error", err)
			continue
		}

		observability.JobsSwept.Inc()
		s.logger.Warn("reclaimed timed-out job", "job_id", j.ID, "type", j.Type, "zombie", zombie, "elapsed", elapsed)
		reclaimed++
	}
	return reclaimed, nil
}
