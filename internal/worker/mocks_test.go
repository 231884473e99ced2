package worker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"reelforge/backend/features/job"
)

// memStore is an in-memory job store with the same compare-and-set semantics
// as the Postgres repo, shared by the pool and sweeper tests.
type memStore struct {
	mu          sync.Mutex
	jobs        map[string]*job.Job
	order       []string
	maxRetries  int
	credentials map[string]bool
}

func newMemStore(maxRetries int) *memStore {
	return &memStore{
		jobs:        make(map[string]*job.Job),
		maxRetries:  maxRetries,
		credentials: make(map[string]bool),
	}
}

func (s *memStore) add(j *job.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j.Status == "" {
		j.Status = job.StatusPending
	}
	s.jobs[j.ID] = j
	s.order = append(s.order, j.ID)
}

func (s *memStore) snapshot(id string) job.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.jobs[id]
}

func (s *memStore) MaxRetries() int { return s.maxRetries }

func (s *memStore) Claim(ctx context.Context, maxCount int, credential string) ([]job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials[credential] = true

	var claimed []job.Job
	for _, id := range s.order {
		if len(claimed) >= maxCount {
			break
		}
		j := s.jobs[id]
		if j.Status != job.StatusPending {
			continue
		}
		j.Status = job.StatusProcessing
		now := time.Now()
		j.StartedAt = &now
		claimed = append(claimed, *j)
	}
	return claimed, nil
}

func (s *memStore) UpdateProgress(ctx context.Context, id string, p job.Progress, credential string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Status != job.StatusProcessing {
		return job.ErrNotClaimable
	}
	j.Progress = p.Percent
	j.ProgressMessage = p.Message
	return nil
}

func (s *memStore) Complete(ctx context.Context, id string, result json.RawMessage, credential string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Status != job.StatusProcessing {
		return job.ErrNotClaimable
	}
	j.Status = job.StatusCompleted
	j.Progress = 100
	j.ResultData = result
	now := time.Now()
	j.CompletedAt = &now
	return nil
}

func (s *memStore) Fail(ctx context.Context, id string, errMsg string, credential string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || (j.Status != job.StatusProcessing && j.Status != job.StatusPending) {
		return job.ErrNotClaimable
	}
	j.Status = job.StatusFailed
	j.ErrorMessage = errMsg
	now := time.Now()
	j.CompletedAt = &now
	return nil
}

func (s *memStore) Requeue(ctx context.Context, id string, newRetryCount int, waitingFor []string, credential string) error {
	if newRetryCount > s.maxRetries {
		return job.ErrRetryExhausted
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Status != job.StatusProcessing {
		return job.ErrNotClaimable
	}
	j.Status = job.StatusPending
	j.RetryCount = newRetryCount
	j.WaitingForIDs = waitingFor
	j.StartedAt = nil
	return nil
}

func (s *memStore) ListProcessing(ctx context.Context) ([]job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []job.Job
	for _, id := range s.order {
		if s.jobs[id].Status == job.StatusProcessing {
			out = append(out, *s.jobs[id])
		}
	}
	return out, nil
}
