package job

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"reelforge/backend/internal/config"
)

var (
	// ErrUnauthorized is returned when a worker mutation carries a missing or
	// wrong credential. Callers must fail closed, never fall back.
	ErrUnauthorized = errors.New("invalid worker credential")

	// ErrRetryExhausted is returned when a requeue would push retry_count past
	// the configured cap. The worker is expected to fail the job instead.
	ErrRetryExhausted = errors.New("dependency retry limit reached")

	ErrUnknownType  = errors.New("unknown job type")
	ErrInvalidInput = errors.New("invalid input payload")
)

var knownTypes = map[Type]bool{
	TypeImageGen:       true,
	TypeVideoGen:       true,
	TypeAudioGen:       true,
	TypeScriptAnalysis: true,
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

// Service fronts the job store. Producer operations (Create, Get, List,
// Retry, Cancel) are authenticated upstream; every worker mutation requires
// the shared worker credential, compared in constant time.
type Service struct {
	repo       Repository
	pub        EventPublisher
	secret     []byte
	maxRetries int
	logger     *slog.Logger
}

func NewService(repo Repository, pub EventPublisher, workerSecret string, maxRetries int, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		pub:        pub,
		secret:     []byte(workerSecret),
		maxRetries: maxRetries,
		logger:     logger,
	}
}

func (s *Service) MaxRetries() int { return s.maxRetries }

func (s *Service) verify(credential string) error {
	if len(s.secret) == 0 {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(credential), s.secret) != 1 {
		return ErrUnauthorized
	}
	return nil
}

func (s *Service) Create(ctx context.Context, typ Type, userID, projectID, parentJobID string, input json.RawMessage) (*Job, error) {
	if !knownTypes[typ] {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidInput)
	}
	if !json.Valid(input) {
		return nil, fmt.Errorf("%w: input is not valid JSON", ErrInvalidInput)
	}

	j := &Job{
		Type:        typ,
		UserID:      userID,
		ProjectID:   projectID,
		ParentJobID: parentJobID,
		InputData:   input,
	}
	if err := s.repo.Create(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, userID string) ([]Job, error) {
	return s.repo.List(ctx, userID)
}

func (s *Service) Claim(ctx context.Context, maxCount int, credential string) ([]Job, error) {
	if err := s.verify(credential); err != nil {
		return nil, err
	}
	if maxCount <= 0 {
		return nil, nil
	}
	return s.repo.Claim(ctx, maxCount)
}

func (s *Service) UpdateProgress(ctx context.Context, id string, p Progress, credential string) error {
	if err := s.verify(credential); err != nil {
		return err
	}
	// Percent is bounded 0-100 in the schema; an out-of-range report is
	// clamped rather than failing the running job.
	if p.Percent < 0 {
		p.Percent = 0
	} else if p.Percent > 100 {
		p.Percent = 100
	}
	return s.repo.UpdateProgress(ctx, id, p)
}

func (s *Service) Complete(ctx context.Context, id string, result json.RawMessage, credential string) error {
	if err := s.verify(credential); err != nil {
		return err
	}
	if err := s.repo.Complete(ctx, id, result); err != nil {
		return err
	}
	s.publishLifecycle(ctx, config.TopicJobCompleted, id, "")
	return nil
}

func (s *Service) Fail(ctx context.Context, id string, errMsg string, credential string) error {
	if err := s.verify(credential); err != nil {
		return err
	}
	if err := s.repo.Fail(ctx, id, errMsg); err != nil {
		return err
	}
	s.publishLifecycle(ctx, config.TopicJobFailed, id, errMsg)
	return nil
}

func (s *Service) Requeue(ctx context.Context, id string, newRetryCount int, waitingFor []string, credential string) error {
	if err := s.verify(credential); err != nil {
		return err
	}
	if newRetryCount > s.maxRetries {
		return ErrRetryExhausted
	}
	return s.repo.Requeue(ctx, id, newRetryCount, waitingFor)
}

// Retry resets a failed job to pending with cleared error and result. It is
// the explicit user action, distinct from the worker's bounded requeue.
func (s *Service) Retry(ctx context.Context, id string) error {
	return s.repo.Retry(ctx, id)
}

func (s *Service) Cancel(ctx context.Context, id string) error {
	return s.repo.Cancel(ctx, id)
}

// ListProcessing feeds the timeout sweeper. Read-only, no credential needed.
func (s *Service) ListProcessing(ctx context.Context) ([]Job, error) {
	return s.repo.ListProcessing(ctx)
}

func (s *Service) CountByStatus(ctx context.Context) (map[Status]int, error) {
	return s.repo.CountByStatus(ctx)
}

type lifecycleEvent struct {
	JobID string `json:"job_id"`
	Error string `json:"error,omitempty"`
}

// publishLifecycle emits the completed/failed event consumed by billing and
// the UI push channel. Delivery is best effort; the store is the source of
// truth and consumers reconcile from it.
func (s *Service) publishLifecycle(ctx context.Context, topic, id, errMsg string) {
	if s.pub == nil {
		return
	}
	body, err := json.Marshal(lifecycleEvent{JobID: id, Error: errMsg})
	if err != nil {
		return
	}
	if err := s.pub.Publish(topic, body); err != nil {
		s.logger.WarnContext(ctx, "failed to publish job lifecycle event", "topic", topic, "job_id", id, "error", err)
	}
}
