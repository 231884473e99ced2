// Package processor defines the per-job-type handler contract and the
// concrete generation processors. A processor never touches the job store
// directly; the worker pool drives validate, authorize and process, and maps
// the outcome to exactly one store mutation.
package processor

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"reelforge/backend/features/job"
	"reelforge/backend/features/project"
)

// ProgressFunc reports a progress milestone for the running job. An error
// from the report means the job is no longer owned (cancelled or swept) and
// the processor should abandon further work.
type ProgressFunc func(ctx context.Context, p job.Progress) error

type Processor interface {
	Type() job.Type

	// Validate rejects a malformed input payload with a *ValidationError.
	// It never coerces silently.
	Validate(input json.RawMessage) error

	// Authorize verifies the job's owning resource belongs to the job's user.
	Authorize(ctx context.Context, j *job.Job) error

	// Process performs the work, reporting at least a start and a
	// pre-completion checkpoint. A dependency that has not materialised yet
	// is signalled with *DependencyWait, never a generic error.
	Process(ctx context.Context, j *job.Job, report ProgressFunc) (json.RawMessage, error)
}

// ValidationError marks an input payload defect. Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Reason)
}

// ErrForbidden marks an authorization failure. Never retried.
var ErrForbidden = errors.New("job references a resource its user does not own")

// DependencyWait signals that one or more input dependencies are still
// generating. The worker pool requeues the job with a bounded retry count
// instead of failing it.
type DependencyWait struct {
	WaitingFor []string
}

func (e *DependencyWait) Error() string {
	return fmt.Sprintf("waiting for %d dependencies", len(e.WaitingFor))
}

// MediaGenerator is the narrow boundary to the external synthesis providers.
// Provider SDKs live behind it and are out of scope here.
type MediaGenerator interface {
	Generate(ctx context.Context, req MediaRequest) (MediaResult, error)
}

type MediaRequest struct {
	Kind            string   `json:"kind"` // image, video, audio
	Prompt          string   `json:"prompt"`
	ReferenceIDs    []string `json:"reference_ids,omitempty"`
	Voice           string   `json:"voice,omitempty"`
	DurationSeconds float64  `json:"duration_seconds,omitempty"`
}

type MediaResult struct {
	URL string `json:"url"`
}

// ScriptAnalyzer is the narrow boundary to the text-analysis provider.
type ScriptAnalyzer interface {
	Analyze(ctx context.Context, script string) (json.RawMessage, error)
}

// authorizeProject is the default Authorize implementation shared by the
// concrete processors: a project-scoped job must belong to the project's
// owner, a user-scoped job (no project) is always allowed.
func authorizeProject(ctx context.Context, projects project.Repository, j *job.Job) error {
	if j.ProjectID == "" {
		return nil
	}
	ownerID, err := projects.OwnerID(ctx, j.ProjectID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: project %s not found", ErrForbidden, j.ProjectID)
	}
	if err != nil {
		return err
	}
	if ownerID != j.UserID {
		return ErrForbidden
	}
	return nil
}
