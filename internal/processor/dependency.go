package processor

import (
	"context"
	"fmt"
	"strings"

	"reelforge/backend/features/asset"
)

// ResourceChecker resolves a dependency reference to its readiness state.
type ResourceChecker interface {
	Readiness(ctx context.Context, id string) (asset.Readiness, error)
}

// CheckResult classifies a set of dependency references. Exactly one of the
// three shapes holds: everything ready, some still waiting, or at least one
// permanently failed.
type CheckResult struct {
	WaitingFor []string
	Failed     []string
}

func (r CheckResult) Ready() bool {
	return len(r.WaitingFor) == 0 && len(r.Failed) == 0
}

type DependencyChecker struct {
	resources ResourceChecker
}

func NewDependencyChecker(resources ResourceChecker) *DependencyChecker {
	return &DependencyChecker{resources: resources}
}

// Check resolves each reference. A deleted resource fails the whole check
// immediately: a permanently missing input can never resolve, so there is no
// point reporting the remaining waits. An empty list is vacuously ready.
func (c *DependencyChecker) Check(ctx context.Context, ids []string) (CheckResult, error) {
	var result CheckResult
	for _, id := range ids {
		state, err := c.resources.Readiness(ctx, id)
		if err != nil {
			return CheckResult{}, err
		}
		switch state {
		case asset.Deleted:
			return CheckResult{Failed: []string{id}}, nil
		case asset.Pending:
			result.WaitingFor = append(result.WaitingFor, id)
		}
	}
	return result, nil
}

// Require is the form processors call at the start of Process: it turns a
// waiting result into the distinguished *DependencyWait signal and a failed
// result into a permanent error.
func (c *DependencyChecker) Require(ctx context.Context, ids []string) error {
	result, err := c.Check(ctx, ids)
	if err != nil {
		return err
	}
	if len(result.Failed) > 0 {
		return fmt.Errorf("dependency failed permanently: %s", strings.Join(result.Failed, ", "))
	}
	if len(result.WaitingFor) > 0 {
		return &DependencyWait{WaitingFor: result.WaitingFor}
	}
	return nil
}
