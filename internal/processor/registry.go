package processor

import (
	"errors"
	"fmt"

	"reelforge/backend/features/job"
)

// ErrUnregisteredType is returned by Lookup for a job type no processor
// handles. The worker pool fails such jobs loudly rather than dropping them.
var ErrUnregisteredType = errors.New("no processor registered for job type")

// Registry is the static job-type to processor mapping, built once at worker
// startup before any job is claimed.
type Registry struct {
	procs map[job.Type]Processor
}

func NewRegistry() *Registry {
	return &Registry{procs: make(map[job.Type]Processor)}
}

func (r *Registry) Register(p Processor) error {
	t := p.Type()
	if _, exists := r.procs[t]; exists {
		return fmt.Errorf("processor already registered for type %q", t)
	}
	r.procs[t] = p
	return nil
}

func (r *Registry) Lookup(t job.Type) (Processor, error) {
	p, ok := r.procs[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnregisteredType, t)
	}
	return p, nil
}
