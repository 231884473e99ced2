package processor

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelforge/backend/features/job"
)

type noopProcessor struct {
	typ job.Type
}

func (p *noopProcessor) Type() job.Type                                  { return p.typ }
func (p *noopProcessor) Validate(input json.RawMessage) error            { return nil }
func (p *noopProcessor) Authorize(ctx context.Context, j *job.Job) error { return nil }
func (p *noopProcessor) Process(ctx context.Context, j *job.Job, report ProgressFunc) (json.RawMessage, error) {
	return nil, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&noopProcessor{typ: job.TypeImageGen}))

	p, err := r.Lookup(job.TypeImageGen)
	require.NoError(t, err)
	assert.Equal(t, job.TypeImageGen, p.Type())
}

func TestRegistry_DuplicateRejected(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&noopProcessor{typ: job.TypeImageGen}))
	assert.Error(t, r.Register(&noopProcessor{typ: job.TypeImageGen}))
}

func TestRegistry_UnknownType(t *testing.T) {
	r := NewRegistry()
	_, err := r.Lookup(job.Type("teleport"))
	assert.ErrorIs(t, err, ErrUnregisteredType)
}
