package stats

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelforge/backend/features/job"
)

type stubCounter struct {
	counts map[job.Status]int
	err    error
}

func (s *stubCounter) CountByStatus(ctx context.Context) (map[job.Status]int, error) {
	return s.counts, s.err
}

func TestGetStats(t *testing.T) {
	h := NewHandler(&stubCounter{counts: map[job.Status]int{
		job.StatusPending:   4,
		job.StatusCompleted: 7,
	}})

	req := httptest.NewRequest("GET", "/stats", nil)
	w := httptest.NewRecorder()
	h.GetStats(w, req)

	assert.Equal(t, http.StatusOK, w.Result().StatusCode)

	var resp struct {
		Data StatsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.Data.Pending)
	assert.Equal(t, 7, resp.Data.Completed)
	assert.Equal(t, 0, resp.Data.Processing)
}

func TestGetStats_Error(t *testing.T) {
	h := NewHandler(&stubCounter{err: errors.New("db down")})

	req := httptest.NewRequest("GET", "/stats", nil)
	w := httptest.NewRecorder()
	h.GetStats(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Result().StatusCode)
}
