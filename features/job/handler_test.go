package job_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"reelforge/backend/features/job"
)

// MockRepo implements job.Repository
type MockRepo struct {
	mock.Mock
}

func (m *MockRepo) Create(ctx context.Context, j *job.Job) error {
	args := m.Called(ctx, j)
	j.ID = "job-new"
	j.Status = job.StatusPending
	return args.Error(0)
}
func (m *MockRepo) Get(ctx context.Context, id string) (*job.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*job.Job), args.Error(1)
}
func (m *MockRepo) List(ctx context.Context, userID string) ([]job.Job, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]job.Job), args.Error(1)
}
func (m *MockRepo) Claim(ctx context.Context, maxCount int) ([]job.Job, error) {
	args := m.Called(ctx, maxCount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]job.Job), args.Error(1)
}
func (m *MockRepo) UpdateProgress(ctx context.Context, id string, p job.Progress) error {
	args := m.Called(ctx, id, p)
	return args.Error(0)
}
func (m *MockRepo) Complete(ctx context.Context, id string, result json.RawMessage) error {
	args := m.Called(ctx, id, result)
	return args.Error(0)
}
func (m *MockRepo) Fail(ctx context.Context, id string, errMsg string) error {
	args := m.Called(ctx, id, errMsg)
	return args.Error(0)
}
func (m *MockRepo) Requeue(ctx context.Context, id string, retryCount int, waitingFor []string) error {
	args := m.Called(ctx, id, retryCount, waitingFor)
	return args.Error(0)
}
func (m *MockRepo) Retry(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
func (m *MockRepo) Cancel(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
func (m *MockRepo) ListProcessing(ctx context.Context) ([]job.Job, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]job.Job), args.Error(1)
}
func (m *MockRepo) CountByStatus(ctx context.Context) (map[job.Status]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[job.Status]int), args.Error(1)
}

func newHandler(repo job.Repository) *job.Handler {
	svc := job.NewService(repo, nil, "secret", 3, slog.Default())
	return job.NewHandler(svc)
}

func TestHandler_Create(t *testing.T) {
	mockRepo := new(MockRepo)
	handler := newHandler(mockRepo)

	mockRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	body := `{"type":"image_gen","user_id":"user-1","input_data":{"prompt":"a cat"}}`
	req := httptest.NewRequest("POST", "/jobs", strings.NewReader(body))
	w := httptest.NewRecorder()

	handler.Create(w, req)
	assert.Equal(t, http.StatusCreated, w.Result().StatusCode)
	mockRepo.AssertExpectations(t)
}

func TestHandler_Create_UnknownType(t *testing.T) {
	mockRepo := new(MockRepo)
	handler := newHandler(mockRepo)

	body := `{"type":"mining","user_id":"user-1","input_data":{}}`
	req := httptest.NewRequest("POST", "/jobs", strings.NewReader(body))
	w := httptest.NewRecorder()

	handler.Create(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
}

func TestHandler_Get_NotFound(t *testing.T) {
	mockRepo := new(MockRepo)
	handler := newHandler(mockRepo)

	mockRepo.On("Get", mock.Anything, "99").Return(nil, sql.ErrNoRows)

	req := httptest.NewRequest("GET", "/jobs/99", nil)
	req.SetPathValue("id", "99")
	w := httptest.NewRecorder()

	handler.Get(w, req)
	assert.Equal(t, http.StatusNotFound, w.Result().StatusCode)
}

func TestHandler_Get_HidesInternals(t *testing.T) {
	mockRepo := new(MockRepo)
	handler := newHandler(mockRepo)

	j := &job.Job{
		ID:            "job-1",
		Type:          job.TypeImageGen,
		Status:        job.StatusPending,
		RetryCount:    2,
		WaitingForIDs: []string{"img_v1"},
	}
	mockRepo.On("Get", mock.Anything, "job-1").Return(j, nil)

	req := httptest.NewRequest("GET", "/jobs/job-1", nil)
	req.SetPathValue("id", "job-1")
	w := httptest.NewRecorder()

	handler.Get(w, req)
	assert.Equal(t, http.StatusOK, w.Result().StatusCode)

	// Retry counts and wait-lists are recovery mechanics, not API surface.
	body := w.Body.String()
	assert.NotContains(t, body, "retry")
	assert.NotContains(t, body, "img_v1")
}

func TestHandler_Retry_Conflict(t *testing.T) {
	mockRepo := new(MockRepo)
	handler := newHandler(mockRepo)

	mockRepo.On("Retry", mock.Anything, "job-1").Return(job.ErrNotClaimable)

	req := httptest.NewRequest("POST", "/jobs/job-1/retry", nil)
	req.SetPathValue("id", "job-1")
	w := httptest.NewRecorder()

	handler.Retry(w, req)
	assert.Equal(t, http.StatusConflict, w.Result().StatusCode)
}

func TestHandler_Cancel(t *testing.T) {
	mockRepo := new(MockRepo)
	handler := newHandler(mockRepo)

	mockRepo.On("Cancel", mock.Anything, "job-1").Return(nil)

	req := httptest.NewRequest("POST", "/jobs/job-1/cancel", nil)
	req.SetPathValue("id", "job-1")
	w := httptest.NewRecorder()

	handler.Cancel(w, req)
	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
	mockRepo.AssertExpectations(t)
}

func TestHandler_List_RequiresUser(t *testing.T) {
	mockRepo := new(MockRepo)
	handler := newHandler(mockRepo)

	req := httptest.NewRequest("GET", "/jobs", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
}
