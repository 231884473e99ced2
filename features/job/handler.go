package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"reelforge/backend/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

type createRequest struct {
	Type        Type            `json:"type"`
	UserID      string          `json:"user_id"`
	ProjectID   string          `json:"project_id,omitempty"`
	ParentJobID string          `json:"parent_job_id,omitempty"`
	InputData   json.RawMessage `json:"input_data"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "INVALID_INPUT", "malformed request body", http.StatusBadRequest)
		return
	}

	slog.InfoContext(ctx, "creating job", "type", req.Type, "user_id", req.UserID, "correlationId", correlationID)

	j, err := h.service.Create(ctx, req.Type, req.UserID, req.ProjectID, req.ParentJobID, req.InputData)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create job", "error", err, "correlationId", correlationID)
		if errors.Is(err, ErrUnknownType) || errors.Is(err, ErrInvalidInput) {
			h.writeError(ctx, w, "INVALID_INPUT", err.Error(), http.StatusBadRequest)
			return
		}
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": j.View()}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	j, err := h.service.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(ctx, w, "NOT_FOUND", "Job not found", http.StatusNotFound)
			return
		}
		slog.ErrorContext(ctx, "failed to get job", "id", id, "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": j.View()}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		h.writeError(ctx, w, "INVALID_INPUT", "user_id query parameter is required", http.StatusBadRequest)
		return
	}

	jobs, err := h.service.List(ctx, userID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list jobs", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	views := make([]StatusView, 0, len(jobs))
	for i := range jobs {
		views = append(views, jobs[i].View())
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": views,
		"meta": map[string]int{"count": len(views)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)
	id := r.PathValue("id")

	slog.InfoContext(ctx, "retrying job", "id", id, "correlationId", correlationID)

	if err := h.service.Retry(ctx, id); err != nil {
		if errors.Is(err, ErrNotClaimable) {
			h.writeError(ctx, w, "CONFLICT", "Only failed jobs can be retried", http.StatusConflict)
			return
		}
		slog.ErrorContext(ctx, "failed to retry job", "id", id, "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": "job retried"}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)
	id := r.PathValue("id")

	slog.InfoContext(ctx, "cancelling job", "id", id, "correlationId", correlationID)

	if err := h.service.Cancel(ctx, id); err != nil {
		if errors.Is(err, ErrNotClaimable) {
			h.writeError(ctx, w, "CONFLICT", "Only pending or processing jobs can be cancelled", http.StatusConflict)
			return
		}
		slog.ErrorContext(ctx, "failed to cancel job", "id", id, "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": "job cancelled"}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
