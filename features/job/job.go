package job

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

type Type string

const (
	TypeImageGen       Type = "image_gen"
	TypeVideoGen       Type = "video_gen"
	TypeAudioGen       Type = "audio_gen"
	TypeScriptAnalysis Type = "script_analysis"
)

// CancelledMessage is the canonical error_message written by a user cancel.
// Cancellation reuses the failed terminal status; a worker notices a
// cancelled job when its next CAS update affects zero rows.
const CancelledMessage = "cancelled by user"

type Job struct {
	ID          string `json:"id"`
	Type        Type   `json:"type"`
	UserID      string `json:"user_id"`
	ProjectID   string `json:"project_id,omitempty"`
	ParentJobID string `json:"parent_job_id,omitempty"`

	Status          Status `json:"status"`
	Progress        int    `json:"progress"`
	ProgressMessage string `json:"progress_message,omitempty"`
	CurrentStep     int    `json:"current_step,omitempty"`
	TotalSteps      int    `json:"total_steps,omitempty"`

	InputData    json.RawMessage `json:"input_data"`
	ResultData   json.RawMessage `json:"result_data,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`

	RetryCount    int            `json:"-"`
	WaitingForIDs pq.StringArray `json:"-"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Terminal reports whether the job has reached a final state.
func (j *Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// StatusView is the read-only shape exposed to the UI. Retry counts and
// dependency wait-lists are internal recovery mechanics and stay hidden.
type StatusView struct {
	ID              string          `json:"id"`
	Type            Type            `json:"type"`
	Status          Status          `json:"status"`
	Progress        int             `json:"progress"`
	ProgressMessage string          `json:"progress_message,omitempty"`
	ResultData      json.RawMessage `json:"result_data,omitempty"`
	ErrorMessage    string          `json:"error_message,omitempty"`
}

func (j *Job) View() StatusView {
	return StatusView{
		ID:              j.ID,
		Type:            j.Type,
		Status:          j.Status,
		Progress:        j.Progress,
		ProgressMessage: j.ProgressMessage,
		ResultData:      j.ResultData,
		ErrorMessage:    j.ErrorMessage,
	}
}
