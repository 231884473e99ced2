package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/lib/pq"
)

// ErrNotClaimable is returned when a compare-and-set transition matched zero
// rows: the job is gone, owned by nobody, or already in a terminal state.
var ErrNotClaimable = errors.New("job is not in a claimable state")

type Progress struct {
	Percent     int
	Message     string
	CurrentStep int
	TotalSteps  int
}

type Repository interface {
	Create(ctx context.Context, j *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	List(ctx context.Context, userID string) ([]Job, error)
	Claim(ctx context.Context, maxCount int) ([]Job, error)
	UpdateProgress(ctx context.Context, id string, p Progress) error
	Complete(ctx context.Context, id string, result json.RawMessage) error
	Fail(ctx context.Context, id string, errMsg string) error
	Requeue(ctx context.Context, id string, retryCount int, waitingFor []string) error
	Retry(ctx context.Context, id string) error
	Cancel(ctx context.Context, id string) error
	ListProcessing(ctx context.Context) ([]Job, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
}

const jobColumns = `id, type, user_id, project_id, parent_job_id, status, progress, progress_message,
	current_step, total_steps, input_data, result_data, error_message, retry_count, waiting_for_ids,
	created_at, started_at, completed_at`

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Create(ctx context.Context, j *Job) error {
	query := `INSERT INTO jobs (type, user_id, project_id, parent_job_id, input_data)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5)
		RETURNING id, status, created_at`
	return r.db.QueryRowContext(ctx, query, j.Type, j.UserID, j.ProjectID, j.ParentJobID, j.InputData).
		Scan(&j.ID, &j.Status, &j.CreatedAt)
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	return scanJob(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepo) List(ctx context.Context, userID string) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	return collectJobs(rows)
}

// Claim atomically transitions up to maxCount of the oldest pending jobs to
// processing and returns them. FOR UPDATE SKIP LOCKED keeps concurrent worker
// processes from ever claiming the same row.
func (r *PostgresRepo) Claim(ctx context.Context, maxCount int) ([]Job, error) {
	query := `UPDATE jobs SET status = 'processing', started_at = NOW()
		WHERE id IN (
			SELECT id FROM jobs
			WHERE status = 'pending'
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns
	rows, err := r.db.QueryContext(ctx, query, maxCount)
	if err != nil {
		return nil, err
	}
	return collectJobs(rows)
}

func (r *PostgresRepo) UpdateProgress(ctx context.Context, id string, p Progress) error {
	query := `UPDATE jobs SET progress = $2, progress_message = $3, current_step = $4, total_steps = $5
		WHERE id = $1 AND status = 'processing'`
	return r.checkAffected(r.db.ExecContext(ctx, query, id, p.Percent, p.Message, p.CurrentStep, p.TotalSteps))
}

func (r *PostgresRepo) Complete(ctx context.Context, id string, result json.RawMessage) error {
	query := `UPDATE jobs SET status = 'completed', progress = 100, result_data = $2, completed_at = NOW()
		WHERE id = $1 AND status = 'processing'`
	return r.checkAffected(r.db.ExecContext(ctx, query, id, result))
}

// Fail moves a pending or processing job to failed. Pending is allowed so
// zombies (crashed before timestamping) and dependency-timeout jobs can be
// failed without first being re-claimed. Terminal rows are left untouched.
func (r *PostgresRepo) Fail(ctx context.Context, id string, errMsg string) error {
	query := `UPDATE jobs SET status = 'failed', error_message = $2, completed_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'processing')`
	return r.checkAffected(r.db.ExecContext(ctx, query, id, errMsg))
}

// Requeue is the single allowed backward transition: processing back to
// pending while a dependency resolves. started_at is cleared so the sweeper
// never measures a stale processing window.
func (r *PostgresRepo) Requeue(ctx context.Context, id string, retryCount int, waitingFor []string) error {
	query := `UPDATE jobs SET status = 'pending', retry_count = $2, waiting_for_ids = $3,
		started_at = NULL, progress_message = 'waiting for dependencies'
		WHERE id = $1 AND status = 'processing'`
	return r.checkAffected(r.db.ExecContext(ctx, query, id, retryCount, pq.Array(waitingFor)))
}

// Retry is the explicit user action resetting a failed job to a clean pending
// state. It is the only mutation permitted on a terminal job.
func (r *PostgresRepo) Retry(ctx context.Context, id string) error {
	query := `UPDATE jobs SET status = 'pending', progress = 0, progress_message = '',
		current_step = 0, total_steps = 0, result_data = NULL, error_message = '',
		retry_count = 0, waiting_for_ids = '{}', started_at = NULL, completed_at = NULL
		WHERE id = $1 AND status = 'failed'`
	return r.checkAffected(r.db.ExecContext(ctx, query, id))
}

func (r *PostgresRepo) Cancel(ctx context.Context, id string) error {
	query := `UPDATE jobs SET status = 'failed', error_message = $2, completed_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'processing')`
	return r.checkAffected(r.db.ExecContext(ctx, query, id, CancelledMessage))
}

func (r *PostgresRepo) ListProcessing(ctx context.Context) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status = 'processing' ORDER BY started_at ASC NULLS FIRST`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return collectJobs(rows)
}

func (r *PostgresRepo) CountByStatus(ctx context.Context) (map[Status]int, error) {
	query := `SELECT status, COUNT(*) FROM jobs GROUP BY status`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var s Status
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		counts[s] = n
	}
	return counts, rows.Err()
}

func (r *PostgresRepo) checkAffected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotClaimable
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*Job, error) {
	j := &Job{}
	var projectID, parentJobID sql.NullString
	var result []byte
	var startedAt, completedAt sql.NullTime

	err := row.Scan(&j.ID, &j.Type, &j.UserID, &projectID, &parentJobID, &j.Status,
		&j.Progress, &j.ProgressMessage, &j.CurrentStep, &j.TotalSteps,
		&j.InputData, &result, &j.ErrorMessage, &j.RetryCount, &j.WaitingForIDs,
		&j.CreatedAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	j.ProjectID = projectID.String
	j.ParentJobID = parentJobID.String
	if result != nil {
		j.ResultData = json.RawMessage(result)
	}
	if startedAt.Valid {
		j.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		j.CompletedAt = &completedAt.Time
	}
	return j, nil
}

func collectJobs(rows *sql.Rows) ([]Job, error) {
	defer rows.Close()
	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}
