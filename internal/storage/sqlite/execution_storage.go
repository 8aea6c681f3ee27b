package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vidsmith/internal/interfaces"
	"github.com/ternarybob/vidsmith/internal/models"
)

// ExecutionStorage persists job executions. Status writes go through
// TransitionExecution so the legal edge set holds at the storage boundary too.
type ExecutionStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

func NewExecutionStorage(db *SQLiteDB, logger arbor.ILogger) *ExecutionStorage {
	return &ExecutionStorage{db: db, logger: logger}
}

var executionColumns = map[string]bool{
	"id": true, "job_id": true, "status": true, "worker_hostname": true,
	"retry_count": true, "started_at": true, "finished_at": true,
	"created_at": true, "updated_at": true, "deleted_at": true,
}

const executionSelect = `
	SELECT id, job_id, status, status_detail, worker_hostname, started_at, finished_at,
		retry_count, error_message, result_key, metadata, created_at, updated_at, deleted_at
	FROM job_executions`

func (s *ExecutionStorage) CreateExecution(ctx context.Context, execution *models.JobExecution) error {
	now := time.Now()
	if execution.CreatedAt.IsZero() {
		execution.CreatedAt = now
	}
	execution.UpdatedAt = now

	metadata, err := marshalJSON(execution.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal execution metadata: %w", err)
	}

	_, err = s.db.DB().ExecContext(ctx, `
		INSERT INTO job_executions (id, job_id, status, status_detail, worker_hostname,
			started_at, finished_at, retry_count, error_message, result_key, metadata,
			created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		execution.ID, execution.JobID, string(execution.Status), execution.StatusDetail,
		execution.WorkerHostname, unixOrNil(execution.StartedAt), unixOrNil(execution.FinishedAt),
		execution.RetryCount, execution.ErrorMessage, execution.ResultKey, metadata,
		execution.CreatedAt.Unix(), execution.UpdatedAt.Unix(), unixOrNil(execution.DeletedAt))
	if err != nil {
		return fmt.Errorf("failed to create execution: %w", err)
	}
	return nil
}

func (s *ExecutionStorage) GetExecution(ctx context.Context, id string) (*models.JobExecution, error) {
	row := s.db.DB().QueryRowContext(ctx, executionSelect+" WHERE id = ?", id)
	execution, err := scanExecution(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("execution %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get execution: %w", err)
	}
	return execution, nil
}

func (s *ExecutionStorage) UpdateExecution(ctx context.Context, execution *models.JobExecution) error {
	execution.UpdatedAt = time.Now()

	metadata, err := marshalJSON(execution.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal execution metadata: %w", err)
	}

	// Terminal statuses are never left, so the guard rejects writes from a
	// caller whose in-memory copy predates a concurrent cancel or timeout.
	result, err := s.db.DB().ExecContext(ctx, `
		UPDATE job_executions SET
			status = ?, status_detail = ?, worker_hostname = ?, started_at = ?,
			finished_at = ?, retry_count = ?, error_message = ?, result_key = ?,
			metadata = ?, updated_at = ?, deleted_at = ?
		WHERE id = ? AND status NOT IN (?, ?, ?, ?)`,
		string(execution.Status), execution.StatusDetail, execution.WorkerHostname,
		unixOrNil(execution.StartedAt), unixOrNil(execution.FinishedAt),
		execution.RetryCount, execution.ErrorMessage, execution.ResultKey, metadata,
		execution.UpdatedAt.Unix(), unixOrNil(execution.DeletedAt), execution.ID,
		string(models.StatusSuccess), string(models.StatusFailed),
		string(models.StatusCancelled), string(models.StatusTimeout))
	if err != nil {
		return fmt.Errorf("failed to update execution: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		if _, getErr := s.GetExecution(ctx, execution.ID); errors.Is(getErr, ErrNotFound) {
			return fmt.Errorf("execution %s: %w", execution.ID, ErrNotFound)
		}
		return fmt.Errorf("execution %s: %w", execution.ID, ErrStaleExecution)
	}
	return nil
}

// TransitionExecution reads the row, applies the edge on the model (which
// enforces legality and timestamps), and writes it back.
func (s *ExecutionStorage) TransitionExecution(ctx context.Context, id string, to models.ExecutionStatus, detail string) error {
	execution, err := s.GetExecution(ctx, id)
	if err != nil {
		return err
	}
	if err := execution.Transition(to, detail); err != nil {
		return err
	}
	return s.UpdateExecution(ctx, execution)
}

func (s *ExecutionStorage) LatestExecution(ctx context.Context, jobID string) (*models.JobExecution, error) {
	row := s.db.DB().QueryRowContext(ctx,
		executionSelect+` WHERE job_id = ? AND deleted_at IS NULL
		ORDER BY created_at DESC, id DESC LIMIT 1`, jobID)
	execution, err := scanExecution(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no execution for job %s: %w", jobID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get latest execution: %w", err)
	}
	return execution, nil
}

func (s *ExecutionStorage) ListExecutions(ctx context.Context, query interfaces.Query) ([]*models.JobExecution, error) {
	tail, args, err := buildQuery(query, executionColumns)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.DB().QueryContext(ctx, executionSelect+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	var out []*models.JobExecution
	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		out = append(out, execution)
	}
	return out, rows.Err()
}

func (s *ExecutionStorage) CountByStatus(ctx context.Context) (map[models.ExecutionStatus]int, error) {
	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT status, COUNT(*) FROM job_executions
		WHERE deleted_at IS NULL GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count executions by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.ExecutionStatus]int)
	for rows.Next() {
		var (
			raw   string
			count int
		)
		if err := rows.Scan(&raw, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		status, err := models.ParseStatus(raw)
		if err != nil {
			continue
		}
		counts[status] += count
	}
	return counts, rows.Err()
}

// ResetStuck marks RUNNING executions untouched since the cutoff as TIMEOUT.
// The TIMEOUT edge from RUNNING is always legal so this is a bulk update.
func (s *ExecutionStorage) ResetStuck(ctx context.Context, cutoff time.Time) (int, error) {
	now := time.Now().Unix()
	result, err := s.db.DB().ExecContext(ctx, `
		UPDATE job_executions SET
			status = ?, status_detail = ?, error_message = ?,
			finished_at = ?, updated_at = ?
		WHERE status = ? AND updated_at < ? AND deleted_at IS NULL`,
		string(models.StatusTimeout), "Reset by janitor",
		"execution stuck beyond threshold", now, now,
		string(models.StatusRunning), cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to reset stuck executions: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}

// SweepOld soft-deletes terminal executions created before the cutoff.
func (s *ExecutionStorage) SweepOld(ctx context.Context, cutoff time.Time) (int, error) {
	now := time.Now().Unix()
	result, err := s.db.DB().ExecContext(ctx, `
		UPDATE job_executions SET deleted_at = ?, updated_at = ?
		WHERE status IN (?, ?, ?, ?) AND created_at < ? AND deleted_at IS NULL`,
		now, now,
		string(models.StatusSuccess), string(models.StatusFailed),
		string(models.StatusCancelled), string(models.StatusTimeout),
		cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep old executions: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}

func scanExecution(row rowScanner) (*models.JobExecution, error) {
	var (
		execution             models.JobExecution
		status                string
		metadata              string
		startedAt, finishedAt sql.NullInt64
		createdAt, updatedAt  int64
		deletedAt             sql.NullInt64
	)
	if err := row.Scan(&execution.ID, &execution.JobID, &status, &execution.StatusDetail,
		&execution.WorkerHostname, &startedAt, &finishedAt, &execution.RetryCount,
		&execution.ErrorMessage, &execution.ResultKey, &metadata,
		&createdAt, &updatedAt, &deletedAt); err != nil {
		return nil, err
	}
	parsed, err := models.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("execution %s: %w", execution.ID, err)
	}
	execution.Status = parsed
	execution.Metadata = unmarshalMap(metadata)
	execution.StartedAt = timeFromNull(startedAt)
	execution.FinishedAt = timeFromNull(finishedAt)
	execution.CreatedAt = time.Unix(createdAt, 0)
	execution.UpdatedAt = time.Unix(updatedAt, 0)
	execution.DeletedAt = timeFromNull(deletedAt)
	return &execution, nil
}
