package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vidsmith/internal/interfaces"
	"github.com/ternarybob/vidsmith/internal/models"
)

// JobStorage persists job configurations. Deleting a job soft-deletes the job
// row and cascades to its executions and splits in one transaction.
type JobStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

func NewJobStorage(db *SQLiteDB, logger arbor.ILogger) *JobStorage {
	return &JobStorage{db: db, logger: logger}
}

var jobColumns = map[string]bool{
	"id": true, "user_id": true, "title": true, "language_id": true,
	"voice_id": true, "topic_id": true, "account_id": true,
	"is_horizontal": true, "run_order": true,
	"created_at": true, "updated_at": true, "deleted_at": true,
}

func (s *JobStorage) SaveJob(ctx context.Context, job *models.Job) error {
	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	extras, err := marshalJSON(job.Extras)
	if err != nil {
		return fmt.Errorf("failed to marshal job extras: %w", err)
	}

	horizontal := 0
	if job.Horizontal {
		horizontal = 1
	}

	_, err = s.db.DB().ExecContext(ctx, `
		INSERT INTO jobs (id, user_id, title, content, language_id, voice_id, topic_id, account_id,
			speech_speed, is_horizontal, extras, run_order, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			language_id = excluded.language_id,
			voice_id = excluded.voice_id,
			topic_id = excluded.topic_id,
			account_id = excluded.account_id,
			speech_speed = excluded.speech_speed,
			is_horizontal = excluded.is_horizontal,
			extras = excluded.extras,
			run_order = excluded.run_order,
			updated_at = excluded.updated_at`,
		job.ID, job.UserID, job.Title, job.Content, job.LanguageID, job.VoiceID,
		job.TopicID, job.AccountID, job.SpeechSpeed, horizontal, extras, job.RunOrder,
		job.CreatedAt.Unix(), job.UpdatedAt.Unix(), unixOrNil(job.DeletedAt))
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func (s *JobStorage) GetJob(ctx context.Context, id string) (*models.Job, error) {
	row := s.db.DB().QueryRowContext(ctx, `
		SELECT id, user_id, title, content, language_id, voice_id, topic_id, account_id,
			speech_speed, is_horizontal, extras, run_order, created_at, updated_at, deleted_at
		FROM jobs WHERE id = ? AND deleted_at IS NULL`, id)
	job, err := scanJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

func (s *JobStorage) ListJobs(ctx context.Context, query interfaces.Query) ([]*models.Job, error) {
	tail, args, err := buildQuery(query, jobColumns)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT id, user_id, title, content, language_id, voice_id, topic_id, account_id,
			speech_speed, is_horizontal, extras, run_order, created_at, updated_at, deleted_at
		FROM jobs`+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var out []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func (s *JobStorage) CountJobs(ctx context.Context, query interfaces.Query) (int, error) {
	// Counts ignore ordering and pagination
	query.Order = nil
	query.Page = nil
	tail, args, err := buildQuery(query, jobColumns)
	if err != nil {
		return 0, err
	}
	var count int
	if err := s.db.DB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM jobs"+tail, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return count, nil
}

func (s *JobStorage) DeleteJob(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	result, err := tx.ExecContext(ctx,
		"UPDATE jobs SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL",
		now, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE job_executions SET deleted_at = ?, updated_at = ? WHERE job_id = ? AND deleted_at IS NULL",
		now, now, id); err != nil {
		return fmt.Errorf("failed to cascade delete executions: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE job_splits SET deleted_at = ?, updated_at = ? WHERE job_id = ? AND deleted_at IS NULL",
		now, now, id); err != nil {
		return fmt.Errorf("failed to cascade delete splits: %w", err)
	}

	return tx.Commit()
}

func scanJob(row rowScanner) (*models.Job, error) {
	var (
		job                  models.Job
		horizontal           int
		extras               string
		createdAt, updatedAt int64
		deletedAt            sql.NullInt64
	)
	if err := row.Scan(&job.ID, &job.UserID, &job.Title, &job.Content,
		&job.LanguageID, &job.VoiceID, &job.TopicID, &job.AccountID,
		&job.SpeechSpeed, &horizontal, &extras, &job.RunOrder,
		&createdAt, &updatedAt, &deletedAt); err != nil {
		return nil, err
	}
	job.Horizontal = horizontal != 0
	job.Extras = unmarshalMap(extras)
	job.CreatedAt = time.Unix(createdAt, 0)
	job.UpdatedAt = time.Unix(updatedAt, 0)
	job.DeletedAt = timeFromNull(deletedAt)
	return &job, nil
}
