package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vidsmith/internal/common"
	"github.com/ternarybob/vidsmith/internal/models"
)

// SplitStorage mirrors scene boundaries to the database. ReplaceSplits swaps
// the whole set for a job in one transaction; partial updates never happen
// because splits are derived state.
type SplitStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

func NewSplitStorage(db *SQLiteDB, logger arbor.ILogger) *SplitStorage {
	return &SplitStorage{db: db, logger: logger}
}

func (s *SplitStorage) ReplaceSplits(ctx context.Context, jobID string, splits []models.JobSplit) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM job_splits WHERE job_id = ?", jobID); err != nil {
		return fmt.Errorf("failed to clear splits: %w", err)
	}

	now := time.Now()
	for i := range splits {
		split := &splits[i]
		if split.ID == "" {
			split.ID = common.NewID()
		}
		split.JobID = jobID
		if split.CreatedAt.IsZero() {
			split.CreatedAt = now
		}
		split.UpdatedAt = now

		candidates, err := marshalJSONSlice(split.ImageCandidates)
		if err != nil {
			return fmt.Errorf("failed to marshal image candidates: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO job_splits (id, job_id, idx, start_ms, end_ms, text, prompt,
				image_candidates, selected_image_id, video_path, created_at, updated_at, deleted_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			split.ID, split.JobID, split.Index, split.StartMS, split.EndMS,
			split.Text, split.Prompt, candidates, split.SelectedImageID, split.VideoPath,
			split.CreatedAt.Unix(), split.UpdatedAt.Unix(), unixOrNil(split.DeletedAt)); err != nil {
			return fmt.Errorf("failed to insert split %d: %w", split.Index, err)
		}
	}

	return tx.Commit()
}

func (s *SplitStorage) ListSplits(ctx context.Context, jobID string) ([]models.JobSplit, error) {
	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT id, job_id, idx, start_ms, end_ms, text, prompt,
			image_candidates, selected_image_id, video_path, created_at, updated_at, deleted_at
		FROM job_splits WHERE job_id = ? AND deleted_at IS NULL ORDER BY idx`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list splits: %w", err)
	}
	defer rows.Close()

	var out []models.JobSplit
	for rows.Next() {
		var (
			split                models.JobSplit
			candidates           string
			createdAt, updatedAt int64
			deletedAt            sql.NullInt64
		)
		if err := rows.Scan(&split.ID, &split.JobID, &split.Index, &split.StartMS,
			&split.EndMS, &split.Text, &split.Prompt, &candidates,
			&split.SelectedImageID, &split.VideoPath,
			&createdAt, &updatedAt, &deletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		split.ImageCandidates = unmarshalStrings(candidates)
		split.CreatedAt = time.Unix(createdAt, 0)
		split.UpdatedAt = time.Unix(updatedAt, 0)
		split.DeletedAt = timeFromNull(deletedAt)
		out = append(out, split)
	}
	return out, rows.Err()
}
