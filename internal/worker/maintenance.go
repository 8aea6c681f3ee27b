package worker

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vidsmith/internal/common"
	"github.com/ternarybob/vidsmith/internal/interfaces"
)

// Maintenance implements the janitor task handlers. All three tasks are
// idempotent: running them twice in a row is harmless, which is what makes
// at-least-once delivery safe for them.
type Maintenance struct {
	executions interfaces.ExecutionStorage
	config     *common.Config
	logger     arbor.ILogger
}

func NewMaintenance(logger arbor.ILogger, config *common.Config, executions interfaces.ExecutionStorage) *Maintenance {
	return &Maintenance{executions: executions, config: config, logger: logger}
}

// ResetStuck times out RUNNING executions whose heartbeat is older than the
// stuck threshold, typically after a worker crash.
func (m *Maintenance) ResetStuck(ctx context.Context, delivery *interfaces.Delivery) error {
	cutoff := time.Now().Add(-m.config.StuckThreshold())
	count, err := m.executions.ResetStuck(ctx, cutoff)
	if err != nil {
		return err
	}
	if count > 0 {
		m.logger.Warn().Int("count", count).Msg("Stuck executions reset to TIMEOUT")
	} else {
		m.logger.Debug().Msg("No stuck executions")
	}
	return nil
}

// CleanupOld soft-deletes terminal executions past retention and removes
// leftover workspaces past the workspace TTL.
func (m *Maintenance) CleanupOld(ctx context.Context, delivery *interfaces.Delivery) error {
	cutoff := time.Now().Add(-m.config.ExecutionRetention())
	count, err := m.executions.SweepOld(ctx, cutoff)
	if err != nil {
		return err
	}
	removed := m.sweepWorkspaces()
	m.logger.Info().Int("executions_swept", count).Int("workspaces_removed", removed).Msg("Cleanup completed")
	return nil
}

// CheckHealth logs the per-status execution counters.
func (m *Maintenance) CheckHealth(ctx context.Context, delivery *interfaces.Delivery) error {
	counts, err := m.executions.CountByStatus(ctx)
	if err != nil {
		return err
	}
	event := m.logger.Info()
	for status, count := range counts {
		event = event.Int(string(status), count)
	}
	event.Msg("Execution status counts")
	return nil
}

// sweepWorkspaces removes job workspaces older than the workspace TTL.
// Failed-run workspaces are kept on disk for inspection until then.
func (m *Maintenance) sweepWorkspaces() int {
	base := m.config.Worker.WorkspaceBase
	cutoff := time.Now().Add(-m.config.WorkspaceTTL())
	removed := 0

	users, err := os.ReadDir(base)
	if err != nil {
		return 0
	}
	for _, user := range users {
		if !user.IsDir() {
			continue
		}
		userDir := filepath.Join(base, user.Name())
		jobs, err := os.ReadDir(userDir)
		if err != nil {
			continue
		}
		for _, job := range jobs {
			if !job.IsDir() {
				continue
			}
			jobDir := filepath.Join(userDir, job.Name())
			info, err := job.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			if err := os.RemoveAll(jobDir); err != nil {
				m.logger.Warn().Err(err).Str("workspace", jobDir).Msg("Failed to remove stale workspace")
				continue
			}
			removed++
		}
	}
	return removed
}
