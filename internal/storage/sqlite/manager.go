package sqlite

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vidsmith/internal/common"
	"github.com/ternarybob/vidsmith/internal/interfaces"
)

// Manager aggregates every store behind one SQLite connection.
type Manager struct {
	db         *SQLiteDB
	users      *UserStorage
	catalog    *CatalogStorage
	jobs       *JobStorage
	executions *ExecutionStorage
	splits     *SplitStorage
	logger     arbor.ILogger
}

// NewManager opens the database, runs migrations and wires the stores.
func NewManager(logger arbor.ILogger, config *common.DatabaseConfig) (*Manager, error) {
	db, err := NewSQLiteDB(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	return &Manager{
		db:         db,
		users:      NewUserStorage(db, logger),
		catalog:    NewCatalogStorage(db, logger),
		jobs:       NewJobStorage(db, logger),
		executions: NewExecutionStorage(db, logger),
		splits:     NewSplitStorage(db, logger),
		logger:     logger,
	}, nil
}

func (m *Manager) Users() interfaces.UserStorage           { return m.users }
func (m *Manager) Catalog() interfaces.CatalogStorage      { return m.catalog }
func (m *Manager) Jobs() interfaces.JobStorage             { return m.jobs }
func (m *Manager) Executions() interfaces.ExecutionStorage { return m.executions }
func (m *Manager) Splits() interfaces.SplitStorage         { return m.splits }
func (m *Manager) Ping(ctx context.Context) error          { return m.db.Ping(ctx) }

func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
