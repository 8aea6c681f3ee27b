package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/vidsmith/internal/models"
)

// FilterOp tags a compound filter condition.
type FilterOp string

const (
	OpEq    FilterOp = "=="
	OpNeq   FilterOp = "!="
	OpGt    FilterOp = ">"
	OpGte   FilterOp = ">="
	OpLt    FilterOp = "<"
	OpLte   FilterOp = "<="
	OpIn    FilterOp = "in"
	OpLike  FilterOp = "like"
	OpILike FilterOp = "ilike"
)

// Filter is one condition in a compound query. Values for OpIn must be a
// slice; all other operators take a scalar.
type Filter struct {
	Field string
	Op    FilterOp
	Value any
}

// Order describes result ordering.
type Order struct {
	Field      string
	Descending bool
}

// Page describes pagination. Page numbers start at 1.
type Page struct {
	Number int
	Size   int
}

// Query combines filters, ordering and pagination for list operations.
// Soft-deleted rows are filtered implicitly unless IncludeDeleted is set.
type Query struct {
	Filters        []Filter
	Order          []Order
	Page           *Page
	IncludeDeleted bool
}

// UserStorage persists identity principals.
type UserStorage interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// CatalogStorage persists the user-owned catalog entities.
type CatalogStorage interface {
	SaveLanguage(ctx context.Context, language *models.Language) error
	GetLanguage(ctx context.Context, id string) (*models.Language, error)
	ListLanguages(ctx context.Context, query Query) ([]*models.Language, error)
	DeleteLanguage(ctx context.Context, id string) error // Soft delete

	SaveVoice(ctx context.Context, voice *models.Voice) error
	GetVoice(ctx context.Context, id string) (*models.Voice, error)
	ListVoices(ctx context.Context, query Query) ([]*models.Voice, error)
	DeleteVoice(ctx context.Context, id string) error

	SaveTopic(ctx context.Context, topic *models.Topic) error
	GetTopic(ctx context.Context, id string) (*models.Topic, error)
	ListTopics(ctx context.Context, query Query) ([]*models.Topic, error)
	DeleteTopic(ctx context.Context, id string) error

	SaveAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	ListAccounts(ctx context.Context, query Query) ([]*models.Account, error)
	DeleteAccount(ctx context.Context, id string) error
}

// JobStorage persists job configurations. Deleting a job cascades its
// executions and splits.
type JobStorage interface {
	SaveJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	ListJobs(ctx context.Context, query Query) ([]*models.Job, error)
	CountJobs(ctx context.Context, query Query) (int, error)
	DeleteJob(ctx context.Context, id string) error // Soft delete, cascades
}

// ExecutionStorage persists job executions. Status writes go through
// TransitionExecution so the legal edge set is enforced at the storage
// boundary as well as on the model.
type ExecutionStorage interface {
	CreateExecution(ctx context.Context, execution *models.JobExecution) error
	GetExecution(ctx context.Context, id string) (*models.JobExecution, error)
	UpdateExecution(ctx context.Context, execution *models.JobExecution) error
	TransitionExecution(ctx context.Context, id string, to models.ExecutionStatus, detail string) error
	LatestExecution(ctx context.Context, jobID string) (*models.JobExecution, error)
	ListExecutions(ctx context.Context, query Query) ([]*models.JobExecution, error)
	CountByStatus(ctx context.Context) (map[models.ExecutionStatus]int, error)
	// ResetStuck marks RUNNING executions not updated since the cutoff as
	// TIMEOUT and returns how many rows were swept.
	ResetStuck(ctx context.Context, cutoff time.Time) (int, error)
	// SweepOld soft-deletes terminal executions created before the cutoff.
	SweepOld(ctx context.Context, cutoff time.Time) (int, error)
}

// SplitStorage mirrors scene boundaries to the database. The on-disk
// splits.json remains authoritative within a single execution.
type SplitStorage interface {
	ReplaceSplits(ctx context.Context, jobID string, splits []models.JobSplit) error
	ListSplits(ctx context.Context, jobID string) ([]models.JobSplit, error)
}

// StorageManager aggregates the storage interfaces behind one connection.
type StorageManager interface {
	Users() UserStorage
	Catalog() CatalogStorage
	Jobs() JobStorage
	Executions() ExecutionStorage
	Splits() SplitStorage
	Ping(ctx context.Context) error
	Close() error
}
