package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vidsmith/internal/models"
)

// UserStorage persists identity principals.
type UserStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

func NewUserStorage(db *SQLiteDB, logger arbor.ILogger) *UserStorage {
	return &UserStorage{db: db, logger: logger}
}

func (s *UserStorage) CreateUser(ctx context.Context, user *models.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	_, err := s.db.DB().ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, created_at, last_login)
		VALUES (?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.PasswordHash, user.CreatedAt.Unix(), unixOrNil(user.LastLogin))
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *UserStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, "id = ?", id)
}

func (s *UserStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, "username = ?", username)
}

func (s *UserStorage) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	row := s.db.DB().QueryRowContext(ctx,
		"SELECT id, username, password_hash, created_at, last_login FROM users WHERE "+where, arg)

	var (
		user      models.User
		createdAt int64
		lastLogin sql.NullInt64
	)
	if err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &createdAt, &lastLogin); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user %v: %w", arg, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.CreatedAt = time.Unix(createdAt, 0)
	user.LastLogin = timeFromNull(lastLogin)
	return &user, nil
}

func (s *UserStorage) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.DB().ExecContext(ctx,
		"UPDATE users SET last_login = ? WHERE id = ?", at.Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return nil
}
