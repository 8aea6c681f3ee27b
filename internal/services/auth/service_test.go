package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/vidsmith/internal/common"
	"github.com/ternarybob/vidsmith/internal/storage/sqlite"
)

func setupAuthService(t *testing.T) *Service {
	t.Helper()

	manager, err := sqlite.NewManager(common.GetLogger(), &common.DatabaseConfig{
		Path:          filepath.Join(t.TempDir(), "test.db"),
		BusyTimeoutMS: 5000,
		CacheSizeMB:   16,
	})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	config := common.NewDefaultConfig()
	config.Auth.JWTSecret = "0123456789abcdef0123456789abcdef"
	config.Auth.TokenTTL = "1h"

	return NewService(common.GetLogger(), config, manager.Users())
}

func TestAuth_RegisterAndLogin(t *testing.T) {
	service := setupAuthService(t)
	ctx := context.Background()

	user, err := service.Register(ctx, "alice", "correcthorse")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.NotEqual(t, "correcthorse", user.PasswordHash)

	token, loggedIn, err := service.Login(ctx, "alice", "correcthorse")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, user.ID, loggedIn.ID)

	userID, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
}

func TestAuth_WrongPassword(t *testing.T) {
	service := setupAuthService(t)
	ctx := context.Background()

	_, err := service.Register(ctx, "bob", "correcthorse")
	require.NoError(t, err)

	_, _, err = service.Login(ctx, "bob", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown user yields the same error
	_, _, err = service.Login(ctx, "nobody", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuth_ShortPasswordRejected(t *testing.T) {
	service := setupAuthService(t)

	_, err := service.Register(context.Background(), "carol", "short")
	require.Error(t, err)
}

func TestAuth_ExpiredToken(t *testing.T) {
	service := setupAuthService(t)
	service.tokenTTL = -time.Minute

	user, err := service.Register(context.Background(), "dave", "correcthorse")
	require.NoError(t, err)

	token, err := service.IssueToken(user)
	require.NoError(t, err)

	_, err = service.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuth_GarbageToken(t *testing.T) {
	service := setupAuthService(t)

	_, err := service.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
