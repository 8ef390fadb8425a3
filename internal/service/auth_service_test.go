package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alcyxob/fitness-sync/internal/remote"
	"alcyxob/fitness-sync/internal/repository"
)

const testSecret = "test-secret"

func TestAuthService_RegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	auth := NewAuthService(repository.NewUserRepository(remote.NewMemoryStore()), testSecret, time.Hour)

	user, err := auth.Register(ctx, "Sam", "sam@example.com", "correct-horse")
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
	assert.Empty(t, user.PasswordHash)

	_, err = auth.Register(ctx, "Sam again", "SAM@example.com", "another-pass")
	assert.ErrorIs(t, err, ErrUserAlreadyExists)

	token, got, err := auth.Login(ctx, "sam@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Empty(t, got.PasswordHash)

	claims := &jwtClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(auth.GetJWTSecret()), nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, user.ID, claims.UserID)

	_, _, err = auth.Login(ctx, "sam@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
	_, _, err = auth.Login(ctx, "nobody@example.com", "correct-horse")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	ctx := context.Background()
	auth := NewAuthService(repository.NewUserRepository(remote.NewMemoryStore()), testSecret, 0)

	tests := []struct {
		name, email, password string
	}{
		{"", "a@example.com", "long-enough"},
		{"A", "not-an-email", "long-enough"},
		{"A", "a@example.com", "short"},
	}
	for _, tt := range tests {
		_, err := auth.Register(ctx, tt.name, tt.email, tt.password)
		assert.ErrorIs(t, err, ErrInvalidInput, "%+v", tt)
	}

	_, _, err := auth.Login(ctx, " ", "long-enough")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNewAuthService_PanicsWithoutSecret(t *testing.T) {
	assert.Panics(t, func() {
		NewAuthService(repository.NewUserRepository(remote.NewMemoryStore()), "", time.Hour)
	})
}
