package auth_test

import (
	"context"
	"strings"
	"testing"

	"github.com/serroba/shortlinks/internal/auth"
	"github.com/serroba/shortlinks/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newService(t *testing.T) (*auth.Service, *store.UserMemoryStore) {
	t.Helper()

	repo := store.NewUserMemoryStore()

	svc, err := auth.NewService(repo, bcrypt.MinCost, zap.NewNop())
	require.NoError(t, err)

	return svc, repo
}

func TestService_Register(t *testing.T) {
	t.Run("stores a hashed password", func(t *testing.T) {
		svc, repo := newService(t)

		err := svc.Register(context.Background(), "a@example.com", "secret1")
		require.NoError(t, err)

		user, err := repo.GetByEmail(context.Background(), "a@example.com")
		require.NoError(t, err)
		assert.NotEmpty(t, user.ID)
		assert.NotEqual(t, "secret1", user.PasswordHash)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret1")))
	})

	t.Run("rejects duplicate email", func(t *testing.T) {
		svc, _ := newService(t)
		require.NoError(t, svc.Register(context.Background(), "a@example.com", "secret1"))

		err := svc.Register(context.Background(), " A@example.com ", "other12")

		assert.ErrorIs(t, err, auth.ErrUserExists)
	})

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "malformed email", email: "bad", password: "123456"},
		{name: "short password", email: "a@example.com", password: "123"},
		{name: "empty email", email: "", password: "123456"},
		{name: "password longer than 72 characters", email: "a@example.com", password: strings.Repeat("x", 80)},
		{name: "password longer than 72 bytes", email: "a@example.com", password: strings.Repeat("é", 40)},
	}

	for _, tt := range tests {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			svc, _ := newService(t)

			err := svc.Register(context.Background(), tt.email, tt.password)

			assert.ErrorIs(t, err, auth.ErrInvalidInput)
		})
	}
}

func TestService_Login(t *testing.T) {
	svc, _ := newService(t)
	require.NoError(t, svc.Register(context.Background(), "a@example.com", "secret1"))

	t.Run("returns public user on valid credentials", func(t *testing.T) {
		user, err := svc.Login(context.Background(), "a@example.com", "secret1")

		require.NoError(t, err)
		assert.NotEmpty(t, user.ID)
		assert.Equal(t, "a@example.com", user.Email)
	})

	t.Run("rejects wrong password", func(t *testing.T) {
		user, err := svc.Login(context.Background(), "a@example.com", "wrong!!")

		assert.Nil(t, user)
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("rejects unknown email with the same error", func(t *testing.T) {
		user, err := svc.Login(context.Background(), "nobody@example.com", "secret1")

		assert.Nil(t, user)
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})
}
