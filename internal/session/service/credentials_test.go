package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quorumhq/sessiond/internal/session/service"
	"github.com/quorumhq/sessiond/internal/session/store"
	"github.com/quorumhq/sessiond/internal/session/store/drivers/sqlite"
)

func newCredentials(t *testing.T) *service.CredentialService {
	t.Helper()

	users, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, users.ApplyMigrations())
	t.Cleanup(func() { _ = users.Close() })

	return &service.CredentialService{Store: users}
}

func TestRegisterAndVerify(t *testing.T) {
	s := newCredentials(t)
	ctx := context.Background()

	u, err := s.Register(ctx, "  Alice@Example.COM ", testPassword)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", u.Email, "emails are normalized")
	require.EqualValues(t, 1, u.CredentialVersion)

	got, err := s.VerifyPassword(ctx, "alice@example.com", testPassword)
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	_, err = s.VerifyPassword(ctx, "alice@example.com", "wrong-password-here")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	// Unknown account and wrong password look the same.
	_, err = s.VerifyPassword(ctx, "nobody@example.com", testPassword)
	require.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	s := newCredentials(t)

	_, err := s.Register(context.Background(), "bob@example.com", "short")
	require.ErrorIs(t, err, service.ErrWeakPassword)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	s := newCredentials(t)
	ctx := context.Background()

	_, err := s.Register(ctx, "bob@example.com", testPassword)
	require.NoError(t, err)
	_, err = s.Register(ctx, "BOB@example.com", testPassword)
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestLockedAccountCannotAuthenticate(t *testing.T) {
	s := newCredentials(t)
	ctx := context.Background()

	u, err := s.Register(ctx, "carol@example.com", testPassword)
	require.NoError(t, err)
	require.NoError(t, s.Store.Users().SetLocked(ctx, u.ID, true))

	_, err = s.VerifyPassword(ctx, "carol@example.com", testPassword)
	require.ErrorIs(t, err, service.ErrAccountLocked)

	_, err = s.ChangePassword(ctx, u.ID, testPassword, "another-long-password")
	require.ErrorIs(t, err, service.ErrAccountLocked)
}

func TestChangePassword(t *testing.T) {
	s := newCredentials(t)
	ctx := context.Background()

	u, err := s.Register(ctx, "dave@example.com", testPassword)
	require.NoError(t, err)

	t.Run("wrong current password", func(t *testing.T) {
		_, err := s.ChangePassword(ctx, u.ID, "not-the-password", "another-long-password")
		require.ErrorIs(t, err, service.ErrInvalidCredentials)
	})

	t.Run("same as current", func(t *testing.T) {
		_, err := s.ChangePassword(ctx, u.ID, testPassword, testPassword)
		require.ErrorIs(t, err, service.ErrPasswordReused)
	})

	t.Run("too short", func(t *testing.T) {
		_, err := s.ChangePassword(ctx, u.ID, testPassword, "tiny")
		require.ErrorIs(t, err, service.ErrWeakPassword)
	})

	t.Run("success bumps version", func(t *testing.T) {
		v, err := s.ChangePassword(ctx, u.ID, testPassword, "second-long-password")
		require.NoError(t, err)
		require.EqualValues(t, 2, v)

		_, err = s.VerifyPassword(ctx, "dave@example.com", "second-long-password")
		require.NoError(t, err)
		_, err = s.VerifyPassword(ctx, "dave@example.com", testPassword)
		require.ErrorIs(t, err, service.ErrInvalidCredentials)
	})

	t.Run("recently used password rejected", func(t *testing.T) {
		_, err := s.ChangePassword(ctx, u.ID, "second-long-password", testPassword)
		require.ErrorIs(t, err, service.ErrPasswordReused)
	})
}

func TestResetPassword(t *testing.T) {
	s := newCredentials(t)
	ctx := context.Background()

	u, err := s.Register(ctx, "erin@example.com", testPassword)
	require.NoError(t, err)

	// No current password required, history still enforced.
	_, err = s.ResetPassword(ctx, u.ID, testPassword)
	require.ErrorIs(t, err, service.ErrPasswordReused)

	v, err := s.ResetPassword(ctx, u.ID, "reset-long-password")
	require.NoError(t, err)
	require.EqualValues(t, 2, v)

	_, err = s.VerifyPassword(ctx, "erin@example.com", "reset-long-password")
	require.NoError(t, err)
}
