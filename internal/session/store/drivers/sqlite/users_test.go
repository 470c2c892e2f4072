package sqlite_test

import (
	"context"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"

	"github.com/quorumhq/sessiond/internal/session/domain"
	"github.com/quorumhq/sessiond/internal/session/store"
	"github.com/quorumhq/sessiond/internal/session/store/drivers/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newUser(email string) domain.User {
	return domain.User{
		ID:           ulid.Make().String(),
		Email:        email,
		PasswordHash: "$argon2id$fake$" + email,
	}
}

func TestCreateAndGetUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := newUser("alice@example.com")
	require.NoError(t, s.Users().CreateUser(ctx, u))

	byID, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u.Email, byID.Email)
	require.EqualValues(t, 1, byID.CredentialVersion)
	require.False(t, byID.Locked)
	require.False(t, byID.CreatedAt.IsZero())

	byEmail, err := s.Users().GetUserByEmail(ctx, u.Email)
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)

	_, err = s.Users().GetUserByID(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Users().CreateUser(ctx, newUser("bob@example.com")))
	err := s.Users().CreateUser(ctx, newUser("bob@example.com"))
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestUpdatePasswordBumpsVersionAndArchives(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := newUser("carol@example.com")
	require.NoError(t, s.Users().CreateUser(ctx, u))

	v, err := s.Users().UpdatePassword(ctx, u.ID, "hash-2")
	require.NoError(t, err)
	require.EqualValues(t, 2, v)

	v, err = s.Users().UpdatePassword(ctx, u.ID, "hash-3")
	require.NoError(t, err)
	require.EqualValues(t, 3, v)

	live, err := s.Users().CredentialVersion(ctx, u.ID)
	require.NoError(t, err)
	require.EqualValues(t, 3, live)

	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "hash-3", got.PasswordHash)

	history, err := s.Users().PasswordHistory(ctx, u.ID, 5)
	require.NoError(t, err)
	require.Equal(t, []string{"hash-2", u.PasswordHash}, history, "newest first")

	history, err = s.Users().PasswordHistory(ctx, u.ID, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)

	_, err = s.Users().UpdatePassword(ctx, "missing", "hash")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSetLocked(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := newUser("dave@example.com")
	require.NoError(t, s.Users().CreateUser(ctx, u))

	require.NoError(t, s.Users().SetLocked(ctx, u.ID, true))
	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, got.Locked)

	require.NoError(t, s.Users().SetLocked(ctx, u.ID, false))
	got, err = s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, got.Locked)

	require.ErrorIs(t, s.Users().SetLocked(ctx, "missing", true), store.ErrNotFound)
}
