// Package store defines the persistence interfaces the session service is
// written against, plus the sentinel errors drivers translate their native
// failures into.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/quorumhq/sessiond/internal/session/domain"
	"github.com/quorumhq/sessiond/pkg/tokenx"
)

var (
	// ErrNotFound means the requested entry does not exist (or has expired).
	ErrNotFound = errors.New("store: not found")

	// ErrAlreadyExists means a uniqueness constraint was violated.
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrUnavailable means the backing store could not be reached or answered
	// with a transport-level failure. Callers treat it as fail-closed.
	ErrUnavailable = errors.New("store: unavailable")
)

// Entry is a token record plus the TTL it should live for, used when
// writing new entries.
type Entry struct {
	JTI  string
	Meta domain.SessionMeta
	TTL  time.Duration
}

// GracePair asks the store to remember the replacement pair for a consumed
// refresh token, so a near-simultaneous duplicate rotation can be answered
// with the same pair instead of tripping reuse detection.
type GracePair struct {
	Pair domain.TokenPair
	TTL  time.Duration
}

// SessionStore tracks which token IDs are live per subject. Every entry
// carries a TTL equal to its token's remaining lifetime, so the store
// self-cleans and absence means not-valid.
type SessionStore interface {
	// Put records a live token.
	Put(ctx context.Context, subject string, kind tokenx.Kind, meta domain.SessionMeta, ttl time.Duration) error

	// Contains reports whether the token is still live.
	Contains(ctx context.Context, subject string, kind tokenx.Kind, jti string) (bool, error)

	// Meta returns the record for a live token, ErrNotFound otherwise.
	Meta(ctx context.Context, subject string, kind tokenx.Kind, jti string) (domain.SessionMeta, error)

	// Touch updates LastSeen on a live entry without changing its TTL.
	// A missing entry is not an error.
	Touch(ctx context.Context, subject string, kind tokenx.Kind, jti string, at time.Time) error

	// Delete removes one entry and reports whether it existed. The boolean
	// is what makes single-use tokens single-use.
	Delete(ctx context.Context, subject string, kind tokenx.Kind, jti string) (bool, error)

	// DeleteSession removes every entry belonging to one session id.
	DeleteSession(ctx context.Context, subject, sid string) error

	// DeleteKind removes every entry of one kind for the subject.
	DeleteKind(ctx context.Context, subject string, kind tokenx.Kind) error

	// DeleteAll removes every entry for the subject, all kinds.
	DeleteAll(ctx context.Context, subject string) error

	// List returns every live entry for the subject.
	List(ctx context.Context, subject string) ([]domain.SessionMeta, error)

	// ConsumeAndReplace atomically deletes the refresh entry oldJTI and, if
	// it existed, writes the replacement access+refresh entries (and the
	// optional grace record) in the same step. Returns false without
	// writing anything when oldJTI was already gone.
	ConsumeAndReplace(ctx context.Context, subject, oldJTI string, access, refresh Entry, grace *GracePair) (bool, error)

	// ReplacementFor returns the pair minted when retiredJTI was consumed,
	// if a grace record is still live. ErrNotFound otherwise.
	ReplacementFor(ctx context.Context, subject, retiredJTI string) (domain.TokenPair, error)

	Ping(ctx context.Context) error
	Close() error
}

// Users is the account repository.
type Users interface {
	CreateUser(ctx context.Context, u domain.User) error
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CredentialVersion returns the live credential version for the user.
	CredentialVersion(ctx context.Context, id string) (int64, error)

	// UpdatePassword atomically archives the current hash, installs the new
	// one and bumps the credential version. Returns the new version.
	UpdatePassword(ctx context.Context, id, newHash string) (int64, error)

	// PasswordHistory returns up to limit archived hashes, newest first.
	PasswordHistory(ctx context.Context, id string, limit int) ([]string, error)

	SetLocked(ctx context.Context, id string, locked bool) error
}

// UserStore bundles the account repository with its lifecycle.
type UserStore interface {
	Users() Users
	ApplyMigrations() error
	Ping(ctx context.Context) error
	Close() error
}
