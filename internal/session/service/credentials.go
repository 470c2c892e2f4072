package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/quorumhq/sessiond/internal/session/domain"
	"github.com/quorumhq/sessiond/internal/session/store"
	"github.com/quorumhq/sessiond/pkg/cryptox"
	"github.com/quorumhq/sessiond/pkg/idx"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrAccountLocked      = errors.New("account_locked")
	ErrPasswordReused     = errors.New("password_recently_used")
	ErrWeakPassword       = errors.New("password_too_short")
)

const (
	// MinPasswordLen is the minimum accepted password length.
	MinPasswordLen = 12

	// PasswordHistoryDepth is how many previous hashes a new password is
	// checked against.
	PasswordHistoryDepth = 5
)

// CredentialService owns account credentials: password verification,
// registration, changes and resets. Every accepted change bumps the
// account's credential version, which stales all previously issued tokens.
type CredentialService struct {
	Store store.UserStore
}

// VerifyPassword authenticates an email/password pair and returns the user.
// A missing account and a wrong password are indistinguishable to callers.
func (s *CredentialService) VerifyPassword(ctx context.Context, email, password string) (domain.User, error) {
	email = normalizeEmail(email)

	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn the same work as a real verification so response timing
			// does not reveal whether the account exists.
			_ = cryptox.VerifyPassword(password, decoyHash())
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}

	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}

	if u.Locked {
		return domain.User{}, ErrAccountLocked
	}
	return u, nil
}

// CredentialVersion returns the live credential version for the subject.
func (s *CredentialService) CredentialVersion(ctx context.Context, subject string) (int64, error) {
	return s.Store.Users().CredentialVersion(ctx, subject)
}

// GetUser returns the account for the subject.
func (s *CredentialService) GetUser(ctx context.Context, subject string) (domain.User, error) {
	return s.Store.Users().GetUserByID(ctx, subject)
}

// FindUserByEmail returns the account for an email address.
func (s *CredentialService) FindUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return s.Store.Users().GetUserByEmail(ctx, normalizeEmail(email))
}

// Register creates a new account.
func (s *CredentialService) Register(ctx context.Context, email, password string) (domain.User, error) {
	if len(password) < MinPasswordLen {
		return domain.User{}, ErrWeakPassword
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.User{}, err
	}

	u := domain.User{
		ID:                idx.New().String(),
		Email:             normalizeEmail(email),
		PasswordHash:      hash,
		CredentialVersion: 1,
	}
	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// ChangePassword verifies the current password, rejects recently used ones
// and installs the new hash. Returns the new credential version; the caller
// is responsible for invalidating live sessions.
func (s *CredentialService) ChangePassword(ctx context.Context, subject, current, next string) (int64, error) {
	u, err := s.Store.Users().GetUserByID(ctx, subject)
	if err != nil {
		return 0, err
	}
	if u.Locked {
		return 0, ErrAccountLocked
	}

	if err := cryptox.VerifyPassword(current, u.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return 0, ErrInvalidCredentials
		}
		return 0, err
	}

	return s.installPassword(ctx, u, next)
}

// ResetPassword installs a new password without the current one. The caller
// must have consumed a reset token for the subject first.
func (s *CredentialService) ResetPassword(ctx context.Context, subject, next string) (int64, error) {
	u, err := s.Store.Users().GetUserByID(ctx, subject)
	if err != nil {
		return 0, err
	}
	return s.installPassword(ctx, u, next)
}

func (s *CredentialService) installPassword(ctx context.Context, u domain.User, next string) (int64, error) {
	if len(next) < MinPasswordLen {
		return 0, ErrWeakPassword
	}

	// The new password may not match the current one or any recent one.
	if cryptox.VerifyPassword(next, u.PasswordHash) == nil {
		return 0, ErrPasswordReused
	}
	history, err := s.Store.Users().PasswordHistory(ctx, u.ID, PasswordHistoryDepth)
	if err != nil {
		return 0, err
	}
	for _, old := range history {
		if cryptox.VerifyPassword(next, old) == nil {
			return 0, ErrPasswordReused
		}
	}

	hash, err := cryptox.HashPassword(next)
	if err != nil {
		return 0, err
	}
	return s.Store.Users().UpdatePassword(ctx, u.ID, hash)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// decoyHash is verified against when the account does not exist, so both
// branches of VerifyPassword cost one argon2id run. Computed on first use,
// after the pepper path has been configured.
var decoyHash = sync.OnceValue(func() string {
	return cryptox.MustHashPassword("decoy-password-for-constant-time")
})
