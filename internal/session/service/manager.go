package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/quorumhq/sessiond/internal/session/domain"
	"github.com/quorumhq/sessiond/internal/session/store"
	"github.com/quorumhq/sessiond/pkg/idx"
	"github.com/quorumhq/sessiond/pkg/slogx"
	"github.com/quorumhq/sessiond/pkg/tokenx"
)

var (
	ErrStaleToken      = errors.New("stale_token")
	ErrRevokedToken    = errors.New("revoked_or_unknown_token")
	ErrContextMismatch = errors.New("context_mismatch")
	ErrReuseDetected   = errors.New("refresh_reuse_detected")
)

// CredentialVersioner exposes the live credential version for a subject.
// Satisfied by CredentialService.
type CredentialVersioner interface {
	CredentialVersion(ctx context.Context, subject string) (int64, error)
}

// Manager issues, validates, rotates and invalidates tokens. A token is
// accepted only when its signature verifies, its credential version matches
// the live one, and its jti is still present in the session store: absence
// means not-valid, so a store outage fails closed.
type Manager struct {
	Codec       *tokenx.Codec
	Sessions    store.SessionStore
	Credentials CredentialVersioner

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ResetTTL   time.Duration
	VerifyTTL  time.Duration

	// BindContext enforces the IP/UA fingerprints embedded at issuance.
	BindContext bool

	// RotateGrace keeps a record of each consumed refresh token for this
	// long, so a duplicate rotation from a request retry is answered with
	// the already-minted pair instead of tripping reuse detection. Zero
	// disables the window.
	RotateGrace time.Duration
}

func (m *Manager) now() time.Time { return m.Codec.Now().UTC() }

// Issue mints a fresh access/refresh pair for the subject and records both
// in the session store under a new session id.
func (m *Manager) Issue(ctx context.Context, subject string, credentialVersion int64, rc domain.RequestContext) (domain.TokenPair, error) {
	sid := idx.New().String()
	now := m.now()

	accessClaims := m.Codec.NewClaims(subject, tokenx.KindAccess, sid, credentialVersion, m.AccessTTL, rc.IPHash, rc.UAHash)
	refreshClaims := m.Codec.NewClaims(subject, tokenx.KindRefresh, sid, credentialVersion, m.RefreshTTL, rc.IPHash, rc.UAHash)

	accessRaw, err := m.Codec.Encode(accessClaims)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refreshRaw, err := m.Codec.Encode(refreshClaims)
	if err != nil {
		return domain.TokenPair{}, err
	}

	if err := m.Sessions.Put(ctx, subject, tokenx.KindRefresh, m.meta(refreshClaims, now), m.RefreshTTL); err != nil {
		return domain.TokenPair{}, err
	}
	if err := m.Sessions.Put(ctx, subject, tokenx.KindAccess, m.meta(accessClaims, now), m.AccessTTL); err != nil {
		// Don't leave a live refresh token behind a half-failed login.
		_, _ = m.Sessions.Delete(ctx, subject, tokenx.KindRefresh, refreshClaims.ID)
		return domain.TokenPair{}, err
	}

	slogx.FromContext(ctx).Info("session issued",
		slog.String("subject", subject),
		slog.String("sid", sid),
	)

	return domain.TokenPair{
		AccessToken:  accessRaw,
		RefreshToken: refreshRaw,
		TokenType:    "Bearer",
		ExpiresIn:    m.AccessTTL,
	}, nil
}

func (m *Manager) meta(claims tokenx.Claims, now time.Time) domain.SessionMeta {
	return domain.SessionMeta{
		JTI:       claims.ID,
		Kind:      claims.Kind,
		SID:       claims.SID,
		IPHash:    claims.IPHash,
		UAHash:    claims.UAHash,
		CreatedAt: now,
	}
}

// Validate runs the full acceptance check for a token of the expected kind
// and returns its claims.
func (m *Manager) Validate(ctx context.Context, raw string, kind tokenx.Kind, rc domain.RequestContext) (tokenx.Claims, error) {
	claims, err := m.Codec.Decode(raw, kind)
	if err != nil {
		return tokenx.Claims{}, err
	}

	live, err := m.Credentials.CredentialVersion(ctx, claims.Subject)
	if err != nil {
		slogx.Audit(ctx, "token_rejected",
			slog.String("reason", "credential_lookup_failed"),
			slog.String("subject", claims.Subject),
			slog.String("error", err.Error()),
		)
		return tokenx.Claims{}, ErrRevokedToken
	}
	if live != claims.CredentialVersion {
		return tokenx.Claims{}, ErrStaleToken
	}

	ok, err := m.Sessions.Contains(ctx, claims.Subject, kind, claims.ID)
	if err != nil {
		// Fail closed. Callers see a revoked token; the real cause stays
		// visible in the audit log.
		slogx.Audit(ctx, "token_rejected",
			slog.String("reason", "session_store_unavailable"),
			slog.String("subject", claims.Subject),
			slog.String("error", err.Error()),
		)
		return tokenx.Claims{}, ErrRevokedToken
	}
	if !ok {
		return tokenx.Claims{}, ErrRevokedToken
	}

	if err := m.checkBinding(ctx, claims, rc); err != nil {
		return tokenx.Claims{}, err
	}

	// Best effort; a failed touch never rejects a valid token.
	_ = m.Sessions.Touch(ctx, claims.Subject, kind, claims.ID, m.now())

	return claims, nil
}

func (m *Manager) checkBinding(ctx context.Context, claims tokenx.Claims, rc domain.RequestContext) error {
	if !m.BindContext {
		return nil
	}
	if (claims.IPHash != "" && claims.IPHash != rc.IPHash) ||
		(claims.UAHash != "" && claims.UAHash != rc.UAHash) {
		slogx.Audit(ctx, "token_rejected",
			slog.String("reason", "context_mismatch"),
			slog.String("subject", claims.Subject),
			slog.String("sid", claims.SID),
		)
		return ErrContextMismatch
	}
	return nil
}

// ValidateAccess validates an access token and returns its subject. This is
// the shape the HTTP authentication middleware consumes.
func (m *Manager) ValidateAccess(ctx context.Context, raw, ipHash, uaHash string) (string, error) {
	claims, err := m.Validate(ctx, raw, tokenx.KindAccess, domain.RequestContext{IPHash: ipHash, UAHash: uaHash})
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Rotate consumes a refresh token and returns a replacement pair under the
// same session id. A refresh token rotates exactly once: presenting an
// already-consumed one (outside the grace window) is treated as theft
// evidence and invalidates every session of the subject.
func (m *Manager) Rotate(ctx context.Context, raw string, rc domain.RequestContext) (domain.TokenPair, error) {
	claims, err := m.Codec.Decode(raw, tokenx.KindRefresh)
	if err != nil {
		return domain.TokenPair{}, err
	}
	subject := claims.Subject

	live, err := m.Credentials.CredentialVersion(ctx, subject)
	if err != nil {
		slogx.Audit(ctx, "rotation_rejected",
			slog.String("reason", "credential_lookup_failed"),
			slog.String("subject", subject),
			slog.String("error", err.Error()),
		)
		return domain.TokenPair{}, ErrRevokedToken
	}
	if live != claims.CredentialVersion {
		return domain.TokenPair{}, ErrStaleToken
	}

	if err := m.checkBinding(ctx, claims, rc); err != nil {
		return domain.TokenPair{}, err
	}

	sid := claims.SID
	if sid == "" {
		sid = idx.New().String()
	}
	now := m.now()

	accessClaims := m.Codec.NewClaims(subject, tokenx.KindAccess, sid, live, m.AccessTTL, rc.IPHash, rc.UAHash)
	refreshClaims := m.Codec.NewClaims(subject, tokenx.KindRefresh, sid, live, m.RefreshTTL, rc.IPHash, rc.UAHash)

	accessRaw, err := m.Codec.Encode(accessClaims)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refreshRaw, err := m.Codec.Encode(refreshClaims)
	if err != nil {
		return domain.TokenPair{}, err
	}

	pair := domain.TokenPair{
		AccessToken:  accessRaw,
		RefreshToken: refreshRaw,
		TokenType:    "Bearer",
		ExpiresIn:    m.AccessTTL,
	}

	var grace *store.GracePair
	if m.RotateGrace > 0 {
		grace = &store.GracePair{Pair: pair, TTL: m.RotateGrace}
	}

	consumed, err := m.Sessions.ConsumeAndReplace(ctx, subject, claims.ID,
		store.Entry{JTI: accessClaims.ID, Meta: m.meta(accessClaims, now), TTL: m.AccessTTL},
		store.Entry{JTI: refreshClaims.ID, Meta: m.meta(refreshClaims, now), TTL: m.RefreshTTL},
		grace,
	)
	if err != nil {
		slogx.Audit(ctx, "rotation_rejected",
			slog.String("reason", "session_store_unavailable"),
			slog.String("subject", subject),
			slog.String("error", err.Error()),
		)
		return domain.TokenPair{}, ErrRevokedToken
	}

	if !consumed {
		if m.RotateGrace > 0 {
			if prev, err := m.Sessions.ReplacementFor(ctx, subject, claims.ID); err == nil {
				return prev, nil
			}
		}

		// The token was valid in every other respect but its entry is gone:
		// someone already spent it. Assume theft and cut every session.
		slogx.Audit(ctx, "refresh_reuse_detected",
			slog.String("subject", subject),
			slog.String("sid", sid),
			slog.String("jti", claims.ID),
		)
		if err := m.Sessions.DeleteAll(ctx, subject); err != nil {
			slogx.Audit(ctx, "reuse_cascade_failed",
				slog.String("subject", subject),
				slog.String("error", err.Error()),
			)
		}
		return domain.TokenPair{}, ErrReuseDetected
	}

	slogx.FromContext(ctx).Info("session rotated",
		slog.String("subject", subject),
		slog.String("sid", sid),
	)
	return pair, nil
}

// Logout validates the access token and removes the whole session it
// belongs to, refresh token included. Other sessions of the same subject
// stay live.
func (m *Manager) Logout(ctx context.Context, raw string, rc domain.RequestContext) error {
	claims, err := m.Validate(ctx, raw, tokenx.KindAccess, rc)
	if err != nil {
		return err
	}

	if claims.SID != "" {
		if err := m.Sessions.DeleteSession(ctx, claims.Subject, claims.SID); err != nil {
			return err
		}
	} else if _, err := m.Sessions.Delete(ctx, claims.Subject, tokenx.KindAccess, claims.ID); err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("session ended",
		slog.String("subject", claims.Subject),
		slog.String("sid", claims.SID),
	)
	return nil
}

// Invalidate removes every live token of the given kinds for the subject.
func (m *Manager) Invalidate(ctx context.Context, subject string, kinds ...tokenx.Kind) error {
	for _, kind := range kinds {
		if err := m.Sessions.DeleteKind(ctx, subject, kind); err != nil {
			return err
		}
	}
	return nil
}

// InvalidateAll removes every live token of the subject across all kinds.
// Used after password changes and on reuse detection.
func (m *Manager) InvalidateAll(ctx context.Context, subject string) error {
	if err := m.Sessions.DeleteAll(ctx, subject); err != nil {
		return err
	}
	slogx.Audit(ctx, "sessions_invalidated",
		slog.String("subject", subject),
		slog.String("scope", "all"),
	)
	return nil
}

// ListSessions returns the live session entries for the subject.
func (m *Manager) ListSessions(ctx context.Context, subject string) ([]domain.SessionMeta, error) {
	return m.Sessions.List(ctx, subject)
}

// IssueReset mints a single-use password reset token for the subject.
func (m *Manager) IssueReset(ctx context.Context, subject string) (string, error) {
	return m.issueSingleUse(ctx, subject, tokenx.KindReset, m.ResetTTL)
}

// ConsumeReset validates and spends a reset token, returning its subject.
// A second consume of the same token fails.
func (m *Manager) ConsumeReset(ctx context.Context, raw string) (string, error) {
	return m.consumeSingleUse(ctx, raw, tokenx.KindReset)
}

// IssueVerification mints a single-use email verification token.
func (m *Manager) IssueVerification(ctx context.Context, subject string) (string, error) {
	return m.issueSingleUse(ctx, subject, tokenx.KindVerify, m.VerifyTTL)
}

// ConsumeVerification validates and spends a verification token.
func (m *Manager) ConsumeVerification(ctx context.Context, raw string) (string, error) {
	return m.consumeSingleUse(ctx, raw, tokenx.KindVerify)
}

func (m *Manager) issueSingleUse(ctx context.Context, subject string, kind tokenx.Kind, ttl time.Duration) (string, error) {
	live, err := m.Credentials.CredentialVersion(ctx, subject)
	if err != nil {
		return "", err
	}

	claims := m.Codec.NewClaims(subject, kind, "", live, ttl, "", "")
	raw, err := m.Codec.Encode(claims)
	if err != nil {
		return "", err
	}
	if err := m.Sessions.Put(ctx, subject, kind, m.meta(claims, m.now()), ttl); err != nil {
		return "", err
	}
	return raw, nil
}

func (m *Manager) consumeSingleUse(ctx context.Context, raw string, kind tokenx.Kind) (string, error) {
	claims, err := m.Codec.Decode(raw, kind)
	if err != nil {
		return "", err
	}

	live, err := m.Credentials.CredentialVersion(ctx, claims.Subject)
	if err != nil {
		slogx.Audit(ctx, "token_rejected",
			slog.String("reason", "credential_lookup_failed"),
			slog.String("subject", claims.Subject),
			slog.String("error", err.Error()),
		)
		return "", ErrRevokedToken
	}
	if live != claims.CredentialVersion {
		return "", ErrStaleToken
	}

	// Delete doubles as the single-use check: only the caller that removes
	// the entry gets to act on the token.
	existed, err := m.Sessions.Delete(ctx, claims.Subject, kind, claims.ID)
	if err != nil {
		slogx.Audit(ctx, "token_rejected",
			slog.String("reason", "session_store_unavailable"),
			slog.String("subject", claims.Subject),
			slog.String("error", err.Error()),
		)
		return "", ErrRevokedToken
	}
	if !existed {
		return "", ErrRevokedToken
	}
	return claims.Subject, nil
}
