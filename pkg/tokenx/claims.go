package tokenx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the fixed payload carried by every token this service signs.
// All registered timestamp claims are mandatory; Decode rejects tokens
// missing any of them.
type Claims struct {
	jwt.RegisteredClaims

	// Kind declares the token class. Verified against the endpoint's
	// expected kind and against the kind-specific signing secret.
	Kind Kind `json:"typ"`

	// SID is the session id shared by the access/refresh pair of one
	// login, preserved across rotations. Empty for reset/verify tokens.
	SID string `json:"sid,omitempty"`

	// CredentialVersion snapshots the subject's credential version at
	// issuance. A mismatch with the live value marks the token stale.
	CredentialVersion int64 `json:"cv"`

	// IPHash and UAHash optionally bind the token to the fingerprint of
	// the issuing client context. Raw values are never embedded.
	IPHash string `json:"ip,omitempty"`
	UAHash string `json:"ua,omitempty"`
}

// NewClaims builds a fully populated claims set with a fresh random jti
// (UUIDv4, 122 bits of entropy).
func NewClaims(
	subject string,
	kind Kind,
	sid string,
	credentialVersion int64,
	ttl time.Duration,
	issuer, audience string,
	ipHash, uaHash string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Kind:              kind,
		SID:               sid,
		CredentialVersion: credentialVersion,
		IPHash:            ipHash,
		UAHash:            uaHash,
	}
}

// TTL returns the remaining lifetime of the claims relative to now.
// Zero or negative means already expired.
func (c Claims) TTL(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Time.Sub(now)
}

// complete reports whether every mandatory claim is present.
func (c Claims) complete() bool {
	return c.Subject != "" &&
		c.Issuer != "" &&
		len(c.Audience) > 0 &&
		c.ID != "" &&
		c.IssuedAt != nil &&
		c.NotBefore != nil &&
		c.ExpiresAt != nil &&
		c.Kind.Valid()
}
