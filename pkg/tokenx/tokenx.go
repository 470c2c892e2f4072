// Package tokenx implements the signed bearer-token codec: a fixed claims
// structure serialized as an HS256 JWT, with a distinct signing secret per
// token kind so that compromise of one kind's secret cannot be used to
// forge another.
package tokenx

import (
	"errors"
	"fmt"
	"time"
)

// Kind is the class of a token. Each kind has its own signing secret and
// TTL policy.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
	KindReset   Kind = "reset"  // password reset, single use
	KindVerify  Kind = "verify" // email verification, single use
)

// Kinds lists every valid token kind.
var Kinds = []Kind{KindAccess, KindRefresh, KindReset, KindVerify}

// Valid reports whether k is a known token kind.
func (k Kind) Valid() bool {
	switch k {
	case KindAccess, KindRefresh, KindReset, KindVerify:
		return true
	}
	return false
}

func (k Kind) String() string { return string(k) }

const (
	// MinSecretLen is the minimum byte length accepted for a signing secret.
	MinSecretLen = 32

	// MaxLeeway caps the clock-skew allowance applied to nbf/iat checks.
	// exp is always enforced without leeway.
	MaxLeeway = 5 * time.Minute
)

var (
	// ErrMalformed covers every structural failure: bad signature, missing
	// mandatory claims, issuer/audience mismatch, undecodable input.
	ErrMalformed = errors.New("tokenx: malformed token")

	// ErrWrongKind is returned when a structurally sound token declares a
	// different kind than the endpoint expected.
	ErrWrongKind = errors.New("tokenx: unexpected token kind")

	// ErrExpired is returned once the current time reaches exp.
	ErrExpired = errors.New("tokenx: token expired")

	// ErrNotYetValid is returned when nbf (or iat) lies beyond the leeway
	// window in the future.
	ErrNotYetValid = errors.New("tokenx: token not yet valid")
)

// Secrets holds one HMAC signing secret per token kind.
type Secrets struct {
	Access  []byte
	Refresh []byte
	Reset   []byte
	Verify  []byte
}

// For returns the secret for the given kind, nil for unknown kinds.
func (s Secrets) For(kind Kind) []byte {
	switch kind {
	case KindAccess:
		return s.Access
	case KindRefresh:
		return s.Refresh
	case KindReset:
		return s.Reset
	case KindVerify:
		return s.Verify
	}
	return nil
}

// Validate ensures every kind has a secret of at least MinSecretLen bytes
// and that no two kinds share a secret.
func (s Secrets) Validate() error {
	seen := make(map[string]Kind, len(Kinds))
	for _, k := range Kinds {
		secret := s.For(k)
		if len(secret) < MinSecretLen {
			return fmt.Errorf("tokenx: %s secret must be at least %d bytes, got %d", k, MinSecretLen, len(secret))
		}
		if prev, ok := seen[string(secret)]; ok {
			return fmt.Errorf("tokenx: %s and %s share a signing secret", prev, k)
		}
		seen[string(secret)] = k
	}
	return nil
}
