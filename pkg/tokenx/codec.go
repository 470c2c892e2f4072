package tokenx

import (
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Codec signs and verifies Claims. It is safe for concurrent use.
type Codec struct {
	secrets  Secrets
	issuer   string
	audience string
	leeway   time.Duration

	// Now is the clock used for expiry checks. Overridable in tests;
	// defaults to time.Now.
	Now func() time.Time
}

// NewCodec validates the secrets and returns a ready codec. Leeway applies
// to nbf/iat only and is capped at MaxLeeway; exp is always strict.
func NewCodec(secrets Secrets, issuer, audience string, leeway time.Duration) (*Codec, error) {
	if err := secrets.Validate(); err != nil {
		return nil, err
	}
	if issuer == "" || audience == "" {
		return nil, fmt.Errorf("tokenx: issuer and audience are required")
	}
	if leeway < 0 {
		leeway = 0
	}
	if leeway > MaxLeeway {
		leeway = MaxLeeway
	}
	return &Codec{
		secrets:  secrets,
		issuer:   issuer,
		audience: audience,
		leeway:   leeway,
		Now:      time.Now,
	}, nil
}

// Issuer returns the configured issuer claim value.
func (c *Codec) Issuer() string { return c.issuer }

// Audience returns the configured audience claim value.
func (c *Codec) Audience() string { return c.audience }

// NewClaims builds claims bound to this codec's issuer/audience.
func (c *Codec) NewClaims(
	subject string,
	kind Kind,
	sid string,
	credentialVersion int64,
	ttl time.Duration,
	ipHash, uaHash string,
) Claims {
	return NewClaims(subject, kind, sid, credentialVersion, ttl, c.issuer, c.audience, ipHash, uaHash, c.Now().UTC())
}

// Encode serializes and signs the claims with the secret for their kind.
// Failure here is a programmer error (unknown kind), not a runtime
// condition callers should branch on.
func (c *Codec) Encode(claims Claims) (string, error) {
	secret := c.secrets.For(claims.Kind)
	if secret == nil {
		return "", fmt.Errorf("tokenx: no secret for kind %q", claims.Kind)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("tokenx: sign: %w", err)
	}
	return signed, nil
}

// Decode parses raw, verifies it against the secret for the expected kind
// and returns the claims. Error kinds:
//
//   - ErrWrongKind   the token declares a different kind
//   - ErrMalformed   bad structure, bad signature, missing mandatory
//     claims, issuer/audience mismatch
//   - ErrExpired     now >= exp (no leeway on expiry)
//   - ErrNotYetValid nbf/iat beyond the leeway window in the future
func (c *Codec) Decode(raw string, expect Kind) (Claims, error) {
	if !expect.Valid() {
		return Claims{}, fmt.Errorf("tokenx: cannot decode for unknown kind %q", expect)
	}

	// Read the declared kind before signature verification so that a
	// token of the wrong class reports ErrWrongKind rather than a
	// signature failure. The claims are NOT trusted at this point.
	var peek Claims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &peek); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if peek.Kind != expect {
		return Claims{}, fmt.Errorf("%w: got %q, want %q", ErrWrongKind, peek.Kind, expect)
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(t *jwt.Token) (any, error) { return c.secrets.For(expect), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		// Timestamp validation is done below so exp stays strict while
		// nbf/iat get the configured leeway.
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if !claims.complete() {
		return Claims{}, fmt.Errorf("%w: missing mandatory claims", ErrMalformed)
	}
	if claims.Issuer != c.issuer {
		return Claims{}, fmt.Errorf("%w: issuer mismatch", ErrMalformed)
	}
	if !slices.Contains(claims.Audience, c.audience) {
		return Claims{}, fmt.Errorf("%w: audience mismatch", ErrMalformed)
	}

	now := c.Now().UTC()

	// Exactly at exp counts as expired.
	if !now.Before(claims.ExpiresAt.Time) {
		return Claims{}, ErrExpired
	}
	if now.Add(c.leeway).Before(claims.NotBefore.Time) {
		return Claims{}, ErrNotYetValid
	}
	if now.Add(c.leeway).Before(claims.IssuedAt.Time) {
		return Claims{}, fmt.Errorf("%w: issued in the future", ErrNotYetValid)
	}

	return claims, nil
}
