package domain

import (
	"time"

	"github.com/quorumhq/sessiond/pkg/tokenx"
)

// TokenPair is the access/refresh pair handed out on login and on every
// successful rotation.
type TokenPair struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type"`
	ExpiresIn    time.Duration `json:"expires_in"`
}

// SessionMeta is the per-token record kept in the session store. An entry's
// presence is what makes a token live; the metadata rides along for
// introspection and targeted invalidation.
type SessionMeta struct {
	JTI       string      `json:"jti"`
	Kind      tokenx.Kind `json:"kind"`
	SID       string      `json:"sid"`
	IPHash    string      `json:"ip_hash,omitempty"`
	UAHash    string      `json:"ua_hash,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	LastSeen  time.Time   `json:"last_seen,omitempty"`
}

// RequestContext carries fingerprints of the calling client. Raw IP and
// user agent values never leave the HTTP layer.
type RequestContext struct {
	IPHash string
	UAHash string
}
