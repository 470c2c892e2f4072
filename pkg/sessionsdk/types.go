package sessionsdk

import "time"

// TokenResponse is returned from login and refresh.
type TokenResponse struct {
	// AccessToken is the short-lived bearer token for API requests
	AccessToken string `json:"access_token"`

	// RefreshToken is the single-use token that rotates into the next pair
	RefreshToken string `json:"refresh_token"`

	// TokenType is always "Bearer"
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token
	ExpiresIn int `json:"expires_in"`
}

// SessionInfo describes one live session of the authenticated subject.
type SessionInfo struct {
	SID       string    `json:"sid"`
	IPHash    string    `json:"ip_hash,omitempty"`
	UAHash    string    `json:"ua_hash,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen,omitempty"`
	Current   bool      `json:"current"`
}

// UserInfo is the authenticated identity summary.
type UserInfo struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
}

// HealthResponse is returned by the livez and readyz probes.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports per-dependency readiness.
type HealthChecks struct {
	Database     string `json:"database"`
	SessionStore string `json:"session_store"`
}

// LoginRequest is the body of POST /v1/session/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest is the body of POST /v1/session/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ChangePasswordRequest is the body of POST /v1/session/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ResetRequest is the body of POST /v1/session/password/reset.
type ResetRequest struct {
	Email string `json:"email"`
}

// CompleteResetRequest is the body of PUT /v1/session/password/reset.
type CompleteResetRequest struct {
	ResetToken  string `json:"reset_token"`
	NewPassword string `json:"new_password"`
}
