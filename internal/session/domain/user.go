package domain

import "time"

// User is an account row as the session layer sees it. PasswordHash is a
// PHC-formatted argon2id string and never crosses the HTTP boundary.
type User struct {
	ID                string
	Email             string
	PasswordHash      string
	CredentialVersion int64
	Locked            bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
