package sessionsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/quorumhq/sessiond/pkg/httpx"
)

// Error codes returned by the session API. Bodies are deliberately generic:
// the specific rejection reason stays in the server's audit log.
const (
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeInvalidCredentials = "invalid_credentials"
	ErrorCodeAccountLocked      = "account_locked"
	ErrorCodeInvalidSession     = "invalid_session"
	ErrorCodeSessionRejected    = "session_rejected"
	ErrorCodePasswordReused     = "password_recently_used"
	ErrorCodeWeakPassword       = "weak_password"
	ErrorCodeRateLimited        = "rate_limit_exceeded"
	ErrorCodeServerError        = "server_error"
)

// APIError is the session API's error envelope. It implements the error
// interface and is used by both the server (to write responses) and the SDK
// (to represent failures).
type APIError struct {
	// StatusCode is the HTTP status code for this error
	StatusCode int `json:"-"`

	// Code is the machine-readable error code
	Code string `json:"error"`

	// Description is a human-readable description of the error
	Description string `json:"error_description"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError writes this APIError to an HTTP response writer.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.WriteJSON(w, e.StatusCode, map[string]string{
		"error":             e.Code,
		"error_description": e.Description,
	})
}

// Predefined API errors.
var (
	// ErrInvalidRequest covers malformed bodies and missing parameters.
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	// ErrInvalidCredentials is returned when login fails. Unknown account
	// and wrong password produce this same response.
	ErrInvalidCredentials = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidCredentials,
		Description: "invalid credentials",
	}

	// ErrAccountLocked is returned when the account cannot authenticate.
	ErrAccountLocked = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeAccountLocked,
		Description: "account is locked",
	}

	// ErrInvalidSession is returned for tokens that fail structural checks.
	ErrInvalidSession = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidSession,
		Description: "the session token is missing, malformed or of the wrong type",
	}

	// ErrSessionRejected is returned for well-formed tokens the server
	// refuses: expired, revoked, stale or replayed.
	ErrSessionRejected = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeSessionRejected,
		Description: "the session is no longer valid",
	}

	// ErrPasswordReused is returned when a new password matches a recent one.
	ErrPasswordReused = &APIError{
		StatusCode:  http.StatusUnprocessableEntity,
		Code:        ErrorCodePasswordReused,
		Description: "the new password was recently used",
	}

	// ErrWeakPassword is returned when a new password fails policy checks.
	ErrWeakPassword = &APIError{
		StatusCode:  http.StatusUnprocessableEntity,
		Code:        ErrorCodeWeakPassword,
		Description: "the new password does not meet the password policy",
	}

	// ErrServerError is the catch-all for unexpected failures.
	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}
)

// parseErrorResponse turns a non-2xx HTTP response into a typed *APIError.
// Returns nil for 2xx responses.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
