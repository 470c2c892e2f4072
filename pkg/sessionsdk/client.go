// Package sessionsdk is the Go client for the session service. It wraps the
// HTTP API and turns error responses into typed *APIError values.
package sessionsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to one session service instance.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a session service client.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Login authenticates an email/password pair and returns a fresh token pair.
func (c *Client) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	var out TokenResponse
	err := c.doJSON(ctx, http.MethodPost, "/v1/session/login", "",
		LoginRequest{Email: email, Password: password}, &out, http.StatusCreated)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh rotates a refresh token into the next pair. The presented token
// is spent whether or not the call succeeds.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	var out TokenResponse
	err := c.doJSON(ctx, http.MethodPost, "/v1/session/refresh", "",
		RefreshRequest{RefreshToken: refreshToken}, &out, http.StatusCreated)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout ends the session the access token belongs to.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/session/logout", accessToken,
		nil, nil, http.StatusOK)
}

// ChangePassword changes the authenticated subject's password and ends all
// of their sessions, including this one.
func (c *Client) ChangePassword(ctx context.Context, accessToken, current, next string) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/session/password", accessToken,
		ChangePasswordRequest{CurrentPassword: current, NewPassword: next}, nil, http.StatusNoContent)
}

// RequestReset asks for a password reset token to be delivered for the
// email. The call reports accepted regardless of whether the account exists.
func (c *Client) RequestReset(ctx context.Context, email string) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/session/password/reset", "",
		ResetRequest{Email: email}, nil, http.StatusAccepted)
}

// CompleteReset spends a reset token and installs the new password.
func (c *Client) CompleteReset(ctx context.Context, resetToken, newPassword string) error {
	return c.doJSON(ctx, http.MethodPut, "/v1/session/password/reset", "",
		CompleteResetRequest{ResetToken: resetToken, NewPassword: newPassword}, nil, http.StatusNoContent)
}

// Sessions lists the subject's live sessions.
func (c *Client) Sessions(ctx context.Context, accessToken string) ([]SessionInfo, error) {
	var out struct {
		Sessions []SessionInfo `json:"sessions"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/v1/session/sessions", accessToken,
		nil, &out, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// UserInfo returns the authenticated identity.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	var out UserInfo
	err := c.doJSON(ctx, http.MethodGet, "/v1/userinfo", accessToken,
		nil, &out, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Healthy reports whether the service answers its readiness probe.
func (c *Client) Healthy(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/readyz", "", nil, nil, http.StatusOK)
}

// doJSON performs one request/response cycle. A nil in skips the request
// body; a nil out skips decoding. Non-expected statuses come back as a
// typed *APIError.
func (c *Client) doJSON(ctx context.Context, method, path, accessToken string, in, out any, expectedStatus int) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != expectedStatus {
		if apiErr := parseErrorResponse(resp, data); apiErr != nil {
			return apiErr
		}
		return fmt.Errorf("unexpected status %d, want %d", resp.StatusCode, expectedStatus)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
