// Package authclient is the Go client for the finance tracker backend. It
// holds the session state (access/refresh token pair plus the user profile),
// transparently retries a request once after a 401 by refreshing the access
// token, and runs the session expiry monitor.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSessionExpired   = errors.New("session expired")
)

type User struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
}

type Client struct {
	baseURL string
	http    *http.Client

	mu            sync.RWMutex
	accessToken   string
	refreshToken  string
	user          *User
	authenticated bool
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type loginResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         *User  `json:"user"`
}

// Login exchanges a Google ID token for a session.
func (c *Client) Login(ctx context.Context, idToken string) (*User, error) {
	var resp loginResponse
	if err := c.post(ctx, "/auth/google", map[string]string{"idToken": idToken}, &resp); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.accessToken = resp.AccessToken
	c.refreshToken = resp.RefreshToken
	c.user = resp.User
	c.authenticated = true
	c.mu.Unlock()

	return resp.User, nil
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// Refresh exchanges the held refresh token for a new access token and
// replaces the locally held one.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	c.mu.RLock()
	refreshToken := c.refreshToken
	c.mu.RUnlock()
	if refreshToken == "" {
		return "", ErrNotAuthenticated
	}

	var resp refreshResponse
	if err := c.post(ctx, "/auth/refresh", map[string]string{"refreshToken": refreshToken}, &resp); err != nil {
		return "", err
	}

	c.mu.Lock()
	c.accessToken = resp.AccessToken
	c.mu.Unlock()

	return resp.AccessToken, nil
}

// Logout revokes the refresh token server-side and clears the session. The
// session is cleared even when the revoke call fails; logout is best-effort.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.RLock()
	refreshToken := c.refreshToken
	c.mu.RUnlock()

	c.clearSession()

	if refreshToken == "" {
		return nil
	}
	return c.post(ctx, "/auth/logout", map[string]string{"refreshToken": refreshToken}, nil)
}

type profileResponse struct {
	User *User `json:"user"`
}

// Profile fetches the authenticated user's profile.
func (c *Client) Profile(ctx context.Context) (*User, error) {
	var resp profileResponse
	if err := c.Do(ctx, http.MethodGet, "/auth/profile", nil, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

// Do performs an authenticated request. On a 401 it attempts exactly one
// transparent refresh-and-retry; a second 401 (or a failed refresh) clears
// the session and returns ErrSessionExpired, so callers never loop. Any
// other non-2xx status is returned as an error.
func (c *Client) Do(ctx context.Context, method, path string, body, out interface{}) error {
	c.mu.RLock()
	authenticated := c.authenticated
	c.mu.RUnlock()
	if !authenticated {
		return ErrNotAuthenticated
	}

	status, err := c.roundTrip(ctx, method, path, body, out, true)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		if _, err := c.Refresh(ctx); err != nil {
			c.clearSession()
			return ErrSessionExpired
		}

		status, err = c.roundTrip(ctx, method, path, body, out, true)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized {
			c.clearSession()
			return ErrSessionExpired
		}
	}
	if status >= 400 {
		return fmt.Errorf("request to %s failed with status %d", path, status)
	}
	return nil
}

// post performs an unauthenticated JSON POST to an /auth endpoint.
func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	status, err := c.roundTrip(ctx, http.MethodPost, path, body, out, false)
	if err != nil {
		return err
	}
	if status >= 400 {
		return fmt.Errorf("request to %s failed with status %d", path, status)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body, out interface{}, withBearer bool) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if withBearer {
		c.mu.RLock()
		accessToken := c.accessToken
		c.mu.RUnlock()
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 && out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func (c *Client) clearSession() {
	c.mu.Lock()
	c.accessToken = ""
	c.refreshToken = ""
	c.user = nil
	c.authenticated = false
	c.mu.Unlock()
}

func (c *Client) Authenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authenticated
}

func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

func (c *Client) User() *User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

// accessTokenExpiry reads the expiry claim embedded in the held access
// token. The client holds no signing secret, so the token is decoded without
// signature verification; the server remains the authority on validity.
func (c *Client) accessTokenExpiry() (time.Time, error) {
	c.mu.RLock()
	accessToken := c.accessToken
	c.mu.RUnlock()
	if accessToken == "" {
		return time.Time{}, ErrNotAuthenticated
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errors.New("token has no expiry claim")
	}
	return claims.ExpiresAt.Time, nil
}
