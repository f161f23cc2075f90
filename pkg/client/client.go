// Package client is a Go client for the booking auth endpoints. It holds the
// session token captured from the auth-token cookie and a cached copy of the
// signed-in profile.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"hp-booking/internal/model"
	"hp-booking/internal/session"
)

const defaultTimeout = 15 * time.Second

// maxResponseBody bounds how much of a response is read.
const maxResponseBody = 1 << 20

var ErrNotAuthenticated = errors.New("client: not authenticated")

// Error is a non-2xx response decoded from the API envelope.
type Error struct {
	StatusCode int
	Code       string
	Message    string
	Fields     map[string]string
}

func (e *Error) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("client: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("client: HTTP %d %s: %s", e.StatusCode, e.Code, e.Message)
}

type Config struct {
	// BaseURL is the server root, e.g. "http://localhost:8080".
	BaseURL string
	// Token seeds the session, typically loaded from disk.
	Token string
	// HTTPClient defaults to a client with a 15s timeout.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	mu      sync.RWMutex
	token   string
	profile *model.UserProfile
}

func New(config Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("client: base URL must be http or https (got %q)", config.BaseURL)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
		token:      config.Token,
	}, nil
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.profile = nil
}

// Profile returns the cached profile from the last successful call.
func (c *Client) Profile() (model.UserProfile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.profile == nil {
		return model.UserProfile{}, false
	}
	return *c.profile, true
}

func (c *Client) Login(ctx context.Context, email string, password string) (model.UserProfile, error) {
	var result model.LoginResult
	if err := c.do(ctx, http.MethodPost, "/auth/login", model.LoginRequest{Email: email, Password: password}, &result); err != nil {
		return model.UserProfile{}, err
	}
	c.remember(result.User)
	return result.User, nil
}

func (c *Client) Register(ctx context.Context, req model.RegisterRequest) (model.RegisterResult, error) {
	var result model.RegisterResult
	if err := c.do(ctx, http.MethodPost, "/auth/register", req, &result); err != nil {
		return model.RegisterResult{}, err
	}
	c.remember(result.User)
	return result, nil
}

// Me fetches the current profile. A rejected session returns
// ErrNotAuthenticated and drops the cached profile.
func (c *Client) Me(ctx context.Context) (model.UserProfile, error) {
	var result model.MeResult
	err := c.do(ctx, http.MethodGet, "/auth/me", nil, &result)
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
			c.forget()
			return model.UserProfile{}, ErrNotAuthenticated
		}
		return model.UserProfile{}, err
	}
	c.remember(result.User)
	return result.User, nil
}

// Probe reports whether the session is still accepted. Transport failures
// are returned as errors, not as a negative answer.
func (c *Client) Probe(ctx context.Context) (bool, error) {
	_, err := c.Me(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotAuthenticated):
		return false, nil
	default:
		return false, err
	}
}

func (c *Client) UpdateProfile(ctx context.Context, req model.UpdateProfileRequest) (model.UserProfile, error) {
	var result model.ProfileUpdateResult
	if err := c.do(ctx, http.MethodPut, "/auth/profile", req, &result); err != nil {
		return model.UserProfile{}, err
	}
	c.remember(result.User)
	return result.User, nil
}

// Logout ends the session on the server and always clears local state, even
// when the request fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
	c.forget()
	if err != nil {
		return fmt.Errorf("logout request: %w", err)
	}
	return nil
}

func (c *Client) remember(profile model.UserProfile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profile = &profile
}

func (c *Client) forget() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.profile = nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *model.APIError `json:"error"`
}

func (c *Client) do(ctx context.Context, method string, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.captureSession(resp)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("client: read response: %w", err)
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			return fmt.Errorf("client: decode response (HTTP %d): %w", resp.StatusCode, err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Fields = env.Error.Fields
		}
		c.logger.Debug("api request rejected", "method", method, "path", path, "status", resp.StatusCode, "code", apiErr.Code)
		return apiErr
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("client: decode data: %w", err)
		}
	}
	return nil
}

// captureSession mirrors what a browser does with the session cookie: a new
// value replaces the token and an expiring cookie removes it.
func (c *Client) captureSession(resp *http.Response) {
	for _, cookie := range resp.Cookies() {
		if cookie.Name != session.CookieName {
			continue
		}
		c.mu.Lock()
		if cookie.MaxAge < 0 || cookie.Value == "" {
			c.token = ""
			c.profile = nil
		} else {
			c.token = cookie.Value
		}
		c.mu.Unlock()
	}
}
