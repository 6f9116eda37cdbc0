package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/greia-app/verification-backend/pkg/config"
	pkgerrors "github.com/greia-app/verification-backend/pkg/errors"
)

const (
	requestBodyReadLimit int64 = 1024
)

var (
	errBaseURLRequired = errors.New("identity provider base url is required")
	errAPIKeyRequired  = errors.New("identity provider api key is required")
)

// SessionStatus is the provider-side state of a capture session.
type SessionStatus string

const (
	SessionStatusCreated       SessionStatus = "created"
	SessionStatusProcessing    SessionStatus = "processing"
	SessionStatusVerified      SessionStatus = "verified"
	SessionStatusRequiresInput SessionStatus = "requires_input"
	SessionStatusFailed        SessionStatus = "failed"
)

// Client wraps the hosted identity-verification provider used for document and
// biometric capture sessions.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds the identity provider client from configuration.
func NewClient(cfg config.IdentityConfig, opts ...Option) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// CreateSessionRequest describes the payload sent when opening a capture session.
type CreateSessionRequest struct {
	ReferenceID string `json:"reference_id"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Level       int    `json:"level"`
}

// Session holds the provider-side handle for an open capture session. The
// client secret is handed to the frontend SDK and never logged.
type Session struct {
	ID           string
	ClientSecret string
	Status       SessionStatus
}

// CreateSession opens a capture session with the provider for the given user.
func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "identity client not configured")
	}
	if strings.TrimSpace(req.ReferenceID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference ID is required")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal create session request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/sessions", bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build create session request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute create session request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "create session request failed")
	}

	var apiResp struct {
		ID           string `json:"id"`
		ClientSecret string `json:"client_secret"`
		Status       string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode create session response")
	}
	if apiResp.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "identity provider returned empty session id")
	}

	return &Session{
		ID:           apiResp.ID,
		ClientSecret: apiResp.ClientSecret,
		Status:       SessionStatus(apiResp.Status),
	}, nil
}

// GetSessionStatus fetches the current provider-side state for a session.
func (c *Client) GetSessionStatus(ctx context.Context, sessionID string) (SessionStatus, error) {
	if c == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "identity client not configured")
	}
	trimmed := strings.TrimSpace(sessionID)
	if trimmed == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "session ID is required")
	}

	endpoint := fmt.Sprintf("%s/v1/sessions/%s", c.baseURL, url.PathEscape(trimmed))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build session status request")
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute session status request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "session status request failed")
	}

	var apiResp struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode session status response")
	}

	return SessionStatus(apiResp.Status), nil
}
