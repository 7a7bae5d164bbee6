package litterrobot

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

	"github.com/cenkalti/backoff"
)

const (
	// maxResponseSize bounds how much of a response body is read.
	maxResponseSize = 1 << 20

	// maxErrorBody is how much of a non-2xx body is kept for the error message.
	maxErrorBody = 256

	defaultTimeout = 10 * time.Second

	apiKeyHeader = "x-api-key"
)

// ClientConfig configures a vendor API client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	// MaxRetries bounds retries of GET requests that fail at the transport level.
	MaxRetries int

	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client

	// NewBackOff overrides the retry schedule. Intended for tests.
	NewBackOff func() backoff.BackOff
}

// Client speaks the vendor's REST API. It holds no session state.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries uint64
	newBackOff func() backoff.BackOff
}

// NewClient creates a vendor API client.
func NewClient(cfg ClientConfig) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("litterrobot: invalid base URL %q", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	newBackOff := cfg.NewBackOff
	if newBackOff == nil {
		newBackOff = defaultBackOff
	}

	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		maxRetries: uint64(retries),
		newBackOff: newBackOff,
	}, nil
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 10 * time.Second
	return b
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
	}

	var resp struct {
		Token string `json:"token"`
		User  struct {
			UserID string `json:"userId"`
		} `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/login", "", body, &resp); err != nil {
		return Session{}, err
	}

	if resp.Token == "" || resp.User.UserID == "" {
		return Session{}, fmt.Errorf("%w: login response missing token or user ID", ErrDecode)
	}

	return Session{UserID: resp.User.UserID, Token: resp.Token}, nil
}

// ListRobots returns every robot on the account. Transport failures are
// retried with exponential backoff up to the configured limit.
func (c *Client) ListRobots(ctx context.Context, s Session) ([]DeviceState, error) {
	path := "/users/" + url.PathEscape(s.UserID) + "/litter-robots"

	var robots []robotJSON
	err := c.retry(ctx, func() error {
		robots = nil
		return c.do(ctx, http.MethodGet, path, s.Token, nil, &robots)
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	states := make([]DeviceState, 0, len(robots))
	for _, r := range robots {
		st, err := r.toState(now)
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return states, nil
}

// DispatchCommand sends a wire command to one robot. It is not retried:
// a command such as "<C1" must not run twice.
func (c *Client) DispatchCommand(ctx context.Context, s Session, externalID, command string) error {
	path := "/users/" + url.PathEscape(s.UserID) +
		"/litter-robots/" + url.PathEscape(externalID) + "/dispatch-commands"

	body := map[string]string{
		"command":       command,
		"litterRobotId": externalID,
	}
	return c.do(ctx, http.MethodPost, path, s.Token, body, nil)
}

// retry runs op until it succeeds, fails with a non-transport error, or the
// retry budget or ctx is exhausted.
func (c *Client) retry(ctx context.Context, op func() error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.maxRetries), ctx)

	var last error
	err := backoff.Retry(func() error {
		last = op()
		if last != nil && !errors.Is(last, ErrTransport) {
			return backoff.Permanent(last)
		}
		return last
	}, b)
	if err != nil && last != nil {
		// Retry reports ctx.Err() when cancelled between attempts; keep the real cause.
		return last
	}
	return err
}

// do performs one request. body is JSON-encoded when non-nil; out is decoded
// from a 2xx response when non-nil.
func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s body: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: reading %s %s: %w", ErrTransport, method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text := strings.TrimSpace(string(data))
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		return &ProtocolError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: text}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrDecode, method, path, err)
	}
	return nil
}
