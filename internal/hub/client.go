package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/nerrad567/ir-relay/internal/infrastructure/config"
	"github.com/nerrad567/ir-relay/internal/infrastructure/logging"
)

// sessionHeader carries the hub session token on authenticated requests.
const sessionHeader = "ZWAYSession"

// maxResponseSize caps hub response bodies (1MB).
const maxResponseSize = 1 << 20

// Client talks to the session-authenticated hub API.
//
// The hub issues an opaque session token on login which must accompany
// every subsequent request. The client holds the current token and
// renews it transparently: when the hub rejects a request with 401 or
// 403, the client re-authenticates exactly once and retries exactly
// once. A second rejection surfaces ErrAuth to the caller. The token
// never leaves this package.
//
// Thread Safety:
//   - All methods are safe for concurrent use. Concurrent renewals are
//     last-write-wins; the hub accepts any token it has issued.
type Client struct {
	cfg    config.HubConfig
	http   *http.Client
	logger *logging.Logger

	mu      sync.Mutex
	session string
}

// loginRequest is the hub login payload.
type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// loginResponse is the hub login reply envelope.
type loginResponse struct {
	Data struct {
		SID string `json:"sid"`
	} `json:"data"`
}

// New creates a hub client from configuration.
//
// Parameters:
//   - cfg: Hub connection settings (base URL, path prefix, credentials, timeout)
//   - logger: Logger for session lifecycle events
//
// Returns:
//   - *Client: Client ready for use (no connection is attempted here)
func New(cfg config.HubConfig, logger *logging.Logger) *Client {
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.HubTimeout(),
		},
		logger: logger.With("component", "hub"),
	}
}

// Authenticate obtains a fresh session token from the hub.
//
// It POSTs the configured credentials to {prefix}/login and stores the
// returned token, replacing any previously held session.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: ErrAuth if the hub rejects the credentials or returns no
//     token, ErrTransport if the hub is unreachable
func (c *Client) Authenticate(ctx context.Context) error {
	body, err := json.Marshal(loginRequest{
		Login:    c.cfg.Login,
		Password: c.cfg.Password,
	})
	if err != nil {
		return fmt.Errorf("%w: marshalling login request: %w", ErrTransport, err)
	}

	url := c.cfg.BaseURL + c.cfg.PathPrefix + "/login"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: building login request: %w", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: login returned status %d", ErrAuth, resp.StatusCode)
	}

	var login loginResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&login); err != nil {
		return fmt.Errorf("%w: decoding login response: %w", ErrAuth, err)
	}
	if login.Data.SID == "" {
		return fmt.Errorf("%w: login response carried no session token", ErrAuth)
	}

	c.mu.Lock()
	c.session = login.Data.SID
	c.mu.Unlock()

	c.logger.Debug("hub session renewed")
	return nil
}

// Get performs an authenticated GET against the hub API.
//
// The path is relative to the configured path prefix (e.g. "/devices").
// If no session is held, one is obtained first. On a 401 or 403 reply
// the client re-authenticates exactly once and retries exactly once,
// bounding request amplification at two hub calls per invocation.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - path: Hub API path relative to the prefix, leading slash included
//
// Returns:
//   - []byte: Raw response body
//   - error: ErrAuth after a failed renewal, ErrTransport on network
//     failure or unexpected status
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	if c.currentSession() == "" {
		if err := c.Authenticate(ctx); err != nil {
			return nil, err
		}
	}

	body, status, err := c.doGet(ctx, path)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		// Session expired or revoked. Renew once and retry once.
		if err := c.Authenticate(ctx); err != nil {
			return nil, err
		}
		body, status, err = c.doGet(ctx, path)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return nil, fmt.Errorf("%w: request rejected after session renewal (status %d)", ErrAuth, status)
		}
	}

	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: hub returned status %d for %s", ErrTransport, status, path)
	}

	return body, nil
}

// Command sends a command verb to a hub-managed device.
//
// The hub models commands as GET {prefix}/devices/{id}/command/{cmd}.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - deviceID: Hub device identifier
//   - command: Command verb, forwarded verbatim (e.g. "on", "off")
//
// Returns:
//   - error: ErrAuth or ErrTransport as for Get
func (c *Client) Command(ctx context.Context, deviceID, command string) error {
	path := fmt.Sprintf("/devices/%s/command/%s", deviceID, command)
	_, err := c.Get(ctx, path)
	return err
}

// doGet performs a single GET with the current session attached.
// It returns the body and status; callers decide how to treat the status.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, int, error) {
	url := c.cfg.BaseURL + c.cfg.PathPrefix + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: building request: %w", ErrTransport, err)
	}
	req.Header.Set(sessionHeader, c.currentSession())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: reading response: %w", ErrTransport, err)
	}

	return body, resp.StatusCode, nil
}

// currentSession returns the held session token, empty if none.
func (c *Client) currentSession() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}
