package emitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/nerrad567/ir-relay/internal/infrastructure/config"
)

// Client talks to the stateless IR command emitter.
//
// The emitter accepts one command per request and performs no
// authentication; each request is independent.
type Client struct {
	baseURL string
	http    *http.Client
}

// commandRequest is the emitter command payload.
type commandRequest struct {
	Key string `json:"key"`
}

// NewClient creates an emitter client from configuration.
func NewClient(cfg config.EmitterConfig) *Client {
	return &Client{
		baseURL: fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port),
		http: &http.Client{
			Timeout: cfg.EmitterTimeout(),
		},
	}
}

// Emit sends a single IR key press to the receiver for an endpoint.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - endpointID: Receiver identifier (e.g. "tv-lounge")
//   - key: IR key name (e.g. "volume up")
//
// Returns:
//   - error: ErrTransport if the emitter is unreachable or rejects the command
func (c *Client) Emit(ctx context.Context, endpointID, key string) error {
	body, err := json.Marshal(commandRequest{Key: key})
	if err != nil {
		return fmt.Errorf("%w: marshalling command: %w", ErrTransport, err)
	}

	url := fmt.Sprintf("%s/receivers/%s/command", c.baseURL, endpointID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: building request: %w", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: emitter returned status %d", ErrTransport, resp.StatusCode)
	}

	return nil
}
