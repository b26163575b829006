package hub

import (
	"context"
	"encoding/json"
	"fmt"
)

// Device is a device descriptor as reported by the hub.
type Device struct {
	ID    string
	Type  string
	Title string
}

// devicesResponse is the hub device list envelope.
type devicesResponse struct {
	Data struct {
		Devices []struct {
			ID         string `json:"id"`
			DeviceType string `json:"deviceType"`
			Metrics    struct {
				Title string `json:"title"`
			} `json:"metrics"`
		} `json:"devices"`
	} `json:"data"`
}

// Devices fetches the hub's device list.
//
// Entries missing an id, a metrics title, or a device type are not
// usable as endpoints and are dropped here rather than surfaced to
// callers.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - []Device: Valid device descriptors, possibly empty
//   - error: ErrAuth or ErrTransport as for Get
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	body, err := c.Get(ctx, "/devices")
	if err != nil {
		return nil, err
	}

	var resp devicesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decoding device list: %w", ErrTransport, err)
	}

	devices := make([]Device, 0, len(resp.Data.Devices))
	for _, d := range resp.Data.Devices {
		if d.ID == "" || d.Metrics.Title == "" || d.DeviceType == "" {
			continue
		}
		devices = append(devices, Device{
			ID:    d.ID,
			Type:  d.DeviceType,
			Title: d.Metrics.Title,
		})
	}

	return devices, nil
}
