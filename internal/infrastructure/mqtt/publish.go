package mqtt

import (
	"encoding/json"
	"fmt"
	"time"
)

// Maximum payload size for MQTT messages (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20 // 1MB

// CommandEvent is the payload published to irrelay/event/command
// for every command the relay dispatches.
type CommandEvent struct {
	EndpointID string    `json:"endpoint_id"`
	Resource   string    `json:"resource"`
	Command    string    `json:"command"`
	Count      int       `json:"count,omitempty"`
	Target     string    `json:"target"` // "emitter" or "hub"
	Status     string    `json:"status"` // "accepted", "done", "failed"
	Timestamp  time.Time `json:"timestamp"`
}

// Publish sends a message to the specified MQTT topic.
//
// Parameters:
//   - topic: The topic to publish to (e.g., "irrelay/event/command")
//   - payload: The message payload (typically JSON, max 1MB)
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should retain the message for new subscribers
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// PublishCommandEvent publishes a command event with the configured
// default QoS. The timestamp is set if zero.
//
// Command events are not retained; they describe moments, not state.
func (c *Client) PublishCommandEvent(event CommandEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: marshalling event: %w", ErrPublishFailed, err)
	}

	return c.Publish(TopicCommandEvent, payload, byte(c.cfg.QoS), false)
}
