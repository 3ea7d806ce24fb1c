package mqtt

import (
	"encoding/json"
	"fmt"
)

// Maximum payload size for MQTT messages (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20 // 1MB

// Publish sends payload to topic.
//
// Publish is fire-and-forget: it does not wait for the broker to acknowledge
// the message and never retries. Delivery guarantees are those of the
// transport's QoS. Messages published while disconnected may be dropped.
//
// Parameters:
//   - topic: The topic to publish to; wildcards are not allowed
//   - payload: The message payload (max 1MB)
//   - retained: Whether the broker should retain the message for new subscribers
//
// Returns:
//   - error: ErrInvalidTopic, ErrClientClosed, or an error wrapping
//     ErrPublishFailed when the payload is too large or the transport refuses it
func (c *Client) Publish(topic string, payload []byte, retained bool) error {
	if err := ValidateTopicName(topic); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %w: %d bytes exceeds %d", ErrPublishFailed, ErrPayloadTooLarge, len(payload), maxPayloadSize)
	}
	if c.State() == StateShutdown {
		return ErrClientClosed
	}

	if err := c.transport.Publish(topic, payload, retained); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	c.published.Add(1)
	return nil
}

// PublishJSON encodes value as JSON and publishes it.
//
// Example:
//
//	err := client.PublishJSON("sensors/living/temp", map[string]any{"value": 21.5}, true)
func (c *Client) PublishJSON(topic string, value any, retained bool) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: encoding payload: %w", ErrPublishFailed, err)
	}
	return c.Publish(topic, payload, retained)
}

// publishStatus publishes a retained status message when a status topic is
// configured. Failures are logged only.
func (c *Client) publishStatus(status, reason string) {
	if c.opts.StatusTopic == "" {
		return
	}
	payload := buildStatusPayload(c.opts.ClientID, status, reason)
	if err := c.transport.Publish(c.opts.StatusTopic, payload, true); err != nil {
		c.log.Warn("MQTT status publish failed",
			"topic", c.opts.StatusTopic,
			"status", status,
			"error", err,
		)
	}
}
