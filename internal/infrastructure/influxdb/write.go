package influxdb

import (
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the relay.
const (
	measurementMessages   = "mqtt_messages"
	measurementConnection = "mqtt_connection"
	measurementClient     = "mqtt_client"
)

// Connection event names for WriteConnectionEvent.
const (
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
)

// ClientStats is the counter snapshot written by WriteClientStats.
// It mirrors mqtt.Stats without importing the mqtt package.
type ClientStats struct {
	ConnectAttempts  uint64
	Connections      uint64
	Disconnections   uint64
	MessagesReceived uint64
	HandlerFailures  uint64
	Published        uint64
}

// topicRoot returns the first topic level, used as a low-cardinality tag.
func topicRoot(topic string) string {
	root, _, _ := strings.Cut(topic, "/")
	if root == "" {
		return "/"
	}
	return root
}

// WriteMessage records one inbound message.
//
// The full topic is a field rather than a tag to keep series cardinality
// bounded by the number of root levels.
func (c *Client) WriteMessage(clientID, topic string, size int, at time.Time) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		measurementMessages,
		map[string]string{
			"client_id":  clientID,
			"topic_root": topicRoot(topic),
		},
		map[string]interface{}{
			"topic": topic,
			"bytes": size,
			"count": 1,
		},
		at,
	))
}

// WriteConnectionEvent records a connect or disconnect of the broker session.
// reason may be empty.
func (c *Client) WriteConnectionEvent(clientID, event, reason string) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{"count": 1}
	if reason != "" {
		fields["reason"] = reason
	}

	c.writeAPI.WritePoint(write.NewPoint(
		measurementConnection,
		map[string]string{
			"client_id": clientID,
			"event":     event,
		},
		fields,
		time.Now(),
	))
}

// WriteClientStats records a snapshot of the resilient client counters.
func (c *Client) WriteClientStats(clientID string, stats ClientStats) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		measurementClient,
		map[string]string{"client_id": clientID},
		map[string]interface{}{
			"connect_attempts":  stats.ConnectAttempts,
			"connections":       stats.Connections,
			"disconnections":    stats.Disconnections,
			"messages_received": stats.MessagesReceived,
			"handler_failures":  stats.HandlerFailures,
			"published":         stats.Published,
		},
		time.Now(),
	))
}

// MessageHandler returns a handler with the mqtt.MessageHandler signature
// that records every message for clientID.
func (c *Client) MessageHandler(clientID string) func(topic string, payload []byte) error {
	return func(topic string, payload []byte) error {
		c.WriteMessage(clientID, topic, len(payload), time.Now())
		return nil
	}
}

// WritePoint writes a custom point with full control over tags and fields.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
