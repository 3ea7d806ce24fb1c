package mqtt

import "errors"

// Domain-specific errors for MQTT operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when an operation needs a live broker connection.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed is returned when a connection attempt fails.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed is returned when a subscribe operation fails.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrInvalidTopic is returned for an empty or malformed topic or topic filter.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")

	// ErrClientClosed is returned when the client has been shut down.
	ErrClientClosed = errors.New("mqtt: client shut down")

	// ErrAlreadyStarted is returned when Start is called more than once.
	ErrAlreadyStarted = errors.New("mqtt: client already started")

	// ErrTimeout is returned when a transport operation times out.
	ErrTimeout = errors.New("mqtt: operation timed out")

	// ErrPayloadTooLarge is wrapped by ErrPublishFailed for oversized payloads.
	ErrPayloadTooLarge = errors.New("mqtt: payload too large")
)
