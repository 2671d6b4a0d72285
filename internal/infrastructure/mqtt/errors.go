package mqtt

import "errors"

// Broker link failures. Publish, Subscribe and Unsubscribe wrap the
// broker's own error in one of these.
var (
	ErrNotConnected      = errors.New("mqtt: client not connected")
	ErrConnectionFailed  = errors.New("mqtt: connection failed")
	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")
)

// Argument errors, returned before anything reaches the broker.
var (
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
	ErrInvalidQoS   = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")
)
