package kafka

import "errors"

var (
	// ErrNoBrokers is returned when no broker addresses are configured.
	ErrNoBrokers = errors.New("kafka: no brokers configured")

	// ErrNoTopic is returned when the topic name is empty.
	ErrNoTopic = errors.New("kafka: topic is required")

	// ErrInvalidCommand is returned for command messages that cannot be executed.
	ErrInvalidCommand = errors.New("kafka: invalid command")
)
