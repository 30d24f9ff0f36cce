package kafka

import (
	"errors"
	"strings"

	"github.com/segmentio/kafka-go"
)

var (
	// ErrProducerClosed indicates the producer has been closed.
	ErrProducerClosed = errors.New("kafka producer is closed")

	// ErrConsumerClosed indicates the consumer has been closed.
	ErrConsumerClosed = errors.New("kafka consumer is closed")

	// ErrEmptyKey indicates the message key is empty.
	ErrEmptyKey = errors.New("message key cannot be empty")

	// ErrEmptyValue indicates the message value is empty.
	ErrEmptyValue = errors.New("message value cannot be empty")

	// ErrSubscribeExhausted indicates subscription attempts ran out
	// before the topic became available.
	ErrSubscribeExhausted = errors.New("subscription attempts exhausted")
)

// IsLeaderElection reports whether an error belongs to the
// leader-election class that warrants the stretched backoff delay:
// the broker is up but the partition has no usable leader yet.
func IsLeaderElection(err error) bool {
	if err == nil {
		return false
	}

	var kafkaErr kafka.Error
	if errors.As(err, &kafkaErr) {
		switch kafkaErr {
		case kafka.LeaderNotAvailable,
			kafka.GroupCoordinatorNotAvailable,
			kafka.NotCoordinatorForGroup,
			kafka.NotLeaderForPartition:
			return true
		}
	}

	return strings.Contains(strings.ToLower(err.Error()), "leader election")
}
