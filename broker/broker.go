// Package broker defines the streaming capability the middleware publishes to
// and consumes from. The capability is a plain variant: a nil Producer means
// the broker is unavailable and the publish tool falls back to outbox offsets.
// Concrete transports live in kafka.go.
package broker

import "context"

// Message is one record fetched from the broker.
type Message struct {
	Topic string
	Value []byte
}

// Producer publishes serialized records to a topic.
type Producer interface {
	// Publish writes value to topic and returns once the broker has
	// acknowledged the write.
	Publish(ctx context.Context, topic string, value []byte) error
	// Close releases the producer's connections.
	Close() error
}

// Consumer fetches records from a subscribed topic.
type Consumer interface {
	// Fetch blocks until the next record arrives or ctx is done.
	Fetch(ctx context.Context) (Message, error)
	// Close releases the consumer's connections.
	Close() error
}
