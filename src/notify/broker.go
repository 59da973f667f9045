// Package notify publishes build lifecycle events to a message broker so
// other systems (chat bridges, audit consumers) can react to builds without
// polling the console.
package notify

import "context"

// Broker abstracts message publishing and consumption. An in-memory
// implementation serves single-process use; the Redpanda implementation is
// used when a broker address is configured.
type Broker interface {
	// Publish sends a message to a topic. The key selects the partition
	// for Kafka-compatible brokers and is ignored in memory.
	Publish(ctx context.Context, topic string, key string, value []byte) error

	// Subscribe returns a channel of messages from a topic. groupID is
	// used for consumer-group coordination and is ignored in memory.
	Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error)

	// Close shuts the broker down. Subscriber channels are closed.
	Close() error
}

// Message is one consumed broker message.
type Message struct {
	Topic     string
	Key       string
	Value     []byte
	Timestamp int64
}
