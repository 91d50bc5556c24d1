// Package broker abstracts the event stream carrying run progress. The
// in-memory implementation backs in-process observers such as the TUI; the
// Redpanda implementation fans the same payloads out to external consumers.
package broker

import "context"

// Broker publishes and consumes progress events by topic.
type Broker interface {
	// Publish sends a message to a topic. key selects the partition for
	// distributed implementations and is ignored in memory.
	Publish(ctx context.Context, topic string, key string, value []byte) error

	// Subscribe returns a channel of messages for a topic. groupID
	// coordinates consumer groups in distributed implementations and is
	// ignored in memory. The channel closes when the context is cancelled or
	// the broker shuts down.
	Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error)

	// Close shuts the broker down; subsequent publishes fail.
	Close() error
}

// Message is one consumed event.
type Message struct {
	Topic     string
	Key       string
	Value     []byte
	Offset    int64
	Partition int32
	Timestamp int64
}
