package broker

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// subscriberBuffer bounds each subscriber channel; a stalled consumer drops
// events rather than blocking the pipeline.
const subscriberBuffer = 100

// InMemoryBroker delivers messages to in-process subscribers over buffered
// channels. Used for single-process runs and tests.
type InMemoryBroker struct {
	mu          sync.RWMutex
	subscribers map[string][]chan Message
	offsets     map[string]int64
	closed      bool
}

// NewInMemoryBroker creates an in-memory broker.
func NewInMemoryBroker() *InMemoryBroker {
	return &InMemoryBroker{
		subscribers: make(map[string][]chan Message),
		offsets:     make(map[string]int64),
	}
}

// Publish implements Broker. Delivery is best effort per subscriber: a full
// buffer drops the message for that subscriber only.
func (b *InMemoryBroker) Publish(ctx context.Context, topic string, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("broker is closed")
	}

	offset := b.offsets[topic]
	b.offsets[topic] = offset + 1

	msg := Message{
		Topic:     topic,
		Key:       key,
		Value:     value,
		Offset:    offset,
		Timestamp: time.Now().UnixMilli(),
	}
	for _, ch := range b.subscribers[topic] {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe implements Broker. groupID is ignored; every subscriber sees
// every message published after it subscribed.
func (b *InMemoryBroker) Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("broker is closed")
	}

	ch := make(chan Message, subscriberBuffer)
	b.subscribers[topic] = append(b.subscribers[topic], ch)

	go func() {
		<-ctx.Done()
		b.remove(topic, ch)
	}()

	return ch, nil
}

func (b *InMemoryBroker) remove(topic string, ch chan Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	subs := b.subscribers[topic]
	for i, sub := range subs {
		if sub == ch {
			b.subscribers[topic] = append(subs[:i], subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// Close implements Broker. All subscriber channels are closed.
func (b *InMemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
	}
	b.subscribers = make(map[string][]chan Message)
	return nil
}
