// Package broker provides in-process topic based publish/subscribe.
package broker

import (
	"errors"
	"fmt"
	"sync"

	"callnotify/broker/channel"
	"callnotify/broker/subscription"
)

// DefaultQueueSize is the number of undelivered messages a subscription holds
// before further messages to it are dropped.
const DefaultQueueSize = 64

// ErrTopicNotFound is returned when a topic has no channel.
var ErrTopicNotFound = errors.New("topic not found")

// Topic names a logical message stream, e.g. "webrtc".
type Topic string

// Broker routes published messages to every subscriber of a topic.
type Broker struct {
	mu        sync.RWMutex
	topics    map[Topic]*channel.Channel
	queueSize int
}

// New creates a new Broker.
func New() *Broker {
	return &Broker{
		topics:    make(map[Topic]*channel.Channel),
		queueSize: DefaultQueueSize,
	}
}

// Subscribe registers a new subscription on topic.
func (b *Broker) Subscribe(topic Topic) *subscription.Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.topics[topic]
	if !ok {
		ch = channel.New()
		b.topics[topic] = ch
	}
	sub := subscription.New(b.queueSize)
	ch.AddSubscription(sub)
	return sub
}

// Unsubscribe removes and closes sub. The topic is dropped with its last subscriber.
func (b *Broker) Unsubscribe(topic Topic, sub *subscription.Subscription) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.topics[topic]
	if !ok {
		return fmt.Errorf("%s: %w", topic, ErrTopicNotFound)
	}
	ch.RemoveSubscription(sub)
	if ch.Len() == 0 {
		delete(b.topics, topic)
	}
	return nil
}

// Publish delivers message to every subscriber of topic. It returns the
// number of subscriptions that dropped the message because their queue was full.
func (b *Broker) Publish(topic Topic, message any) (int, error) {
	b.mu.RLock()
	ch, ok := b.topics[topic]
	b.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%s: %w", topic, ErrTopicNotFound)
	}
	return ch.SendAll(message), nil
}
