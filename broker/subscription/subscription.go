// Package subscription provides a bounded per-subscriber message queue.
package subscription

import "sync"

// Subscription queues messages for one subscriber in the order they were sent.
type Subscription struct {
	mu     sync.Mutex
	closed bool
	queue  chan any
}

// New creates a subscription holding up to size undelivered messages.
func New(size int) *Subscription {
	return &Subscription{
		queue: make(chan any, size),
	}
}

// Send enqueues message without blocking. It reports false when the message
// was dropped because the queue is full or the subscription is closed.
func (s *Subscription) Send(message any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	select {
	case s.queue <- message:
		return true
	default:
		return false
	}
}

// Receive returns the queue. It is closed when the subscription is closed.
func (s *Subscription) Receive() <-chan any {
	return s.queue
}

// Close closes the queue. Calling it more than once is a no-op.
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.queue)
}
