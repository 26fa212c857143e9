package notification

import "sync"

// mailbox is an unbounded FIFO of events. The event loop may post to its own
// mailbox without blocking.
type mailbox struct {
	mu     sync.Mutex
	items  []any
	ready  chan struct{}
	closed bool
}

func newMailbox() *mailbox {
	return &mailbox{
		ready: make(chan struct{}, 1),
	}
}

// push appends ev. It reports false once the mailbox is closed.
func (m *mailbox) push(ev any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	m.items = append(m.items, ev)
	select {
	case m.ready <- struct{}{}:
	default:
	}
	return true
}

func (m *mailbox) pop() (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.items) == 0 {
		return nil, false
	}
	ev := m.items[0]
	m.items[0] = nil
	m.items = m.items[1:]
	return ev, true
}

// close rejects further pushes and returns the events never handled.
func (m *mailbox) close() []any {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	pending := m.items
	m.items = nil
	return pending
}
