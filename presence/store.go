// Package presence tracks the local user's call state and fans out the
// signaling feed to registered handlers.
package presence

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"callnotify/types/message"

	"github.com/hashicorp/go-memdb"
)

// ErrStateNotFound is returned when the local call state row is missing.
var ErrStateNotFound = errors.New("call state not found")

type handlers[T any] struct {
	next  uint64
	items []handlerEntry[T]
}

type handlerEntry[T any] struct {
	id uint64
	fn func(T)
}

func (h *handlers[T]) add(fn func(T)) uint64 {
	h.next++
	h.items = append(h.items, handlerEntry[T]{id: h.next, fn: fn})
	return h.next
}

func (h *handlers[T]) remove(id uint64) {
	for i, e := range h.items {
		if e.id == id {
			h.items = append(h.items[:i], h.items[i+1:]...)
			return
		}
	}
}

func (h *handlers[T]) snapshot() []func(T) {
	fns := make([]func(T), len(h.items))
	for i, e := range h.items {
		fns[i] = e.fn
	}
	return fns
}

// Store is a memory-backed presence store for one local user.
type Store struct {
	selfID string
	db     *memdb.MemDB
	now    func() time.Time

	mu       sync.Mutex
	invites  handlers[message.Invite]
	cancels  handlers[message.Message]
	messages handlers[message.Message]
}

// New creates the store of selfID with an idle call state.
func New(selfID string) *Store {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		panic(err)
	}
	s := &Store{
		selfID: selfID,
		db:     db,
		now:    time.Now,
	}
	txn := db.Txn(true)
	if err := txn.Insert(tblCalls, &CallState{UserID: selfID, UpdatedAt: s.now()}); err != nil {
		panic(err)
	}
	txn.Commit()
	return s
}

// SelfID returns the local user id.
func (s *Store) SelfID() string {
	return s.selfID
}

// SubscribeInvite registers h for incoming invites. The returned function
// removes it and is safe to call more than once.
func (s *Store) SubscribeInvite(h func(message.Invite)) func() {
	s.mu.Lock()
	id := s.invites.add(h)
	s.mu.Unlock()
	return s.disposer(func() { s.invites.remove(id) })
}

// SubscribeCancel registers h for CANCEL messages.
func (s *Store) SubscribeCancel(h func(message.Message)) func() {
	s.mu.Lock()
	id := s.cancels.add(h)
	s.mu.Unlock()
	return s.disposer(func() { s.cancels.remove(id) })
}

// SubscribeMessages registers h for every signaling message.
func (s *Store) SubscribeMessages(h func(message.Message)) func() {
	s.mu.Lock()
	id := s.messages.add(h)
	s.mu.Unlock()
	return s.disposer(func() { s.messages.remove(id) })
}

func (s *Store) disposer(remove func()) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			remove()
			s.mu.Unlock()
		})
	}
}

// Notify delivers an invite to the invite handlers on the calling goroutine,
// in registration order.
func (s *Store) Notify(inv message.Invite) {
	s.mu.Lock()
	fns := s.invites.snapshot()
	s.mu.Unlock()
	for _, fn := range fns {
		fn(inv)
	}
}

// Dispatch delivers msg to the message handlers and, for CANCEL, to the
// cancel handlers.
func (s *Store) Dispatch(msg message.Message) {
	s.mu.Lock()
	fns := s.messages.snapshot()
	if msg.Action == message.CANCEL {
		fns = append(fns, s.cancels.snapshot()...)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(msg)
	}
}

// State returns a copy of the local call state.
func (s *Store) State() (*CallState, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()
	raw, err := txn.First(tblCalls, idxUserID, s.selfID)
	if err != nil {
		return nil, fmt.Errorf("find call state: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%s: %w", s.selfID, ErrStateNotFound)
	}
	return raw.(*CallState).DeepCopy(), nil
}

// IsBusy reports whether the local user is on a call or has a call partner.
// The partner is set as soon as a call is answered, before media marks busy.
func (s *Store) IsBusy() bool {
	state, err := s.State()
	if err != nil {
		return false
	}
	return state.Busy || state.Partner != ""
}

// ActiveCallPartner returns the current call partner, "" when none.
func (s *Store) ActiveCallPartner() string {
	state, err := s.State()
	if err != nil {
		return ""
	}
	return state.Partner
}

// SetBusy records whether the local user is on a call.
func (s *Store) SetBusy(busy bool) error {
	return s.update(func(c *CallState) {
		c.Busy = busy
	})
}

// SetActiveCallPartner sets the call partner; "" clears it.
func (s *Store) SetActiveCallPartner(id string) error {
	return s.update(func(c *CallState) {
		c.Partner = id
	})
}

func (s *Store) update(fn func(*CallState)) error {
	txn := s.db.Txn(true)
	defer txn.Abort()
	raw, err := txn.First(tblCalls, idxUserID, s.selfID)
	if err != nil {
		return fmt.Errorf("find call state: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("%s: %w", s.selfID, ErrStateNotFound)
	}
	state := raw.(*CallState).DeepCopy()
	fn(state)
	state.UpdatedAt = s.now()
	if err := txn.Insert(tblCalls, state); err != nil {
		return fmt.Errorf("update call state: %w", err)
	}
	txn.Commit()
	return nil
}

// Record stores a notification history entry. A record with an existing ID
// replaces it.
func (s *Store) Record(r Record) error {
	txn := s.db.Txn(true)
	defer txn.Abort()
	rec := r
	if err := txn.Insert(tblNotifications, &rec); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	txn.Commit()
	return nil
}

// History returns the notifications from callerID, oldest first. An empty
// callerID returns every notification.
func (s *Store) History(callerID string) ([]Record, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	var (
		it  memdb.ResultIterator
		err error
	)
	if callerID == "" {
		it, err = txn.Get(tblNotifications, idxID)
	} else {
		it, err = txn.Get(tblNotifications, idxCaller, callerID)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch notifications: %w", err)
	}

	var records []Record
	for raw := it.Next(); raw != nil; raw = it.Next() {
		records = append(records, *raw.(*Record))
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].StartedAt.Before(records[j].StartedAt)
	})
	return records, nil
}

// CountByOutcome returns how many notifications ended with o.
func (s *Store) CountByOutcome(o Outcome) (int, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()
	it, err := txn.Get(tblNotifications, idxOutcome, string(o))
	if err != nil {
		return 0, fmt.Errorf("fetch notifications by outcome: %w", err)
	}
	count := 0
	for raw := it.Next(); raw != nil; raw = it.Next() {
		count++
	}
	return count, nil
}
