// Package notification drives the signaling handshake of one incoming call
// notification at a time.
//
// The Controller is either Idle or Ringing(caller). Every trigger, whether an
// invite or CANCEL from the store, the ring timer, or a local answer or
// decline, is queued on one mailbox and handled to completion by a single
// goroutine, so transitions never interleave.
package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"callnotify/metric"
	"callnotify/pkg/log"
	"callnotify/presence"
	"callnotify/profile"
	"callnotify/ring"
	"callnotify/types/message"

	"github.com/benbjohnson/clock"
	"github.com/lithammer/shortuuid/v4"
)

var (
	// ErrSendFailure wraps a messaging channel error. The local transition
	// has still happened.
	ErrSendFailure = errors.New("failed to send signaling message")

	// ErrStopped is returned for actions on a controller that is not running.
	ErrStopped = errors.New("controller stopped")
)

// State is what the presentation layer observes. The zero value is Idle.
type State struct {
	NotificationID string
	CallerID       string
	Caller         profile.Profile
	Since          time.Time
}

// Ringing reports whether a notification is active.
func (s State) Ringing() bool {
	return s.CallerID != ""
}

// Dependencies are the collaborators of a Controller. Clock defaults to the
// wall clock.
type Dependencies struct {
	Store      Store
	Capability Capability
	Profiles   Profiles
	Sender     Sender
	Negotiator Negotiator
	Clock      clock.Clock
}

// ringing is the active notification. It only exists while Ringing.
type ringing struct {
	id       string
	callerID string
	caller   profile.Profile
	started  time.Time
	timer    *ring.Timer
}

// Controller is the incoming-call signaling state machine of one local user.
type Controller struct {
	selfID     string
	config     Config
	store      Store
	capability Capability
	profiles   Profiles
	sender     Sender
	negotiator Negotiator
	clock      clock.Clock
	metrics    *metric.Metrics

	mu        sync.Mutex
	running   bool
	done      chan struct{}
	exited    chan struct{}
	mailbox   *mailbox
	disposers []func()
	snapshot  State
	nextObs   uint64
	observers map[uint64]func(State)

	// Owned by the event loop.
	current  *ringing
	deferred string
}

// New creates a stopped Controller for selfID. A nil m records into metrics
// that are never registered.
func New(selfID string, c Config, d Dependencies, m *metric.Metrics) *Controller {
	clk := d.Clock
	if clk == nil {
		clk = clock.New()
	}
	if m == nil {
		m = metric.New(metric.Config{})
	}
	return &Controller{
		selfID:     selfID,
		config:     c.withDefaults(),
		store:      d.Store,
		capability: d.Capability,
		profiles:   d.Profiles,
		sender:     d.Sender,
		negotiator: d.Negotiator,
		clock:      clk,
		metrics:    m,
		observers:  make(map[uint64]func(State)),
	}
}

// Start registers with the store and starts the event loop. Calling it on a
// running controller is a no-op.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return
	}
	c.running = true
	c.done = make(chan struct{})
	c.exited = make(chan struct{})
	c.mailbox = newMailbox()
	go c.run(c.done, c.exited, c.mailbox)

	c.disposers = []func(){
		c.store.SubscribeInvite(func(inv message.Invite) {
			c.post(inviteEvent{invite: inv})
		}),
		c.store.SubscribeCancel(func(msg message.Message) {
			c.post(cancelEvent{msg: msg})
		}),
	}
	log.Debugf("notification controller of %s started", c.selfID)
}

// Stop detaches from the store, waits for the event in progress, and drops
// the active notification, its ring timer and any pending ANSWER delivery
// without sending anything. It must not be called from an observer.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	disposers := c.disposers
	c.disposers = nil
	done, exited, mb := c.done, c.exited, c.mailbox
	c.mu.Unlock()

	for _, dispose := range disposers {
		dispose()
	}
	close(done)
	<-exited

	for _, ev := range mb.close() {
		if r, ok := ev.(replier); ok {
			r.replyTo() <- ErrStopped
		}
	}
	c.release()
	log.Debugf("notification controller of %s stopped", c.selfID)
}

// State returns the last published state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// Subscribe registers fn to be called on the event loop after every state
// change. The returned function removes it.
func (c *Controller) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	c.nextObs++
	id := c.nextObs
	c.observers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

// Answer accepts the ringing call. Without an active notification it does
// nothing. A send failure is returned wrapped in ErrSendFailure.
func (c *Controller) Answer(ctx context.Context) error {
	reply := make(chan error, 1)
	return c.await(ctx, answerEvent{reply: reply}, reply)
}

// Decline rejects the ringing call.
func (c *Controller) Decline(ctx context.Context) error {
	reply := make(chan error, 1)
	return c.await(ctx, declineEvent{reply: reply}, reply)
}

// Sync returns once every event queued before it has been handled.
func (c *Controller) Sync(ctx context.Context) error {
	reply := make(chan error, 1)
	return c.await(ctx, syncEvent{reply: reply}, reply)
}

func (c *Controller) await(ctx context.Context, ev any, reply chan error) error {
	if !c.post(ev) {
		return ErrStopped
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post queues ev unless the controller is stopped.
func (c *Controller) post(ev any) bool {
	c.mu.Lock()
	running, mb := c.running, c.mailbox
	c.mu.Unlock()
	if !running {
		return false
	}
	return mb.push(ev)
}

func (c *Controller) run(done, exited chan struct{}, mb *mailbox) {
	defer close(exited)
	for {
		select {
		case <-done:
			return
		case <-mb.ready:
		}
		for {
			select {
			case <-done:
				return
			default:
			}
			ev, ok := mb.pop()
			if !ok {
				break
			}
			c.handle(ev)
		}
	}
}

func (c *Controller) handle(ev any) {
	switch e := ev.(type) {
	case inviteEvent:
		c.handleInvite(e.invite)
	case cancelEvent:
		c.handleCancel(e.msg)
	case expiryEvent:
		c.handleExpiry(e.notificationID)
	case answerEvent:
		e.reply <- c.handleAnswer()
	case declineEvent:
		e.reply <- c.handleDecline()
	case deliverEvent:
		c.handleDeliver(e)
	case syncEvent:
		e.reply <- nil
	default:
		log.Warnf("unknown notification event %T", ev)
	}
}

func (c *Controller) handleInvite(inv message.Invite) {
	if err := inv.Validate(); err != nil {
		log.Warnf("dropping invite: %v", err)
		return
	}
	from := inv.FromUserID

	if c.current != nil {
		if c.current.callerID == from {
			log.Debugf("ignoring repeated invite from %s", from)
			return
		}
		c.reject(from, message.BUSY, presence.Busy)
		return
	}
	if c.store.IsBusy() {
		c.reject(from, message.BUSY, presence.Busy)
		return
	}
	if !c.capability.HasCallMedia() {
		c.reject(from, message.UNSUPPORTED, presence.Unsupported)
		return
	}

	if err := c.store.SetActiveCallPartner(from); err != nil {
		log.Errorf("failed to set call partner %s: %v", from, err)
	}
	caller, err := c.profiles.Resolve(from)
	if err != nil {
		log.Debugf("failed to resolve profile of %s: %v", from, err)
		caller = profile.Profile{ID: from, DisplayName: from}
	}

	n := &ringing{
		id:       shortuuid.New(),
		callerID: from,
		caller:   caller,
		started:  c.clock.Now(),
		timer:    ring.New(c.clock, c.config.RingTimeout),
	}
	id := n.id
	n.timer.Start(func() {
		c.post(expiryEvent{notificationID: id})
	})
	c.current = n

	c.metrics.ObserveInvite("ringing")
	c.metrics.SetRinging(true)
	log.WithFields(map[string]any{"notification": id, "caller": from}).Info("incoming call ringing")
	c.publish()
}

// reject answers an invite that can not ring.
func (c *Controller) reject(to string, action message.Action, outcome presence.Outcome) {
	now := c.clock.Now()
	if err := c.send(action, to); err != nil {
		log.Errorf("failed to reject invite: %v", err)
	}
	c.record(presence.Record{
		ID:        shortuuid.New(),
		CallerID:  to,
		Outcome:   outcome,
		StartedAt: now,
		EndedAt:   now,
	})
	c.metrics.ObserveInvite(string(outcome))
	log.WithFields(map[string]any{"caller": to, "action": action}).Info("incoming call rejected")
}

func (c *Controller) handleCancel(msg message.Message) {
	if c.current == nil {
		log.Debugf("ignoring cancel from %s: no active notification", msg.FromUserID)
		return
	}
	if msg.FromUserID != c.current.callerID {
		log.Debugf("ignoring cancel from %s: ringing for %s", msg.FromUserID, c.current.callerID)
		return
	}
	c.finish(presence.Cancelled, true)
}

func (c *Controller) handleExpiry(id string) {
	if c.current == nil || c.current.id != id {
		log.Debugf("ignoring stale ring expiry of %s", id)
		return
	}
	err := c.send(message.NO_ANSWER, c.current.callerID)
	c.finish(presence.Missed, true)
	if err != nil {
		log.Errorf("failed to report missed call: %v", err)
	}
}

func (c *Controller) handleAnswer() error {
	if c.current == nil {
		log.Debugf("ignoring answer: no active notification")
		return nil
	}
	callerID := c.current.callerID

	if err := c.store.SetActiveCallPartner(callerID); err != nil {
		log.Errorf("failed to set call partner %s: %v", callerID, err)
	}
	if err := c.negotiator.Init(callerID, false); err != nil {
		log.Errorf("failed to init media negotiation with %s: %v", callerID, err)
	}
	sendErr := c.send(message.ANSWER, callerID)
	n := c.finish(presence.Answered, false)

	// Deliver ANSWER to ourselves on a later turn of the loop so listeners
	// registered while handling this event are attached first.
	c.deferred = n.id
	c.post(deliverEvent{
		token: n.id,
		msg: message.Message{
			Action:     message.ANSWER,
			FromUserID: callerID,
			ToUserID:   c.selfID,
		},
	})
	return sendErr
}

func (c *Controller) handleDeliver(e deliverEvent) {
	if c.deferred == "" || c.deferred != e.token {
		log.Debugf("dropping cancelled answer delivery %s", e.token)
		return
	}
	c.deferred = ""
	c.negotiator.Handle(e.msg)
}

func (c *Controller) handleDecline() error {
	if c.current == nil {
		log.Debugf("ignoring decline: no active notification")
		return nil
	}
	err := c.send(message.DECLINE, c.current.callerID)
	c.finish(presence.Declined, true)
	return err
}

// finish leaves Ringing and returns the notification that ended.
func (c *Controller) finish(outcome presence.Outcome, clearPartner bool) *ringing {
	n := c.current
	c.current = nil
	n.timer.Stop()

	if clearPartner {
		if err := c.store.SetActiveCallPartner(""); err != nil {
			log.Errorf("failed to clear call partner: %v", err)
		}
	}
	c.record(presence.Record{
		ID:        n.id,
		CallerID:  n.callerID,
		Outcome:   outcome,
		StartedAt: n.started,
		EndedAt:   c.clock.Now(),
	})
	c.metrics.SetRinging(false)
	log.WithFields(map[string]any{"notification": n.id, "caller": n.callerID, "outcome": outcome}).Info("incoming call closed")
	c.publish()
	return n
}

// release runs after the loop has exited.
func (c *Controller) release() {
	c.deferred = ""
	if c.current == nil {
		return
	}
	n := c.current
	c.current = nil
	n.timer.Stop()
	c.record(presence.Record{
		ID:        n.id,
		CallerID:  n.callerID,
		Outcome:   presence.Stopped,
		StartedAt: n.started,
		EndedAt:   c.clock.Now(),
	})
	c.metrics.SetRinging(false)
	c.publish()
}

func (c *Controller) send(action message.Action, to string) error {
	msg, err := message.New(action, c.selfID, to)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.config.SendTimeout)
	defer cancel()

	if err := c.sender.Send(ctx, msg); err != nil {
		c.metrics.IncrementSendFailures()
		return fmt.Errorf("%w: %s to %s: %w", ErrSendFailure, action, to, err)
	}
	c.metrics.ObserveSignaling(metric.Outbound, string(action))
	return nil
}

func (c *Controller) record(r presence.Record) {
	if err := c.store.Record(r); err != nil {
		log.Errorf("failed to record notification %s: %v", r.ID, err)
	}
}

// publish stores the current state and calls the observers.
func (c *Controller) publish() {
	var s State
	if n := c.current; n != nil {
		s = State{
			NotificationID: n.id,
			CallerID:       n.callerID,
			Caller:         n.caller,
			Since:          n.started,
		}
	}

	c.mu.Lock()
	c.snapshot = s
	observers := make([]func(State), 0, len(c.observers))
	for _, fn := range c.observers {
		observers = append(observers, fn)
	}
	c.mu.Unlock()

	for _, fn := range observers {
		fn(s)
	}
}
