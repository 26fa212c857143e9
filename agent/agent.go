// Package agent is the local endpoint. It keeps a websocket to the relay,
// feeds the decoded envelopes addressed to the local user into the presence
// store and sends what the notification controller and the outgoing call
// side produce.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"callnotify/capability"
	"callnotify/media"
	"callnotify/metric"
	"callnotify/notification"
	"callnotify/pkg/log"
	"callnotify/pkg/socket"
	"callnotify/presence"
	"callnotify/profile"
	"callnotify/types/client/request"
	"callnotify/types/client/response"
	"callnotify/types/message"

	"github.com/pion/webrtc/v4"
)

// invite is the metric label of outgoing and incoming invites.
const invite = "INVITE"

// Below is the Error message for the agent.
var (
	ErrNotConnected = errors.New("agent is not connected")
	ErrBusy         = errors.New("already on a call")
)

// Agent is one user's connection to the relay together with its call
// notification controller.
type Agent struct {
	config  Config
	metrics *metric.Metrics

	store      *presence.Store
	profiles   *profile.Directory
	negotiator *media.Negotiator
	controller *notification.Controller

	mu           sync.RWMutex
	socket       socket.Socket
	connectionID string
	dispose      func()
	closeOnce    sync.Once
}

// New wires the store, capability probe, profiles, media negotiation and the
// notification controller of the configured user. It does not connect.
func New(c Config, m *metric.Metrics) (*Agent, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	a := &Agent{
		config:   c,
		metrics:  m,
		store:    presence.New(c.UserID),
		profiles: profile.NewDirectory(),
	}

	neg, err := media.New(c.Media, a.store, m)
	if err != nil {
		return nil, fmt.Errorf("failed to create negotiator: %w", err)
	}
	neg.OnLocalDescription(func(peerID string, sdp webrtc.SessionDescription) {
		log.Infof("local %s for %s ready (%d bytes)", sdp.Type, peerID, len(sdp.SDP))
	})
	a.negotiator = neg

	a.controller = notification.New(c.UserID, c.Notification, notification.Dependencies{
		Store:      a.store,
		Capability: capability.New(c.Capability),
		Profiles:   a.profiles,
		Sender:     a,
		Negotiator: neg,
	}, m)
	return a, nil
}

// Controller returns the notification controller.
func (a *Agent) Controller() *notification.Controller {
	return a.controller
}

// Store returns the presence store.
func (a *Agent) Store() *presence.Store {
	return a.store
}

// Profiles returns the profile directory used to present callers.
func (a *Agent) Profiles() *profile.Directory {
	return a.profiles
}

// Negotiator returns the media negotiator.
func (a *Agent) Negotiator() *media.Negotiator {
	return a.negotiator
}

// State returns the notification state of the local user.
func (a *Agent) State() notification.State {
	return a.controller.State()
}

// Answer accepts the ringing call.
func (a *Agent) Answer(ctx context.Context) error {
	return a.controller.Answer(ctx)
}

// Decline rejects the ringing call.
func (a *Agent) Decline(ctx context.Context) error {
	return a.controller.Decline(ctx)
}

// History returns every closed notification, oldest first.
func (a *Agent) History() ([]presence.Record, error) {
	return a.store.History("")
}

// ConnectionID returns the id the relay assigned on activation.
func (a *Agent) ConnectionID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.connectionID
}

// Connect dials the relay, activates the user on the topic and starts the
// controller. Run must be called to receive events.
func (a *Agent) Connect(ctx context.Context) error {
	s, err := socket.Dial(ctx, a.config.RelayURL)
	if err != nil {
		return err
	}
	if err := a.attach(s); err != nil {
		_ = s.Close()
		return err
	}
	return nil
}

// attach activates s and starts the controller on it.
func (a *Agent) attach(s socket.Socket) error {
	payload, err := json.Marshal(request.Activate{
		UserID: a.config.UserID,
		Topic:  a.config.Topic,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal activation: %w", err)
	}
	if err := s.WriteJSON(request.Common{Type: request.ACTIVATE, Payload: payload}); err != nil {
		return fmt.Errorf("failed to send activation: %w", err)
	}
	var res response.Activate
	if err := s.ReadJSON(&res); err != nil {
		return fmt.Errorf("failed to read activation response: %w", err)
	}
	if res.Type != response.ACTIVATE {
		return fmt.Errorf("expected type '%s', got '%s'", response.ACTIVATE, res.Type)
	}

	a.mu.Lock()
	a.socket = s
	a.connectionID = res.ConnectionID
	a.dispose = a.store.SubscribeMessages(a.negotiator.Handle)
	a.mu.Unlock()

	a.controller.Start()
	log.WithFields(map[string]any{
		"user":       a.config.UserID,
		"connection": res.ConnectionID,
	}).Info("agent connected")
	return nil
}

// Run reads events until the connection fails or ctx is done.
func (a *Agent) Run(ctx context.Context) error {
	s := a.conn()
	if s == nil {
		return ErrNotConnected
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-stop:
		}
	}()

	for {
		var ev response.Event
		if err := s.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read event: %w", err)
		}
		a.handleEvent(ev)
	}
}

// handleEvent decodes an envelope and hands it to the store when it is
// addressed to the local user.
func (a *Agent) handleEvent(ev response.Event) {
	self := a.config.UserID
	switch ev.Type {
	case response.NOTIFY:
		inv, err := message.DecodeInvite(ev.Payload)
		if err != nil {
			log.Warnf("dropping invite: %v", err)
			return
		}
		if inv.ToUserID != self {
			return
		}
		a.metrics.ObserveSignaling(metric.Inbound, invite)
		a.store.Notify(inv)
	case response.SIGNAL:
		msg, err := message.Decode(ev.Payload)
		if err != nil {
			log.Warnf("dropping signaling message: %v", err)
			return
		}
		if msg.ToUserID != self {
			return
		}
		a.metrics.ObserveSignaling(metric.Inbound, string(msg.Action))
		a.store.Dispatch(msg)
	default:
		log.Debugf("ignoring event of type %s", ev.Type)
	}
}

// Send writes msg to the relay.
func (a *Agent) Send(ctx context.Context, msg message.Message) error {
	payload, err := message.Encode(msg.Action, msg.FromUserID, msg.ToUserID)
	if err != nil {
		return err
	}
	return a.write(ctx, request.Common{Type: request.SIGNAL, Payload: payload})
}

// Call sends an invite to the user to and opens an initiating media
// session with them.
func (a *Agent) Call(ctx context.Context, to string) error {
	if a.store.IsBusy() {
		return ErrBusy
	}
	payload, err := message.EncodeInvite(a.config.UserID, to)
	if err != nil {
		return err
	}
	if err := a.negotiator.Init(to, true); err != nil {
		return fmt.Errorf("failed to init media negotiation with %s: %w", to, err)
	}
	if err := a.write(ctx, request.Common{Type: request.NOTIFY, Payload: payload}); err != nil {
		_ = a.negotiator.Close(to)
		return err
	}
	a.metrics.ObserveSignaling(metric.Outbound, invite)
	log.Infof("calling %s", to)
	return nil
}

// Hangup cancels an outgoing invite or ends a call with to.
func (a *Agent) Hangup(ctx context.Context, to string) error {
	msg, err := message.New(message.CANCEL, a.config.UserID, to)
	if err != nil {
		return err
	}
	sendErr := a.Send(ctx, msg)
	if sendErr == nil {
		a.metrics.ObserveSignaling(metric.Outbound, string(message.CANCEL))
	}
	if err := a.negotiator.Close(to); err != nil {
		log.Errorf("failed to close session with %s: %v", to, err)
	}
	return sendErr
}

// Close stops the controller, closes every media session and the connection.
func (a *Agent) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.controller.Stop()
		a.negotiator.CloseAll()

		a.mu.Lock()
		s, dispose := a.socket, a.dispose
		a.socket, a.dispose = nil, nil
		a.mu.Unlock()

		if dispose != nil {
			dispose()
		}
		if s != nil {
			err = s.Close()
		}
	})
	return err
}

func (a *Agent) conn() socket.Socket {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.socket
}

func (a *Agent) write(ctx context.Context, req request.Common) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := a.conn()
	if s == nil {
		return ErrNotConnected
	}
	if err := s.WriteJSON(req); err != nil {
		return fmt.Errorf("failed to write %s: %w", req.Type, err)
	}
	return nil
}
