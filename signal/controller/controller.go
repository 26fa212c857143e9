package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"callnotify/broker"
	"callnotify/metric"
	"callnotify/pkg/log"
	"callnotify/pkg/socket"
	"callnotify/types/client/request"
	"callnotify/types/client/response"
	"callnotify/types/message"

	"github.com/google/uuid"
)

// Below is the Error message for the relay.
var (
	ErrNotActivated   = errors.New("connection is not activated")
	ErrInvalidRequest = errors.New("invalid request")
	ErrSpoofedSender  = errors.New("sender does not match activated user")
)

// Controller relays envelopes between the connections of a topic.
type Controller struct {
	broker       *broker.Broker
	defaultTopic broker.Topic
	metric       *metric.Metrics
}

// New creates a new instance of Controller.
func New(b *broker.Broker, defaultTopic broker.Topic, m *metric.Metrics) *Controller {
	return &Controller{
		broker:       b,
		defaultTopic: defaultTopic,
		metric:       m,
	}
}

// session is an activated connection.
type session struct {
	connectionID string
	userID       string
	topic        broker.Topic
}

// Process serves the connection until it fails or closes.
func (c *Controller) Process(s socket.Socket) error {
	c.metric.IncrementWebSocketConnections()
	defer c.metric.DecrementWebSocketConnections()

	// 01. Activate the connection on its topic
	sess, err := c.activate(s)
	if err != nil {
		return fmt.Errorf("failed to activate: %w", err)
	}
	logger := log.WithFields(map[string]any{
		"connection": sess.connectionID,
		"user":       sess.userID,
		"topic":      sess.topic,
	})
	logger.Info("connection activated")

	// 02. Subscribe before acknowledging so no event after activation is missed
	sub := c.broker.Subscribe(sess.topic)
	res := response.Activate{
		Type:         response.ACTIVATE,
		ConnectionID: sess.connectionID,
		Message:      fmt.Sprintf("activated on %s", sess.topic),
	}
	if err := s.WriteJSON(res); err != nil {
		if err := c.broker.Unsubscribe(sess.topic, sub); err != nil {
			logger.Errorf("failed to unsubscribe: %v", err)
		}
		return fmt.Errorf("failed to send activation response: %w", err)
	}

	// 03. Forward the topic to the connection
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.sendResponse(ctx, s, sub.Receive())
	}()
	defer func() {
		cancel()
		if err := c.broker.Unsubscribe(sess.topic, sub); err != nil {
			logger.Errorf("failed to unsubscribe: %v", err)
		}
		wg.Wait()
		logger.Info("connection deactivated")
	}()

	// 04. Relay requests until the connection closes
	return c.receiveRequest(s, sess)
}

// activate reads the first request, which must be ACTIVATE.
func (c *Controller) activate(s socket.Socket) (session, error) {
	var req request.Common
	if err := s.ReadJSON(&req); err != nil {
		return session{}, fmt.Errorf("failed to read activation message: %w", err)
	}
	if req.Type != request.ACTIVATE {
		return session{}, fmt.Errorf("expected type '%s', got '%s': %w", request.ACTIVATE, req.Type, ErrNotActivated)
	}
	var payload request.Activate
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		return session{}, fmt.Errorf("failed to unmarshal activation payload: %w", ErrInvalidRequest)
	}
	if payload.UserID == "" {
		return session{}, fmt.Errorf("missing user_id: %w", ErrInvalidRequest)
	}

	sess := session{
		connectionID: uuid.NewString(),
		userID:       payload.UserID,
		topic:        c.defaultTopic,
	}
	if payload.Topic != "" {
		sess.topic = broker.Topic(payload.Topic)
	}
	return sess, nil
}

// sendResponse writes every event of the topic to the connection.
func (c *Controller) sendResponse(ctx context.Context, s socket.Socket, events <-chan any) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := s.WriteJSON(ev); err != nil {
				log.Errorf("failed to send response: %v", err)
				return
			}
		}
	}
}

// receiveRequest receives requests from the websocket and calls handleRequest.
func (c *Controller) receiveRequest(s socket.Socket, sess session) error {
	for {
		var req request.Common
		if err := s.ReadJSON(&req); err != nil {
			return fmt.Errorf("failed to parse common message: %w", err)
		}
		if err := c.handleRequest(req, sess); err != nil {
			log.Warnf("dropping request from %s: %v", sess.userID, err)
			continue
		}
	}
}

// handleRequest validates the envelope and publishes it to the topic.
func (c *Controller) handleRequest(req request.Common, sess session) error {
	var from string
	switch req.Type {
	case request.NOTIFY:
		inv, err := message.DecodeInvite(req.Payload)
		if err != nil {
			return err
		}
		from = inv.FromUserID
	case request.SIGNAL:
		msg, err := message.Decode(req.Payload)
		if err != nil {
			return err
		}
		from = msg.FromUserID
	default:
		return fmt.Errorf("type %q: %w", req.Type, ErrInvalidRequest)
	}
	if from != sess.userID {
		return fmt.Errorf("%s: %w", from, ErrSpoofedSender)
	}

	ev := response.Event{
		Type:    req.Type,
		Topic:   string(sess.topic),
		Payload: req.Payload,
	}
	dropped, err := c.broker.Publish(sess.topic, ev)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", req.Type, err)
	}
	if dropped > 0 {
		log.Warnf("%d subscribers of %s dropped a %s event", dropped, sess.topic, req.Type)
	}
	return nil
}
