// Package message provides the signaling messages exchanged between peers and
// their wire encoding.
package message

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Action is the kind of a signaling message. The set is closed.
type Action string

// Actions a peer can send. Values are the wire representation.
const (
	BUSY        Action = "BUSY"
	UNSUPPORTED Action = "UNSUPPORTED"
	ANSWER      Action = "ANSWER"
	DECLINE     Action = "DECLINE"
	CANCEL      Action = "CANCEL"
	NO_ANSWER   Action = "NO_ANSWER"
)

// ErrMalformedMessage is returned when a wire message can not be decoded into
// a valid Message or Invite.
var ErrMalformedMessage = errors.New("malformed message")

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case BUSY, UNSUPPORTED, ANSWER, DECLINE, CANCEL, NO_ANSWER:
		return true
	}
	return false
}

// Message is a signaling message addressed from one user to another.
type Message struct {
	Action     Action `json:"action"`
	FromUserID string `json:"from_user_id"`
	ToUserID   string `json:"to_user_id"`
}

// Validate checks the closed action set and the addressing fields.
func (m Message) Validate() error {
	if !m.Action.Valid() {
		return fmt.Errorf("unknown action %q: %w", m.Action, ErrMalformedMessage)
	}
	return validateAddress(m.FromUserID, m.ToUserID)
}

// Reverse returns the message as if it had been sent by the recipient.
func (m Message) Reverse() Message {
	return Message{
		Action:     m.Action,
		FromUserID: m.ToUserID,
		ToUserID:   m.FromUserID,
	}
}

// Invite is the wire form of "a remote peer wants to call me".
type Invite struct {
	FromUserID string `json:"from_user_id"`
	ToUserID   string `json:"to_user_id"`
}

// Validate checks the addressing fields.
func (i Invite) Validate() error {
	return validateAddress(i.FromUserID, i.ToUserID)
}

func validateAddress(from, to string) error {
	if from == "" {
		return fmt.Errorf("missing from_user_id: %w", ErrMalformedMessage)
	}
	if to == "" {
		return fmt.Errorf("missing to_user_id: %w", ErrMalformedMessage)
	}
	if from == to {
		return fmt.Errorf("from_user_id equals to_user_id %q: %w", from, ErrMalformedMessage)
	}
	return nil
}

// New builds a validated Message.
func New(action Action, from, to string) (Message, error) {
	msg := Message{Action: action, FromUserID: from, ToUserID: to}
	if err := msg.Validate(); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// Encode builds the wire representation of a message.
func Encode(action Action, from, to string) ([]byte, error) {
	msg, err := New(action, from, to)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return data, nil
}

// Decode parses a wire message. Any failure is reported as ErrMalformedMessage.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("%v: %w", err, ErrMalformedMessage)
	}
	if err := msg.Validate(); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// EncodeInvite builds the wire representation of an invite.
func EncodeInvite(from, to string) ([]byte, error) {
	inv := Invite{FromUserID: from, ToUserID: to}
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(inv)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal invite: %w", err)
	}
	return data, nil
}

// DecodeInvite parses a wire invite.
func DecodeInvite(data []byte) (Invite, error) {
	var inv Invite
	if err := json.Unmarshal(data, &inv); err != nil {
		return Invite{}, fmt.Errorf("%v: %w", err, ErrMalformedMessage)
	}
	if err := inv.Validate(); err != nil {
		return Invite{}, err
	}
	return inv, nil
}
