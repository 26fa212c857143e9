package notification

import (
	"context"

	"callnotify/presence"
	"callnotify/profile"
	"callnotify/types/message"
)

// Store is the presence/call-state store the controller reads and updates.
type Store interface {
	SubscribeInvite(h func(message.Invite)) func()
	SubscribeCancel(h func(message.Message)) func()
	IsBusy() bool
	SetActiveCallPartner(id string) error
	Record(r presence.Record) error
}

// Capability reports whether call media can be acquired.
type Capability interface {
	HasCallMedia() bool
}

// Profiles resolves a caller for presentation.
type Profiles interface {
	Resolve(userID string) (profile.Profile, error)
}

// Sender delivers an outbound signaling message to the messaging channel.
//
//go:generate mockgen -destination=mock_sender.go -package=notification . Sender
type Sender interface {
	Send(ctx context.Context, msg message.Message) error
}

// Negotiator is the entry point of media negotiation.
type Negotiator interface {
	Init(peerID string, initiator bool) error
	Handle(msg message.Message)
}
