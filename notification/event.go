package notification

import "callnotify/types/message"

type inviteEvent struct {
	invite message.Invite
}

type cancelEvent struct {
	msg message.Message
}

// expiryEvent is injected by the ring timer of the notification it names.
type expiryEvent struct {
	notificationID string
}

type answerEvent struct {
	reply chan error
}

type declineEvent struct {
	reply chan error
}

// deliverEvent is the deferred local delivery of ANSWER after answering.
type deliverEvent struct {
	token string
	msg   message.Message
}

type syncEvent struct {
	reply chan error
}

// replier is an event whose poster waits for the outcome.
type replier interface {
	replyTo() chan error
}

func (e answerEvent) replyTo() chan error  { return e.reply }
func (e declineEvent) replyTo() chan error { return e.reply }
func (e syncEvent) replyTo() chan error    { return e.reply }
