package presence

import "time"

// CallState is the local user's call-level presence.
type CallState struct {
	UserID string
	// Partner is the peer of the incoming or active call, "" when none.
	Partner string
	// Busy is true while the user is a party to a connected call.
	Busy      bool
	UpdatedAt time.Time
}

// DeepCopy creates a copy of the given CallState.
func (c *CallState) DeepCopy() *CallState {
	return &CallState{
		UserID:    c.UserID,
		Partner:   c.Partner,
		Busy:      c.Busy,
		UpdatedAt: c.UpdatedAt,
	}
}

// Outcome is how an incoming call notification ended.
type Outcome string

// Notification outcomes.
const (
	Answered    Outcome = "answered"
	Declined    Outcome = "declined"
	Missed      Outcome = "missed"
	Cancelled   Outcome = "cancelled"
	Busy        Outcome = "busy"
	Unsupported Outcome = "unsupported"
	Stopped     Outcome = "stopped"
)

// Record is one entry of the notification history.
type Record struct {
	ID        string
	CallerID  string
	Outcome   Outcome
	StartedAt time.Time
	EndedAt   time.Time
}
