// Package request defines structures for client request messages.
package request

import "encoding/json"

// Constants for request types
const (
	ACTIVATE = "ACTIVATE"
	NOTIFY   = "NOTIFY"
	SIGNAL   = "SIGNAL"
)

// Common is data type that must be implemented in all request
type Common struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Activate is data type for activating user on a topic
type Activate struct {
	UserID string `json:"user_id"`
	Topic  string `json:"topic"`
}
