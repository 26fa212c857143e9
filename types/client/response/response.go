// Package response provides data types for server response to client.
package response

import "encoding/json"

// Constants for response types
const (
	ACTIVATE = "ACTIVATE"
	NOTIFY   = "NOTIFY"
	SIGNAL   = "SIGNAL"
)

// Activate is data type for activating user
type Activate struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connection_id"`
	Message      string `json:"message"`
}

// Event is data type for a notify or signal envelope relayed to every
// subscriber of a topic.
type Event struct {
	Type    string          `json:"type"`
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}
