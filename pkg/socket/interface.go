// Package socket provides an interface for managing socket.
package socket

// Socket is a JSON message connection. The relay gets one per upgraded
// request and an agent gets one from Dial.
//
//go:generate mockgen -destination=mock_socket.go -package=socket . Socket
type Socket interface {
	// Close closes the connection. A blocked ReadJSON returns an error.
	Close() error
	// WriteJSON is safe for concurrent use.
	WriteJSON(data any) error
	ReadJSON(v any) error
}
