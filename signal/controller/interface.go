// Package controller handles relay connections.
package controller

import "callnotify/pkg/socket"

// Processor serves one websocket connection until it closes.
type Processor interface {
	Process(s socket.Socket) error
}
