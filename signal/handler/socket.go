// Package handler provides an interface for managing socket.
package handler

import (
	"net/http"

	"callnotify/pkg/log"
	"callnotify/pkg/socket"
	"callnotify/signal/controller"
)

// Handler upgrades requests to websocket connections and hands them over to
// the processor.
type Handler struct {
	processor controller.Processor
}

// New creates a new Handler.
func New(p controller.Processor) *Handler {
	return &Handler{
		processor: p,
	}
}

// ServeHTTP handles the HTTP request and upgrades it to websocket connection.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s, err := socket.New(w, r)
	if err != nil {
		log.Errorf("failed to create WebSocket: %v", err)
		return
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Debugf("failed to close WebSocket: %v", err)
		}
	}()

	if err := h.processor.Process(s); err != nil {
		log.Infof("connection closed: %v", err)
	}
}
