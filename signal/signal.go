package signal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"callnotify/broker"
	"callnotify/metric"
	"callnotify/pkg/log"
	"callnotify/signal/controller"
	"callnotify/signal/handler"
	"callnotify/signal/middleware"
)

// Path is where endpoints open their websocket.
const Path = "/ws"

// Signal contains the server and configuration.
type Signal struct {
	server  *http.Server
	conf    Config
	handler http.Handler
}

// New creates a new instance of Signal.
func New(config Config, metrics *metric.Metrics) *Signal {
	brk := broker.New()
	con := controller.New(brk, broker.Topic(config.Topic), metrics)

	mux := http.NewServeMux()
	mux.Handle(Path, handler.New(con))
	h := middleware.Set(mux, middleware.NewLogger())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", config.Port),
		ReadHeaderTimeout: 2 * time.Second,
		Handler:           h,
	}
	return &Signal{
		server:  srv,
		conf:    config,
		handler: h,
	}
}

// Handler returns the HTTP handler of the relay.
func (s *Signal) Handler() http.Handler {
	return s.handler
}

// Start runs the signal server. It returns nil once Shutdown is called.
func (s *Signal) Start() error {
	var err error
	if s.conf.CertFile == "" || s.conf.KeyFile == "" {
		log.Infof("Starting server port on %d, without TLS", s.conf.Port)
		err = s.server.ListenAndServe()
	} else {
		log.Infof("Starting server port on %d, with TLS", s.conf.Port)
		err = s.server.ListenAndServeTLS(s.conf.CertFile, s.conf.KeyFile)
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Signal) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
