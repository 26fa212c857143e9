// Package metric provides Prometheus metrics collection and monitoring.
package metric

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"callnotify/pkg/log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
)

// Direction labels for signaling and network metrics.
const (
	Inbound  = "inbound"
	Outbound = "outbound"
)

// Metrics contains the Prometheus metrics server and registered custom metrics.
type Metrics struct {
	httpServer           *http.Server
	config               Config
	registry             *prometheus.Registry
	invites              *prometheus.CounterVec
	signalingMessages    *prometheus.CounterVec
	sendFailures         prometheus.Counter
	ringing              prometheus.Gauge
	webSocketConnections prometheus.Gauge
	webRTCConnections    prometheus.Gauge
	cpuUsage             prometheus.Gauge
	memoryUsage          prometheus.Gauge
	networkUsage         *prometheus.GaugeVec
}

// New creates a new Metrics instance with the specified configuration.
func New(config Config) *Metrics {
	return &Metrics{
		config:   config,
		registry: prometheus.NewRegistry(),
		invites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "callnotify_invites_total",
			Help: "Incoming call invites by outcome.",
		}, []string{"outcome"}),
		signalingMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "callnotify_signaling_messages_total",
			Help: "Signaling messages by direction and action.",
		}, []string{"direction", "action"}),
		sendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "callnotify_send_failures_total",
			Help: "Outbound signaling messages the channel failed to send.",
		}),
		ringing: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "callnotify_ringing",
			Help: "1 while an incoming call notification is ringing.",
		}),
		webSocketConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "websocket_connections_total",
			Help: "Current number of WebSocket connections.",
		}),
		webRTCConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "webrtc_connections_total",
			Help: "Current number of WebRTC connections.",
		}),
		cpuUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cpu_usage_percentage",
			Help: "CPU usage percentage.",
		}),
		memoryUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "memory_usage_bytes",
			Help: "Current memory usage in bytes.",
		}),
		networkUsage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "network_usage_bytes",
			Help: "Current network usage in bytes.",
		}, []string{"direction"}), // Direction: "inbound" or "outbound"
	}
}

// RegisterMetrics registers custom metrics with the registry served by Start.
func (m *Metrics) RegisterMetrics() {
	m.registry.MustRegister(
		m.invites,
		m.signalingMessages,
		m.sendFailures,
		m.ringing,
		m.webSocketConnections,
		m.webRTCConnections,
		m.cpuUsage,
		m.memoryUsage,
		m.networkUsage,
	)
}

// Registry returns the registry the metrics are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Start initializes and starts the metrics HTTP server.
func (m *Metrics) Start() {
	mux := http.NewServeMux()
	mux.Handle(m.config.Path, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	m.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", m.config.Port),
		Handler:           mux,
		ReadHeaderTimeout: 2 * time.Second,
	}

	go func() {
		log.Infof("starting metrics server on port %d at path %s", m.config.Port, m.config.Path)
		if err := m.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("failed to serve metrics: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (m *Metrics) Stop() error {
	if m.httpServer != nil {
		log.Infof("stopping metrics server on port %d", m.config.Port)
		return m.httpServer.Close()
	}
	return nil
}

// UpdateSystemMetrics collects CPU and memory usage until ctx is done.
func (m *Metrics) UpdateSystemMetrics(ctx context.Context) {
	interval := m.config.SystemInterval
	if interval <= 0 {
		interval = DefaultSystemInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			m.collectSystem()
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (m *Metrics) collectSystem() {
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		m.cpuUsage.Set(percents[0])
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		m.memoryUsage.Set(float64(vm.Used))
		return
	}
	// gopsutil is unavailable on some platforms; fall back to the Go heap.
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	m.memoryUsage.Set(float64(memStats.Alloc))
}

// ObserveInvite counts an incoming invite by outcome.
func (m *Metrics) ObserveInvite(outcome string) {
	m.invites.WithLabelValues(outcome).Inc()
}

// ObserveSignaling counts a signaling message by direction and action.
func (m *Metrics) ObserveSignaling(direction, action string) {
	m.signalingMessages.WithLabelValues(direction, action).Inc()
}

// IncrementSendFailures counts a failed outbound send.
func (m *Metrics) IncrementSendFailures() {
	m.sendFailures.Inc()
}

// SetRinging records whether a notification is ringing.
func (m *Metrics) SetRinging(ringing bool) {
	if ringing {
		m.ringing.Set(1)
		return
	}
	m.ringing.Set(0)
}

// IncrementWebSocketConnections increments the WebSocket connection count.
func (m *Metrics) IncrementWebSocketConnections() {
	m.webSocketConnections.Inc()
}

// DecrementWebSocketConnections decrements the WebSocket connection count.
func (m *Metrics) DecrementWebSocketConnections() {
	m.webSocketConnections.Dec()
}

// IncrementWebRTCConnections increments the WebRTC connection count.
func (m *Metrics) IncrementWebRTCConnections() {
	m.webRTCConnections.Inc()
}

// DecrementWebRTCConnections decrements the WebRTC connection count.
func (m *Metrics) DecrementWebRTCConnections() {
	m.webRTCConnections.Dec()
}

// AddNetworkUsage adds bytes to the network usage of direction.
func (m *Metrics) AddNetworkUsage(direction string, bytes float64) {
	m.networkUsage.WithLabelValues(direction).Add(bytes)
}
