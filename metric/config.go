package metric

import "time"

// Config defines the configuration for the metrics server. Port and Path
// locate the scrape endpoint; SystemInterval paces the CPU/memory gauges.
type Config struct {
	Port           int           `env:"METRICS_PORT" envDefault:"9090"`
	Path           string        `env:"METRICS_PATH" envDefault:"/metrics"`
	SystemInterval time.Duration `env:"METRICS_SYSTEM_INTERVAL" envDefault:"5s"`
}

// Default values for metrics configuration.
const (
	DefaultMetricsPort    = 9090
	DefaultMetricsPath    = "/metrics"
	DefaultSystemInterval = 5 * time.Second
)
