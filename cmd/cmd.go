// Package cmd parse args and environment to configure application.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"callnotify/agent"
	"callnotify/metric"
	"callnotify/pkg/log"
	"callnotify/signal"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// shutdownTimeout bounds the graceful shutdown of the relay.
const shutdownTimeout = 5 * time.Second

// Run starts the application.
func Run() {
	config, err := SetupConfig(os.Stdout, os.Args[1:])
	if err != nil {
		log.Errorf("failed to setup config: %v", err)
		os.Exit(1)
	}
	log.SetupLogger(config.Debug)

	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Setup metrics
	metrics := metric.New(config.Metric)
	metrics.RegisterMetrics()
	metrics.Start()
	metrics.UpdateSystemMetrics(ctx)

	switch config.Mode {
	case ModeAgent:
		err = runAgent(ctx, config.Agent, metrics, os.Stdin, os.Stdout)
	default:
		err = runRelay(ctx, config.Signal, metrics)
	}
	if stopErr := metrics.Stop(); stopErr != nil {
		log.Errorf("failed to stop metrics server: %v", stopErr)
	}
	if err != nil {
		log.Errorf("%s stopped: %v", config.Mode, err)
		os.Exit(1)
	}
}

func runRelay(ctx context.Context, c signal.Config, m *metric.Metrics) error {
	s := signal.New(c, m)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func runAgent(ctx context.Context, c agent.Config, m *metric.Metrics, in io.Reader, out io.Writer) error {
	a, err := agent.New(c, m)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Debugf("failed to close agent: %v", err)
		}
	}()
	if err := a.Connect(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Run(ctx)
	}()

	con := NewConsole(a, out)
	unsubscribe := a.Controller().Subscribe(con.Notify)
	defer unsubscribe()

	go func() {
		con.Serve(ctx, in)
		cancel()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	return <-errCh
}

// SetupConfig sets up and returns the configuration.
func SetupConfig(w io.Writer, args []string) (Config, error) {
	config, err := Parse(w, args)
	if err != nil {
		return config, err
	}
	if err = config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// Parse reads the environment, optionally preloaded from ENV_FILE, and then
// the command line arguments, which take precedence.
func Parse(w io.Writer, args []string) (Config, error) {
	if file := os.Getenv("ENV_FILE"); file != "" {
		if err := godotenv.Load(file); err != nil {
			return Config{}, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	con := Config{}
	if err := env.Parse(&con); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}

	topic := con.Signal.Topic
	fs := pflag.NewFlagSet("callnotify", pflag.ContinueOnError)
	fs.SetOutput(w)
	fs.StringVar(&con.Mode, "mode", con.Mode, "run as relay or agent")
	fs.BoolVar(&con.Debug, "debug", con.Debug, "debug mode")
	fs.StringVar(&topic, "topic", topic, "topic endpoints meet on")

	// Relay options.
	fs.IntVar(&con.Signal.Port, "port", con.Signal.Port, "listening port")
	fs.StringVar(&con.Signal.KeyFile, "key", con.Signal.KeyFile, "key file path")
	fs.StringVar(&con.Signal.CertFile, "cert", con.Signal.CertFile, "cert file path")

	// Agent options.
	fs.StringVar(&con.Agent.RelayURL, "relay", con.Agent.RelayURL, "relay websocket url")
	fs.StringVar(&con.Agent.UserID, "user", con.Agent.UserID, "local user id")
	fs.DurationVar(&con.Agent.Notification.RingTimeout, "ring-timeout", con.Agent.Notification.RingTimeout, "how long an incoming call rings")
	fs.StringSliceVar(&con.Agent.Media.ICEServers, "stun", con.Agent.Media.ICEServers, "list of used STUN servers")
	fs.StringSliceVar(&con.Agent.Capability.Devices, "devices", con.Agent.Capability.Devices, "capture devices that must exist")
	fs.BoolVar(&con.Agent.Capability.Disabled, "no-media", con.Agent.Capability.Disabled, "reject every call as unsupported")

	fs.IntVar(&con.Metric.Port, "metrics-port", con.Metric.Port, "metrics listening port")

	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("failed to parse args: %w", err)
	}

	if fs.NArg() != 0 {
		return Config{}, errors.New("some args are not parsed")
	}

	con.Signal.Topic = topic
	con.Agent.Topic = topic
	con.Signal.Debug = con.Debug
	return con, nil
}
