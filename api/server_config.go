package api

import (
	"log/slog"
	"time"
)

// Defaults applied by HTTPServerConfig.WithDefaults.
const (
	DefaultListenAddr        = "127.0.0.1:8080"
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultShutdownDuration  = 30 * time.Second
)

// HTTPServerConfig configures the name service API listener.
type HTTPServerConfig struct {
	ListenAddr string

	// MetricsAddr is where /metrics is served. Empty disables the metrics listener.
	MetricsAddr string

	// EnablePprof mounts the profiler under /debug.
	EnablePprof bool

	Log *slog.Logger

	// DrainDuration is how long /readyz reports not-ready before shutdown proceeds,
	// so load balancers stop routing to the instance.
	DrainDuration time.Duration

	// GracefulShutdownDuration bounds how long in-flight requests and open event
	// streams get to finish.
	GracefulShutdownDuration time.Duration

	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration

	// WriteTimeout does not apply to hijacked websocket connections.
	WriteTimeout time.Duration
}

// WithDefaults returns a copy with unset fields filled in.
func (c HTTPServerConfig) WithDefaults() *HTTPServerConfig {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.ReadHeaderTimeout <= 0 {
		c.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if c.GracefulShutdownDuration <= 0 {
		c.GracefulShutdownDuration = DefaultShutdownDuration
	}
	if c.Log == nil {
		c.Log = slog.Default()
	}
	return &c
}
