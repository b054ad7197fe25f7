package spec

import "time"

const (
	// DefaultHealthInterval is the spacing between probe attempts.
	DefaultHealthInterval = 1 * time.Second

	// DefaultHealthTimeout bounds a single probe attempt.
	DefaultHealthTimeout = 5 * time.Second

	// DefaultHealthRetries is the number of probe attempts before the
	// service is declared timed out.
	DefaultHealthRetries = 3
)

// HealthSpec configures the readiness check for a service. A service with a
// health spec stays in the health-checking state until one probe succeeds;
// exhausting the retry budget moves it to timed out.
type HealthSpec struct {
	// Type selects the probe: "tcp", "http", "grpc", "postgres" or "cmd".
	Type string `json:"type"`

	// Address is the host:port the tcp, http and grpc probes dial.
	Address string `json:"address,omitempty"`

	// Path is the HTTP GET path for http probes. Default "/".
	Path string `json:"path,omitempty"`

	// DSN is the connection string for postgres probes.
	DSN string `json:"dsn,omitempty"`

	// Cmd is the command run inside the service for cmd probes. Exit
	// status zero means ready.
	Cmd []string `json:"cmd,omitempty"`

	// Interval is the spacing between probe attempts. Default 1s.
	Interval Duration `json:"interval,omitzero"`

	// Timeout bounds a single probe attempt. Default 5s.
	Timeout Duration `json:"timeout,omitzero"`

	// Retries is the number of probe attempts before giving up. Default 3.
	Retries int `json:"retries,omitempty"`
}

// PollInterval returns the configured interval or the default.
func (h *HealthSpec) PollInterval() time.Duration {
	if h.Interval.Duration > 0 {
		return h.Interval.Duration
	}
	return DefaultHealthInterval
}

// PollTimeout returns the configured per-attempt timeout or the default.
func (h *HealthSpec) PollTimeout() time.Duration {
	if h.Timeout.Duration > 0 {
		return h.Timeout.Duration
	}
	return DefaultHealthTimeout
}

// PollRetries returns the configured retry budget or the default.
func (h *HealthSpec) PollRetries() int {
	if h.Retries > 0 {
		return h.Retries
	}
	return DefaultHealthRetries
}
