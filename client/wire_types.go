package stackup

import "time"

// The types below mirror the server's JSON wire format. They are redeclared
// here so importing the client does not pull in the server's runtime
// dependencies.

// CreateResponse is the body of a successful POST /stacks.
type CreateResponse struct {
	Stack    string   `json:"stack"`
	Services []string `json:"services"` // dependency-first order
}

// Result is the outcome of an Up or Down run.
type Result struct {
	Stack  string            `json:"stack"`
	OK     bool              `json:"ok"`
	States map[string]string `json:"states"`
	Errors map[string]string `json:"errors,omitempty"`
}

// RuntimeStatus is the runtime's live view of one service.
type RuntimeStatus struct {
	Exists   bool   `json:"exists"`
	Running  bool   `json:"running"`
	ExitCode int    `json:"exit_code"`
	Detail   string `json:"detail,omitempty"`
}

// StackView is the body of GET /stacks/{name}.
type StackView struct {
	Stack   string                   `json:"stack"`
	Result  *Result                  `json:"result"` // nil while Up is running
	Runtime map[string]RuntimeStatus `json:"runtime"`
}

// LogEntry holds a chunk of service output.
type LogEntry struct {
	Stream string `json:"stream"`
	Data   string `json:"data"`
}

// Event is one entry from the server's event stream.
type Event struct {
	Seq       uint64    `json:"seq"`
	Type      string    `json:"type"`
	Stack     string    `json:"stack,omitempty"`
	Service   string    `json:"service,omitempty"`
	Status    string    `json:"status,omitempty"`
	Attempt   int       `json:"attempt,omitempty"`
	Log       *LogEntry `json:"log,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Event types emitted by the server, for use in Events filters.
const (
	EventServiceStarting       = "service.starting"
	EventServiceHealthChecking = "service.health_checking"
	EventServiceUnhealthy      = "service.unhealthy"
	EventServiceReady          = "service.ready"
	EventServiceFailed         = "service.failed"
	EventServiceTimedOut       = "service.timed_out"
	EventServiceBlocked        = "service.blocked"
	EventServiceCancelled      = "service.cancelled"
	EventServiceStopping       = "service.stopping"
	EventServiceStopped        = "service.stopped"
	EventServiceStopFailed     = "service.stop_failed"
	EventStackUp               = "stack.up"
	EventStackFailing          = "stack.failing"
	EventStackDown             = "stack.down"
)
