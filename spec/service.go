package spec

import "encoding/json"

// Service defines a single service within a stack.
type Service struct {
	// Runtime identifies how to start the service (e.g. "container",
	// "process"). Defaults to "container".
	Runtime string `json:"runtime,omitempty"`

	// Config holds runtime-specific configuration as raw JSON. For the
	// container runtime this carries image, command, ports and binds.
	// The orchestrator itself never interprets it.
	Config json.RawMessage `json:"config,omitempty"`

	// DependsOn lists the names of services that must be ready before this
	// one starts. Every name must refer to another service in the stack.
	DependsOn []string `json:"depends_on,omitempty"`

	// Health configures the readiness check for this service. If nil, the
	// service is considered ready as soon as it has started.
	Health *HealthSpec `json:"healthcheck,omitempty"`

	// Environment holds key/value pairs passed through to the runtime.
	// Values may reference host environment variables as ${VAR} or
	// ${VAR:-default}; the keys and expanded values are otherwise opaque.
	Environment map[string]string `json:"environment,omitempty"`
}
