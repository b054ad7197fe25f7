// Package runtime defines the adapter boundary between the orchestrator and
// whatever actually runs a service. The orchestrator performs no process or
// container management itself — it only invokes an Adapter.
package runtime

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/frievoe97/stackup/server/probe"
	"github.com/frievoe97/stackup/spec"
)

// StartParams provides the context needed to start one service.
type StartParams struct {
	Stack      string
	Service    string
	InstanceID string
	Spec       spec.Service

	// Env is the fully interpolated environment map for the service.
	Env map[string]string

	// Stdout and Stderr receive the service's output while the caller is
	// attached. Either may be nil; adapters that detach (containers keep
	// running after the CLI exits) stream on a best-effort basis.
	Stdout io.Writer
	Stderr io.Writer
}

// Status is the runtime's view of a service outside an orchestration run.
type Status struct {
	Exists   bool   `json:"exists"`
	Running  bool   `json:"running"`
	ExitCode int    `json:"exit_code"`
	Detail   string `json:"detail,omitempty"` // runtime-specific state description
}

// Adapter starts and stops services. Start returns once the service has
// been launched — readiness is the orchestrator's concern, not the
// adapter's. Stop is graceful and idempotent: stopping a service that is
// not running is not an error.
type Adapter interface {
	Start(ctx context.Context, params StartParams) error
	Stop(ctx context.Context, stack, service string) error
	Status(ctx context.Context, stack, service string) (Status, error)
}

// CommandProber is implemented by adapters that can execute a health
// command inside the service (the "cmd" probe type). Adapters without an
// execution environment need not implement it.
type CommandProber interface {
	CommandChecker(stack, service string, cmd []string) probe.Checker
}

// Registry maps runtime names to their adapters.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry creates a registry with no adapters registered.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter to the registry.
func (r *Registry) Register(name string, a Adapter) {
	r.adapters[name] = a
}

// Get returns the adapter for the given runtime name, or an error if not
// registered.
func (r *Registry) Get(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("unknown runtime: %q", name)
	}
	return a, nil
}

// DefaultDir returns the base stackup state directory. It checks
// STACKUP_DIR first, then falls back to ~/.stackup, then $TMPDIR/stackup.
func DefaultDir() string {
	if dir := os.Getenv("STACKUP_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "stackup")
	}
	return filepath.Join(home, ".stackup")
}
