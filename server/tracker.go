package server

import (
	"sync"

	"github.com/frievoe97/stackup/spec"
)

// Result is the outcome of one Up or Down run: every service mapped to its
// terminal state, plus an aggregate success flag. Run-time failures are
// recorded here rather than returned as errors — callers inspect
// per-service state.
type Result struct {
	Stack  string                 `json:"stack"`
	OK     bool                   `json:"ok"`
	States map[string]spec.Status `json:"states"`
	Errors map[string]string      `json:"errors,omitempty"`
}

// Tracker owns the mutable per-service state for the duration of one
// orchestration run. Writes are serialized by a mutex; a terminal status
// sticks — later transitions for the same service are ignored, so each
// service has exactly one terminal state per run.
type Tracker struct {
	mu     sync.Mutex
	states map[string]spec.Status
	errs   map[string]string
}

// NewTracker creates a tracker with every named service Pending.
func NewTracker(names []string) *Tracker {
	states := make(map[string]spec.Status, len(names))
	for _, name := range names {
		states[name] = spec.StatusPending
	}
	return &Tracker{
		states: states,
		errs:   make(map[string]string),
	}
}

// Set records a non-terminal transition. It is a no-op once the service
// has reached a terminal state.
func (t *Tracker) Set(name string, s spec.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.states[name].Terminal() {
		return
	}
	t.states[name] = s
}

// Finish records a terminal state and an optional error message. It
// returns false if the service was already terminal, in which case
// nothing changes.
func (t *Tracker) Finish(name string, s spec.Status, errMsg string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.states[name].Terminal() {
		return false
	}
	t.states[name] = s
	if errMsg != "" {
		t.errs[name] = errMsg
	}
	return true
}

// Get returns the current status of a service.
func (t *Tracker) Get(name string) spec.Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.states[name]
}

// Snapshot returns a copy of all service states.
func (t *Tracker) Snapshot() map[string]spec.Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]spec.Status, len(t.states))
	for k, v := range t.states {
		out[k] = v
	}
	return out
}

// Result builds the run outcome. OK is true when every service reached
// want (StatusReady for Up, StatusStopped for Down).
func (t *Tracker) Result(stack string, want spec.Status) Result {
	t.mu.Lock()
	defer t.mu.Unlock()

	states := make(map[string]spec.Status, len(t.states))
	ok := true
	for k, v := range t.states {
		states[k] = v
		if v != want {
			ok = false
		}
	}

	var errs map[string]string
	if len(t.errs) > 0 {
		errs = make(map[string]string, len(t.errs))
		for k, v := range t.errs {
			errs[k] = v
		}
	}

	return Result{Stack: stack, OK: ok, States: states, Errors: errs}
}
