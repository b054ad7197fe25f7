package spec

// Status tracks a service through its lifecycle during one orchestration
// run. Pending → Starting → (HealthChecking) → terminal. HealthChecking is
// skipped when no health spec is declared.
type Status string

const (
	StatusPending        Status = "pending"
	StatusStarting       Status = "starting"
	StatusHealthChecking Status = "health_checking"

	// Terminal states for Up.
	StatusReady            Status = "ready"
	StatusFailed           Status = "failed"
	StatusTimedOut         Status = "timed_out"
	StatusDependencyFailed Status = "dependency_failed"
	StatusCancelled        Status = "cancelled"

	// Terminal states for Down.
	StatusStopped    Status = "stopped"
	StatusStopFailed Status = "stop_failed"
)

// Terminal reports whether s is an end state: once a service reaches a
// terminal status it never transitions again within the same run.
func (s Status) Terminal() bool {
	switch s {
	case StatusReady, StatusFailed, StatusTimedOut, StatusDependencyFailed,
		StatusCancelled, StatusStopped, StatusStopFailed:
		return true
	}
	return false
}
