package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// ProcessConfig is the runtime-specific config for "process" services.
type ProcessConfig struct {
	// Command is the path to the executable.
	Command string `json:"command"`

	// Args are command-line arguments.
	Args []string `json:"args,omitempty"`

	// Dir is the working directory. Optional.
	Dir string `json:"dir,omitempty"`
}

// Process implements Adapter for the "process" runtime. Started processes
// are detached into their own session; a pidfile under StateDir lets a
// later down or status invocation find them again. Output goes to a log
// file next to the pidfile, since the launching terminal may be gone by
// the time the process writes.
type Process struct {
	// StateDir holds pidfiles and log files. Empty means DefaultDir().
	StateDir string
}

func (p Process) stateDir() string {
	if p.StateDir != "" {
		return p.StateDir
	}
	return DefaultDir()
}

func (p Process) pidFile(stack, service string) string {
	return filepath.Join(p.stateDir(), "stacks", stack, service+".pid")
}

func (p Process) logFile(stack, service string) string {
	return filepath.Join(p.stateDir(), "stacks", stack, service+".log")
}

// Start launches the configured command in a new session and records its
// pid. A pidfile pointing at a still-running process is an error — the
// service must be stopped first.
func (p Process) Start(_ context.Context, params StartParams) error {
	var cfg ProcessConfig
	if params.Spec.Config == nil {
		return fmt.Errorf("service %q: missing process config", params.Service)
	}
	if err := json.Unmarshal(params.Spec.Config, &cfg); err != nil {
		return fmt.Errorf("service %q: invalid process config: %w", params.Service, err)
	}
	if cfg.Command == "" {
		return fmt.Errorf("service %q: process config missing required \"command\" field", params.Service)
	}

	pidFile := p.pidFile(params.Stack, params.Service)
	if pid, err := readPidFile(pidFile); err == nil && processAlive(pid) {
		return fmt.Errorf("service %q: already running (pid %d)", params.Service, pid)
	}

	if err := os.MkdirAll(filepath.Dir(pidFile), 0o755); err != nil {
		return fmt.Errorf("service %q: create state dir: %w", params.Service, err)
	}

	logF, err := os.OpenFile(p.logFile(params.Stack, params.Service), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("service %q: open log file: %w", params.Service, err)
	}
	defer logF.Close()

	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Dir = cfg.Dir
	cmd.Env = append(os.Environ(), envMapToSlice(params.Env)...)
	cmd.Stdout = logF
	cmd.Stderr = logF
	// New session so the process survives the orchestrating CLI and never
	// receives its terminal signals.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("service %q: start process: %w", params.Service, err)
	}

	pid := cmd.Process.Pid
	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(pid)), 0o644); err != nil {
		cmd.Process.Kill()
		return fmt.Errorf("service %q: write pidfile: %w", params.Service, err)
	}

	// Reap in the background so the child never becomes a zombie while
	// this process is still alive.
	go cmd.Wait()

	return nil
}

// Stop sends SIGTERM and escalates to SIGKILL after a grace period.
// A missing pidfile or dead process is not an error.
func (p Process) Stop(ctx context.Context, stack, service string) error {
	pidFile := p.pidFile(stack, service)
	pid, err := readPidFile(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("service %q: read pidfile: %w", service, err)
	}
	defer os.Remove(pidFile)

	if !processAlive(pid) {
		return nil
	}

	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return fmt.Errorf("service %q: signal pid %d: %w", service, pid, err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	syscall.Kill(pid, syscall.SIGKILL)
	return nil
}

// Status reports whether the recorded pid is alive.
func (p Process) Status(_ context.Context, stack, service string) (Status, error) {
	pid, err := readPidFile(p.pidFile(stack, service))
	if err != nil {
		if os.IsNotExist(err) {
			return Status{Exists: false, Detail: "absent"}, nil
		}
		return Status{}, err
	}
	if processAlive(pid) {
		return Status{Exists: true, Running: true, Detail: fmt.Sprintf("running (pid %d)", pid)}, nil
	}
	return Status{Exists: true, Running: false, Detail: "exited"}, nil
}

func readPidFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("malformed pidfile %s: %w", path, err)
	}
	return pid, nil
}

// processAlive reports whether a process with the given pid exists.
// Signal 0 performs the existence check without delivering anything.
func processAlive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}
