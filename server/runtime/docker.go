package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"

	"github.com/frievoe97/stackup/server/probe"
	"github.com/frievoe97/stackup/spec"
)

const (
	// stackLabel and serviceLabel mark containers as stackup-managed so
	// down and status work across CLI invocations.
	stackLabel    = "io.stackup.stack"
	serviceLabel  = "io.stackup.service"
	instanceLabel = "io.stackup.instance"
)

// ContainerConfig is the runtime-specific config for "container" services.
type ContainerConfig struct {
	// Image is the Docker image reference (e.g. "postgres:16").
	Image string `json:"image"`

	// Cmd overrides the container's default command.
	Cmd []string `json:"cmd,omitempty"`

	// Ports maps host ports to container ports in Docker syntax
	// (e.g. "8000:8000", "127.0.0.1:9090:9090").
	Ports []string `json:"ports,omitempty"`

	// Binds are host bind mounts in Docker syntax ("/host:/container").
	Binds []string `json:"binds,omitempty"`

	// Env sets additional environment variables on the container.
	// These are merged over the service-level environment map.
	Env map[string]string `json:"env,omitempty"`
}

// ContainerName returns the Docker container name for a service.
func ContainerName(stack, service string) string {
	return fmt.Sprintf("stackup-%s-%s", stack, service)
}

// Docker implements Adapter for the "container" runtime. Containers are
// detached: they keep running after the orchestrating process exits, and
// Stop finds them again by name.
type Docker struct{}

// Start creates and starts a container for the service. A stale container
// with the same name from a previous run is removed first. If params.Stdout
// is non-nil, container logs are streamed to it until ctx is cancelled.
func (Docker) Start(ctx context.Context, params StartParams) error {
	cfg, err := decodeContainerConfig(params.Service, params.Spec)
	if err != nil {
		return err
	}

	cli, err := dockerClient()
	if err != nil {
		return fmt.Errorf("service %q: docker client: %w", params.Service, err)
	}

	// Verify Docker is reachable before any create call.
	if _, err := cli.Ping(ctx); err != nil {
		return fmt.Errorf("service %q: cannot connect to Docker daemon (is Docker running?): %w", params.Service, err)
	}

	env := make(map[string]string, len(params.Env)+len(cfg.Env))
	for k, v := range params.Env {
		env[k] = v
	}
	for k, v := range cfg.Env {
		env[k] = v
	}

	exposedPorts, portBindings, err := nat.ParsePortSpecs(cfg.Ports)
	if err != nil {
		return fmt.Errorf("service %q: invalid ports: %w", params.Service, err)
	}

	name := ContainerName(params.Stack, params.Service)

	// Replace any container left over from a previous run of this stack.
	_ = cli.ContainerRemove(ctx, name, container.RemoveOptions{Force: true})

	config := &container.Config{
		Image:        cfg.Image,
		Cmd:          cfg.Cmd,
		Env:          envMapToSlice(env),
		ExposedPorts: exposedPorts,
		Labels: map[string]string{
			stackLabel:    params.Stack,
			serviceLabel:  params.Service,
			instanceLabel: params.InstanceID,
		},
	}
	hostConfig := &container.HostConfig{
		PortBindings: portBindings,
		Binds:        cfg.Binds,
	}

	resp, err := cli.ContainerCreate(ctx, config, hostConfig, nil, nil, name)
	if err != nil {
		return fmt.Errorf("service %q: create container: %w", params.Service, err)
	}

	if err := cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		// Don't leave a created-but-never-started container behind.
		_ = cli.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true})
		return fmt.Errorf("service %q: start container: %w", params.Service, err)
	}

	if params.Stdout != nil {
		go streamContainerLogs(ctx, cli, resp.ID, params.Stdout, params.Stderr)
	}

	return nil
}

// Stop gracefully stops and removes the service's container. A missing
// container is not an error — the service is already down.
func (Docker) Stop(ctx context.Context, stack, service string) error {
	cli, err := dockerClient()
	if err != nil {
		return fmt.Errorf("service %q: docker client: %w", service, err)
	}

	name := ContainerName(stack, service)
	if _, err := cli.ContainerInspect(ctx, name); client.IsErrNotFound(err) {
		return nil
	}

	timeout := 10 // seconds
	if err := cli.ContainerStop(ctx, name, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("service %q: stop container: %w", service, err)
	}
	if err := cli.ContainerRemove(ctx, name, container.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("service %q: remove container: %w", service, err)
	}
	return nil
}

// Status inspects the service's container.
func (Docker) Status(ctx context.Context, stack, service string) (Status, error) {
	cli, err := dockerClient()
	if err != nil {
		return Status{}, err
	}

	inspect, err := cli.ContainerInspect(ctx, ContainerName(stack, service))
	if client.IsErrNotFound(err) {
		return Status{Exists: false, Detail: "absent"}, nil
	}
	if err != nil {
		return Status{}, err
	}
	return Status{
		Exists:   true,
		Running:  inspect.State.Running,
		ExitCode: inspect.State.ExitCode,
		Detail:   inspect.State.Status,
	}, nil
}

// CommandChecker returns a probe that runs cmd inside the service's
// container via docker exec; exit status zero means ready.
func (Docker) CommandChecker(stack, service string, cmd []string) probe.Checker {
	return &execChecker{containerName: ContainerName(stack, service), cmd: cmd}
}

// execChecker implements probe.Checker through docker exec.
type execChecker struct {
	containerName string
	cmd           []string
}

func (c *execChecker) Check(ctx context.Context) error {
	cli, err := dockerClient()
	if err != nil {
		return fmt.Errorf("exec probe: docker client: %w", err)
	}

	exec, err := cli.ContainerExecCreate(ctx, c.containerName, container.ExecOptions{
		Cmd:          c.cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return fmt.Errorf("exec probe: create: %w", err)
	}

	resp, err := cli.ContainerExecAttach(ctx, exec.ID, container.ExecAttachOptions{})
	if err != nil {
		return fmt.Errorf("exec probe: attach: %w", err)
	}
	io.Copy(io.Discard, resp.Reader)
	resp.Close()

	inspect, err := cli.ContainerExecInspect(ctx, exec.ID)
	if err != nil {
		return fmt.Errorf("exec probe: inspect: %w", err)
	}
	if inspect.ExitCode != 0 {
		return fmt.Errorf("exec probe: %v exited with code %d", c.cmd, inspect.ExitCode)
	}
	return nil
}

// streamContainerLogs copies container output to the given writers until
// the context is cancelled or the container exits.
func streamContainerLogs(ctx context.Context, cli *client.Client, containerID string, stdout, stderr io.Writer) {
	reader, err := cli.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		return
	}
	defer reader.Close()

	if stderr == nil {
		stderr = stdout
	}
	stdcopy.StdCopy(stdout, stderr, reader)
}

func decodeContainerConfig(service string, svc spec.Service) (ContainerConfig, error) {
	var cfg ContainerConfig
	if svc.Config == nil {
		return cfg, fmt.Errorf("service %q: missing container config", service)
	}
	if err := json.Unmarshal(svc.Config, &cfg); err != nil {
		return cfg, fmt.Errorf("service %q: invalid container config: %w", service, err)
	}
	if cfg.Image == "" {
		return cfg, fmt.Errorf("service %q: container config missing required \"image\" field", service)
	}
	return cfg, nil
}

// envMapToSlice converts a map of env vars to a slice of "KEY=VALUE" strings.
func envMapToSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
