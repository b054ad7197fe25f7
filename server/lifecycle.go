package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/matgreaves/run"

	"github.com/frievoe97/stackup/server/probe"
	"github.com/frievoe97/stackup/server/runtime"
	"github.com/frievoe97/stackup/spec"
)

// serviceContext holds the resolved state for a single service during an Up run.
type serviceContext struct {
	name       string
	svc        spec.Service
	stack      string
	instanceID string
	graph      *Graph
	adapter    runtime.Adapter
	tracker    *Tracker
	log        *EventLog
	sleep      probe.SleepFunc
	metrics    *Metrics
}

// serviceLifecycle builds the lifecycle sequence for a single service:
//
//	Sequence{ waitForDeps, start, healthCheck, markReady }
//
// Each step records its own terminal state and event before returning an
// error, so the sequence's error is only used to stop execution — the
// orchestrator never inspects it.
func serviceLifecycle(sc *serviceContext) run.Runner {
	return run.Sequence{
		waitForDepsStep(sc),
		startStep(sc),
		healthCheckStep(sc),
		markReadyStep(sc),
	}
}

// finish records the service's terminal state and publishes the matching
// event, then returns err to abort the remaining lifecycle steps.
func (sc *serviceContext) finish(status spec.Status, eventType EventType, err error) error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if sc.tracker.Finish(sc.name, status, msg) {
		sc.log.Publish(Event{
			Type:    eventType,
			Stack:   sc.stack,
			Service: sc.name,
			Status:  status,
			Error:   msg,
		})
		sc.metrics.serviceFinished(sc.stack, status)
	}
	if err == nil {
		err = errors.New(string(status))
	}
	return err
}

// waitForDepsStep blocks until every dependency has reached a terminal
// state. A dependency that ends anywhere other than ready blocks this
// service: it is marked dependency_failed without ever being started.
// Siblings of the failed branch are unaffected and keep going.
func waitForDepsStep(sc *serviceContext) run.Runner {
	return run.Func(func(ctx context.Context) error {
		for _, dep := range sc.graph.Deps(sc.name) {
			ev, err := sc.log.WaitFor(ctx, func(e Event) bool {
				return e.Stack == sc.stack &&
					e.Service == dep &&
					TerminalStatus(e.Type) != ""
			})
			if err != nil {
				return sc.finish(spec.StatusCancelled, EventServiceCancelled, err)
			}
			if ev.Type != EventServiceReady {
				return sc.finish(spec.StatusDependencyFailed, EventServiceBlocked,
					fmt.Errorf("dependency %q is %s", dep, TerminalStatus(ev.Type)))
			}
		}
		return nil
	})
}

// startStep asks the runtime adapter to start the service.
func startStep(sc *serviceContext) run.Runner {
	return run.Func(func(ctx context.Context) error {
		sc.tracker.Set(sc.name, spec.StatusStarting)
		sc.log.Publish(Event{
			Type:    EventServiceStarting,
			Stack:   sc.stack,
			Service: sc.name,
			Status:  spec.StatusStarting,
		})

		logWriter := &eventLogWriter{
			log:     sc.log,
			stack:   sc.stack,
			service: sc.name,
		}

		err := sc.adapter.Start(ctx, runtime.StartParams{
			Stack:      sc.stack,
			Service:    sc.name,
			InstanceID: sc.instanceID,
			Spec:       sc.svc,
			Env:        sc.graph.Env[sc.name],
			Stdout:     &teeWriter{logWriter, "stdout"},
			Stderr:     &teeWriter{logWriter, "stderr"},
		})
		if err != nil {
			if ctx.Err() != nil {
				return sc.finish(spec.StatusCancelled, EventServiceCancelled, context.Cause(ctx))
			}
			return sc.finish(spec.StatusFailed, EventServiceFailed,
				fmt.Errorf("start: %w", err))
		}
		return nil
	})
}

// healthCheckStep polls the service's health check until it passes or the
// retry budget runs out. A service without a health check is considered
// healthy as soon as it starts.
func healthCheckStep(sc *serviceContext) run.Runner {
	return run.Func(func(ctx context.Context) error {
		h := sc.svc.Health
		if h == nil {
			return nil
		}

		sc.tracker.Set(sc.name, spec.StatusHealthChecking)
		sc.log.Publish(Event{
			Type:    EventServiceHealthChecking,
			Stack:   sc.stack,
			Service: sc.name,
			Status:  spec.StatusHealthChecking,
		})

		checker, err := checkerFor(sc)
		if err != nil {
			return sc.finish(spec.StatusFailed, EventServiceFailed, err)
		}

		err = probe.Poll(ctx, checker, probe.Options{
			Interval: h.PollInterval(),
			Timeout:  h.PollTimeout(),
			Retries:  h.PollRetries(),
			Sleep:    sc.sleep,
			OnFailure: func(attempt int, attemptErr error) {
				sc.log.Publish(Event{
					Type:    EventServiceUnhealthy,
					Stack:   sc.stack,
					Service: sc.name,
					Attempt: attempt,
					Error:   attemptErr.Error(),
				})
				sc.metrics.probeFailed(sc.stack, sc.name)
			},
		})
		if err != nil {
			if ctx.Err() != nil {
				return sc.finish(spec.StatusCancelled, EventServiceCancelled, context.Cause(ctx))
			}
			var exhausted *probe.ExhaustedError
			if errors.As(err, &exhausted) {
				return sc.finish(spec.StatusTimedOut, EventServiceTimedOut, err)
			}
			return sc.finish(spec.StatusFailed, EventServiceFailed, err)
		}
		return nil
	})
}

// markReadyStep records the ready terminal state. Publishing the ready
// event is what releases dependents blocked in waitForDepsStep.
func markReadyStep(sc *serviceContext) run.Runner {
	return run.Func(func(ctx context.Context) error {
		sc.tracker.Finish(sc.name, spec.StatusReady, "")
		sc.log.Publish(Event{
			Type:    EventServiceReady,
			Stack:   sc.stack,
			Service: sc.name,
			Status:  spec.StatusReady,
		})
		sc.metrics.serviceFinished(sc.stack, spec.StatusReady)
		return nil
	})
}

// checkerFor builds the probe for the service's health check.
func checkerFor(sc *serviceContext) (probe.Checker, error) {
	h := sc.svc.Health
	switch h.Type {
	case "tcp":
		if h.Address == "" {
			return nil, fmt.Errorf("tcp health check for %q needs an address", sc.name)
		}
		return &probe.TCP{Address: h.Address}, nil
	case "http":
		if h.Address == "" {
			return nil, fmt.Errorf("http health check for %q needs an address", sc.name)
		}
		return &probe.HTTP{Address: h.Address, Path: h.Path}, nil
	case "grpc":
		if h.Address == "" {
			return nil, fmt.Errorf("grpc health check for %q needs an address", sc.name)
		}
		return &probe.GRPC{Address: h.Address}, nil
	case "postgres":
		if h.DSN == "" {
			return nil, fmt.Errorf("postgres health check for %q needs a dsn", sc.name)
		}
		return &probe.Postgres{DSN: h.DSN}, nil
	case "cmd":
		prober, ok := sc.adapter.(runtime.CommandProber)
		if !ok {
			return nil, fmt.Errorf("runtime %q does not support cmd health checks", runtimeName(sc.svc))
		}
		if len(h.Cmd) == 0 {
			return nil, fmt.Errorf("cmd health check for %q needs a command", sc.name)
		}
		return prober.CommandChecker(sc.stack, sc.name, h.Cmd), nil
	default:
		return nil, fmt.Errorf("unknown health check type %q for service %q", h.Type, sc.name)
	}
}

// teeWriter tags service output with a stream name before it reaches the
// event log.
type teeWriter struct {
	logWriter *eventLogWriter
	stream    string // "stdout" or "stderr"
}

func (w *teeWriter) Write(p []byte) (int, error) {
	w.logWriter.log.Publish(Event{
		Type:    EventServiceLog,
		Stack:   w.logWriter.stack,
		Service: w.logWriter.service,
		Log: &LogEntry{
			Stream: w.stream,
			Data:   string(p),
		},
	})
	return len(p), nil
}

// eventLogWriter provides context for writing service output to the event log.
type eventLogWriter struct {
	log     *EventLog
	stack   string
	service string
}
