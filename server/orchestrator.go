package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/frievoe97/stackup/server/probe"
	"github.com/frievoe97/stackup/server/runtime"
	"github.com/frievoe97/stackup/spec"
)

// Orchestrator brings a validated service graph up and down through a
// runtime adapter. It performs no process or container management itself.
type Orchestrator struct {
	Runtimes *runtime.Registry
	Log      *EventLog

	// Metrics is optional; nil disables instrumentation.
	Metrics *Metrics

	// ProbeSleep overrides the wait between health-check attempts.
	// Nil means real time. Tests inject a fake.
	ProbeSleep probe.SleepFunc
}

// Up starts every service in the graph, gating each on its dependencies
// reaching ready. Services whose dependencies are already ready start
// concurrently — ordering is emergent from the event log, not a serial
// walk of the topological order. Up returns when every service has
// reached a terminal state; per-service failures are recorded in the
// Result, never returned as an error.
//
// Cancelling ctx stops issuing new starts and health checks and marks
// every not-yet-ready service cancelled. Already-ready services are left
// running — stopping them is an explicit Down call.
func (o *Orchestrator) Up(ctx context.Context, g *Graph) Result {
	started := time.Now()
	instanceID := uuid.NewString()
	tracker := NewTracker(g.Names())

	var wg sync.WaitGroup
	for _, name := range g.Names() {
		svc := g.Stack.Services[name]

		adapter, err := o.Runtimes.Get(runtimeName(svc))
		if err != nil {
			// Published as a terminal event so dependents unblock.
			tracker.Finish(name, spec.StatusFailed, err.Error())
			o.Log.Publish(Event{
				Type:    EventServiceFailed,
				Stack:   g.Stack.Name,
				Service: name,
				Status:  spec.StatusFailed,
				Error:   err.Error(),
			})
			continue
		}

		sc := &serviceContext{
			name:       name,
			svc:        svc,
			stack:      g.Stack.Name,
			instanceID: instanceID,
			graph:      g,
			adapter:    adapter,
			tracker:    tracker,
			log:        o.Log,
			sleep:      o.ProbeSleep,
			metrics:    o.Metrics,
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			// Terminal states and events are recorded by the lifecycle
			// steps themselves; the error only aborts the sequence.
			_ = serviceLifecycle(sc).Run(ctx)
		}()
	}
	wg.Wait()

	// A cancelled run can leave services non-terminal (e.g. a goroutine
	// that never got past its dependency wait). Sweep them to cancelled.
	for name, st := range tracker.Snapshot() {
		if !st.Terminal() {
			msg := "orchestration aborted"
			if cause := context.Cause(ctx); cause != nil {
				msg = cause.Error()
			}
			if tracker.Finish(name, spec.StatusCancelled, msg) {
				o.Log.Publish(Event{
					Type:    EventServiceCancelled,
					Stack:   g.Stack.Name,
					Service: name,
					Status:  spec.StatusCancelled,
				})
			}
		}
	}

	res := tracker.Result(g.Stack.Name, spec.StatusReady)
	if res.OK {
		o.Log.Publish(Event{Type: EventStackUp, Stack: g.Stack.Name})
	} else {
		o.Log.Publish(Event{Type: EventStackFailing, Stack: g.Stack.Name})
	}
	o.Metrics.observeUp(res, time.Since(started))
	return res
}

// Down stops services in reverse dependency order: dependents are stopped
// before their dependencies, so a service is never stopped while something
// that needs it is still up. Stop failures are recorded per service but do
// not abort the remaining teardown.
func (o *Orchestrator) Down(ctx context.Context, g *Graph) Result {
	tracker := NewTracker(g.Names())

	for i := len(g.Order) - 1; i >= 0; i-- {
		name := g.Order[i]
		svc := g.Stack.Services[name]

		o.Log.Publish(Event{
			Type:    EventServiceStopping,
			Stack:   g.Stack.Name,
			Service: name,
		})

		adapter, err := o.Runtimes.Get(runtimeName(svc))
		if err == nil {
			err = adapter.Stop(ctx, g.Stack.Name, name)
		}
		if err != nil {
			tracker.Finish(name, spec.StatusStopFailed, err.Error())
			o.Log.Publish(Event{
				Type:    EventServiceStopFailed,
				Stack:   g.Stack.Name,
				Service: name,
				Status:  spec.StatusStopFailed,
				Error:   err.Error(),
			})
			continue
		}

		tracker.Finish(name, spec.StatusStopped, "")
		o.Log.Publish(Event{
			Type:    EventServiceStopped,
			Stack:   g.Stack.Name,
			Service: name,
			Status:  spec.StatusStopped,
		})
	}

	res := tracker.Result(g.Stack.Name, spec.StatusStopped)
	o.Log.Publish(Event{Type: EventStackDown, Stack: g.Stack.Name})
	return res
}

// Status reports the runtime's current view of every service in the graph
// (running, exited, absent). It reflects what the runtime knows now, not
// the outcome of a past orchestration run.
func (o *Orchestrator) Status(ctx context.Context, g *Graph) (map[string]runtime.Status, error) {
	out := make(map[string]runtime.Status, len(g.Stack.Services))
	for _, name := range g.Names() {
		adapter, err := o.Runtimes.Get(runtimeName(g.Stack.Services[name]))
		if err != nil {
			return nil, fmt.Errorf("service %q: %w", name, err)
		}
		st, err := adapter.Status(ctx, g.Stack.Name, name)
		if err != nil {
			return nil, fmt.Errorf("service %q: %w", name, err)
		}
		out[name] = st
	}
	return out, nil
}

// runtimeName returns the service's runtime, defaulting to "container".
func runtimeName(svc spec.Service) string {
	if svc.Runtime != "" {
		return svc.Runtime
	}
	return "container"
}
