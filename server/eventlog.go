package server

import (
	"context"
	"sync"
	"time"

	"github.com/frievoe97/stackup/spec"
)

// EventType identifies the kind of lifecycle event.
type EventType string

const (
	// Service lifecycle.
	EventServiceStarting       EventType = "service.starting"
	EventServiceHealthChecking EventType = "service.health_checking"
	EventServiceUnhealthy      EventType = "service.unhealthy"
	EventServiceReady          EventType = "service.ready"
	EventServiceFailed         EventType = "service.failed"
	EventServiceTimedOut       EventType = "service.timed_out"
	EventServiceBlocked        EventType = "service.blocked"
	EventServiceCancelled      EventType = "service.cancelled"
	EventServiceStopping       EventType = "service.stopping"
	EventServiceStopped        EventType = "service.stopped"
	EventServiceStopFailed     EventType = "service.stop_failed"
	EventServiceLog            EventType = "service.log"

	// Stack lifecycle.
	EventStackUp      EventType = "stack.up"
	EventStackFailing EventType = "stack.failing"
	EventStackDown    EventType = "stack.down"
)

// upTerminal maps terminal event types to the status they carry. A
// dependent waiting on a service resolves its wait when any of these is
// published for that service.
var upTerminal = map[EventType]spec.Status{
	EventServiceReady:     spec.StatusReady,
	EventServiceFailed:    spec.StatusFailed,
	EventServiceTimedOut:  spec.StatusTimedOut,
	EventServiceBlocked:   spec.StatusDependencyFailed,
	EventServiceCancelled: spec.StatusCancelled,
}

// TerminalStatus returns the terminal status a service event carries, or
// "" when the event is not terminal.
func TerminalStatus(t EventType) spec.Status {
	return upTerminal[t]
}

// LogEntry holds a chunk of service output.
type LogEntry struct {
	Stream string `json:"stream"` // "stdout" or "stderr"
	Data   string `json:"data"`
}

// Event is a single entry in the event log.
type Event struct {
	Seq       uint64      `json:"seq"`
	Type      EventType   `json:"type"`
	Stack     string      `json:"stack,omitempty"`
	Service   string      `json:"service,omitempty"`
	Status    spec.Status `json:"status,omitempty"`
	Attempt   int         `json:"attempt,omitempty"` // probe attempt, for service.unhealthy
	Log       *LogEntry   `json:"log,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// EventLog is an in-memory, ordered event log. Events are appended with
// monotonically increasing sequence numbers. Subscribers can replay from
// any point. WaitFor scans the existing log before blocking — this is the
// primitive through which a dependent service observes its dependencies'
// terminal states without racing them.
type EventLog struct {
	mu     sync.Mutex
	events []Event
	seq    uint64
	notify chan struct{} // closed and replaced on each new event
}

// NewEventLog creates an empty event log.
func NewEventLog() *EventLog {
	return &EventLog{
		notify: make(chan struct{}),
	}
}

// Publish appends an event to the log with the next sequence number and
// the current timestamp, then wakes all waiters.
func (l *EventLog) Publish(event Event) {
	l.mu.Lock()
	l.seq++
	event.Seq = l.seq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	l.events = append(l.events, event)
	ch := l.notify
	l.notify = make(chan struct{})
	l.mu.Unlock()

	close(ch) // wake all waiters
}

// Events returns a snapshot of all events in the log.
func (l *EventLog) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Since returns all events with sequence number > seq.
func (l *EventLog) Since(seq uint64) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.eventsSince(seq)
}

// eventsSince returns events with Seq > seq. Caller must hold l.mu.
// Seq numbers are 1-indexed and contiguous, so events after seq start
// at slice index seq.
func (l *EventLog) eventsSince(seq uint64) []Event {
	start := int(seq)
	if start >= len(l.events) {
		return nil
	}
	out := make([]Event, len(l.events)-start)
	copy(out, l.events[start:])
	return out
}

// Subscribe returns a channel carrying every event with Seq > fromSeq:
// first a replay of what the log already holds, then a live tail. An
// optional filter drops events before delivery. The channel closes when
// ctx is cancelled.
//
// Delivery is buffered (256) and lossy: a subscriber that stops draining
// loses events rather than blocking publishers.
func (l *EventLog) Subscribe(ctx context.Context, fromSeq uint64, filter func(Event) bool) <-chan Event {
	ch := make(chan Event, 256)

	go func() {
		defer close(ch)

		cursor := fromSeq

		for {
			l.mu.Lock()
			batch := l.eventsSince(cursor)
			notify := l.notify
			l.mu.Unlock()

			for _, e := range batch {
				if filter != nil && !filter(e) {
					cursor = e.Seq
					continue
				}
				select {
				case ch <- e:
				case <-ctx.Done():
					return
				default:
					// subscriber fell behind, drop
				}
				cursor = e.Seq
			}

			select {
			case <-notify:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch
}

// WaitFor returns the first event matching match, checking the existing
// log before blocking on future publishes. It returns ctx.Err() if the
// context ends first.
func (l *EventLog) WaitFor(ctx context.Context, match func(Event) bool) (Event, error) {
	l.mu.Lock()
	for _, e := range l.events {
		if match(e) {
			l.mu.Unlock()
			return e, nil
		}
	}
	cursor := l.seq
	notify := l.notify
	l.mu.Unlock()

	// Nothing yet; park until publishes arrive.
	for {
		select {
		case <-notify:
			l.mu.Lock()
			batch := l.eventsSince(cursor)
			notify = l.notify
			l.mu.Unlock()

			for _, e := range batch {
				if match(e) {
					return e, nil
				}
				cursor = e.Seq
			}
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}
