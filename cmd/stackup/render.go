package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/frievoe97/stackup/server"
	"github.com/frievoe97/stackup/server/runtime"
)

// printEvents streams lifecycle events to stderr while an Up run is in
// flight. Service output (service.log) is passed through dimmed; everything
// else gets a one-line progress entry.
func printEvents(ctx context.Context, log *server.EventLog) {
	ch := log.Subscribe(ctx, 0, nil)
	for ev := range ch {
		switch ev.Type {
		case server.EventServiceLog:
			if ev.Log != nil {
				fmt.Fprint(os.Stderr, dim(ev.Log.Data))
			}
		case server.EventServiceUnhealthy:
			fmt.Fprintf(os.Stderr, "%s: unhealthy (attempt %d): %s\n",
				bold(ev.Service), ev.Attempt, ev.Error)
		case server.EventStackUp, server.EventStackFailing, server.EventStackDown:
			// Summarized by the result table.
		default:
			line := fmt.Sprintf("%s: %s", bold(ev.Service), colorState(ev.Status))
			if ev.Error != "" {
				line += " (" + ev.Error + ")"
			}
			fmt.Fprintln(os.Stderr, line)
		}
	}
}

// renderResult prints the per-service outcome table for an Up or Down run.
func renderResult(res server.Result) {
	names := make([]string, 0, len(res.States))
	for name := range res.States {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\t%s\n", bold("SERVICE"), bold("STATE"), bold("DETAIL"))
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, colorState(res.States[name]), res.Errors[name])
	}
	w.Flush()
}

// renderStatus prints the runtime's live view of each service, in
// dependency order.
func renderStatus(g *server.Graph, statuses map[string]runtime.Status) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\t%s\n", bold("SERVICE"), bold("STATE"), bold("DETAIL"))
	for _, name := range g.Order {
		st := statuses[name]
		state := "absent"
		switch {
		case st.Running:
			state = "running"
		case st.Exists:
			state = fmt.Sprintf("exited (%d)", st.ExitCode)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, state, st.Detail)
	}
	w.Flush()
}
