package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// handleSSE handles GET /stacks/{name}/events: a server-sent-events stream
// of the stack's lifecycle. Connecting replays the log from the beginning,
// then tails it until the client goes away. A reconnecting client sends
// Last-Event-ID and resumes where it left off, since frame ids carry the
// event sequence number.
//
// service.log events are excluded from the stream — they are high-volume
// and a client that wants raw output can read the full log via the API.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.getInstance(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	var fromSeq uint64
	if lastID := r.Header.Get("Last-Event-ID"); lastID != "" {
		if seq, err := strconv.ParseUint(lastID, 10, 64); err == nil {
			fromSeq = seq
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := inst.log.Subscribe(r.Context(), fromSeq, func(e Event) bool {
		return e.Type != EventServiceLog
	})
	for ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		// id / event / data / blank line — the standard SSE framing.
		if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n",
			ev.Seq, ev.Type, payload); err != nil {
			return // client disconnected
		}
		flusher.Flush()
	}
}
