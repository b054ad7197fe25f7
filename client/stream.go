package stackup

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Events connects to the server's SSE stream for a stack and delivers events
// on the returned channel until ctx is cancelled or the stream closes. The
// channel is closed when the stream ends. fromSeq resumes the stream after a
// previously seen event; pass 0 to replay from the beginning.
func (c *Client) Events(ctx context.Context, stack string, fromSeq uint64) (<-chan Event, error) {
	url := fmt.Sprintf("%s/stacks/%s/events", c.baseURL, stack)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create SSE request: %w", err)
	}
	if fromSeq > 0 {
		req.Header.Set("Last-Event-ID", fmt.Sprintf("%d", fromSeq))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect to event stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("event stream: HTTP %d", resp.StatusCode)
	}

	ch := make(chan Event)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		var data string

		for scanner.Scan() {
			line := scanner.Text()

			switch {
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")

			case line == "":
				if data == "" {
					continue
				}
				var ev Event
				if err := json.Unmarshal([]byte(data), &ev); err != nil {
					data = ""
					continue
				}
				data = ""

				select {
				case ch <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}

// WaitUp blocks until the stack reports a terminal stack event: stack.up
// (success) or stack.failing (failure). Per-service failures seen along the
// way are folded into the returned error.
func (c *Client) WaitUp(ctx context.Context, stack string) error {
	ch, err := c.Events(ctx, stack, 0)
	if err != nil {
		return err
	}

	var failures []string
	for ev := range ch {
		switch ev.Type {
		case EventServiceFailed, EventServiceTimedOut, EventServiceBlocked:
			failures = append(failures,
				fmt.Sprintf("service %q: %s: %s", ev.Service, ev.Status, ev.Error))
		case EventStackUp:
			return nil
		case EventStackFailing:
			if len(failures) > 0 {
				return fmt.Errorf("stack %q failed:\n  %s", stack, strings.Join(failures, "\n  "))
			}
			return fmt.Errorf("stack %q failed", stack)
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("event stream closed before stack.up")
}
