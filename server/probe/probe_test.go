package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedChecker fails a fixed number of times before succeeding.
type scriptedChecker struct {
	failures int
	calls    int
}

func (c *scriptedChecker) Check(ctx context.Context) error {
	c.calls++
	if c.calls <= c.failures {
		return errors.New("not ready")
	}
	return nil
}

func noSleep(intervals *[]time.Duration) SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		*intervals = append(*intervals, d)
		return ctx.Err()
	}
}

func TestPoll_SucceedsFirstAttempt(t *testing.T) {
	var intervals []time.Duration
	chk := &scriptedChecker{}

	err := Poll(context.Background(), chk, Options{
		Interval: time.Second,
		Retries:  3,
		Sleep:    noSleep(&intervals),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, chk.calls)
	assert.Empty(t, intervals, "no sleep before the first attempt")
}

func TestPoll_RetriesThenSucceeds(t *testing.T) {
	var intervals []time.Duration
	chk := &scriptedChecker{failures: 2}

	var failed []int
	err := Poll(context.Background(), chk, Options{
		Interval:  time.Second,
		Retries:   3,
		Sleep:     noSleep(&intervals),
		OnFailure: func(attempt int, err error) { failed = append(failed, attempt) },
	})
	require.NoError(t, err)
	assert.Equal(t, 3, chk.calls)
	assert.Equal(t, []int{1, 2}, failed)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, intervals)
}

// Exactly Retries attempts occur, spaced by Interval — not one more.
func TestPoll_Exhausted(t *testing.T) {
	var intervals []time.Duration
	chk := &scriptedChecker{failures: 100}

	err := Poll(context.Background(), chk, Options{
		Interval: 250 * time.Millisecond,
		Retries:  3,
		Sleep:    noSleep(&intervals),
	})
	require.Error(t, err)

	var exhausted *ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Equal(t, 3, chk.calls)
	// Sleeps happen between attempts only: retries-1 of them.
	assert.Len(t, intervals, 2)
}

func TestPoll_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	chk := &scriptedChecker{failures: 100}
	err := Poll(ctx, chk, Options{Interval: time.Second, Retries: 5})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, chk.calls)
}

func TestPoll_ZeroRetriesMeansOne(t *testing.T) {
	chk := &scriptedChecker{failures: 100}
	err := Poll(context.Background(), chk, Options{})
	var exhausted *ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 1, chk.calls)
}

func TestHTTP_Check(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/teapot":
			w.WriteHeader(http.StatusTeapot) // 4xx is still "up"
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	addr := strings.TrimPrefix(srv.URL, "http://")

	chk := &HTTP{Address: addr, Path: "/health"}
	require.NoError(t, chk.Check(context.Background()))

	chk = &HTTP{Address: addr, Path: "/teapot"}
	require.NoError(t, chk.Check(context.Background()))

	chk = &HTTP{Address: addr, Path: "/boom"}
	err := chk.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestTCP_Check(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	addr := strings.TrimPrefix(srv.URL, "http://")
	require.NoError(t, (&TCP{Address: addr}).Check(context.Background()))

	srv.Close()
	require.Error(t, (&TCP{Address: addr}).Check(context.Background()))
}
