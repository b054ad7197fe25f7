package server_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/frievoe97/stackup/server"
	"github.com/frievoe97/stackup/spec"
)

func TestTracker_TerminalStateSticks(t *testing.T) {
	tr := server.NewTracker([]string{"db", "web"})
	assert.Equal(t, spec.StatusPending, tr.Get("db"))

	tr.Set("db", spec.StatusStarting)
	assert.Equal(t, spec.StatusStarting, tr.Get("db"))

	assert.True(t, tr.Finish("db", spec.StatusReady, ""))
	assert.False(t, tr.Finish("db", spec.StatusCancelled, "too late"))
	tr.Set("db", spec.StatusStarting)
	assert.Equal(t, spec.StatusReady, tr.Get("db"))
}

func TestTracker_Result(t *testing.T) {
	tr := server.NewTracker([]string{"db", "web"})
	tr.Finish("db", spec.StatusReady, "")
	tr.Finish("web", spec.StatusTimedOut, "health check exhausted")

	res := tr.Result("demo", spec.StatusReady)
	assert.Equal(t, "demo", res.Stack)
	assert.False(t, res.OK)
	assert.Equal(t, spec.StatusReady, res.States["db"])
	assert.Equal(t, spec.StatusTimedOut, res.States["web"])
	assert.Equal(t, "health check exhausted", res.Errors["web"])

	tr2 := server.NewTracker([]string{"db"})
	tr2.Finish("db", spec.StatusStopped, "")
	assert.True(t, tr2.Result("demo", spec.StatusStopped).OK)
}
