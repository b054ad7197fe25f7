package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frievoe97/stackup/server"
	"github.com/frievoe97/stackup/server/runtime"
)

func newTestServer(t *testing.T, f *fakeRuntime) *httptest.Server {
	t.Helper()
	reg := runtime.NewRegistry()
	reg.Register("fake", f)
	ts := httptest.NewServer(server.NewServer(reg, nil))
	t.Cleanup(ts.Close)
	return ts
}

func postStack(t *testing.T, ts *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+"/stacks", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

const demoStack = `{
	"name": "demo",
	"services": {
		"db": {"runtime": "fake"},
		"web": {"runtime": "fake", "depends_on": ["db"]}
	}
}`

func TestServer_StackLifecycle(t *testing.T) {
	f := newFakeRuntime()
	ts := newTestServer(t, f)

	resp := postStack(t, ts, demoStack)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		Stack    string   `json:"stack"`
		Services []string `json:"services"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "demo", created.Stack)
	assert.Equal(t, []string{"db", "web"}, created.Services)

	// Poll GET until the Up run has settled.
	deadline := time.Now().Add(10 * time.Second)
	var view struct {
		Result *server.Result `json:"result"`
	}
	for {
		getResp, err := http.Get(ts.URL + "/stacks/demo")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, getResp.StatusCode)
		require.NoError(t, json.NewDecoder(getResp.Body).Decode(&view))
		getResp.Body.Close()
		if view.Result != nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NotNil(t, view.Result, "Up did not settle in time")
	assert.True(t, view.Result.OK)

	// A second stack with the same name is rejected while the first exists.
	dup := postStack(t, ts, demoStack)
	assert.Equal(t, http.StatusConflict, dup.StatusCode)

	// Tear down.
	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/stacks/demo", nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer delResp.Body.Close()
	require.Equal(t, http.StatusOK, delResp.StatusCode)

	var down server.Result
	require.NoError(t, json.NewDecoder(delResp.Body).Decode(&down))
	assert.True(t, down.OK)
	assert.Equal(t, []string{"web", "db"}, f.stopOrder())

	// Gone after delete.
	getResp, err := http.Get(ts.URL + "/stacks/demo")
	require.NoError(t, err)
	getResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, getResp.StatusCode)
}

func TestServer_RejectsBadSpec(t *testing.T) {
	ts := newTestServer(t, newFakeRuntime())

	resp := postStack(t, ts, `{
		"name": "broken",
		"services": {
			"web": {"runtime": "fake", "depends_on": ["bd"]},
			"db": {"runtime": "fake"}
		}
	}`)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var wire struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&wire))
	assert.Equal(t, string(server.ErrUnknownDependency), wire.Kind)
	assert.Contains(t, wire.Error, `"bd"`)
}

func TestServer_UnknownStack(t *testing.T) {
	ts := newTestServer(t, newFakeRuntime())

	resp, err := http.Get(ts.URL + "/stacks/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_SSEStream(t *testing.T) {
	f := newFakeRuntime()
	ts := newTestServer(t, f)

	resp := postStack(t, ts, demoStack)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/stacks/demo/events", nil)
	require.NoError(t, err)
	sseResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer sseResp.Body.Close()
	require.Equal(t, http.StatusOK, sseResp.StatusCode)
	assert.Equal(t, "text/event-stream", sseResp.Header.Get("Content-Type"))

	// Read frames until the terminal stack event arrives.
	buf := make([]byte, 4096)
	var raw []byte
	for {
		n, err := sseResp.Body.Read(buf)
		raw = append(raw, buf[:n]...)
		if bytes.Contains(raw, []byte("event: stack.up")) {
			break
		}
		require.NoError(t, err)
	}
	assert.Contains(t, string(raw), "event: service.ready")
	assert.Contains(t, string(raw), "id: ")
}
